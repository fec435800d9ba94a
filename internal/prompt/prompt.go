// internal/prompt/prompt.go
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Console asks yes/no questions on a terminal.
type Console struct {
	in     *bufio.Scanner
	out    io.Writer
	logger *slog.Logger
}

// NewConsole creates a Console reading answers from in and writing questions to out.
func NewConsole(in io.Reader, out io.Writer, logger *slog.Logger) *Console {
	return &Console{in: bufio.NewScanner(in), out: out, logger: logger}
}

// Confirm prints question and reads Y/N answers until a valid one arrives.
// End of input counts as "no".
func (c *Console) Confirm(question string) (bool, error) {
	fmt.Fprintf(c.out, "%s (Y/N)\n", question)
	for {
		if !c.in.Scan() {
			if err := c.in.Err(); err != nil {
				return false, err
			}
			return false, nil
		}
		switch strings.TrimSpace(c.in.Text()) {
		case "Y", "y":
			return true, nil
		case "N", "n":
			return false, nil
		default:
			c.logger.Info("Invalid choice entered by user", "question", question)
			fmt.Fprintln(c.out, "Invalid choice. Please enter Y/N.")
		}
	}
}

// Fixed answers every question with the same choice.
type Fixed bool

// Confirm returns the fixed answer.
func (f Fixed) Confirm(string) (bool, error) { return bool(f), nil }
