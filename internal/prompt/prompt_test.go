// internal/prompt/prompt_test.go
package prompt

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_Confirm(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	tests := []struct {
		name     string
		input    string
		want     bool
		reprompt int
	}{
		{"upper yes", "Y\n", true, 0},
		{"lower no", "n\n", false, 0},
		{"invalid then yes", "maybe\n\nyes\ny\n", true, 3},
		{"end of input", "", false, 0},
		{"surrounding spaces", "  N  \n", false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			c := NewConsole(strings.NewReader(tc.input), &out, logger)

			got, err := c.Confirm("Would you like to try again?")

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.True(t, strings.HasPrefix(out.String(), "Would you like to try again? (Y/N)\n"))
			assert.Equal(t, tc.reprompt, strings.Count(out.String(), "Invalid choice"))
		})
	}
}

func TestConsole_SuccessiveQuestions(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("y\nn\n"), &out, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	first, err := c.Confirm("first?")
	require.NoError(t, err)
	second, err := c.Confirm("second?")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestFixed(t *testing.T) {
	yes, _ := Fixed(true).Confirm("anything")
	no, _ := Fixed(false).Confirm("anything")
	assert.True(t, yes)
	assert.False(t, no)
}
