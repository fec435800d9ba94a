// internal/config/config.go
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogFile  string `mapstructure:"LOG_FILE"`

	DBURL string `mapstructure:"DB_URL"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`

	GithubClientID string `mapstructure:"GITHUB_CLIENT_ID"`
	GithubToken    string `mapstructure:"GITHUB_TOKEN"`
	GithubAPIURL   string `mapstructure:"GITHUB_API_URL"`
	GithubOAuthURL string `mapstructure:"GITHUB_OAUTH_URL"`

	FetchMaxRetries    int           `mapstructure:"FETCH_MAX_RETRIES"`
	FetchBackoffFactor time.Duration `mapstructure:"FETCH_BACKOFF_FACTOR"`

	AuthMaxAttempts int           `mapstructure:"AUTH_MAX_ATTEMPTS"`
	AuthTimeout     time.Duration `mapstructure:"AUTH_TIMEOUT"`

	CSVPath  string `mapstructure:"CSV_PATH"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
}

var keys = []string{
	"LOG_LEVEL", "LOG_FILE", "DB_URL",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL",
	"GITHUB_CLIENT_ID", "GITHUB_TOKEN", "GITHUB_API_URL", "GITHUB_OAUTH_URL",
	"FETCH_MAX_RETRIES", "FETCH_BACKOFF_FACTOR",
	"AUTH_MAX_ATTEMPTS", "AUTH_TIMEOUT",
	"CSV_PATH", "HTTP_ADDR",
}

// LoadConfig reads configuration from an optional .env file and the environment.
func LoadConfig() (*Config, error) {
	// Variables already present in the environment win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()

	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "0s")
	v.SetDefault("GITHUB_API_URL", "https://api.github.com")
	v.SetDefault("GITHUB_OAUTH_URL", "https://github.com")
	v.SetDefault("FETCH_MAX_RETRIES", 5)
	v.SetDefault("FETCH_BACKOFF_FACTOR", "1s")
	v.SetDefault("AUTH_MAX_ATTEMPTS", 180)
	v.SetDefault("AUTH_TIMEOUT", "15m")
	v.SetDefault("CSV_PATH", "result.csv")
	v.SetDefault("HTTP_ADDR", ":8080")

	// Bind environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		// Unmarshal only sees keys viper knows about.
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.GithubAPIURL = strings.TrimRight(cfg.GithubAPIURL, "/")
	cfg.GithubOAuthURL = strings.TrimRight(cfg.GithubOAuthURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and bounds.
func (c *Config) Validate() error {
	if c.DBURL == "" {
		return errors.New("DB_URL is a required configuration field")
	}
	if c.GithubToken == "" && c.GithubClientID == "" {
		return errors.New("one of GITHUB_TOKEN or GITHUB_CLIENT_ID must be set")
	}
	if c.FetchMaxRetries < 0 {
		return errors.New("FETCH_MAX_RETRIES must not be negative")
	}
	if c.FetchBackoffFactor <= 0 {
		return errors.New("FETCH_BACKOFF_FACTOR must be a positive duration")
	}
	if c.AuthMaxAttempts <= 0 {
		return errors.New("AUTH_MAX_ATTEMPTS must be positive")
	}
	if c.AuthTimeout <= 0 {
		return errors.New("AUTH_TIMEOUT must be a positive duration")
	}
	if c.CSVPath == "" {
		return errors.New("CSV_PATH must not be empty")
	}
	return nil
}
