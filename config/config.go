// Package config loads statusaudit settings from defaults, an optional YAML
// file, STATUSAUDIT_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/lukemcguire/statusaudit/checker"
	"github.com/lukemcguire/statusaudit/obs"
)

var (
	// ErrNoInput is returned when a run has no URLs to check.
	ErrNoInput = errors.New("no URLs to check: pass them as arguments or with --input")
	// ErrInvalid is returned by Validate.
	ErrInvalid = errors.New("invalid configuration")
)

// HTTP holds the per-request settings.
type HTTP struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRedirects   int           `mapstructure:"max_redirects"`
	UserAgent      string        `mapstructure:"user_agent"`
	VerifyTLS      bool          `mapstructure:"verify_tls"`
}

// Output holds where the result table and reports go.
type Output struct {
	Dir  string `mapstructure:"dir"`
	JSON bool   `mapstructure:"json"`
	CSV  bool   `mapstructure:"csv"`
}

// Log holds the logger settings.
type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	Dir    string `mapstructure:"dir"`
}

// Config is the complete set of statusaudit settings.
type Config struct {
	RateLimit   int    `mapstructure:"rate_limit"`
	Input       string `mapstructure:"input"`
	HTTP        HTTP   `mapstructure:"http"`
	Output      Output `mapstructure:"output"`
	Log         Log    `mapstructure:"log"`
	MetricsFile string `mapstructure:"metrics_file"`
	Quiet       bool   `mapstructure:"quiet"`
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.RateLimit <= 0 {
		return fmt.Errorf("%w: rate_limit must be positive, got %d", ErrInvalid, c.RateLimit)
	}
	if c.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("%w: http.request_timeout must be positive, got %s", ErrInvalid, c.HTTP.RequestTimeout)
	}
	if c.HTTP.MaxRedirects <= 0 {
		return fmt.Errorf("%w: http.max_redirects must be positive, got %d", ErrInvalid, c.HTTP.MaxRedirects)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("%w: output.dir must not be empty", ErrInvalid)
	}
	if c.Output.JSON && c.Output.CSV {
		return fmt.Errorf("%w: output.json and output.csv are mutually exclusive", ErrInvalid)
	}
	return nil
}

// CheckerConfig returns the settings the checker needs.
func (c *Config) CheckerConfig() checker.Config {
	return checker.Config{
		RateLimit:          c.RateLimit,
		RequestTimeout:     c.HTTP.RequestTimeout,
		MaxRedirects:       c.HTTP.MaxRedirects,
		UserAgent:          c.HTTP.UserAgent,
		InsecureSkipVerify: !c.HTTP.VerifyTLS,
	}
}

// LogConfig returns the logger settings for the named application.
func (c *Config) LogConfig(app, version string) obs.LogConfig {
	return obs.LogConfig{
		Level:    c.Log.Level,
		Pretty:   c.Log.Pretty,
		App:      app,
		Ver:      version,
		ErrorDir: c.Log.Dir,
	}
}
