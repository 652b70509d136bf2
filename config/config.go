// Package config defines the runtime configuration for mcphub and loads
// the mode table file.
package config

import (
	"strings"
	"time"

	mcerr "mcphub/internal/errors"
	"mcphub/util"
)

// Config holds every tuneable for a single hub run.  Values are layered:
// defaults, then the file's settings, then MCPHUB_* environment
// variables, then command-line flags.
type Config struct {
	// ── Startup ──────────────────────────────────────────────────────
	ConfigPath    string // mode table file
	Mode          string // initial mode
	NoInteractive bool

	// ── Lifecycle ────────────────────────────────────────────────────
	MaxRetries      int
	BaseDelay       time.Duration
	ShutdownTimeout time.Duration
	StatusInterval  time.Duration // 0 disables periodic status lines

	// ── Output ───────────────────────────────────────────────────────
	Verbosity int // util.LogQuiet .. util.LogDebug
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		ConfigPath:      DefaultConfigPath,
		Mode:            DefaultMode,
		MaxRetries:      DefaultMaxRetries,
		BaseDelay:       DefaultBaseDelay,
		ShutdownTimeout: DefaultShutdownTimeout,
		Verbosity:       int(util.LogNormal),
	}
}

// ParseLogLevel maps a level name to a verbosity.  Names are
// case-insensitive; "warning" and "info" both mean normal output.
func ParseLogLevel(s string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quiet", "error":
		return int(util.LogQuiet), true
	case "info", "warning", "warn", "normal":
		return int(util.LogNormal), true
	case "verbose":
		return int(util.LogVerbose), true
	case "debug":
		return int(util.LogDebug), true
	}
	return 0, false
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Errors are *errors.ConfigError with a hint where one helps.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Mode) == "" {
		return &mcerr.ConfigError{
			Field:   "mode",
			Message: "no mode selected",
			Hint:    "pass --mode <name>; 'modes' in the command loop lists them",
		}
	}
	if c.MaxRetries < 1 {
		return &mcerr.ConfigError{
			Field:   "max-retries",
			Value:   c.MaxRetries,
			Message: "must be at least 1",
			Hint:    "the count includes the first attempt; use 1 to disable retries",
		}
	}
	if c.BaseDelay <= 0 {
		return &mcerr.ConfigError{
			Field:   "base-delay",
			Value:   c.BaseDelay,
			Message: "must be positive",
			Hint:    "use a Go duration such as 500ms or 1s",
		}
	}
	if c.ShutdownTimeout <= 0 {
		return &mcerr.ConfigError{
			Field:   "shutdown-timeout",
			Value:   c.ShutdownTimeout,
			Message: "must be positive",
		}
	}
	if c.StatusInterval < 0 {
		return &mcerr.ConfigError{
			Field:   "status-interval",
			Value:   c.StatusInterval,
			Message: "must not be negative",
			Hint:    "use 0 to disable periodic status lines",
		}
	}
	if c.Verbosity < int(util.LogQuiet) {
		c.Verbosity = int(util.LogQuiet)
	}
	if c.Verbosity > int(util.LogDebug) {
		c.Verbosity = int(util.LogDebug)
	}
	return nil
}
