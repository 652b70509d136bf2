package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file settings  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the MCPHUB_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Unparseable values
// are ignored.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty,
// parseable env vars override the existing value.  Call it after the
// file settings are applied and before CLI flags.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("MCPHUB_CONFIG"); v != "" {
		cfg.ConfigPath = v
	}
	if v := os.Getenv("MCPHUB_MODE"); v != "" {
		cfg.Mode = v
	}
	if envBool("MCPHUB_NO_INTERACTIVE") {
		cfg.NoInteractive = true
	}

	// Lifecycle
	if v, ok := envInt("MCPHUB_MAX_RETRIES"); ok {
		cfg.MaxRetries = v
	}
	if v, ok := envDuration("MCPHUB_BASE_DELAY"); ok {
		cfg.BaseDelay = v
	}
	if v, ok := envDuration("MCPHUB_SHUTDOWN_TIMEOUT"); ok {
		cfg.ShutdownTimeout = v
	}
	if v, ok := envDuration("MCPHUB_STATUS_INTERVAL"); ok {
		cfg.StatusInterval = v
	}

	// Output
	if v := os.Getenv("MCPHUB_VERBOSE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Verbosity = n
		} else if n, ok := ParseLogLevel(v); ok {
			cfg.Verbosity = n
		}
	}
}

// ConfigPathFromEnv returns MCPHUB_CONFIG, if set.
func ConfigPathFromEnv() (string, bool) {
	v := os.Getenv("MCPHUB_CONFIG")
	return v, v != ""
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

// envDuration accepts Go durations ("1.5s") or bare seconds ("2").
func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	if sec, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(sec * float64(time.Second)), true
	}
	return 0, false
}
