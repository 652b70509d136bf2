package config

import (
	"strings"
	"testing"
	"time"

	mcerr "mcphub/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Mode != "ai" {
		t.Errorf("Mode = %q, want ai", cfg.Mode)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.BaseDelay != time.Second {
		t.Errorf("BaseDelay = %v, want 1s", cfg.BaseDelay)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
	if cfg.ConfigPath != "config.yaml" {
		t.Errorf("ConfigPath = %q", cfg.ConfigPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

// TestValidate_ErrorMessages verifies that Validate returns actionable
// error messages with hints.
func TestValidate_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string // substring expected in error
	}{
		{"empty mode", func(c *Config) { c.Mode = " " }, "hint:"},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, "max-retries=0: must be at least 1"},
		{"negative delay", func(c *Config) { c.BaseDelay = -time.Second }, "base-delay"},
		{"zero shutdown", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown-timeout"},
		{"negative interval", func(c *Config) { c.StatusInterval = -1 }, "use 0 to disable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !mcerr.IsConfig(err) {
				t.Errorf("error %T should be a config error", err)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestValidate_ClampsVerbosity(t *testing.T) {
	cfg := Default()
	cfg.Verbosity = 9
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Verbosity != 3 {
		t.Errorf("Verbosity = %d, want 3", cfg.Verbosity)
	}

	cfg.Verbosity = -2
	_ = cfg.Validate()
	if cfg.Verbosity != 0 {
		t.Errorf("Verbosity = %d, want 0", cfg.Verbosity)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"quiet", 0, true},
		{"ERROR", 0, true},
		{"info", 1, true},
		{"Warning", 1, true},
		{"verbose", 2, true},
		{" debug ", 3, true},
		{"trace", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseLogLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLogLevel(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
