// Package errors provides domain-specific error types for mcphub.
//
// These types carry structured context (tool, mode, attempt) that lets
// callers decide how to handle a failure: configuration errors are fatal
// at startup, lifecycle failures are folded into a tool's status, and
// command-line errors are rendered and ignored.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNoMode          = errors.New("no mode selected")
	ErrNotConnected    = errors.New("not connected")
	ErrShutdownTimeout = errors.New("shutdown timed out")
)

// ── Registry / mode table errors ─────────────────────────────────────

// DuplicateToolError is returned when a tool name is registered twice.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// UnknownToolError is returned when a tool name is not in the registry.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// UnknownModeError is returned when a mode is not in the mode table.
// Known lists the defined modes so the message can suggest one.
type UnknownModeError struct {
	Name  string
	Known []string
}

func (e *UnknownModeError) Error() string {
	msg := fmt.Sprintf("unknown mode %q", e.Name)
	if len(e.Known) > 0 {
		known := append([]string(nil), e.Known...)
		sort.Strings(known)
		msg += " (available: " + strings.Join(known, ", ") + ")"
	}
	return msg
}

// ── Lifecycle errors ─────────────────────────────────────────────────

// ConnectFailure is a single failed connect attempt.  The lifecycle
// manager retries these up to its configured limit.
type ConnectFailure struct {
	Tool    string
	Attempt int // 1-based
	Err     error
}

func (e *ConnectFailure) Error() string {
	return fmt.Sprintf("connect %s (attempt %d): %v", e.Tool, e.Attempt, e.Err)
}

func (e *ConnectFailure) Unwrap() error { return e.Err }

// RetriesExhausted is the terminal outcome of a connect sequence whose
// every attempt failed.  Err is the last attempt's failure.
type RetriesExhausted struct {
	Tool     string
	Attempts int
	Err      error
}

func (e *RetriesExhausted) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Tool, e.Attempts, e.Err)
}

func (e *RetriesExhausted) Unwrap() error { return e.Err }

// DisconnectFailure is a failed disconnect.  It is logged and never
// retried; the tool is still considered disconnected.
type DisconnectFailure struct {
	Tool string
	Err  error
}

func (e *DisconnectFailure) Error() string {
	return fmt.Sprintf("disconnect %s: %v", e.Tool, e.Err)
}

func (e *DisconnectFailure) Unwrap() error { return e.Err }

// ── Configuration errors ─────────────────────────────────────────────

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field or flag name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: %s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Classification helpers ───────────────────────────────────────────

// IsConfig reports whether err should abort startup: configuration
// errors and mode/registry lookups made while building the hub.
func IsConfig(err error) bool {
	if err == nil {
		return false
	}
	var (
		ce *ConfigError
		dt *DuplicateToolError
		ut *UnknownToolError
		um *UnknownModeError
	)
	return errors.As(err, &ce) || errors.As(err, &dt) ||
		errors.As(err, &ut) || errors.As(err, &um)
}

// Cause returns the innermost adapter error of a lifecycle failure, or
// err itself when it is not one of the lifecycle types.
func Cause(err error) error {
	for {
		switch e := err.(type) {
		case *ConnectFailure:
			err = e.Err
		case *RetriesExhausted:
			err = e.Err
		case *DisconnectFailure:
			err = e.Err
		default:
			return err
		}
	}
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use mcphub/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
