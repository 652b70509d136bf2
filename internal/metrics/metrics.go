// Package metrics counts connection lifecycle events for a hub session.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks lifecycle counters for one hub session.
type Collector struct {
	attempts         atomic.Int64
	failures         atomic.Int64
	connects         atomic.Int64
	disconnects      atomic.Int64
	disconnectErrors atomic.Int64
	exhausted        atomic.Int64
	modeSwitches     atomic.Int64
	healthChecks     atomic.Int64
	healthFailures   atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
	lastErrorOf  string
}

// New creates a collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connect sequence ─────────────────────────────────────────────────

// ConnectAttempt records one call to an adapter's Connect.
func (c *Collector) ConnectAttempt() {
	if c == nil {
		return
	}
	c.attempts.Add(1)
}

// ConnectFailed records a failed attempt.
func (c *Collector) ConnectFailed(tool string, err error) {
	if c == nil {
		return
	}
	c.failures.Add(1)
	c.recordError(tool, err)
}

// Connected records a sequence that ended Connected.
func (c *Collector) Connected() {
	if c == nil {
		return
	}
	c.connects.Add(1)
}

// RetriesExhausted records a sequence that ended in Error.
func (c *Collector) RetriesExhausted() {
	if c == nil {
		return
	}
	c.exhausted.Add(1)
}

// ── Disconnect ───────────────────────────────────────────────────────

// Disconnected records a tool leaving Connected.
func (c *Collector) Disconnected() {
	if c == nil {
		return
	}
	c.disconnects.Add(1)
}

// DisconnectFailed records an adapter Disconnect that returned an error.
func (c *Collector) DisconnectFailed(tool string, err error) {
	if c == nil {
		return
	}
	c.disconnectErrors.Add(1)
	c.recordError(tool, err)
}

// ── Modes and health ─────────────────────────────────────────────────

// ModeSwitch records a completed activation.
func (c *Collector) ModeSwitch() {
	if c == nil {
		return
	}
	c.modeSwitches.Add(1)
}

// HealthCheck records one probe and whether it failed.
func (c *Collector) HealthCheck(failed bool) {
	if c == nil {
		return
	}
	c.healthChecks.Add(1)
	if failed {
		c.healthFailures.Add(1)
	}
}

func (c *Collector) recordError(tool string, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = err.Error()
	c.lastErrorOf = tool
	c.mu.Unlock()
}

// ── Accessors ────────────────────────────────────────────────────────

// Attempts returns the total number of connect attempts.
func (c *Collector) Attempts() int64 {
	if c == nil {
		return 0
	}
	return c.attempts.Load()
}

// Failures returns the total number of failed connect attempts.
func (c *Collector) Failures() int64 {
	if c == nil {
		return 0
	}
	return c.failures.Load()
}

// Connects returns how many sequences ended Connected.
func (c *Collector) Connects() int64 {
	if c == nil {
		return 0
	}
	return c.connects.Load()
}

// Exhausted returns how many sequences ended in Error.
func (c *Collector) Exhausted() int64 {
	if c == nil {
		return 0
	}
	return c.exhausted.Load()
}

// Disconnects returns how many tools left Connected.
func (c *Collector) Disconnects() int64 {
	if c == nil {
		return 0
	}
	return c.disconnects.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all counters.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	ConnectAttempts  int64  `json:"connect_attempts"`
	ConnectFailures  int64  `json:"connect_failures"`
	Connects         int64  `json:"connects"`
	RetriesExhausted int64  `json:"retries_exhausted"`
	Disconnects      int64  `json:"disconnects"`
	DisconnectErrors int64  `json:"disconnect_errors"`
	ModeSwitches     int64  `json:"mode_switches"`
	HealthChecks     int64  `json:"health_checks"`
	HealthFailures   int64  `json:"health_failures"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorTool    string `json:"last_error_tool,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:           time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectAttempts:  c.attempts.Load(),
		ConnectFailures:  c.failures.Load(),
		Connects:         c.connects.Load(),
		RetriesExhausted: c.exhausted.Load(),
		Disconnects:      c.disconnects.Load(),
		DisconnectErrors: c.disconnectErrors.Load(),
		ModeSwitches:     c.modeSwitches.Load(),
		HealthChecks:     c.healthChecks.Load(),
		HealthFailures:   c.healthFailures.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorTool = c.lastErrorOf
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
