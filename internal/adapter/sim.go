package adapter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mcerr "mcphub/internal/errors"
	"mcphub/internal/retry"
)

// SimConfig controls a simulated adapter.  The zero value connects and
// disconnects instantly and never fails.
type SimConfig struct {
	ConnectDelay    time.Duration
	DisconnectDelay time.Duration

	// FailFirst makes the first N Connect calls fail.
	FailFirst int
	// FailAlways makes every Connect call fail.
	FailAlways bool
	// FailDisconnect makes Disconnect return an error.
	FailDisconnect bool
	// Unresponsive makes Disconnect ignore ctx while sleeping
	// DisconnectDelay, like a peer that never answers.
	Unresponsive bool
	// Unhealthy makes Health fail while connected.
	Unhealthy bool
}

// Sim is a simulated integration.  It stands in for tools whose real
// client lives outside the hub, and drives the lifecycle tests.
type Sim struct {
	cfg SimConfig

	attempts    atomic.Int64
	disconnects atomic.Int64

	mu        sync.Mutex
	connected bool
}

// NewSim returns a simulated adapter.
func NewSim(cfg SimConfig) *Sim {
	return &Sim{cfg: cfg}
}

func (s *Sim) Kind() Kind { return KindSim }
func (s *Sim) sealed()    {}

// Connect waits ConnectDelay and then succeeds or fails per the config.
func (s *Sim) Connect(ctx context.Context) error {
	n := s.attempts.Add(1)
	if err := retry.Sleep(ctx, s.cfg.ConnectDelay); err != nil {
		return err
	}
	if s.cfg.FailAlways || int(n) <= s.cfg.FailFirst {
		return fmt.Errorf("simulated connect failure (attempt %d)", n)
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

// Disconnect waits DisconnectDelay and clears the connection.
func (s *Sim) Disconnect(ctx context.Context) error {
	s.disconnects.Add(1)
	if s.cfg.Unresponsive {
		time.Sleep(s.cfg.DisconnectDelay)
	} else if err := retry.Sleep(ctx, s.cfg.DisconnectDelay); err != nil {
		return err
	}

	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()

	if s.cfg.FailDisconnect {
		return fmt.Errorf("simulated disconnect failure")
	}
	return nil
}

// Health reports whether the simulated connection is up.
func (s *Sim) Health(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return mcerr.ErrNotConnected
	}
	if s.cfg.Unhealthy {
		return fmt.Errorf("simulated health failure")
	}
	return nil
}

// Attempts returns how many times Connect has been called.
func (s *Sim) Attempts() int { return int(s.attempts.Load()) }

// Disconnects returns how many times Disconnect has been called.
func (s *Sim) Disconnects() int { return int(s.disconnects.Load()) }

func simConfigFrom(o options) (SimConfig, error) {
	var cfg SimConfig
	var err error
	if cfg.ConnectDelay, err = o.duration("delay", 0); err != nil {
		return cfg, err
	}
	if cfg.DisconnectDelay, err = o.duration("disconnect_delay", 0); err != nil {
		return cfg, err
	}
	if cfg.FailFirst, err = o.int("fail_first", 0); err != nil {
		return cfg, err
	}
	cfg.FailAlways = o.bool("fail")
	cfg.FailDisconnect = o.bool("fail_disconnect")
	cfg.Unhealthy = o.bool("unhealthy")
	return cfg, nil
}
