// Package lifecycle drives tool connections: mode activation, the
// per-tool connect sequence with retry and backoff, single-tool
// connect and disconnect, and bounded shutdown.
//
// The Manager is the only writer of tool status.  Top-level operations
// are serialised, so each tool has at most one sequence in flight.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mcphub/internal/adapter"
	mcerr "mcphub/internal/errors"
	"mcphub/internal/metrics"
	"mcphub/internal/modes"
	"mcphub/internal/registry"
	"mcphub/internal/retry"
	"mcphub/util"
)

// Defaults applied when an Options field is zero.
const (
	DefaultMaxRetries      = 3
	DefaultBaseDelay       = 1 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Options configures a Manager.
type Options struct {
	// MaxRetries is the number of connect attempts per sequence.
	MaxRetries int
	// BaseDelay is the wait after the first failed attempt; each further
	// failure doubles it.
	BaseDelay time.Duration
	// ShutdownTimeout bounds Shutdown.  Tools still connected when it
	// expires are marked Disconnected without waiting for the adapter.
	ShutdownTimeout time.Duration

	Logger  *util.Logger
	Metrics *metrics.Collector
}

func (o *Options) applyDefaults() {
	if o.MaxRetries < 1 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	if o.Logger == nil {
		o.Logger = util.Discard()
	}
}

// Manager owns the connection state of every registered tool.
type Manager struct {
	reg      *registry.Registry
	table    *modes.Table
	adapters map[string]adapter.Adapter
	opts     Options
	log      *util.Logger
	metrics  *metrics.Collector

	opMu sync.Mutex // serialises Activate, ConnectOne, DisconnectOne, Restart, Shutdown

	modeMu  sync.RWMutex
	mode    string
	hasMode bool

	// pending holds a channel per tool whose adapter Disconnect outlived
	// a shutdown timeout; it is closed when that call returns.
	pendMu  sync.Mutex
	pending map[string]chan struct{}
}

// New returns a Manager for the tools in reg.  Every registered tool
// needs an adapter, and every tool a mode names must be registered.
func New(reg *registry.Registry, table *modes.Table, adapters map[string]adapter.Adapter, opts Options) (*Manager, error) {
	for _, name := range reg.Names() {
		if _, ok := adapters[name]; !ok {
			return nil, &mcerr.ConfigError{
				Field:   "tools." + name,
				Message: "no adapter configured",
			}
		}
	}
	for _, md := range table.All() {
		for _, name := range md.ToolNames {
			if !reg.Has(name) {
				return nil, &mcerr.ConfigError{
					Field:   "modes." + md.Name + ".tools",
					Value:   name,
					Message: "tool is not registered",
				}
			}
		}
	}

	opts.applyDefaults()
	return &Manager{
		reg:      reg,
		table:    table,
		adapters: adapters,
		opts:     opts,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		pending:  make(map[string]chan struct{}),
	}, nil
}

// Registry returns the registry the manager writes to.
func (m *Manager) Registry() *registry.Registry { return m.reg }

// Modes returns the mode table.
func (m *Manager) Modes() *modes.Table { return m.table }

// Metrics returns the collector, which may be nil.
func (m *Manager) Metrics() *metrics.Collector { return m.metrics }

// Options returns the effective options after defaults.
func (m *Manager) Options() Options { return m.opts }

// CurrentMode returns the active mode name and whether one is set.
func (m *Manager) CurrentMode() (string, bool) {
	m.modeMu.RLock()
	defer m.modeMu.RUnlock()
	return m.mode, m.hasMode
}

func (m *Manager) setMode(name string) {
	m.modeMu.Lock()
	m.mode = name
	m.hasMode = true
	m.modeMu.Unlock()
}

// ── Activation ───────────────────────────────────────────────────────

// Activate makes mode the current mode.  Connected tools outside the
// mode are disconnected, failed ones are reset to Disconnected, and
// every tool in the mode that is not yet Connected runs a connect
// sequence.  Sequences run concurrently and Activate returns once all
// have finished, so no tool is left Connecting.
//
// Per-tool failures are recorded in the registry, not returned.
func (m *Manager) Activate(ctx context.Context, mode string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.activate(ctx, mode)
}

func (m *Manager) activate(ctx context.Context, mode string) error {
	names, err := m.table.Resolve(mode)
	if err != nil {
		return err
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	prev, had := m.CurrentMode()
	if had && prev != mode {
		m.log.Info("switching mode %s -> %s", prev, mode)
	} else {
		m.log.Info("activating mode %s (%d tools)", mode, len(names))
	}

	var leave errgroup.Group
	for t := range m.reg.List() {
		if want[t.Name] {
			continue
		}
		switch t.Status {
		case registry.Connected:
			leave.Go(func() error {
				if err := m.disconnect(ctx, t.Name); err != nil {
					m.log.Warn("%v", err)
				}
				return nil
			})
		case registry.Error:
			m.reset(t.Name)
		}
	}
	_ = leave.Wait()

	var join errgroup.Group
	for _, name := range names {
		t, err := m.reg.Get(name)
		if err != nil {
			return err
		}
		if t.Status == registry.Connected {
			continue
		}
		join.Go(func() error {
			_ = m.connect(ctx, name)
			return nil
		})
	}
	_ = join.Wait()

	m.setMode(mode)
	m.metrics.ModeSwitch()

	connected := 0
	for _, name := range names {
		if t, err := m.reg.Get(name); err == nil && t.Status == registry.Connected {
			connected++
		}
	}
	m.log.Info("mode %s active: %d/%d tools connected", mode, connected, len(names))

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("activating %s: %w", mode, err)
	}
	return nil
}

// ── Single tool ──────────────────────────────────────────────────────

// ConnectOne runs a connect sequence for one tool.  A Connected tool is
// left alone; a tool in Error is retried from scratch.  The outcome is
// recorded in the registry; only an unknown name is returned as an
// error.
func (m *Manager) ConnectOne(ctx context.Context, name string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	t, err := m.reg.Get(name)
	if err != nil {
		return err
	}
	if t.Status == registry.Connected {
		return nil
	}
	_ = m.connect(ctx, name)
	return nil
}

// DisconnectOne disconnects one tool.  It is a no-op for a tool that is
// not Connected.  A failing adapter still leaves the tool Disconnected;
// the failure is returned as a *DisconnectFailure.
func (m *Manager) DisconnectOne(ctx context.Context, name string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if _, err := m.reg.Get(name); err != nil {
		return err
	}
	return m.disconnect(ctx, name)
}

// connect runs one connect sequence and returns its terminal error, or
// nil when the tool ends Connected.
func (m *Manager) connect(ctx context.Context, name string) error {
	a := m.adapters[name]
	m.awaitDisconnect(ctx, name)

	m.transition(name, registry.Connecting, nil)
	_ = m.reg.SetRetryCount(name, 0)

	var last error
	b := &retry.Backoff{
		BaseDelay:   m.opts.BaseDelay,
		MaxAttempts: m.opts.MaxRetries,
		OnFailure: func(failures int, err error, next time.Duration) {
			last = err
			_ = m.reg.SetRetryCount(name, failures)
			m.metrics.ConnectFailed(name, err)
			if next > 0 {
				m.log.Verbose("%v; retrying in %s", err, next)
			} else {
				m.log.Verbose("%v", err)
			}
		},
	}

	err := b.Do(ctx, func(attempt int) error {
		m.metrics.ConnectAttempt()
		m.log.Debug("%s: connect attempt %d/%d", name, attempt, m.opts.MaxRetries)
		err := a.Connect(ctx)
		if err == nil {
			return nil
		}
		cf := &mcerr.ConnectFailure{Tool: name, Attempt: attempt, Err: err}
		if retry.IsPermanent(err) {
			return retry.Permanent(cf)
		}
		return cf
	})
	if err == nil {
		m.transition(name, registry.Connected, nil)
		m.metrics.Connected()
		return nil
	}

	var cause error
	switch {
	case ctx.Err() != nil:
		cause = fmt.Errorf("%s: connect cancelled: %w", name, ctx.Err())
	default:
		t, _ := m.reg.Get(name)
		if last == nil {
			last = err
		}
		cause = &mcerr.RetriesExhausted{Tool: name, Attempts: t.RetryCount, Err: last}
	}
	m.transition(name, registry.Error, cause)
	m.metrics.RetriesExhausted()
	return cause
}

// disconnect makes a single Disconnect attempt on a Connected tool.
func (m *Manager) disconnect(ctx context.Context, name string) error {
	t, err := m.reg.Get(name)
	if err != nil {
		return err
	}
	if t.Status != registry.Connected {
		return nil
	}

	var cause error
	if err := m.adapters[name].Disconnect(ctx); err != nil {
		cause = &mcerr.DisconnectFailure{Tool: name, Err: err}
		m.metrics.DisconnectFailed(name, err)
	}
	// A shutdown timeout may already have moved the tool on; only a
	// tool still Connected is marked Disconnected here.
	if ok, _ := m.reg.SetStatusIf(name, registry.Connected, registry.Disconnected, cause); ok {
		m.logTransition(name, registry.Connected, registry.Disconnected, cause)
		m.metrics.Disconnected()
	}
	return cause
}

// reset returns a failed tool to a fresh Disconnected state.
func (m *Manager) reset(name string) {
	prev, err := m.reg.Reset(name)
	if err != nil {
		m.log.Error("%v", err)
		return
	}
	m.logTransition(name, prev, registry.Disconnected, nil)
}

// transition sets the status and logs one line per change.
func (m *Manager) transition(name string, to registry.Status, cause error) registry.Status {
	prev, err := m.reg.SetStatus(name, to, cause)
	if err != nil {
		m.log.Error("%v", err)
		return prev
	}
	m.logTransition(name, prev, to, cause)
	return prev
}

func (m *Manager) logTransition(name string, prev, to registry.Status, cause error) {
	if prev == to {
		return
	}
	switch {
	case to == registry.Error:
		m.log.Warn("%s: %s -> %s: %v", name, prev, to, cause)
	case cause != nil:
		m.log.Info("%s: %s -> %s: %v", name, prev, to, cause)
	default:
		m.log.Info("%s: %s -> %s", name, prev, to)
	}
}

// ── Health ───────────────────────────────────────────────────────────

// Health probes a Connected tool.  It never changes status.
func (m *Manager) Health(ctx context.Context, name string) error {
	t, err := m.reg.Get(name)
	if err != nil {
		return err
	}
	if t.Status != registry.Connected {
		return fmt.Errorf("%s: %w", name, mcerr.ErrNotConnected)
	}
	err = m.adapters[name].Health(ctx)
	m.metrics.HealthCheck(err != nil)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// ── Restart / shutdown ───────────────────────────────────────────────

// Restart shuts every tool down and activates the current mode again.
func (m *Manager) Restart(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	mode, ok := m.CurrentMode()
	if !ok {
		return mcerr.ErrNoMode
	}
	m.log.Info("restarting mode %s", mode)
	if err := m.shutdown(ctx); err != nil {
		m.log.Warn("%v", err)
	}
	return m.activate(ctx, mode)
}

// Shutdown disconnects every Connected tool concurrently, one attempt
// each.  It ignores cancellation of ctx and is bounded by the shutdown
// timeout instead; tools whose adapters have not returned by then are
// marked Disconnected and ErrShutdownTimeout is returned.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.shutdown(ctx)
}

func (m *Manager) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.ShutdownTimeout)
	defer cancel()

	var live []string
	for t := range m.reg.List() {
		if t.Status == registry.Connected {
			live = append(live, t.Name)
		}
	}
	if len(live) == 0 {
		return nil
	}
	m.log.Info("shutting down %d tools", len(live))

	for _, name := range live {
		m.markPending(name)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		for _, name := range live {
			g.Go(func() error {
				defer m.clearPending(name)
				if err := m.disconnect(ctx, name); err != nil {
					m.log.Warn("%v", err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	for _, name := range live {
		if ok, _ := m.reg.SetStatusIf(name, registry.Connected, registry.Disconnected, mcerr.ErrShutdownTimeout); ok {
			m.logTransition(name, registry.Connected, registry.Disconnected, mcerr.ErrShutdownTimeout)
			m.metrics.Disconnected()
		}
	}
	return fmt.Errorf("%w after %s", mcerr.ErrShutdownTimeout, m.opts.ShutdownTimeout)
}

// ── Pending disconnects ──────────────────────────────────────────────

func (m *Manager) markPending(name string) {
	m.pendMu.Lock()
	m.pending[name] = make(chan struct{})
	m.pendMu.Unlock()
}

func (m *Manager) clearPending(name string) {
	m.pendMu.Lock()
	if ch, ok := m.pending[name]; ok {
		close(ch)
		delete(m.pending, name)
	}
	m.pendMu.Unlock()
}

// awaitDisconnect blocks until an abandoned Disconnect on name returns,
// so Connect and Disconnect never overlap on one adapter.
func (m *Manager) awaitDisconnect(ctx context.Context, name string) {
	m.pendMu.Lock()
	ch, ok := m.pending[name]
	m.pendMu.Unlock()
	if !ok {
		return
	}

	m.log.Verbose("%s: waiting for previous disconnect", name)
	select {
	case <-ch:
	case <-ctx.Done():
	}
}
