// Package registry holds the set of known tools and their connection
// status.  It is the single owner of tool state: the lifecycle manager
// writes through SetStatus, SetStatusIf, Reset and SetRetryCount;
// everyone else reads copies.
package registry

import (
	"iter"
	"sync"
	"time"

	mcerr "mcphub/internal/errors"
)

// Status is a tool's position in the connection state machine.
type Status int

const (
	// Disconnected is the initial state of every registered tool.
	Disconnected Status = iota
	// Connecting means a connect sequence is in flight.
	Connecting
	// Connected means the adapter's Connect succeeded.
	Connected
	// Error means the last connect sequence exhausted its retries.
	Error
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Tool is one registered tool.  Values handed out by the registry are
// copies; mutating them has no effect on the registry.
type Tool struct {
	Name        string
	Kind        string
	Description string
	Status      Status
	RetryCount  int
	LastError   string
	ConnectedAt time.Time // zero unless Connected
}

// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
	now   func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
		now:   time.Now,
	}
}

// Register adds a tool in the Disconnected state.
func (r *Registry) Register(name, kind, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; ok {
		return &mcerr.DuplicateToolError{Name: name}
	}
	r.tools[name] = &Tool{Name: name, Kind: kind, Description: description}
	r.order = append(r.order, name)
	return nil
}

// Get returns a copy of the named tool.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return Tool{}, &mcerr.UnknownToolError{Name: name}
	}
	return *t, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// List returns a sequence over every tool in registration order.  The
// sequence is lazy and can be ranged over any number of times; each
// yielded Tool is a consistent copy taken under the read lock.
func (r *Registry) List() iter.Seq[Tool] {
	return func(yield func(Tool) bool) {
		for _, name := range r.Names() {
			t, err := r.Get(name)
			if err != nil {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// SetStatus moves the named tool to status and returns the status it
// had before.  A non-nil cause is recorded as LastError; entering
// Connected clears LastError and stamps ConnectedAt, leaving Connected
// clears ConnectedAt.
func (r *Registry) SetStatus(name string, status Status, cause error) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tools[name]
	if !ok {
		return Disconnected, &mcerr.UnknownToolError{Name: name}
	}
	prev := t.Status
	r.apply(t, status, cause)
	return prev, nil
}

// SetStatusIf moves the named tool to status only if it is currently in
// from.  It reports whether the change was made.
func (r *Registry) SetStatusIf(name string, from, status Status, cause error) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tools[name]
	if !ok {
		return false, &mcerr.UnknownToolError{Name: name}
	}
	if t.Status != from {
		return false, nil
	}
	r.apply(t, status, cause)
	return true, nil
}

// Reset returns the named tool to a fresh Disconnected state, dropping
// its last error and retry count, and returns the status it had before.
func (r *Registry) Reset(name string) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tools[name]
	if !ok {
		return Disconnected, &mcerr.UnknownToolError{Name: name}
	}
	prev := t.Status
	t.Status = Disconnected
	t.RetryCount = 0
	t.LastError = ""
	t.ConnectedAt = time.Time{}
	return prev, nil
}

func (r *Registry) apply(t *Tool, status Status, cause error) {
	t.Status = status
	switch status {
	case Connected:
		t.LastError = ""
		t.ConnectedAt = r.now()
	default:
		t.ConnectedAt = time.Time{}
		if cause != nil {
			t.LastError = cause.Error()
		}
	}
}

// SetRetryCount records the number of failed attempts in the current
// connect sequence.
func (r *Registry) SetRetryCount(name string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tools[name]
	if !ok {
		return &mcerr.UnknownToolError{Name: name}
	}
	t.RetryCount = n
	return nil
}
