// Package status produces read-only snapshots of the hub and renders
// them for the command loop and the log.
package status

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"mcphub/internal/lifecycle"
	"mcphub/internal/registry"
	"mcphub/util"
)

// ToolStatus is one tool's row in a Snapshot.
type ToolStatus struct {
	Name        string
	Kind        string
	Description string
	Status      registry.Status
	RetryCount  int
	LastError   string
	ConnectedAt time.Time
	InMode      bool // listed by the current mode
}

// Snapshot is an immutable view of the hub at one instant.  Each tool
// row is internally consistent; rows are read one after another.
type Snapshot struct {
	Session   uuid.UUID
	Mode      string
	ModeTitle string
	HasMode   bool
	TakenAt   time.Time
	Tools     []ToolStatus
}

// Aggregator reads hub state through the lifecycle manager.  It never
// mutates anything.
type Aggregator struct {
	manager *lifecycle.Manager
	session uuid.UUID
	log     *util.Logger
	now     func() time.Time
}

// New returns an Aggregator with a fresh session ID.
func New(m *lifecycle.Manager, logger *util.Logger) *Aggregator {
	if logger == nil {
		logger = util.Discard()
	}
	return &Aggregator{
		manager: m,
		session: uuid.New(),
		log:     logger,
		now:     time.Now,
	}
}

// Session identifies this hub run in snapshots and log lines.
func (a *Aggregator) Session() uuid.UUID { return a.session }

// Snapshot captures the current mode and every registered tool.
func (a *Aggregator) Snapshot() Snapshot {
	s := Snapshot{Session: a.session, TakenAt: a.now()}

	inMode := map[string]bool{}
	if mode, ok := a.manager.CurrentMode(); ok {
		s.Mode, s.HasMode = mode, true
		if md, err := a.manager.Modes().Get(mode); err == nil {
			s.ModeTitle = md.Title
			for _, n := range md.ToolNames {
				inMode[n] = true
			}
		}
	}

	for t := range a.manager.Registry().List() {
		s.Tools = append(s.Tools, ToolStatus{
			Name:        t.Name,
			Kind:        t.Kind,
			Description: t.Description,
			Status:      t.Status,
			RetryCount:  t.RetryCount,
			LastError:   t.LastError,
			ConnectedAt: t.ConnectedAt,
			InMode:      inMode[t.Name],
		})
	}
	return s
}

// AllConnected reports whether a mode is active and every tool it lists
// is Connected.
func (s Snapshot) AllConnected() bool {
	if !s.HasMode {
		return false
	}
	for _, t := range s.Tools {
		if t.InMode && t.Status != registry.Connected {
			return false
		}
	}
	return true
}

// Failed returns the tools in Error, in registration order.
func (s Snapshot) Failed() []ToolStatus {
	var out []ToolStatus
	for _, t := range s.Tools {
		if t.Status == registry.Error {
			out = append(out, t)
		}
	}
	return out
}

// Counts tallies tools by status.
func (s Snapshot) Counts() map[registry.Status]int {
	c := make(map[registry.Status]int, 4)
	for _, t := range s.Tools {
		c[t.Status]++
	}
	return c
}

// Summary is a one-line description suitable for the log.
func (s Snapshot) Summary() string {
	mode := "none"
	if s.HasMode {
		mode = s.Mode
	}
	c := s.Counts()
	return fmt.Sprintf("mode %s: %d connected, %d error, %d disconnected",
		mode, c[registry.Connected], c[registry.Error], c[registry.Disconnected]+c[registry.Connecting])
}

// ── Rendering ────────────────────────────────────────────────────────

// WriteStatus renders the full snapshot as a table.
func WriteStatus(w io.Writer, s Snapshot) error {
	mode := "(none)"
	if s.HasMode {
		mode = s.Mode
		if s.ModeTitle != "" {
			mode += " (" + s.ModeTitle + ")"
		}
	}
	fmt.Fprintf(w, "session  %s\n", s.Session)
	fmt.Fprintf(w, "mode     %s\n", mode)
	fmt.Fprintf(w, "taken    %s\n\n", s.TakenAt.Format(util.TimestampFormat))

	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tKIND\tSTATUS\tRETRIES\tSINCE\tERROR")
	for _, t := range s.Tools {
		name := t.Name
		if t.InMode {
			name = "*" + name
		}
		since := "-"
		if !t.ConnectedAt.IsZero() {
			since = t.ConnectedAt.Format("15:04:05")
		}
		errMsg := "-"
		if t.LastError != "" {
			errMsg = oneLine(t.LastError)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			name, t.Kind, t.Status, t.RetryCount, since, errMsg)
	}
	return tw.Flush()
}

// WriteTools renders tool names and statuses only.
func WriteTools(w io.Writer, s Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	for _, t := range s.Tools {
		fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.Status)
	}
	return tw.Flush()
}

func oneLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// ── Periodic report ──────────────────────────────────────────────────

// Report logs a summary line every interval until ctx is done.  A
// non-positive interval disables reporting.
func (a *Aggregator) Report(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s := a.Snapshot()
			a.log.Info("status: %s", s.Summary())
			if !a.log.Enabled(util.LogVerbose) {
				continue
			}
			for _, t := range s.Failed() {
				a.log.Verbose("status: %s in error: %s", t.Name, t.LastError)
			}
		}
	}
}
