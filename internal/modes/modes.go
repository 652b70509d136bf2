// Package modes implements the mode table: a static mapping from mode
// name to the ordered set of tools that mode activates.  The table is
// validated once when built and never mutated afterwards.
package modes

import (
	"fmt"
	"sort"

	mcerr "mcphub/internal/errors"
)

// Mode is one named, preconfigured set of tools.
type Mode struct {
	Name        string
	Title       string   // human-readable name, e.g. "Data Science / AI Research"
	Description string
	ToolNames   []string // activation order
}

// Table is an immutable mode table.  All methods are safe for
// concurrent use because nothing writes after New returns.
type Table struct {
	modes map[string]Mode
	order []string // definition order
}

// New validates defs and builds a table.  Tool name slices are copied,
// so later changes to defs do not leak into the table.
func New(defs []Mode) (*Table, error) {
	if len(defs) == 0 {
		return nil, &mcerr.ConfigError{
			Field:   "modes",
			Message: "no modes defined",
			Hint:    "add at least one entry under \"modes\" in the config file",
		}
	}

	t := &Table{modes: make(map[string]Mode, len(defs))}
	for _, d := range defs {
		if d.Name == "" {
			return nil, &mcerr.ConfigError{Field: "modes", Message: "mode with empty name"}
		}
		if _, dup := t.modes[d.Name]; dup {
			return nil, &mcerr.ConfigError{
				Field:   "modes." + d.Name,
				Message: "mode defined twice",
			}
		}
		if len(d.ToolNames) == 0 {
			return nil, &mcerr.ConfigError{
				Field:   "modes." + d.Name + ".tools",
				Message: "mode lists no tools",
			}
		}
		seen := make(map[string]bool, len(d.ToolNames))
		for _, name := range d.ToolNames {
			if name == "" {
				return nil, &mcerr.ConfigError{
					Field:   "modes." + d.Name + ".tools",
					Message: "empty tool name",
				}
			}
			if seen[name] {
				return nil, &mcerr.ConfigError{
					Field:   "modes." + d.Name + ".tools",
					Value:   name,
					Message: "tool listed twice",
				}
			}
			seen[name] = true
		}

		d.ToolNames = append([]string(nil), d.ToolNames...)
		t.modes[d.Name] = d
		t.order = append(t.order, d.Name)
	}
	return t, nil
}

// Resolve returns the ordered tool names of mode.
func (t *Table) Resolve(mode string) ([]string, error) {
	m, err := t.Get(mode)
	if err != nil {
		return nil, err
	}
	return m.ToolNames, nil
}

// Get returns the full definition of mode.
func (t *Table) Get(mode string) (Mode, error) {
	m, ok := t.modes[mode]
	if !ok {
		return Mode{}, &mcerr.UnknownModeError{Name: mode, Known: t.Names()}
	}
	m.ToolNames = append([]string(nil), m.ToolNames...)
	return m, nil
}

// Has reports whether mode is defined.
func (t *Table) Has(mode string) bool {
	_, ok := t.modes[mode]
	return ok
}

// Names returns the mode names sorted alphabetically.
func (t *Table) Names() []string {
	out := append([]string(nil), t.order...)
	sort.Strings(out)
	return out
}

// All returns every mode in definition order.
func (t *Table) All() []Mode {
	out := make([]Mode, 0, len(t.order))
	for _, name := range t.order {
		m, _ := t.Get(name)
		out = append(out, m)
	}
	return out
}

// ToolNames returns the union of every mode's tools, in first-seen
// order walking modes in definition order.
func (t *Table) ToolNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range t.order {
		for _, tool := range t.modes[name].ToolNames {
			if !seen[tool] {
				seen[tool] = true
				out = append(out, tool)
			}
		}
	}
	return out
}

// String renders the table as one line per mode, for usage text.
func (t *Table) String() string {
	var s string
	for _, m := range t.All() {
		s += fmt.Sprintf("  %-12s %v\n", m.Name, m.ToolNames)
	}
	return s
}
