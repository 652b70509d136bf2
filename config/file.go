package config

// file.go - the mode table file.
//
// The file is YAML; JSON is accepted as the YAML subset it is.  Mode
// and tool order in the file is preserved: it decides registration
// order, and so the order of every status listing.

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"mcphub/internal/adapter"
	mcerr "mcphub/internal/errors"
	"mcphub/internal/modes"
	"mcphub/internal/registry"
	"mcphub/util"
)

// File is a parsed mode table file.
type File struct {
	Path     string // empty for the built-in DefaultFile
	Settings Settings
	Tools    []ToolDef
	Modes    []modes.Mode
}

// Settings are the optional lifecycle settings of a file.  Nil fields
// leave the current value alone.
type Settings struct {
	MaxRetries      *int           `yaml:"max_retries"`
	BaseDelay       *time.Duration `yaml:"base_delay"`
	ShutdownTimeout *time.Duration `yaml:"shutdown_timeout"`
	StatusInterval  *time.Duration `yaml:"status_interval"`
	LogLevel        string         `yaml:"log_level"`
}

// ToolDef declares how to build one tool's adapter.
type ToolDef struct {
	Name        string
	Kind        adapter.Kind
	Description string
	Options     map[string]string
}

type rawFile struct {
	Settings Settings  `yaml:"settings"`
	Tools    yaml.Node `yaml:"tools"`
	Modes    yaml.Node `yaml:"modes"`
}

type rawTool struct {
	Kind        string            `yaml:"kind"`
	Description string            `yaml:"description"`
	Options     map[string]string `yaml:"options"`
}

type rawMode struct {
	Name        string   `yaml:"name"` // human-readable; the key is the mode name
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools"`
}

// ── Loading ──────────────────────────────────────────────────────────

// Locate loads the mode table.  An explicit path must exist.  Otherwise
// DefaultConfigPath and FallbackConfigPath are tried in turn, and when
// neither exists the built-in DefaultFile is used.
func Locate(path string, explicit bool) (*File, error) {
	if explicit {
		return LoadFile(path)
	}
	for _, p := range []string{path, FallbackConfigPath} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return Parse([]byte(DefaultFile))
}

// LoadFile reads and parses the file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &mcerr.ConfigError{
				Field:   "config",
				Value:   path,
				Message: "file not found",
				Hint:    "pass --config <file> or create " + DefaultConfigPath,
			}
		}
		return nil, &mcerr.ConfigError{Field: "config", Value: path, Message: err.Error()}
	}

	f, err := Parse(data)
	if err != nil {
		var ce *mcerr.ConfigError
		if errors.As(err, &ce) && ce.Field == "config" {
			ce.Value = path
		}
		return nil, err
	}
	f.Path = path
	return f, nil
}

// Parse decodes a mode table document.
func Parse(data []byte) (*File, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &mcerr.ConfigError{
			Field:   "config",
			Message: err.Error(),
			Hint:    "the file must be YAML or JSON with a \"modes\" mapping",
		}
	}

	f := &File{Settings: raw.Settings}
	if lvl := f.Settings.LogLevel; lvl != "" {
		if _, ok := ParseLogLevel(lvl); !ok {
			return nil, &mcerr.ConfigError{
				Field:   "settings.log_level",
				Value:   lvl,
				Message: "unknown level",
				Hint:    "use one of: quiet, info, verbose, debug",
			}
		}
	}

	tools, err := mapping(&raw.Tools, "tools")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(tools))
	for _, kv := range tools {
		name := kv[0].Value
		if name == "" {
			return nil, &mcerr.ConfigError{Field: "tools", Message: "tool with empty name"}
		}
		if seen[name] {
			return nil, &mcerr.ConfigError{Field: "tools." + name, Message: "tool declared twice"}
		}
		seen[name] = true

		var rt rawTool
		if err := kv[1].Decode(&rt); err != nil {
			return nil, &mcerr.ConfigError{Field: "tools." + name, Message: err.Error()}
		}
		f.Tools = append(f.Tools, ToolDef{
			Name:        name,
			Kind:        adapter.Kind(rt.Kind),
			Description: rt.Description,
			Options:     rt.Options,
		})
	}

	defs, err := mapping(&raw.Modes, "modes")
	if err != nil {
		return nil, err
	}
	for _, kv := range defs {
		var rm rawMode
		if err := kv[1].Decode(&rm); err != nil {
			return nil, &mcerr.ConfigError{Field: "modes." + kv[0].Value, Message: err.Error()}
		}
		title := rm.Title
		if title == "" {
			title = rm.Name
		}
		f.Modes = append(f.Modes, modes.Mode{
			Name:        kv[0].Value,
			Title:       title,
			Description: rm.Description,
			ToolNames:   rm.Tools,
		})
	}
	return f, nil
}

// mapping returns the key/value pairs of a mapping node in document
// order.  A missing node yields no pairs.
func mapping(n *yaml.Node, field string) ([][2]*yaml.Node, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, nil
		}
	case yaml.MappingNode:
		out := make([][2]*yaml.Node, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			out = append(out, [2]*yaml.Node{n.Content[i], n.Content[i+1]})
		}
		return out, nil
	}
	return nil, &mcerr.ConfigError{
		Field:   field,
		Message: fmt.Sprintf("must be a mapping (line %d)", n.Line),
	}
}

// ApplyTo copies the set fields onto cfg.
func (s Settings) ApplyTo(cfg *Config) {
	if s.MaxRetries != nil {
		cfg.MaxRetries = *s.MaxRetries
	}
	if s.BaseDelay != nil {
		cfg.BaseDelay = *s.BaseDelay
	}
	if s.ShutdownTimeout != nil {
		cfg.ShutdownTimeout = *s.ShutdownTimeout
	}
	if s.StatusInterval != nil {
		cfg.StatusInterval = *s.StatusInterval
	}
	if n, ok := ParseLogLevel(s.LogLevel); ok {
		cfg.Verbosity = n
	}
}

// ── Building the hub ─────────────────────────────────────────────────

// Hub is the static half of a running hub: the mode table, the tool
// registry in its initial state, and one adapter per tool.
type Hub struct {
	Modes    *modes.Table
	Registry *registry.Registry
	Adapters map[string]adapter.Adapter
}

// Build validates the mode table and constructs every adapter.  Tools
// are registered in the order modes first mention them, followed by
// declared tools no mode uses.  A tool a mode names but the file does
// not declare is built from the catalog as a simulated adapter.
func (f *File) Build(logger *util.Logger) (*Hub, error) {
	table, err := modes.New(f.Modes)
	if err != nil {
		return nil, err
	}

	declared := make(map[string]ToolDef, len(f.Tools))
	for _, td := range f.Tools {
		declared[td.Name] = td
	}

	names := table.ToolNames()
	used := make(map[string]bool, len(names))
	for _, n := range names {
		used[n] = true
	}
	for _, td := range f.Tools {
		if !used[td.Name] {
			names = append(names, td.Name)
		}
	}

	hub := &Hub{
		Modes:    table,
		Registry: registry.New(),
		Adapters: make(map[string]adapter.Adapter, len(names)),
	}
	for _, name := range names {
		spec := adapter.CatalogSpec(name)
		desc, _ := adapter.Describe(name)
		if td, ok := declared[name]; ok {
			spec = adapter.Spec{Name: name, Kind: td.Kind, Options: td.Options}
			if td.Description != "" {
				desc = td.Description
			}
		}
		if spec.Kind == "" {
			spec.Kind = adapter.KindSim
		}

		a, err := adapter.New(spec, logger)
		if err != nil {
			return nil, err
		}
		if err := hub.Registry.Register(name, string(spec.Kind), desc); err != nil {
			return nil, err
		}
		hub.Adapters[name] = a
	}
	return hub, nil
}
