// Package adapter defines the contract between the hub and the external
// systems it manages, plus the closed set of adapter kinds the hub can
// build.  Adding a kind means adding a case to New; there is no runtime
// plugin lookup.
//
// Adapters never hold hub status.  They report outcomes by returning
// errors, and the lifecycle manager performs the state transition.
package adapter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	mcerr "mcphub/internal/errors"
	"mcphub/util"
)

// Kind names an adapter implementation.
type Kind string

const (
	KindSim    Kind = "sim"    // simulated integration, no I/O
	KindSSH    Kind = "ssh"    // compute cluster head node over SSH
	KindOpenAI Kind = "openai" // OpenAI-compatible HTTP API
	KindVault  Kind = "vault"  // local note vault directory
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindSim, KindSSH, KindOpenAI, KindVault}
}

// Adapter is one external integration.  Implementations are sealed to
// this package.
type Adapter interface {
	// Kind reports which implementation this is.
	Kind() Kind

	// Connect establishes the connection.  It must honour ctx.
	Connect(ctx context.Context) error

	// Disconnect releases the connection.  Calling it on an adapter
	// that is not connected returns nil.
	Disconnect(ctx context.Context) error

	// Health probes a connected adapter without changing its state.
	Health(ctx context.Context) error

	sealed()
}

// Spec describes how to build one adapter.
type Spec struct {
	Name    string
	Kind    Kind
	Options map[string]string
}

// New builds the adapter described by spec.
func New(spec Spec, logger *util.Logger) (Adapter, error) {
	if logger == nil {
		logger = util.Discard()
	}
	opts := options(spec.Options)

	switch spec.Kind {
	case KindSim, "":
		cfg, err := simConfigFrom(opts)
		if err != nil {
			return nil, specError(spec, err)
		}
		return NewSim(cfg), nil
	case KindSSH:
		cfg, err := sshConfigFrom(opts)
		if err != nil {
			return nil, specError(spec, err)
		}
		return NewSSH(cfg, logger), nil
	case KindOpenAI:
		return NewOpenAI(openAIConfigFrom(opts), logger), nil
	case KindVault:
		return NewVault(vaultConfigFrom(opts), logger), nil
	default:
		names := make([]string, 0, len(Kinds()))
		for _, k := range Kinds() {
			names = append(names, string(k))
		}
		sort.Strings(names)
		return nil, &mcerr.ConfigError{
			Field:   "tools." + spec.Name + ".kind",
			Value:   spec.Kind,
			Message: "unknown adapter kind",
			Hint:    "use one of: " + strings.Join(names, ", "),
		}
	}
}

func specError(spec Spec, err error) error {
	return &mcerr.ConfigError{
		Field:   "tools." + spec.Name + ".options",
		Message: err.Error(),
	}
}

// ── option helpers ───────────────────────────────────────────────────

type options map[string]string

func (o options) str(key, def string) string {
	if v, ok := o[key]; ok && v != "" {
		return v
	}
	return def
}

func (o options) int(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func (o options) bool(key string) bool {
	v := strings.ToLower(o[key])
	return v == "1" || v == "true" || v == "yes"
}

func (o options) duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := o[key]
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
