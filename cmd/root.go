// Package cmd wires up the CLI flags, loads the mode table, and runs the
// hub until the command loop ends.
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"

	"mcphub/config"
	"mcphub/internal/dispatch"
	"mcphub/internal/lifecycle"
	"mcphub/internal/metrics"
	"mcphub/internal/status"
	"mcphub/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X mcphub/cmd.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Process exit codes.
const (
	ExitOK     = 0 // clean exit, or every tool connected
	ExitConfig = 1 // configuration or startup error
	ExitFailed = 2 // --no-interactive and a tool ended in error
)

// Streams are the standard streams of a run.  Commands are read from In;
// status tables and command output go to Out; log lines go to Err.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// flagValues holds raw flag values.  Only flags the user actually set
// are applied on top of the file and environment.
type flagValues struct {
	configPath      string
	mode            string
	noInteractive   bool
	maxRetries      int
	baseDelay       time.Duration
	shutdownTimeout time.Duration
	statusInterval  time.Duration
	verbose         int
	quiet           bool
}

// Execute parses args and runs the hub.  It returns the process exit
// code; a non-nil error is the reason for a non-zero code.
func Execute(ctx context.Context, args []string, s Streams) (int, error) {
	var fv flagValues
	fs := flag.NewFlagSet("mcphub", flag.ContinueOnError)
	fs.SetOutput(s.Err)

	// ── startup ──────────────────────────────────────────────────
	fs.StringVarP(&fv.configPath, "config", "c", config.DefaultConfigPath, "Mode table file (YAML or JSON)")
	fs.StringVarP(&fv.mode, "mode", "m", config.DefaultMode, "Mode to activate at startup")
	fs.BoolVar(&fv.noInteractive, "no-interactive", false, "Activate, print status, and exit")

	// ── lifecycle ────────────────────────────────────────────────
	fs.IntVar(&fv.maxRetries, "max-retries", config.DefaultMaxRetries, "Connect attempts per tool")
	fs.DurationVar(&fv.baseDelay, "base-delay", config.DefaultBaseDelay, "Backoff after the first failed attempt (doubles each retry)")
	fs.DurationVar(&fv.shutdownTimeout, "shutdown-timeout", config.DefaultShutdownTimeout, "Time allowed for disconnecting on exit")
	fs.DurationVar(&fv.statusInterval, "status-interval", 0, "Log a status summary this often (0 disables)")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&fv.verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&fv.quiet, "quiet", "q", false, "Log errors only")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(s.Err, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return ExitConfig, err
	}
	if showHelp {
		printUsage(s.Out, fs)
		return ExitOK, nil
	}
	if showVersion {
		fmt.Fprintf(s.Out, "mcphub %s\n", version)
		return ExitOK, nil
	}
	if fs.NArg() > 0 {
		return ExitConfig, fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}

	// ── configuration ────────────────────────────────────────────
	cfg, file, err := loadConfig(fs, &fv)
	if err != nil {
		return ExitConfig, err
	}

	logger := util.NewLogger(cfg.Verbosity)
	logger.SetOutput(s.Err)

	hub, err := file.Build(logger)
	if err != nil {
		return ExitConfig, err
	}
	if _, err := hub.Modes.Resolve(cfg.Mode); err != nil {
		return ExitConfig, err
	}

	mgr, err := lifecycle.New(hub.Registry, hub.Modes, hub.Adapters, lifecycle.Options{
		MaxRetries:      cfg.MaxRetries,
		BaseDelay:       cfg.BaseDelay,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
		Metrics:         metrics.New(),
	})
	if err != nil {
		return ExitConfig, err
	}
	agg := status.New(mgr, logger)
	logger.SetSession(agg.Session().String())

	source := file.Path
	if source == "" {
		source = "built-in defaults"
	}
	logger.Info("mcphub %s session %s (modes from %s)", version, agg.Session(), source)

	// ── activate ─────────────────────────────────────────────────
	if err := mgr.Activate(ctx, cfg.Mode); err != nil {
		if serr := mgr.Shutdown(ctx); serr != nil {
			logger.Warn("shutdown: %v", serr)
		}
		return ExitConfig, err
	}

	if cfg.NoInteractive {
		return runOnce(ctx, mgr, agg, s.Out, logger), nil
	}

	// ── interactive ──────────────────────────────────────────────
	rctx, stop := context.WithCancel(ctx)
	defer stop()
	go agg.Report(rctx, cfg.StatusInterval)

	d := dispatch.New(mgr, agg, s.In, s.Out, logger)
	if err := d.Run(ctx); err != nil {
		logger.Warn("shutdown: %v", err)
	}
	return ExitOK, nil
}

// runOnce prints the status table after activation and shuts down.
func runOnce(ctx context.Context, mgr *lifecycle.Manager, agg *status.Aggregator, out io.Writer, logger *util.Logger) int {
	snap := agg.Snapshot()
	if err := status.WriteStatus(out, snap); err != nil {
		logger.Warn("writing status: %v", err)
	}

	code := ExitOK
	if !snap.AllConnected() {
		code = ExitFailed
		for _, t := range snap.Failed() {
			logger.Error("%s: %s", t.Name, t.LastError)
		}
	}

	if err := mgr.Shutdown(ctx); err != nil {
		logger.Warn("shutdown: %v", err)
	}
	return code
}

// ── helpers ──────────────────────────────────────────────────────────

// loadConfig layers defaults, file settings, environment, and the flags
// the user set, in that order.
func loadConfig(fs *flag.FlagSet, fv *flagValues) (*config.Config, *config.File, error) {
	cfg := config.Default()

	path, explicit := cfg.ConfigPath, false
	if p, ok := config.ConfigPathFromEnv(); ok {
		path, explicit = p, true
	}
	if fs.Changed("config") {
		path, explicit = fv.configPath, true
	}

	file, err := config.Locate(path, explicit)
	if err != nil {
		return nil, nil, err
	}
	file.Settings.ApplyTo(cfg)
	config.LoadFromEnv(cfg)
	cfg.ConfigPath = path
	if file.Path != "" {
		cfg.ConfigPath = file.Path
	}

	if fs.Changed("mode") {
		cfg.Mode = fv.mode
	}
	if fs.Changed("no-interactive") {
		cfg.NoInteractive = fv.noInteractive
	}
	if fs.Changed("max-retries") {
		cfg.MaxRetries = fv.maxRetries
	}
	if fs.Changed("base-delay") {
		cfg.BaseDelay = fv.baseDelay
	}
	if fs.Changed("shutdown-timeout") {
		cfg.ShutdownTimeout = fv.shutdownTimeout
	}
	if fs.Changed("status-interval") {
		cfg.StatusInterval = fv.statusInterval
	}
	if fv.verbose > 0 {
		cfg.Verbosity = int(util.LogNormal) + fv.verbose
	}
	if fv.quiet {
		cfg.Verbosity = int(util.LogQuiet)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, file, nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `mcphub – MCP tool hub v%s

Connects the tools of one mode concurrently, retrying each with
exponential backoff, then reads commands until quit or end of input.

Usage:
  mcphub [options]

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Commands:
  status, tools, connect <name>, disconnect <name>, switch <mode>,
  mode, modes, health [name], api, metrics, restart, help, quit

Examples:
  mcphub                                   Activate "ai" and open the prompt
  mcphub -m notes --no-interactive         Connect, print status, exit
  mcphub -c lab.yaml --max-retries 5 -vv   Custom table, verbose log
  echo "status" | mcphub -m writing        Scripted session
`)
}
