// Package dispatch implements the interactive command loop: one command
// per input line, mapped onto lifecycle and status calls.
package dispatch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"mcphub/internal/adapter"
	mcerr "mcphub/internal/errors"
	"mcphub/internal/lifecycle"
	"mcphub/internal/registry"
	"mcphub/internal/status"
	"mcphub/util"
)

// DefaultPrompt is printed before each command when input is a terminal.
const DefaultPrompt = "mcphub> "

// command is one entry in the dispatch table.
type command struct {
	name    string
	aliases []string
	args    string // usage suffix, e.g. "<name>"
	minArgs int
	maxArgs int
	help    string
	run     func(ctx context.Context, args []string) (quit bool)
}

// Dispatcher reads commands from in and writes results to out.  Errors
// from commands are printed; none of them end the loop.
type Dispatcher struct {
	manager *lifecycle.Manager
	agg     *status.Aggregator
	in      io.Reader
	out     io.Writer
	log     *util.Logger
	prompt  string

	commands map[string]*command
	order    []*command
}

// New returns a Dispatcher.  The prompt is enabled only when in is a
// terminal.
func New(m *lifecycle.Manager, agg *status.Aggregator, in io.Reader, out io.Writer, logger *util.Logger) *Dispatcher {
	if logger == nil {
		logger = util.Discard()
	}
	d := &Dispatcher{
		manager:  m,
		agg:      agg,
		in:       in,
		out:      out,
		log:      logger,
		commands: make(map[string]*command),
	}
	if isTerminal(in) {
		d.prompt = DefaultPrompt
	}
	d.register()
	return d
}

// SetPrompt overrides the prompt.  An empty string disables it.
func (d *Dispatcher) SetPrompt(p string) { d.prompt = p }

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (d *Dispatcher) register() {
	for _, c := range []*command{
		{name: "help", help: "show this list", run: d.cmdHelp},
		{name: "status", help: "show mode and every tool's status", run: d.cmdStatus},
		{name: "tools", help: "list tool names and statuses", run: d.cmdTools},
		{name: "connect", args: "<name>", minArgs: 1, maxArgs: 1, help: "connect one tool (retries a failed tool)", run: d.cmdConnect},
		{name: "disconnect", args: "<name>", minArgs: 1, maxArgs: 1, help: "disconnect one tool", run: d.cmdDisconnect},
		{name: "switch", args: "<mode>", minArgs: 1, maxArgs: 1, help: "activate another mode", run: d.cmdSwitch},
		{name: "mode", help: "show the current mode", run: d.cmdMode},
		{name: "modes", help: "list the available modes", run: d.cmdModes},
		{name: "health", args: "[name]", maxArgs: 1, help: "probe one or every connected tool", run: d.cmdHealth},
		{name: "api", help: "show usage examples for the current mode's connected tools", run: d.cmdAPI},
		{name: "metrics", help: "show lifecycle counters as JSON", run: d.cmdMetrics},
		{name: "restart", help: "disconnect everything and reactivate the current mode", run: d.cmdRestart},
		{name: "quit", aliases: []string{"exit", "q"}, help: "disconnect everything and exit", run: d.cmdQuit},
	} {
		d.order = append(d.order, c)
		d.commands[c.name] = c
		for _, a := range c.aliases {
			d.commands[a] = c
		}
	}
}

// ── Loop ─────────────────────────────────────────────────────────────

// Run executes commands until quit, end of input, or ctx is done, then
// shuts the hub down.  The returned error comes from the shutdown.
func (d *Dispatcher) Run(ctx context.Context) error {
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(d.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		if err := sc.Err(); err != nil {
			d.log.Warn("reading commands: %v", err)
		}
	}()

loop:
	for {
		d.printPrompt()
		select {
		case <-ctx.Done():
			fmt.Fprintln(d.out)
			d.log.Info("interrupted")
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if d.Execute(ctx, line) {
				break loop
			}
		}
	}

	return d.manager.Shutdown(ctx)
}

func (d *Dispatcher) printPrompt() {
	if d.prompt != "" {
		fmt.Fprint(d.out, d.prompt)
	}
}

// Execute runs one command line and reports whether it asked to quit.
// Blank lines are ignored.
func (d *Dispatcher) Execute(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	c, ok := d.commands[name]
	if !ok {
		d.errorf("unknown command %q (type 'help' for a list)", fields[0])
		return false
	}
	if len(args) < c.minArgs || len(args) > c.maxArgs {
		fmt.Fprintf(d.out, "usage: %s\n", c.usage())
		return false
	}
	return c.run(ctx, args)
}

func (c *command) usage() string {
	if c.args == "" {
		return c.name
	}
	return c.name + " " + c.args
}

func (d *Dispatcher) errorf(format string, args ...interface{}) {
	fmt.Fprintf(d.out, "error: "+format+"\n", args...)
}

// ── Commands ─────────────────────────────────────────────────────────

func (d *Dispatcher) cmdHelp(_ context.Context, _ []string) bool {
	tw := tabwriter.NewWriter(d.out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "Commands:")
	for _, c := range d.order {
		use := c.usage()
		if len(c.aliases) > 0 {
			use += " (" + strings.Join(c.aliases, ", ") + ")"
		}
		fmt.Fprintf(tw, "  %s\t%s\n", use, c.help)
	}
	tw.Flush()
	return false
}

func (d *Dispatcher) cmdStatus(_ context.Context, _ []string) bool {
	if err := status.WriteStatus(d.out, d.agg.Snapshot()); err != nil {
		d.errorf("%v", err)
	}
	return false
}

func (d *Dispatcher) cmdTools(_ context.Context, _ []string) bool {
	if err := status.WriteTools(d.out, d.agg.Snapshot()); err != nil {
		d.errorf("%v", err)
	}
	return false
}

func (d *Dispatcher) cmdConnect(ctx context.Context, args []string) bool {
	if err := d.manager.ConnectOne(ctx, args[0]); err != nil {
		d.errorf("%v", err)
		return false
	}
	d.printTool(args[0])
	return false
}

func (d *Dispatcher) cmdDisconnect(ctx context.Context, args []string) bool {
	if err := d.manager.DisconnectOne(ctx, args[0]); err != nil {
		d.errorf("%v", err)
		var unknown *mcerr.UnknownToolError
		if mcerr.As(err, &unknown) {
			return false
		}
	}
	d.printTool(args[0])
	return false
}

func (d *Dispatcher) printTool(name string) {
	t, err := d.manager.Registry().Get(name)
	if err != nil {
		d.errorf("%v", err)
		return
	}
	if t.Status == registry.Error && t.LastError != "" {
		fmt.Fprintf(d.out, "%s: %s (%s)\n", t.Name, t.Status, t.LastError)
		return
	}
	fmt.Fprintf(d.out, "%s: %s\n", t.Name, t.Status)
}

func (d *Dispatcher) cmdSwitch(ctx context.Context, args []string) bool {
	if err := d.manager.Activate(ctx, args[0]); err != nil {
		d.errorf("%v", err)
		return false
	}
	fmt.Fprintln(d.out, d.agg.Snapshot().Summary())
	return false
}

func (d *Dispatcher) cmdMode(_ context.Context, _ []string) bool {
	mode, ok := d.manager.CurrentMode()
	if !ok {
		fmt.Fprintln(d.out, mcerr.ErrNoMode)
		return false
	}
	if md, err := d.manager.Modes().Get(mode); err == nil && md.Title != "" {
		fmt.Fprintf(d.out, "%s (%s)\n", mode, md.Title)
		return false
	}
	fmt.Fprintln(d.out, mode)
	return false
}

func (d *Dispatcher) cmdModes(_ context.Context, _ []string) bool {
	current, _ := d.manager.CurrentMode()
	all := d.manager.Modes().All()
	sort.SliceStable(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	tw := tabwriter.NewWriter(d.out, 0, 2, 2, ' ', 0)
	for _, md := range all {
		mark := " "
		if md.Name == current {
			mark = "*"
		}
		title := md.Title
		if title == "" {
			title = "-"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\n", mark, md.Name, title, strings.Join(md.ToolNames, ", "))
	}
	tw.Flush()
	return false
}

func (d *Dispatcher) cmdHealth(ctx context.Context, args []string) bool {
	var names []string
	if len(args) == 1 {
		names = args
	} else {
		for t := range d.manager.Registry().List() {
			if t.Status == registry.Connected {
				names = append(names, t.Name)
			}
		}
		if len(names) == 0 {
			fmt.Fprintln(d.out, "no connected tools")
			return false
		}
	}

	for _, name := range names {
		if err := d.manager.Health(ctx, name); err != nil {
			var unknown *mcerr.UnknownToolError
			if mcerr.As(err, &unknown) {
				d.errorf("%v", err)
				continue
			}
			cause := mcerr.Unwrap(err)
			if cause == nil {
				cause = err
			}
			fmt.Fprintf(d.out, "%s: unhealthy: %v\n", name, cause)
			continue
		}
		fmt.Fprintf(d.out, "%s: ok\n", name)
	}
	return false
}

func (d *Dispatcher) cmdAPI(_ context.Context, _ []string) bool {
	mode, ok := d.manager.CurrentMode()
	if !ok {
		fmt.Fprintln(d.out, mcerr.ErrNoMode)
		return false
	}
	names, err := d.manager.Modes().Resolve(mode)
	if err != nil {
		d.errorf("%v", err)
		return false
	}

	shown := 0
	for _, name := range names {
		t, err := d.manager.Registry().Get(name)
		if err != nil || t.Status != registry.Connected {
			continue
		}
		shown++
		example, ok := adapter.Example(name)
		if !ok {
			fmt.Fprintf(d.out, "%s: no usage example\n", name)
			continue
		}
		fmt.Fprintf(d.out, "── %s ──\n%s\n\n", name, example)
	}
	if shown == 0 {
		fmt.Fprintf(d.out, "no connected tools in mode %s\n", mode)
	}
	return false
}

func (d *Dispatcher) cmdMetrics(_ context.Context, _ []string) bool {
	fmt.Fprintln(d.out, d.manager.Metrics().JSON())
	return false
}

func (d *Dispatcher) cmdRestart(ctx context.Context, _ []string) bool {
	if err := d.manager.Restart(ctx); err != nil {
		d.errorf("%v", err)
		return false
	}
	fmt.Fprintln(d.out, d.agg.Snapshot().Summary())
	return false
}

func (d *Dispatcher) cmdQuit(_ context.Context, _ []string) bool {
	return true
}
