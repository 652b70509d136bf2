package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcphub/internal/adapter"
	"mcphub/internal/lifecycle"
	"mcphub/internal/metrics"
	"mcphub/internal/modes"
	"mcphub/internal/registry"
	"mcphub/internal/status"
)

type fixture struct {
	manager *lifecycle.Manager
	out     *bytes.Buffer
	disp    *Dispatcher
}

func newFixture(t *testing.T, in io.Reader, sims map[string]adapter.SimConfig) *fixture {
	t.Helper()

	table, err := modes.New([]modes.Mode{
		{Name: "ai", Title: "Data Science / AI Research", ToolNames: []string{"ray", "openai"}},
		{Name: "notes", ToolNames: []string{"obsidian"}},
	})
	require.NoError(t, err)

	reg := registry.New()
	adapters := map[string]adapter.Adapter{}
	for _, name := range table.ToolNames() {
		require.NoError(t, reg.Register(name, "sim", ""))
		adapters[name] = adapter.NewSim(sims[name])
	}
	m, err := lifecycle.New(reg, table, adapters, lifecycle.Options{
		BaseDelay: time.Millisecond,
		Metrics:   metrics.New(),
	})
	require.NoError(t, err)

	if in == nil {
		in = strings.NewReader("")
	}
	out := &bytes.Buffer{}
	return &fixture{
		manager: m,
		out:     out,
		disp:    New(m, status.New(m, nil), in, out, nil),
	}
}

func (f *fixture) exec(t *testing.T, line string) string {
	t.Helper()
	f.out.Reset()
	assert.False(t, f.disp.Execute(context.Background(), line), "%q should not quit", line)
	return f.out.String()
}

func (f *fixture) status(t *testing.T, name string) registry.Status {
	t.Helper()
	tool, err := f.manager.Registry().Get(name)
	require.NoError(t, err)
	return tool.Status
}

func TestExecute_Blank(t *testing.T) {
	f := newFixture(t, nil, nil)
	assert.Empty(t, f.exec(t, "   \t "))
}

func TestExecute_Unknown(t *testing.T) {
	f := newFixture(t, nil, nil)
	out := f.exec(t, "launch ray")
	assert.Equal(t, "error: unknown command \"launch\" (type 'help' for a list)\n", out)
}

func TestExecute_Usage(t *testing.T) {
	tests := []struct {
		line, want string
	}{
		{"connect", "usage: connect <name>\n"},
		{"disconnect a b", "usage: disconnect <name>\n"},
		{"switch", "usage: switch <mode>\n"},
		{"status now", "usage: status\n"},
		{"health ray openai", "usage: health [name]\n"},
	}
	f := newFixture(t, nil, nil)
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.exec(t, tt.line), tt.line)
	}
}

func TestExecute_Quit(t *testing.T) {
	f := newFixture(t, nil, nil)
	for _, line := range []string{"quit", "exit", "q", "QUIT"} {
		assert.True(t, f.disp.Execute(context.Background(), line), line)
	}
}

func TestExecute_Help(t *testing.T) {
	f := newFixture(t, nil, nil)
	out := f.exec(t, "help")
	for _, name := range []string{"status", "tools", "connect <name>", "switch <mode>", "health [name]", "api", "quit (exit, q)"} {
		assert.Contains(t, out, name)
	}
}

func TestExecute_ConnectDisconnect(t *testing.T) {
	f := newFixture(t, nil, nil)

	assert.Equal(t, "ray: connected\n", f.exec(t, "connect ray"))
	assert.Equal(t, registry.Connected, f.status(t, "ray"))

	assert.Equal(t, "ray: disconnected\n", f.exec(t, "Disconnect ray"))
	assert.Equal(t, "ray: disconnected\n", f.exec(t, "disconnect ray"))

	assert.Equal(t, "error: unknown tool \"jupyter\"\n", f.exec(t, "connect jupyter"))
	assert.Equal(t, "error: unknown tool \"jupyter\"\n", f.exec(t, "disconnect jupyter"))
}

func TestExecute_ConnectFailure(t *testing.T) {
	f := newFixture(t, nil, map[string]adapter.SimConfig{"ray": {FailAlways: true}})

	out := f.exec(t, "connect ray")
	assert.True(t, strings.HasPrefix(out, "ray: error ("), out)
	assert.Contains(t, out, "giving up after 3 attempts")
	assert.Equal(t, registry.Error, f.status(t, "ray"))
}

func TestExecute_Switch(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, f.manager.Activate(ctx, "ai"))

	out := f.exec(t, "switch notes")
	assert.Equal(t, "mode notes: 1 connected, 0 error, 2 disconnected\n", out)
	assert.Equal(t, registry.Disconnected, f.status(t, "ray"))
	assert.Equal(t, registry.Disconnected, f.status(t, "openai"))
	assert.Equal(t, registry.Connected, f.status(t, "obsidian"))

	// Only the notes tools are live in the status table.
	out = f.exec(t, "status")
	assert.Regexp(t, `\*obsidian\s+sim\s+connected`, out)
	assert.Regexp(t, `ray\s+sim\s+disconnected`, out)
	assert.Regexp(t, `openai\s+sim\s+disconnected`, out)

	assert.Contains(t, f.exec(t, "switch gaming"), "error: unknown mode \"gaming\" (available: ai, notes)")
	mode, _ := f.manager.CurrentMode()
	assert.Equal(t, "notes", mode)
}

func TestExecute_Mode(t *testing.T) {
	f := newFixture(t, nil, nil)
	assert.Equal(t, "no mode selected\n", f.exec(t, "mode"))

	require.NoError(t, f.manager.Activate(context.Background(), "ai"))
	assert.Equal(t, "ai (Data Science / AI Research)\n", f.exec(t, "mode"))
}

func TestExecute_Modes(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, f.manager.Activate(context.Background(), "notes"))

	lines := strings.Split(strings.TrimRight(f.exec(t, "modes"), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, `^  ai\s+Data Science / AI Research\s+ray, openai$`, lines[0])
	assert.Regexp(t, `^\* notes\s+-\s+obsidian$`, lines[1])
}

func TestExecute_Tools(t *testing.T) {
	f := newFixture(t, nil, nil)
	out := f.exec(t, "tools")
	assert.Regexp(t, `ray\s+disconnected`, out)
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestExecute_Health(t *testing.T) {
	f := newFixture(t, nil, map[string]adapter.SimConfig{"openai": {Unhealthy: true}})

	assert.Equal(t, "no connected tools\n", f.exec(t, "health"))
	assert.Equal(t, "ray: unhealthy: not connected\n", f.exec(t, "health ray"))

	require.NoError(t, f.manager.Activate(context.Background(), "ai"))
	out := f.exec(t, "health")
	assert.Contains(t, out, "ray: ok\n")
	assert.Contains(t, out, "openai: unhealthy: simulated health failure\n")

	assert.Equal(t, "error: unknown tool \"nope\"\n", f.exec(t, "health nope"))
}

func TestExecute_API(t *testing.T) {
	f := newFixture(t, nil, map[string]adapter.SimConfig{"ray": {FailAlways: true}})
	assert.Equal(t, "no mode selected\n", f.exec(t, "api"))

	require.NoError(t, f.manager.Activate(context.Background(), "ai"))
	out := f.exec(t, "api")
	assert.Contains(t, out, "── openai ──\n")
	assert.Contains(t, out, "client.chat.completions.create(")
	assert.NotContains(t, out, "ray", "tools in error get no example")

	require.NoError(t, f.manager.Activate(context.Background(), "notes"))
	out = f.exec(t, "api")
	assert.Contains(t, out, "── obsidian ──\n")
	assert.Contains(t, out, "def read_note(path):")
	assert.NotContains(t, out, "openai", "only the current mode is shown")

	_ = f.exec(t, "disconnect obsidian")
	assert.Equal(t, "no connected tools in mode notes\n", f.exec(t, "api"))
}

func TestExecute_Metrics(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, f.manager.Activate(context.Background(), "ai"))

	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal([]byte(f.exec(t, "metrics")), &snap))
	assert.EqualValues(t, 2, snap.ConnectAttempts)
	assert.EqualValues(t, 2, snap.Connects)
	assert.EqualValues(t, 1, snap.ModeSwitches)
}

func TestExecute_Restart(t *testing.T) {
	f := newFixture(t, nil, nil)
	assert.Equal(t, "error: no mode selected\n", f.exec(t, "restart"))

	require.NoError(t, f.manager.Activate(context.Background(), "ai"))
	assert.Equal(t, "mode ai: 2 connected, 0 error, 1 disconnected\n", f.exec(t, "restart"))
}

func TestRun_Script(t *testing.T) {
	in := strings.NewReader("connect ray\nbogus\nconnect\ntools\nquit\nconnect openai\n")
	f := newFixture(t, in, nil)

	require.NoError(t, f.disp.Run(context.Background()))
	out := f.out.String()

	assert.Contains(t, out, "ray: connected\n")
	assert.Contains(t, out, "error: unknown command \"bogus\"")
	assert.Contains(t, out, "usage: connect <name>\n")
	assert.NotContains(t, out, "openai: connected", "nothing after quit runs")

	// Shutdown ran on exit.
	assert.Equal(t, registry.Disconnected, f.status(t, "ray"))
}

func TestRun_EOFShutsDown(t *testing.T) {
	f := newFixture(t, strings.NewReader("switch ai\n"), nil)
	require.NoError(t, f.disp.Run(context.Background()))

	assert.Equal(t, registry.Disconnected, f.status(t, "ray"))
	assert.Equal(t, registry.Disconnected, f.status(t, "openai"))
}

func TestRun_Cancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	f := newFixture(t, pr, nil)
	require.NoError(t, f.manager.Activate(context.Background(), "ai"))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.disp.Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, registry.Disconnected, f.status(t, "ray"))
}

func TestRun_Prompt(t *testing.T) {
	f := newFixture(t, strings.NewReader("mode\n"), nil)
	f.disp.SetPrompt("> ")
	require.NoError(t, f.disp.Run(context.Background()))
	assert.Equal(t, "> no mode selected\n> ", f.out.String())
}
