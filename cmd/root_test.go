package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcerr "mcphub/internal/errors"
)

const hubYAML = `
settings:
  base_delay: 1ms
  shutdown_timeout: 1s
tools:
  ray:     {kind: sim, options: {fail: "true"}}
  openai:  {kind: sim, options: {delay: 1ms}}
  obsidian: {kind: sim}
  zotero:  {kind: sim}
modes:
  ai:
    name: Data Science / AI Research
    tools: [ray, openai]
  notes:
    name: Notes
    tools: [obsidian, zotero]
`

type run struct {
	code int
	err  error
	out  string
	log  string
}

func execute(t *testing.T, stdin string, args ...string) run {
	t.Helper()
	var out, errb bytes.Buffer
	code, err := Execute(context.Background(), args, Streams{
		In:  strings.NewReader(stdin),
		Out: &out,
		Err: &errb,
	})
	return run{code: code, err: err, out: out.String(), log: errb.String()}
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(hubYAML), 0o600))
	return path
}

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	r := execute(t, "", "--version")
	require.NoError(t, r.err)
	assert.Equal(t, ExitOK, r.code)
	assert.Equal(t, "mcphub "+version+"\n", r.out)
}

func TestExecute_Help(t *testing.T) {
	for _, arg := range []string{"--help", "-h"} {
		t.Run(arg, func(t *testing.T) {
			r := execute(t, "", arg)
			require.NoError(t, r.err)
			assert.Equal(t, ExitOK, r.code)
			assert.Contains(t, r.out, "--no-interactive")
			assert.Contains(t, r.out, "switch <mode>")
		})
	}
}

// TestExecute_InvalidFlags verifies unknown flags produce an error.
func TestExecute_InvalidFlags(t *testing.T) {
	r := execute(t, "", "--nonexistent-flag")
	assert.Error(t, r.err)
	assert.Equal(t, ExitConfig, r.code)
}

func TestExecute_StrayArgument(t *testing.T) {
	r := execute(t, "", "ai")
	require.Error(t, r.err)
	assert.Equal(t, ExitConfig, r.code)
	assert.Contains(t, r.err.Error(), `unexpected argument "ai"`)
}

func TestExecute_NoInteractiveAllConnected(t *testing.T) {
	r := execute(t, "", "-c", writeConfig(t), "-m", "notes", "--no-interactive")
	require.NoError(t, r.err)
	assert.Equal(t, ExitOK, r.code)
	assert.Contains(t, r.out, "mode     notes (Notes)")
	assert.Contains(t, r.out, "*obsidian")
	assert.Contains(t, r.out, "*zotero")
	assert.NotContains(t, r.out, "error")
}

// TestExecute_NoInteractiveFailure covers exit code 2: ray never
// connects while openai does.
func TestExecute_NoInteractiveFailure(t *testing.T) {
	r := execute(t, "", "--config", writeConfig(t), "--no-interactive", "--max-retries", "2")
	require.NoError(t, r.err)
	assert.Equal(t, ExitFailed, r.code)

	var rayLine, openaiLine string
	for _, line := range strings.Split(r.out, "\n") {
		switch {
		case strings.HasPrefix(line, "*ray"):
			rayLine = line
		case strings.HasPrefix(line, "*openai"):
			openaiLine = line
		}
	}
	assert.Contains(t, rayLine, "error")
	assert.Contains(t, rayLine, "giving up after 2 attempts")
	assert.Contains(t, openaiLine, "connected")
	assert.Contains(t, r.log, "[ERR] ray:")
}

func TestExecute_UnknownMode(t *testing.T) {
	r := execute(t, "", "-c", writeConfig(t), "-m", "gaming", "--no-interactive")
	assert.Equal(t, ExitConfig, r.code)

	var um *mcerr.UnknownModeError
	require.ErrorAs(t, r.err, &um)
	assert.Contains(t, r.err.Error(), "available: ai, notes")
}

func TestExecute_MissingExplicitConfig(t *testing.T) {
	r := execute(t, "", "-c", filepath.Join(t.TempDir(), "nope.yaml"), "--no-interactive")
	assert.Equal(t, ExitConfig, r.code)
	assert.True(t, mcerr.IsConfig(r.err), "err = %v", r.err)
}

func TestExecute_MissingEnvConfig(t *testing.T) {
	t.Setenv("MCPHUB_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	r := execute(t, "", "--no-interactive")
	assert.Equal(t, ExitConfig, r.code)
	assert.True(t, mcerr.IsConfig(r.err), "err = %v", r.err)
}

func TestExecute_InvalidSetting(t *testing.T) {
	r := execute(t, "", "-c", writeConfig(t), "--max-retries", "0", "--no-interactive")
	assert.Equal(t, ExitConfig, r.code)
	assert.True(t, mcerr.IsConfig(r.err), "err = %v", r.err)
}

// TestExecute_Precedence checks that the environment overrides the
// default mode and a flag overrides the environment.
func TestExecute_Precedence(t *testing.T) {
	path := writeConfig(t)
	t.Setenv("MCPHUB_MODE", "notes")

	r := execute(t, "", "-c", path, "--no-interactive")
	assert.Equal(t, ExitOK, r.code, "env selects notes")
	assert.Contains(t, r.out, "mode     notes")

	r = execute(t, "", "-c", path, "-m", "ai", "--no-interactive")
	assert.Equal(t, ExitFailed, r.code, "flag selects ai")
	assert.Contains(t, r.out, "mode     ai")
}

func TestExecute_EnvConfigAndNoInteractive(t *testing.T) {
	t.Setenv("MCPHUB_CONFIG", writeConfig(t))
	t.Setenv("MCPHUB_NO_INTERACTIVE", "yes")
	t.Setenv("MCPHUB_MODE", "notes")

	r := execute(t, "")
	require.NoError(t, r.err)
	assert.Equal(t, ExitOK, r.code)
	assert.Contains(t, r.out, "*obsidian")
}

func TestExecute_BuiltInDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	r := execute(t, "", "-m", "writing", "--no-interactive", "--base-delay", "1ms")
	require.NoError(t, r.err)
	assert.Equal(t, ExitOK, r.code)
	assert.Contains(t, r.out, "AI-assisted Writing")
	assert.Contains(t, r.out, "*langchain")
	assert.Contains(t, r.log, "modes from built-in defaults")
}

func TestExecute_InteractiveScript(t *testing.T) {
	script := "mode\nswitch notes\ntools\nquit\n"
	r := execute(t, script, "-c", writeConfig(t), "-m", "notes")
	require.NoError(t, r.err)
	assert.Equal(t, ExitOK, r.code)
	assert.Contains(t, r.out, "notes (Notes)")
	assert.Contains(t, r.out, "mode notes: 2 connected, 0 error, 2 disconnected")
	assert.NotContains(t, r.out, "mcphub> ", "no prompt when input is not a terminal")
}

// TestExecute_InteractiveEOF verifies end of input behaves like quit.
func TestExecute_InteractiveEOF(t *testing.T) {
	r := execute(t, "status\n", "-c", writeConfig(t), "-m", "notes", "-q")
	require.NoError(t, r.err)
	assert.Equal(t, ExitOK, r.code)
	assert.Contains(t, r.out, "TOOL")
	assert.Empty(t, r.log, "quiet suppresses info lines")
}
