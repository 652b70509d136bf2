package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	mcerr "mcphub/internal/errors"
)

func TestRegister_InitialState(t *testing.T) {
	r := New()
	for _, name := range []string{"ray", "openai", "obsidian"} {
		if err := r.Register(name, "sim", ""); err != nil {
			t.Fatalf("Register(%q): %v", name, err)
		}
	}

	for tool := range r.List() {
		if tool.Status != Disconnected {
			t.Errorf("%s: status = %s, want disconnected", tool.Name, tool.Status)
		}
		if tool.RetryCount != 0 {
			t.Errorf("%s: retryCount = %d, want 0", tool.Name, tool.RetryCount)
		}
		if tool.LastError != "" {
			t.Errorf("%s: lastError = %q, want empty", tool.Name, tool.LastError)
		}
		if !tool.ConnectedAt.IsZero() {
			t.Errorf("%s: connectedAt should be zero", tool.Name)
		}
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := New()
	if err := r.Register("ray", "sim", ""); err != nil {
		t.Fatal(err)
	}
	err := r.Register("ray", "ssh", "")
	var dup *mcerr.DuplicateToolError
	if !mcerr.As(err, &dup) {
		t.Fatalf("expected DuplicateToolError, got %v", err)
	}
	if dup.Name != "ray" {
		t.Errorf("Name = %q", dup.Name)
	}
	got, _ := r.Get("ray")
	if got.Kind != "sim" {
		t.Errorf("duplicate registration overwrote kind: %q", got.Kind)
	}
}

func TestGet_Unknown(t *testing.T) {
	r := New()
	_, err := r.Get("nope")
	var unk *mcerr.UnknownToolError
	if !mcerr.As(err, &unk) {
		t.Fatalf("expected UnknownToolError, got %v", err)
	}
}

func TestList_OrderAndRestart(t *testing.T) {
	r := New()
	want := []string{"zotero", "ray", "openai"}
	for _, n := range want {
		_ = r.Register(n, "sim", "")
	}

	seq := r.List()
	for pass := 0; pass < 2; pass++ {
		var got []string
		for tool := range seq {
			got = append(got, tool.Name)
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("pass %d: got %v, want %v", pass, got, want)
		}
	}
}

func TestList_EarlyBreak(t *testing.T) {
	r := New()
	for _, n := range []string{"a", "b", "c"} {
		_ = r.Register(n, "sim", "")
	}
	n := 0
	for range r.List() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d, want 2", n)
	}
}

func TestList_ReturnsCopies(t *testing.T) {
	r := New()
	_ = r.Register("ray", "sim", "")
	for tool := range r.List() {
		tool.Status = Connected
	}
	got, _ := r.Get("ray")
	if got.Status != Disconnected {
		t.Error("mutating a listed copy changed the registry")
	}
}

func TestSetStatus_Transitions(t *testing.T) {
	r := New()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	_ = r.Register("ray", "sim", "")

	prev, err := r.SetStatus("ray", Connecting, nil)
	if err != nil || prev != Disconnected {
		t.Fatalf("SetStatus Connecting: prev=%s err=%v", prev, err)
	}

	prev, _ = r.SetStatus("ray", Error, fmt.Errorf("refused"))
	if prev != Connecting {
		t.Errorf("prev = %s, want connecting", prev)
	}
	got, _ := r.Get("ray")
	if got.LastError != "refused" {
		t.Errorf("LastError = %q", got.LastError)
	}

	_, _ = r.SetStatus("ray", Connected, nil)
	got, _ = r.Get("ray")
	if got.LastError != "" {
		t.Errorf("Connected should clear LastError, got %q", got.LastError)
	}
	if !got.ConnectedAt.Equal(fixed) {
		t.Errorf("ConnectedAt = %v, want %v", got.ConnectedAt, fixed)
	}

	_, _ = r.SetStatus("ray", Disconnected, nil)
	got, _ = r.Get("ray")
	if !got.ConnectedAt.IsZero() {
		t.Error("Disconnected should clear ConnectedAt")
	}
}

func TestSetStatusIf(t *testing.T) {
	r := New()
	_ = r.Register("ray", "sim", "")
	_, _ = r.SetStatus("ray", Connecting, nil)

	ok, err := r.SetStatusIf("ray", Connected, Disconnected, fmt.Errorf("late"))
	if err != nil || ok {
		t.Fatalf("SetStatusIf from wrong state: ok=%v err=%v", ok, err)
	}
	got, _ := r.Get("ray")
	if got.Status != Connecting || got.LastError != "" {
		t.Errorf("tool changed by a failed SetStatusIf: %+v", got)
	}

	_, _ = r.SetStatus("ray", Connected, nil)
	ok, _ = r.SetStatusIf("ray", Connected, Disconnected, fmt.Errorf("closed"))
	if !ok {
		t.Fatal("SetStatusIf from Connected should apply")
	}
	got, _ = r.Get("ray")
	if got.Status != Disconnected || got.LastError != "closed" || !got.ConnectedAt.IsZero() {
		t.Errorf("after SetStatusIf: %+v", got)
	}

	if _, err := r.SetStatusIf("x", Connected, Disconnected, nil); err == nil {
		t.Error("expected error for unknown tool")
	}
}

func TestReset(t *testing.T) {
	r := New()
	_ = r.Register("ray", "sim", "")
	_ = r.SetRetryCount("ray", 3)
	_, _ = r.SetStatus("ray", Error, fmt.Errorf("giving up"))

	prev, err := r.Reset("ray")
	if err != nil || prev != Error {
		t.Fatalf("Reset: prev=%s err=%v", prev, err)
	}
	got, _ := r.Get("ray")
	if got.Status != Disconnected || got.RetryCount != 0 || got.LastError != "" {
		t.Errorf("Reset left stale state: %+v", got)
	}

	if _, err := r.Reset("x"); err == nil {
		t.Error("expected error for unknown tool")
	}
}

func TestSetStatus_Unknown(t *testing.T) {
	r := New()
	if _, err := r.SetStatus("x", Connected, nil); err == nil {
		t.Error("expected error for unknown tool")
	}
	if err := r.SetRetryCount("x", 1); err == nil {
		t.Error("expected error for unknown tool")
	}
}

func TestRegistry_ConcurrentReadsAndWrites(t *testing.T) {
	r := New()
	_ = r.Register("ray", "sim", "")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = r.SetRetryCount("ray", i)
			_, _ = r.SetStatus("ray", Status(i%4), nil)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			for tool := range r.List() {
				if tool.Status == Connected && tool.ConnectedAt.IsZero() {
					t.Error("observed Connected without ConnectedAt")
					return
				}
			}
		}
	}()
	wg.Wait()
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Disconnected, "disconnected"},
		{Connecting, "connecting"},
		{Connected, "connected"},
		{Error, "error"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
