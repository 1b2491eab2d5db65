package doctor

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianknutsen/shellpipe/internal/config"
	"github.com/julianknutsen/shellpipe/internal/shell"
)

func defaultContext(t *testing.T) *CheckContext {
	t.Helper()
	cfg := config.Defaults()
	return &CheckContext{
		ConfigPath: filepath.Join(t.TempDir(), "shellpipe.toml"),
		Config:     &cfg,
	}
}

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not on PATH")
	}
}

// --- ConfigCheck ---

func TestConfigCheck_LoadError(t *testing.T) {
	ctx := defaultContext(t)
	r := NewConfigCheck(errors.New("parsing config: unknown keys: x")).Run(ctx)
	if r.Status != StatusError {
		t.Errorf("status = %d, want Error", r.Status)
	}
	if !strings.Contains(r.Message, "unknown keys") {
		t.Errorf("message = %q", r.Message)
	}
	if r.FixHint == "" {
		t.Error("missing fix hint")
	}
}

func TestConfigCheck_Defaults(t *testing.T) {
	ctx := defaultContext(t)
	r := NewConfigCheck(nil).Run(ctx)
	if r.Status != StatusOK {
		t.Errorf("status = %d, want OK", r.Status)
	}
	if !strings.Contains(r.Message, "built-in defaults") {
		t.Errorf("message = %q", r.Message)
	}
}

func TestConfigCheck_File(t *testing.T) {
	ctx := defaultContext(t)
	if err := os.WriteFile(ctx.ConfigPath, []byte("[session]\nretries = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewConfigCheck(nil).Run(ctx)
	if r.Status != StatusOK {
		t.Errorf("status = %d, want OK", r.Status)
	}
	if !strings.Contains(r.Message, "revision ") {
		t.Errorf("message = %q, want revision", r.Message)
	}
}

// --- InterpreterCheck ---

func TestInterpreterCheck_Found(t *testing.T) {
	requireSh(t)
	ctx := defaultContext(t)
	r := (&InterpreterCheck{Purpose: shell.PurposeShell, Required: true}).Run(ctx)
	if r.Status != StatusOK {
		t.Errorf("status = %d, want OK: %s", r.Status, r.Message)
	}
	if r.Name != "shell-interpreter" {
		t.Errorf("name = %q", r.Name)
	}
}

func TestInterpreterCheck_Missing(t *testing.T) {
	ctx := defaultContext(t)
	ctx.Config.Shell.Command = []string{"shellpipe-no-such-interpreter"}

	r := (&InterpreterCheck{Purpose: shell.PurposeShell, Required: true}).Run(ctx)
	if r.Status != StatusError {
		t.Errorf("required: status = %d, want Error", r.Status)
	}
	if !strings.Contains(r.FixHint, "[shell] command") {
		t.Errorf("hint = %q", r.FixHint)
	}

	ctx.Config.Privileged.Command = []string{"shellpipe-no-such-interpreter"}
	r = (&InterpreterCheck{Purpose: shell.PurposePrivileged}).Run(ctx)
	if r.Status != StatusWarning {
		t.Errorf("optional: status = %d, want Warning", r.Status)
	}
}

func TestInterpreterCheck_CustomUnset(t *testing.T) {
	ctx := defaultContext(t)
	r := (&InterpreterCheck{Purpose: shell.PurposeCustom}).Run(ctx)
	if r.Status != StatusOK || r.Message != "not configured" {
		t.Errorf("got %d %q, want OK not configured", r.Status, r.Message)
	}
}

func TestInterpreterCheck_MissingDir(t *testing.T) {
	requireSh(t)
	ctx := defaultContext(t)
	ctx.Config.Shell.Dir = filepath.Join(t.TempDir(), "gone")
	r := (&InterpreterCheck{Purpose: shell.PurposeShell, Required: true}).Run(ctx)
	if r.Status != StatusError {
		t.Errorf("status = %d, want Error", r.Status)
	}
}

// --- DirCheck ---

func TestEventsDirCheck_MissingThenFixed(t *testing.T) {
	ctx := defaultContext(t)
	dir := filepath.Join(t.TempDir(), "state")
	ctx.Config.Events.Path = filepath.Join(dir, "events.jsonl")

	c := NewEventsDirCheck()
	if r := c.Run(ctx); r.Status != StatusWarning {
		t.Fatalf("status = %d, want Warning", r.Status)
	}
	if !c.CanFix() {
		t.Fatal("CanFix = false")
	}
	if err := c.Fix(ctx); err != nil {
		t.Fatal(err)
	}
	if r := c.Run(ctx); r.Status != StatusOK {
		t.Errorf("after fix: status = %d, want OK: %s", r.Status, r.Message)
	}
	// The writability probe leaves nothing behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("dir has %d entries, want 0", len(entries))
	}
}

func TestEventsDirCheck_Disabled(t *testing.T) {
	ctx := defaultContext(t)
	ctx.Config.Events.Path = ""
	if r := NewEventsDirCheck().Run(ctx); r.Status != StatusOK || r.Message != "disabled" {
		t.Errorf("got %d %q", r.Status, r.Message)
	}
}

func TestLockDirCheck_NotADirectory(t *testing.T) {
	ctx := defaultContext(t)
	file := filepath.Join(t.TempDir(), "locks")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	ctx.Config.Session.LockDir = file
	r := NewLockDirCheck().Run(ctx)
	if r.Status != StatusError {
		t.Errorf("status = %d, want Error", r.Status)
	}
	if !strings.Contains(r.Message, "not a directory") {
		t.Errorf("message = %q", r.Message)
	}
}

// --- SessionCheck ---

func TestSessionCheck_RoundTrip(t *testing.T) {
	requireSh(t)
	ctx := defaultContext(t)
	r := (&SessionCheck{Purpose: shell.PurposeShell, Timeout: 10 * time.Second}).Run(ctx)
	if r.Status != StatusOK {
		t.Fatalf("status = %d, want OK: %s", r.Status, r.Message)
	}
	if !strings.Contains(r.Message, "ready in") {
		t.Errorf("message = %q", r.Message)
	}
}

func TestSessionCheck_StartFails(t *testing.T) {
	ctx := defaultContext(t)
	ctx.Config.Shell.Command = []string{"shellpipe-no-such-interpreter"}
	r := (&SessionCheck{Purpose: shell.PurposeShell, Timeout: 5 * time.Second}).Run(ctx)
	if r.Status != StatusError {
		t.Errorf("status = %d, want Error", r.Status)
	}
	if !strings.Contains(r.Message, "start failed") {
		t.Errorf("message = %q", r.Message)
	}
}
