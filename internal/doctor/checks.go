package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/julianknutsen/shellpipe/internal/config"
	"github.com/julianknutsen/shellpipe/internal/fsys"
	"github.com/julianknutsen/shellpipe/internal/shell"
)

// --- Config ---

// ConfigCheck reports whether the config file loaded. The load itself
// happens before the run so later checks can share the result.
type ConfigCheck struct {
	loadErr error
}

// NewConfigCheck creates a check reporting loadErr, the error (if any)
// from loading the config at CheckContext.ConfigPath.
func NewConfigCheck(loadErr error) *ConfigCheck {
	return &ConfigCheck{loadErr: loadErr}
}

// Name returns the check identifier.
func (c *ConfigCheck) Name() string { return "config" }

// Run reports the load outcome.
func (c *ConfigCheck) Run(ctx *CheckContext) *CheckResult {
	r := &CheckResult{Name: c.Name()}
	if c.loadErr != nil {
		r.Status = StatusError
		r.Message = c.loadErr.Error()
		r.FixHint = "fix the file, then run: shellpipe config show --validate"
		return r
	}
	r.Status = StatusOK
	if rev := config.Revision(fsys.OSFS{}, ctx.ConfigPath); rev != "" {
		r.Message = fmt.Sprintf("%s valid (revision %s)", ctx.ConfigPath, rev)
	} else {
		r.Message = "no config file, using built-in defaults"
		r.Details = []string{"create one with: shellpipe config init"}
	}
	return r
}

// CanFix returns false.
func (c *ConfigCheck) CanFix() bool { return false }

// Fix is a no-op.
func (c *ConfigCheck) Fix(_ *CheckContext) error { return nil }

// --- Interpreters ---

// InterpreterCheck verifies the interpreter for one session purpose is on
// PATH. A missing required interpreter is an error; a missing optional
// one is a warning.
type InterpreterCheck struct {
	Purpose  shell.Purpose
	Required bool
}

// Name returns the check identifier.
func (c *InterpreterCheck) Name() string { return string(c.Purpose) + "-interpreter" }

// Run resolves the configured command.
func (c *InterpreterCheck) Run(ctx *CheckContext) *CheckResult {
	r := &CheckResult{Name: c.Name()}
	prog, err := ctx.Config.Program(c.Purpose)
	if err != nil || len(prog.Command) == 0 {
		r.Status = StatusOK
		r.Message = "not configured"
		return r
	}
	r.Details = []string{"command: " + strings.Join(prog.Command, " ")}
	path, err := exec.LookPath(prog.Command[0])
	if err != nil {
		r.Status = StatusWarning
		if c.Required {
			r.Status = StatusError
		}
		r.Message = fmt.Sprintf("%s not found", prog.Command[0])
		r.FixHint = fmt.Sprintf("install %s or set [%s] command", prog.Command[0], c.Purpose)
		return r
	}
	if prog.Dir != "" {
		if fi, err := os.Stat(prog.Dir); err != nil || !fi.IsDir() {
			r.Status = StatusError
			r.Message = fmt.Sprintf("working directory %s missing", prog.Dir)
			return r
		}
	}
	r.Status = StatusOK
	r.Message = path
	return r
}

// CanFix returns false.
func (c *InterpreterCheck) CanFix() bool { return false }

// Fix is a no-op.
func (c *InterpreterCheck) Fix(_ *CheckContext) error { return nil }

// --- Directories ---

// DirCheck verifies that a directory shellpipe writes into exists and is
// writable. An empty path means the feature is disabled. Fixable by
// creating the directory.
type DirCheck struct {
	name string
	path func(*config.Config) string
}

// NewEventsDirCheck checks the directory holding the event log.
func NewEventsDirCheck() *DirCheck {
	return &DirCheck{name: "events-dir", path: func(c *config.Config) string {
		if c.Events.Path == "" {
			return ""
		}
		return filepath.Dir(c.Events.Path)
	}}
}

// NewLockDirCheck checks the spawn lock directory.
func NewLockDirCheck() *DirCheck {
	return &DirCheck{name: "lock-dir", path: func(c *config.Config) string {
		return c.Session.LockDir
	}}
}

// Name returns the check identifier.
func (c *DirCheck) Name() string { return c.name }

// Run checks existence and writability.
func (c *DirCheck) Run(ctx *CheckContext) *CheckResult {
	r := &CheckResult{Name: c.Name()}
	dir := c.path(ctx.Config)
	if dir == "" {
		r.Status = StatusOK
		r.Message = "disabled"
		return r
	}
	fi, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		r.Status = StatusWarning
		r.Message = fmt.Sprintf("%s missing (created on first use)", dir)
		return r
	case err != nil:
		r.Status = StatusError
		r.Message = err.Error()
		return r
	case !fi.IsDir():
		r.Status = StatusError
		r.Message = fmt.Sprintf("%s is not a directory", dir)
		return r
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		r.Status = StatusError
		r.Message = fmt.Sprintf("%s not writable: %v", dir, err)
		return r
	}
	f.Close()           //nolint:errcheck // probe file
	os.Remove(f.Name()) //nolint:errcheck // probe file
	r.Status = StatusOK
	r.Message = dir
	return r
}

// CanFix returns true; a missing directory is created.
func (c *DirCheck) CanFix() bool { return true }

// Fix creates the directory.
func (c *DirCheck) Fix(ctx *CheckContext) error {
	dir := c.path(ctx.Config)
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// --- Live probe ---

// SessionCheck starts a real session, runs one command through it, and
// closes it. It catches interpreters that exist but never print the
// startup token or mangle the completion records.
type SessionCheck struct {
	Purpose shell.Purpose
	// Timeout bounds the whole check. Zero means the configured startup
	// timeout plus five seconds.
	Timeout time.Duration
}

// Name returns the check identifier.
func (c *SessionCheck) Name() string { return string(c.Purpose) + "-session" }

// Run round-trips one command.
func (c *SessionCheck) Run(ctx *CheckContext) *CheckResult {
	r := &CheckResult{Name: c.Name()}
	sc, err := ctx.Config.SessionConfig(c.Purpose, nil, nil)
	if err != nil {
		r.Status = StatusError
		r.Message = err.Error()
		return r
	}
	// One attempt; retries would hide a flaky interpreter.
	sc.Retries = 0
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = sc.StartupTimeout + 5*time.Second
	}
	cctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	s, err := shell.Start(cctx, sc)
	if err != nil {
		r.Status = StatusError
		r.Message = fmt.Sprintf("start failed: %v", err)
		return r
	}
	defer func() {
		s.Close() //nolint:errcheck // Close never fails
		if s.Wait(cctx) != nil {
			s.Kill() //nolint:errcheck // best-effort
		}
	}()
	startup := time.Since(start)

	res, err := s.Exec(cctx, "echo doctor")
	switch {
	case err != nil:
		r.Status = StatusError
		r.Message = fmt.Sprintf("command failed: %v", err)
		return r
	case res.Terminated:
		r.Status = StatusError
		r.Message = "command terminated: " + res.Reason
		return r
	case res.ExitCode != 0 || len(res.Output) != 1 || res.Output[0] != "doctor":
		r.Status = StatusError
		r.Message = fmt.Sprintf("unexpected result: exit %d, output %q", res.ExitCode, res.Output)
		return r
	}
	r.Status = StatusOK
	r.Message = fmt.Sprintf("pid %d ready in %s", s.Pid(), startup.Round(time.Millisecond))
	r.Details = []string{fmt.Sprintf("round trip: %s", (time.Since(start) - startup).Round(time.Millisecond))}
	return r
}

// CanFix returns false.
func (c *SessionCheck) CanFix() bool { return false }

// Fix is a no-op.
func (c *SessionCheck) Fix(_ *CheckContext) error { return nil }
