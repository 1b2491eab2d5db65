// Package shell runs a single long-lived command interpreter (sh, su, or
// any program that reads commands on stdin) and multiplexes many
// asynchronous commands over it.
//
// Every command written to the process is followed by a synthetic
//
//	echo '<marker>' <seq> $?
//
// line. The reader goroutine splits the merged stdout/stderr stream on
// that marker and completes commands strictly in the order they were
// written, accepting a completion record only when its sequence id is the
// one it expects next. A writer goroutine owns stdin; a reader goroutine
// owns the output pipe; callers only touch the queue, under one mutex.
//
// [Start] spawns the process and runs a readiness probe before any
// command is accepted. [Registry] keeps at most one live session per
// [Purpose].
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/julianknutsen/shellpipe/internal/events"
	"github.com/julianknutsen/shellpipe/internal/telemetry"
)

// Defaults applied by [Start]: DefaultStartupTimeout when StartupTimeout
// is not positive, DefaultRetries when Retries is negative (zero means a
// single attempt), and DefaultCapacity when Capacity is below 4.
const (
	DefaultStartupTimeout = 25 * time.Second
	DefaultRetries        = 3
	DefaultCapacity       = 5000

	// exitGrace bounds how long the reader waits for the process to exit
	// after its output closes before killing it.
	exitGrace = 5 * time.Second
)

// Config holds the parameters for starting a session.
type Config struct {
	// Name labels the session in logs, events, and metrics.
	// Defaults to the program name.
	Name string

	// Command is the interpreter argv. Defaults to ["sh"].
	Command []string

	// Dir is the working directory of the process. Empty inherits ours.
	Dir string

	// Env is added to the inherited environment.
	Env map[string]string

	// StartupTimeout bounds the readiness probe.
	StartupTimeout time.Duration

	// Retries is how many extra spawn attempts follow an access-denied or
	// spawn failure. Zero means no retry; negative means DefaultRetries.
	Retries int

	// Capacity is the write cursor value at which the writer compacts the
	// command history. Values below 4 mean DefaultCapacity.
	Capacity int

	// Marker delimits output from completion records.
	Marker string

	// OOMAdjust asks the kernel to spare the interpreter under memory
	// pressure. Best-effort; failures are only logged.
	OOMAdjust bool

	// Logger receives diagnostics. Nil discards them.
	Logger *slog.Logger

	// Recorder receives lifecycle events. Nil means [events.Discard].
	Recorder events.Recorder
}

func (c Config) withDefaults() Config {
	if len(c.Command) == 0 {
		c.Command = []string{"sh"}
	}
	if c.Name == "" {
		c.Name = c.Command[0]
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	if c.Retries < 0 {
		c.Retries = DefaultRetries
	}
	if c.Capacity < 4 {
		c.Capacity = DefaultCapacity
	}
	if c.Marker == "" {
		c.Marker = DefaultMarker
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.Recorder == nil {
		c.Recorder = events.Discard
	}
	return c
}

// Session is one live interpreter process with its writer and reader
// goroutines and command queue.
type Session struct {
	name   string
	marker string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    *os.File
	lines  *lineReader
	log    *slog.Logger
	rec    events.Recorder

	mu      sync.Mutex
	cond    *sync.Cond
	q       queue
	closing bool
	dead    bool
	lastErr string

	execID     atomic.Int64
	writerDone chan struct{}
	readerDone chan struct{}
	done       chan struct{}
}

// Start spawns cfg.Command, waits for it to answer the readiness probe,
// and starts the writer and reader goroutines.
//
// Access-denied and spawn failures are retried with a fresh process up to
// cfg.Retries times; a startup timeout is returned immediately. When
// retries run out the last failure is returned. ctx bounds startup only.
func Start(ctx context.Context, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	var lastErr error
	for attempt := 1; attempt <= cfg.Retries+1; attempt++ {
		s, err := startOnce(ctx, cfg)
		if err == nil {
			s.run()
			s.rec.Record(events.Event{
				Type:    events.ShellStarted,
				Actor:   s.name,
				Subject: "pid:" + strconv.Itoa(s.Pid()),
				Message: fmt.Sprintf("attempt %d", attempt),
			})
			telemetry.RecordSessionStart(ctx, s.name, attempt, nil)
			return s, nil
		}
		lastErr = err
		cfg.Logger.Warn("shell start failed", "session", cfg.Name, "attempt", attempt, "err", err)
		cfg.Recorder.Record(events.Event{
			Type:    events.ShellStartFailed,
			Actor:   cfg.Name,
			Message: fmt.Sprintf("attempt %d: %v", attempt, err),
		})
		if !errors.Is(err, ErrAccessDenied) && !errors.Is(err, ErrSpawn) {
			break
		}
	}
	telemetry.RecordSessionStart(ctx, cfg.Name, cfg.Retries+1, lastErr)
	return nil, lastErr
}

// startOnce spawns one process and probes it. On failure the process is
// already destroyed.
func startOnce(ctx context.Context, cfg Config) (*Session, error) {
	s, err := spawn(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.probe(ctx, cfg.StartupTimeout, cfg.OOMAdjust); err != nil {
		return nil, err
	}
	return s, nil
}

// spawn starts the process with stdin on a pipe and stdout and stderr
// sharing the write end of a second pipe.
func spawn(cfg Config) (*Session, error) {
	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	cmd.Dir = cfg.Dir
	setProcessGroup(cmd)

	extra := telemetry.SessionEnv(cfg.Name)
	if extra == nil {
		extra = make(map[string]string, len(cfg.Env))
	}
	maps.Copy(extra, cfg.Env)
	env := os.Environ()
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		env = append(env, k+"="+extra[k])
	}
	cmd.Env = env

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: creating output pipe: %v", ErrSpawn, err)
	}
	cmd.Stdout = outW
	cmd.Stderr = outW

	stdin, err := cmd.StdinPipe()
	if err != nil {
		outR.Close() //nolint:errcheck // failed spawn cleanup
		outW.Close() //nolint:errcheck // failed spawn cleanup
		return nil, fmt.Errorf("%w: creating input pipe: %v", ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		outR.Close() //nolint:errcheck // failed spawn cleanup
		outW.Close() //nolint:errcheck // failed spawn cleanup
		return nil, fmt.Errorf("%w %q: %v", ErrSpawn, cfg.Command[0], err)
	}
	// The child holds its own copy of the write end.
	outW.Close() //nolint:errcheck // parent copy only

	s := &Session{
		name:       cfg.Name,
		marker:     cfg.Marker,
		cmd:        cmd,
		stdin:      stdin,
		out:        outR,
		lines:      newLineReader(outR),
		log:        cfg.Logger.With("session", cfg.Name, "pid", cmd.Process.Pid),
		rec:        cfg.Recorder,
		q:          queue{capacity: cfg.Capacity},
		writerDone: make(chan struct{}),
		readerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	s.log.Debug("shell spawned", "command", cfg.Command)
	return s, nil
}

// run starts the writer and reader goroutines and the watcher that closes
// Done once both have exited.
func (s *Session) run() {
	go s.writeLoop()
	go s.readLoop()
	go func() {
		<-s.writerDone
		<-s.readerDone
		s.mu.Lock()
		closing := s.closing
		lastErr := s.lastErr
		s.mu.Unlock()

		reason, typ := "closed", events.ShellClosed
		if !closing {
			reason, typ = "died", events.ShellDied
		}
		s.rec.Record(events.Event{
			Type:    typ,
			Actor:   s.name,
			Subject: "pid:" + strconv.Itoa(s.Pid()),
			Message: lastErr,
		})
		telemetry.RecordSessionStop(context.Background(), s.name, reason)
		s.log.Info("shell stopped", "reason", reason)
		close(s.done)
	}()
}

// Add queues cmd for execution and returns immediately. It blocks only
// while the writer is compacting the history. Returns [ErrIllegalState]
// after Close or once the process has gone away.
func (s *Session) Add(cmd *Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing || s.dead {
		return ErrIllegalState
	}
	s.q.add(cmd)
	s.cond.Broadcast()
	return nil
}

// Exec runs text and waits for its result. Output lines are buffered in
// the returned [Result].
func (s *Session) Exec(ctx context.Context, text string) (Result, error) {
	col := &Collect{}
	c := NewCommand(int(s.execID.Add(1)), text, col)
	if err := s.Add(c); err != nil {
		return Result{}, err
	}
	if err := c.Wait(ctx); err != nil {
		return Result{}, err
	}
	return col.Result(), nil
}

// Close asks the writer to drain the queue and end the interpreter with
// "exit". It returns immediately; use [Session.Wait] to block until the
// process is gone. Safe to call more than once and from any goroutine.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return nil
	}
	s.closing = true
	s.cond.Broadcast()
	return nil
}

// Kill destroys the process without draining. Commands still queued are
// terminated with [UnexpectedTermination] by the reader.
func (s *Session) Kill() error {
	if err := killProcess(s.cmd); err != nil {
		return fmt.Errorf("killing shell %q: %w", s.name, err)
	}
	return nil
}

// Done is closed when both the writer and the reader have exited and
// every queued command has received its terminal notice.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until [Session.Done] is closed or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Alive reports whether the session still accepts commands.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closing && !s.dead
}

// Err returns the last diagnostic recorded by the prober or the loops,
// or "" if none.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Name returns the session's label.
func (s *Session) Name() string { return s.name }

// Pid returns the interpreter's process id.
func (s *Session) Pid() int { return s.cmd.Process.Pid }

// Stats returns a snapshot of the command queue.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.stats()
}

func (s *Session) setErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = msg
}

// fail records a loop I/O failure unless the session is already dead, in
// which case the failure is a consequence rather than a cause.
func (s *Session) fail(op string, err error) {
	s.mu.Lock()
	dead := s.dead
	if !dead {
		s.lastErr = op + ": " + err.Error()
	}
	s.mu.Unlock()
	if !dead {
		s.log.Error("shell "+op+" failed", "err", err)
	}
}

// destroy kills the process and closes both pipes. Used when startup
// fails; the process is reaped in the background.
func (s *Session) destroy() {
	_ = killProcess(s.cmd)
	s.stdin.Close() //nolint:errcheck // best-effort teardown
	s.out.Close()   //nolint:errcheck // best-effort teardown
	go func() { _ = s.cmd.Wait() }()
}
