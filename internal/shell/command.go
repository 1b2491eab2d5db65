package shell

import (
	"context"
	"sync"
	"time"
)

// State is the lifecycle position of a [Command].
type State int

// Command states. A command moves forward only: Pending → Executing →
// Finished or Terminated. Commands that never reached the process may go
// straight from Pending to Terminated when the session dies.
const (
	StatePending State = iota
	StateExecuting
	StateFinished
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateExecuting:
		return "executing"
	case StateFinished:
		return "finished"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Handler receives the results of a single command. Output is called zero
// or more times, then exactly one of Finished or Terminated. Calls for one
// command never overlap, and a session delivers terminal notices in the
// order commands were added.
//
// Handlers run on the session's reader goroutine. They may call
// [Session.Add] but should not block for long: the next line of output is
// not read until the handler returns.
type Handler interface {
	Output(id int, line string)
	Finished(id int, exitCode int)
	Terminated(id int, reason string)
}

// HandlerFuncs adapts plain functions to [Handler]. Nil fields are skipped.
type HandlerFuncs struct {
	OnOutput     func(id int, line string)
	OnFinished   func(id int, exitCode int)
	OnTerminated func(id int, reason string)
}

// Output implements [Handler].
func (h HandlerFuncs) Output(id int, line string) {
	if h.OnOutput != nil {
		h.OnOutput(id, line)
	}
}

// Finished implements [Handler].
func (h HandlerFuncs) Finished(id int, exitCode int) {
	if h.OnFinished != nil {
		h.OnFinished(id, exitCode)
	}
}

// Terminated implements [Handler].
func (h HandlerFuncs) Terminated(id int, reason string) {
	if h.OnTerminated != nil {
		h.OnTerminated(id, reason)
	}
}

// Command is one unit of text submitted to a [Session]. Create it with
// [NewCommand]; a Command can be added to a session only once.
type Command struct {
	ID   int
	Text string

	handler Handler
	done    chan struct{}

	mu       sync.Mutex
	state    State
	seq      int
	exitCode int
	reason   string
	started  time.Time
	elapsed  time.Duration
}

// NewCommand returns a pending command. A nil handler discards all
// notifications; use [Command.Wait] and the accessors instead.
func NewCommand(id int, text string, h Handler) *Command {
	if h == nil {
		h = HandlerFuncs{}
	}
	return &Command{
		ID:       id,
		Text:     text,
		handler:  h,
		done:     make(chan struct{}),
		seq:      -1,
		exitCode: -1,
	}
}

// State returns the command's current state.
func (c *Command) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Seq returns the session sequence id assigned when the command was
// written to the process, or -1 if it was never written.
func (c *Command) Seq() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// ExitCode returns the exit status reported by the interpreter. It is -1
// until the command finishes, for terminated commands, and when the
// completion record could not be parsed.
func (c *Command) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode
}

// Reason returns the termination reason, or "" if the command was not
// terminated.
func (c *Command) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Elapsed returns the time between the command being written and its
// terminal transition. Zero for commands that never ran.
func (c *Command) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Done is closed after the handler has received the terminal notice.
func (c *Command) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the command reaches a terminal state or ctx ends.
func (c *Command) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// start moves a pending command to Executing with the given sequence id.
func (c *Command) start(seq int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePending {
		return
	}
	c.state = StateExecuting
	c.seq = seq
	c.started = time.Now()
}

func (c *Command) output(line string) {
	c.mu.Lock()
	terminal := c.state == StateFinished || c.state == StateTerminated
	c.mu.Unlock()
	if terminal {
		return
	}
	c.handler.Output(c.ID, line)
}

// finish records the exit code and delivers the success notice. It
// reports false if the command had already reached a terminal state.
func (c *Command) finish(exitCode int) bool {
	c.mu.Lock()
	if c.state == StateFinished || c.state == StateTerminated {
		c.mu.Unlock()
		return false
	}
	c.state = StateFinished
	c.exitCode = exitCode
	if !c.started.IsZero() {
		c.elapsed = time.Since(c.started)
	}
	c.mu.Unlock()

	c.handler.Finished(c.ID, exitCode)
	close(c.done)
	return true
}

// terminate delivers the termination notice. It reports false if the
// command had already reached a terminal state.
func (c *Command) terminate(reason string) bool {
	c.mu.Lock()
	if c.state == StateFinished || c.state == StateTerminated {
		c.mu.Unlock()
		return false
	}
	c.state = StateTerminated
	c.reason = reason
	if !c.started.IsZero() {
		c.elapsed = time.Since(c.started)
	}
	c.mu.Unlock()

	c.handler.Terminated(c.ID, reason)
	close(c.done)
	return true
}

// Result is the collected outcome of a command.
type Result struct {
	Output     []string
	ExitCode   int
	Terminated bool
	Reason     string
}

// Collect is a [Handler] that buffers output lines and the terminal
// notice. Safe for concurrent use.
type Collect struct {
	mu     sync.Mutex
	result Result
}

// Output implements [Handler].
func (c *Collect) Output(_ int, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.Output = append(c.result.Output, line)
}

// Finished implements [Handler].
func (c *Collect) Finished(_ int, exitCode int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.ExitCode = exitCode
}

// Terminated implements [Handler].
func (c *Collect) Terminated(_ int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.ExitCode = -1
	c.result.Terminated = true
	c.result.Reason = reason
}

// Result returns a copy of what has been collected so far.
func (c *Collect) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.result
	r.Output = append([]string(nil), c.result.Output...)
	return r
}
