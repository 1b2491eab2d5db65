package shell

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/julianknutsen/shellpipe/internal/events"
	"github.com/julianknutsen/shellpipe/internal/telemetry"
)

// readLoop is the only reader of the merged output stream. Each line is
// routed to the command at the read cursor until that command's
// completion record arrives. When the stream ends, every command still
// queued is terminated in order.
func (s *Session) readLoop() {
	defer close(s.readerDone)
	for {
		line, err := s.lines.next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.fail("read", err)
			}
			break
		}
		s.route(line)
	}
	s.shutdown()
}

// route delivers one line of output.
func (s *Session) route(line string) {
	s.mu.Lock()
	cur := s.q.current()
	s.mu.Unlock()

	prefix, record, found := splitMarker(line, s.marker)
	if !found {
		if cur != nil {
			cur.output(line)
		}
		return
	}
	if prefix != "" && cur != nil {
		cur.output(prefix)
	}

	seq, exitCode, ok := parseRecord(record)
	if !ok || cur == nil {
		return
	}

	s.mu.Lock()
	if seq != s.q.totalRead {
		expected := s.q.totalRead
		s.mu.Unlock()
		s.log.Debug("ignoring completion record", "seq", seq, "expected", expected)
		return
	}
	s.q.read++
	s.q.totalRead++
	s.cond.Broadcast()
	s.mu.Unlock()

	if cur.finish(exitCode) {
		s.rec.Record(events.Event{
			Type:    events.CommandFinished,
			Actor:   s.name,
			Subject: "cmd:" + strconv.Itoa(cur.ID),
			Message: "exit " + strconv.Itoa(exitCode),
		})
		telemetry.RecordCommand(context.Background(), s.name, exitCode,
			float64(cur.Elapsed().Milliseconds()), false)
	}
}

// shutdown runs once the output stream has ended: it reaps the process,
// closes both pipes, marks the session dead, and terminates whatever was
// still queued.
func (s *Session) shutdown() {
	s.waitExit()
	s.stdin.Close() //nolint:errcheck // best-effort teardown
	s.out.Close()   //nolint:errcheck // best-effort teardown

	s.mu.Lock()
	s.dead = true
	rest := s.q.drain()
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, c := range rest {
		if c.terminate(UnexpectedTermination) {
			s.rec.Record(events.Event{
				Type:    events.CommandTerminated,
				Actor:   s.name,
				Subject: "cmd:" + strconv.Itoa(c.ID),
				Message: UnexpectedTermination,
			})
			telemetry.RecordCommand(context.Background(), s.name, -1,
				float64(c.Elapsed().Milliseconds()), true)
		}
	}
	if len(rest) > 0 {
		s.log.Warn("shell ended with commands outstanding", "terminated", len(rest))
	}
}

// waitExit waits for the process to exit, killing it if it outlives its
// own output by more than exitGrace.
func (s *Session) waitExit() {
	exited := make(chan error, 1)
	go func() { exited <- s.cmd.Wait() }()

	var err error
	select {
	case err = <-exited:
	case <-time.After(exitGrace):
		_ = killProcess(s.cmd)
		err = <-exited
	}
	if err != nil {
		s.log.Debug("shell exited", "err", err)
	}
}
