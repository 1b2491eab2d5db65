package shell

import (
	"context"
	"fmt"
	"io"

	"github.com/julianknutsen/shellpipe/internal/events"
	"github.com/julianknutsen/shellpipe/internal/telemetry"
)

// writeLoop is the only writer of the process's stdin. Commands are
// written one at a time in queue order, each followed by its completion
// line. Once closing is requested and nothing is left, it sends "exit"
// and returns.
func (s *Session) writeLoop() {
	defer close(s.writerDone)
	defer s.stdin.Close() //nolint:errcheck // EOF for the interpreter

	for {
		s.mu.Lock()
		for !s.closing && !s.dead && !s.q.unwritten() {
			s.cond.Wait()
		}
		if s.dead {
			s.mu.Unlock()
			return
		}

		if s.q.unwritten() && s.q.full() {
			// Backpressure: let the reader catch up before compacting.
			for !s.q.caughtUp() && !s.dead {
				s.cond.Wait()
			}
			if s.dead {
				s.mu.Unlock()
				return
			}
			before := s.q.stats()
			dropped := s.q.compact()
			s.mu.Unlock()
			s.compacted(before, dropped)
			continue
		}

		if s.q.unwritten() {
			c := s.q.cmds[s.q.write]
			seq := s.q.totalWritten
			c.start(seq)
			// Advance before writing so the reader can attribute output
			// that arrives before this goroutine is rescheduled.
			s.q.write++
			s.q.totalWritten++
			s.mu.Unlock()

			s.log.Debug("executing", "seq", seq, "id", c.ID)
			if _, err := io.WriteString(s.stdin, c.Text+completionLine(s.marker, seq)); err != nil {
				s.fail("write", err)
				return
			}
			continue
		}

		// Closing and drained.
		s.mu.Unlock()
		if _, err := io.WriteString(s.stdin, "\nexit 0\n"); err != nil {
			s.fail("write exit", err)
			return
		}
		s.log.Debug("closing shell")
		return
	}
}

// compacted reports a housekeeping pass. before is the queue snapshot
// taken immediately ahead of it.
func (s *Session) compacted(before Stats, dropped int) {
	s.log.Debug("compacted command history",
		"dropped", dropped, "read", before.ReadCursor, "write", before.WriteCursor)
	s.rec.Record(events.Event{
		Type:    events.QueueCompacted,
		Actor:   s.name,
		Subject: fmt.Sprintf("read:%d write:%d", before.ReadCursor, before.WriteCursor),
		Message: fmt.Sprintf("dropped %d of %d", dropped, before.Queued),
	})
	telemetry.RecordCompaction(context.Background(), s.name, dropped)
}
