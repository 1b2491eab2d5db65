package shell

import "slices"

// queue is the session's command history and its four cursors. It is
// not safe for concurrent use; Session guards it with its mutex.
//
// Invariants outside compact: 0 <= read <= write <= len(cmds).
// totalWritten and totalRead never decrease and are never rebased.
type queue struct {
	cmds []*Command

	read  int // index of the oldest command whose completion is unread
	write int // index of the next command to write

	totalWritten int // sequence id of the next written command
	totalRead    int // sequence id the reader expects next

	capacity    int
	compactions int
}

func (q *queue) add(c *Command) {
	q.cmds = append(q.cmds, c)
}

// unwritten reports whether a command is waiting for the writer.
func (q *queue) unwritten() bool {
	return q.write < len(q.cmds)
}

// current is the command whose output the reader is collecting, or nil
// when every written command has completed.
func (q *queue) current() *Command {
	if q.read < q.write {
		return q.cmds[q.read]
	}
	return nil
}

// full reports whether the writer must compact before writing more.
func (q *queue) full() bool {
	return q.write >= q.capacity
}

// caughtUp reports whether every written command has completed.
func (q *queue) caughtUp() bool {
	return q.read == q.write
}

// compact drops the oldest three quarters of the history and rebases the
// local cursors. It must only run when caughtUp holds, and it never drops
// an entry at or beyond the write cursor. Returns the number dropped.
func (q *queue) compact() int {
	drop := q.capacity - q.capacity/4
	if drop > q.write {
		drop = q.write
	}
	if drop <= 0 {
		return 0
	}
	q.cmds = slices.Delete(q.cmds, 0, drop)
	q.read -= drop
	q.write -= drop
	q.compactions++
	return drop
}

// drain removes and returns every command from the read cursor onward,
// resetting the cursors. Used when the process is gone.
func (q *queue) drain() []*Command {
	var rest []*Command
	if q.read < len(q.cmds) {
		rest = append(rest, q.cmds[q.read:]...)
	}
	q.cmds = nil
	q.read = 0
	q.write = 0
	return rest
}

// Stats is a snapshot of a session's queue.
type Stats struct {
	ReadCursor   int
	WriteCursor  int
	TotalWritten int
	TotalRead    int
	Queued       int
	Compactions  int
}

func (q *queue) stats() Stats {
	return Stats{
		ReadCursor:   q.read,
		WriteCursor:  q.write,
		TotalWritten: q.totalWritten,
		TotalRead:    q.totalRead,
		Queued:       len(q.cmds),
		Compactions:  q.compactions,
	}
}
