package shell

import (
	"strconv"
	"testing"
)

func fillQueue(q *queue, n int) {
	for i := 0; i < n; i++ {
		q.add(NewCommand(i, "echo "+strconv.Itoa(i), nil))
	}
}

func TestQueueCursors(t *testing.T) {
	q := &queue{capacity: 8}
	if q.unwritten() || q.current() != nil || !q.caughtUp() {
		t.Fatal("empty queue should have nothing to write or read")
	}
	fillQueue(q, 2)
	if !q.unwritten() {
		t.Fatal("expected unwritten commands")
	}
	q.write++
	q.totalWritten++
	if cur := q.current(); cur == nil || cur.ID != 0 {
		t.Fatalf("current = %v, want command 0", cur)
	}
	if q.caughtUp() {
		t.Error("caughtUp with one command in flight")
	}
	q.read++
	q.totalRead++
	if !q.caughtUp() || q.current() != nil {
		t.Error("expected caught up after reading the only written command")
	}
}

func TestQueueCompactRebases(t *testing.T) {
	q := &queue{capacity: 8}
	fillQueue(q, 10)
	q.read, q.write = 8, 8
	q.totalRead, q.totalWritten = 8, 8
	if !q.full() {
		t.Fatal("expected full at write == capacity")
	}

	dropped := q.compact()
	if dropped != 6 {
		t.Fatalf("dropped = %d, want 6", dropped)
	}
	if q.read != 2 || q.write != 2 {
		t.Errorf("cursors = (%d, %d), want (2, 2)", q.read, q.write)
	}
	if q.totalRead != 8 || q.totalWritten != 8 {
		t.Errorf("totals changed: (%d, %d)", q.totalRead, q.totalWritten)
	}
	// The next command to write must still be command 8.
	if got := q.cmds[q.write].ID; got != 8 {
		t.Errorf("next unwritten = %d, want 8", got)
	}
	if q.compactions != 1 {
		t.Errorf("compactions = %d, want 1", q.compactions)
	}
}

func TestQueueCompactNeverPassesWriteCursor(t *testing.T) {
	q := &queue{capacity: 100}
	fillQueue(q, 5)
	q.read, q.write = 3, 3

	if dropped := q.compact(); dropped != 3 {
		t.Fatalf("dropped = %d, want 3", dropped)
	}
	if q.write != 0 || len(q.cmds) != 2 || q.cmds[0].ID != 3 {
		t.Errorf("unexpected state after compact: write=%d len=%d", q.write, len(q.cmds))
	}
}

func TestQueueDrain(t *testing.T) {
	q := &queue{capacity: 8}
	fillQueue(q, 5)
	q.read, q.write = 2, 4

	rest := q.drain()
	if len(rest) != 3 {
		t.Fatalf("drain returned %d commands, want 3", len(rest))
	}
	for i, c := range rest {
		if c.ID != i+2 {
			t.Errorf("rest[%d].ID = %d, want %d", i, c.ID, i+2)
		}
	}
	if len(q.cmds) != 0 || q.read != 0 || q.write != 0 {
		t.Error("drain should reset the queue")
	}
}
