// Package events is the local audit trail for shellpipe.
//
// Events are simple, synchronous, append-only records of what happened to
// a session and its commands. The recorder writes JSON lines to
// .shellpipe/events.jsonl; the reader scans them back. Recording is
// best-effort: errors are written to stderr but never returned to callers.
package events

import (
	"context"
	"time"
)

// Event type constants.
const (
	ShellStarted      = "shell.started"
	ShellStartFailed  = "shell.start_failed"
	ShellClosed       = "shell.closed"
	ShellDied         = "shell.died"
	CommandFinished   = "command.finished"
	CommandTerminated = "command.terminated"
	QueueCompacted    = "queue.compacted"
)

// KnownTypes lists every event type shellpipe emits.
var KnownTypes = []string{
	ShellStarted, ShellStartFailed, ShellClosed, ShellDied,
	CommandFinished, CommandTerminated, QueueCompacted,
}

// Event is a single recorded occurrence. Actor is the session name.
type Event struct {
	Seq     uint64    `json:"seq"`
	Type    string    `json:"type"`
	Ts      time.Time `json:"ts"`
	Actor   string    `json:"actor"`
	Subject string    `json:"subject,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Recorder records events. Safe for concurrent use. Best-effort.
type Recorder interface {
	Record(e Event)
}

// Provider is a Recorder that can also read its events back.
type Provider interface {
	Recorder
	// List returns recorded events matching filter, oldest first.
	List(filter Filter) ([]Event, error)
	// LatestSeq returns the highest sequence number recorded, or 0.
	LatestSeq() (uint64, error)
	// Watch streams events with Seq > afterSeq until ctx ends.
	Watch(ctx context.Context, afterSeq uint64) (Watcher, error)
	Close() error
}

// Watcher yields events as they are recorded.
type Watcher interface {
	// Next blocks until an event is available or the watch ends.
	Next() (Event, error)
	Close() error
}

// Discard silently drops all events.
var Discard Recorder = discardRecorder{}

type discardRecorder struct{}

func (discardRecorder) Record(Event) {}
