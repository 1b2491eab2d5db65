package events

import (
	"context"
	"sync"
	"time"
)

// Fake is an in-memory [Provider] for testing. It captures all recorded
// events in the Events slice. Safe for concurrent use; read Events
// directly only once recording has stopped, otherwise use [Fake.Snapshot].
type Fake struct {
	mu     sync.Mutex
	seq    uint64
	Events []Event
}

// NewFake returns a ready-to-use [Fake] recorder.
func NewFake() *Fake {
	return &Fake{}
}

// Record appends the event, filling Seq and Ts like [FileRecorder].
func (f *Fake) Record(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	e.Seq = f.seq
	if e.Ts.IsZero() {
		e.Ts = time.Now()
	}
	f.Events = append(f.Events, e)
}

// Snapshot returns a copy of the events recorded so far.
func (f *Fake) Snapshot() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.Events...)
}

// Types returns the Type of every recorded event, in order.
func (f *Fake) Types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Events))
	for i, e := range f.Events {
		out[i] = e.Type
	}
	return out
}

// List returns the recorded events matching filter.
func (f *Fake) List(filter Filter) ([]Event, error) {
	return filter.apply(f.Snapshot()), nil
}

// LatestSeq returns the highest sequence number recorded.
func (f *Fake) LatestSeq() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq, nil
}

// Watch returns a Watcher that polls the in-memory slice.
func (f *Fake) Watch(ctx context.Context, afterSeq uint64) (Watcher, error) {
	return &fakeWatcher{f: f, ctx: ctx, after: afterSeq}, nil
}

// Close is a no-op.
func (f *Fake) Close() error { return nil }

type fakeWatcher struct {
	f     *Fake
	ctx   context.Context
	after uint64
}

func (w *fakeWatcher) Next() (Event, error) {
	for {
		for _, e := range w.f.Snapshot() {
			if e.Seq > w.after {
				w.after = e.Seq
				return e, nil
			}
		}
		select {
		case <-w.ctx.Done():
			return Event{}, w.ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (w *fakeWatcher) Close() error { return nil }
