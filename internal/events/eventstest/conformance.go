// Package eventstest provides a conformance test suite for events.Provider
// implementations. Each implementation's test file calls RunProviderTests
// with its own factory function.
package eventstest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/julianknutsen/shellpipe/internal/events"
)

// RunProviderTests runs the core conformance suite against a Provider.
// newProvider must return a fresh, empty provider and a cleanup closure.
func RunProviderTests(t *testing.T, newProvider func(t *testing.T) (events.Provider, func())) {
	t.Helper()

	t.Run("RecordAndListRoundTrip", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		p.Record(events.Event{
			Type:    events.CommandFinished,
			Actor:   "sh",
			Subject: "cmd:1",
			Message: "exit 0",
		})

		got, err := p.List(events.Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("List returned %d events, want 1", len(got))
		}
		e := got[0]
		if e.Type != events.CommandFinished || e.Actor != "sh" || e.Subject != "cmd:1" || e.Message != "exit 0" {
			t.Errorf("event = %+v", e)
		}
		if e.Seq == 0 || e.Ts.IsZero() {
			t.Errorf("Seq and Ts should be auto-filled: %+v", e)
		}
	})

	t.Run("SeqMonotonic", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		for i := 0; i < 3; i++ {
			p.Record(events.Event{Type: events.ShellStarted, Actor: "sh"})
		}
		got, err := p.List(events.Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Seq <= got[i-1].Seq {
				t.Errorf("Seq not increasing: %d <= %d", got[i].Seq, got[i-1].Seq)
			}
		}
		latest, err := p.LatestSeq()
		if err != nil {
			t.Fatalf("LatestSeq: %v", err)
		}
		if latest != got[len(got)-1].Seq {
			t.Errorf("LatestSeq = %d, want %d", latest, got[len(got)-1].Seq)
		}
	})

	t.Run("PreservesExplicitTimestamp", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		explicit := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
		p.Record(events.Event{Type: events.ShellClosed, Actor: "sh", Ts: explicit})
		got, err := p.List(events.Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 1 || !got[0].Ts.Equal(explicit) {
			t.Errorf("got %+v, want Ts %v", got, explicit)
		}
	})

	t.Run("ListFilters", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		p.Record(events.Event{Type: events.ShellStarted, Actor: "sh"})
		p.Record(events.Event{Type: events.CommandFinished, Actor: "sh"})
		p.Record(events.Event{Type: events.CommandFinished, Actor: "su"})

		byType, err := p.List(events.Filter{Type: events.CommandFinished})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(byType) != 2 {
			t.Errorf("Type filter returned %d, want 2", len(byType))
		}
		byActor, _ := p.List(events.Filter{Actor: "su"})
		if len(byActor) != 1 {
			t.Errorf("Actor filter returned %d, want 1", len(byActor))
		}
		after, _ := p.List(events.Filter{AfterSeq: byType[0].Seq})
		if len(after) != 1 || after[0].Actor != "su" {
			t.Errorf("AfterSeq filter returned %+v", after)
		}
		future, _ := p.List(events.Filter{Since: time.Now().Add(time.Hour)})
		if len(future) != 0 {
			t.Errorf("Since filter returned %d, want 0", len(future))
		}
	})

	t.Run("EmptyProvider", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		got, err := p.List(events.Filter{})
		if err != nil || len(got) != 0 {
			t.Errorf("List = (%v, %v), want empty", got, err)
		}
		seq, err := p.LatestSeq()
		if err != nil || seq != 0 {
			t.Errorf("LatestSeq = (%d, %v), want 0", seq, err)
		}
	})

	t.Run("WatchDeliversNewEvents", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		p.Record(events.Event{Type: events.ShellStarted, Actor: "old"})
		seq, _ := p.LatestSeq()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		w, err := p.Watch(ctx, seq)
		if err != nil {
			t.Fatalf("Watch: %v", err)
		}
		defer w.Close() //nolint:errcheck // test cleanup

		go func() {
			time.Sleep(50 * time.Millisecond)
			p.Record(events.Event{Type: events.ShellClosed, Actor: "new"})
		}()
		e, err := w.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if e.Actor != "new" {
			t.Errorf("Next = %+v, want the new event", e)
		}
	})

	t.Run("WatchEndsWithContext", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		ctx, cancel := context.WithCancel(context.Background())
		w, err := p.Watch(ctx, 0)
		if err != nil {
			t.Fatalf("Watch: %v", err)
		}
		defer w.Close() //nolint:errcheck // test cleanup
		cancel()
		if _, err := w.Next(); !errors.Is(err, context.Canceled) {
			t.Errorf("Next after cancel = %v, want context.Canceled", err)
		}
	})
}

// RunConcurrencyTests checks that concurrent Record calls lose nothing.
func RunConcurrencyTests(t *testing.T, newProvider func(t *testing.T) (events.Provider, func())) {
	t.Helper()

	t.Run("ConcurrentRecord", func(t *testing.T) {
		p, cleanup := newProvider(t)
		defer cleanup()

		const n = 50
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.Record(events.Event{Type: events.CommandFinished, Actor: "sh"})
			}()
		}
		wg.Wait()

		got, err := p.List(events.Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != n {
			t.Fatalf("List returned %d events, want %d", len(got), n)
		}
		seen := make(map[uint64]bool, n)
		for _, e := range got {
			if seen[e.Seq] {
				t.Errorf("duplicate Seq %d", e.Seq)
			}
			seen[e.Seq] = true
		}
	})
}
