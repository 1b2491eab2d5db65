package events

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Compile-time interface checks.
var (
	_ Provider = (*FileRecorder)(nil)
	_ Provider = (*Fake)(nil)
)

func TestFileRecorderContinuesSeq(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	var stderr bytes.Buffer

	rec, err := NewFileRecorder(path, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	rec.Record(Event{Type: ShellStarted, Actor: "sh"})
	rec.Record(Event{Type: ShellClosed, Actor: "sh"})
	rec.Close() //nolint:errcheck // test cleanup

	rec2, err := NewFileRecorder(path, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	defer rec2.Close() //nolint:errcheck // test cleanup
	rec2.Record(Event{Type: ShellStarted, Actor: "sh"})

	all, err := ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[2].Seq != 3 {
		t.Errorf("events = %+v, want third event with seq 3", all)
	}
	if stderr.Len() > 0 {
		t.Errorf("unexpected stderr: %q", stderr.String())
	}
}

func TestFileRecordersShareLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	var stderr bytes.Buffer

	a, err := NewFileRecorder(path, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close() //nolint:errcheck // test cleanup
	b, err := NewFileRecorder(path, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close() //nolint:errcheck // test cleanup

	a.Record(Event{Type: ShellStarted, Actor: "a"})
	b.Record(Event{Type: ShellStarted, Actor: "b"})
	a.Record(Event{Type: ShellClosed, Actor: "a"})
	b.Record(Event{Type: ShellClosed, Actor: "b"})

	all, err := ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d events, want 4", len(all))
	}
	for i, e := range all {
		if e.Seq != uint64(i+1) {
			t.Errorf("event %d (%s) seq = %d, want %d", i, e.Actor, e.Seq, i+1)
		}
	}
	if stderr.Len() > 0 {
		t.Errorf("unexpected stderr: %q", stderr.String())
	}
}

func TestFileRecorderCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "events.jsonl")
	rec, err := NewFileRecorder(path, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close() //nolint:errcheck // test cleanup
	if rec.Path() != path {
		t.Errorf("Path = %q, want %q", rec.Path(), path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log not created: %v", err)
	}
}

func TestFileRecorderWriteErrorGoesToStderr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	var stderr bytes.Buffer
	rec, err := NewFileRecorder(path, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	rec.Close() //nolint:errcheck // force write failure
	rec.Record(Event{Type: ShellDied, Actor: "sh"})
	if !strings.Contains(stderr.String(), "events: write:") {
		t.Errorf("stderr = %q, want write error", stderr.String())
	}
	if !strings.Contains(stderr.String(), os.ErrClosed.Error()) {
		t.Errorf("stderr = %q, want closed error", stderr.String())
	}
	if err := rec.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestReadAllMissingFile(t *testing.T) {
	got, err := ReadAll(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err != nil || got != nil {
		t.Errorf("ReadAll = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestReadAllSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	data := `{"seq":1,"type":"shell.started","actor":"sh"}
not json
{"seq":2,"type":"shell.closed","actor":"sh"}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Type != ShellClosed {
		t.Errorf("ReadAll = %+v", got)
	}
	seq, err := ReadLatestSeq(path)
	if err != nil || seq != 2 {
		t.Errorf("ReadLatestSeq = (%d, %v), want 2", seq, err)
	}
}

func TestReadFromLeavesPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	full := `{"seq":1,"type":"shell.started","actor":"sh"}` + "\n"
	partial := `{"seq":2,"type":"shell.cl`
	if err := os.WriteFile(path, []byte(full+partial), 0o644); err != nil {
		t.Fatal(err)
	}
	got, off, err := ReadFrom(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || off != int64(len(full)) {
		t.Fatalf("ReadFrom = (%d events, offset %d), want (1, %d)", len(got), off, len(full))
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(`osed","actor":"sh"}` + "\n") //nolint:errcheck // test setup
	f.Close()                                 //nolint:errcheck // test setup

	got, _, err = ReadFrom(path, off)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Type != ShellClosed {
		t.Errorf("ReadFrom after completion = %+v", got)
	}
}

func TestFollowBeforeFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	w, err := Follow(ctx, path, 0)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	defer w.Close() //nolint:errcheck // test cleanup

	go func() {
		time.Sleep(50 * time.Millisecond)
		rec, err := NewFileRecorder(path, &bytes.Buffer{})
		if err != nil {
			return
		}
		defer rec.Close() //nolint:errcheck // test cleanup
		rec.Record(Event{Type: ShellStarted, Actor: "sh"})
	}()

	e, err := w.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if e.Type != ShellStarted || e.Seq != 1 {
		t.Errorf("Next = %+v", e)
	}
}

func TestFakeTypes(t *testing.T) {
	f := NewFake()
	f.Record(Event{Type: ShellStarted})
	f.Record(Event{Type: CommandFinished})
	got := f.Types()
	if len(got) != 2 || got[0] != ShellStarted || got[1] != CommandFinished {
		t.Errorf("Types = %v", got)
	}
}

func TestKnownTypesDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, typ := range KnownTypes {
		if seen[typ] {
			t.Errorf("duplicate type %q", typ)
		}
		seen[typ] = true
	}
}
