package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileRecorder appends events to a JSONL file. Several shellpipe
// processes may share one log: each append holds an exclusive lock on
// <path>.lock, and a recorder that finds the file grown by someone else
// rescans it so sequence numbers stay unique. Recording errors are
// written to stderr and never returned.
type FileRecorder struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	lock   *flock.Flock
	seq    uint64
	size   int64
	closed bool
	stderr io.Writer
}

// NewFileRecorder opens (or creates) the event log at path. Sequence
// numbers continue from the highest one already in the file. Parent
// directories are created as needed.
func NewFileRecorder(path string, stderr io.Writer) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	r := &FileRecorder{
		path:   path,
		file:   file,
		lock:   flock.New(path + ".lock"),
		size:   -1,
		stderr: stderr,
	}
	return r, nil
}

// Path returns the log file location.
func (r *FileRecorder) Path() string { return r.path }

// Record appends an event to the log. It auto-fills Seq and Ts (if zero).
func (r *FileRecorder) Record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		fmt.Fprintf(r.stderr, "events: write: %v\n", os.ErrClosed) //nolint:errcheck // best-effort stderr
		return
	}
	if err := r.lock.Lock(); err != nil {
		fmt.Fprintf(r.stderr, "events: lock: %v\n", err) //nolint:errcheck // best-effort stderr
		return
	}
	defer r.lock.Unlock() //nolint:errcheck // released on close anyway

	if err := r.sync(); err != nil {
		fmt.Fprintf(r.stderr, "events: %v\n", err) //nolint:errcheck // best-effort stderr
		return
	}

	r.seq++
	e.Seq = r.seq
	if e.Ts.IsZero() {
		e.Ts = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		fmt.Fprintf(r.stderr, "events: marshal: %v\n", err) //nolint:errcheck // best-effort stderr
		return
	}
	data = append(data, '\n')
	n, err := r.file.Write(data)
	r.size += int64(n)
	if err != nil {
		fmt.Fprintf(r.stderr, "events: write: %v\n", err) //nolint:errcheck // best-effort stderr
	}
}

// sync reloads the latest sequence number if the file changed size since
// this recorder last wrote. Caller holds the file lock.
func (r *FileRecorder) sync() error {
	fi, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if fi.Size() == r.size {
		return nil
	}
	seq, err := ReadLatestSeq(r.path)
	if err != nil {
		return err
	}
	r.seq = seq
	r.size = fi.Size()
	return nil
}

// List returns events matching the filter from the underlying file.
func (r *FileRecorder) List(filter Filter) ([]Event, error) {
	return ReadFiltered(r.path, filter)
}

// LatestSeq returns the highest sequence number in the event log.
func (r *FileRecorder) LatestSeq() (uint64, error) {
	return ReadLatestSeq(r.path)
}

// Watch follows the log file for events after afterSeq.
func (r *FileRecorder) Watch(ctx context.Context, afterSeq uint64) (Watcher, error) {
	return Follow(ctx, r.path, afterSeq)
}

// Close closes the underlying file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.lock.Close() //nolint:errcheck // lock file handle only
	return r.file.Close()
}
