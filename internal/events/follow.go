package events

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// followPoll is the fallback re-read interval for filesystems that do not
// deliver change notifications.
const followPoll = 2 * time.Second

// Follow returns a Watcher that tails the JSONL log at path, yielding
// events with Seq > afterSeq as they are appended. The file need not
// exist yet. The watch ends when ctx is done or Close is called.
func Follow(ctx context.Context, path string, afterSeq uint64) (Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating event watcher: %w", err)
	}
	// Watch the directory so creation and rotation are seen too.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close() //nolint:errcheck // setup failed
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}
	ctx, cancel := context.WithCancel(ctx)
	return &fileWatcher{
		path:     path,
		afterSeq: afterSeq,
		ctx:      ctx,
		cancel:   cancel,
		fw:       fw,
	}, nil
}

// fileWatcher reads new lines from a JSONL file whenever fsnotify reports
// a change to it.
type fileWatcher struct {
	path     string
	afterSeq uint64
	ctx      context.Context
	cancel   context.CancelFunc
	fw       *fsnotify.Watcher
	offset   int64
	buf      []Event
}

// Next blocks until the next event is available or the watch ends.
func (w *fileWatcher) Next() (Event, error) {
	for {
		if len(w.buf) > 0 {
			e := w.buf[0]
			w.buf = w.buf[1:]
			return e, nil
		}
		if err := w.ctx.Err(); err != nil {
			return Event{}, err
		}
		if err := w.poll(); err != nil {
			return Event{}, err
		}
		if len(w.buf) > 0 {
			continue
		}
		if err := w.wait(); err != nil {
			return Event{}, err
		}
	}
}

// poll reads anything appended since the last call.
func (w *fileWatcher) poll() error {
	evts, next, err := ReadFrom(w.path, w.offset)
	if err != nil {
		return err
	}
	w.offset = next
	for _, e := range evts {
		if e.Seq > w.afterSeq {
			w.afterSeq = e.Seq
			w.buf = append(w.buf, e)
		}
	}
	return nil
}

// wait blocks until the log file changes, the fallback interval passes,
// or the watch ends.
func (w *fileWatcher) wait() error {
	timer := time.NewTimer(followPoll)
	defer timer.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		case <-timer.C:
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return w.closed()
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				w.offset = 0
			}
			return nil
		case err, ok := <-w.fw.Errors:
			if !ok {
				return w.closed()
			}
			return fmt.Errorf("watching events: %w", err)
		}
	}
}

func (w *fileWatcher) closed() error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	return errors.New("event watcher closed")
}

// Close stops the watch. Pending Next calls return the context error.
func (w *fileWatcher) Close() error {
	w.cancel()
	return w.fw.Close()
}
