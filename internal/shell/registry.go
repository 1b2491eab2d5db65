package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Purpose tags one of the well-known singleton sessions.
type Purpose string

// Well-known session purposes.
const (
	PurposeShell      Purpose = "shell"
	PurposePrivileged Purpose = "privileged"
	PurposeCustom     Purpose = "custom"
)

// Purposes lists every purpose a [Registry] holds, in close order.
var Purposes = []Purpose{PurposeShell, PurposePrivileged, PurposeCustom}

// lockRetry is the poll interval while waiting for another process's
// spawn lock.
const lockRetry = 100 * time.Millisecond

// Registry holds at most one live session per [Purpose]. Asking it to
// start a purpose that already has a live session returns that session
// unchanged. Safe for concurrent use.
type Registry struct {
	lockDir string
	start   func(context.Context, Config) (*Session, error)
	slots   map[Purpose]*slot
}

type slot struct {
	mu sync.Mutex
	s  *Session
}

// NewRegistry returns an empty registry. When lockDir is non-empty,
// spawning a session holds an exclusive file lock <lockDir>/<purpose>.lock
// so that separate processes sharing the directory never prompt for
// elevation at the same time.
func NewRegistry(lockDir string) *Registry {
	r := &Registry{
		lockDir: lockDir,
		start:   Start,
		slots:   make(map[Purpose]*slot, len(Purposes)),
	}
	for _, p := range Purposes {
		r.slots[p] = &slot{}
	}
	return r
}

// Start returns the live session for p, spawning one from cfg if there is
// none. cfg is ignored when a live session already exists.
func (r *Registry) Start(ctx context.Context, p Purpose, cfg Config) (*Session, error) {
	sl, ok := r.slots[p]
	if !ok {
		return nil, fmt.Errorf("unknown session purpose %q", p)
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.s != nil && sl.s.Alive() {
		return sl.s, nil
	}
	sl.s = nil

	if cfg.Name == "" {
		cfg.Name = string(p)
	}
	unlock, err := r.lock(ctx, p)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, err := r.start(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sl.s = s
	return s, nil
}

// Get returns the live session for p, or nil.
func (r *Registry) Get(p Purpose) *Session {
	sl, ok := r.slots[p]
	if !ok {
		return nil
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.s != nil && sl.s.Alive() {
		return sl.s
	}
	return nil
}

// Close closes the session for p, if any, and empties its slot.
func (r *Registry) Close(p Purpose) error {
	sl, ok := r.slots[p]
	if !ok {
		return fmt.Errorf("unknown session purpose %q", p)
	}
	sl.mu.Lock()
	s := sl.s
	sl.s = nil
	sl.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}

// CloseShell closes the unprivileged session.
func (r *Registry) CloseShell() error { return r.Close(PurposeShell) }

// ClosePrivileged closes the privileged session.
func (r *Registry) ClosePrivileged() error { return r.Close(PurposePrivileged) }

// CloseCustom closes the custom session.
func (r *Registry) CloseCustom() error { return r.Close(PurposeCustom) }

// CloseAll closes every session the registry holds.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, p := range Purposes {
		if err := r.Close(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// lock takes the cross-process spawn lock for p. Returns a no-op unlock
// when no lock directory is configured.
func (r *Registry) lock(ctx context.Context, p Purpose) (func(), error) {
	if r.lockDir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(r.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	fl := flock.New(filepath.Join(r.lockDir, string(p)+".lock"))
	locked, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("acquiring %s spawn lock: %w", p, err)
	}
	if !locked {
		return nil, fmt.Errorf("acquiring %s spawn lock: not acquired", p)
	}
	return func() { _ = fl.Unlock() }, nil
}
