package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
)

// DefaultAutosaveDelay is how long a board must be quiet before it is saved.
const DefaultAutosaveDelay = 2 * time.Second

const saveTimeout = 10 * time.Second

// SnapshotFunc produces the bytes to persist. It is called on the save
// goroutine, so it must do its own locking.
type SnapshotFunc func() ([]byte, error)

type pendingSave struct {
	debounced func(func())
	snapshot  SnapshotFunc
	dirty     bool
}

// Autosaver coalesces bursts of changes per key into a single Put.
type Autosaver struct {
	store Store
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*pendingSave
	saveMu  sync.Mutex
}

// NewAutosaver saves into s after delay of inactivity per key.
func NewAutosaver(s Store, delay time.Duration) *Autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &Autosaver{
		store:   s,
		delay:   delay,
		pending: make(map[string]*pendingSave),
	}
}

// Schedule marks key dirty. The latest snapshot func wins.
func (a *Autosaver) Schedule(key string, snapshot SnapshotFunc) {
	a.mu.Lock()
	p, ok := a.pending[key]
	if !ok {
		p = &pendingSave{debounced: debounce.New(a.delay)}
		a.pending[key] = p
	}
	p.snapshot = snapshot
	p.dirty = true
	debounced := p.debounced
	a.mu.Unlock()

	debounced(func() {
		if err := a.save(context.Background(), key); err != nil {
			slog.Error("autosave failed", "error", err, "board", key)
		}
	})
}

// Dirty reports whether key has unsaved changes.
func (a *Autosaver) Dirty(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[key]
	return ok && p.dirty
}

// Flush saves every dirty key now.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	keys := make([]string, 0, len(a.pending))
	for key, p := range a.pending {
		if p.dirty {
			keys = append(keys, key)
		}
	}
	a.mu.Unlock()

	var firstErr error
	for _, key := range keys {
		if err := a.save(ctx, key); err != nil {
			slog.Error("flush save failed", "error", err, "board", key)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Forget drops any pending save for key.
func (a *Autosaver) Forget(key string) {
	a.mu.Lock()
	if p, ok := a.pending[key]; ok {
		p.dirty = false
	}
	a.mu.Unlock()
}

func (a *Autosaver) save(ctx context.Context, key string) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	p, ok := a.pending[key]
	if !ok || !p.dirty {
		a.mu.Unlock()
		return nil
	}
	p.dirty = false
	snapshot := p.snapshot
	a.mu.Unlock()

	data, err := snapshot()
	if err != nil {
		return fmt.Errorf("snapshot board %s: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := a.store.Put(ctx, key, data); err != nil {
		a.mu.Lock()
		p.dirty = true
		a.mu.Unlock()
		return err
	}
	slog.Debug("board saved", "board", key, "bytes", len(data))
	return nil
}
