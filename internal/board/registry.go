// Package board hosts live whiteboard sessions. A Registry keeps one engine
// per board key, loads boards from a store on first use and saves them back
// through an autosaver.
package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/engine"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/export"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/store"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/typeid"
)

// lockSuffix names the store key holding a board's passcode hash. Board keys
// are typeids, so the suffixed key can never be mistaken for a board.
const lockSuffix = ".lock"

// Notifier is told when a board changed outside the websocket hub.
type Notifier interface {
	Notify(ctx context.Context, board string)
}

type lockRecord struct {
	Hash string `json:"hash"`
}

type session struct {
	mu     sync.Mutex
	engine *engine.Engine
}

// Registry owns every live board. Each board is driven by one goroutine at a
// time through Update and View.
type Registry struct {
	store    store.Store
	saver    *store.Autosaver
	opts     []engine.Option
	notifier Notifier

	mu       sync.Mutex
	sessions map[string]*session
}

// NewRegistry serves boards from s. opts are applied to every engine it
// creates.
func NewRegistry(s store.Store, saver *store.Autosaver, opts ...engine.Option) *Registry {
	return &Registry{
		store:    s,
		saver:    saver,
		opts:     opts,
		sessions: make(map[string]*session),
	}
}

// SetNotifier registers who hears about changes made through Mutate and
// SetLock.
func (r *Registry) SetNotifier(n Notifier) {
	r.notifier = n
}

// Create stores env under a fresh board key.
func (r *Registry) Create(ctx context.Context, env scene.Envelope) (string, error) {
	env.IsLocked = false
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal board: %w", err)
	}
	key := typeid.NewBoardID()
	if err := r.store.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("create board: %w", err)
	}
	slog.Info("board created", "board", key, "objects", len(env.Objects))
	return key, nil
}

// Delete removes a board and its lock. Locked boards cannot be deleted.
func (r *Registry) Delete(ctx context.Context, key string) error {
	s, err := r.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.engine.Locked() {
		return engine.ErrLocked
	}
	if err := r.store.Delete(ctx, key); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete board %s: %w", key, err)
	}
	if err := r.store.Delete(ctx, key+lockSuffix); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("delete lock record", "error", err, "board", key)
	}
	r.saver.Forget(key)
	s.engine = nil

	r.mu.Lock()
	if r.sessions[key] == s {
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	slog.Info("board deleted", "board", key)
	return nil
}

// Update runs fn with exclusive access to the board's engine.
func (r *Registry) Update(ctx context.Context, key string, fn func(*engine.Engine) error) error {
	s, err := r.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	return fn(s.engine)
}

// View runs fn with the board's engine. fn must not mutate the board.
func (r *Registry) View(ctx context.Context, key string, fn func(*engine.Engine) error) error {
	return r.Update(ctx, key, fn)
}

// Mutate is Update followed by a notification, for changes made over HTTP.
func (r *Registry) Mutate(ctx context.Context, key string, fn func(*engine.Engine) error) error {
	err := r.Update(ctx, key, fn)
	if err == nil {
		r.notify(ctx, key)
	}
	return err
}

// Capture takes a consistent view of the board for export.
func (r *Registry) Capture(ctx context.Context, key string) (export.Capture, error) {
	var c export.Capture
	err := r.View(ctx, key, func(e *engine.Engine) error {
		exp, err := e.Export()
		if err != nil {
			return fmt.Errorf("export board %s: %w", key, err)
		}
		c = export.Capture{Name: key, Frame: e.Frame(), Export: exp}
		return nil
	})
	return c, err
}

// LockHash returns the passcode hash of a locked board, or "" when the
// board is open.
func (r *Registry) LockHash(ctx context.Context, key string) (string, error) {
	if err := r.View(ctx, key, func(*engine.Engine) error { return nil }); err != nil {
		return "", err
	}
	return r.readLock(ctx, key)
}

// SetLock locks or unlocks a board. The hash is stored beside the board,
// never in the envelope.
func (r *Registry) SetLock(ctx context.Context, key string, locked bool, hash string) error {
	err := r.Update(ctx, key, func(e *engine.Engine) error {
		if locked {
			data, err := json.Marshal(lockRecord{Hash: hash})
			if err != nil {
				return err
			}
			if err := r.store.Put(ctx, key+lockSuffix, data); err != nil {
				return fmt.Errorf("store lock for %s: %w", key, err)
			}
		} else if err := r.store.Delete(ctx, key+lockSuffix); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("remove lock for %s: %w", key, err)
		}
		e.SetLocked(locked)
		return nil
	})
	if err == nil {
		r.notify(ctx, key)
	}
	return err
}

// Flush writes every unsaved board.
func (r *Registry) Flush(ctx context.Context) error {
	return r.saver.Flush(ctx)
}

// acquire returns the board's session with its mutex held, loading it on
// first use.
func (r *Registry) acquire(ctx context.Context, key string) (*session, error) {
	if err := typeid.Validate(key, typeid.PrefixBoard); err != nil {
		return nil, fmt.Errorf("board %q: %w", key, store.ErrNotFound)
	}

	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		s = &session{}
		r.sessions[key] = s
	}
	r.mu.Unlock()

	s.mu.Lock()
	if s.engine != nil {
		return s, nil
	}

	e, err := r.load(ctx, key)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, store.ErrNotFound) {
			r.mu.Lock()
			if r.sessions[key] == s {
				delete(r.sessions, key)
			}
			r.mu.Unlock()
		}
		return nil, err
	}
	s.engine = e
	return s, nil
}

func (r *Registry) load(ctx context.Context, key string) (*engine.Engine, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load board %s: %w", key, err)
	}

	e := engine.NewEngine(r.opts...)
	if err := e.HydrateJSON(data); err != nil {
		slog.Warn("board loaded with defaults", "error", err, "board", key)
	}

	hash, err := r.readLock(ctx, key)
	if err != nil {
		return nil, err
	}
	e.SetLocked(hash != "")

	e.OnChange(func(ev engine.Event) {
		switch ev {
		case engine.EventDocument, engine.EventViewport, engine.EventLock:
			r.saver.Schedule(key, r.snapshotFunc(key))
		}
	})
	slog.Debug("board loaded", "board", key, "objects", len(e.Objects()))
	return e, nil
}

func (r *Registry) readLock(ctx context.Context, key string) (string, error) {
	data, err := r.store.Get(ctx, key+lockSuffix)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lock for %s: %w", key, err)
	}
	var rec lockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("decode lock for %s: %w", key, err)
	}
	return rec.Hash, nil
}

// snapshotFunc serializes the board when the autosaver fires.
func (r *Registry) snapshotFunc(key string) store.SnapshotFunc {
	return func() ([]byte, error) {
		var data []byte
		err := r.View(context.Background(), key, func(e *engine.Engine) error {
			var err error
			data, err = json.Marshal(e.Serialize())
			return err
		})
		return data, err
	}
}

func (r *Registry) notify(ctx context.Context, key string) {
	if r.notifier != nil {
		r.notifier.Notify(ctx, key)
	}
}
