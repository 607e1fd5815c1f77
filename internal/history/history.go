// Package history keeps the undo/redo timeline of a board. Snapshots are not
// recorded per mutation: Schedule arms a debounce timer and only the last
// snapshot handed in before the board goes quiet becomes an entry.
package history

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/typeid"
)

// DefaultDelay is the quiet period before a scheduled snapshot is committed.
const DefaultDelay = 500 * time.Millisecond

var ErrNotFound = errors.New("not found")

// Entry is one point on the timeline. It is never modified after creation.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Snapshot  scene.Snapshot `json:"-"`
	Label     string         `json:"label"`
}

// Named is a snapshot the user saved explicitly. Named snapshots are never
// pruned by later edits.
type Named struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"createdAt"`
	Snapshot  scene.Snapshot `json:"-"`
}

// Manager owns the timeline, the pending debounce timer and the named
// snapshots. It is safe for concurrent use; the timer callback runs on its
// own goroutine and only touches Manager state.
type Manager struct {
	mu    sync.Mutex
	clock clock.Clock
	delay time.Duration

	entries []Entry
	cursor  int

	timer   *clock.Timer
	pending *Entry
	gen     uint64

	named    []Named
	onCommit []func(Entry)
}

// NewManager returns an empty timeline. A nil clk uses the wall clock.
func NewManager(clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	return &Manager{clock: clk, delay: DefaultDelay, cursor: -1}
}

// OnCommit registers fn to run after an entry is added to the timeline.
// fn may run on the timer goroutine.
func (m *Manager) OnCommit(fn func(Entry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCommit = append(m.onCommit, fn)
}

// Schedule arms the debounce timer with a copy of snap, replacing any
// snapshot already pending.
func (m *Manager) Schedule(snap scene.Snapshot, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
	}
	m.gen++
	gen := m.gen
	m.pending = &Entry{Snapshot: snap.Clone(), Label: label}
	m.timer = m.clock.AfterFunc(m.delay, func() { m.fire(gen) })
}

func (m *Manager) fire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.pending == nil {
		m.mu.Unlock()
		return
	}
	e, ok := m.commitPendingLocked()
	hooks := m.onCommit
	m.mu.Unlock()

	if ok {
		for _, fn := range hooks {
			fn(e)
		}
	}
}

// Pending reports whether a snapshot is waiting on the timer.
func (m *Manager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Flush commits the pending snapshot now, if there is one.
func (m *Manager) Flush() {
	m.mu.Lock()
	e, ok := m.commitPendingLocked()
	hooks := m.onCommit
	m.mu.Unlock()

	if ok {
		for _, fn := range hooks {
			fn(e)
		}
	}
}

// Record commits snap immediately, discarding anything pending.
func (m *Manager) Record(snap scene.Snapshot, label string) bool {
	m.mu.Lock()
	m.cancelLocked()
	e, ok := m.appendLocked(Entry{Snapshot: snap.Clone(), Label: label})
	hooks := m.onCommit
	m.mu.Unlock()

	if ok {
		for _, fn := range hooks {
			fn(e)
		}
	}
	return ok
}

func (m *Manager) commitPendingLocked() (Entry, bool) {
	if m.pending == nil {
		return Entry{}, false
	}
	e := *m.pending
	m.cancelLocked()
	return m.appendLocked(e)
}

func (m *Manager) cancelLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.pending = nil
	m.gen++
}

// appendLocked skips snapshots equal to the current entry and drops any redo
// branch before appending.
func (m *Manager) appendLocked(e Entry) (Entry, bool) {
	if m.cursor >= 0 && m.entries[m.cursor].Snapshot.Equal(e.Snapshot) {
		return Entry{}, false
	}
	e.Timestamp = m.clock.Now()
	m.entries = append(m.entries[:m.cursor+1], e)
	m.cursor = len(m.entries) - 1
	return e, true
}

// Undo steps back one entry and returns the snapshot to restore. It is a
// no-op at the start of the timeline.
func (m *Manager) Undo() (scene.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor <= 0 {
		return scene.Snapshot{}, false
	}
	m.cursor--
	return m.entries[m.cursor].Snapshot.Clone(), true
}

// Redo steps forward one entry. It is a no-op at the end of the timeline.
func (m *Manager) Redo() (scene.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor >= len(m.entries)-1 {
		return scene.Snapshot{}, false
	}
	m.cursor++
	return m.entries[m.cursor].Snapshot.Clone(), true
}

// Load moves the cursor to index and returns that entry's snapshot.
func (m *Manager) Load(index int) (scene.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.entries) {
		return scene.Snapshot{}, ErrNotFound
	}
	m.cursor = index
	return m.entries[index].Snapshot.Clone(), nil
}

// CanUndo reports whether Undo would do anything.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor > 0
}

// CanRedo reports whether Redo would do anything.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor < len(m.entries)-1
}

// Entries returns the timeline.
func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Cursor returns the index of the active entry, or -1 when empty.
func (m *Manager) Cursor() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// SaveNamed stores snap under name.
func (m *Manager) SaveNamed(name string, snap scene.Snapshot) Named {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := Named{
		ID:        typeid.NewSnapshotID(),
		Name:      name,
		CreatedAt: m.clock.Now(),
		Snapshot:  snap.Clone(),
	}
	m.named = append(m.named, n)
	return n
}

// Named lists the saved snapshots, oldest first.
func (m *Manager) Named() []Named {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Named, len(m.named))
	copy(out, m.named)
	return out
}

// NamedByID returns a copy of the named snapshot with the given id.
func (m *Manager) NamedByID(id string) (Named, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.named {
		if n.ID == id {
			n.Snapshot = n.Snapshot.Clone()
			return n, nil
		}
	}
	return Named{}, ErrNotFound
}
