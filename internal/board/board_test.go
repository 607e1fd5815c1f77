package board

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/engine"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/history"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/store"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/typeid"
)

type recordingNotifier struct {
	mu     sync.Mutex
	boards []string
}

func (n *recordingNotifier) Notify(ctx context.Context, board string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.boards = append(n.boards, board)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.boards)
}

type fixture struct {
	store    *store.MemoryStore
	registry *Registry
	clock    *clock.Mock
	notifier *recordingNotifier
	router   *mux.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.NewMemoryStore(),
		clock:    clock.NewMock(),
		notifier: &recordingNotifier{},
	}
	saver := store.NewAutosaver(f.store, 10*time.Millisecond)
	f.registry = NewRegistry(f.store, saver, engine.WithClock(f.clock))
	f.registry.SetNotifier(f.notifier)

	h := NewHandler(f.registry)
	r := mux.NewRouter()
	r.HandleFunc("/boards", h.Create).Methods("POST")
	r.HandleFunc("/boards/{key}", h.Get).Methods("GET")
	r.HandleFunc("/boards/{key}", h.Put).Methods("PUT")
	r.HandleFunc("/boards/{key}", h.Delete).Methods("DELETE")
	r.HandleFunc("/boards/{key}/undo", h.Undo).Methods("POST")
	r.HandleFunc("/boards/{key}/redo", h.Redo).Methods("POST")
	r.HandleFunc("/boards/{key}/history", h.History).Methods("GET")
	r.HandleFunc("/boards/{key}/history/{index}/load", h.LoadHistory).Methods("POST")
	r.HandleFunc("/boards/{key}/snapshots", h.ListSnapshots).Methods("GET")
	r.HandleFunc("/boards/{key}/snapshots", h.SaveSnapshot).Methods("POST")
	r.HandleFunc("/boards/{key}/snapshots/{id}/restore", h.RestoreSnapshot).Methods("POST")
	r.HandleFunc("/boards/{key}/stickies", h.AddSticky).Methods("POST")
	r.HandleFunc("/boards/{key}/media", h.AddMedia).Methods("POST")
	r.HandleFunc("/boards/{key}/objects/{id}", h.DeleteObject).Methods("DELETE")
	r.HandleFunc("/boards/{key}/clear", h.Clear).Methods("POST")
	f.router = r
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) create(t *testing.T, query string) string {
	t.Helper()
	rec := f.do("POST", "/boards"+query, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp createResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NoError(t, typeid.Validate(resp.Key, typeid.PrefixBoard))
	return resp.Key
}

func (f *fixture) envelope(t *testing.T, key string) scene.Envelope {
	t.Helper()
	rec := f.do("GET", "/boards/"+key, "")
	require.Equal(t, http.StatusOK, rec.Code)
	env, err := scene.Hydrate(rec.Body.Bytes())
	require.NoError(t, err)
	return env
}

// settle lets the history debounce commit and waits for the cursor.
func (f *fixture) settle(t *testing.T, key string, wantCursor int) {
	t.Helper()
	f.clock.Add(history.DefaultDelay + time.Millisecond)
	require.Eventually(t, func() bool {
		cursor := -2
		f.registry.View(context.Background(), key, func(e *engine.Engine) error {
			cursor = e.History().Cursor()
			return nil
		})
		return cursor == wantCursor
	}, time.Second, time.Millisecond)
}

func (f *fixture) addSticky(t *testing.T, key string, x float64) int64 {
	t.Helper()
	rec := f.do("POST", "/boards/"+key+"/stickies", fmt.Sprintf(`{"x":%g,"y":0,"body":"note"}`, x))
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp objectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t)

	empty := f.create(t, "")
	assert.Empty(t, f.envelope(t, empty).Objects)

	sample := f.create(t, "?sample=1")
	env := f.envelope(t, sample)
	assert.Len(t, env.Objects, len(scene.NewSampleEnvelope().Objects))

	rec := f.do("POST", "/boards", `{"objects":[{"type":"rect","id":1,"start":{"x":0,"y":0},"end":{"x":10,"y":10}}],"zoom":2,"isLocked":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp createResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	env = f.envelope(t, resp.Key)
	assert.Equal(t, 2.0, env.Zoom)
	assert.False(t, env.IsLocked, "new boards start unlocked")

	assert.Equal(t, http.StatusBadRequest, f.do("POST", "/boards", `{nope`).Code)
}

func TestUnknownBoards(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do("GET", "/boards/"+typeid.NewBoardID(), "").Code)
	assert.Equal(t, http.StatusNotFound, f.do("GET", "/boards/not-a-board", "").Code)

	key := f.create(t, "")
	assert.Equal(t, http.StatusNotFound, f.do("GET", "/boards/"+key+lockSuffix, "").Code,
		"lock records are not boards")
}

func TestPutReplacesBoard(t *testing.T) {
	f := newFixture(t)
	key := f.create(t, "?sample=1")

	rec := f.do("PUT", "/boards/"+key, `{"objects":[],"zoom":7.5,"pan":{"x":3,"y":4}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	env := f.envelope(t, key)
	assert.Empty(t, env.Objects)
	assert.Equal(t, 5.0, env.Zoom)
	assert.Equal(t, 4.0, env.Pan.Y)
	assert.Equal(t, 1, f.notifier.count())

	assert.Equal(t, http.StatusBadRequest, f.do("PUT", "/boards/"+key, "garbage").Code)
}

func TestUndoRedoOverHTTP(t *testing.T) {
	f := newFixture(t)
	key := f.create(t, "")

	f.addSticky(t, key, 0)
	f.settle(t, key, 0)
	f.addSticky(t, key, 200)
	f.settle(t, key, 1)

	rec := f.do("POST", "/boards/"+key+"/undo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var step stepResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &step))
	assert.True(t, step.Changed)
	assert.True(t, step.History.CanRedo)
	assert.Len(t, f.envelope(t, key).Objects, 1)

	rec = f.do("POST", "/boards/"+key+"/undo", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &step))
	assert.False(t, step.Changed, "undo at the start of the timeline is a no-op")

	require.Equal(t, http.StatusOK, f.do("POST", "/boards/"+key+"/redo", "").Code)
	assert.Len(t, f.envelope(t, key).Objects, 2)

	rec = f.do("GET", "/boards/"+key+"/history", "")
	var timeline engine.HistoryState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &timeline))
	assert.Len(t, timeline.Entries, 2)
	assert.Equal(t, 1, timeline.Cursor)

	require.Equal(t, http.StatusOK, f.do("POST", "/boards/"+key+"/history/0/load", "").Code)
	assert.Len(t, f.envelope(t, key).Objects, 1)
	assert.Equal(t, http.StatusNotFound, f.do("POST", "/boards/"+key+"/history/9/load", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do("POST", "/boards/"+key+"/history/x/load", "").Code)
}

func TestNamedSnapshots(t *testing.T) {
	f := newFixture(t)
	key := f.create(t, "?sample=1")

	rec := f.do("POST", "/boards/"+key+"/snapshots", `{"name":"before"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var saved history.Named
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, "before", saved.Name)
	require.NoError(t, typeid.Validate(saved.ID, typeid.PrefixSnapshot))

	require.Equal(t, http.StatusNoContent, f.do("POST", "/boards/"+key+"/clear", "").Code)
	assert.Empty(t, f.envelope(t, key).Objects)

	rec = f.do("POST", "/boards/"+key+"/snapshots/"+saved.ID+"/restore", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.envelope(t, key).Objects, len(scene.NewSampleEnvelope().Objects))

	rec = f.do("GET", "/boards/"+key+"/snapshots", "")
	var named []history.Named
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &named))
	assert.Len(t, named, 1)

	assert.Equal(t, http.StatusNotFound, f.do("POST", "/boards/"+key+"/snapshots/snap_nope/restore", "").Code)

	rec = f.do("POST", "/boards/"+key+"/snapshots", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.True(t, strings.HasPrefix(saved.Name, "Snapshot "))
}

func TestObjectsAndMedia(t *testing.T) {
	f := newFixture(t)
	key := f.create(t, "")

	id := f.addSticky(t, key, 0)
	rec := f.do("POST", "/boards/"+key+"/media", `{"kind":"image","ref":"/assets/a.png","x":10,"y":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	env := f.envelope(t, key)
	require.Len(t, env.Objects, 2)
	media, ok := env.Objects[1].(scene.Media)
	require.True(t, ok)
	assert.Equal(t, 320.0, media.Width)

	assert.Equal(t, http.StatusBadRequest, f.do("POST", "/boards/"+key+"/media", `{"kind":"hologram"}`).Code)

	assert.Equal(t, http.StatusNoContent, f.do("DELETE", fmt.Sprintf("/boards/%s/objects/%d", key, id), "").Code)
	assert.Equal(t, http.StatusNotFound, f.do("DELETE", fmt.Sprintf("/boards/%s/objects/%d", key, id), "").Code)
	assert.Len(t, f.envelope(t, key).Objects, 1)
}

func TestLockedBoardRejectsEdits(t *testing.T) {
	f := newFixture(t)
	key := f.create(t, "?sample=1")
	ctx := context.Background()

	require.NoError(t, f.registry.SetLock(ctx, key, true, "hash"))
	hash, err := f.registry.LockHash(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "hash", hash)

	assert.Equal(t, http.StatusLocked, f.do("PUT", "/boards/"+key, `{"objects":[]}`).Code)
	assert.Equal(t, http.StatusLocked, f.do("POST", "/boards/"+key+"/clear", "").Code)
	assert.Equal(t, http.StatusLocked, f.do("POST", "/boards/"+key+"/stickies", `{"x":1,"y":1}`).Code)
	assert.Equal(t, http.StatusLocked, f.do("DELETE", "/boards/"+key, "").Code)
	assert.True(t, f.envelope(t, key).IsLocked)

	require.NoError(t, f.registry.SetLock(ctx, key, false, ""))
	hash, err = f.registry.LockHash(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, hash)
	assert.Equal(t, http.StatusNoContent, f.do("POST", "/boards/"+key+"/clear", "").Code)
}

func TestLockSurvivesReload(t *testing.T) {
	f := newFixture(t)
	key := f.create(t, "")
	ctx := context.Background()
	require.NoError(t, f.registry.SetLock(ctx, key, true, "hash"))
	require.NoError(t, f.registry.Flush(ctx))

	other := NewRegistry(f.store, store.NewAutosaver(f.store, time.Millisecond))
	require.NoError(t, other.View(ctx, key, func(e *engine.Engine) error {
		assert.True(t, e.Locked())
		return nil
	}))
}

func TestAutosavePersistsChanges(t *testing.T) {
	f := newFixture(t)
	key := f.create(t, "")
	f.addSticky(t, key, 40)

	require.Eventually(t, func() bool {
		data, err := f.store.Get(context.Background(), key)
		if err != nil {
			return false
		}
		env, _ := scene.Hydrate(data)
		return len(env.Objects) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDeleteBoard(t *testing.T) {
	f := newFixture(t)
	key := f.create(t, "")
	require.Equal(t, http.StatusNoContent, f.do("DELETE", "/boards/"+key, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do("GET", "/boards/"+key, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do("DELETE", "/boards/"+key, "").Code)
}

func TestCapture(t *testing.T) {
	f := newFixture(t)
	key := f.create(t, "?sample=1")

	c, err := f.registry.Capture(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, key, c.Name)
	assert.Len(t, c.Frame.Objects, len(scene.NewSampleEnvelope().Objects))
	assert.Equal(t, scene.ExportVersion, c.Export.Version)

	_, err = f.registry.Capture(context.Background(), typeid.NewBoardID())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
