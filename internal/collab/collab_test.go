package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/engine"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/store"
)

type fakeSession struct {
	mu      sync.Mutex
	engines map[string]*engine.Engine
}

func newFakeSession(keys ...string) *fakeSession {
	s := &fakeSession{engines: make(map[string]*engine.Engine)}
	for _, k := range keys {
		s.engines[k] = engine.NewEngine()
	}
	return s
}

func (s *fakeSession) Update(ctx context.Context, key string, fn func(*engine.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engines[key]
	if !ok {
		return fmt.Errorf("board %s: %w", key, store.ErrNotFound)
	}
	return fn(e)
}

func (s *fakeSession) View(ctx context.Context, key string, fn func(*engine.Engine) error) error {
	return s.Update(ctx, key, fn)
}

func TestApplyInputDrawsRect(t *testing.T) {
	e := engine.NewEngine()
	require.NoError(t, ApplyTool(e, ToolPayload{Tool: "rect", Color: "#ff0000"}))

	require.NoError(t, ApplyInput(e, InputPayload{Event: EventPointerDown, X: 0, Y: 0}))
	require.NoError(t, ApplyInput(e, InputPayload{Event: EventPointerMove, X: 98, Y: 52}))

	sync, err := BuildSync(e, "client_a")
	require.NoError(t, err)
	assert.Equal(t, engine.StateDrawing, sync.State)
	assert.NotEmpty(t, sync.Draft)

	require.NoError(t, ApplyInput(e, InputPayload{Event: EventPointerUp, X: 98, Y: 52}))
	objs := e.Objects()
	require.Len(t, objs, 1)
	assert.Equal(t, "#ff0000", objs[0].Header().Style.Color)
}

func TestApplyInputKeys(t *testing.T) {
	e := engine.NewEngine()
	require.NoError(t, ApplyTool(e, ToolPayload{Tool: "text"}))
	require.NoError(t, ApplyInput(e, InputPayload{Event: EventPointerDown, X: 5, Y: 5}))
	require.NoError(t, ApplyInput(e, InputPayload{Event: EventKey, Key: "Enter", Text: "hi"}))
	require.Len(t, e.Objects(), 1)
	assert.Equal(t, scene.KindText, e.Objects()[0].Kind())

	require.NoError(t, ApplyInput(e, InputPayload{Event: EventKey, Key: "z", Ctrl: true}))
	require.NoError(t, ApplyInput(e, InputPayload{Event: EventKey, Key: "Escape"}))

	e.SetLocked(true)
	assert.ErrorIs(t, ApplyInput(e, InputPayload{Event: EventKey, Key: "y", Ctrl: true}), engine.ErrLocked)
}

func TestApplyRejectsUnknown(t *testing.T) {
	e := engine.NewEngine()
	assert.ErrorIs(t, ApplyInput(e, InputPayload{Event: "teleport"}), ErrInvalidInput)
	assert.ErrorIs(t, ApplyTool(e, ToolPayload{Tool: "laser"}), ErrInvalidInput)

	off := false
	require.NoError(t, ApplyTool(e, ToolPayload{Snap: &off, Guides: &off, Width: 8}))
	assert.False(t, e.Snap())
	assert.False(t, e.ShowGuides())
	assert.Equal(t, 8.0, e.Style().StrokeWidth)
}

func TestParticipantsSorted(t *testing.T) {
	pm := NewPresenceManager()
	pm.Update("u2", &PresencePayload{DisplayName: "Bo"})
	pm.Update("u1", &PresencePayload{DisplayName: "Al"})
	assert.JSONEq(t, `[{"userId":"u1","displayName":"Al"},{"userId":"u2","displayName":"Bo"}]`, string(pm.Participants()))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Anonymous", displayName("  "))
	assert.Equal(t, "Ana", displayName(" Ana "))
	assert.Equal(t, maxDisplayName, len([]rune(displayName(strings.Repeat("é", 100)))))
}

// wsConn is a test client speaking the hub protocol.
type wsConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server, board, name string) *wsConn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/boards/" + board + "?name=" + name
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return &wsConn{t: t, conn: conn}
}

func (c *wsConn) send(typ string, payload any) {
	c.t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(c.t, err)
	msg, err := json.Marshal(Message{Type: typ, Payload: data})
	require.NoError(c.t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(c.t, c.conn.Write(ctx, websocket.MessageText, msg))
}

// waitFor reads until a message of type typ satisfying ok arrives.
func (c *wsConn) waitFor(typ string, ok func(Message) bool) Message {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		_, data, err := c.conn.Read(ctx)
		require.NoError(c.t, err)
		var msg Message
		require.NoError(c.t, json.Unmarshal(data, &msg))
		if msg.Type == typ && (ok == nil || ok(msg)) {
			return msg
		}
	}
}

func newTestServer(t *testing.T, session Session) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(session)
	go hub.Run()
	t.Cleanup(hub.Stop)

	r := mux.NewRouter()
	r.HandleFunc("/ws/boards/{key}", hub.ServeWS(nil))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func objectCount(msg Message) int {
	var sync SyncPayload
	if json.Unmarshal(msg.Payload, &sync) != nil {
		return -1
	}
	env, _ := scene.Hydrate(sync.Board)
	return len(env.Objects)
}

func TestFullQueueMarksClientBehind(t *testing.T) {
	c := &Client{send: make(chan []byte, 1), UserID: "u1"}

	c.Send(&Message{Type: TypePresenceJoin})
	c.Send(&Message{Type: TypePresenceJoin})
	assert.False(t, c.takeBehind(), "only a lost sync needs replacing")

	c.Send(&Message{Type: TypeBoardSync})
	assert.True(t, c.takeBehind())
	assert.False(t, c.takeBehind())
	assert.Len(t, c.send, 1)

	c.closeSend()
	c.Send(&Message{Type: TypeBoardSync})
	assert.False(t, c.takeBehind())
}

func TestHubDrawOverWebsocket(t *testing.T) {
	session := newFakeSession("board_a")
	_, srv := newTestServer(t, session)

	alice := dial(t, srv, "board_a", "Alice")
	var welcome WelcomePayload
	require.NoError(t, json.Unmarshal(alice.waitFor(TypeWelcome, nil).Payload, &welcome))
	alice.waitFor(TypeBoardSync, nil)

	bob := dial(t, srv, "board_a", "Bob")
	bob.waitFor(TypeBoardSync, nil)
	alice.waitFor(TypePresenceJoin, nil)

	alice.send(TypeTool, ToolPayload{Tool: "line"})
	alice.send(TypeInput, InputPayload{Event: EventPointerDown, X: 0, Y: 0})
	alice.waitFor(TypeBoardSync, func(m Message) bool {
		var sync SyncPayload
		return json.Unmarshal(m.Payload, &sync) == nil && sync.Driver == welcome.ClientID
	})
	// Bob's gesture is ignored while Alice holds the pointer.
	bob.send(TypeInput, InputPayload{Event: EventPointerDown, X: 300, Y: 300})
	bob.send(TypeInput, InputPayload{Event: EventPointerUp, X: 400, Y: 400})
	alice.send(TypeInput, InputPayload{Event: EventPointerMove, X: 100, Y: 40})
	alice.send(TypeInput, InputPayload{Event: EventPointerUp, X: 100, Y: 40})

	bob.waitFor(TypeBoardSync, func(m Message) bool { return objectCount(m) == 1 })

	var line scene.Line
	require.NoError(t, session.View(context.Background(), "board_a", func(e *engine.Engine) error {
		objs := e.Objects()
		require.Len(t, objs, 1)
		line = objs[0].(scene.Line)
		return nil
	}))
	assert.Equal(t, 100.0, line.End.X)
}

func TestHubRejectsUnknownBoard(t *testing.T) {
	_, srv := newTestServer(t, newFakeSession())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/boards/nope"
	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestHubParticipantsFollowPresence(t *testing.T) {
	session := newFakeSession("board_a")
	_, srv := newTestServer(t, session)

	c := dial(t, srv, "board_a", "Cleo")
	c.waitFor(TypeBoardSync, nil)

	require.Eventually(t, func() bool {
		var raw json.RawMessage
		session.View(context.Background(), "board_a", func(e *engine.Engine) error {
			raw = e.Serialize().Participants
			return nil
		})
		return strings.Contains(string(raw), "Cleo")
	}, 5*time.Second, 10*time.Millisecond)
}
