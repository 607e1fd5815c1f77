package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/engine"
)

// Session gives the hub access to board engines. Both methods run fn while
// holding the board's lock.
type Session interface {
	Update(ctx context.Context, key string, fn func(*engine.Engine) error) error
	View(ctx context.Context, key string, fn func(*engine.Engine) error) error
}

type Room struct {
	board    string
	clients  map[string]*Client // clientID -> client
	presence *PresenceManager
	driver   string // clientID holding the pointer
	seq      int64
}

func NewRoom(board string) *Room {
	return &Room{
		board:    board,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
	}
}

type Hub struct {
	session    Session
	mu         sync.RWMutex
	rooms      map[string]*Room // board key -> room
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
}

func NewHub(session Session) *Hub {
	return &Hub{
		session:    session,
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.done:
			return
		}
	}
}

// Stop ends Run and closes every connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.RLock()
		var conns []*websocket.Conn
		for _, room := range h.rooms {
			for _, c := range room.clients {
				if c.conn != nil {
					conns = append(conns, c.conn)
				}
			}
		}
		h.mu.RUnlock()

		for _, conn := range conns {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
	})
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.Board]
	if !ok {
		room = NewRoom(client.Board)
		h.rooms[client.Board] = room
	}
	room.clients[client.ClientID] = client
	room.presence.Update(client.UserID, &PresencePayload{DisplayName: client.DisplayName})
	h.mu.Unlock()

	welcome, _ := json.Marshal(WelcomePayload{ClientID: client.ClientID, UserID: client.UserID})
	client.Send(&Message{Type: TypeWelcome, Board: client.Board, Payload: welcome})

	// Send current presence state to new client
	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	h.broadcastToRoom(client.Board, &Message{
		Type:    TypePresenceJoin,
		UserID:  client.UserID,
		Payload: joinPayload,
	}, client.ClientID)

	h.updateParticipants(room)
	h.syncTo(context.Background(), client.Board, client)

	slog.Info("client joined", "user", client.UserID, "board", client.Board)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.Board]
	if !ok || room.clients[client.ClientID] != client {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	client.closeSend()
	room.presence.Remove(client.UserID)
	wasDriver := room.driver == client.ClientID
	if wasDriver {
		room.driver = ""
	}

	if len(room.clients) == 0 {
		delete(h.rooms, client.Board)
	}
	h.mu.Unlock()

	// A gesture in progress ends as if the pointer left the canvas.
	if wasDriver {
		h.apply(context.Background(), client.Board, func(e *engine.Engine) error {
			e.PointerLeave(engine.PointerEvent{})
			return nil
		})
	}

	leavePayload, _ := json.Marshal(PresenceLeavePayload{
		UserID: client.UserID,
	})
	h.broadcastToRoom(client.Board, &Message{
		Type:    TypePresenceLeave,
		UserID:  client.UserID,
		Payload: leavePayload,
	}, "")
	h.updateParticipants(room)

	slog.Info("client left", "user", client.UserID, "board", client.Board)
}

// updateParticipants stores the presence list on the board so it is saved
// with the envelope.
func (h *Hub) updateParticipants(room *Room) {
	participants := room.presence.Participants()
	err := h.session.Update(context.Background(), room.board, func(e *engine.Engine) error {
		e.SetParticipants(participants)
		return nil
	})
	if err != nil {
		slog.Warn("update participants", "error", err, "board", room.board)
	}
}

func (h *Hub) handleMessage(ctx context.Context, sender *Client, msg *Message) {
	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(sender, msg)
	case TypeInput:
		h.handleInput(ctx, sender, msg)
	case TypeTool:
		h.handleTool(ctx, sender, msg)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
	}
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName

	h.mu.RLock()
	room, ok := h.rooms[sender.Board]
	h.mu.RUnlock()
	if !ok {
		return
	}

	room.presence.Update(sender.UserID, &presence)

	outPayload, _ := json.Marshal(presence)
	h.broadcastToRoom(sender.Board, &Message{
		Type:    TypePresenceUpdate,
		UserID:  sender.UserID,
		Payload: outPayload,
	}, sender.ClientID)
}

func (h *Hub) handleInput(ctx context.Context, sender *Client, msg *Message) {
	var in InputPayload
	if err := json.Unmarshal(msg.Payload, &in); err != nil {
		sender.sendError("invalid input payload")
		return
	}

	if pointerEvent(in) && !h.claim(sender, in) {
		return
	}

	err := h.apply(ctx, sender.Board, func(e *engine.Engine) error {
		return ApplyInput(e, in)
	})

	if releasesPointer(in) {
		h.release(sender)
	}
	if err != nil {
		sender.sendError(err.Error())
	}
}

func (h *Hub) handleTool(ctx context.Context, sender *Client, msg *Message) {
	var p ToolPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		sender.sendError("invalid tool payload")
		return
	}
	if err := h.apply(ctx, sender.Board, func(e *engine.Engine) error {
		return ApplyTool(e, p)
	}); err != nil {
		sender.sendError(err.Error())
	}
}

// claim lets one client at a time drive the shared state machine. Pointer
// events from anyone else are dropped until the driver releases.
func (h *Hub) claim(sender *Client, in InputPayload) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[sender.Board]
	if !ok {
		return false
	}
	switch {
	case room.driver == sender.ClientID:
		return true
	case room.driver == "" && claimsPointer(in):
		room.driver = sender.ClientID
		return true
	}
	return false
}

func (h *Hub) release(sender *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[sender.Board]; ok && room.driver == sender.ClientID {
		room.driver = ""
	}
}

// Driver returns the client currently holding a board's pointer.
func (h *Hub) Driver(board string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room, ok := h.rooms[board]; ok {
		return room.driver
	}
	return ""
}

// apply runs fn on the board and broadcasts the result. The engine error is
// returned after the broadcast so the sender still sees the current board.
func (h *Hub) apply(ctx context.Context, board string, fn func(*engine.Engine) error) error {
	var applyErr error
	var payload SyncPayload
	driver := h.Driver(board)
	err := h.session.Update(ctx, board, func(e *engine.Engine) error {
		applyErr = fn(e)
		var err error
		payload, err = BuildSync(e, driver)
		return err
	})
	if err != nil {
		return err
	}
	h.broadcastSync(board, payload)
	return applyErr
}

// Notify pushes the current board to every connected client. Call it after
// changing a board outside the hub.
func (h *Hub) Notify(ctx context.Context, board string) {
	h.mu.RLock()
	_, active := h.rooms[board]
	h.mu.RUnlock()
	if !active {
		return
	}

	payload, err := h.snapshot(ctx, board)
	if err != nil {
		slog.Warn("notify board", "error", err, "board", board)
		return
	}
	h.broadcastSync(board, payload)
}

func (h *Hub) syncTo(ctx context.Context, board string, client *Client) {
	payload, err := h.snapshot(ctx, board)
	if err != nil {
		client.sendError("board unavailable")
		return
	}
	data, _ := json.Marshal(payload)
	client.Send(&Message{Type: TypeBoardSync, Board: board, Payload: data})
}

func (h *Hub) snapshot(ctx context.Context, board string) (SyncPayload, error) {
	var payload SyncPayload
	driver := h.Driver(board)
	err := h.session.View(ctx, board, func(e *engine.Engine) error {
		var err error
		payload, err = BuildSync(e, driver)
		return err
	})
	return payload, err
}

func (h *Hub) broadcastSync(board string, payload SyncPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal sync", "error", err, "board", board)
		return
	}

	h.mu.Lock()
	room, ok := h.rooms[board]
	var seq int64
	if ok {
		room.seq++
		seq = room.seq
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.broadcastToRoom(board, &Message{Type: TypeBoardSync, Board: board, Seq: seq, Payload: data}, "")
}

func (h *Hub) broadcastToRoom(board string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[board]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}
