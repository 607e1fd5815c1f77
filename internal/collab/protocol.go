package collab

import (
	"encoding/json"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/engine"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/snapping"
)

type Message struct {
	Type     string          `json:"type"`
	Board    string          `json:"board,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type PresencePayload struct {
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Tool        string     `json:"tool,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

// CursorPos is in world coordinates so every viewer can place it.
type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}

type WelcomePayload struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Board sync
	TypeBoardSync = "board.sync"

	// Input
	TypeInput = "input"
	TypeTool  = "tool"
)

// Input event names, matching DOM event types.
const (
	EventPointerDown  = "pointerdown"
	EventPointerMove  = "pointermove"
	EventPointerUp    = "pointerup"
	EventPointerLeave = "pointerleave"
	EventWheel        = "wheel"
	EventKey          = "keydown"
	EventText         = "text"
)

// InputPayload carries one pointer or keyboard event. Coordinates are screen
// pixels on the board's canvas.
type InputPayload struct {
	Event  string  `json:"event"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button"`
	DeltaY float64 `json:"deltaY,omitempty"`
	Key    string  `json:"key,omitempty"`
	Ctrl   bool    `json:"ctrl,omitempty"`
	Shift  bool    `json:"shift,omitempty"`
	Text   string  `json:"text,omitempty"`
}

// ToolPayload changes drawing settings. Unset fields are left alone.
type ToolPayload struct {
	Tool   string  `json:"tool,omitempty"`
	Color  string  `json:"color,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Snap   *bool   `json:"snap,omitempty"`
	Guides *bool   `json:"guides,omitempty"`
}

// SyncPayload is the full board view pushed after every applied input.
type SyncPayload struct {
	Board   json.RawMessage  `json:"board"`
	Draft   json.RawMessage  `json:"draft,omitempty"`
	Guides  []snapping.Guide `json:"guides,omitempty"`
	State   engine.State     `json:"state"`
	Tool    engine.Tool      `json:"tool"`
	Driver  string           `json:"driver,omitempty"`
	CanUndo bool             `json:"canUndo"`
	CanRedo bool             `json:"canRedo"`
}
