package collab

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/engine"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
)

var ErrInvalidInput = errors.New("invalid input")

// ApplyInput feeds one client event into a board's state machine.
func ApplyInput(e *engine.Engine, in InputPayload) error {
	ev := engine.PointerEvent{X: in.X, Y: in.Y, Button: in.Button}
	switch in.Event {
	case EventPointerDown:
		e.PointerDown(ev)
	case EventPointerMove:
		e.PointerMove(ev)
	case EventPointerUp:
		e.PointerUp(ev)
	case EventPointerLeave:
		e.PointerLeave(ev)
	case EventWheel:
		e.Wheel(ev, in.DeltaY)
	case EventText:
		e.ConfirmText(in.Text)
	case EventKey:
		return applyKey(e, in)
	default:
		return fmt.Errorf("event %q: %w", in.Event, ErrInvalidInput)
	}
	return nil
}

func applyKey(e *engine.Engine, in InputPayload) error {
	key := strings.ToLower(in.Key)
	switch {
	case key == "escape":
		e.Escape()
	case key == "enter":
		e.ConfirmText(in.Text)
	case in.Ctrl && key == "z" && !in.Shift:
		_, err := e.Undo()
		return err
	case in.Ctrl && (key == "y" || (key == "z" && in.Shift)):
		_, err := e.Redo()
		return err
	}
	return nil
}

// ApplyTool changes drawing settings.
func ApplyTool(e *engine.Engine, p ToolPayload) error {
	if p.Tool != "" {
		t := engine.Tool(p.Tool)
		if !t.Valid() {
			return fmt.Errorf("tool %q: %w", p.Tool, ErrInvalidInput)
		}
		e.SetTool(t)
	}
	e.SetStyle(p.Color, p.Width)
	if p.Snap != nil {
		e.SetSnap(*p.Snap)
	}
	if p.Guides != nil {
		e.SetShowGuides(*p.Guides)
	}
	return nil
}

// BuildSync captures the board for broadcast.
func BuildSync(e *engine.Engine, driver string) (SyncPayload, error) {
	board, err := json.Marshal(e.Serialize())
	if err != nil {
		return SyncPayload{}, fmt.Errorf("marshal board: %w", err)
	}
	out := SyncPayload{
		Board:   board,
		Guides:  e.Guides(),
		State:   e.State(),
		Tool:    e.Tool(),
		Driver:  driver,
		CanUndo: e.History().CanUndo(),
		CanRedo: e.History().CanRedo(),
	}
	if d, ok := e.Draft(); ok {
		if out.Draft, err = scene.MarshalObject(d); err != nil {
			return SyncPayload{}, fmt.Errorf("marshal draft: %w", err)
		}
	}
	return out, nil
}

// claimsPointer reports whether an event starts a gesture that should hold
// the board's pointer until it is released.
func claimsPointer(in InputPayload) bool {
	return in.Event == EventPointerDown
}

func releasesPointer(in InputPayload) bool {
	return in.Event == EventPointerUp || in.Event == EventPointerLeave
}

// pointerEvent reports whether an event goes through the pointer claim.
func pointerEvent(in InputPayload) bool {
	switch in.Event {
	case EventPointerDown, EventPointerMove, EventPointerUp, EventPointerLeave:
		return true
	}
	return false
}
