package engine

import (
	"strings"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/geom"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/snapping"
)

// State of the interaction state machine.
type State string

const (
	StateIdle      State = "idle"
	StateDrawing   State = "drawing"
	StatePanning   State = "panning"
	StateTextEntry State = "text-entry-pending"
)

// Tool is the active drawing tool.
type Tool string

const (
	ToolPointer     Tool = "pointer"
	ToolPen         Tool = "pen"
	ToolHighlighter Tool = "highlighter"
	ToolLine        Tool = "line"
	ToolRect        Tool = "rect"
	ToolCircle      Tool = "circle"
	ToolEraser      Tool = "eraser"
	ToolText        Tool = "text"
	ToolSticky      Tool = "sticky"
)

// Valid reports whether t names a known tool.
func (t Tool) Valid() bool {
	switch t {
	case ToolPointer, ToolPen, ToolHighlighter, ToolLine, ToolRect, ToolCircle,
		ToolEraser, ToolText, ToolSticky:
		return true
	}
	return false
}

// Mouse buttons as reported by DOM pointer events.
const (
	ButtonPrimary   = 0
	ButtonMiddle    = 1
	ButtonSecondary = 2
)

// PointerEvent is a pointer position in screen pixels.
type PointerEvent struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button"`
}

func (ev PointerEvent) screen() geom.Point {
	return geom.Point{X: ev.X, Y: ev.Y}
}

// PointerDown starts an interaction for the active tool. A secondary button
// always pans.
func (e *Engine) PointerDown(ev PointerEvent) {
	if e.state == StateTextEntry {
		e.CancelText()
	}
	if e.state != StateIdle {
		return
	}

	if ev.Button == ButtonSecondary || e.tool == ToolPointer {
		e.state = StatePanning
		e.panStart = ev.screen().Sub(e.view.Pan())
		return
	}
	if e.locked {
		return
	}

	world := e.view.ToWorld(ev.screen())
	switch e.tool {
	case ToolPen, ToolHighlighter:
		style := e.style
		if e.tool == ToolHighlighter {
			style.Opacity = scene.HighlighterOpacity
		}
		e.draft = scene.Stroke{Base: scene.Base{Style: style}, Points: []geom.Point{world}}
		e.state = StateDrawing
		e.emit(EventDraft)

	case ToolLine, ToolRect, ToolCircle:
		p := e.shapePoint(world)
		e.draft = newShape(e.tool, e.style, p)
		e.state = StateDrawing
		e.guides = snapping.Guides(p, e.doc.Objects())
		e.emit(EventDraft)

	case ToolEraser:
		if hit, ok := scene.HitTest(world, e.doc.Objects(), scene.HitErase); ok {
			e.doc.RemoveByID(hit.Header().ID)
		}

	case ToolText:
		e.textAt = world
		e.state = StateTextEntry
		e.emit(EventDraft)

	case ToolSticky:
		e.doc.Append(scene.StickyNote{Base: scene.Base{Style: e.style}, Origin: world})
	}
}

// PointerMove extends a stroke, drags a shape's end or pans.
func (e *Engine) PointerMove(ev PointerEvent) {
	switch e.state {
	case StatePanning:
		e.view.SetPan(ev.screen().Sub(e.panStart))
		e.emit(EventViewport)

	case StateDrawing:
		world := e.view.ToWorld(ev.screen())
		switch d := e.draft.(type) {
		case scene.Stroke:
			d.Points = append(d.Points, world)
			e.draft = d
		default:
			p := e.shapePoint(world)
			e.draft = withEnd(e.draft, p)
			e.guides = snapping.Guides(p, e.doc.Objects())
		}
		e.emit(EventDraft)
	}
}

// PointerUp commits the draft as last previewed and returns to idle. The
// release point is ignored: a shape ends where the last move put it. A
// pending text entry survives the release of the click that started it.
func (e *Engine) PointerUp(ev PointerEvent) {
	switch e.state {
	case StateTextEntry:
		return
	case StateDrawing:
		e.commitDraft()
	default:
		e.state = StateIdle
	}
	e.guides = nil
	e.emit(EventDraft)
}

// PointerLeave behaves like PointerUp.
func (e *Engine) PointerLeave(ev PointerEvent) {
	e.PointerUp(ev)
}

// commitDraft moves the draft into the document. The machine is idle before
// the append so the change is picked up by history.
func (e *Engine) commitDraft() {
	draft := e.draft
	e.draft = nil
	e.state = StateIdle

	if s, ok := draft.(scene.Stroke); ok && len(s.Points) == 0 {
		return
	}
	if draft != nil {
		e.doc.Append(draft)
	}
}

// Wheel zooms by 10% per notch, keeping the point under the cursor fixed.
func (e *Engine) Wheel(ev PointerEvent, deltaY float64) {
	factor := 1.1
	if deltaY > 0 {
		factor = 0.9
	}
	e.view.ZoomAt(ev.screen(), e.view.Zoom*factor)
	e.emit(EventViewport)
}

// ConfirmText finishes a pending text entry. Blank text appends nothing.
func (e *Engine) ConfirmText(body string) (int64, bool) {
	if e.state != StateTextEntry {
		return 0, false
	}
	e.state = StateIdle
	e.emit(EventDraft)
	if strings.TrimSpace(body) == "" || e.locked {
		return 0, false
	}
	id := e.doc.Append(scene.Text{
		Base:     scene.Base{Style: e.style},
		Origin:   e.textAt,
		Body:     body,
		FontSize: scene.DefaultFontSize,
	})
	return id, true
}

// CancelText abandons a pending text entry.
func (e *Engine) CancelText() {
	if e.state == StateTextEntry {
		e.state = StateIdle
		e.emit(EventDraft)
	}
}

// Escape abandons whatever interaction is in progress without touching the
// document.
func (e *Engine) Escape() {
	if e.state == StateIdle && e.draft == nil {
		return
	}
	e.cancelInteraction()
	e.emit(EventDraft)
}

func (e *Engine) cancelInteraction() {
	e.state = StateIdle
	e.draft = nil
	e.guides = nil
}

func (e *Engine) shapePoint(world geom.Point) geom.Point {
	if e.snap {
		return snapping.SnapToGrid(world)
	}
	return world
}

func newShape(t Tool, style scene.Style, p geom.Point) scene.Object {
	base := scene.Base{Style: style}
	switch t {
	case ToolLine:
		return scene.Line{Base: base, Start: p, End: p}
	case ToolCircle:
		return scene.Circle{Base: base, Start: p, End: p}
	default:
		return scene.Rect{Base: base, Start: p, End: p}
	}
}

func withEnd(o scene.Object, p geom.Point) scene.Object {
	switch v := o.(type) {
	case scene.Line:
		v.End = p
		return v
	case scene.Rect:
		v.End = p
		return v
	case scene.Circle:
		v.End = p
		return v
	}
	return o
}
