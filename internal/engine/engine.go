package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/geom"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/history"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/render"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/snapping"
)

var (
	ErrLocked   = errors.New("board is locked")
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid argument")
)

// Event says what part of the session changed.
type Event string

const (
	EventDocument Event = "document"
	EventViewport Event = "viewport"
	EventDraft    Event = "draft"
	EventPanels   Event = "panels"
	EventLock     Event = "lock"
)

// Default canvas and viewer sizes.
const (
	DefaultWidth        = 1280.0
	DefaultHeight       = 800.0
	DefaultViewerWidth  = 480.0
	DefaultViewerHeight = 360.0
)

// Engine is one whiteboard session. It owns the scene document, viewport,
// interaction state and history, processes commands and answers queries.
// An Engine is not safe for concurrent use: a single owner drives it. The
// history timer runs on its own goroutine but only touches history state.
type Engine struct {
	doc     *scene.Document
	panels  *scene.Panels
	history *history.Manager
	view    geom.Viewport
	clock   clock.Clock
	images  render.Images

	// Interaction state
	state      State
	tool       Tool
	style      scene.Style
	snap       bool
	showGuides bool
	draft      scene.Object
	panStart   geom.Point
	textAt     geom.Point
	guides     []snapping.Guide

	// Envelope metadata carried through save and load
	locked       bool
	participants json.RawMessage
	chat         json.RawMessage

	width, height float64

	onChange []func(Event)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock drives history debouncing and timestamps from clk.
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) { e.clock = clk }
}

// WithImages sets the source of decoded media bitmaps for raster output.
func WithImages(images render.Images) Option {
	return func(e *Engine) { e.images = images }
}

// NewEngine creates a new engine instance with an empty document.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		doc:        scene.NewDocument(),
		view:       geom.NewViewport(),
		clock:      clock.New(),
		state:      StateIdle,
		tool:       ToolPen,
		snap:       true,
		showGuides: true,
		width:      DefaultWidth,
		height:     DefaultHeight,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.panels = scene.NewPanels(e.doc.IDs())
	e.history = history.NewManager(e.clock)
	e.doc.OnChange(e.documentChanged)
	return e
}

// documentChanged schedules a history snapshot for edits made while idle.
// Restores come from history itself and are never re-recorded.
func (e *Engine) documentChanged(c scene.Change) {
	if c.Reason != scene.ReasonRestore && e.state == StateIdle {
		e.history.Schedule(e.doc.Snapshot(), string(c.Reason))
	}
	if c.Reason == scene.ReasonRemove || c.Reason == scene.ReasonClear || c.Reason == scene.ReasonRestore {
		e.closeOrphanPanels()
	}
	e.emit(EventDocument)
}

func (e *Engine) closeOrphanPanels() {
	for _, p := range e.panels.List() {
		if p.ObjectID == 0 {
			continue
		}
		if _, ok := e.doc.Get(p.ObjectID); !ok {
			e.panels.CloseForObject(p.ObjectID)
		}
	}
}

// OnChange registers fn to run after every change to the session.
func (e *Engine) OnChange(fn func(Event)) {
	e.onChange = append(e.onChange, fn)
}

func (e *Engine) emit(ev Event) {
	for _, fn := range e.onChange {
		fn(ev)
	}
}

// --- Commands ---

// SetTool switches tools, abandoning any interaction in progress.
func (e *Engine) SetTool(t Tool) {
	if !t.Valid() || t == e.tool {
		return
	}
	e.Escape()
	e.tool = t
}

// SetStyle sets the color and stroke width used for new objects. Empty or
// non-positive values keep the current setting.
func (e *Engine) SetStyle(color string, width float64) {
	if color != "" {
		e.style.Color = color
	}
	if width > 0 {
		e.style.StrokeWidth = width
	}
}

// SetSnap toggles grid snapping for shape tools.
func (e *Engine) SetSnap(on bool) { e.snap = on }

// SetShowGuides toggles rendering of alignment guides.
func (e *Engine) SetShowGuides(on bool) {
	e.showGuides = on
	e.emit(EventDraft)
}

// Resize sets the canvas size in screen pixels.
func (e *Engine) Resize(width, height float64) {
	if width > 0 {
		e.width = width
	}
	if height > 0 {
		e.height = height
	}
	e.emit(EventViewport)
}

// SetZoom sets the zoom factor, clamped to the supported range.
func (e *Engine) SetZoom(z float64) {
	e.view.SetZoom(z)
	e.emit(EventViewport)
}

// SetPan sets the pan offset in screen pixels.
func (e *Engine) SetPan(p geom.Point) {
	e.view.SetPan(p)
	e.emit(EventViewport)
}

// SetLocked locks or unlocks the board. A locked board accepts viewport
// changes but no edits.
func (e *Engine) SetLocked(locked bool) {
	if e.locked == locked {
		return
	}
	if locked {
		e.Escape()
	}
	e.locked = locked
	e.emit(EventLock)
}

// Undo steps back one history entry.
func (e *Engine) Undo() (bool, error) {
	if e.locked {
		return false, ErrLocked
	}
	e.Escape()
	e.history.Flush()
	snap, ok := e.history.Undo()
	if !ok {
		return false, nil
	}
	e.doc.Restore(snap)
	return true, nil
}

// Redo steps forward one history entry.
func (e *Engine) Redo() (bool, error) {
	if e.locked {
		return false, ErrLocked
	}
	e.Escape()
	e.history.Flush()
	snap, ok := e.history.Redo()
	if !ok {
		return false, nil
	}
	e.doc.Restore(snap)
	return true, nil
}

// LoadHistory jumps to a point on the timeline.
func (e *Engine) LoadHistory(index int) error {
	if e.locked {
		return ErrLocked
	}
	e.Escape()
	e.history.Flush()
	snap, err := e.history.Load(index)
	if err != nil {
		return fmt.Errorf("load history %d: %w", index, ErrNotFound)
	}
	e.doc.Restore(snap)
	return nil
}

// SaveSnapshot stores the current document under name.
func (e *Engine) SaveSnapshot(name string) history.Named {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Snapshot " + e.clock.Now().Format("2006-01-02 15:04:05")
	}
	return e.history.SaveNamed(name, e.doc.Snapshot())
}

// RestoreSnapshot replaces the document with a named snapshot. The restore
// becomes a fresh timeline entry.
func (e *Engine) RestoreSnapshot(id string) error {
	if e.locked {
		return ErrLocked
	}
	n, err := e.history.NamedByID(id)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	e.Escape()
	e.history.Flush()
	e.doc.Restore(n.Snapshot)
	e.history.Record(e.doc.Snapshot(), "restore "+n.Name)
	return nil
}

// DeleteObject removes one object.
func (e *Engine) DeleteObject(id int64) error {
	if e.locked {
		return ErrLocked
	}
	if !e.doc.RemoveByID(id) {
		return fmt.Errorf("object %d: %w", id, ErrNotFound)
	}
	return nil
}

// Clear removes every object.
func (e *Engine) Clear() error {
	if e.locked {
		return ErrLocked
	}
	e.Escape()
	e.doc.Clear()
	return nil
}

// AddStickyNote appends a sticky note at a world position.
func (e *Engine) AddStickyNote(at geom.Point, body, background string) (int64, error) {
	if e.locked {
		return 0, ErrLocked
	}
	return e.doc.Append(scene.StickyNote{
		Base:       scene.Base{Style: e.style},
		Origin:     at,
		Body:       body,
		Background: background,
	}), nil
}

// InsertMedia appends a media placeholder. A zero size falls back to a
// default footprint for the kind.
func (e *Engine) InsertMedia(kind scene.MediaKind, ref string, at geom.Point, width, height float64) (int64, error) {
	if e.locked {
		return 0, ErrLocked
	}
	if !kind.Valid() {
		return 0, fmt.Errorf("media kind %q: %w", kind, ErrInvalid)
	}
	if width <= 0 || height <= 0 {
		width, height = defaultMediaSize(kind)
	}
	return e.doc.Append(scene.Media{
		Base:      scene.Base{Style: e.style},
		MediaKind: kind,
		Origin:    at,
		Width:     width,
		Height:    height,
		SourceRef: ref,
	}), nil
}

func defaultMediaSize(kind scene.MediaKind) (float64, float64) {
	switch kind {
	case scene.MediaAudio:
		return 300, 60
	case scene.MediaPDF:
		return 240, 320
	default:
		return 320, 240
	}
}

// OpenMediaAt opens a viewer panel for the media placeholder under a screen
// point.
func (e *Engine) OpenMediaAt(screen geom.Point) (scene.Panel, bool) {
	hit, ok := scene.HitTest(e.view.ToWorld(screen), e.doc.Objects(), scene.HitOpen)
	if !ok {
		return scene.Panel{}, false
	}
	m := hit.(scene.Media)
	p := e.panels.Open(scene.Panel{
		Kind:     scene.PanelMediaViewer,
		Title:    string(m.MediaKind),
		X:        screen.X,
		Y:        screen.Y,
		Width:    DefaultViewerWidth,
		Height:   DefaultViewerHeight,
		ObjectID: m.ID,
	})
	e.emit(EventPanels)
	return p, true
}

// OpenNotes opens a free-floating notes panel.
func (e *Engine) OpenNotes(title string, x, y float64) scene.Panel {
	p := e.panels.Open(scene.Panel{
		Kind:   scene.PanelNotes,
		Title:  title,
		X:      x,
		Y:      y,
		Width:  DefaultViewerWidth,
		Height: DefaultViewerHeight,
	})
	e.emit(EventPanels)
	return p
}

// FocusPanel raises a panel above the others.
func (e *Engine) FocusPanel(id int64) bool {
	ok := e.panels.Focus(id)
	if ok {
		e.emit(EventPanels)
	}
	return ok
}

// MovePanel repositions a panel.
func (e *Engine) MovePanel(id int64, x, y float64) bool {
	ok := e.panels.Move(id, x, y)
	if ok {
		e.emit(EventPanels)
	}
	return ok
}

// ClosePanel closes a panel.
func (e *Engine) ClosePanel(id int64) bool {
	ok := e.panels.Close(id)
	if ok {
		e.emit(EventPanels)
	}
	return ok
}

// Hydrate replaces the session with a persisted envelope. Any interaction in
// progress is abandoned and the load is not recorded on the timeline.
func (e *Engine) Hydrate(env scene.Envelope) {
	e.cancelInteraction()
	e.history.Flush()
	e.doc.Restore(scene.Snapshot{Objects: env.Objects})
	e.view = env.Viewport()
	e.locked = env.IsLocked
	e.participants = env.Participants
	e.chat = env.ChatMessages
	e.emit(EventViewport)
}

// HydrateJSON decodes and hydrates. Fields that fail to decode fall back to
// their defaults; the returned error lists them but the load still happens.
func (e *Engine) HydrateJSON(data []byte) error {
	env, err := scene.Hydrate(data)
	e.Hydrate(env)
	return err
}

// SetParticipants replaces the decorative participant list.
func (e *Engine) SetParticipants(raw json.RawMessage) {
	e.participants = raw
}

// --- Queries ---

// Frame returns everything the renderer needs for one redraw.
func (e *Engine) Frame() render.Frame {
	return render.Frame{
		Objects:    e.doc.Objects(),
		Viewport:   e.view,
		Draft:      scene.Clone(e.draft),
		Guides:     e.Guides(),
		ShowGuides: e.showGuides,
		Width:      e.width,
		Height:     e.height,
	}
}

// Render compiles the current frame and returns draw commands as JSON.
func (e *Engine) Render() string {
	result, _ := render.DrawCommandsToJSON(render.Compile(e.Frame()))
	return result
}

// RenderCommands compiles the current frame.
func (e *Engine) RenderCommands() []render.DrawCommand {
	return render.Compile(e.Frame())
}

// RenderImage rasterizes the current frame.
func (e *Engine) RenderImage() image.Image {
	return render.Rasterize(e.Frame(), e.images)
}

// Serialize returns the persisted form of the session.
func (e *Engine) Serialize() scene.Envelope {
	return scene.Envelope{
		Objects:      e.doc.Snapshot().Objects,
		Zoom:         e.view.Zoom,
		Pan:          e.view.Pan(),
		Participants: e.participants,
		ChatMessages: e.chat,
		IsLocked:     e.locked,
	}
}

// Export returns the structured, timestamped export of the board.
func (e *Engine) Export() (scene.Export, error) {
	return scene.NewExport(e.doc.Objects(), e.view, e.clock.Now())
}

// HitTest returns the topmost object the eraser would remove at a screen
// point.
func (e *Engine) HitTest(screen geom.Point) (scene.Object, bool) {
	return scene.HitTest(e.view.ToWorld(screen), e.doc.Objects(), scene.HitErase)
}

// Objects returns the committed objects in paint order.
func (e *Engine) Objects() []scene.Object { return e.doc.Objects() }

// Object looks up a committed object.
func (e *Engine) Object(id int64) (scene.Object, bool) { return e.doc.Get(id) }

// Draft returns the in-progress stroke or shape, if any.
func (e *Engine) Draft() (scene.Object, bool) {
	return scene.Clone(e.draft), e.draft != nil
}

func (e *Engine) State() State { return e.state }
func (e *Engine) Tool() Tool { return e.tool }
func (e *Engine) Style() scene.Style { return e.style }
func (e *Engine) Viewport() geom.Viewport { return e.view }
func (e *Engine) Locked() bool { return e.locked }
func (e *Engine) Panels() []scene.Panel { return e.panels.List() }
func (e *Engine) Named() []history.Named { return e.history.Named() }
func (e *Engine) Snap() bool { return e.snap }
func (e *Engine) ShowGuides() bool { return e.showGuides }
func (e *Engine) History() *history.Manager { return e.history }

// Guides returns the active alignment guides.
func (e *Engine) Guides() []snapping.Guide {
	return append([]snapping.Guide(nil), e.guides...)
}

// HistoryState summarizes the timeline for display.
type HistoryState struct {
	Entries []history.Entry `json:"entries"`
	Cursor  int             `json:"cursor"`
	CanUndo bool            `json:"canUndo"`
	CanRedo bool            `json:"canRedo"`
}

// Timeline returns the history timeline.
func (e *Engine) Timeline() HistoryState {
	return HistoryState{
		Entries: e.history.Entries(),
		Cursor:  e.history.Cursor(),
		CanUndo: e.history.CanUndo(),
		CanRedo: e.history.CanRedo(),
	}
}

// GetState returns the interaction state as JSON.
func (e *Engine) GetState() string {
	data, _ := json.Marshal(map[string]interface{}{
		"state":      e.state,
		"tool":       e.tool,
		"style":      e.style,
		"snap":       e.snap,
		"showGuides": e.showGuides,
		"zoom":       e.view.Zoom,
		"pan":        e.view.Pan(),
		"locked":     e.locked,
	})
	return string(data)
}
