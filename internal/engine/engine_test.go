package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/geom"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/render"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
)

func TestIdleMutationsBecomeEntries(t *testing.T) {
	e, clk := newTestEngine(t)

	for i := 0; i < 4; i++ {
		x := float64(i * 50)
		drawStroke(e, geom.Pt(x, 0), geom.Pt(x+10, 10))
		settle(t, e, clk, i)
	}

	tl := e.Timeline()
	assert.Len(t, tl.Entries, 4)
	assert.Equal(t, 3, tl.Cursor)
	assert.True(t, tl.CanUndo)
	assert.False(t, tl.CanRedo)
}

func TestUndoRedoRestoresDocument(t *testing.T) {
	e, clk := newTestEngine(t)
	for i := 0; i < 3; i++ {
		e.AddStickyNote(geom.Pt(float64(i*200), 0), "n", "")
		settle(t, e, clk, i)
	}
	before := e.Objects()

	changed, err := e.Undo()
	require.NoError(t, err)
	require.True(t, changed)
	assert.Len(t, e.Objects(), 2)

	changed, err = e.Redo()
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, before, e.Objects())

	// Restores are not recorded again.
	clk.Add(time.Second)
	assert.Len(t, e.Timeline().Entries, 3)
}

func TestUndoThenEditTruncates(t *testing.T) {
	e, clk := newTestEngine(t)
	for i := 0; i < 4; i++ {
		e.AddStickyNote(geom.Pt(float64(i*200), 0), "", "")
		settle(t, e, clk, i)
	}
	e.Undo()
	e.Undo()
	require.Equal(t, 1, e.Timeline().Cursor)

	e.AddStickyNote(geom.Pt(0, 500), "new", "")
	settle(t, e, clk, 2)

	tl := e.Timeline()
	assert.Len(t, tl.Entries, 3)
	assert.False(t, tl.CanRedo)
	assert.Len(t, e.Objects(), 3)
}

func TestUndoFlushesPendingEdit(t *testing.T) {
	e, clk := newTestEngine(t)
	e.AddStickyNote(geom.Pt(0, 0), "", "")
	settle(t, e, clk, 0)

	e.AddStickyNote(geom.Pt(300, 0), "", "")
	changed, err := e.Undo()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, e.Objects(), 1)

	changed, _ = e.Redo()
	assert.True(t, changed, "the flushed edit is redoable")
	assert.Len(t, e.Objects(), 2)
}

func TestIDsNeverReusedAfterUndo(t *testing.T) {
	e, clk := newTestEngine(t)
	a, _ := e.AddStickyNote(geom.Pt(0, 0), "", "")
	settle(t, e, clk, 0)
	b, _ := e.AddStickyNote(geom.Pt(200, 0), "", "")
	settle(t, e, clk, 1)

	e.Undo()
	c, _ := e.AddStickyNote(geom.Pt(400, 0), "", "")
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, b, c)
}

func TestNamedSnapshotRestore(t *testing.T) {
	e, clk := newTestEngine(t)
	e.AddStickyNote(geom.Pt(0, 0), "keep", "")
	settle(t, e, clk, 0)
	saved := e.SaveSnapshot("checkpoint")

	require.NoError(t, e.Clear())
	settle(t, e, clk, 1)
	require.Empty(t, e.Objects())

	require.NoError(t, e.RestoreSnapshot(saved.ID))
	require.Len(t, e.Objects(), 1)
	tl := e.Timeline()
	assert.Len(t, tl.Entries, 3)
	assert.Equal(t, "restore checkpoint", tl.Entries[2].Label)

	assert.ErrorIs(t, e.RestoreSnapshot("snap_missing"), ErrNotFound)
}

func TestLoadHistory(t *testing.T) {
	e, clk := newTestEngine(t)
	for i := 0; i < 3; i++ {
		e.AddStickyNote(geom.Pt(float64(i*200), 0), "", "")
		settle(t, e, clk, i)
	}
	require.NoError(t, e.LoadHistory(0))
	assert.Len(t, e.Objects(), 1)
	assert.ErrorIs(t, e.LoadHistory(7), ErrNotFound)
}

func TestLockedBoardRejectsCommands(t *testing.T) {
	e, _ := newTestEngine(t)
	id, err := e.AddStickyNote(geom.Pt(0, 0), "", "")
	require.NoError(t, err)
	e.SetLocked(true)

	_, err = e.AddStickyNote(geom.Pt(0, 0), "", "")
	assert.ErrorIs(t, err, ErrLocked)
	assert.ErrorIs(t, e.DeleteObject(id), ErrLocked)
	assert.ErrorIs(t, e.Clear(), ErrLocked)
	_, err = e.Undo()
	assert.ErrorIs(t, err, ErrLocked)

	e.SetLocked(false)
	assert.NoError(t, e.DeleteObject(id))
	assert.ErrorIs(t, e.DeleteObject(id), ErrNotFound)
}

func TestOpenMediaPanel(t *testing.T) {
	e, _ := newTestEngine(t)
	id, err := e.InsertMedia(scene.MediaPDF, "/assets/a.pdf", geom.Pt(10, 10), 100, 80)
	require.NoError(t, err)

	_, ok := e.OpenMediaAt(geom.Pt(5, 5))
	assert.False(t, ok)

	p, ok := e.OpenMediaAt(geom.Pt(50, 50))
	require.True(t, ok)
	assert.Equal(t, scene.PanelMediaViewer, p.Kind)
	assert.Equal(t, id, p.ObjectID)
	assert.Greater(t, p.ID, id)

	require.NoError(t, e.DeleteObject(id))
	assert.Empty(t, e.Panels(), "viewer closes with its object")

	_, err = e.InsertMedia("hologram", "", geom.Pt(0, 0), 0, 0)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNotesPanelSurvivesClear(t *testing.T) {
	e, _ := newTestEngine(t)
	e.AddStickyNote(geom.Pt(0, 0), "a", "")

	notes := e.OpenNotes("Agenda", 40, 60)
	assert.Equal(t, scene.PanelNotes, notes.Kind)
	assert.Zero(t, notes.ObjectID)

	require.NoError(t, e.Clear())
	panels := e.Panels()
	require.Len(t, panels, 1)
	assert.Equal(t, "Agenda", panels[0].Title)
	assert.True(t, e.ClosePanel(notes.ID))
}

func TestInsertMediaDefaultSize(t *testing.T) {
	e, _ := newTestEngine(t)
	id, _ := e.InsertMedia(scene.MediaAudio, "", geom.Pt(0, 0), 0, 0)
	obj, _ := e.Object(id)
	m := obj.(scene.Media)
	assert.Equal(t, 300.0, m.Width)
	assert.Equal(t, 60.0, m.Height)
}

func TestSerializeHydrateRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetTool(ToolRect)
	e.PointerDown(at(0, 0))
	e.PointerMove(at(100, 60))
	e.PointerUp(at(100, 60))
	e.AddStickyNote(geom.Pt(300, 300), "hello", "#ffcc00")
	e.SetZoom(1.5)
	e.SetPan(geom.Pt(-20, 40))

	data, err := json.Marshal(e.Serialize())
	require.NoError(t, err)

	other, _ := newTestEngine(t)
	require.NoError(t, other.HydrateJSON(data))
	assert.Equal(t, e.Objects(), other.Objects())
	assert.Equal(t, e.Viewport(), other.Viewport())

	id, _ := other.AddStickyNote(geom.Pt(0, 0), "", "")
	for _, o := range e.Objects() {
		assert.NotEqual(t, o.Header().ID, id)
	}
}

func TestHydrateUndefinedFields(t *testing.T) {
	e, _ := newTestEngine(t)
	e.AddStickyNote(geom.Pt(0, 0), "", "")
	e.SetZoom(3)

	require.NoError(t, e.HydrateJSON([]byte(`{"participants":[]}`)))
	assert.Empty(t, e.Objects())
	assert.Equal(t, 1.0, e.Viewport().Zoom)
	assert.Equal(t, geom.Point{}, e.Viewport().Pan())
}

func TestHydrateIsNotRecorded(t *testing.T) {
	e, clk := newTestEngine(t)
	require.NoError(t, e.HydrateJSON([]byte(`{"objects":[{"type":"rect","id":5}]}`)))
	clk.Add(time.Second)
	assert.Equal(t, -1, e.History().Cursor())
}

func TestHydrateGivesEveryObjectItsOwnID(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.HydrateJSON([]byte(`{"objects":[
		{"type":"rect","start":{"x":0,"y":0},"end":{"x":10,"y":10}},
		{"type":"rect","start":{"x":200,"y":200},"end":{"x":210,"y":210}},
		{"type":"line","id":5,"start":{"x":0,"y":0},"end":{"x":5,"y":5}},
		{"type":"line","id":5,"start":{"x":50,"y":50},"end":{"x":60,"y":60}}
	]}`)))
	require.Len(t, e.Objects(), 4)

	require.ErrorIs(t, e.DeleteObject(0), ErrNotFound)
	require.NoError(t, e.DeleteObject(5))
	assert.Len(t, e.Objects(), 3)

	// Erasing one of the id-less rects leaves the other in place.
	e.SetTool(ToolEraser)
	e.PointerDown(at(205, 205))
	e.PointerUp(at(205, 205))
	objs := e.Objects()
	require.Len(t, objs, 2)
	assert.Equal(t, geom.Pt(0, 0), objs[0].(scene.Rect).Start)
}

func TestRenderJSON(t *testing.T) {
	e, _ := newTestEngine(t)
	e.AddStickyNote(geom.Pt(0, 0), "n", "")

	var cmds []render.DrawCommand
	require.NoError(t, json.Unmarshal([]byte(e.Render()), &cmds))
	require.NotEmpty(t, cmds)
	assert.Equal(t, "clear", cmds[0].Op)
	assert.Equal(t, "restore", cmds[len(cmds)-1].Op)
}

func TestRenderImageSize(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Resize(120, 90)
	img := e.RenderImage()
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 90, img.Bounds().Dy())
}

func TestExport(t *testing.T) {
	e, clk := newTestEngine(t)
	e.AddStickyNote(geom.Pt(0, 0), "n", "")
	exp, err := e.Export()
	require.NoError(t, err)
	assert.Equal(t, clk.Now().UTC(), exp.Timestamp)
	assert.Len(t, exp.Objects, 1)
	assert.Equal(t, scene.ExportVersion, exp.Version)
}

func TestOnChangeEvents(t *testing.T) {
	e, _ := newTestEngine(t)
	var events []Event
	e.OnChange(func(ev Event) { events = append(events, ev) })

	e.AddStickyNote(geom.Pt(0, 0), "", "")
	e.SetZoom(2)
	e.SetLocked(true)

	assert.Equal(t, []Event{EventDocument, EventViewport, EventLock}, events)
}
