//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/engine"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/geom"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/media"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
)

var (
	eng      *engine.Engine
	images   *media.Loader
	onChange js.Value
)

func main() {
	// Only inline data URLs can be decoded in the browser.
	images = media.NewLoader(nil)
	eng = engine.NewEngine(engine.WithImages(images))

	eng.OnChange(func(ev engine.Event) { notify(string(ev)) })
	images.OnReady(func(string) { notify("media") })

	whiteboard := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	whiteboard.Set("loadBoard", js.FuncOf(loadBoard))
	whiteboard.Set("loadSampleBoard", js.FuncOf(loadSampleBoard))
	whiteboard.Set("pointerDown", js.FuncOf(pointer(eng.PointerDown)))
	whiteboard.Set("pointerMove", js.FuncOf(pointer(eng.PointerMove)))
	whiteboard.Set("pointerUp", js.FuncOf(pointer(eng.PointerUp)))
	whiteboard.Set("pointerLeave", js.FuncOf(pointer(eng.PointerLeave)))
	whiteboard.Set("wheel", js.FuncOf(wheel))
	whiteboard.Set("setTool", js.FuncOf(setTool))
	whiteboard.Set("setStyle", js.FuncOf(setStyle))
	whiteboard.Set("setSnap", js.FuncOf(setSnap))
	whiteboard.Set("setShowGuides", js.FuncOf(setShowGuides))
	whiteboard.Set("resize", js.FuncOf(resize))
	whiteboard.Set("confirmText", js.FuncOf(confirmText))
	whiteboard.Set("cancelText", js.FuncOf(func(this js.Value, args []js.Value) interface{} { eng.CancelText(); return nil }))
	whiteboard.Set("escape", js.FuncOf(func(this js.Value, args []js.Value) interface{} { eng.Escape(); return nil }))
	whiteboard.Set("undo", js.FuncOf(undo))
	whiteboard.Set("redo", js.FuncOf(redo))
	whiteboard.Set("loadHistory", js.FuncOf(loadHistory))
	whiteboard.Set("saveSnapshot", js.FuncOf(saveSnapshot))
	whiteboard.Set("restoreSnapshot", js.FuncOf(restoreSnapshot))
	whiteboard.Set("deleteObject", js.FuncOf(deleteObject))
	whiteboard.Set("clear", js.FuncOf(func(this js.Value, args []js.Value) interface{} { return result(eng.Clear()) }))
	whiteboard.Set("addStickyNote", js.FuncOf(addStickyNote))
	whiteboard.Set("insertMedia", js.FuncOf(insertMedia))
	whiteboard.Set("openMediaAt", js.FuncOf(openMediaAt))
	whiteboard.Set("openNotes", js.FuncOf(openNotes))
	whiteboard.Set("closePanel", js.FuncOf(closePanel))
	whiteboard.Set("focusPanel", js.FuncOf(focusPanel))
	whiteboard.Set("movePanel", js.FuncOf(movePanel))
	whiteboard.Set("onChange", js.FuncOf(setOnChange))

	// --- Queries (frontend ← engine) ---
	whiteboard.Set("render", js.FuncOf(func(this js.Value, args []js.Value) interface{} { return eng.Render() }))
	whiteboard.Set("serialize", js.FuncOf(serialize))
	whiteboard.Set("export", js.FuncOf(exportBoard))
	whiteboard.Set("getState", js.FuncOf(func(this js.Value, args []js.Value) interface{} { return eng.GetState() }))
	whiteboard.Set("getHistory", js.FuncOf(func(this js.Value, args []js.Value) interface{} { return toJSON(eng.Timeline()) }))
	whiteboard.Set("getSnapshots", js.FuncOf(func(this js.Value, args []js.Value) interface{} { return toJSON(eng.Named()) }))
	whiteboard.Set("getPanels", js.FuncOf(func(this js.Value, args []js.Value) interface{} { return toJSON(eng.Panels()) }))
	whiteboard.Set("hitTest", js.FuncOf(hitTest))

	js.Global().Set("whiteboardEngine", whiteboard)
	js.Global().Set("whiteboardWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func notify(what string) {
	if onChange.Type() == js.TypeFunction {
		onChange.Invoke(what)
	}
}

func result(err error) interface{} {
	if err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func toJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func num(args []js.Value, i int) float64 {
	if i >= len(args) || args[i].Type() != js.TypeNumber {
		return 0
	}
	return args[i].Float()
}

func str(args []js.Value, i int) string {
	if i >= len(args) || args[i].Type() != js.TypeString {
		return ""
	}
	return args[i].String()
}

// --- Command Handlers ---

func loadBoard(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing board JSON"})
	}
	// Fields that failed to decode fall back to defaults; the board still loads.
	return result(eng.HydrateJSON([]byte(args[0].String())))
}

func loadSampleBoard(this js.Value, args []js.Value) interface{} {
	eng.Hydrate(scene.NewSampleEnvelope())
	return result(nil)
}

func pointer(fn func(engine.PointerEvent)) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		fn(engine.PointerEvent{X: num(args, 0), Y: num(args, 1), Button: int(num(args, 2))})
		return nil
	}
}

func wheel(this js.Value, args []js.Value) interface{} {
	eng.Wheel(engine.PointerEvent{X: num(args, 0), Y: num(args, 1)}, num(args, 2))
	return nil
}

func setTool(this js.Value, args []js.Value) interface{} {
	t := engine.Tool(str(args, 0))
	if !t.Valid() {
		return js.ValueOf(map[string]interface{}{"error": "unknown tool"})
	}
	eng.SetTool(t)
	return result(nil)
}

func setStyle(this js.Value, args []js.Value) interface{} {
	eng.SetStyle(str(args, 0), num(args, 1))
	return nil
}

func setSnap(this js.Value, args []js.Value) interface{} {
	if len(args) > 0 {
		eng.SetSnap(args[0].Truthy())
	}
	return nil
}

func setShowGuides(this js.Value, args []js.Value) interface{} {
	if len(args) > 0 {
		eng.SetShowGuides(args[0].Truthy())
	}
	return nil
}

func resize(this js.Value, args []js.Value) interface{} {
	eng.Resize(num(args, 0), num(args, 1))
	return nil
}

func confirmText(this js.Value, args []js.Value) interface{} {
	id, ok := eng.ConfirmText(str(args, 0))
	if !ok {
		return nil
	}
	return js.ValueOf(float64(id))
}

func undo(this js.Value, args []js.Value) interface{} {
	changed, err := eng.Undo()
	if err != nil {
		return result(err)
	}
	return js.ValueOf(changed)
}

func redo(this js.Value, args []js.Value) interface{} {
	changed, err := eng.Redo()
	if err != nil {
		return result(err)
	}
	return js.ValueOf(changed)
}

func loadHistory(this js.Value, args []js.Value) interface{} {
	return result(eng.LoadHistory(int(num(args, 0))))
}

func saveSnapshot(this js.Value, args []js.Value) interface{} {
	return toJSON(eng.SaveSnapshot(str(args, 0)))
}

func restoreSnapshot(this js.Value, args []js.Value) interface{} {
	return result(eng.RestoreSnapshot(str(args, 0)))
}

func deleteObject(this js.Value, args []js.Value) interface{} {
	return result(eng.DeleteObject(int64(num(args, 0))))
}

func addStickyNote(this js.Value, args []js.Value) interface{} {
	id, err := eng.AddStickyNote(geom.Pt(num(args, 0), num(args, 1)), str(args, 2), str(args, 3))
	if err != nil {
		return result(err)
	}
	return js.ValueOf(float64(id))
}

func insertMedia(this js.Value, args []js.Value) interface{} {
	kind := scene.MediaKind(str(args, 0))
	ref := str(args, 1)
	id, err := eng.InsertMedia(kind, ref, geom.Pt(num(args, 2), num(args, 3)), num(args, 4), num(args, 5))
	if err != nil {
		return result(err)
	}
	if kind == scene.MediaImage {
		images.Request(ref)
	}
	return js.ValueOf(float64(id))
}

func openMediaAt(this js.Value, args []js.Value) interface{} {
	p, ok := eng.OpenMediaAt(geom.Pt(num(args, 0), num(args, 1)))
	if !ok {
		return nil
	}
	return toJSON(p)
}

func openNotes(this js.Value, args []js.Value) interface{} {
	return toJSON(eng.OpenNotes(str(args, 0), num(args, 1), num(args, 2)))
}

func closePanel(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.ClosePanel(int64(num(args, 0))))
}

func focusPanel(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.FocusPanel(int64(num(args, 0))))
}

func movePanel(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.MovePanel(int64(num(args, 0)), num(args, 1), num(args, 2)))
}

func setOnChange(this js.Value, args []js.Value) interface{} {
	if len(args) > 0 {
		onChange = args[0]
	}
	return nil
}

// --- Query Handlers ---

func serialize(this js.Value, args []js.Value) interface{} {
	return toJSON(eng.Serialize())
}

func exportBoard(this js.Value, args []js.Value) interface{} {
	exp, err := eng.Export()
	if err != nil {
		return result(err)
	}
	return toJSON(exp)
}

func hitTest(this js.Value, args []js.Value) interface{} {
	o, ok := eng.HitTest(geom.Pt(num(args, 0), num(args, 1)))
	if !ok {
		return nil
	}
	return js.ValueOf(float64(o.Header().ID))
}
