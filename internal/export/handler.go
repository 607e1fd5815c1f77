package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/render"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/store"
)

// Capture is a consistent view of one board taken under its lock.
type Capture struct {
	Name   string
	Frame  render.Frame
	Export scene.Export
}

// Source captures boards by key. Unknown keys yield store.ErrNotFound.
type Source interface {
	Capture(ctx context.Context, key string) (Capture, error)
}

// Handler serves board exports as PNG, PDF and structured JSON.
type Handler struct {
	source Source
	images render.Images
}

// NewHandler creates an export handler. images may be nil, in which case
// media render as chrome only.
func NewHandler(source Source, images render.Images) *Handler {
	return &Handler{source: source, images: images}
}

// PNG handles GET /boards/{key}/export.png.
func (h *Handler) PNG(w http.ResponseWriter, r *http.Request) {
	c, ok := h.capture(w, r)
	if !ok {
		return
	}
	h.prefetch(c.Frame)
	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, render.Rasterize(frameFor(r, c.Frame), h.images)); err != nil {
		slog.Error("png export", "error", err, "board", c.Name)
		http.Error(w, "failed to encode image", http.StatusInternalServerError)
		return
	}
	writeFile(w, "image/png", c.Name+".png", buf.Bytes())
}

// PDF handles GET /boards/{key}/export.pdf.
func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	c, ok := h.capture(w, r)
	if !ok {
		return
	}
	h.prefetch(c.Frame)
	var buf bytes.Buffer
	if err := WritePDF(&buf, frameFor(r, c.Frame), h.images); err != nil {
		slog.Error("pdf export", "error", err, "board", c.Name)
		http.Error(w, "failed to encode pdf", http.StatusInternalServerError)
		return
	}
	writeFile(w, "application/pdf", c.Name+".pdf", buf.Bytes())
}

// JSON handles GET /boards/{key}/export.json.
func (h *Handler) JSON(w http.ResponseWriter, r *http.Request) {
	c, ok := h.capture(w, r)
	if !ok {
		return
	}
	data, err := json.MarshalIndent(c.Export, "", "  ")
	if err != nil {
		slog.Error("json export", "error", err, "board", c.Name)
		http.Error(w, "failed to encode export", http.StatusInternalServerError)
		return
	}
	writeFile(w, "application/json", c.Name+".json", data)
}

func (h *Handler) capture(w http.ResponseWriter, r *http.Request) (Capture, bool) {
	key := mux.Vars(r)["key"]
	c, err := h.source.Capture(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "board not found", http.StatusNotFound)
		return Capture{}, false
	}
	if err != nil {
		slog.Error("capture board", "error", err, "board", key)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return Capture{}, false
	}
	c.Name = sanitizeName(c.Name)
	return c, true
}

// waiter is implemented by image sources that decode in the background.
type waiter interface {
	Wait()
}

// prefetch asks for every bitmap the frame shows and, when the source loads
// asynchronously, waits so the export is not missing images.
func (h *Handler) prefetch(f render.Frame) {
	if h.images == nil {
		return
	}
	for _, o := range f.Objects {
		if m, ok := o.(scene.Media); ok && m.MediaKind == scene.MediaImage {
			h.images.Lookup(m.SourceRef)
		}
	}
	if w, ok := h.images.(waiter); ok {
		w.Wait()
	}
}

// frameFor applies the ?fit=1 query option.
func frameFor(r *http.Request, f render.Frame) render.Frame {
	f = ForExport(f)
	if fit := r.URL.Query().Get("fit"); fit == "1" || fit == "true" {
		f = FitFrame(f)
	}
	return f
}

func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func sanitizeName(name string) string {
	if name == "" {
		return "board"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}
