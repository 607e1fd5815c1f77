package board

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/engine"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/geom"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/history"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/scene"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/store"
)

const maxBoardSize = 16 << 20

type Handler struct {
	boards *Registry
}

func NewHandler(boards *Registry) *Handler {
	return &Handler{boards: boards}
}

type createResponse struct {
	Key string `json:"key"`
}

type stepResponse struct {
	Changed bool                `json:"changed"`
	History engine.HistoryState `json:"history"`
}

type snapshotRequest struct {
	Name string `json:"name"`
}

type stickyRequest struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Body       string  `json:"body"`
	Background string  `json:"background"`
}

type mediaRequest struct {
	Kind   scene.MediaKind `json:"kind"`
	Ref    string          `json:"ref"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Width  float64         `json:"width"`
	Height float64         `json:"height"`
}

type objectResponse struct {
	ID int64 `json:"id"`
}

// Create handles POST /boards. The body, if any, is an envelope to start
// from; ?sample=1 starts from the welcome board instead.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	env := scene.Envelope{Zoom: 1}
	if r.URL.Query().Get("sample") == "1" {
		env = scene.NewSampleEnvelope()
	} else {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBoardSize))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if len(data) > 0 {
			if !json.Valid(data) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			var herr error
			if env, herr = scene.Hydrate(data); herr != nil {
				slog.Warn("new board hydrated with defaults", "error", herr)
			}
		}
	}

	key, err := h.boards.Create(r.Context(), env)
	if err != nil {
		slog.Error("create board failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{Key: key})
}

// Get handles GET /boards/{key}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var env scene.Envelope
	err := h.boards.View(r.Context(), key, func(e *engine.Engine) error {
		env = e.Serialize()
		return nil
	})
	if err != nil {
		handleBoardError(w, key, err)
		return
	}

	writeJSON(w, http.StatusOK, env)
}

// Put handles PUT /boards/{key}: the board is replaced by the envelope in
// the body. The lock state is not taken from the body.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBoardSize))
	if err != nil || !json.Valid(data) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	env, herr := scene.Hydrate(data)
	if herr != nil {
		slog.Warn("board replaced with defaults", "error", herr, "board", key)
	}

	var out scene.Envelope
	err = h.boards.Mutate(r.Context(), key, func(e *engine.Engine) error {
		if e.Locked() {
			return engine.ErrLocked
		}
		env.IsLocked = false
		e.Hydrate(env)
		out = e.Serialize()
		return nil
	})
	if err != nil {
		handleBoardError(w, key, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// Delete handles DELETE /boards/{key}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if err := h.boards.Delete(r.Context(), key); err != nil {
		handleBoardError(w, key, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Undo handles POST /boards/{key}/undo.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*engine.Engine).Undo)
}

// Redo handles POST /boards/{key}/redo.
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*engine.Engine).Redo)
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request, fn func(*engine.Engine) (bool, error)) {
	key := mux.Vars(r)["key"]

	var resp stepResponse
	err := h.boards.Mutate(r.Context(), key, func(e *engine.Engine) error {
		changed, err := fn(e)
		if err != nil {
			return err
		}
		resp = stepResponse{Changed: changed, History: e.Timeline()}
		return nil
	})
	if err != nil {
		handleBoardError(w, key, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// History handles GET /boards/{key}/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var timeline engine.HistoryState
	err := h.boards.View(r.Context(), key, func(e *engine.Engine) error {
		timeline = e.Timeline()
		return nil
	})
	if err != nil {
		handleBoardError(w, key, err)
		return
	}

	writeJSON(w, http.StatusOK, timeline)
}

// LoadHistory handles POST /boards/{key}/history/{index}/load.
func (h *Handler) LoadHistory(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid history index"})
		return
	}

	var timeline engine.HistoryState
	err = h.boards.Mutate(r.Context(), key, func(e *engine.Engine) error {
		if err := e.LoadHistory(index); err != nil {
			return err
		}
		timeline = e.Timeline()
		return nil
	})
	if err != nil {
		handleBoardError(w, key, err)
		return
	}

	writeJSON(w, http.StatusOK, timeline)
}

// ListSnapshots handles GET /boards/{key}/snapshots.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var named []history.Named
	err := h.boards.View(r.Context(), key, func(e *engine.Engine) error {
		named = e.Named()
		return nil
	})
	if err != nil {
		handleBoardError(w, key, err)
		return
	}

	writeJSON(w, http.StatusOK, named)
}

// SaveSnapshot handles POST /boards/{key}/snapshots. A blank name gets a
// timestamped default.
func (h *Handler) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req snapshotRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	var saved history.Named
	err := h.boards.Update(r.Context(), key, func(e *engine.Engine) error {
		saved = e.SaveSnapshot(req.Name)
		return nil
	})
	if err != nil {
		handleBoardError(w, key, err)
		return
	}

	writeJSON(w, http.StatusCreated, saved)
}

// RestoreSnapshot handles POST /boards/{key}/snapshots/{id}/restore.
func (h *Handler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	id := mux.Vars(r)["id"]

	var env scene.Envelope
	err := h.boards.Mutate(r.Context(), key, func(e *engine.Engine) error {
		if err := e.RestoreSnapshot(id); err != nil {
			return err
		}
		env = e.Serialize()
		return nil
	})
	if err != nil {
		handleBoardError(w, key, err)
		return
	}

	writeJSON(w, http.StatusOK, env)
}

// AddSticky handles POST /boards/{key}/stickies.
func (h *Handler) AddSticky(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req stickyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var id int64
	err := h.boards.Mutate(r.Context(), key, func(e *engine.Engine) error {
		var err error
		id, err = e.AddStickyNote(geom.Pt(req.X, req.Y), req.Body, req.Background)
		return err
	})
	if err != nil {
		handleBoardError(w, key, err)
		return
	}

	writeJSON(w, http.StatusCreated, objectResponse{ID: id})
}

// AddMedia handles POST /boards/{key}/media, placing an uploaded asset (or
// any other reference) on the board.
func (h *Handler) AddMedia(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req mediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var id int64
	err := h.boards.Mutate(r.Context(), key, func(e *engine.Engine) error {
		var err error
		id, err = e.InsertMedia(req.Kind, req.Ref, geom.Pt(req.X, req.Y), req.Width, req.Height)
		return err
	})
	if err != nil {
		handleBoardError(w, key, err)
		return
	}

	writeJSON(w, http.StatusCreated, objectResponse{ID: id})
}

// DeleteObject handles DELETE /boards/{key}/objects/{id}.
func (h *Handler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid object id"})
		return
	}

	err = h.boards.Mutate(r.Context(), key, func(e *engine.Engine) error {
		return e.DeleteObject(id)
	})
	if err != nil {
		handleBoardError(w, key, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Clear handles POST /boards/{key}/clear.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	err := h.boards.Mutate(r.Context(), key, func(e *engine.Engine) error {
		return e.Clear()
	})
	if err != nil {
		handleBoardError(w, key, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func handleBoardError(w http.ResponseWriter, key string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, engine.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, engine.ErrLocked):
		writeJSON(w, http.StatusLocked, map[string]string{"error": "board is locked"})
	case errors.Is(err, engine.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("board request failed", "error", err, "board", key)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
