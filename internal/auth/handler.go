package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/store"
)

// Locker reads and changes a board's lock state. hash is empty when the
// board is unlocked. Unknown keys yield store.ErrNotFound.
type Locker interface {
	LockHash(ctx context.Context, key string) (hash string, err error)
	SetLock(ctx context.Context, key string, locked bool, hash string) error
}

type Handler struct {
	service *Service
	boards  Locker
}

func NewHandler(service *Service, boards Locker) *Handler {
	return &Handler{service: service, boards: boards}
}

type lockRequest struct {
	Passcode string `json:"passcode"`
}

type lockResponse struct {
	Locked bool   `json:"locked"`
	Token  string `json:"token,omitempty"`
}

// Lock handles POST /boards/{key}/lock.
func (h *Handler) Lock(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	current, err := h.boards.LockHash(r.Context(), key)
	if err != nil {
		handleLockerError(w, key, err)
		return
	}
	if current != "" {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "board already locked"})
		return
	}

	hash, err := h.service.HashPasscode(req.Passcode)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "passcode must be at least 4 characters"})
			return
		}
		slog.Error("hash passcode failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if err := h.boards.SetLock(r.Context(), key, true, hash); err != nil {
		handleLockerError(w, key, err)
		return
	}

	token, err := h.service.IssueToken(key)
	if err != nil {
		slog.Error("issue token failed", "error", err, "board", key)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	slog.Info("board locked", "board", key)
	writeJSON(w, http.StatusOK, lockResponse{Locked: true, Token: token})
}

// Unlock handles POST /boards/{key}/unlock. Either the passcode or a token
// for the board is accepted.
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req lockRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	hash, err := h.boards.LockHash(r.Context(), key)
	if err != nil {
		handleLockerError(w, key, err)
		return
	}
	if hash == "" {
		writeJSON(w, http.StatusOK, lockResponse{Locked: false})
		return
	}

	if !Authorized(r.Context(), key) {
		if err := h.service.CheckPasscode(hash, req.Passcode); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
	}

	if err := h.boards.SetLock(r.Context(), key, false, ""); err != nil {
		handleLockerError(w, key, err)
		return
	}

	slog.Info("board unlocked", "board", key)
	writeJSON(w, http.StatusOK, lockResponse{Locked: false})
}

func handleLockerError(w http.ResponseWriter, key string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "board not found"})
		return
	}
	slog.Error("board lock failed", "error", err, "board", key)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
