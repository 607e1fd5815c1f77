package collab

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/engine"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/store"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/typeid"
)

const maxDisplayName = 40

// ServeWS handles GET /ws/boards/{key}. Everyone joins anonymously; the
// display name comes from the ?name= query parameter.
func (h *Hub) ServeWS(originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		board := mux.Vars(r)["key"]

		err := h.session.View(r.Context(), board, func(*engine.Engine) error { return nil })
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "board not found", http.StatusNotFound)
			return
		}
		if err != nil {
			slog.Error("websocket board lookup", "error", err, "board", board)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			slog.Error("websocket accept", "error", err)
			return
		}

		userID := "anon-" + uuid.New().String()[:8]
		client := NewClient(h, conn, userID, displayName(r.URL.Query().Get("name")), board, typeid.NewClientID())
		h.Register(client)

		ctx := r.Context()
		go client.WritePump(ctx)
		client.ReadPump(ctx)
	}
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Anonymous"
	}
	if utf8.RuneCountInString(name) > maxDisplayName {
		name = string([]rune(name)[:maxDisplayName])
	}
	return name
}
