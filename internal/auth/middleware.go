package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const BoardKeyKey contextKey = "boardKey"

// TokenMiddleware records the board a valid bearer token grants. Requests
// without a token, or with a bad one, pass through anonymously.
func (s *Service) TokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		boardKey, err := s.ValidateToken(token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), BoardKeyKey, boardKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken reads the Authorization header, falling back to a token query
// parameter for websocket upgrades.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return r.URL.Query().Get("token")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func BoardKeyFromContext(ctx context.Context) string {
	boardKey, _ := ctx.Value(BoardKeyKey).(string)
	return boardKey
}

// Authorized reports whether the request carries a token for boardKey.
func Authorized(ctx context.Context, boardKey string) bool {
	return boardKey != "" && BoardKeyFromContext(ctx) == boardKey
}
