package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/session"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "session_id"

	sessionCookieMaxAge = 30 * 24 * time.Hour
)

type contextKey string

const sessionIDKey contextKey = "session_id"

// SessionMiddleware resolves the shopper's session id from the X-Session-ID
// header or the session_id cookie and issues a new one when neither holds a
// valid id. The id is echoed back in both places.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(SessionHeader)
		if sessionID == "" {
			if c, err := r.Cookie(SessionCookie); err == nil {
				sessionID = c.Value
			}
		}
		if !session.ValidID(sessionID) {
			sessionID = session.NewID()
		}

		w.Header().Set(SessionHeader, sessionID)
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sessionID,
			Path:     "/",
			MaxAge:   int(sessionCookieMaxAge.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}
