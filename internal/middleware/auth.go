package middleware

import (
	"context"
	"net/http"
	"time"

	"brokerage/internal/auth"
	"brokerage/internal/models"
)

// SessionCookie is the name of the signed session cookie.
const SessionCookie = "brokerage_session"

type contextKey string

const userIDKey contextKey = "user_id"

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}

type SessionGetter interface {
	Get(ctx context.Context, id string) (models.Session, error)
}

// Session authenticates browser requests. The cookie carries a signed token
// naming a session row; the row is the source of truth, so a deleted or
// expired row rejects the request even when the signature still verifies.
// Unauthenticated requests are redirected to the login page.
func Session(secret string, sessions SessionGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				redirectToLogin(w, r)
				return
			}
			claims, err := auth.ParseSessionToken(secret, cookie.Value)
			if err != nil {
				redirectToLogin(w, r)
				return
			}
			session, err := sessions.Get(r.Context(), claims.SessionID)
			if err != nil {
				redirectToLogin(w, r)
				return
			}
			if session.UserID != claims.UserID || time.Now().After(session.ExpiresAt) {
				redirectToLogin(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// NoStore disables response caching so pages showing account state are
// never served stale from the browser cache after logout.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Expires", "0")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
