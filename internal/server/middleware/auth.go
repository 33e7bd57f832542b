package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/rankshop/rankshop/internal/core"
)

// SessionValidator resolves a session token.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*core.Session, error)
}

type sessionContextKey struct{}

// RequireAdmin rejects requests without a live admin session. The token is
// read from the Authorization bearer header, then from the named cookie.
func RequireAdmin(validator SessionValidator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r, cookieName)
			if token == "" || validator == nil {
				unauthorized(w, r, "missing admin session")
				return
			}

			session, err := validator.Validate(r.Context(), token)
			if err != nil {
				unauthorized(w, r, "admin session is invalid or expired")
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionToken extracts the session token from a request.
func SessionToken(r *http.Request, cookieName string) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

// GetSession returns the admin session attached by RequireAdmin.
func GetSession(ctx context.Context) *core.Session {
	session, _ := ctx.Value(sessionContextKey{}).(*core.Session)
	return session
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	envelope := errors.NewErrorEnvelope("UNAUTHORIZED", message).
		WithCorrelationID(GetRequestID(r.Context()))
	w.Header().Set("WWW-Authenticate", `Bearer realm="rankshop-admin"`)
	writeErrorResponse(w, envelope, http.StatusUnauthorized)
}
