package handlers

import (
	"net/http"
	"time"

	apperrors "github.com/rankshop/rankshop/internal/errors"
	"github.com/rankshop/rankshop/internal/server/middleware"
)

// DefaultSessionCookie names the session cookie when none is configured.
const DefaultSessionCookie = "rankshop_session"

type loginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login exchanges admin credentials for a session token, also set as a cookie.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, r, err)
		return
	}
	if trimmed(body.Username) == "" || body.Password == "" {
		respondWithError(w, r, apperrors.NewValidationError("username and password are required"))
		return
	}

	token, session, err := a.Auth.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	http.SetCookie(w, a.sessionCookie(token, session.ExpiresAt))
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		Username:  session.Username,
		ExpiresAt: session.ExpiresAt,
	})
}

// Logout revokes the current session and clears the cookie.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionToken(r, a.SessionCookieName())
	if err := a.Auth.Logout(r.Context(), token); err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "session could not be revoked"))
		return
	}
	cookie := a.sessionCookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
	w.WriteHeader(http.StatusNoContent)
}

// Session describes the signed-in admin.
func (a *API) Session(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		respondWithError(w, r, apperrors.NewUnauthorizedError("missing admin session"))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// SessionCookieName is the cookie carrying the admin session token.
func (a *API) SessionCookieName() string {
	if a.CookieName == "" {
		return DefaultSessionCookie
	}
	return a.CookieName
}

func (a *API) sessionCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     a.SessionCookieName(),
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
