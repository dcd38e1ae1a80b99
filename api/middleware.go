package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/fyshare/fyshare/internal/audit"
)

const sessionCookieName = "session_token"

// BlockGuard answers 403 to hard blocked addresses before any other
// processing. Nothing is recorded against the address.
func (a *API) BlockGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := a.clientAddr(r)
		if a.tracker.IsBlocked(addr, a.now()) {
			a.logger.Debug("rejected blocked address", "remote_addr", addr, "path", r.URL.Path)
			writeBlocked(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate returns the session bound to the request cookie. A session
// presented from an address other than its owner is destroyed.
func (a *API) authenticate(r *http.Request, addr string, now time.Time) (Session, bool) {
	token, ok := sessionToken(r)
	if !ok {
		return Session{}, false
	}
	session, ok := a.sessions.Get(token, now)
	if !ok {
		// Drops the entry if it only just expired; no-op otherwise.
		a.sessions.Remove(token)
		return Session{}, false
	}
	if session.Address != addr {
		a.audit.Warn(r.Context(), audit.SessionHijack, addr,
			ownerAttr(session.Address), tokenAttr(token))
		a.sessions.Remove(token)
		return Session{}, false
	}
	return session, true
}

func sessionToken(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func writeSessionCookie(w http.ResponseWriter, r *http.Request, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(maxAge / time.Second),
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
