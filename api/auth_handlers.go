package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fyshare/fyshare/internal/audit"
	"github.com/fyshare/fyshare/internal/util"
	"github.com/fyshare/fyshare/vault"
	"github.com/fyshare/fyshare/web"
)

const (
	// maxLoginBodySize bounds the login form.
	maxLoginBodySize = 4 << 10
	// sessionTokenBytes is the entropy of a session token (256 bits).
	sessionTokenBytes = 32
)

var otpPattern = regexp.MustCompile(`^\d{6}$`)

// Login handles POST on any path. On success the client is redirected back
// to the posted path with a fresh session cookie.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	now := a.now()
	addr := a.clientAddr(r)
	target := cleanTarget(r.URL.Path)

	if a.tracker.IsInCooldown(addr, now) {
		a.renderLogin(w, target, msgTooManyAttempts)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodySize)
	if err := r.ParseForm(); err != nil {
		writeHTML(w, http.StatusBadRequest, []byte(badInputHTML))
		return
	}

	otp := r.PostForm.Get("otp")
	timeout, ok := a.sessionDuration(r.PostForm.Get("timeout"))
	if !otpPattern.MatchString(otp) || !ok {
		a.renderLogin(w, target, msgInvalidInput)
		return
	}

	if a.sessions.Len() >= a.policy.MaxUsers {
		a.renderLogin(w, target, msgServerBusy)
		return
	}

	if a.creds.Matches(otp) {
		a.startSession(w, r, addr, now, timeout, target)
		return
	}
	a.loginFailed(w, r, addr, now, target)
}

func (a *API) startSession(w http.ResponseWriter, r *http.Request, addr string, now time.Time, timeout time.Duration, target string) {
	token, err := util.RandomToken(sessionTokenBytes)
	if err != nil {
		writeInternalError(w, a.logger, "generating session token", err)
		return
	}
	if a.policy.SingleSessionPerAddress {
		if n := a.sessions.RemoveByAddress(addr); n > 0 {
			a.audit.Info(r.Context(), audit.SessionReplaced, addr, slog.Int("sessions", n))
		}
	}
	a.sessions.Add(token, addr, now.Add(timeout))
	writeSessionCookie(w, r, token, timeout)
	a.audit.Info(r.Context(), audit.LoginSuccess, addr, tokenAttr(token), slog.Duration("timeout", timeout))
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (a *API) loginFailed(w http.ResponseWriter, r *http.Request, addr string, now time.Time, target string) {
	a.tracker.RecordFailure(addr, now)
	total := a.creds.RecordFailure()
	a.audit.Info(r.Context(), audit.LoginFailure, addr, slog.Int("total_failures", total))
	a.metrics.recordLoginFailure(now)

	switch {
	case total > a.policy.ShutdownAfterFailures:
		a.emergencyOnce.Do(func() {
			a.audit.Warn(r.Context(), audit.EmergencyShutdown, addr, slog.Int("total_failures", total))
			a.emergency <- fmt.Sprintf("security shutdown after %d failed login attempts", total)
		})
	case total%a.policy.RotateAfterFailures == 0:
		if err := a.creds.Rotate(vault.ReasonFailures); err != nil {
			a.logger.Error("rotating credential", "error", err)
		}
	}

	switch {
	case a.tracker.IsBlocked(addr, now):
		writeBlocked(w)
	case a.tracker.IsInCooldown(addr, now):
		a.renderLogin(w, target, msgTooManyAttempts)
	default:
		a.renderLogin(w, target, msgInvalidCredentials)
	}
}

// Logout handles GET /logout. The cookie is cleared whether or not a
// session existed.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := sessionToken(r); ok {
		if session, ok := a.sessions.Get(token, a.now()); ok {
			a.sessions.Remove(token)
			a.audit.Info(r.Context(), audit.Logout, session.Address, tokenAttr(token))
		}
	}
	clearSessionCookie(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// sessionDuration accepts only the configured session lengths, given in
// whole seconds.
func (a *API) sessionDuration(raw string) (time.Duration, bool) {
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs <= 0 {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	for _, allowed := range a.policy.SessionDurations {
		if d == allowed {
			return d, true
		}
	}
	return 0, false
}

func (a *API) renderLogin(w http.ResponseWriter, target, message string) {
	body, err := a.renderer.Login(web.LoginData{
		Action:    target,
		Message:   message,
		Durations: a.policy.SessionDurations,
	})
	if err != nil {
		writeInternalError(w, a.logger, "rendering login page", err)
		return
	}
	writeHTML(w, http.StatusOK, body)
}

// cleanTarget turns a request path into a same-origin, escaped redirect
// target. A trailing slash is kept.
func cleanTarget(p string) string {
	clean := path.Clean("/" + p)
	if strings.HasSuffix(p, "/") && clean != "/" {
		clean += "/"
	}
	return (&url.URL{Path: clean}).EscapedPath()
}
