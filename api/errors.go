package api

import (
	"log/slog"
	"net/http"
	"strconv"
)

const (
	blockedHTML  = "<h1>403 Forbidden</h1><p>Blocked due to excessive attempts. Try again later.</p>"
	deniedHTML   = "<h1>403 Forbidden</h1><p>Access denied.</p>"
	notFoundHTML = "<h1>404 Not Found</h1><p>File not found.</p>"
	badInputHTML = "<h1>400 Bad Request</h1><p>Malformed request.</p>"
	internalHTML = "<h1>500 Internal Server Error</h1><p>Something went wrong.</p>"
)

// Login page messages.
const (
	msgTooManyAttempts    = "Too many attempts. Try again later."
	msgInvalidInput       = "Invalid input. Please check your OTP format."
	msgServerBusy         = "Server busy. Too many users, try again later."
	msgInvalidCredentials = "Invalid credentials."
)

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	w.Write(body)
}

func writeBlocked(w http.ResponseWriter) {
	writeHTML(w, http.StatusForbidden, []byte(blockedHTML))
}

// writeInternalError logs the real error and sends a generic 500 so that
// internal details never reach the client.
func writeInternalError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	writeHTML(w, http.StatusInternalServerError, []byte(internalHTML))
}
