package api

import "time"

// SessionStore is the registry of authenticated sessions keyed by opaque
// token. Implementations must be safe for concurrent use and must not
// perform I/O while holding their internal lock.
type SessionStore interface {
	// Add registers a session. Capacity is enforced by the caller.
	Add(token, address string, expiresAt time.Time)
	// Remove deletes a session. Removing an unknown token is a no-op.
	Remove(token string)
	// Get returns a copy of the session. It reports false when the token
	// is unknown or now is at or past the expiry.
	Get(token string, now time.Time) (Session, bool)
	// CleanExpired removes every session whose expiry is at or before now.
	CleanExpired(now time.Time)
	// RemoveByAddress deletes every session owned by address and returns
	// how many were removed.
	RemoveByAddress(address string) int
	// Len returns the number of stored sessions, expired or not.
	Len() int
}

// Session is the server-side state of one login. ExpiresAt comes from
// time.Now().Add, so comparisons use the monotonic clock.
type Session struct {
	Token     string
	Address   string
	ExpiresAt time.Time
}
