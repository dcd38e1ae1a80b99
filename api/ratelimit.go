package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/fyshare/fyshare/internal/audit"
)

// AttemptRecord is the failed login history of one source address.
// A zero CoolUntil or BlockedUntil means unset.
type AttemptRecord struct {
	Count        int
	LastAttempt  time.Time
	CoolUntil    time.Time
	BlockedUntil time.Time
}

func (rec *AttemptRecord) blocked(now time.Time) bool {
	return !rec.BlockedUntil.IsZero() && now.Before(rec.BlockedUntil)
}

func (rec *AttemptRecord) cooling(now time.Time) bool {
	return !rec.CoolUntil.IsZero() && now.Before(rec.CoolUntil)
}

// TrackerConfig holds the thresholds of an AttemptTracker.
type TrackerConfig struct {
	// MaxAttemptsPerCooldown failures in a row start a cooldown.
	MaxAttemptsPerCooldown int
	// MaxTotalAttempts failures block the address outright.
	MaxTotalAttempts int
	Cooldown         time.Duration
	BlockDuration    time.Duration
	// CleanupWindow is how long after the last failure a record is
	// forgotten, whatever its state.
	CleanupWindow time.Duration
}

// AttemptTracker counts failed logins per source address and derives
// cooldown and hard block state from them.
type AttemptTracker struct {
	mu      sync.Mutex
	cfg     TrackerConfig
	records map[string]*AttemptRecord
	audit   *audit.Logger
}

// NewAttemptTracker creates a tracker. al receives block, unblock and
// cooldown events and may be nil.
func NewAttemptTracker(cfg TrackerConfig, al *audit.Logger) *AttemptTracker {
	if cfg.MaxAttemptsPerCooldown < 1 {
		cfg.MaxAttemptsPerCooldown = 1
	}
	return &AttemptTracker{
		cfg:     cfg,
		records: make(map[string]*AttemptRecord),
		audit:   al,
	}
}

type trackerEvent struct {
	event audit.Event
	level slog.Level
	addr  string
	attrs []slog.Attr
}

func (t *AttemptTracker) emit(events ...trackerEvent) {
	for _, e := range events {
		t.audit.Log(context.Background(), e.level, e.event, e.addr, e.attrs...)
	}
}

// RecordFailure registers one failed login from addr.
func (t *AttemptTracker) RecordFailure(addr string, now time.Time) {
	var evt *trackerEvent

	t.mu.Lock()
	rec, ok := t.records[addr]
	if !ok {
		rec = &AttemptRecord{}
		t.records[addr] = rec
	}
	rec.Count++
	rec.LastAttempt = now

	switch {
	case rec.Count >= t.cfg.MaxTotalAttempts && !rec.blocked(now):
		rec.BlockedUntil = now.Add(t.cfg.BlockDuration)
		evt = &trackerEvent{
			event: audit.AddressBlocked, level: slog.LevelWarn, addr: addr,
			attrs: []slog.Attr{slog.Int("attempts", rec.Count), slog.Duration("duration", t.cfg.BlockDuration)},
		}
	case rec.Count%t.cfg.MaxAttemptsPerCooldown == 0:
		rec.CoolUntil = now.Add(t.cfg.Cooldown)
		evt = &trackerEvent{
			event: audit.CooldownStarted, level: slog.LevelInfo, addr: addr,
			attrs: []slog.Attr{slog.Int("attempts", rec.Count), slog.Duration("duration", t.cfg.Cooldown)},
		}
	}
	t.mu.Unlock()

	if evt != nil {
		t.emit(*evt)
	}
}

// IsInCooldown reports whether addr is inside a cooldown window.
func (t *AttemptTracker) IsInCooldown(addr string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[addr]
	return ok && rec.cooling(now)
}

// IsBlocked reports whether addr is hard blocked.
func (t *AttemptTracker) IsBlocked(addr string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[addr]
	return ok && rec.blocked(now)
}

// Record returns a copy of the record for addr.
func (t *AttemptTracker) Record(addr string) (AttemptRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[addr]
	if !ok {
		return AttemptRecord{}, false
	}
	return *rec, true
}

// CleanExpired drops records whose block has ended and records idle for
// longer than the cleanup window.
func (t *AttemptTracker) CleanExpired(now time.Time) {
	var events []trackerEvent

	t.mu.Lock()
	for addr, rec := range t.records {
		switch {
		case !rec.BlockedUntil.IsZero() && !now.Before(rec.BlockedUntil):
			delete(t.records, addr)
			events = append(events, trackerEvent{event: audit.AddressUnblocked, level: slog.LevelInfo, addr: addr})
		case now.Sub(rec.LastAttempt) > t.cfg.CleanupWindow:
			delete(t.records, addr)
		}
	}
	t.mu.Unlock()

	t.emit(events...)
}

// Len returns the number of tracked addresses.
func (t *AttemptTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// ---------------------------------------------------------------------------
// Helper: extract client IP
// ---------------------------------------------------------------------------

// clientAddr returns the address used for attempt tracking and session
// ownership. It delegates to extractClientIPWithProxies using the API's
// configured trusted proxies.
func (a *API) clientAddr(r *http.Request) string {
	return extractClientIPWithProxies(r, a.trustedProxies)
}

// extractClientIPWithProxies returns the best-effort client IP address.
//
// Proxy headers (X-Forwarded-For, Forwarded, X-Real-IP) are only honored
// if trustedProxies is non-empty AND the request's RemoteAddr falls within
// one of the trusted CIDR ranges. Otherwise RemoteAddr is returned, so
// clients cannot dodge the attempt tracker by spoofing headers.
//
// Priority when proxy headers are trusted:
// 1. First valid entry in X-Forwarded-For
// 2. First valid "for=" value in Forwarded
// 3. X-Real-IP
// 4. RemoteAddr
func extractClientIPWithProxies(r *http.Request, trustedProxies []netip.Prefix) string {
	remoteIP, _ := parseIPCandidate(r.RemoteAddr)

	proxyTrusted := false
	if len(trustedProxies) > 0 && remoteIP != "" {
		if addr, err := netip.ParseAddr(remoteIP); err == nil {
			for _, prefix := range trustedProxies {
				if prefix.Contains(addr) {
					proxyTrusted = true
					break
				}
			}
		}
	}

	if proxyTrusted {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			for _, part := range strings.Split(xff, ",") {
				if ip, ok := parseIPCandidate(part); ok {
					return ip
				}
			}
		}

		if fwd := strings.TrimSpace(r.Header.Get("Forwarded")); fwd != "" {
			for _, elem := range strings.Split(fwd, ",") {
				for _, param := range strings.Split(elem, ";") {
					param = strings.TrimSpace(param)
					if !strings.HasPrefix(strings.ToLower(param), "for=") {
						continue
					}
					if ip, ok := parseIPCandidate(param[4:]); ok {
						return ip
					}
				}
			}
		}

		if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
			if ip, ok := parseIPCandidate(xrip); ok {
				return ip
			}
		}
	}

	if remoteIP != "" {
		return remoteIP
	}
	return r.RemoteAddr
}

func parseIPCandidate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"")
	if s == "" {
		return "", false
	}

	// RFC 7239 quoted IPv6 may appear as [::1]:1234.
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	// Drop zone if any (e.g. fe80::1%eth0).
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}

	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.Unmap().String(), true
	}
	return "", false
}
