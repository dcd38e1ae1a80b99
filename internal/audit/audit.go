// Package audit records security events to a structured logger and, when
// configured, to a persistent event journal.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/fyshare/fyshare/storage"
)

// Event identifies the type of security-relevant action being logged.
type Event string

const (
	LoginSuccess      Event = "login_success"
	LoginFailure      Event = "login_failure"
	LoginFailureSpike Event = "login_failure_spike"
	Logout            Event = "logout"
	SessionExpired    Event = "session_expired"
	SessionHijack     Event = "session_hijack"
	SessionReplaced   Event = "session_replaced"
	AddressBlocked    Event = "address_blocked"
	AddressUnblocked  Event = "address_unblocked"
	CooldownStarted   Event = "cooldown_started"
	CredentialRotated Event = "credential_rotated"
	EmergencyShutdown Event = "emergency_shutdown"
	IdleShutdown      Event = "idle_shutdown"
	PathRejected      Event = "path_rejected"
)

// Logger wraps slog.Logger for structured security audit logging. A nil
// *Logger discards everything.
type Logger struct {
	logger  *slog.Logger
	journal storage.Journal
	now     func() time.Time
}

// New returns an audit Logger. journal may be nil.
func New(logger *slog.Logger, journal storage.Journal) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		logger:  logger.With("component", "audit"),
		journal: journal,
		now:     time.Now,
	}
}

// Info records an informational event.
func (l *Logger) Info(ctx context.Context, event Event, addr string, attrs ...slog.Attr) {
	l.Log(ctx, slog.LevelInfo, event, addr, attrs...)
}

// Warn records a warning event.
func (l *Logger) Warn(ctx context.Context, event Event, addr string, attrs ...slog.Attr) {
	l.Log(ctx, slog.LevelWarn, event, addr, attrs...)
}

// Log writes a structured audit entry and appends it to the journal. Journal
// failures are logged and otherwise ignored.
func (l *Logger) Log(ctx context.Context, level slog.Level, event Event, addr string, attrs ...slog.Attr) {
	if l == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	base := make([]slog.Attr, 0, len(attrs)+2)
	base = append(base, slog.String("event", string(event)))
	if addr != "" {
		base = append(base, slog.String("remote_addr", addr))
	}
	base = append(base, attrs...)
	l.logger.LogAttrs(ctx, level, "audit", base...)

	if l.journal == nil {
		return
	}
	evt := storage.Event{
		Type:    string(event),
		Level:   level.String(),
		Address: addr,
		Time:    l.now().UTC(),
	}
	if len(attrs) > 0 {
		evt.Attrs = make(map[string]string, len(attrs))
		for _, a := range attrs {
			evt.Attrs[a.Key] = a.Value.String()
		}
	}
	if err := l.journal.Append(evt); err != nil {
		l.logger.LogAttrs(ctx, slog.LevelWarn, "journal append failed",
			slog.String("event", string(event)),
			slog.String("error", err.Error()),
		)
	}
}
