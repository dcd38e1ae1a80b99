// Package server runs the HTTP listener together with the periodic
// maintenance that expires sessions, rotates the passcode and stops an idle
// or attacked server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fyshare/fyshare/internal/audit"
	"github.com/fyshare/fyshare/vault"
)

// Reason tells why a Loop stopped.
type Reason string

const (
	ReasonInterrupted Reason = "interrupted"
	ReasonIdle        Reason = "idle timeout"
	ReasonEmergency   Reason = "emergency shutdown"
)

// Maintenance is the request pipeline as seen by the loop. *api.API
// satisfies it.
type Maintenance interface {
	Sweep(now time.Time)
	ActiveSessions() int
	Emergency() <-chan string
}

// Credentials is the passcode authority. *vault.Vault satisfies it.
type Credentials interface {
	IssuedAt() time.Time
	Rotate(reason string) error
}

// Loop owns the http.Server and the maintenance ticker.
type Loop struct {
	srv      *http.Server
	listener net.Listener
	maint    Maintenance
	creds    Credentials

	now             func() time.Time
	refresh         time.Duration
	idleTimeout     time.Duration
	rotateAfter time.Duration
	drainNotice time.Duration
	audit       *audit.Logger
	logger      *slog.Logger

	// idleSince is when the session store was last seen empty. Zero while
	// sessions exist.
	idleSince time.Time
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the time source. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithRefreshInterval sets the maintenance tick. Default: 1s.
func WithRefreshInterval(d time.Duration) Option {
	return func(l *Loop) { l.refresh = d }
}

// WithIdleTimeout sets how long the server may run without sessions.
// Default: 10m.
func WithIdleTimeout(d time.Duration) Option {
	return func(l *Loop) { l.idleTimeout = d }
}

// WithRotationInterval sets the maximum age of a passcode. Default: 30m.
func WithRotationInterval(d time.Duration) Option {
	return func(l *Loop) { l.rotateAfter = d }
}

// WithDrainNotice sets how long shutdown waits for in-flight requests
// before logging that it is still waiting. Default: 10s.
func WithDrainNotice(d time.Duration) Option {
	return func(l *Loop) { l.drainNotice = d }
}

// WithAudit sets the security event sink used for idle shutdowns.
func WithAudit(al *audit.Logger) Option {
	return func(l *Loop) { l.audit = al }
}

// WithLogger sets the logger for lifecycle messages. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates a Loop serving handler on listener.
func New(handler http.Handler, listener net.Listener, maint Maintenance, creds Credentials, opts ...Option) *Loop {
	l := &Loop{
		listener:        listener,
		maint:           maint,
		creds:           creds,
		now:         time.Now,
		refresh:     time.Second,
		idleTimeout: 10 * time.Minute,
		rotateAfter: 30 * time.Minute,
		drainNotice: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.srv = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(l.logger.Handler(), slog.LevelDebug),
	}
	l.idleSince = l.now()
	return l
}

// Addr returns the listener address.
func (l *Loop) Addr() net.Addr {
	return l.listener.Addr()
}

// Tick runs one maintenance iteration and reports whether the server
// should stop.
func (l *Loop) Tick(now time.Time) (Reason, bool) {
	l.maint.Sweep(now)

	if now.Sub(l.creds.IssuedAt()) > l.rotateAfter {
		if err := l.creds.Rotate(vault.ReasonExpired); err != nil {
			l.logger.Error("rotating expired passcode", "error", err)
		}
	}

	if l.maint.ActiveSessions() > 0 {
		l.idleSince = time.Time{}
		return "", false
	}
	if l.idleSince.IsZero() {
		l.idleSince = now
		return "", false
	}
	if idle := now.Sub(l.idleSince); idle > l.idleTimeout {
		l.audit.Info(context.Background(), audit.IdleShutdown, "", slog.Duration("idle", idle))
		return ReasonIdle, true
	}
	return "", false
}

// Run serves connections until ctx is cancelled, the server goes idle or an
// emergency shutdown is requested. It returns only after every in-flight
// request has finished.
func (l *Loop) Run(ctx context.Context) (Reason, error) {
	g, gctx := errgroup.WithContext(ctx)
	var reason Reason

	g.Go(func() error {
		if err := l.srv.Serve(l.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		reason = l.watch(gctx)
		l.logger.Info("shutting down", "reason", string(reason))
		return l.drain()
	})

	err := g.Wait()
	return reason, err
}

// drain stops accepting connections and waits for in-flight requests
// without a deadline.
func (l *Loop) drain() error {
	done := make(chan error, 1)
	go func() {
		done <- l.srv.Shutdown(context.Background())
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(l.drainNotice):
		l.logger.Warn("waiting for in-flight requests to finish", "waited", l.drainNotice)
		err = <-done
	}
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func (l *Loop) watch(ctx context.Context) Reason {
	ticker := time.NewTicker(l.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ReasonInterrupted
		case msg := <-l.maint.Emergency():
			l.logger.Error("emergency shutdown requested", "reason", msg)
			return ReasonEmergency
		case <-ticker.C:
			if reason, stop := l.Tick(l.now()); stop {
				return reason
			}
		}
	}
}
