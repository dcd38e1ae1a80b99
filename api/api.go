// Package api implements the request decision pipeline of the file share:
// per-address attempt tracking, the session registry, login and logout,
// and sandboxed browsing of the shared root.
package api

import (
	"io/fs"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fyshare/fyshare/internal/audit"
	"github.com/fyshare/fyshare/internal/config"
	"github.com/fyshare/fyshare/storage"
	"github.com/fyshare/fyshare/web"
)

// Credentials is the passcode authority consulted on login.
// *vault.Vault satisfies it.
type Credentials interface {
	Matches(candidate string) bool
	Rotate(reason string) error
	// RecordFailure bumps the server-wide failed login count and returns
	// the new total.
	RecordFailure() int
}

// Policy holds the limits applied by the request pipeline.
type Policy struct {
	MaxUsers         int
	SessionDurations []time.Duration
	Tracker          TrackerConfig
	// RotateAfterFailures rotates the passcode at every multiple of this
	// server-wide failure count.
	RotateAfterFailures int
	// ShutdownAfterFailures requests an emergency shutdown once the
	// server-wide failure count exceeds it.
	ShutdownAfterFailures   int
	SingleSessionPerAddress bool
	// AssetCacheDuration is sent as max-age on static assets. Zero
	// disables caching.
	AssetCacheDuration time.Duration
}

// PolicyFromConfig derives a Policy from a validated configuration.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		MaxUsers:         cfg.MaxUsers,
		SessionDurations: cfg.SessionDurations(),
		Tracker: TrackerConfig{
			MaxAttemptsPerCooldown: cfg.MaxAttemptsPerIP,
			MaxTotalAttempts:       cfg.MaxTotalAttempts,
			Cooldown:               cfg.Cooldown(),
			BlockDuration:          cfg.BlockTime(),
			CleanupWindow:          cfg.CleanupTimeout(),
		},
		RotateAfterFailures:     cfg.RotateAfter(),
		ShutdownAfterFailures:   cfg.ShutdownAfter(),
		SingleSessionPerAddress: cfg.SingleSessionPerAddress,
		AssetCacheDuration:      cfg.CacheDuration(),
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxUsers <= 0 {
		p.MaxUsers = 5
	}
	if p.RotateAfterFailures <= 0 {
		p.RotateAfterFailures = p.MaxUsers * 10
	}
	if p.ShutdownAfterFailures <= 0 {
		p.ShutdownAfterFailures = p.MaxUsers * 100
	}
	return p
}

// API is the server context shared by every handler. It holds the
// components of the pipeline and no per-request state.
type API struct {
	root     *storage.Root
	creds    Credentials
	renderer *web.Renderer
	policy   Policy

	sessions SessionStore
	tracker  *AttemptTracker
	audit    *audit.Logger
	logger   *slog.Logger
	metrics  *metricsCollector

	assets         fs.FS
	assetRoot      *storage.Root
	trustedProxies []netip.Prefix
	now            func() time.Time

	emergency     chan string
	emergencyOnce sync.Once
}

// Option configures the API instance.
type Option func(*API)

// WithClock sets the time source. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		a.now = now
	}
}

// WithLogger sets the logger for operational errors such as failed renders.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithAudit sets the security event sink.
func WithAudit(al *audit.Logger) Option {
	return func(a *API) {
		a.audit = al
	}
}

// WithSessionStore replaces the default in-memory session store.
func WithSessionStore(s SessionStore) Option {
	return func(a *API) {
		a.sessions = s
	}
}

// WithAttemptTracker replaces the tracker built from the policy.
func WithAttemptTracker(t *AttemptTracker) Option {
	return func(a *API) {
		a.tracker = t
	}
}

// WithAssetRoot serves /static/* and /favicon.ico from a directory on disk
// instead of the embedded assets.
func WithAssetRoot(root *storage.Root) Option {
	return func(a *API) {
		a.assetRoot = root
	}
}

// WithTrustedProxies sets the CIDR ranges whose forwarding headers are
// honored when determining the client address.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) {
		a.trustedProxies = prefixes
	}
}

// New creates a new API instance serving root.
func New(root *storage.Root, creds Credentials, renderer *web.Renderer, policy Policy, opts ...Option) *API {
	a := &API{
		root:      root,
		creds:     creds,
		renderer:  renderer,
		policy:    policy.withDefaults(),
		assets:    web.Assets(),
		now:       time.Now,
		emergency: make(chan string, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.sessions == nil {
		a.sessions = NewMemorySessionStore(a.audit)
	}
	if a.tracker == nil {
		a.tracker = NewAttemptTracker(a.policy.Tracker, a.audit)
	}
	a.metrics = newMetricsCollector(a.audit)
	return a
}

// Router returns a chi.Router with every route mounted. Blocked addresses
// are turned away before routing.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(a.BlockGuard)
	r.Use(middleware.GetHead)

	r.Get("/favicon.ico", a.Asset)
	r.Get("/static/*", a.Asset)
	r.Get("/logout", a.Logout)
	r.Get("/*", a.Browse)
	r.Post("/*", a.Login)

	return r
}

// Sweep drops expired attempt records and sessions. The server loop calls
// it once per tick.
func (a *API) Sweep(now time.Time) {
	a.tracker.CleanExpired(now)
	a.sessions.CleanExpired(now)
}

// ActiveSessions returns the number of stored sessions.
func (a *API) ActiveSessions() int {
	return a.sessions.Len()
}

// Emergency delivers the reason of a security shutdown. At most one value
// is ever sent.
func (a *API) Emergency() <-chan string {
	return a.emergency
}
