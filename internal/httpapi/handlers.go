package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"photoshare.app/internal/audit"
	"photoshare.app/internal/auth"
	"photoshare.app/internal/obs"
)

const serviceName = "photoshare-api"

// Pinger is anything readiness can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks the database and, when configured, the cache.
type ReadyProbe struct {
	DB    Pinger
	Cache Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.Ping(ctx); err != nil {
			return err
		}
	}
	if rp.Cache != nil {
		if err := rp.Cache.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RateLimitConfig throttles the /api/auth endpoints per client IP.
type RateLimitConfig struct {
	Enable    bool
	PerSecond float64
	Burst     int
	// TrustedProxies may set X-Forwarded-For; everyone else is keyed by peer.
	TrustedProxies []netip.Prefix
}

// Options wires the API to its collaborators.
type Options struct {
	Service      *auth.Service
	Gate         *auth.Gate
	Audit        *audit.Logger
	Logger       *zap.Logger
	Ready        ReadyProbe
	Version      string
	CORSOrigins  []string
	MaxBodyBytes int64
	RateLimit    RateLimitConfig
}

// API is the HTTP layer.
type API struct {
	mux     *http.ServeMux
	svc     *auth.Service
	gate    *auth.Gate
	audit   *audit.Logger
	log     *zap.Logger
	ready   ReadyProbe
	version string
	opts    Options
}

func New(opts Options) *API {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	a := &API{
		mux:     http.NewServeMux(),
		svc:     opts.Service,
		gate:    opts.Gate,
		audit:   opts.Audit,
		log:     log.With(zap.String("component", "httpapi")),
		ready:   opts.Ready,
		version: opts.Version,
		opts:    opts,
	}
	a.routes()
	return a
}

func (a *API) routes() {
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /api/healthchecker", a.HealthChecker)
	a.mux.Handle("GET /metrics", obs.Handler())

	limited := func(h http.HandlerFunc) http.Handler {
		if !a.opts.RateLimit.Enable {
			return h
		}
		return RateLimit(h, a.opts.RateLimit.Burst, a.opts.RateLimit.PerSecond, a.opts.RateLimit.TrustedProxies)
	}
	a.mux.Handle("POST /api/auth/signup", limited(a.signup))
	a.mux.Handle("POST /api/auth/login", limited(a.login))
	a.mux.Handle("GET /api/auth/refresh_token", limited(a.refresh))
	a.mux.Handle("GET /api/auth/confirmed_email/{token}", limited(a.confirmEmail))
	a.mux.Handle("POST /api/auth/request_email", limited(a.requestEmail))
	a.mux.Handle("POST /api/auth/logout", a.requireAuth(http.HandlerFunc(a.logout)))

	staff := RequireRole(auth.NewRoleGate(auth.RoleModerator, auth.RoleAdmin))
	admin := RequireRole(auth.NewRoleGate(auth.RoleAdmin))
	a.mux.Handle("GET /api/users/me", a.requireAuth(http.HandlerFunc(a.me)))
	a.mux.Handle("PATCH /api/users/edit_me", a.requireAuth(http.HandlerFunc(a.editMe)))
	a.mux.Handle("GET /api/users/search", a.requireAuth(http.HandlerFunc(a.searchUsers)))
	a.mux.Handle("GET /api/users/{id}", a.requireAuth(http.HandlerFunc(a.userProfile)))
	a.mux.Handle("GET /api/users/all", a.requireAuth(staff(http.HandlerFunc(a.listUsers))))
	a.mux.Handle("PATCH /api/users/ban", a.requireAuth(admin(http.HandlerFunc(a.banUser))))
	a.mux.Handle("PATCH /api/users/make_role", a.requireAuth(admin(http.HandlerFunc(a.makeRole))))
}

// Handler returns the mux wrapped in the full middleware chain.
func (a *API) Handler() http.Handler {
	maxBody := a.opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, maxBody)
	h = CORS(h, a.opts.CORSOrigins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h, a.log)
	h = RequestID(h)
	h = obs.Instrument(h)
	return otelhttp.NewHandler(h, serviceName)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.ready.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// HealthChecker probes only the database.
func (a *API) HealthChecker(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if a.ready.DB != nil {
		if err := a.ready.DB.Ping(ctx); err != nil {
			a.log.Error("database health check failed", zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "Error connecting to the database")
			return
		}
	}
	writeMessage(w, http.StatusOK, "Service is healthy")
}

func (a *API) auditEvent(r *http.Request, event string, fields ...zap.Field) {
	if err := a.audit.Event(r.Context(), event, fields...); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn("audit event dropped", zap.String("event", event), zap.Error(err))
	}
}
