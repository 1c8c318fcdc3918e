package httpserver

import (
	"net/http"

	"github.com/yndnr/pairmesh-go/internal/core/service"
	"github.com/yndnr/pairmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler holds the services behind the endpoints.
	Handler handler.Config

	// Admin verifies the operator admin key. A disabled authenticator
	// hides the admin API.
	Admin *service.AdminAuthenticator

	// Metrics is the registry served on /metrics.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger logger.Logger

	// AdminAllowList is the IP/CIDR allowlist for admin API (empty = no restriction).
	AdminAllowList []string

	// MetricsAuthRequired indicates if /metrics endpoint requires the admin key.
	MetricsAuthRequired bool

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = allow all).
	CORSAllowedOrigins []string

	// GlobalLimiter is the per-client request ceiling shared by every API
	// route (nil = off).
	GlobalLimiter *service.ClientBuckets

	// EnableAudit enables audit logging for all requests.
	EnableAudit bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		MetricsAuthRequired: false,
		EnableAudit:         true,
	}
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	l := cfg.Logger
	if l == nil {
		l = logger.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metric.Global()
	}
	if cfg.Handler.Logger == nil {
		cfg.Handler.Logger = l
	}
	h := handler.New(&cfg.Handler)

	// Order: Recover -> RequestID -> CORS -> Metrics -> RateLimit -> Audit -> guards -> Handler
	route := func(name string, guards ...Middleware) http.Handler {
		mws := []Middleware{
			Recover(l),
			RequestID(l),
			CORS(cfg.CORSAllowedOrigins),
			Metrics(cfg.Metrics, name),
		}
		if cfg.GlobalLimiter != nil {
			mws = append(mws, RateLimit(cfg.GlobalLimiter))
		}
		if cfg.EnableAudit {
			mws = append(mws, Audit())
		}
		return Chain(h, append(mws, guards...)...)
	}

	gate := func(name string) []Middleware {
		if limiter := cfg.Handler.Limiters[name]; limiter != nil {
			return []Middleware{RateLimitGate(limiter)}
		}
		return nil
	}
	session := SessionAuth(cfg.Handler.Authority)

	mux := http.NewServeMux()

	// Health endpoints - no authentication required
	mux.Handle("GET /health", Chain(h, Recover(l), RequestID(l)))
	mux.Handle("GET /ready", Chain(h, Recover(l), RequestID(l)))

	// Metrics endpoint - configurable authentication
	mux.Handle("GET /metrics", Chain(
		cfg.Metrics.Handler(),
		Recover(l),
		RequestID(l),
		MetricsAuth(cfg.Admin, cfg.MetricsAuthRequired),
	))

	// Pairing
	mux.Handle("POST /v1/pairing/ephemeral", route("pairing_ephemeral", gate(handler.RoutePairing)...))
	mux.Handle("POST /v1/pairing/exchange", route("pairing_exchange"))
	mux.Handle("GET /v1/pairing/session", route("pairing_session", session))

	// Artifacts: the limiter runs before session validation so credential
	// guessing is also bounded.
	mux.Handle("POST /v1/uploads", route("uploads", append(gate(handler.RouteUploads), session)...))
	mux.Handle("GET /v1/blobs/{owner}/{object}", route("blobs"))

	// Realtime: the upgrade outlives the request, so no latency metrics.
	realtimeMiddlewares := []Middleware{Recover(l), RequestID(l)}
	if cfg.EnableAudit {
		realtimeMiddlewares = append(realtimeMiddlewares, Audit())
	}
	mux.Handle("GET /v1/realtime", Chain(h, realtimeMiddlewares...))

	// Admin API - admin key + optional network ACL
	admin := []Middleware{
		NetworkACL(&NetworkACLConfig{AllowList: cfg.AdminAllowList, Logger: l}),
		AdminAuth(cfg.Admin),
	}
	mux.Handle("GET /admin/v1/status/summary", route("admin_status", admin...))
	mux.Handle("POST /admin/v1/ratelimit/reset", route("admin_ratelimit_reset", admin...))
	mux.Handle("POST /admin/v1/tokens/invalidate", route("admin_tokens_invalidate", admin...))

	// CORS preflight for every path
	mux.Handle("OPTIONS /", Chain(http.NotFoundHandler(), CORS(cfg.CORSAllowedOrigins)))

	return mux
}
