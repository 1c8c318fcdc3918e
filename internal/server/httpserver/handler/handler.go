package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/core/service"
	"github.com/yndnr/pairmesh-go/internal/realtime"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

// Rate-limited route names.
const (
	RoutePairing = "pairing"
	RouteUploads = "uploads"
)

// BlobOpener serves stored artifacts.
type BlobOpener interface {
	Open(owner, object string) (*os.File, error)
}

// Config holds the dependencies of Handler.
type Config struct {
	Authority *service.TokenAuthority
	Uploads   *service.UploadService
	Blobs     BlobOpener
	Hub       *realtime.Hub

	// Limiters holds one limiter per rate-limited route, keyed by route name.
	Limiters map[string]*service.RateLimiter

	// PublicHost is the host advertised in pairing URLs. Empty means the
	// request's Host header.
	PublicHost string

	Version string
	Logger  logger.Logger
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	authority  *service.TokenAuthority
	uploads    *service.UploadService
	blobs      BlobOpener
	hub        *realtime.Hub
	limiters   map[string]*service.RateLimiter
	publicHost string
	version    string
	startedAt  time.Time
	logger     logger.Logger
	mux        *http.ServeMux
}

// New creates a new Handler.
func New(cfg *Config) *Handler {
	l := cfg.Logger
	if l == nil {
		l = logger.Default()
	}
	h := &Handler{
		authority:  cfg.Authority,
		uploads:    cfg.Uploads,
		blobs:      cfg.Blobs,
		hub:        cfg.Hub,
		limiters:   cfg.Limiters,
		publicHost: cfg.PublicHost,
		version:    cfg.Version,
		startedAt:  time.Now(),
		logger:     l,
		mux:        http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	// Pairing
	h.mux.HandleFunc("POST /v1/pairing/ephemeral", h.handleIssueEphemeral)
	h.mux.HandleFunc("POST /v1/pairing/exchange", h.handleExchange)
	h.mux.HandleFunc("GET /v1/pairing/session", h.handleSession)

	// Artifacts
	h.mux.HandleFunc("POST /v1/uploads", h.handleUpload)
	h.mux.HandleFunc("GET /v1/blobs/{owner}/{object}", h.handleBlob)

	// Realtime
	h.mux.HandleFunc("GET /v1/realtime", h.handleRealtime)

	// Admin
	h.mux.HandleFunc("GET /admin/v1/status/summary", h.handleAdminStatus)
	h.mux.HandleFunc("POST /admin/v1/ratelimit/reset", h.handleAdminResetLimits)
	h.mux.HandleFunc("POST /admin/v1/tokens/invalidate", h.handleAdminInvalidate)
}

// sessionKey is the context key for the authenticated session token.
type sessionKey struct{}

// WithSession returns ctx carrying the authenticated session token.
func WithSession(ctx context.Context, t *domain.Token) context.Context {
	return context.WithValue(ctx, sessionKey{}, t)
}

// SessionFromContext returns the authenticated session token, if any.
func SessionFromContext(ctx context.Context) *domain.Token {
	t, _ := ctx.Value(sessionKey{}).(*domain.Token)
	return t
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	WriteJSON(w, r, status, data)
}

// WriteJSON writes data in the success envelope.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(requestID, data)); err != nil {
		logger.L(r.Context()).Error("failed to encode response", "error", err)
	}
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(NewErrorResponse(requestID, code, message, details))
}

// WriteError translates err into an error envelope. Causes are logged and
// never sent to the caller.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	de := domain.AsDomainError(err)
	status := StatusFor(de)
	log := logger.L(r.Context())

	if status >= http.StatusInternalServerError {
		log.Error("request failed", "code", de.Code, "error", err)
		message := de.Message
		if status == http.StatusInternalServerError {
			message = "internal server error"
		}
		writeEnvelope(w, r, status, de.Code, message, nil)
		return
	}

	var details any
	if de.Kind == domain.KindValidation && de.Details != "" {
		details = map[string]string{"reason": de.Details}
	}
	if de.Cause != nil {
		log.Debug("request rejected", "code", de.Code, "error", de.Cause)
	}
	writeEnvelope(w, r, status, de.Code, de.Message, details)
}

// WriteRateLimited writes a 429 envelope carrying the wait time both as a
// Retry-After header and a retry_after_seconds detail.
func WriteRateLimited(w http.ResponseWriter, r *http.Request, d service.Decision) {
	secs := d.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeEnvelope(w, r, http.StatusTooManyRequests, domain.ErrRateLimited.Code, domain.ErrRateLimited.Message,
		map[string]int{"retry_after_seconds": secs})
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	}

	switch domain.KindOf(err) {
	case domain.KindAuthentication:
		return http.StatusUnauthorized
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindStorage, domain.KindNetwork, domain.KindRealtime:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// getRequestID extracts request ID from context or header.
func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}
