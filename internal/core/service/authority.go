package service

import (
	"context"
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
	"github.com/yndnr/pairmesh-go/pkg/token"
)

// TokenStore defines the storage interface for live tokens.
type TokenStore interface {
	// Get returns the token stored under value.
	Get(value string) (*domain.Token, bool)

	// Insert stores a new token. It fails if the value is already live.
	Insert(t *domain.Token) error

	// CompareAndDelete removes t only if it is still the stored entry for
	// t.Value. Exactly one of several concurrent callers succeeds.
	CompareAndDelete(t *domain.Token) bool

	// DeleteExpired removes every token expired at now.
	DeleteExpired(now time.Time) int

	// Clear removes every token.
	Clear() int

	// CountByKind returns the number of live tokens per kind.
	CountByKind() map[domain.TokenKind]int
}

// TokenAuthorityConfig holds configuration for TokenAuthority.
type TokenAuthorityConfig struct {
	// EphemeralTTL is the lifetime of a pairing token (default: 5m).
	EphemeralTTL time.Duration

	// SessionTTL is the lifetime of a session token (default: 60m).
	SessionTTL time.Duration

	// SweepInterval is how often expired tokens are purged (default: 60s).
	SweepInterval time.Duration
}

// DefaultTokenAuthorityConfig returns default configuration.
func DefaultTokenAuthorityConfig() *TokenAuthorityConfig {
	return &TokenAuthorityConfig{
		EphemeralTTL:  5 * time.Minute,
		SessionTTL:    60 * time.Minute,
		SweepInterval: 60 * time.Second,
	}
}

// AuthorityOption configures a TokenAuthority.
type AuthorityOption func(*TokenAuthority)

// WithAuthorityClock sets the clock used for issuance and expiry.
func WithAuthorityClock(now Clock) AuthorityOption {
	return func(a *TokenAuthority) { a.now = now }
}

// WithAuthorityLogger sets the logger.
func WithAuthorityLogger(l logger.Logger) AuthorityOption {
	return func(a *TokenAuthority) { a.logger = l }
}

// WithAuthorityMetrics sets the metrics registry.
func WithAuthorityMetrics(m *metric.Registry) AuthorityOption {
	return func(a *TokenAuthority) { a.metrics = m }
}

// TokenAuthority issues ephemeral pairing tokens, exchanges them for
// session tokens and validates sessions.
//
// Per token the lifecycle is Active -> {Consumed | Expired} -> Deleted.
// Sessions are never extended: validation does not move ExpiresAt.
type TokenAuthority struct {
	store   TokenStore
	cfg     TokenAuthorityConfig
	now     Clock
	logger  logger.Logger
	metrics *metric.Registry
	sweep   sweeper
}

// NewTokenAuthority creates a TokenAuthority backed by store.
func NewTokenAuthority(store TokenStore, cfg *TokenAuthorityConfig, opts ...AuthorityOption) *TokenAuthority {
	if cfg == nil {
		cfg = DefaultTokenAuthorityConfig()
	}
	a := &TokenAuthority{
		store:  store,
		cfg:    *cfg,
		now:    time.Now,
		logger: logger.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IssueEphemeral creates a single-use pairing token.
func (a *TokenAuthority) IssueEphemeral(_ context.Context) (*domain.Token, error) {
	t, err := domain.NewToken(domain.TokenKindEphemeral, a.now(), a.cfg.EphemeralTTL)
	if err != nil {
		return nil, err
	}
	if err := a.store.Insert(t); err != nil {
		return nil, err
	}
	a.metrics.RecordTokenIssued(string(domain.TokenKindEphemeral))
	return t, nil
}

// Lookup resolves value against the store, expecting a token of kind want.
// It never mutates the store.
func (a *TokenAuthority) Lookup(value string, want domain.TokenKind) domain.Lookup {
	t, ok := a.store.Get(value)
	switch {
	case !ok:
		return domain.Lookup{Status: domain.LookupNotFound}
	case t.Kind != want:
		return domain.Lookup{Status: domain.LookupWrongKind, Token: t}
	case t.IsExpired(a.now()):
		return domain.Lookup{Status: domain.LookupExpired, Token: t}
	default:
		return domain.Lookup{Status: domain.LookupValid, Token: t}
	}
}

// Exchange consumes an ephemeral token and mints a session token.
//
// The ephemeral token is removed with a compare-and-delete before the
// session is minted; only the caller whose delete succeeds may mint, so
// concurrent exchanges of the same value yield at most one session.
func (a *TokenAuthority) Exchange(ctx context.Context, value string) (*domain.Token, error) {
	l := a.Lookup(value, domain.TokenKindEphemeral)
	switch l.Status {
	case domain.LookupNotFound, domain.LookupWrongKind:
		a.metrics.RecordExchange("invalid")
		return nil, domain.ErrTokenInvalid
	case domain.LookupExpired:
		a.store.CompareAndDelete(l.Token)
		a.metrics.RecordExchange("expired")
		return nil, domain.ErrTokenExpired
	}

	if !a.store.CompareAndDelete(l.Token) {
		a.metrics.RecordExchange("raced")
		return nil, domain.ErrTokenInvalid
	}

	session, err := domain.NewToken(domain.TokenKindSession, a.now(), a.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	if err := a.store.Insert(session); err != nil {
		return nil, err
	}

	a.metrics.RecordExchange("ok")
	a.metrics.RecordTokenIssued(string(domain.TokenKindSession))
	logger.L(ctx).Info("pairing token exchanged", "peer_id", session.PeerID, "session_fp", token.Fingerprint(session.Value))
	return session, nil
}

// Session returns the live session token for value. Expired sessions are
// deleted on access.
func (a *TokenAuthority) Session(_ context.Context, value string) (*domain.Token, error) {
	l := a.Lookup(value, domain.TokenKindSession)
	switch l.Status {
	case domain.LookupValid:
		a.metrics.RecordSessionValidation("valid")
		return l.Token, nil
	case domain.LookupExpired:
		a.store.CompareAndDelete(l.Token)
		a.metrics.RecordSessionValidation("expired")
	default:
		a.metrics.RecordSessionValidation("invalid")
	}
	return nil, domain.ErrSessionInvalid
}

// ValidateSession reports whether value is a live session token.
func (a *TokenAuthority) ValidateSession(ctx context.Context, value string) bool {
	_, err := a.Session(ctx, value)
	return err == nil
}

// InvalidateAll deletes every token. Any previously admitted peer must pair
// again.
func (a *TokenAuthority) InvalidateAll(ctx context.Context) int {
	n := a.store.Clear()
	a.metrics.AddTokensInvalidated(n)
	logger.L(ctx).Info("all tokens invalidated", "count", n)
	return n
}

// Sweep removes every expired token and returns how many were removed.
func (a *TokenAuthority) Sweep() int {
	n := a.store.DeleteExpired(a.now())
	a.metrics.AddTokensSwept(n)
	if n > 0 {
		a.logger.Debug("expired tokens swept", "count", n)
	}
	return n
}

// Start launches the background sweep.
func (a *TokenAuthority) Start() {
	a.sweep.start(a.cfg.SweepInterval, func() { a.Sweep() })
}

// Stop halts the background sweep.
func (a *TokenAuthority) Stop() {
	a.sweep.stop()
}

// AuthorityStats reports live token counts.
type AuthorityStats struct {
	Ephemeral int `json:"ephemeral"`
	Session   int `json:"session"`
}

// Stats returns live token counts by kind.
func (a *TokenAuthority) Stats() AuthorityStats {
	counts := a.store.CountByKind()
	return AuthorityStats{
		Ephemeral: counts[domain.TokenKindEphemeral],
		Session:   counts[domain.TokenKindSession],
	}
}

// EphemeralTTL returns the configured pairing token lifetime.
func (a *TokenAuthority) EphemeralTTL() time.Duration {
	return a.cfg.EphemeralTTL
}
