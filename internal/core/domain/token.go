package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yndnr/pairmesh-go/pkg/token"
)

// TokenKind distinguishes single-use pairing tokens from session tokens.
type TokenKind string

const (
	TokenKindEphemeral TokenKind = "ephemeral"
	TokenKindSession   TokenKind = "session"
)

// Token constants.
const (
	// EphemeralPrefix is the prefix for single-use pairing tokens.
	EphemeralPrefix = "pmet_"

	// SessionPrefix is the prefix for session tokens.
	SessionPrefix = "pmst_"

	// TokenBodyLength is the Base64 RawURL encoded length (32 bytes -> 43 chars).
	TokenBodyLength = 43

	// TokenLength is the total token length (prefix + body).
	TokenLength = 5 + TokenBodyLength
)

// Prefix returns the value prefix used for tokens of this kind.
func (k TokenKind) Prefix() string {
	switch k {
	case TokenKindEphemeral:
		return EphemeralPrefix
	case TokenKindSession:
		return SessionPrefix
	default:
		return ""
	}
}

// IsValid reports whether k is a known token kind.
func (k TokenKind) IsValid() bool {
	return k == TokenKindEphemeral || k == TokenKindSession
}

// Token is a credential held in memory by the token authority.
//
// A Token is never mutated after creation; state changes are expressed by
// deleting it from the store.
type Token struct {
	// Value is the opaque credential presented by clients.
	Value string `json:"-"`

	Kind TokenKind `json:"kind"`

	// PeerID identifies the secondary client a session token was minted
	// for. Empty for ephemeral tokens.
	PeerID string `json:"peer_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewToken creates a token of the given kind that expires ttl after now.
func NewToken(kind TokenKind, now time.Time, ttl time.Duration) (*Token, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidArgument.WithDetails("unknown token kind: " + string(kind))
	}
	if ttl <= 0 {
		return nil, ErrInvalidArgument.WithDetails("token ttl must be positive")
	}

	value, err := token.GenerateWithPrefix(kind.Prefix())
	if err != nil {
		return nil, ErrInternalServer.WithCause(err)
	}

	t := &Token{
		Value:     value,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if kind == TokenKindSession {
		t.PeerID = uuid.NewString()
	}
	return t, nil
}

// IsExpired reports whether the token is no longer usable at now.
// ExpiresAt itself is already outside the validity interval.
func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Remaining returns how long the token stays valid after now.
func (t *Token) Remaining(now time.Time) time.Duration {
	if d := t.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// ValidateTokenFormat checks that value looks like a token of the given kind.
// It does not consult any store.
func ValidateTokenFormat(value string, kind TokenKind) bool {
	if len(value) != TokenLength {
		return false
	}
	return token.HasValidFormat(value, kind.Prefix())
}

// KindOfValue infers the token kind from its prefix.
func KindOfValue(value string) (TokenKind, bool) {
	switch {
	case strings.HasPrefix(value, EphemeralPrefix):
		return TokenKindEphemeral, true
	case strings.HasPrefix(value, SessionPrefix):
		return TokenKindSession, true
	default:
		return "", false
	}
}

// MaskToken masks a token for safe logging.
// Example: pmst_ABC...xyz
func MaskToken(value string) string {
	if len(value) < 10 {
		return "***REDACTED***"
	}
	if _, ok := KindOfValue(value); ok {
		prefix := value[:5]
		body := value[5:]
		if len(body) > 6 {
			return prefix + body[:3] + "..." + body[len(body)-3:]
		}
		return prefix + "***"
	}
	return "***REDACTED***"
}
