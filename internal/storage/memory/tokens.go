package memory

import (
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/pkg/cmap"
)

// TokenStore keeps live tokens keyed by their value.
type TokenStore struct {
	tokens *cmap.Map[string, *domain.Token]
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens: cmap.New[string, *domain.Token](),
	}
}

// Get returns the token stored under value.
func (s *TokenStore) Get(value string) (*domain.Token, bool) {
	return s.tokens.Get(value)
}

// Insert stores t. It fails if a live token already has the same value.
func (s *TokenStore) Insert(t *domain.Token) error {
	if t == nil || t.Value == "" {
		return domain.ErrInvalidArgument.WithDetails("token value is required")
	}
	if !s.tokens.SetIfAbsent(t.Value, t) {
		return domain.ErrInternalServer.WithDetails("token value collision")
	}
	return nil
}

// CompareAndDelete removes the entry for t.Value only if it is still t.
// Of several concurrent callers holding the same token, exactly one gets true.
func (s *TokenStore) CompareAndDelete(t *domain.Token) bool {
	_, removed := s.tokens.DeleteIf(t.Value, func(current *domain.Token) bool {
		return current == t
	})
	return removed
}

// Delete removes the token stored under value.
func (s *TokenStore) Delete(value string) bool {
	_, ok := s.tokens.Pop(value)
	return ok
}

// DeleteExpired removes every token expired at now.
func (s *TokenStore) DeleteExpired(now time.Time) int {
	return s.tokens.RemoveIf(func(_ string, t *domain.Token) bool {
		return t.IsExpired(now)
	})
}

// Clear removes every token.
func (s *TokenStore) Clear() int {
	return s.tokens.Clear()
}

// CountByKind returns the number of stored tokens per kind.
func (s *TokenStore) CountByKind() map[domain.TokenKind]int {
	counts := map[domain.TokenKind]int{
		domain.TokenKindEphemeral: 0,
		domain.TokenKindSession:   0,
	}
	for _, t := range s.tokens.All() {
		counts[t.Kind]++
	}
	return counts
}

// Count returns the number of stored tokens.
func (s *TokenStore) Count() int {
	return s.tokens.Count()
}
