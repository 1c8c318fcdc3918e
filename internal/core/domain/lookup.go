package domain

// LookupStatus enumerates the outcomes of resolving a token value.
type LookupStatus int

const (
	// LookupNotFound means no live token has the value.
	LookupNotFound LookupStatus = iota

	// LookupWrongKind means a token exists but is not of the requested kind.
	LookupWrongKind

	// LookupExpired means the token exists but its expiry has passed.
	LookupExpired

	// LookupValid means the token exists, has the requested kind and is live.
	LookupValid
)

// String returns the status name.
func (s LookupStatus) String() string {
	switch s {
	case LookupNotFound:
		return "not_found"
	case LookupWrongKind:
		return "wrong_kind"
	case LookupExpired:
		return "expired"
	case LookupValid:
		return "valid"
	default:
		return "unknown"
	}
}

// Lookup is the result of resolving a token value against the store.
// Token is set for every status except LookupNotFound.
type Lookup struct {
	Status LookupStatus
	Token  *Token
}

// Valid reports whether the lookup resolved to a usable token.
func (l Lookup) Valid() bool {
	return l.Status == LookupValid
}
