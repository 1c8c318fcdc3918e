package config

import (
	"slices"
	"strings"
)

// Sanitize returns a copy of cfg safe to log. The admin key hash keeps its
// PHC algorithm and parameter fields so operators can see the cost
// settings in effect; salt and digest are dropped.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	out := *cfg
	out.Security.AdminAllowList = slices.Clone(cfg.Security.AdminAllowList)
	if h := cfg.Security.AdminKeyHash; h != "" {
		out.Security.AdminKeyHash = maskPHC(h)
	}
	return &out
}

// maskPHC turns "$argon2id$v=19$m=..,t=..,p=..$salt$hash" into
// "$argon2id$v=19$m=..,t=..,p=..$***".
func maskPHC(h string) string {
	parts := strings.Split(h, "$")
	if len(parts) != 6 || parts[0] != "" {
		return "***"
	}
	return strings.Join(parts[:4], "$") + "$***"
}
