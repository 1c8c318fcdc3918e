package logger

import (
	"log/slog"
	"regexp"
	"strings"
)

// credentialPattern matches PairMesh credentials (pmet_, pmst_, pmak_ and
// any future pm??_ kind) anywhere in a string, including pairing URLs and
// Authorization headers.
var credentialPattern = regexp.MustCompile(`\bpm[a-z]{2}_[A-Za-z0-9_-]+`)

// Attribute keys whose non-empty string values are dropped entirely.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"key",
	"credential",
	"auth",
	"bearer",
	"hash",
}

const redactedValue = "***REDACTED***"

// redactSensitive is the ReplaceAttr hook of every handler built by New.
// Credential values are partially masked so operators can still correlate
// them, other values under sensitive keys are replaced.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if masked := RedactString(s); masked != s {
			return slog.String(a.Key, masked)
		}
		if s != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			if msg := err.Error(); credentialPattern.MatchString(msg) {
				return slog.String(a.Key, RedactString(msg))
			}
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		redacted := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			redacted[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}
	return a
}

// RedactString masks every credential found in s.
func RedactString(s string) string {
	if !strings.Contains(s, "pm") {
		return s
	}
	return credentialPattern.ReplaceAllStringFunc(s, func(cred string) string {
		return maskValue(cred, cred[:5])
	})
}

// maskValue keeps the prefix plus the first and last three characters of
// the body. Short bodies keep only the prefix.
func maskValue(value, prefix string) string {
	body := value[len(prefix):]
	if len(body) <= 6 {
		return prefix + "***"
	}
	return prefix + body[:3] + "..." + body[len(body)-3:]
}

// IsSensitiveKey reports whether an attribute key names secret material.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
