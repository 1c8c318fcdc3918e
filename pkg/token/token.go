package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultLength is the number of random bytes in a credential body.
const DefaultLength = 32

var encoding = base64.RawURLEncoding

// Generate returns a DefaultLength random body without prefix.
func Generate() (string, error) {
	return GenerateWithLength(DefaultLength)
}

// GenerateWithPrefix returns prefix followed by a DefaultLength body.
func GenerateWithPrefix(prefix string) (string, error) {
	body, err := Generate()
	if err != nil {
		return "", err
	}
	return prefix + body, nil
}

// GenerateWithLength returns n random bytes encoded as unpadded base64url.
func GenerateWithLength(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return encoding.EncodeToString(buf), nil
}

// HasValidFormat reports whether value is prefix followed by a well formed
// DefaultLength body. It lets callers reject garbage before touching a
// store.
func HasValidFormat(value, prefix string) bool {
	body, ok := strings.CutPrefix(value, prefix)
	if !ok || len(body) != encoding.EncodedLen(DefaultLength) {
		return false
	}
	_, err := encoding.DecodeString(body)
	return err == nil
}

// Fingerprint returns the first 12 hex characters of the SHA-256 of value.
// Empty input yields "".
func Fingerprint(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:6])
}
