package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/pkg/token"
)

// Argon2id parameters for admin key hashing.
const (
	// Argon2Memory is the memory parameter in KB (16 MB).
	Argon2Memory uint32 = 16384
	// Argon2Time is the iteration count.
	Argon2Time uint32 = 2
	// Argon2Parallelism is the parallelism factor.
	Argon2Parallelism uint8 = 2
	// Argon2KeyLen is the output hash length in bytes.
	Argon2KeyLen uint32 = 32
	// Argon2SaltLen is the salt length in bytes.
	Argon2SaltLen = 16

	// AdminKeyPrefix marks generated admin keys.
	AdminKeyPrefix = "pmak_"
)

// GenerateAdminKey returns a new random admin key.
func GenerateAdminKey() (string, error) {
	return token.GenerateWithPrefix(AdminKeyPrefix)
}

// HashAdminKey computes the Argon2id PHC string for key.
func HashAdminKey(key string) (string, error) {
	if key == "" {
		return "", domain.ErrMissingArgument.WithDetails("key is required")
	}

	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", domain.ErrInternalServer.WithCause(err)
	}

	hash := argon2.IDKey([]byte(key), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, Argon2Memory, Argon2Time, Argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// argon2Hash is a parsed PHC string.
type argon2Hash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	sum         []byte
}

func parseArgon2Hash(encoded string) (*argon2Hash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, fmt.Errorf("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	h := &argon2Hash{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.parallelism); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	if h.sum, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("hash: %w", err)
	}
	if len(h.sum) == 0 {
		return nil, fmt.Errorf("empty hash")
	}
	return h, nil
}

// AdminAuthenticator verifies the operator admin key.
type AdminAuthenticator struct {
	hash *argon2Hash
}

// NewAdminAuthenticator parses the configured PHC hash. An empty hash yields
// a disabled authenticator.
func NewAdminAuthenticator(encoded string) (*AdminAuthenticator, error) {
	if encoded == "" {
		return &AdminAuthenticator{}, nil
	}
	h, err := parseArgon2Hash(encoded)
	if err != nil {
		return nil, domain.ErrInvalidArgument.
			WithDetails("security.admin_key_hash is not a valid argon2id hash").
			WithCause(err)
	}
	return &AdminAuthenticator{hash: h}, nil
}

// Enabled reports whether an admin key is configured.
func (a *AdminAuthenticator) Enabled() bool {
	return a != nil && a.hash != nil
}

// Verify checks key against the configured hash in constant time.
func (a *AdminAuthenticator) Verify(key string) error {
	if !a.Enabled() || key == "" {
		return domain.ErrAdminKeyInvalid
	}
	h := a.hash
	computed := argon2.IDKey([]byte(key), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.sum)))
	if subtle.ConstantTimeCompare(computed, h.sum) != 1 {
		return domain.ErrAdminKeyInvalid
	}
	return nil
}
