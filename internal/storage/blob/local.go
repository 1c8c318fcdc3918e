package blob

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
)

// DefaultMaxObjectSize bounds a single upload.
const DefaultMaxObjectSize = 32 << 20

// DefaultURLPrefix is the route objects are served under.
const DefaultURLPrefix = "/v1/blobs"

var safeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Config configures a LocalStore.
type Config struct {
	// Dir is the root directory objects are written to.
	Dir string

	// MaxObjectSize is the largest accepted object in bytes.
	MaxObjectSize int64

	// URLPrefix is prepended to returned object URLs.
	URLPrefix string
}

// LocalStore stores objects under Dir/<owner>/<object>.
type LocalStore struct {
	cfg Config
	now func() time.Time
}

// NewLocalStore creates the root directory and returns a store rooted there.
func NewLocalStore(cfg Config) (*LocalStore, error) {
	if cfg.Dir == "" {
		return nil, domain.ErrMissingArgument.WithDetails("blob dir is required")
	}
	if cfg.MaxObjectSize <= 0 {
		cfg.MaxObjectSize = DefaultMaxObjectSize
	}
	if cfg.URLPrefix == "" {
		cfg.URLPrefix = DefaultURLPrefix
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, classify(fmt.Errorf("blob: create dir: %w", err))
	}
	return &LocalStore{cfg: cfg, now: time.Now}, nil
}

// Put writes r as a new object owned by owner and returns its URL.
func (s *LocalStore) Put(ctx context.Context, owner, name string, r io.Reader) (string, error) {
	owner = sanitize(owner)
	if owner == "" {
		return "", domain.ErrMissingArgument.WithDetails("owner is required")
	}
	base := sanitize(name)
	if base == "" {
		base = "artifact"
	}
	if err := ctx.Err(); err != nil {
		return "", domain.StorageError(err, false)
	}

	id, err := ulid.New(ulid.Timestamp(s.now()), rand.Reader)
	if err != nil {
		return "", domain.ErrInternalServer.WithCause(err)
	}
	object := strings.ToLower(id.String()) + "-" + base

	dir := filepath.Join(s.cfg.Dir, owner)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", classify(fmt.Errorf("blob: create owner dir: %w", err))
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", classify(fmt.Errorf("blob: create temp file: %w", err))
	}
	tempPath := tmp.Name()
	defer os.Remove(tempPath)

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: io.LimitReader(r, s.cfg.MaxObjectSize+1)})
	if err != nil {
		tmp.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", domain.StorageError(ctxErr, true)
		}
		return "", classify(fmt.Errorf("blob: write: %w", err))
	}
	if n > s.cfg.MaxObjectSize {
		tmp.Close()
		return "", domain.ErrPayloadTooLarge.WithDetails(fmt.Sprintf("limit is %d bytes", s.cfg.MaxObjectSize))
	}
	if n == 0 {
		tmp.Close()
		return "", domain.ErrMissingArgument.WithDetails("empty upload")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", classify(fmt.Errorf("blob: sync: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return "", classify(fmt.Errorf("blob: close: %w", err))
	}
	if err := os.Rename(tempPath, filepath.Join(dir, object)); err != nil {
		return "", classify(fmt.Errorf("blob: rename: %w", err))
	}

	return s.cfg.URLPrefix + "/" + url.PathEscape(owner) + "/" + url.PathEscape(object), nil
}

// Open returns the stored object for reading.
func (s *LocalStore) Open(owner, object string) (*os.File, error) {
	if owner != sanitize(owner) || object != sanitize(object) || owner == "" || object == "" {
		return nil, domain.ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.cfg.Dir, owner, object))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, classify(err)
	}
	return f, nil
}

// Dir returns the root directory.
func (s *LocalStore) Dir() string {
	return s.cfg.Dir
}

// sanitize reduces a user supplied name to a single safe path element.
func sanitize(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = safeName.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if len(name) > 128 {
		name = name[len(name)-128:]
	}
	return name
}

// classify attaches a Kind to a local I/O failure. Conditions that clear on
// their own are retryable Storage errors; everything else is a permanent
// Filesystem error.
func classify(err error) error {
	switch {
	case errors.Is(err, syscall.EAGAIN),
		errors.Is(err, syscall.EINTR),
		errors.Is(err, syscall.EBUSY),
		errors.Is(err, syscall.EMFILE),
		errors.Is(err, syscall.ENFILE):
		return domain.StorageError(err, true)
	case errors.Is(err, syscall.ENOSPC):
		return domain.StorageError(err, false)
	default:
		return domain.FilesystemError(err, false)
	}
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
