package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
)

func newStore(t *testing.T, max int64) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(Config{Dir: t.TempDir(), MaxObjectSize: max})
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return s
}

func TestNewLocalStore_RequiresDir(t *testing.T) {
	if _, err := NewLocalStore(Config{}); !domain.IsDomainError(err, domain.ErrMissingArgument.Code) {
		t.Fatalf("NewLocalStore() error = %v, want missing argument", err)
	}
}

func TestLocalStore_PutOpen(t *testing.T) {
	s := newStore(t, 0)

	url, err := s.Put(context.Background(), "peer-1", "photo.png", strings.NewReader("pixels"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(url, DefaultURLPrefix+"/peer-1/") {
		t.Fatalf("url = %q, want prefix %q", url, DefaultURLPrefix+"/peer-1/")
	}
	if !strings.HasSuffix(url, "-photo.png") {
		t.Fatalf("url = %q, want suffix -photo.png", url)
	}

	object := url[strings.LastIndex(url, "/")+1:]
	f, err := s.Open("peer-1", object)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "pixels" {
		t.Fatalf("content = %q, want %q", data, "pixels")
	}

	// No temp files are left behind.
	entries, _ := os.ReadDir(filepath.Join(s.Dir(), "peer-1"))
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
}

func TestLocalStore_PutSanitizesNames(t *testing.T) {
	s := newStore(t, 0)

	url, err := s.Put(context.Background(), "../../etc", "../passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if strings.Contains(url, "..") {
		t.Fatalf("url %q contains traversal", url)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "etc")); err != nil {
		t.Fatalf("object should be stored under sanitized owner: %v", err)
	}
}

func TestLocalStore_PutLimits(t *testing.T) {
	s := newStore(t, 4)

	_, err := s.Put(context.Background(), "peer-1", "big.bin", strings.NewReader("12345"))
	if !domain.IsDomainError(err, domain.ErrPayloadTooLarge.Code) {
		t.Fatalf("oversized Put error = %v, want payload too large", err)
	}

	_, err = s.Put(context.Background(), "peer-1", "empty.bin", strings.NewReader(""))
	if !domain.IsDomainError(err, domain.ErrMissingArgument.Code) {
		t.Fatalf("empty Put error = %v, want missing argument", err)
	}

	_, err = s.Put(context.Background(), "", "a.bin", strings.NewReader("1"))
	if !domain.IsDomainError(err, domain.ErrMissingArgument.Code) {
		t.Fatalf("ownerless Put error = %v, want missing argument", err)
	}
}

func TestLocalStore_PutCancelled(t *testing.T) {
	s := newStore(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, "peer-1", "a.bin", strings.NewReader("1"))
	if domain.KindOf(err) != domain.KindStorage {
		t.Fatalf("cancelled Put kind = %s, want storage", domain.KindOf(err))
	}
}

func TestLocalStore_OpenRejectsTraversal(t *testing.T) {
	s := newStore(t, 0)

	tests := []struct{ owner, object string }{
		{"..", "passwd"},
		{"peer-1", "../x"},
		{"", "x"},
		{"peer-1", "missing"},
	}
	for _, tt := range tests {
		if _, err := s.Open(tt.owner, tt.object); !domain.IsDomainError(err, domain.ErrNotFound.Code) {
			t.Errorf("Open(%q, %q) = %v, want not found", tt.owner, tt.object, err)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      domain.Kind
		retryable bool
	}{
		{"again", &os.PathError{Op: "write", Err: syscall.EAGAIN}, domain.KindStorage, true},
		{"too many files", syscall.EMFILE, domain.KindStorage, true},
		{"disk full", syscall.ENOSPC, domain.KindStorage, false},
		{"permission", os.ErrPermission, domain.KindFilesystem, false},
		{"other", errors.New("boom"), domain.KindFilesystem, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)
			if domain.KindOf(err) != tt.kind {
				t.Errorf("kind = %s, want %s", domain.KindOf(err), tt.kind)
			}
			if domain.IsRetryable(err) != tt.retryable {
				t.Errorf("retryable = %v, want %v", domain.IsRetryable(err), tt.retryable)
			}
		})
	}
}
