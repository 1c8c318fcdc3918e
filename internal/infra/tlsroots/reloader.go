package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/yndnr/pairmesh-go/internal/infra/confloader"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

// CertReloader holds the server certificate and reloads it when its files
// change. A failed reload keeps serving the previous certificate.
type CertReloader struct {
	certFile string
	keyFile  string
	debounce time.Duration
	logger   logger.Logger

	mu       sync.RWMutex
	cert     *tls.Certificate
	notAfter time.Time
	reloads  int

	watcher  *confloader.Watcher
	stopOnce sync.Once
}

// ReloaderOption configures a CertReloader.
type ReloaderOption func(*CertReloader)

// WithLogger sets the reloader's logger.
func WithLogger(l logger.Logger) ReloaderOption {
	return func(r *CertReloader) {
		r.logger = l
	}
}

// WithDebounce sets how long file events must settle before a reload.
func WithDebounce(d time.Duration) ReloaderOption {
	return func(r *CertReloader) {
		r.debounce = d
	}
}

// NewCertReloader loads the key pair. It fails if the initial load fails.
func NewCertReloader(certFile, keyFile string, opts ...ReloaderOption) (*CertReloader, error) {
	r := &CertReloader{
		certFile: certFile,
		keyFile:  keyFile,
		debounce: 500 * time.Millisecond,
		logger:   logger.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.Reload(); err != nil {
		return nil, fmt.Errorf("tlsroots: initial load: %w", err)
	}
	return r, nil
}

// Start watches the certificate and key files in the background.
func (r *CertReloader) Start() error {
	w, err := confloader.NewWatcher(
		confloader.WithWatcherLogger(r.logger),
		confloader.WithDebounce(r.debounce),
	)
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	for _, path := range []string{r.certFile, r.keyFile} {
		if err := w.Watch(path); err != nil {
			w.Stop()
			return fmt.Errorf("tlsroots: watch %s: %w", path, err)
		}
	}
	w.OnChange(func(string) {
		if err := r.Reload(); err != nil {
			r.logger.Error("certificate reload failed",
				"error", err,
				"cert_file", r.certFile,
			)
		}
	})

	r.watcher = w
	w.StartAsync()
	r.logger.Info("certificate watcher started",
		"cert_file", r.certFile,
		"key_file", r.keyFile,
	)
	return nil
}

// Stop stops watching. It is safe to call more than once.
func (r *CertReloader) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		if r.watcher != nil {
			err = r.watcher.Stop()
		}
	})
	return err
}

// Reload reads the key pair from disk and swaps it in.
func (r *CertReloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("parse leaf: %w", err)
	}
	cert.Leaf = leaf

	r.mu.Lock()
	r.cert = &cert
	r.notAfter = leaf.NotAfter
	r.reloads++
	r.mu.Unlock()

	r.logger.Info("certificate loaded",
		"cert_file", r.certFile,
		"subject", leaf.Subject.CommonName,
		"not_after", leaf.NotAfter,
	)
	if time.Until(leaf.NotAfter) < 7*24*time.Hour {
		r.logger.Warn("certificate expires soon", "not_after", leaf.NotAfter)
	}
	return nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *CertReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

// NotAfter returns the expiry of the certificate being served.
func (r *CertReloader) NotAfter() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notAfter
}

// Loads returns how many times a key pair was loaded successfully.
func (r *CertReloader) Loads() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reloads
}

// ServerConfig returns a server TLS config backed by the reloader.
func (r *CertReloader) ServerConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: r.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}
