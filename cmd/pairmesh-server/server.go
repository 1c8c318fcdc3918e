package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/yndnr/pairmesh-go/internal/core/service"
	"github.com/yndnr/pairmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/pairmesh-go/internal/infra/retry"
	"github.com/yndnr/pairmesh-go/internal/infra/shutdown"
	"github.com/yndnr/pairmesh-go/internal/infra/tlsroots"
	"github.com/yndnr/pairmesh-go/internal/realtime"
	"github.com/yndnr/pairmesh-go/internal/server/config"
	"github.com/yndnr/pairmesh-go/internal/server/httpserver"
	"github.com/yndnr/pairmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/pairmesh-go/internal/storage/blob"
	"github.com/yndnr/pairmesh-go/internal/storage/memory"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

// server holds the wired components of one pairmesh-server process.
type server struct {
	cfg       *config.ServerConfig
	log       logger.Logger
	authority *service.TokenAuthority
	limiters  map[string]*service.RateLimiter
	buckets   *service.ClientBuckets
	hub       *realtime.Hub
	http      *httpserver.Server
	certs     *tlsroots.CertReloader
}

// newServer builds every component from cfg and starts the sweepers.
func newServer(cfg *config.ServerConfig, log logger.Logger, reg *metric.Registry) (*server, error) {
	authority := service.NewTokenAuthority(memory.NewTokenStore(), &service.TokenAuthorityConfig{
		EphemeralTTL:  cfg.Pairing.EphemeralTTL,
		SessionTTL:    cfg.Pairing.SessionTTL,
		SweepInterval: cfg.Pairing.SweepInterval,
	},
		service.WithAuthorityLogger(log.With("component", "authority")),
		service.WithAuthorityMetrics(reg),
	)

	limiters := map[string]*service.RateLimiter{
		handler.RoutePairing: newLimiter(handler.RoutePairing, cfg.RateLimit.Pairing, cfg.RateLimit, reg),
		handler.RouteUploads: newLimiter(handler.RouteUploads, cfg.RateLimit.Uploads, cfg.RateLimit, reg),
	}

	var buckets *service.ClientBuckets
	if cfg.Server.HTTP.GlobalRateLimit > 0 {
		buckets = service.NewClientBuckets(service.ClientBucketsConfig{
			Rate:          cfg.Server.HTTP.GlobalRateLimit,
			SweepInterval: cfg.RateLimit.SweepInterval,
		})
	}

	hub := realtime.NewHub(authority, &realtime.Config{
		SendQueueSize:  cfg.Realtime.SendQueueSize,
		WriteTimeout:   cfg.Realtime.WriteTimeout,
		ReadLimit:      cfg.Realtime.ReadLimit,
		MessageRate:    cfg.Realtime.MessageRate,
		MessageBurst:   cfg.Realtime.MessageBurst,
		ShutdownGrace:  cfg.Realtime.ShutdownGrace,
		OriginPatterns: cfg.Realtime.OriginPatterns,
	},
		realtime.WithLogger(log.With("component", "realtime")),
		realtime.WithMetrics(reg),
	)

	blobs, err := blob.NewLocalStore(blob.Config{
		Dir:           cfg.Storage.BlobDir,
		MaxObjectSize: cfg.Upload.MaxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("init blob store: %w", err)
	}

	uploads := service.NewUploadService(blobs, hub, &service.UploadServiceConfig{
		MaxSize: cfg.Upload.MaxSize,
		Timeout: cfg.Upload.Timeout,
		Retry: retry.Policy{
			MaxAttempts:    cfg.Upload.MaxAttempts,
			BaseDelay:      cfg.Upload.BaseDelay,
			MaxDelay:       cfg.Upload.MaxDelay,
			AttemptTimeout: cfg.Upload.AttemptTimeout,
		},
	}, reg)

	admin, err := service.NewAdminAuthenticator(cfg.Security.AdminKeyHash)
	if err != nil {
		return nil, fmt.Errorf("init admin key: %w", err)
	}

	if err := reg.Register(metric.NewCollector(&statsSource{
		authority: authority,
		hub:       hub,
		limiters:  limiters,
	})); err != nil {
		return nil, fmt.Errorf("register collector: %w", err)
	}

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler: handler.Config{
			Authority:  authority,
			Uploads:    uploads,
			Blobs:      blobs,
			Hub:        hub,
			Limiters:   limiters,
			PublicHost: cfg.Server.HTTP.PublicHost,
			Version:    buildinfo.Version,
			Logger:     log,
		},
		Admin:               admin,
		Metrics:             reg,
		Logger:              log,
		AdminAllowList:      cfg.Security.AdminAllowList,
		MetricsAuthRequired: cfg.Security.MetricsAuthRequired,
		CORSAllowedOrigins:  cfg.Server.HTTP.CORSAllowedOrigins,
		GlobalLimiter:       buckets,
		EnableAudit:         cfg.Server.HTTP.EnableAudit,
	})

	var certs *tlsroots.CertReloader
	if cfg.Server.HTTP.TLSEnabled() {
		certs, err = tlsroots.NewCertReloader(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile,
			tlsroots.WithLogger(log.With("component", "tls")),
		)
		if err != nil {
			return nil, err
		}
		if err := certs.Start(); err != nil {
			return nil, err
		}
	}

	authority.Start()
	for _, l := range limiters {
		l.Start()
	}
	if buckets != nil {
		buckets.Start()
	}

	log.Info("services initialized",
		"ephemeral_ttl", cfg.Pairing.EphemeralTTL,
		"session_ttl", cfg.Pairing.SessionTTL,
		"pairing_limit", cfg.RateLimit.Pairing.Limit,
		"uploads_limit", cfg.RateLimit.Uploads.Limit,
		"blob_dir", blobs.Dir(),
	)

	return &server{
		cfg:       cfg,
		log:       log,
		authority: authority,
		limiters:  limiters,
		buckets:   buckets,
		hub:       hub,
		http:      httpserver.New(cfg.Server.HTTP.Addr, router),
		certs:     certs,
	}, nil
}

func newLimiter(name string, rl config.RouteLimit, section config.RateLimitSection, reg *metric.Registry) *service.RateLimiter {
	return service.NewRateLimiter(memory.NewWindowStore(), service.RateLimiterConfig{
		Name:          name,
		Limit:         rl.Limit,
		Window:        rl.Window,
		SweepInterval: section.SweepInterval,
	}, service.WithLimiterMetrics(reg))
}

func (s *server) serve(ln net.Listener) error {
	if s.certs != nil {
		ln = tls.NewListener(ln, s.certs.ServerConfig())
	}
	return s.http.Serve(ln)
}

// registerShutdown registers teardown hooks. Hooks run in reverse order:
// stop accepting HTTP, close realtime connections, drop every token, then
// stop the sweepers.
func (s *server) registerShutdown(sh *shutdown.Handler) {
	sh.OnShutdown("sweepers", func(context.Context) error {
		if s.certs != nil {
			s.certs.Stop()
		}
		s.authority.Stop()
		for _, l := range s.limiters {
			l.Stop()
		}
		if s.buckets != nil {
			s.buckets.Stop()
		}
		return nil
	})
	sh.OnShutdown("tokens", func(ctx context.Context) error {
		n := s.authority.InvalidateAll(ctx)
		s.log.Info("tokens invalidated", "count", n)
		return nil
	})
	sh.OnShutdown("realtime", s.hub.Shutdown)
	sh.OnShutdown("http", func(ctx context.Context) error {
		s.log.Info("shutting down HTTP server")
		return s.http.Shutdown(ctx)
	})
}

// statsSource feeds scrape-time gauges.
type statsSource struct {
	authority *service.TokenAuthority
	hub       *realtime.Hub
	limiters  map[string]*service.RateLimiter
}

func (s *statsSource) TokenCounts() map[string]int {
	st := s.authority.Stats()
	return map[string]int{"ephemeral": st.Ephemeral, "session": st.Session}
}

func (s *statsSource) ConnectionCounts() map[string]int {
	return s.hub.ConnectionCounts()
}

func (s *statsSource) RateWindowCounts() map[string]int {
	counts := make(map[string]int, len(s.limiters))
	for name, l := range s.limiters {
		counts[name] = l.Count()
	}
	return counts
}
