package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/infra/retry"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

// BlobStore stores uploaded artifacts and returns a URL that serves them.
type BlobStore interface {
	Put(ctx context.Context, owner, name string, r io.Reader) (string, error)
}

// Broadcaster fans an event out to every admitted realtime connection.
type Broadcaster interface {
	Broadcast(ev domain.Event) int
}

// UploadServiceConfig holds configuration for UploadService.
type UploadServiceConfig struct {
	// MaxSize is the largest accepted upload in bytes (default: 32 MiB).
	MaxSize int64

	// Timeout bounds the whole store operation including retries
	// (default: 30s).
	Timeout time.Duration

	// Retry controls retries of retryable storage failures.
	Retry retry.Policy
}

// DefaultUploadServiceConfig returns default configuration.
func DefaultUploadServiceConfig() *UploadServiceConfig {
	return &UploadServiceConfig{
		MaxSize: 32 << 20,
		Timeout: 30 * time.Second,
		Retry:   retry.DefaultPolicy(),
	}
}

// UploadRequest is a single artifact upload from a paired peer.
type UploadRequest struct {
	OwnerID string
	Name    string
	Body    io.Reader
}

// UploadResponse describes a stored artifact.
type UploadResponse struct {
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// UploadService stores artifacts and announces them to realtime peers.
type UploadService struct {
	blobs   BlobStore
	hub     Broadcaster
	cfg     UploadServiceConfig
	metrics *metric.Registry
}

// NewUploadService creates an UploadService.
func NewUploadService(blobs BlobStore, hub Broadcaster, cfg *UploadServiceConfig, metrics *metric.Registry) *UploadService {
	if cfg == nil {
		cfg = DefaultUploadServiceConfig()
	}
	return &UploadService{
		blobs:   blobs,
		hub:     hub,
		cfg:     *cfg,
		metrics: metrics,
	}
}

// Upload buffers the body, stores it with retries and broadcasts
// artifact-inserted followed by peer-update.
func (s *UploadService) Upload(ctx context.Context, req *UploadRequest) (*UploadResponse, error) {
	if req == nil || req.OwnerID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("owner is required")
	}
	if req.Body == nil {
		return nil, domain.ErrMissingArgument.WithDetails("upload body is empty")
	}

	// Each retry needs a fresh reader, so the body is held in memory.
	data, err := io.ReadAll(io.LimitReader(req.Body, s.cfg.MaxSize+1))
	if err != nil {
		return nil, domain.ErrBadRequest.WithDetails("failed to read upload body").WithCause(err)
	}
	if int64(len(data)) > s.cfg.MaxSize {
		return nil, domain.ErrPayloadTooLarge
	}
	if len(data) == 0 {
		return nil, domain.ErrMissingArgument.WithDetails("upload body is empty")
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	log := logger.L(ctx)
	policy := s.cfg.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.metrics.IncStorageRetry()
		log.Warn("retrying artifact store", "attempt", attempt, "delay", delay, "error", err)
	}

	url, err := retry.DoValue(ctx, policy, func(ctx context.Context) (string, error) {
		return s.blobs.Put(ctx, req.OwnerID, req.Name, bytes.NewReader(data))
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, domain.StorageError(err, false)
		}
		return nil, domain.AsDomainError(err)
	}

	s.metrics.AddUploadBytes(int64(len(data)))
	log.Info("artifact stored", "owner", req.OwnerID, "size", len(data))

	s.announce(ctx, req.OwnerID, url)
	return &UploadResponse{URL: url, Size: int64(len(data))}, nil
}

func (s *UploadService) announce(ctx context.Context, owner, url string) {
	if s.hub == nil {
		return
	}
	inserted, err := domain.NewEvent(domain.EventArtifactInserted, domain.ArtifactInserted{OwnerID: owner, URL: url})
	if err != nil {
		logger.L(ctx).Error("failed to encode event", "event", domain.EventArtifactInserted, "error", err)
		return
	}
	s.hub.Broadcast(inserted)

	update, err := domain.NewEvent(domain.EventPeerUpdate, domain.PeerUpdate{ID: owner, Field: "artifacts"})
	if err != nil {
		logger.L(ctx).Error("failed to encode event", "event", domain.EventPeerUpdate, "error", err)
		return
	}
	s.hub.Broadcast(update)
}
