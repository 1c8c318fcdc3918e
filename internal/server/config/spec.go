package config

import "time"

// ServerConfig is the root configuration for pairmesh-server.
type ServerConfig struct {
	Server    ServerSection    `koanf:"server"`
	Pairing   PairingSection   `koanf:"pairing"`
	RateLimit RateLimitSection `koanf:"rate_limit"`
	Realtime  RealtimeSection  `koanf:"realtime"`
	Upload    UploadSection    `koanf:"upload"`
	Storage   StorageSection   `koanf:"storage"`
	Security  SecuritySection  `koanf:"security"`
	Log       LogSection       `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`

	// ShutdownTimeout bounds the whole graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// PublicHost is advertised in pairing URLs. Empty uses the Host header
	// of the issuing request.
	PublicHost string `koanf:"public_host"`

	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// GlobalRateLimit is a per-IP requests/second ceiling across all
	// routes. 0 disables it.
	GlobalRateLimit int  `koanf:"global_rate_limit"`
	EnableAudit     bool `koanf:"enable_audit"`
}

// TLSEnabled reports whether both certificate and key are configured.
func (c HTTPConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// PairingSection configures token lifetimes.
type PairingSection struct {
	EphemeralTTL  time.Duration `koanf:"ephemeral_ttl"`
	SessionTTL    time.Duration `koanf:"session_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// RateLimitSection configures the per-route fixed-window limiters.
type RateLimitSection struct {
	Pairing       RouteLimit    `koanf:"pairing"`
	Uploads       RouteLimit    `koanf:"uploads"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// RouteLimit is the request budget of one route per window.
type RouteLimit struct {
	Limit  int           `koanf:"limit"`
	Window time.Duration `koanf:"window"`
}

// RealtimeSection configures the realtime hub.
type RealtimeSection struct {
	SendQueueSize  int           `koanf:"send_queue_size"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	ReadLimit      int64         `koanf:"read_limit"`
	MessageRate    float64       `koanf:"message_rate"`
	MessageBurst   int           `koanf:"message_burst"`
	ShutdownGrace  time.Duration `koanf:"shutdown_grace"`
	OriginPatterns []string      `koanf:"origin_patterns"`
}

// UploadSection configures artifact uploads.
type UploadSection struct {
	MaxSize int64         `koanf:"max_size"`
	Timeout time.Duration `koanf:"timeout"`

	// Retry policy for retryable storage failures.
	MaxAttempts    int           `koanf:"max_attempts"`
	BaseDelay      time.Duration `koanf:"base_delay"`
	MaxDelay       time.Duration `koanf:"max_delay"`
	AttemptTimeout time.Duration `koanf:"attempt_timeout"`
}

// StorageSection configures artifact storage.
type StorageSection struct {
	BlobDir string `koanf:"blob_dir"`
}

// SecuritySection configures operator access.
type SecuritySection struct {
	// AdminKeyHash is the Argon2id PHC hash of the admin key. Empty
	// disables the admin API.
	AdminKeyHash string `koanf:"admin_key_hash"`

	// AdminAllowList restricts the admin API to these IPs/CIDRs.
	AdminAllowList []string `koanf:"admin_allow_list"`

	MetricsAuthRequired bool `koanf:"metrics_auth_required"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
