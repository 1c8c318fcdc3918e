package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:5080"
	DefaultShutdownTimeout = 15 * time.Second
	DefaultGlobalRateLimit = 100

	DefaultEphemeralTTL       = 5 * time.Minute
	DefaultSessionTTL         = 60 * time.Minute
	DefaultTokenSweepInterval = 60 * time.Second

	DefaultPairingLimit      = 10
	DefaultUploadsLimit      = 30
	DefaultRateWindow        = time.Minute
	DefaultRateSweepInterval = 60 * time.Second

	DefaultSendQueueSize = 64
	DefaultWriteTimeout  = 10 * time.Second
	DefaultReadLimit     = 64 << 10
	DefaultMessageRate   = 20
	DefaultMessageBurst  = 40
	DefaultShutdownGrace = 5 * time.Second

	DefaultUploadMaxSize        = 32 << 20
	DefaultUploadTimeout        = 30 * time.Second
	DefaultUploadMaxAttempts    = 3
	DefaultUploadBaseDelay      = 100 * time.Millisecond
	DefaultUploadMaxDelay       = 2 * time.Second
	DefaultUploadAttemptTimeout = 10 * time.Second

	DefaultBlobDir = "/var/lib/pairmesh-server/blobs"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				GlobalRateLimit: DefaultGlobalRateLimit,
				EnableAudit:     true,
			},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Pairing: PairingSection{
			EphemeralTTL:  DefaultEphemeralTTL,
			SessionTTL:    DefaultSessionTTL,
			SweepInterval: DefaultTokenSweepInterval,
		},
		RateLimit: RateLimitSection{
			Pairing:       RouteLimit{Limit: DefaultPairingLimit, Window: DefaultRateWindow},
			Uploads:       RouteLimit{Limit: DefaultUploadsLimit, Window: DefaultRateWindow},
			SweepInterval: DefaultRateSweepInterval,
		},
		Realtime: RealtimeSection{
			SendQueueSize:  DefaultSendQueueSize,
			WriteTimeout:   DefaultWriteTimeout,
			ReadLimit:      DefaultReadLimit,
			MessageRate:    DefaultMessageRate,
			MessageBurst:   DefaultMessageBurst,
			ShutdownGrace:  DefaultShutdownGrace,
			OriginPatterns: []string{"*"},
		},
		Upload: UploadSection{
			MaxSize:        DefaultUploadMaxSize,
			Timeout:        DefaultUploadTimeout,
			MaxAttempts:    DefaultUploadMaxAttempts,
			BaseDelay:      DefaultUploadBaseDelay,
			MaxDelay:       DefaultUploadMaxDelay,
			AttemptTimeout: DefaultUploadAttemptTimeout,
		},
		Storage: StorageSection{
			BlobDir: DefaultBlobDir,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
