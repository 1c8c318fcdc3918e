package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyPairing(&cfg.Pairing); err != nil {
		return err
	}
	if err := verifyRateLimit(&cfg.RateLimit); err != nil {
		return err
	}
	if err := verifyRealtime(&cfg.Realtime); err != nil {
		return err
	}
	if err := verifyUpload(&cfg.Upload); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifySecurity(&cfg.Security); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr %q: %w", cfg.HTTP.Addr, err)
	}

	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and server.http.tls_key_file must be set together")
	}
	for _, path := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("tls file %s: %w", path, err)
		}
	}

	if cfg.HTTP.GlobalRateLimit < 0 {
		return errors.New("server.http.global_rate_limit must not be negative")
	}
	if cfg.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	return nil
}

func verifyPairing(cfg *PairingSection) error {
	if err := positive("pairing.ephemeral_ttl", cfg.EphemeralTTL); err != nil {
		return err
	}
	if err := positive("pairing.session_ttl", cfg.SessionTTL); err != nil {
		return err
	}
	return positive("pairing.sweep_interval", cfg.SweepInterval)
}

func verifyRateLimit(cfg *RateLimitSection) error {
	for name, rl := range map[string]RouteLimit{"pairing": cfg.Pairing, "uploads": cfg.Uploads} {
		if rl.Limit < 1 {
			return fmt.Errorf("rate_limit.%s.limit must be at least 1", name)
		}
		if err := positive("rate_limit."+name+".window", rl.Window); err != nil {
			return err
		}
	}
	return positive("rate_limit.sweep_interval", cfg.SweepInterval)
}

func verifyRealtime(cfg *RealtimeSection) error {
	if cfg.SendQueueSize < 1 {
		return errors.New("realtime.send_queue_size must be at least 1")
	}
	if cfg.ReadLimit < 1 {
		return errors.New("realtime.read_limit must be at least 1")
	}
	if cfg.MessageRate <= 0 || cfg.MessageBurst < 1 {
		return errors.New("realtime.message_rate and realtime.message_burst must be positive")
	}
	if err := positive("realtime.write_timeout", cfg.WriteTimeout); err != nil {
		return err
	}
	return positive("realtime.shutdown_grace", cfg.ShutdownGrace)
}

func verifyUpload(cfg *UploadSection) error {
	if cfg.MaxSize < 1 {
		return errors.New("upload.max_size must be at least 1")
	}
	if cfg.MaxAttempts < 1 {
		return errors.New("upload.max_attempts must be at least 1")
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		return errors.New("upload.max_delay must not be less than upload.base_delay")
	}
	return positive("upload.timeout", cfg.Timeout)
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.BlobDir == "" {
		return errors.New("storage.blob_dir is required")
	}

	if err := os.MkdirAll(cfg.BlobDir, 0750); err != nil {
		return errors.New("cannot create blob directory: " + err.Error())
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if cfg.AdminKeyHash != "" && !strings.HasPrefix(cfg.AdminKeyHash, "$argon2id$") {
		return errors.New("security.admin_key_hash must be an argon2id hash (see pairmesh-cli admin hash-key)")
	}
	if cfg.MetricsAuthRequired && cfg.AdminKeyHash == "" {
		return errors.New("security.metrics_auth_required needs security.admin_key_hash")
	}
	for _, entry := range cfg.AdminAllowList {
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return fmt.Errorf("security.admin_allow_list: %w", err)
			}
		} else if net.ParseIP(entry) == nil {
			return fmt.Errorf("security.admin_allow_list: invalid IP %q", entry)
		}
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := logger.ParseFormat(cfg.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}
	return nil
}

func positive(key string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive", key)
	}
	return nil
}
