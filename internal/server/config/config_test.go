package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.Server.HTTP.Addr, DefaultHTTPAddr)
	}
	if cfg.Server.HTTP.TLSEnabled() {
		t.Error("TLS should be disabled by default")
	}
	if cfg.Pairing.EphemeralTTL != 5*time.Minute {
		t.Errorf("EphemeralTTL = %v, want 5m", cfg.Pairing.EphemeralTTL)
	}
	if cfg.Pairing.SessionTTL != 60*time.Minute {
		t.Errorf("SessionTTL = %v, want 60m", cfg.Pairing.SessionTTL)
	}
	if cfg.RateLimit.Pairing.Limit != 10 || cfg.RateLimit.Uploads.Limit != 30 {
		t.Errorf("limits = %d/%d, want 10/30", cfg.RateLimit.Pairing.Limit, cfg.RateLimit.Uploads.Limit)
	}
	if cfg.RateLimit.Pairing.Window != time.Minute {
		t.Errorf("Pairing.Window = %v, want 1m", cfg.RateLimit.Pairing.Window)
	}
	if cfg.Security.AdminKeyHash != "" {
		t.Error("admin API should be disabled by default")
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func validConfig(t *testing.T) *ServerConfig {
	cfg := Default()
	cfg.Storage.BlobDir = filepath.Join(t.TempDir(), "blobs")
	return cfg
}

func TestVerify_Default(t *testing.T) {
	cfg := validConfig(t)
	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if _, err := os.Stat(cfg.Storage.BlobDir); err != nil {
		t.Errorf("blob dir not created: %v", err)
	}
}

func TestVerify_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		want   string
	}{
		{"empty addr", func(c *ServerConfig) { c.Server.HTTP.Addr = "" }, "server.http.addr"},
		{"addr without port", func(c *ServerConfig) { c.Server.HTTP.Addr = "localhost" }, "server.http.addr"},
		{"cert without key", func(c *ServerConfig) { c.Server.HTTP.TLSCertFile = "/tmp/cert.pem" }, "set together"},
		{"missing tls files", func(c *ServerConfig) {
			c.Server.HTTP.TLSCertFile = "/nonexistent/cert.pem"
			c.Server.HTTP.TLSKeyFile = "/nonexistent/key.pem"
		}, "tls file"},
		{"zero ephemeral ttl", func(c *ServerConfig) { c.Pairing.EphemeralTTL = 0 }, "pairing.ephemeral_ttl"},
		{"negative session ttl", func(c *ServerConfig) { c.Pairing.SessionTTL = -time.Second }, "pairing.session_ttl"},
		{"zero pairing limit", func(c *ServerConfig) { c.RateLimit.Pairing.Limit = 0 }, "rate_limit.pairing.limit"},
		{"zero uploads window", func(c *ServerConfig) { c.RateLimit.Uploads.Window = 0 }, "rate_limit.uploads.window"},
		{"zero queue", func(c *ServerConfig) { c.Realtime.SendQueueSize = 0 }, "realtime.send_queue_size"},
		{"zero message rate", func(c *ServerConfig) { c.Realtime.MessageRate = 0 }, "realtime.message_rate"},
		{"zero attempts", func(c *ServerConfig) { c.Upload.MaxAttempts = 0 }, "upload.max_attempts"},
		{"delay inverted", func(c *ServerConfig) { c.Upload.MaxDelay = time.Millisecond }, "upload.max_delay"},
		{"empty blob dir", func(c *ServerConfig) { c.Storage.BlobDir = "" }, "storage.blob_dir"},
		{"plain admin key", func(c *ServerConfig) { c.Security.AdminKeyHash = "pmak_plaintext" }, "argon2id"},
		{"metrics auth without key", func(c *ServerConfig) { c.Security.MetricsAuthRequired = true }, "metrics_auth_required"},
		{"bad allow list", func(c *ServerConfig) { c.Security.AdminAllowList = []string{"10.0.0.0/99"} }, "admin_allow_list"},
		{"bad log level", func(c *ServerConfig) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *ServerConfig) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := Verify(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestVerify_TLSFiles(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "cert.pem")
	key := filepath.Join(dir, "key.pem")
	for _, p := range []string{cert, key} {
		if err := os.WriteFile(p, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	cfg := validConfig(t)
	cfg.Server.HTTP.TLSCertFile = cert
	cfg.Server.HTTP.TLSKeyFile = key
	if err := Verify(cfg); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
	if !cfg.Server.HTTP.TLSEnabled() {
		t.Error("TLSEnabled() = false")
	}
}

func TestSanitize(t *testing.T) {
	hash := "$argon2id$v=19$m=16384,t=2,p=2$c2FsdHNhbHQ$aGFzaGhhc2g"
	cfg := Default()
	cfg.Security.AdminKeyHash = hash
	cfg.Security.AdminAllowList = []string{"10.0.0.0/8"}

	sanitized := Sanitize(cfg)

	if cfg.Security.AdminKeyHash != hash {
		t.Error("Original config should not be modified")
	}
	if got := sanitized.Security.AdminKeyHash; got != "$argon2id$v=19$m=16384,t=2,p=2$***" {
		t.Errorf("masked hash = %q", got)
	}

	sanitized.Security.AdminAllowList[0] = "changed"
	if cfg.Security.AdminAllowList[0] != "10.0.0.0/8" {
		t.Error("Sanitize should copy the allow list")
	}
}

func TestSanitize_Empty(t *testing.T) {
	if got := Sanitize(Default()).Security.AdminKeyHash; got != "" {
		t.Errorf("empty hash should stay empty, got %q", got)
	}

	cfg := Default()
	cfg.Security.AdminKeyHash = "not-a-phc-string"
	if got := Sanitize(cfg).Security.AdminKeyHash; got != "***" {
		t.Errorf("malformed hash = %q, want ***", got)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a", "****"},
		{"abcd", "****"},
		{"abcde", "ab*de"},
		{"abcdef", "ab**ef"},
		{"1234567890", "12******90"},
	}

	for _, tt := range tests {
		if result := maskSecret(tt.input); result != tt.expected {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
