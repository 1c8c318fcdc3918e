package main

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/pairmesh-go/internal/infra/shutdown"
	"github.com/yndnr/pairmesh-go/internal/infra/tlsroots"
	"github.com/yndnr/pairmesh-go/internal/server/config"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

func TestCheckConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	content := "pairing:\n  ephemeral_ttl: 2m\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run([]string{"pairmesh-server", "--config", path, "--blob-dir", filepath.Join(dir, "blobs"), "check-config"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "configuration OK")
}

func TestCheckConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0600))

	app := newApp()
	app.Writer = io.Discard
	err := app.Run([]string{"pairmesh-server", "--config", path, "--blob-dir", filepath.Join(dir, "blobs"), "check-config"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestLoadConfig_Layers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	content := "server:\n  http:\n    addr: 127.0.0.1:6000\nrate_limit:\n  pairing:\n    limit: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("PAIRMESH_PAIRING__SESSION_TTL", "90m")

	cfg, loader, err := loadConfig(path, map[string]any{
		"server.http.addr": "127.0.0.1:7000",
		"storage.blob_dir": filepath.Join(dir, "blobs"),
	})
	require.NoError(t, err)
	assert.Equal(t, path, loader.FilePath())
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.HTTP.Addr, "flags override file")
	assert.Equal(t, 3, cfg.RateLimit.Pairing.Limit)
	assert.Equal(t, 90*time.Minute, cfg.Pairing.SessionTTL)
	assert.Equal(t, config.DefaultUploadsLimit, cfg.RateLimit.Uploads.Limit)
}

func TestServer_Lifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.BlobDir = t.TempDir()
	reg := metric.NewRegistry()

	srv, err := newServer(cfg, logger.Nop(), reg)
	require.NoError(t, err)
	require.NotNil(t, srv.buckets, "global request ceiling is on by default")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- srv.serve(ln) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Post(base+"/v1/pairing/ephemeral", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, srv.authority.Stats().Ephemeral)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(body), `pairmesh_tokens_live{kind="ephemeral"} 1`), "collector gauge missing")
	assert.Contains(t, string(body), `pairmesh_ratelimit_windows{route="pairing"} 1`)

	sh := shutdown.NewHandler(5*time.Second, logger.Nop())
	srv.registerShutdown(sh)
	require.NoError(t, sh.Shutdown())

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after shutdown")
	}
	assert.Equal(t, 0, srv.authority.Stats().Ephemeral, "tokens are dropped on shutdown")
}

func writeSelfSigned(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(7),
		Subject:               pkix.Name{CommonName: "pairmesh-test"},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile = filepath.Join(dir, "server.crt")
	keyFile = filepath.Join(dir, "server.key")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0644))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600))
	return certFile, keyFile
}

func TestServer_TLS(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.BlobDir = filepath.Join(dir, "blobs")
	cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile = writeSelfSigned(t, dir)

	srv, err := newServer(cfg, logger.Nop(), metric.NewRegistry())
	require.NoError(t, err)
	require.NotNil(t, srv.certs)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.serve(ln)

	clientTLS, err := tlsroots.LoadClientConfig(cfg.Server.HTTP.TLSCertFile)
	require.NoError(t, err)
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: clientTLS}}

	resp, err := client.Get("https://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pairmesh-test", resp.TLS.PeerCertificates[0].Subject.CommonName)
	assert.GreaterOrEqual(t, resp.TLS.Version, uint16(tls.VersionTLS12))

	sh := shutdown.NewHandler(5*time.Second, logger.Nop())
	srv.registerShutdown(sh)
	require.NoError(t, sh.Shutdown())
}
