package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"license-service/pkg/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func writeKeyPair(t *testing.T, dir, cn string) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath := filepath.Join(dir, "tls.crt")
	keyPath := filepath.Join(dir, "tls.key")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certPath, keyPath
}

func TestNewServerPlain(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Addr = "3000"

	srv, err := newServer(cfg, http.NotFoundHandler())
	require.NoError(t, err)
	require.Equal(t, ":3000", srv.server.Addr)
	require.Nil(t, srv.server.TLSConfig)
}

func TestNewServerTLSReload(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeKeyPair(t, dir, "first")

	cfg := &config.Config{}
	cfg.Server.Addr = "3443"
	cfg.TLS.Enable = true
	cfg.TLS.CertPath = certPath
	cfg.TLS.KeyPath = keyPath

	srv, err := newServer(cfg, http.NotFoundHandler())
	require.NoError(t, err)
	require.NotNil(t, srv.server.TLSConfig)

	first, err := srv.getCertificate(nil)
	require.NoError(t, err)

	writeKeyPair(t, dir, "second")
	require.NoError(t, srv.reloadCert())

	second, err := srv.getCertificate(nil)
	require.NoError(t, err)
	require.NotEqual(t, first.Certificate[0], second.Certificate[0])

	require.NoError(t, os.WriteFile(certPath, []byte("garbage"), 0o600))
	require.Error(t, srv.reloadCert())

	kept, err := srv.getCertificate(nil)
	require.NoError(t, err)
	require.Equal(t, second.Certificate[0], kept.Certificate[0])
}

func TestNewServerTLSMissingFiles(t *testing.T) {
	cfg := &config.Config{}
	cfg.TLS.Enable = true
	cfg.TLS.CertPath = filepath.Join(t.TempDir(), "missing.crt")
	cfg.TLS.KeyPath = filepath.Join(t.TempDir(), "missing.key")

	_, err := newServer(cfg, http.NotFoundHandler())
	require.Error(t, err)
}
