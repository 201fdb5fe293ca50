package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cmdtree/pkg/security"
)

// testCA is a throwaway certificate authority for test handshakes.
type testCA struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
	pem  []byte
}

func newTestCA(t *testing.T) *testCA {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &testCA{
		cert: cert,
		key:  key,
		pem:  pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}
}

// issue signs a leaf certificate for cn and returns PEM-encoded cert and key.
func (ca *testCA) issue(t *testing.T, cn string) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		DNSNames:     []string{"localhost", cn},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, &key.PublicKey, ca.key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

// writeCertFiles lays out server cert, key, and CA bundle under a temp dir.
func writeCertFiles(t *testing.T, ca *testCA, cn string) (certFile, keyFile, caFile string) {
	t.Helper()

	certPEM, keyPEM := ca.issue(t, cn)
	dir := t.TempDir()

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	caFile = filepath.Join(dir, "ca.pem")

	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))
	require.NoError(t, os.WriteFile(caFile, ca.pem, 0o644))
	return certFile, keyFile, caFile
}

func TestLoadServerTLSConfig(t *testing.T) {
	ca := newTestCA(t)
	certFile, keyFile, _ := writeCertFiles(t, ca, "gateway")

	tests := []struct {
		name    string
		cfg     security.ServerTLSConfig
		wantNil bool
		wantErr bool
		wantVer uint16
	}{
		{
			name:    "disabled yields nil config",
			cfg:     security.ServerTLSConfig{Enabled: false},
			wantNil: true,
		},
		{
			name: "enabled with valid pair",
			cfg: security.ServerTLSConfig{
				Enabled:    true,
				CertFile:   certFile,
				KeyFile:    keyFile,
				MinVersion: "1.3",
			},
			wantVer: tls.VersionTLS13,
		},
		{
			name: "default min version is 1.2",
			cfg: security.ServerTLSConfig{
				Enabled:  true,
				CertFile: certFile,
				KeyFile:  keyFile,
			},
			wantVer: tls.VersionTLS12,
		},
		{
			name: "missing cert file",
			cfg: security.ServerTLSConfig{
				Enabled:  true,
				CertFile: "/nonexistent/cert.pem",
				KeyFile:  keyFile,
			},
			wantErr: true,
		},
		{
			name: "missing key file",
			cfg: security.ServerTLSConfig{
				Enabled:  true,
				CertFile: certFile,
				KeyFile:  "/nonexistent/key.pem",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadServerTLSConfig(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Len(t, got.Certificates, 1)
			assert.Equal(t, tt.wantVer, got.MinVersion)
		})
	}
}

func TestLoadServerTLSConfigWithMTLS(t *testing.T) {
	ca := newTestCA(t)
	certFile, keyFile, caFile := writeCertFiles(t, ca, "gateway")

	serverCfg := security.ServerTLSConfig{
		Enabled:  true,
		CertFile: certFile,
		KeyFile:  keyFile,
	}

	t.Run("disabled leaves client auth off", func(t *testing.T) {
		got, err := LoadServerTLSConfigWithMTLS(serverCfg, security.ServerMTLSConfig{})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, tls.NoClientCert, got.ClientAuth)
		assert.Nil(t, got.ClientCAs)
	})

	t.Run("required client cert", func(t *testing.T) {
		got, err := LoadServerTLSConfigWithMTLS(serverCfg, security.ServerMTLSConfig{
			Enabled:           true,
			ClientCAFiles:     []string{caFile},
			RequireClientCert: true,
		})
		require.NoError(t, err)
		assert.Equal(t, tls.RequireAndVerifyClientCert, got.ClientAuth)
		assert.NotNil(t, got.ClientCAs)
	})

	t.Run("optional client cert", func(t *testing.T) {
		got, err := LoadServerTLSConfigWithMTLS(serverCfg, security.ServerMTLSConfig{
			Enabled:       true,
			ClientCAFiles: []string{caFile},
		})
		require.NoError(t, err)
		assert.Equal(t, tls.VerifyClientCertIfGiven, got.ClientAuth)
	})

	t.Run("CN allowlist installs verifier", func(t *testing.T) {
		got, err := LoadServerTLSConfigWithMTLS(serverCfg, security.ServerMTLSConfig{
			Enabled:          true,
			ClientCAFiles:    []string{caFile},
			AllowedClientCNs: []string{"ops-console"},
		})
		require.NoError(t, err)
		assert.NotNil(t, got.VerifyPeerCertificate)
	})

	t.Run("missing client CA file", func(t *testing.T) {
		_, err := LoadServerTLSConfigWithMTLS(serverCfg, security.ServerMTLSConfig{
			Enabled:       true,
			ClientCAFiles: []string{"/nonexistent/ca.pem"},
		})
		require.Error(t, err)
	})

	t.Run("garbage client CA file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.pem")
		require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o644))

		_, err := LoadServerTLSConfigWithMTLS(serverCfg, security.ServerMTLSConfig{
			Enabled:       true,
			ClientCAFiles: []string{bad},
		})
		require.Error(t, err)
	})

	t.Run("base TLS error surfaces", func(t *testing.T) {
		_, err := LoadServerTLSConfigWithMTLS(security.ServerTLSConfig{
			Enabled:  true,
			CertFile: "/nonexistent/cert.pem",
			KeyFile:  keyFile,
		}, security.ServerMTLSConfig{Enabled: true, ClientCAFiles: []string{caFile}})
		require.Error(t, err)
	})
}

func TestCheckClientCN(t *testing.T) {
	ca := newTestCA(t)

	parseLeaf := func(cn string) *x509.Certificate {
		certPEM, _ := ca.issue(t, cn)
		block, _ := pem.Decode(certPEM)
		require.NotNil(t, block)
		cert, err := x509.ParseCertificate(block.Bytes)
		require.NoError(t, err)
		return cert
	}

	allowed := []string{"ops-console", "chat-bridge"}

	err := checkClientCN([][]*x509.Certificate{{parseLeaf("chat-bridge")}}, allowed)
	assert.NoError(t, err)

	err = checkClientCN([][]*x509.Certificate{{parseLeaf("intruder")}}, allowed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in allowed list")

	err = checkClientCN(nil, allowed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no verified certificate chains")
}

func TestMinTLSVersion(t *testing.T) {
	assert.Equal(t, uint16(tls.VersionTLS13), minTLSVersion("1.3"))
	assert.Equal(t, uint16(tls.VersionTLS12), minTLSVersion("1.2"))
	assert.Equal(t, uint16(tls.VersionTLS12), minTLSVersion(""))
	assert.Equal(t, uint16(tls.VersionTLS12), minTLSVersion("1.1"))
	assert.Equal(t, uint16(tls.VersionTLS12), minTLSVersion("bogus"))
}
