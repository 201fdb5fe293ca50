package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cmdtree/pkg/security"
)

// startMTLSServer runs a TLS httptest server using a config produced by
// LoadServerTLSConfigWithMTLS, so the handshake tests exercise the real
// config path rather than a hand-built tls.Config.
func startMTLSServer(t *testing.T, mtlsCfg security.ServerMTLSConfig, ca *testCA) *httptest.Server {
	t.Helper()

	certFile, keyFile, caFile := writeCertFiles(t, ca, "localhost")
	if mtlsCfg.Enabled && len(mtlsCfg.ClientCAFiles) == 0 {
		mtlsCfg.ClientCAFiles = []string{caFile}
	}

	tlsCfg, err := LoadServerTLSConfigWithMTLS(security.ServerTLSConfig{
		Enabled:  true,
		CertFile: certFile,
		KeyFile:  keyFile,
	}, mtlsCfg)
	require.NoError(t, err)
	require.NotNil(t, tlsCfg)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	srv.TLS = tlsCfg
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

// dial performs one request against srv with the given client identity.
// certPEM/keyPEM nil means the client presents no certificate.
func dial(t *testing.T, srv *httptest.Server, ca *testCA, certPEM, keyPEM []byte) (string, error) {
	t.Helper()

	roots := x509.NewCertPool()
	require.True(t, roots.AppendCertsFromPEM(ca.pem))

	clientTLS := &tls.Config{RootCAs: roots, MinVersion: tls.VersionTLS12}
	if certPEM != nil {
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		require.NoError(t, err)
		clientTLS.Certificates = []tls.Certificate{cert}
	}

	client := &http.Client{Transport: &http.Transport{TLSClientConfig: clientTLS}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body), nil
}

func TestMTLSHandshake_TrustedClientAccepted(t *testing.T) {
	ca := newTestCA(t)
	srv := startMTLSServer(t, security.ServerMTLSConfig{
		Enabled:           true,
		RequireClientCert: true,
	}, ca)

	certPEM, keyPEM := ca.issue(t, "chat-bridge")
	body, err := dial(t, srv, ca, certPEM, keyPEM)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
}

func TestMTLSHandshake_NoCertRejected(t *testing.T) {
	ca := newTestCA(t)
	srv := startMTLSServer(t, security.ServerMTLSConfig{
		Enabled:           true,
		RequireClientCert: true,
	}, ca)

	_, err := dial(t, srv, ca, nil, nil)
	require.Error(t, err, "handshake must fail without a client certificate")
}

func TestMTLSHandshake_UntrustedCARejected(t *testing.T) {
	ca := newTestCA(t)
	srv := startMTLSServer(t, security.ServerMTLSConfig{
		Enabled:           true,
		RequireClientCert: true,
	}, ca)

	rogue := newTestCA(t)
	certPEM, keyPEM := rogue.issue(t, "chat-bridge")
	_, err := dial(t, srv, ca, certPEM, keyPEM)
	require.Error(t, err, "certificate from an unknown CA must be rejected")
}

func TestMTLSHandshake_CNAllowlist(t *testing.T) {
	ca := newTestCA(t)
	srv := startMTLSServer(t, security.ServerMTLSConfig{
		Enabled:           true,
		RequireClientCert: true,
		AllowedClientCNs:  []string{"ops-console"},
	}, ca)

	certPEM, keyPEM := ca.issue(t, "ops-console")
	body, err := dial(t, srv, ca, certPEM, keyPEM)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)

	certPEM, keyPEM = ca.issue(t, "chat-bridge")
	_, err = dial(t, srv, ca, certPEM, keyPEM)
	require.Error(t, err, "CN outside the allowlist must be rejected")
}

func TestMTLSHandshake_OptionalCert(t *testing.T) {
	ca := newTestCA(t)
	srv := startMTLSServer(t, security.ServerMTLSConfig{
		Enabled: true,
	}, ca)

	// Without a certificate the handshake still succeeds.
	body, err := dial(t, srv, ca, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)

	// A presented certificate is still verified.
	rogue := newTestCA(t)
	certPEM, keyPEM := rogue.issue(t, "chat-bridge")
	_, err = dial(t, srv, ca, certPEM, keyPEM)
	require.Error(t, err)
}
