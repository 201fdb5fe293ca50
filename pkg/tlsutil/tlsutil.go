// Package tlsutil builds tls.Config values for the gateway's listening
// surfaces from the platform security configuration.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/cmdtree/errors"
	"github.com/c360/cmdtree/pkg/security"
)

// LoadServerTLSConfig builds the TLS config for a listening socket.
// Returns (nil, nil) when TLS is disabled so callers can pass the result
// straight to http.Server.
func LoadServerTLSConfig(cfg security.ServerTLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadServerTLSConfig", "load certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minTLSVersion(cfg.MinVersion),
	}, nil
}

// LoadServerTLSConfigWithMTLS builds the TLS config for a listening socket
// that also validates client certificates. The WebSocket invocation source
// uses this so only known gateway peers can submit commands.
func LoadServerTLSConfigWithMTLS(cfg security.ServerTLSConfig, mtlsCfg security.ServerMTLSConfig) (*tls.Config, error) {
	tlsConfig, err := LoadServerTLSConfig(cfg)
	if err != nil || !mtlsCfg.Enabled {
		return tlsConfig, err
	}

	clientCAs, err := loadCertPool(mtlsCfg.ClientCAFiles)
	if err != nil {
		return nil, err
	}
	tlsConfig.ClientCAs = clientCAs

	if mtlsCfg.RequireClientCert {
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	} else {
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	}

	if len(mtlsCfg.AllowedClientCNs) > 0 {
		allowed := mtlsCfg.AllowedClientCNs
		tlsConfig.VerifyPeerCertificate = func(_ [][]byte, verifiedChains [][]*x509.Certificate) error {
			return checkClientCN(verifiedChains, allowed)
		}
	}

	return tlsConfig, nil
}

// loadCertPool reads PEM files into a fresh pool.
func loadCertPool(caFiles []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, caFile := range caFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "loadCertPool",
				fmt.Sprintf("read client CA file %s", caFile))
		}
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(
				fmt.Errorf("invalid PEM data"),
				"tlsutil", "loadCertPool",
				fmt.Sprintf("parse client CA certificate from %s", caFile))
		}
	}
	return pool, nil
}

// checkClientCN runs after chain verification, so chains[0][0] is the
// already-validated leaf.
func checkClientCN(chains [][]*x509.Certificate, allowedCNs []string) error {
	if len(chains) == 0 {
		return fmt.Errorf("no verified certificate chains")
	}

	cn := chains[0][0].Subject.CommonName
	for _, allowed := range allowedCNs {
		if cn == allowed {
			return nil
		}
	}
	return fmt.Errorf("client certificate CN '%s' not in allowed list", cn)
}

// minTLSVersion maps the config string to a crypto/tls constant,
// defaulting to 1.2 for anything unrecognized.
func minTLSVersion(version string) uint16 {
	if version == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
