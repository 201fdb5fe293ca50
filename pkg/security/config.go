// Package security holds the TLS settings shared by every listening surface.
package security

// Config is the security section of the gateway configuration. Both the
// WebSocket invocation source and the metrics endpoint read it.
type Config struct {
	TLS TLSConfig `json:"tls,omitempty"`
}

// TLSConfig groups per-surface TLS settings.
type TLSConfig struct {
	Server ServerTLSConfig `json:"server,omitempty"`
}

// ServerTLSConfig configures TLS for a listening socket.
type ServerTLSConfig struct {
	Enabled    bool   `json:"enabled"`
	CertFile   string `json:"cert_file,omitempty"`
	KeyFile    string `json:"key_file,omitempty"`
	MinVersion string `json:"min_version,omitempty"` // "1.2" or "1.3", defaults to 1.2

	MTLS ServerMTLSConfig `json:"mtls,omitempty"`
}

// ServerMTLSConfig configures client-certificate validation. Only the
// WebSocket source uses it; the metrics endpoint stays server-auth only.
type ServerMTLSConfig struct {
	Enabled           bool     `json:"enabled"`
	ClientCAFiles     []string `json:"client_ca_files,omitempty"`
	RequireClientCert bool     `json:"require_client_cert,omitempty"` // false = verify if presented
	AllowedClientCNs  []string `json:"allowed_client_cns,omitempty"`  // empty = any CN the CAs vouch for
}
