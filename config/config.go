package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/c360/cmdtree/pkg/security"
)

// Config represents the complete daemon configuration: service identity,
// logging, security, the NATS connection, invocation sources, the dispatch
// pipeline, and the metrics endpoint.
type Config struct {
	Service    ServiceConfig    `json:"service"`
	Logging    LoggingConfig    `json:"logging"`
	Security   security.Config  `json:"security,omitempty"`
	NATS       NATSConfig       `json:"nats"`
	Sources    SourcesConfig    `json:"sources"`
	Dispatcher DispatcherConfig `json:"dispatcher"`
	Metrics    MetricsConfig    `json:"metrics"`
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{
		config: cfg,
	}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically updates the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	// Validate before updating
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	// Use JSON marshaling/unmarshaling for deep copy
	data, err := json.Marshal(c)
	if err != nil {
		// Fallback to shallow copy if marshaling fails
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		// Fallback to shallow copy if unmarshaling fails
		copied := *c
		return &copied
	}

	return &clone
}

// ServiceConfig defines service identity
type ServiceConfig struct {
	Name        string `json:"name"`                  // Service identifier used in subjects and logs (e.g., "cmdtree")
	InstanceID  string `json:"instance_id,omitempty"` // e.g., "west-1", "dev-local"
	Environment string `json:"environment,omitempty"` // "prod", "dev", "test"
}

// LoggingConfig controls the daemon's slog handler
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`  // "debug", "info", "warn", "error"
	Format string `json:"format,omitempty"` // "json" or "text"
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	TLS           NATSTLSConfig `json:"tls,omitempty"`
}

// NATSTLSConfig for secure NATS connections
type NATSTLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
	CAFile   string `json:"ca_file,omitempty"`
}

// SourcesConfig groups the invocation source settings
type SourcesConfig struct {
	NATS      NATSSourceConfig      `json:"nats"`
	WebSocket WebSocketSourceConfig `json:"websocket"`
}

// NATSSourceConfig configures the NATS invocation source
type NATSSourceConfig struct {
	Enabled bool   `json:"enabled"`
	Subject string `json:"subject,omitempty"` // Inbound chat message subject
	Queue   string `json:"queue,omitempty"`   // Queue group for horizontal scaling
}

// WebSocketSourceConfig configures the WebSocket invocation source
type WebSocketSourceConfig struct {
	Enabled      bool                `json:"enabled"`
	Address      string              `json:"address,omitempty"` // Listen address, e.g. ":8081"
	Path         string              `json:"path,omitempty"`    // Endpoint path, e.g. "/ws"
	ReadLimit    int64               `json:"read_limit,omitempty"`
	PingInterval time.Duration       `json:"ping_interval,omitempty"`
	PongWait     time.Duration       `json:"pong_wait,omitempty"`
	WriteWait    time.Duration       `json:"write_wait,omitempty"`
	Auth         WebSocketAuthConfig `json:"auth,omitempty"`
}

// WebSocketAuthConfig gates WebSocket upgrades. Credentials come from
// environment variables so config files never carry secrets.
type WebSocketAuthConfig struct {
	Type             string `json:"type,omitempty"` // "none", "bearer", or "basic"
	BearerTokenEnv   string `json:"bearer_token_env,omitempty"`
	BasicUsernameEnv string `json:"basic_username_env,omitempty"`
	BasicPasswordEnv string `json:"basic_password_env,omitempty"`
}

// DispatcherConfig configures the dispatch pipeline
type DispatcherConfig struct {
	Workers     int             `json:"workers,omitempty"`      // Worker goroutines executing commands
	QueueSize   int             `json:"queue_size,omitempty"`   // Bounded invocation queue
	ExecTimeout time.Duration   `json:"exec_timeout,omitempty"` // Per-invocation execution timeout
	RateLimit   RateLimitConfig `json:"rate_limit,omitempty"`
}

// RateLimitConfig throttles invocations per client key
type RateLimitConfig struct {
	Enabled bool    `json:"enabled"`
	Rate    float64 `json:"rate,omitempty"`  // Sustained invocations per second per client
	Burst   int     `json:"burst,omitempty"` // Burst allowance per client
}

// MetricsConfig configures the Prometheus exposition endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return errors.New("service.name is required")
	}

	// Normalize name to lowercase; it feeds NATS subjects and metric labels
	c.Service.Name = strings.ToLower(c.Service.Name)

	if !isValidNATSSubjectPart(c.Service.Name) {
		return fmt.Errorf(
			"service.name '%s' is not valid for NATS subjects (must be alphanumeric with dots, dashes, underscores)",
			c.Service.Name,
		)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}

	if err := c.validateSecurity(); err != nil {
		return fmt.Errorf("security configuration: %w", err)
	}

	if err := c.validateDispatcher(); err != nil {
		return fmt.Errorf("dispatcher configuration: %w", err)
	}

	if c.Sources.NATS.Enabled {
		if len(c.NATS.URLs) == 0 {
			return errors.New("nats.urls is required when the NATS source is enabled")
		}
		if c.Sources.NATS.Subject == "" {
			return errors.New("sources.nats.subject is required when the NATS source is enabled")
		}
	}

	if c.Sources.WebSocket.Enabled {
		if c.Sources.WebSocket.Address == "" {
			return errors.New("sources.websocket.address is required when the WebSocket source is enabled")
		}
		if err := c.Sources.WebSocket.Auth.validate(); err != nil {
			return fmt.Errorf("sources.websocket.auth: %w", err)
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port %d out of range", c.Metrics.Port)
	}

	return nil
}

// validate checks the auth block names the env vars its type needs.
func (a WebSocketAuthConfig) validate() error {
	switch a.Type {
	case "", "none":
	case "bearer":
		if a.BearerTokenEnv == "" {
			return errors.New("bearer_token_env is required for bearer auth")
		}
	case "basic":
		if a.BasicUsernameEnv == "" || a.BasicPasswordEnv == "" {
			return errors.New("basic_username_env and basic_password_env are required for basic auth")
		}
	default:
		return fmt.Errorf("invalid type %q (must be none, bearer, or basic)", a.Type)
	}
	return nil
}

// validateLogging checks logging level and format values
func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid level %q (must be debug, info, warn, or error)", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid format %q (must be json or text)", c.Logging.Format)
	}

	return nil
}

// validateDispatcher checks dispatch pipeline bounds
func (c *Config) validateDispatcher() error {
	if c.Dispatcher.Workers < 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Dispatcher.Workers)
	}
	if c.Dispatcher.QueueSize < 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.Dispatcher.QueueSize)
	}
	if c.Dispatcher.RateLimit.Enabled {
		if c.Dispatcher.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate_limit.rate must be positive, got %v", c.Dispatcher.RateLimit.Rate)
		}
		if c.Dispatcher.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate_limit.burst must be positive, got %d", c.Dispatcher.RateLimit.Burst)
		}
	}
	return nil
}

// isValidNATSSubjectPart checks if a string is valid for use in NATS subjects.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidNATSSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// validateSecurity validates the security configuration
func (c *Config) validateSecurity() error {
	// Validate Server TLS
	if c.Security.TLS.Server.Enabled {
		if c.Security.TLS.Server.CertFile == "" {
			return errors.New("tls.server.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.Server.KeyFile == "" {
			return errors.New("tls.server.key_file is required when TLS is enabled")
		}

		// Check if cert file exists
		if _, err := os.Stat(c.Security.TLS.Server.CertFile); err != nil {
			return fmt.Errorf("tls.server.cert_file: %w", err)
		}

		// Check if key file exists
		if _, err := os.Stat(c.Security.TLS.Server.KeyFile); err != nil {
			return fmt.Errorf("tls.server.key_file: %w", err)
		}

		// Validate MinVersion if specified
		if c.Security.TLS.Server.MinVersion != "" {
			if err := validateTLSVersion(c.Security.TLS.Server.MinVersion); err != nil {
				return fmt.Errorf("tls.server.min_version: %w", err)
			}
		}
	}

	// Validate mTLS client-CA files
	if c.Security.TLS.Server.MTLS.Enabled {
		if len(c.Security.TLS.Server.MTLS.ClientCAFiles) == 0 {
			return errors.New("tls.server.mtls.client_ca_files is required when mTLS is enabled")
		}
		for i, caFile := range c.Security.TLS.Server.MTLS.ClientCAFiles {
			if _, err := os.Stat(caFile); err != nil {
				return fmt.Errorf("tls.server.mtls.client_ca_files[%d]: %w", i, err)
			}
		}
	}

	return nil
}

// validateTLSVersion checks if a TLS version string is valid
func validateTLSVersion(version string) error {
	switch version {
	case "1.2", "1.3":
		return nil
	default:
		return fmt.Errorf("invalid TLS version %q (must be \"1.2\" or \"1.3\")", version)
	}
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  "CMDTREE",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	cfg := l.getDefaults()

	// Load each layer and merge using map-based approach
	for _, path := range l.layers {
		rawConfig, err := l.loadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		if l.validation {
			if err := l.validateSchema(rawConfig); err != nil {
				return nil, fmt.Errorf("schema validation of %s: %w", path, err)
			}
		}
		cfg = l.mergeFromMap(cfg, rawConfig)
	}

	// Apply environment overrides
	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	// Validate if enabled
	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// getDefaults returns default configuration
func (l *Loader) getDefaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "cmdtree",
			Environment: "dev",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Sources: SourcesConfig{
			NATS: NATSSourceConfig{
				Enabled: true,
				Subject: "cmdtree.messages.>",
				Queue:   "cmdtree-dispatch",
			},
			WebSocket: WebSocketSourceConfig{
				Enabled:      false,
				Address:      ":8081",
				Path:         "/ws",
				ReadLimit:    64 << 10,
				PingInterval: 30 * time.Second,
				PongWait:     60 * time.Second,
				WriteWait:    10 * time.Second,
				Auth:         WebSocketAuthConfig{Type: "none"},
			},
		},
		Dispatcher: DispatcherConfig{
			Workers:     8,
			QueueSize:   256,
			ExecTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				Rate:    5,
				Burst:   10,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// loadRaw loads configuration from a JSON or YAML file as a map. The format
// is picked by extension; YAML documents use the same key names as JSON.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	// Use secure file reading with validation
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var rawConfig map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &rawConfig); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		// Validate JSON depth to prevent DoS
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &rawConfig); err != nil {
			return nil, err
		}
	}

	// Convert duration strings
	l.parseDurations(rawConfig)

	return rawConfig, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	// Marshal the base config to JSON then to map
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	// Deep merge the maps
	mergedMap := l.deepMergeMaps(baseMap, override)

	// Convert back to Config
	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	// Copy base values
	for k, v := range base {
		result[k] = v
	}

	// Override with values from override map
	for k, v := range override {
		if v == nil {
			continue
		}

		// If both base and override have maps at this key, merge them
		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		// Otherwise, override takes precedence
		result[k] = v
	}

	return result
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func (l *Loader) parseDurations(data map[string]any) {
	if nats, ok := data["nats"].(map[string]any); ok {
		parseDurationField(nats, "reconnect_wait")
	}

	if sources, ok := data["sources"].(map[string]any); ok {
		if ws, ok := sources["websocket"].(map[string]any); ok {
			parseDurationField(ws, "ping_interval")
			parseDurationField(ws, "pong_wait")
			parseDurationField(ws, "write_wait")
		}
	}

	if dispatcher, ok := data["dispatcher"].(map[string]any); ok {
		parseDurationField(dispatcher, "exec_timeout")
	}
}

// parseDurationField converts a single string duration value in place
func parseDurationField(section map[string]any, key string) {
	if raw, ok := section[key].(string); ok {
		if d, err := time.ParseDuration(raw); err == nil {
			section[key] = d.Nanoseconds()
		}
	}
}

// mergeConfigs merges configuration layers
// This is primarily used for testing - the main Load() uses mergeFromMap
func (l *Loader) mergeConfigs(base, override *Config) *Config {
	if override == nil {
		return base
	}

	// Convert both to maps and use the map-based merge
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	overrideJSON, err := json.Marshal(override)
	if err != nil {
		return base
	}
	var overrideMap map[string]any
	if err := json.Unmarshal(overrideJSON, &overrideMap); err != nil {
		return base
	}

	// Remove nil values from override map (these are zero values in Go structs)
	l.removeNilValues(overrideMap)

	// Merge and convert back
	mergedMap := l.deepMergeMaps(baseMap, overrideMap)
	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// removeNilValues recursively removes nil values from a map
func (l *Loader) removeNilValues(m map[string]any) {
	for k, v := range m {
		if v == nil {
			delete(m, k)
		} else if nested, ok := v.(map[string]any); ok {
			l.removeNilValues(nested)
		}
	}
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	overrides := []struct {
		key   string
		apply func(string)
	}{
		{"_SERVICE_NAME", func(v string) { cfg.Service.Name = v }},
		{"_SERVICE_INSTANCE_ID", func(v string) { cfg.Service.InstanceID = v }},
		{"_SERVICE_ENVIRONMENT", func(v string) { cfg.Service.Environment = v }},
		{"_LOG_LEVEL", func(v string) { cfg.Logging.Level = v }},
		{"_LOG_FORMAT", func(v string) { cfg.Logging.Format = v }},
		{"_NATS_URLS", func(v string) { cfg.NATS.URLs = strings.Split(v, ",") }},
		{"_NATS_USERNAME", func(v string) { cfg.NATS.Username = v }},
		{"_NATS_PASSWORD", func(v string) { cfg.NATS.Password = v }},
		{"_NATS_TOKEN", func(v string) { cfg.NATS.Token = v }},
	}

	for _, o := range overrides {
		key := l.envPrefix + o.key
		val := os.Getenv(key)
		if val == "" {
			continue
		}
		if err := validateEnvVar(key, val); err != nil {
			return err
		}
		o.apply(val)
	}

	if val := os.Getenv(l.envPrefix + "_METRICS_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s_METRICS_PORT %q: %w", l.envPrefix, val, err)
		}
		cfg.Metrics.Port = port
	}

	return nil
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// Use secure file writing with validation
	return safeWriteFile(path, data)
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
