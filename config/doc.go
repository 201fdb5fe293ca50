// Package config provides configuration management for the cmdtree daemon.
//
// This package handles loading, validation, and thread-safe access to daemon
// configuration from JSON or YAML files and environment variables.
//
// # Core Components
//
// Config: Main configuration structure containing service identity, logging,
// security, NATS connection details, invocation source settings, dispatch
// pipeline tuning, and the metrics endpoint.
//
// SafeConfig: Thread-safe wrapper using RWMutex and deep cloning to prevent
// concurrent access issues and accidental mutations.
//
// Loader: Loads configuration with layer merging (base + overrides),
// environment variable substitution, and optional schema validation for
// flexible deployment scenarios.
//
// # Basic Usage
//
// Loading configuration from files with layer merging:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.json")
//	loader.AddLayer("config/production.yaml") // Overrides base
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Thread-Safe Access
//
// SafeConfig ensures thread-safe access to configuration:
//
//	safeConfig := config.NewSafeConfig(cfg)
//
//	// Read config (deep copy returned, safe to use)
//	cfg := safeConfig.Get()
//
//	// Replace config atomically (validated first)
//	err := safeConfig.Update(newCfg)
//
// # Environment Variable Overrides
//
// Configuration values can be overridden using environment variables:
//
//	# Override the service name
//	export CMDTREE_SERVICE_NAME="cmdtree-west"
//
//	# Override NATS URLs (comma-separated)
//	export CMDTREE_NATS_URLS="nats://server1:4222,nats://server2:4222"
//
//	# Override log level and metrics port
//	export CMDTREE_LOG_LEVEL="debug"
//	export CMDTREE_METRICS_PORT="9091"
//
// # Layer Merging
//
// Configuration layers are merged with last-wins semantics:
//
//	base.json:
//	  {"logging": {"level": "debug", "format": "json"}}
//
//	production.json:
//	  {"logging": {"level": "warn"}}
//
//	Result:
//	  {"logging": {"level": "warn", "format": "json"}}
//
// # Duration Fields
//
// Duration fields accept Go duration strings in config files. The loader
// converts them before unmarshaling:
//
//	{"dispatcher": {"exec_timeout": "30s"}}
//	{"nats": {"reconnect_wait": "2s"}}
//
// # Schema Validation
//
// With EnableValidation(true), each layer is checked against a JSON Schema
// before merging. Unknown sections and type mismatches fail the load rather
// than being silently dropped, and the merged result is validated for
// semantic consistency (required fields, port ranges, TLS file existence).
//
// # Security
//
// The package includes security validation:
//   - File size limits (10MB max) to prevent memory exhaustion
//   - JSON depth validation (100 levels max) to prevent DoS attacks
//   - Path validation to prevent directory traversal
//   - Regular file checks (no symlinks or device files)
package config
