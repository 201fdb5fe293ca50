package natsclient

import "time"

// Additional helper options for specific use cases

// WithFastStartup configures the test server for fastest possible startup
// (good for unit-style integration tests)
func WithFastStartup() TestOption {
	return func(cfg *testConfig) {
		cfg.timeout = 2 * time.Second
		cfg.startTimeout = 10 * time.Second
	}
}

// WithIntegrationDefaults configures the test server with settings good for
// integration tests
func WithIntegrationDefaults() TestOption {
	return func(cfg *testConfig) {
		cfg.timeout = 5 * time.Second
		cfg.startTimeout = 30 * time.Second
	}
}

// WithE2EDefaults configures the test server with settings good for
// end-to-end tests spanning sources, dispatcher, and replies
func WithE2EDefaults() TestOption {
	return func(cfg *testConfig) {
		cfg.timeout = 10 * time.Second
		cfg.startTimeout = 60 * time.Second
	}
}
