// Package retry provides bounded exponential backoff for transient failures.
//
// The transport layer uses it to bring up NATS subscriptions and connections
// at startup. The registry core never retries: its failures are synchronous
// logic outcomes, so retry lives entirely at the I/O boundary.
//
// Two policies cover the callers:
//
//   - DefaultConfig: 3 attempts, 100ms-5s backoff, for one-off operations
//   - Quick: 10 attempts, 50ms-1s backoff, for source startup
//
// Source startup:
//
//	err := retry.Do(ctx, retry.Quick(), func() error {
//	    return source.subscribe()
//	})
//
// An error wrapped by NonRetryable stops Do immediately, for failures such
// as bad credentials where waiting cannot help:
//
//	err := retry.Do(ctx, cfg, func() error {
//	    if badCredentials {
//	        return retry.NonRetryable(errAuth)
//	    }
//	    return dial()
//	})
//
// Do respects context cancellation both between attempts and during the
// backoff sleep. There are no circuit breakers, metrics, or error
// classification here; the NATS client carries its own breaker and the
// errors package decides what counts as transient.
package retry
