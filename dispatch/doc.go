// Package dispatch connects transport sources to the command registry
// tree. It takes raw chat messages, tokenizes them, resolves the first
// token against the root of the sending client, applies the enablement
// and context gates, descends into sub-commands argument by argument, and
// executes the winning command on a bounded worker pool.
//
// The pipeline is deliberately asymmetric about failures. A message that
// resolves to nothing, or that a gate turns away, is a handled outcome:
// the dispatcher records it, notifies the command's failure hook when one
// exists, and moves on. Only a handler error or a recovered panic marks
// the invocation as failed. Panics never escape a worker, whether they
// come from Execute or from a success/failure hook.
//
// Submission is non-blocking. A full queue drops the invocation with an
// error to the source, and an optional per-client token-bucket limiter
// (golang.org/x/time/rate) throttles noisy clients before they reach the
// queue at all. Every outcome is counted in the dispatch metrics and
// logged at Debug, failures at Error.
//
// Dispatcher embeds service.BaseService, so the daemon manages it like
// any other service: Start creates a fresh pool, Stop drains it within
// the timeout, and the periodic health check reports unhealthy while the
// pool is down.
package dispatch
