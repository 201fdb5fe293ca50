// Package errors provides standardized error handling patterns for cmdtree components.
//
// # Overview
//
// The errors package implements a five-class error classification system for a
// command-routing framework: Transient (temporary, retryable), Invalid (bad
// input, non-retryable), State (rejected by entity state), Conflict
// (registration collisions), and Fatal (unrecoverable, stop processing).
//
// The registry core only ever produces Invalid, State, and Conflict errors:
// every core operation is synchronous, in-memory work, so nothing in it is
// transient and nothing in it warrants a retry. Transient and Fatal exist for
// the layers around the core, such as the NATS client and the invocation
// sources, where real I/O happens.
//
// Resolution misses are deliberately NOT errors. A signature that matches no
// command is an ordinary, common outcome reported through a boolean result,
// because error allocation on the hot lookup path would be waste.
//
// # Error Classification
//
// Errors are classified based on their type or content:
//
//   - Transient: network timeouts, connection loss, temporary unavailability (retry recommended)
//   - Invalid: malformed names, nil references, bad configuration (do not retry)
//   - State: disabling an essential command or registry (do not retry, nothing changed)
//   - Conflict: duplicate command names, direct sub-command registration (nothing changed)
//   - Fatal: unrecoverable states (stop processing)
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Return standard error variables for known conditions:
//
//	if strings.ContainsRune(name, registry.PathSeparator) {
//	    return errors.ErrSeparatorInName
//	}
//
// Wrap errors with component context:
//
//	if err := node.Register(cmd); err != nil {
//	    return errors.Wrap(err, "Loader", "Install", "register built-in command")
//	}
//
// Check classification at the boundary:
//
//	if err := root.Register(cmd); err != nil {
//	    switch {
//	    case errors.IsConflict(err):
//	        // another module owns this name; report and continue
//	    case errors.IsInvalid(err):
//	        // caller bug; fail loudly
//	    }
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// This format enables consistent log parsing and debugging across the
// framework. Five wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // For retryable errors
//	errors.WrapInvalid(err, "Component", "Method", "action")    // For validation errors
//	errors.WrapState(err, "Component", "Method", "action")      // For state rejections
//	errors.WrapConflict(err, "Component", "Method", "action")   // For registration conflicts
//	errors.WrapFatal(err, "Component", "Method", "action")      // For unrecoverable errors
//
// The generic Wrap() function applies the format without attaching a class:
//
//	errors.Wrap(err, "Component", "Method", "action")
//
// # Standard Error Variables
//
// The package provides pre-defined error variables for common conditions,
// organized by category:
//
//   - Registration: ErrDuplicateName, ErrSubCommand, ErrNotRegistered, ErrSelfRegistry
//   - Validation: ErrEmptyName, ErrSeparatorInName, ErrNilCommand, ErrNilRegistry
//   - Lifecycle: ErrEssential, ErrAlreadyStarted, ErrNotStarted, ErrShuttingDown
//   - Transport: ErrNotConnected, ErrConnectionLost, ErrCircuitOpen, ErrSubscriptionFailed
//   - Configuration: ErrInvalidConfig, ErrMissingConfig
//
// Use these variables instead of creating custom error messages:
//
//	// Good - uses standard variable
//	if cmd == nil {
//	    return errors.ErrNilCommand
//	}
//
//	// Avoid - custom error message
//	if cmd == nil {
//	    return errors.New("command is nil")
//	}
//
// # Retry Integration
//
// RetryConfig bridges classification into the retry package used by the
// transport sources:
//
//	cfg := errors.DefaultRetryConfig()
//	err := retry.Do(ctx, cfg.ToRetryConfig(), func() error {
//	    return client.Subscribe(subject, handler)
//	})
//
// ShouldRetry consults IsTransient, so Invalid, State, and Conflict errors
// are never retried no matter how the retry policy is tuned.
package errors
