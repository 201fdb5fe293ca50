// Package command defines the command record interface and related types
package command

import (
	"context"
)

// Command is the record the registry tree stores, orders, and resolves.
// Implementations carry the business logic; the registry only cares about
// identity, routing configuration, and lifecycle flags.
//
// Most callers build commands with Builder rather than implementing this
// interface directly, but any implementation is accepted as long as the
// accessors are safe for concurrent use.
type Command interface {
	// Name returns the command's identity. It is unique across the entire
	// tree of the root it is registered under.
	Name() string

	// Aliases returns the strings the command answers to. Combined with the
	// effective prefix of the owning registry (or the command's own explicit
	// prefix) they form the command's signatures.
	Aliases() []string

	// Prefix returns the command's explicit prefix override, or "" to
	// inherit the owning registry's effective prefix.
	Prefix() string

	// Priority orders candidates that collide on one signature within a
	// single registry. Lower values take precedence. Default is 0.
	Priority() int

	// Overrideable reports whether a match on this command may be superseded
	// by a match found deeper in the tree. A non-overrideable command
	// pre-empts the entire subtree below its owner.
	Overrideable() bool

	// Essential reports whether the command is protected from being
	// disabled. Fixed at construction.
	Essential() bool

	// Enabled reports the command's own enabled flag. Whether the command is
	// effectively enabled also depends on the chain of registries above it.
	Enabled() bool

	// SetEnabled toggles the enabled flag. Disabling an essential command
	// fails with a state error and changes nothing.
	SetEnabled(enabled bool) error

	// Owner returns the registry the command is currently registered to, or
	// nil. The concrete type is always the registry package's node type.
	Owner() Owner

	// SetOwner records the owning registry. It is called only by the
	// registry performing (un)registration; callers must never set it.
	SetOwner(o Owner)

	// SubCommands returns the command's sub-commands, if any. Sub-commands
	// are matched against the argument following this command's signature
	// and are not eligible for direct registration into a registry.
	SubCommands() []Command

	// SubCommand reports whether this record is itself a sub-command of
	// another command. Registries reject such records for direct
	// registration. Builder marks attached sub-commands automatically.
	SubCommand() bool

	// Description returns a short human-readable summary for listings.
	Description() string

	// Usage returns the invocation syntax for help output, or "".
	Usage() string

	// Execute runs the command's business logic for one invocation.
	Execute(ctx context.Context, inv *Invocation) error
}

// Owner is the registry node a command is registered to. The indirection
// keeps this package free of a dependency on the registry package; the
// concrete type is always *registry.Node.
type Owner interface {
	// Name returns the owning registry's name.
	Name() string

	// Path returns the owning registry's path from its root.
	Path() string
}

// SuccessHandler is implemented by commands that want a callback after a
// successful execution. The dispatch layer invokes it outside any registry
// lock.
type SuccessHandler interface {
	OnSuccess(ctx context.Context, inv *Invocation)
}

// FailureHandler is implemented by commands that want a callback when an
// invocation was matched but not executed, or execution failed.
type FailureHandler interface {
	OnFailure(ctx context.Context, inv *Invocation, reason FailureReason)
}

// FailureReason tells a FailureHandler why a matched invocation did not
// complete.
type FailureReason int

const (
	// FailureDisabled means the command or a registry above it was disabled.
	FailureDisabled FailureReason = iota
	// FailureContextDenied means a context check on the owner chain rejected
	// the invocation.
	FailureContextDenied
	// FailureHandlerError means Execute returned an error.
	FailureHandlerError
	// FailurePanic means Execute panicked and the dispatcher recovered it.
	FailurePanic
)

// String returns the string representation of a FailureReason
func (r FailureReason) String() string {
	switch r {
	case FailureDisabled:
		return "disabled"
	case FailureContextDenied:
		return "context_denied"
	case FailureHandlerError:
		return "handler_error"
	case FailurePanic:
		return "panic"
	default:
		return "unknown"
	}
}

// SubCommandByAlias finds the sub-command of c answering to alias, or nil.
// Sub-command aliases are matched verbatim; prefixes apply only to
// registry-level signatures.
func SubCommandByAlias(c Command, alias string) Command {
	if c == nil {
		return nil
	}
	for _, sub := range c.SubCommands() {
		for _, a := range sub.Aliases() {
			if a == alias {
				return sub
			}
		}
	}
	return nil
}
