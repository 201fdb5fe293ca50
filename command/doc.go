// Package command defines the command records the registry tree stores and
// the dispatch layer executes.
//
// # Overview
//
// A Command couples an identity (name, aliases, optional explicit prefix)
// with routing configuration (priority, overrideable) and lifecycle flags
// (essential, enabled). The registry orders and resolves these records; it
// never looks inside their business logic. The dispatch layer calls
// Execute with an Invocation once a record has been resolved and gated.
//
// # Building Commands
//
// Builder is the standard way to produce a Command:
//
//	ping := command.NewBuilder("ping").
//	    Aliases("ping", "p").
//	    Description("Replies with pong.").
//	    Handler(func(ctx context.Context, inv *command.Invocation) error {
//	        return inv.Reply(ctx, "pong")
//	    }).
//	    MustBuild()
//
// Aliases default to the command name. A command with an explicit prefix is
// matched by full signature regardless of the owning registry's prefix:
//
//	sys := command.NewBuilder("sysinfo").
//	    Prefix("!").
//	    Aliases("sys").
//	    Handler(h).
//	    MustBuild()
//	// always invoked as "!sys", even under a registry with prefix "?"
//
// # Routing Semantics
//
// Priority breaks ties between commands sharing one signature inside a
// single registry; lower values win. Across registries, depth wins: a match
// in a sub-registry outranks a match in its parent no matter the numbers.
// NotOverrideable inverts that for one command, pre-empting everything
// below its owner. Essential prevents disabling, which the built-in
// administrative commands rely on so they cannot lock themselves out.
//
// # Sub-Commands
//
// A command may carry sub-commands, matched against the token after its own
// signature:
//
//	disable := command.NewBuilder("disable").
//	    SubCommand(disableRegistry).
//	    Handler(h).
//	    MustBuild()
//	// "?disable registry foo" descends into disableRegistry
//
// Sub-commands are rejected by direct registry registration; they are only
// reachable through their parent.
//
// # Hooks
//
// Commands may implement SuccessHandler and FailureHandler to observe the
// outcome of invocations. Builder-made commands get both wired through
// OnSuccess and OnFailure options. FailureReason distinguishes gate
// rejections from handler errors and recovered panics.
//
// # Concurrency
//
// Accessor methods on builder-made commands are safe for concurrent use:
// the enabled flag is atomic and the owner reference is mutex-guarded.
// Everything else is immutable after Build.
package command
