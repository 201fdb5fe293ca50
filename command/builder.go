package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/c360/cmdtree/errors"
)

// Handler is the business logic a built command runs for each invocation.
type Handler func(ctx context.Context, inv *Invocation) error

// Builder assembles a Command record. The zero value is not usable; start
// with NewBuilder. Builder methods return the receiver for chaining and
// Build performs all validation.
type Builder struct {
	name         string
	aliases      []string
	prefix       string
	priority     int
	overrideable bool
	essential    bool
	enabled      bool
	description  string
	usage        string
	subCommands  []Command
	handler      Handler
	onSuccess    func(context.Context, *Invocation)
	onFailure    func(context.Context, *Invocation, FailureReason)
}

// NewBuilder starts a command definition with the given unique name.
// Defaults: aliases = [name], no explicit prefix, priority 0, overrideable,
// not essential, enabled.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:         name,
		overrideable: true,
		enabled:      true,
	}
}

// Aliases sets the strings the command answers to, replacing any previous
// set. Duplicates are dropped, keeping first occurrence order.
func (b *Builder) Aliases(aliases ...string) *Builder {
	b.aliases = aliases
	return b
}

// Prefix sets an explicit prefix override. Commands with an explicit prefix
// are indexed by full signature and ignore the owning registry's effective
// prefix.
func (b *Builder) Prefix(prefix string) *Builder {
	b.prefix = prefix
	return b
}

// Priority sets the tie-break rank among candidates sharing a signature in
// one registry. Lower values take precedence.
func (b *Builder) Priority(priority int) *Builder {
	b.priority = priority
	return b
}

// NotOverrideable marks the command as pre-empting the subtree below its
// owner: once it matches, deeper registries are not consulted.
func (b *Builder) NotOverrideable() *Builder {
	b.overrideable = false
	return b
}

// Essential protects the command from ever being disabled.
func (b *Builder) Essential() *Builder {
	b.essential = true
	return b
}

// Disabled makes the command start out disabled. Not valid together with
// Essential.
func (b *Builder) Disabled() *Builder {
	b.enabled = false
	return b
}

// Description sets the short summary shown in command listings.
func (b *Builder) Description(description string) *Builder {
	b.description = description
	return b
}

// Usage sets the invocation syntax shown in help output.
func (b *Builder) Usage(usage string) *Builder {
	b.usage = usage
	return b
}

// SubCommand attaches a sub-command, matched against the argument following
// this command's signature. Sub-commands cannot be registered directly into
// a registry.
func (b *Builder) SubCommand(sub Command) *Builder {
	b.subCommands = append(b.subCommands, sub)
	return b
}

// OnSuccess sets a callback run after a successful execution.
func (b *Builder) OnSuccess(fn func(ctx context.Context, inv *Invocation)) *Builder {
	b.onSuccess = fn
	return b
}

// OnFailure sets a callback run when a matched invocation is gated off or
// its execution fails.
func (b *Builder) OnFailure(fn func(ctx context.Context, inv *Invocation, reason FailureReason)) *Builder {
	b.onFailure = fn
	return b
}

// Handler sets the command's business logic. Required.
func (b *Builder) Handler(fn Handler) *Builder {
	b.handler = fn
	return b
}

// Build validates the definition and returns the finished Command.
func (b *Builder) Build() (Command, error) {
	if b.name == "" {
		return nil, errors.WrapInvalid(errors.ErrEmptyName, "Builder", "Build", "command name check")
	}
	if b.handler == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("command %q has no handler", b.name),
			"Builder", "Build", "handler check")
	}
	if b.essential && !b.enabled {
		return nil, errors.WrapInvalid(
			fmt.Errorf("command %q is essential and cannot start disabled", b.name),
			"Builder", "Build", "flag check")
	}

	aliases := b.aliases
	if len(aliases) == 0 {
		aliases = []string{b.name}
	}
	seen := make(map[string]bool, len(aliases))
	deduped := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		if alias == "" || strings.ContainsAny(alias, " \t\n") {
			return nil, errors.WrapInvalid(
				fmt.Errorf("command %q has unusable alias %q", b.name, alias),
				"Builder", "Build", "alias check")
		}
		if seen[alias] {
			continue
		}
		seen[alias] = true
		deduped = append(deduped, alias)
	}

	for _, sub := range b.subCommands {
		if sub == nil {
			return nil, errors.WrapInvalid(errors.ErrNilCommand, "Builder", "Build", "sub-command check")
		}
		// Builder-made sub-commands are marked here; foreign implementations
		// must already report themselves as sub-commands.
		if d, ok := sub.(*definition); ok {
			d.subCommand = true
		} else if !sub.SubCommand() {
			return nil, errors.WrapInvalid(
				fmt.Errorf("command %q attached as sub-command but does not report SubCommand()", sub.Name()),
				"Builder", "Build", "sub-command check")
		}
	}

	d := &definition{
		name:         b.name,
		aliases:      deduped,
		prefix:       b.prefix,
		priority:     b.priority,
		overrideable: b.overrideable,
		essential:    b.essential,
		description:  b.description,
		usage:        b.usage,
		subCommands:  append([]Command(nil), b.subCommands...),
		handler:      b.handler,
		onSuccess:    b.onSuccess,
		onFailure:    b.onFailure,
	}
	d.enabled.Store(b.enabled)
	return d, nil
}

// MustBuild is Build for definitions known correct at compile time, such as
// the built-in administrative commands. It panics on validation failure.
func (b *Builder) MustBuild() Command {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

// definition is the Command implementation produced by Builder.
type definition struct {
	name         string
	aliases      []string
	prefix       string
	priority     int
	overrideable bool
	essential    bool
	subCommand   bool
	description  string
	usage        string
	subCommands  []Command
	handler      Handler
	onSuccess    func(context.Context, *Invocation)
	onFailure    func(context.Context, *Invocation, FailureReason)

	enabled atomic.Bool

	ownerMu sync.RWMutex
	owner   Owner
}

func (d *definition) Name() string { return d.name }

func (d *definition) Prefix() string { return d.prefix }

func (d *definition) Priority() int { return d.priority }

func (d *definition) Overrideable() bool { return d.overrideable }

func (d *definition) Essential() bool { return d.essential }

func (d *definition) SubCommand() bool { return d.subCommand }

func (d *definition) Enabled() bool { return d.enabled.Load() }

func (d *definition) Description() string { return d.description }

func (d *definition) Usage() string { return d.usage }

func (d *definition) Aliases() []string {
	return append([]string(nil), d.aliases...)
}

func (d *definition) SubCommands() []Command {
	return append([]Command(nil), d.subCommands...)
}

func (d *definition) SetEnabled(enabled bool) error {
	if !enabled && d.essential {
		return errors.WrapState(errors.ErrEssential, "Command", "SetEnabled",
			fmt.Sprintf("disable %q", d.name))
	}
	d.enabled.Store(enabled)
	return nil
}

func (d *definition) Owner() Owner {
	d.ownerMu.RLock()
	defer d.ownerMu.RUnlock()
	return d.owner
}

func (d *definition) SetOwner(o Owner) {
	d.ownerMu.Lock()
	defer d.ownerMu.Unlock()
	d.owner = o
}

func (d *definition) Execute(ctx context.Context, inv *Invocation) error {
	return d.handler(ctx, inv)
}

// OnSuccess implements SuccessHandler; no-op unless configured.
func (d *definition) OnSuccess(ctx context.Context, inv *Invocation) {
	if d.onSuccess != nil {
		d.onSuccess(ctx, inv)
	}
}

// OnFailure implements FailureHandler; no-op unless configured.
func (d *definition) OnFailure(ctx context.Context, inv *Invocation, reason FailureReason) {
	if d.onFailure != nil {
		d.onFailure(ctx, inv, reason)
	}
}
