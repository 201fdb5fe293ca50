package admin

import (
	"context"
	"fmt"

	"github.com/c360/cmdtree/command"
	"github.com/c360/cmdtree/registry"
)

// NewDisable builds the disable command. The main form disables a named
// command; the registry sub-command disables the sub-registry at a path.
// Essential targets are refused.
func NewDisable(dir *registry.Directory) command.Command {
	sub := command.NewBuilder("disable-registry").
		Aliases("registry").
		Essential().
		Description("Disables the registry at a path. Essential registries cannot be disabled.").
		Usage("{}disable registry <path parts...>").
		Handler(disableRegistry(dir)).
		MustBuild()

	return command.NewBuilder("disable").
		Essential().
		NotOverrideable().
		Priority(pinnedPriority).
		Description("Disables a command. Only non-essential commands can be disabled.").
		Usage("{}disable <command name>").
		SubCommand(sub).
		Handler(disableCommand(dir)).
		MustBuild()
}

func disableCommand(dir *registry.Directory) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) error {
		if len(inv.Args) == 0 {
			return inv.Reply(ctx, "A command must be specified.")
		}
		name := inv.Args[0]
		target := dir.Registry(inv.Client).Command(name)
		if target == nil {
			return inv.Reply(ctx, fmt.Sprintf("Command `%s` not found!", name))
		}
		if target.Essential() {
			return inv.Reply(ctx, fmt.Sprintf("Command `%s` is essential and may not be disabled!", target.Name()))
		}
		if !target.Enabled() {
			return inv.Reply(ctx, fmt.Sprintf("Command `%s` is already disabled!", target.Name()))
		}
		if err := target.SetEnabled(false); err != nil {
			return err
		}
		return inv.Reply(ctx, fmt.Sprintf("Disabled command `%s`!", target.Name()))
	}
}

func disableRegistry(dir *registry.Directory) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) error {
		if len(inv.Args) == 0 {
			return inv.Reply(ctx, "A registry must be specified.")
		}
		target := dir.Registry(inv.Client).Descend(inv.Args...)
		if target == nil {
			return inv.Reply(ctx, fmt.Sprintf("Registry `%s` not found!", pathString(inv.Args)))
		}
		if target.IsPlaceholder() {
			return inv.Reply(ctx, fmt.Sprintf("Registry `%s` is a placeholder and may not be disabled!", target.Path()))
		}
		if target.Essential() {
			return inv.Reply(ctx, fmt.Sprintf("Registry `%s` is essential and may not be disabled!", target.Path()))
		}
		if !target.Enabled() {
			return inv.Reply(ctx, fmt.Sprintf("Registry `%s` is already disabled!", target.Path()))
		}
		if err := target.SetEnabled(false); err != nil {
			return err
		}
		return inv.Reply(ctx, fmt.Sprintf("Disabled registry `%s`!", target.Path()))
	}
}
