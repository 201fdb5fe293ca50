package admin

import (
	"context"
	"fmt"

	"github.com/c360/cmdtree/command"
	"github.com/c360/cmdtree/registry"
)

// NewEnable builds the enable command, the inverse of disable. The main
// form enables a named command; the registry sub-command enables the
// sub-registry at a path.
func NewEnable(dir *registry.Directory) command.Command {
	sub := command.NewBuilder("enable-registry").
		Aliases("registry").
		Essential().
		Description("Enables the registry at a path.").
		Usage("{}enable registry <path parts...>").
		Handler(enableRegistry(dir)).
		MustBuild()

	return command.NewBuilder("enable").
		Essential().
		NotOverrideable().
		Priority(pinnedPriority).
		Description("Enables a previously disabled command.").
		Usage("{}enable <command name>").
		SubCommand(sub).
		Handler(enableCommand(dir)).
		MustBuild()
}

func enableCommand(dir *registry.Directory) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) error {
		if len(inv.Args) == 0 {
			return inv.Reply(ctx, "A command must be specified.")
		}
		name := inv.Args[0]
		target := dir.Registry(inv.Client).Command(name)
		if target == nil {
			return inv.Reply(ctx, fmt.Sprintf("Command `%s` not found!", name))
		}
		if target.Enabled() {
			return inv.Reply(ctx, fmt.Sprintf("Command `%s` is already enabled!", target.Name()))
		}
		if err := target.SetEnabled(true); err != nil {
			return err
		}
		return inv.Reply(ctx, fmt.Sprintf("Enabled command `%s`!", target.Name()))
	}
}

func enableRegistry(dir *registry.Directory) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) error {
		if len(inv.Args) == 0 {
			return inv.Reply(ctx, "A registry must be specified.")
		}
		target := dir.Registry(inv.Client).Descend(inv.Args...)
		if target == nil {
			return inv.Reply(ctx, fmt.Sprintf("Registry `%s` not found!", pathString(inv.Args)))
		}
		if target.IsPlaceholder() {
			return inv.Reply(ctx, fmt.Sprintf("Registry `%s` is a placeholder and may not be enabled!", target.Path()))
		}
		if target.Enabled() {
			return inv.Reply(ctx, fmt.Sprintf("Registry `%s` is already enabled!", target.Path()))
		}
		if err := target.SetEnabled(true); err != nil {
			return err
		}
		return inv.Reply(ctx, fmt.Sprintf("Enabled registry `%s`!", target.Path()))
	}
}
