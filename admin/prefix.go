package admin

import (
	"context"
	"fmt"

	"github.com/c360/cmdtree/command"
	"github.com/c360/cmdtree/registry"
)

// NewPrefix builds the prefix command. With no arguments it shows the
// root's effective prefix; with one argument it sets the root's explicit
// prefix. The show and set sub-commands address a registry by path. A
// prefix change is live: the next resolution already uses it.
func NewPrefix(dir *registry.Directory) command.Command {
	show := command.NewBuilder("prefix-show").
		Aliases("show").
		Essential().
		Description("Shows the prefix of the registry at a path.").
		Usage("{}prefix show [path parts...]").
		Handler(showPrefix(dir)).
		MustBuild()
	set := command.NewBuilder("prefix-set").
		Aliases("set").
		Essential().
		Description("Sets the prefix of the registry at a path.").
		Usage("{}prefix set <prefix> [path parts...]").
		Handler(setPrefix(dir)).
		MustBuild()

	return command.NewBuilder("prefix").
		Essential().
		NotOverrideable().
		Description("Shows or sets the command prefix.").
		Usage("{}prefix [new prefix]").
		SubCommand(show).
		SubCommand(set).
		Handler(rootPrefix(dir)).
		MustBuild()
}

func rootPrefix(dir *registry.Directory) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) error {
		root := dir.Registry(inv.Client)
		if len(inv.Args) == 0 {
			return inv.Reply(ctx, fmt.Sprintf("Registry `/` prefix is `%s`.", root.EffectivePrefix()))
		}
		if len(inv.Args) > 1 {
			return inv.Reply(ctx, "A prefix may not contain whitespace.")
		}
		if err := root.SetPrefix(inv.Args[0]); err != nil {
			return err
		}
		return inv.Reply(ctx, fmt.Sprintf("Set registry `/` prefix to `%s`.", inv.Args[0]))
	}
}

func showPrefix(dir *registry.Directory) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) error {
		target := dir.Registry(inv.Client).Descend(inv.Args...)
		if target == nil {
			return inv.Reply(ctx, fmt.Sprintf("Registry `%s` not found!", pathString(inv.Args)))
		}
		if target.Prefix() == "" {
			return inv.Reply(ctx, fmt.Sprintf("Registry `%s` inherits prefix `%s`.", target.Path(), target.EffectivePrefix()))
		}
		return inv.Reply(ctx, fmt.Sprintf("Registry `%s` prefix is `%s`.", target.Path(), target.Prefix()))
	}
}

func setPrefix(dir *registry.Directory) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) error {
		if len(inv.Args) == 0 {
			return inv.Reply(ctx, "A prefix must be specified.")
		}
		prefix := inv.Args[0]
		path := inv.Args[1:]
		target := dir.Registry(inv.Client).Descend(path...)
		if target == nil {
			return inv.Reply(ctx, fmt.Sprintf("Registry `%s` not found!", pathString(path)))
		}
		if target.IsPlaceholder() {
			return inv.Reply(ctx, fmt.Sprintf("Registry `%s` is a placeholder and has no prefix of its own!", target.Path()))
		}
		if err := target.SetPrefix(prefix); err != nil {
			return err
		}
		return inv.Reply(ctx, fmt.Sprintf("Set registry `%s` prefix to `%s`.", target.Path(), prefix))
	}
}
