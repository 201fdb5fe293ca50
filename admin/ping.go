package admin

import (
	"context"

	"github.com/c360/cmdtree/command"
)

// NewPing builds the ping command, a liveness echo for the whole pipeline.
func NewPing() command.Command {
	return command.NewBuilder("ping").
		Description("Checks that the command pipeline is alive.").
		Usage("{}ping").
		Handler(func(ctx context.Context, inv *command.Invocation) error {
			return inv.Reply(ctx, "Pong!")
		}).
		MustBuild()
}
