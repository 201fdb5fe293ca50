package command

import (
	"context"
	"time"
)

// Replier delivers a command's textual response back to wherever the
// invocation came from. Transport sources provide the implementation.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// Invocation carries one inbound request through resolution and execution.
// The registry core treats it as opaque: it only threads the value through
// context-check predicates. The dispatch layer fills it in and hands it to
// the matched command.
type Invocation struct {
	// ID uniquely identifies the invocation for log and reply correlation.
	ID string `json:"id"`

	// Client is the opaque client identity the registry directory keyed the
	// root tree on.
	Client string `json:"client"`

	// Channel and Author locate the message on the originating platform.
	Channel string `json:"channel,omitempty"`
	Author  string `json:"author,omitempty"`

	// Content is the raw message text as received.
	Content string `json:"content"`

	// Signature is the token that matched the command, prefix included.
	Signature string `json:"signature"`

	// Args holds the whitespace-separated tokens after the signature. When
	// the dispatcher descends into sub-commands, consumed tokens are shifted
	// off the front.
	Args []string `json:"args,omitempty"`

	// At is when the source accepted the message.
	At time.Time `json:"at"`

	// Replier sends responses back to the origin. May be nil for
	// fire-and-forget transports.
	Replier Replier `json:"-"`
}

// Reply sends text back to the invocation's origin. It is a no-op returning
// nil when no Replier is attached.
func (inv *Invocation) Reply(ctx context.Context, text string) error {
	if inv.Replier == nil {
		return nil
	}
	return inv.Replier.Reply(ctx, text)
}

// Arg returns the i-th argument or "" when out of range.
func (inv *Invocation) Arg(i int) string {
	if i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}
