// Package input defines the wire format shared by the transport sources
// and the contract they use to hand decoded messages to the dispatcher.
//
// Every source decodes the same JSON shape: client, channel, author,
// content, and an optional timestamp. The client field selects which
// registry tree the dispatcher resolves against, so it is mandatory.
package input

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/c360/cmdtree/command"
	"github.com/c360/cmdtree/errors"
	"github.com/c360/cmdtree/pkg/timestamp"
)

// Message is one decoded inbound chat message.
type Message struct {
	Client  string
	Channel string
	Author  string
	Content string
	At      time.Time
}

// wireMessage is the JSON form on the transports. Timestamp is untyped
// because platforms disagree: RFC3339 strings, Unix seconds, and Unix
// milliseconds all occur in the wild.
type wireMessage struct {
	Client    string `json:"client"`
	Channel   string `json:"channel,omitempty"`
	Author    string `json:"author,omitempty"`
	Content   string `json:"content"`
	Timestamp any    `json:"timestamp,omitempty"`
}

// ParseMessage decodes one wire message. Client and content are required;
// a missing or unparseable timestamp resolves to the receive time.
func ParseMessage(data []byte) (*Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.WrapInvalid(err, "input", "ParseMessage", "unmarshal message")
	}

	if strings.TrimSpace(w.Client) == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("client is required"),
			"input", "ParseMessage", "validate message")
	}
	if strings.TrimSpace(w.Content) == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("content is required"),
			"input", "ParseMessage", "validate message")
	}

	at := timestamp.ToTime(timestamp.Parse(w.Timestamp))
	if at.IsZero() {
		at = time.Now()
	}

	return &Message{
		Client:  w.Client,
		Channel: w.Channel,
		Author:  w.Author,
		Content: w.Content,
		At:      at,
	}, nil
}

// Invocation converts the message into a dispatcher invocation. The
// dispatcher assigns the ID on submit; the source attaches the reply
// writer, which may be nil for fire-and-forget transports.
func (m *Message) Invocation(replier command.Replier) *command.Invocation {
	return &command.Invocation{
		Client:  m.Client,
		Channel: m.Channel,
		Author:  m.Author,
		Content: m.Content,
		At:      m.At,
		Replier: replier,
	}
}

// Submitter accepts invocations for processing. *dispatch.Dispatcher is
// the production implementation; tests substitute in-memory fakes.
type Submitter interface {
	Submit(inv *command.Invocation) error
}
