package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/cmdtree/command"
)

// Frame builds an inbound gateway message in the shared wire format the
// sources decode.
func Frame(client, channel, author, content string) []byte {
	frame, _ := json.Marshal(map[string]any{
		"client":    client,
		"channel":   channel,
		"author":    author,
		"content":   content,
		"timestamp": time.Now().UnixMilli(),
	})
	return frame
}

// MalformedFrames are payloads every source must reject without
// crashing the stream.
var MalformedFrames = [][]byte{
	[]byte(`{"client":`),
	[]byte(`{"channel":"general","content":"!ping"}`), // no client
	[]byte(`{"client":"discord"}`),                    // no content
	[]byte(`{}`),
	[]byte(``),
}

// NewInvocation builds an invocation as a source would hand it to the
// dispatcher, with a recording replier attached for assertions.
func NewInvocation(client, content string) (*command.Invocation, *RecordingReplier) {
	rep := &RecordingReplier{}
	return &command.Invocation{
		ID:      uuid.NewString(),
		Client:  client,
		Channel: "general",
		Author:  "tester",
		Content: content,
		At:      time.Now(),
		Replier: rep,
	}, rep
}

// RecordingReplier captures reply texts. Set Err before use to fail
// every reply instead.
type RecordingReplier struct {
	mu      sync.Mutex
	Err     error
	replies []string
}

func (r *RecordingReplier) Reply(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.replies = append(r.replies, text)
	return nil
}

// Replies returns a copy of the captured reply texts.
func (r *RecordingReplier) Replies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.replies...)
}
