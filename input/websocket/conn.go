package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/cmdtree/command"
	"github.com/c360/cmdtree/errors"
	"github.com/c360/cmdtree/pkg/timestamp"
)

// wsConn wraps one gateway connection. Writes are serialized; gorilla
// connections support one concurrent writer.
type wsConn struct {
	id        string
	ws        *websocket.Conn
	writeWait time.Duration

	writeMu  sync.Mutex
	done     chan struct{}
	doneOnce sync.Once
}

func (c *wsConn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.ws.WriteMessage(messageType, data)
}

// close sends a best-effort close frame and tears the connection down.
// Idempotent; Stop and the read pump both call it.
func (c *wsConn) close() {
	c.doneOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.ws.Close()
	})
}

// replyFrame is the outbound JSON shape for command responses. The
// invocation ID lets gateways correlate asynchronous responses with the
// messages that caused them.
type replyFrame struct {
	Invocation string `json:"invocation"`
	Channel    string `json:"channel,omitempty"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"` // Unix milliseconds
}

// wsReplier writes command responses back to the originating connection.
type wsReplier struct {
	conn    *wsConn
	inv     *command.Invocation
	metrics *sourceMetrics
}

func (r *wsReplier) Reply(_ context.Context, text string) error {
	frame := replyFrame{
		Invocation: r.inv.ID,
		Channel:    r.inv.Channel,
		Content:    text,
		Timestamp:  timestamp.Now(),
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return errors.WrapInvalid(err, "websocket_source", "Reply", "marshal reply")
	}
	if err := r.conn.write(websocket.TextMessage, data); err != nil {
		return errors.WrapTransient(err, "websocket_source", "Reply", "write reply")
	}

	r.metrics.recordReply()
	return nil
}
