package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/c360/cmdtree/command"
	"github.com/c360/cmdtree/config"
	"github.com/c360/cmdtree/errors"
	"github.com/c360/cmdtree/input"
	"github.com/c360/cmdtree/service"
)

func TestMain(m *testing.M) {
	// BaseService schedules its initial health check on a short sleep.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("time.Sleep"))
}

// captureSubmitter records submitted invocations.
type captureSubmitter struct {
	mu   sync.Mutex
	invs []*command.Invocation
}

func (c *captureSubmitter) Submit(inv *command.Invocation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invs = append(c.invs, inv)
	return nil
}

func (c *captureSubmitter) submitted() []*command.Invocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*command.Invocation(nil), c.invs...)
}

// echoSubmitter replies to every invocation inline with a fixed text,
// stamping the ID the dispatcher would assign.
type echoSubmitter struct {
	text string
}

func (e *echoSubmitter) Submit(inv *command.Invocation) error {
	inv.ID = "inv-1"
	return inv.Reply(context.Background(), e.text)
}

func testConfig() config.WebSocketSourceConfig {
	return config.WebSocketSourceConfig{
		Enabled:      true,
		Address:      "127.0.0.1:0",
		Path:         "/ws",
		ReadLimit:    64 << 10,
		PingInterval: 50 * time.Millisecond,
		PongWait:     time.Second,
		WriteWait:    time.Second,
	}
}

// newTestSource starts a source on an ephemeral port and returns it with
// its dial URL.
func newTestSource(t *testing.T, cfg config.WebSocketSourceConfig, sink input.Submitter) (*Source, string) {
	t.Helper()

	s, err := New(Deps{Config: cfg, Submitter: sink})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(2 * time.Second) })

	return s, "ws://" + s.Addr().String() + cfg.Path
}

// dial connects to the source, failing the test on handshake errors.
func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *Source) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func TestNew_RequiresSubmitter(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err), "expected invalid classification, got %v", err)
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(Deps{Submitter: &captureSubmitter{}})
	require.NoError(t, err)

	assert.Equal(t, "websocket-source", s.Name())
	assert.Equal(t, ":8081", s.cfg.Address)
	assert.Equal(t, "/ws", s.cfg.Path)
	assert.Equal(t, int64(64<<10), s.cfg.ReadLimit)
	assert.Equal(t, 30*time.Second, s.cfg.PingInterval)
	assert.Equal(t, 60*time.Second, s.cfg.PongWait)
	assert.Equal(t, 10*time.Second, s.cfg.WriteWait)
}

func TestSource_SubmitsInvocations(t *testing.T) {
	sink := &captureSubmitter{}
	_, url := newTestSource(t, testConfig(), sink)

	conn := dial(t, url, nil)
	payload := `{"client":"discord","channel":"general","author":"u1","content":"!ping"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))

	require.Eventually(t, func() bool {
		return len(sink.submitted()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	invs := sink.submitted()
	assert.Equal(t, "discord", invs[0].Client)
	assert.Equal(t, "general", invs[0].Channel)
	assert.Equal(t, "u1", invs[0].Author)
	assert.Equal(t, "!ping", invs[0].Content)
	assert.NotNil(t, invs[0].Replier, "gateway connections always get a reply writer")
}

func TestSource_ReplyRoundTrip(t *testing.T) {
	_, url := newTestSource(t, testConfig(), &echoSubmitter{text: "Pong!"})

	conn := dial(t, url, nil)
	payload := `{"client":"discord","channel":"ops","content":"!ping"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame replyFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "inv-1", frame.Invocation)
	assert.Equal(t, "ops", frame.Channel)
	assert.Equal(t, "Pong!", frame.Content)
	assert.NotZero(t, frame.Timestamp)
}

func TestSource_MalformedFrameKeepsConnection(t *testing.T) {
	sink := &captureSubmitter{}
	_, url := newTestSource(t, testConfig(), sink)

	conn := dial(t, url, nil)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"client":`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"content":"!ping"}`)))

	// A valid frame after the garbage still goes through.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"client":"irc","content":"!help"}`)))

	require.Eventually(t, func() bool {
		return len(sink.submitted()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "!help", sink.submitted()[0].Content)
}

func TestSource_ReadLimitKillsConnection(t *testing.T) {
	cfg := testConfig()
	cfg.ReadLimit = 64
	sink := &captureSubmitter{}
	s, url := newTestSource(t, cfg, sink)

	conn := dial(t, url, nil)
	require.Eventually(t, func() bool { return s.connCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	big := fmt.Sprintf(`{"client":"irc","content":"%s"}`, strings.Repeat("a", 256))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(big)))

	require.Eventually(t, func() bool { return s.connCount() == 0 },
		2*time.Second, 10*time.Millisecond, "oversized frame should drop the connection")
	assert.Empty(t, sink.submitted())
}

func TestSource_EvictsSilentGateways(t *testing.T) {
	cfg := testConfig()
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PongWait = 80 * time.Millisecond
	s, url := newTestSource(t, cfg, &captureSubmitter{})

	// Dial but never read: pings go unanswered, so the pong deadline
	// expires server-side.
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool { return s.connCount() == 1 },
		time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return s.connCount() == 0 },
		time.Second, 5*time.Millisecond, "silent gateway should be evicted")
}

func TestSource_KeepsResponsiveGatewaysAlive(t *testing.T) {
	cfg := testConfig()
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PongWait = 100 * time.Millisecond
	_, url := newTestSource(t, cfg, &captureSubmitter{})

	conn := dial(t, url, nil)

	// Reading services ping frames; the default handler answers with
	// pongs, so the connection outlives several deadline windows.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(400*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	netErr, ok := err.(net.Error)
	require.True(t, ok, "expected a client-side deadline, got %v", err)
	assert.True(t, netErr.Timeout(), "server must not have closed the connection")
}

func TestSource_BearerAuth(t *testing.T) {
	t.Setenv("CMDTREE_TEST_WS_TOKEN", "s3cret")

	cfg := testConfig()
	cfg.Auth = config.WebSocketAuthConfig{Type: "bearer", BearerTokenEnv: "CMDTREE_TEST_WS_TOKEN"}
	_, url := newTestSource(t, cfg, &captureSubmitter{})

	// No credentials.
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	// Wrong token.
	header := http.Header{"Authorization": []string{"Bearer nope"}}
	_, resp, err = websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	// Correct token.
	header = http.Header{"Authorization": []string{"Bearer s3cret"}}
	conn := dial(t, url, header)
	assert.NotNil(t, conn)
}

func TestSource_BearerAuthFailsClosedWithoutToken(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.WebSocketAuthConfig{Type: "bearer", BearerTokenEnv: "CMDTREE_TEST_WS_TOKEN_UNSET"}
	_, url := newTestSource(t, cfg, &captureSubmitter{})

	header := http.Header{"Authorization": []string{"Bearer anything"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestSource_BasicAuth(t *testing.T) {
	t.Setenv("CMDTREE_TEST_WS_USER", "gateway")
	t.Setenv("CMDTREE_TEST_WS_PASS", "hunter2")

	cfg := testConfig()
	cfg.Auth = config.WebSocketAuthConfig{
		Type:             "basic",
		BasicUsernameEnv: "CMDTREE_TEST_WS_USER",
		BasicPasswordEnv: "CMDTREE_TEST_WS_PASS",
	}
	_, url := newTestSource(t, cfg, &captureSubmitter{})

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, "http://placeholder", nil)
	require.NoError(t, err)
	req.SetBasicAuth("gateway", "hunter2")
	conn := dial(t, url, req.Header)
	assert.NotNil(t, conn)
}

func TestSource_StopClosesConnections(t *testing.T) {
	sink := &captureSubmitter{}
	s, url := newTestSource(t, testConfig(), sink)

	conn := dial(t, url, nil)
	require.Eventually(t, func() bool { return s.connCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop(2*time.Second))
	assert.Equal(t, service.StatusStopped, s.Status())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "server close should end the client read")
}

func TestSource_HealthCheck(t *testing.T) {
	s, err := New(Deps{Config: testConfig(), Submitter: &captureSubmitter{}})
	require.NoError(t, err)

	require.Error(t, s.healthCheck(), "unhealthy before start")

	require.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.healthCheck())

	require.NoError(t, s.Stop(2*time.Second))
	assert.Error(t, s.healthCheck())
}

// submitFunc adapts a function to the submitter contract.
type submitFunc func(*command.Invocation) error

func (f submitFunc) Submit(inv *command.Invocation) error { return f(inv) }

func TestSource_SubmitErrorsDoNotDisconnect(t *testing.T) {
	seen := make(chan struct{}, 1)
	sink := submitFunc(func(*command.Invocation) error {
		select {
		case seen <- struct{}{}:
		default:
		}
		return errors.WrapState(errors.ErrRateLimited, "dispatch", "Submit", "client discord")
	})
	s, url := newTestSource(t, testConfig(), sink)

	conn := dial(t, url, nil)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"client":"discord","content":"!ping"}`)))

	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("submit was never attempted")
	}

	// The refusal is absorbed; the gateway stays connected.
	assert.Equal(t, 1, s.connCount())
}
