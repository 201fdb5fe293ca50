//go:build integration

package nats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cmdtree/command"
	"github.com/c360/cmdtree/config"
	"github.com/c360/cmdtree/natsclient"
)

// echoSubmitter replies to every invocation inline instead of queueing it.
type echoSubmitter struct {
	text string
}

func (e *echoSubmitter) Submit(inv *command.Invocation) error {
	return inv.Reply(context.Background(), e.text)
}

func TestIntegration_SourceRoundTrip(t *testing.T) {
	tc := natsclient.NewTestClient(t)

	sink := &captureSubmitter{}
	s, err := New(Deps{
		Config:    config.NATSSourceConfig{Subject: "cmdtree.messages.test"},
		Client:    tc.Client,
		Submitter: sink,
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(5 * time.Second) }()

	nc := tc.GetNativeConnection()
	payload := []byte(`{"client":"discord","channel":"general","author":"u1","content":"!ping"}`)
	require.NoError(t, nc.Publish("cmdtree.messages.test", payload))
	require.NoError(t, nc.Flush())

	assert.Eventually(t, func() bool {
		return len(sink.submitted()) == 1
	}, 5*time.Second, 10*time.Millisecond, "message should reach the submitter")

	invs := sink.submitted()
	require.Len(t, invs, 1)
	assert.Equal(t, "discord", invs[0].Client)
	assert.Equal(t, "!ping", invs[0].Content)
	assert.NoError(t, s.healthCheck(), "subscribed source passes its health check")
}

func TestIntegration_RequestReply(t *testing.T) {
	tc := natsclient.NewTestClient(t)

	s, err := New(Deps{
		Config:    config.NATSSourceConfig{Subject: "cmdtree.messages.ping"},
		Client:    tc.Client,
		Submitter: &echoSubmitter{text: "Pong!"},
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(5 * time.Second) }()

	nc := tc.GetNativeConnection()
	payload := []byte(`{"client":"discord","content":"!ping"}`)
	resp, err := nc.Request("cmdtree.messages.ping", payload, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Pong!", string(resp.Data))
}

func TestIntegration_QueueGroupSharesMessages(t *testing.T) {
	tc := natsclient.NewTestClient(t)

	sink := &captureSubmitter{}
	cfg := config.NATSSourceConfig{Subject: "cmdtree.messages.queued", Queue: "cmdtree-dispatch"}

	a, err := New(Deps{Config: cfg, Client: tc.Client, Submitter: sink})
	require.NoError(t, err)
	b, err := New(Deps{Config: cfg, Client: tc.Client, Submitter: sink})
	require.NoError(t, err)

	require.NoError(t, a.Start(context.Background()))
	defer func() { _ = a.Stop(5 * time.Second) }()
	require.NoError(t, b.Start(context.Background()))
	defer func() { _ = b.Stop(5 * time.Second) }()

	nc := tc.GetNativeConnection()
	for range 10 {
		require.NoError(t, nc.Publish("cmdtree.messages.queued",
			[]byte(`{"client":"irc","content":"!help"}`)))
	}
	require.NoError(t, nc.Flush())

	// Queue group members split the stream; every message is submitted
	// exactly once.
	assert.Eventually(t, func() bool {
		return len(sink.submitted()) == 10
	}, 5*time.Second, 10*time.Millisecond)
}
