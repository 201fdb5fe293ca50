// Package testutil provides shared test infrastructure: an in-memory
// transport standing in for the NATS client, and fixtures in the gateway
// wire format.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/c360/cmdtree/natsclient"
)

// Transport is an in-memory pub/sub fabric for tests. Handlers match
// natsclient.MsgHandler, so code written against the real client's
// subscription surface runs unchanged without a broker. Thread-safe for
// concurrent use from multiple goroutines.
type Transport struct {
	mu        sync.Mutex
	subs      []*subscription
	cursors   map[string]int // round-robin position per queue group
	published map[string][][]byte
	inboxSeq  int
	closed    bool
}

type subscription struct {
	subject string
	queue   string
	handler natsclient.MsgHandler
}

// NewTransport creates an empty in-memory transport.
func NewTransport() *Transport {
	return &Transport{
		cursors:   make(map[string]int),
		published: make(map[string][][]byte),
	}
}

// Subscribe registers a handler for every message matching the subject
// pattern. NATS wildcards apply: "*" matches one token, ">" the rest.
func (t *Transport) Subscribe(ctx context.Context, subject string, handler natsclient.MsgHandler) error {
	return t.QueueSubscribe(ctx, subject, "", handler)
}

// QueueSubscribe registers a handler in a queue group. Each message goes
// to one member per group, round-robin, like the real thing.
func (t *Transport) QueueSubscribe(ctx context.Context, subject, queue string, handler natsclient.MsgHandler) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("transport is closed")
	}
	t.subs = append(t.subs, &subscription{subject: subject, queue: queue, handler: handler})
	return nil
}

// Publish delivers data to every matching subscription with no reply
// subject set.
func (t *Transport) Publish(ctx context.Context, subject string, data []byte) error {
	return t.deliver(ctx, subject, "", data)
}

// PublishRequest delivers data with a reply subject, without waiting for
// a response.
func (t *Transport) PublishRequest(ctx context.Context, subject, reply string, data []byte) error {
	return t.deliver(ctx, subject, reply, data)
}

// Request publishes with a generated inbox subject and waits for the
// first response published there.
func (t *Transport) Request(ctx context.Context, subject string, data []byte, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	t.inboxSeq++
	inbox := fmt.Sprintf("_INBOX.mock.%d", t.inboxSeq)
	t.mu.Unlock()

	respCh := make(chan []byte, 1)
	err := t.Subscribe(ctx, inbox, func(_ context.Context, resp []byte, _ string) {
		select {
		case respCh <- resp:
		default:
		}
	})
	if err != nil {
		return nil, err
	}

	if err := t.deliver(ctx, subject, inbox, data); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-respCh:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("request timed out on subject %s", subject)
	}
}

// deliver records the message and fans it out. Handlers run outside the
// lock so they can publish back through the same transport.
func (t *Transport) deliver(ctx context.Context, subject, reply string, data []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("transport is closed")
	}

	t.published[subject] = append(t.published[subject], data)

	var handlers []natsclient.MsgHandler
	groups := make(map[string][]*subscription)
	for _, sub := range t.subs {
		if !subjectMatches(sub.subject, subject) {
			continue
		}
		if sub.queue == "" {
			handlers = append(handlers, sub.handler)
			continue
		}
		groups[sub.queue] = append(groups[sub.queue], sub)
	}
	for queue, members := range groups {
		idx := t.cursors[queue] % len(members)
		t.cursors[queue]++
		handlers = append(handlers, members[idx].handler)
	}
	t.mu.Unlock()

	// Per-message timeout context, matching the real client's callbacks.
	for _, handler := range handlers {
		msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		handler(msgCtx, data, reply)
		cancel()
	}
	return nil
}

// Published returns a copy of every payload published to an exact
// subject, replies included.
func (t *Transport) Published(subject string) [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	msgs := t.published[subject]
	if msgs == nil {
		return nil
	}
	result := make([][]byte, len(msgs))
	copy(result, msgs)
	return result
}

// PublishedCount returns the number of payloads published to a subject.
func (t *Transport) PublishedCount(subject string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.published[subject])
}

// Clear drops recorded payloads. Subscriptions survive.
func (t *Transport) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.published = make(map[string][][]byte)
}

// Close rejects further publishes and subscriptions.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// subjectMatches reports whether a concrete subject matches a pattern.
// Tokens split on "."; "*" matches exactly one token and ">" matches one
// or more trailing tokens.
func subjectMatches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}

// WaitForPublished blocks until at least count payloads have been
// published to a subject, failing the test on timeout. Useful when the
// code under test publishes from its own goroutines.
func WaitForPublished(t *testing.T, tr *Transport, subject string, count int, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			got := tr.PublishedCount(subject)
			t.Fatalf("timed out waiting for %d payloads on subject %s (got %d)", count, subject, got)
			return
		case <-ticker.C:
			if tr.PublishedCount(subject) >= count {
				return
			}
		}
	}
}
