package testutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTransport_PublishSubscribe(t *testing.T) {
	tr := NewTransport()

	var (
		mu    sync.Mutex
		got   []byte
		reply string
	)
	err := tr.Subscribe(context.Background(), "cmdtree.messages.discord",
		func(_ context.Context, data []byte, r string) {
			mu.Lock()
			defer mu.Unlock()
			got = data
			reply = r
		})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := tr.Publish(context.Background(), "cmdtree.messages.discord", []byte("hello")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if string(got) != "hello" {
		t.Fatalf("handler got %q, want %q", got, "hello")
	}
	if reply != "" {
		t.Fatalf("plain publish carried reply subject %q", reply)
	}
	if tr.PublishedCount("cmdtree.messages.discord") != 1 {
		t.Fatal("publish was not recorded")
	}
}

func TestTransport_Wildcards(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		match   bool
	}{
		{"cmdtree.messages.>", "cmdtree.messages.discord", true},
		{"cmdtree.messages.>", "cmdtree.messages.a.b.c", true},
		{"cmdtree.messages.>", "cmdtree.messages", false},
		{"cmdtree.messages.>", "cmdtree.health", false},
		{"cmdtree.*.discord", "cmdtree.messages.discord", true},
		{"cmdtree.*.discord", "cmdtree.messages.irc", false},
		{"cmdtree.*", "cmdtree.messages.discord", false},
		{"exact.subject", "exact.subject", true},
		{"exact.subject", "exact.other", false},
	}

	for _, tt := range tests {
		if got := subjectMatches(tt.pattern, tt.subject); got != tt.match {
			t.Errorf("subjectMatches(%q, %q) = %v, want %v",
				tt.pattern, tt.subject, got, tt.match)
		}
	}
}

func TestTransport_QueueGroupRoundRobin(t *testing.T) {
	tr := NewTransport()

	var mu sync.Mutex
	counts := make(map[string]int)
	member := func(name string) func(context.Context, []byte, string) {
		return func(context.Context, []byte, string) {
			mu.Lock()
			defer mu.Unlock()
			counts[name]++
		}
	}

	ctx := context.Background()
	if err := tr.QueueSubscribe(ctx, "work.>", "workers", member("a")); err != nil {
		t.Fatalf("QueueSubscribe failed: %v", err)
	}
	if err := tr.QueueSubscribe(ctx, "work.>", "workers", member("b")); err != nil {
		t.Fatalf("QueueSubscribe failed: %v", err)
	}
	if err := tr.Subscribe(ctx, "work.>", member("observer")); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		if err := tr.Publish(ctx, "work.item", []byte("x")); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if counts["a"]+counts["b"] != 4 {
		t.Fatalf("queue group got %d messages, want 4", counts["a"]+counts["b"])
	}
	if counts["a"] != 2 || counts["b"] != 2 {
		t.Fatalf("round robin uneven: a=%d b=%d", counts["a"], counts["b"])
	}
	if counts["observer"] != 4 {
		t.Fatalf("plain subscriber got %d messages, want 4", counts["observer"])
	}
}

func TestTransport_RequestReply(t *testing.T) {
	tr := NewTransport()

	err := tr.Subscribe(context.Background(), "cmdtree.messages.ping",
		func(ctx context.Context, _ []byte, reply string) {
			if reply == "" {
				t.Error("request delivered without reply subject")
				return
			}
			if err := tr.Publish(ctx, reply, []byte("Pong!")); err != nil {
				t.Errorf("reply publish failed: %v", err)
			}
		})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	resp, err := tr.Request(context.Background(), "cmdtree.messages.ping", []byte("!ping"), time.Second)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if string(resp) != "Pong!" {
		t.Fatalf("Request returned %q, want %q", resp, "Pong!")
	}
}

func TestTransport_RequestTimeout(t *testing.T) {
	tr := NewTransport()

	_, err := tr.Request(context.Background(), "nobody.home", []byte("x"), 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error for unanswered request")
	}
}

func TestTransport_Closed(t *testing.T) {
	tr := NewTransport()
	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := tr.Publish(context.Background(), "s", []byte("x")); err == nil {
		t.Fatal("expected publish to fail after close")
	}
	if err := tr.Subscribe(context.Background(), "s", func(context.Context, []byte, string) {}); err == nil {
		t.Fatal("expected subscribe to fail after close")
	}
}

func TestTransport_HandlerCanRepublish(t *testing.T) {
	tr := NewTransport()

	err := tr.Subscribe(context.Background(), "in",
		func(ctx context.Context, data []byte, _ string) {
			if err := tr.Publish(ctx, "out", data); err != nil {
				t.Errorf("nested publish failed: %v", err)
			}
		})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := tr.Publish(context.Background(), "in", []byte("pass-through")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	out := tr.Published("out")
	if len(out) != 1 || string(out[0]) != "pass-through" {
		t.Fatalf("nested publish not recorded: %v", out)
	}
}

func TestWaitForPublished(t *testing.T) {
	tr := NewTransport()

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = tr.Publish(context.Background(), "late", []byte("done"))
	}()

	WaitForPublished(t, tr, "late", 1, time.Second)
	if string(tr.Published("late")[0]) != "done" {
		t.Fatal("unexpected payload")
	}
}
