package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"sandgate/internal/bus"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConsoleRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := bus.NewMemoryBus(4)
	defer b.Close()

	out := &lockedBuffer{}
	go runConsole(ctx, b, strings.NewReader("hello\n\n  \n"), out)

	msg, err := b.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("consume inbound: %v", err)
	}
	if msg.SessionKey() != "cli:direct" || msg.Content != "hello" {
		t.Fatalf("unexpected inbound: %+v", msg)
	}

	if err := b.PublishOutbound(ctx, bus.OutboundMessage{Channel: "telegram", ChatID: "1", Content: "elsewhere"}); err != nil {
		t.Fatalf("publish outbound: %v", err)
	}
	if err := b.PublishOutbound(ctx, bus.OutboundMessage{Channel: "cli", ChatID: "direct", Content: "hi there"}); err != nil {
		t.Fatalf("publish outbound: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "hi there") {
		if time.Now().After(deadline) {
			t.Fatalf("reply not printed, got %q", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if strings.Contains(out.String(), "elsewhere") {
		t.Fatalf("foreign channel reply printed: %q", out.String())
	}
}
