package bus_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sandgate/internal/bus"
	"sandgate/internal/common/mq"
)

func TestMemoryBusRoundTrip(t *testing.T) {
	t.Parallel()
	b := bus.NewMemoryBus(0)
	ctx := context.Background()

	in := bus.InboundMessage{Channel: "telegram", SenderID: "u1", ChatID: "42", Content: "hi"}
	if err := b.PublishInbound(ctx, in); err != nil {
		t.Fatalf("publish inbound: %v", err)
	}
	got, err := b.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("consume inbound: %v", err)
	}
	if got.Content != "hi" || got.SessionKey() != "telegram:42" {
		t.Fatalf("unexpected inbound: %+v", got)
	}

	if err := b.PublishOutbound(ctx, bus.OutboundMessage{Channel: "telegram", ChatID: "42", Content: "hello"}); err != nil {
		t.Fatalf("publish outbound: %v", err)
	}
	out, err := b.ConsumeOutbound(ctx)
	if err != nil || out.Content != "hello" {
		t.Fatalf("unexpected outbound: %+v, %v", out, err)
	}
}

func TestMemoryBusConsumeHonoursContextAndClose(t *testing.T) {
	t.Parallel()
	b := bus.NewMemoryBus(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := b.ConsumeInbound(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := b.ConsumeOutbound(context.Background())
		errCh <- err
	}()
	_ = b.Close()
	select {
	case err := <-errCh:
		if !errors.Is(err, bus.ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("consumer not woken by Close")
	}
	if err := b.PublishInbound(context.Background(), bus.InboundMessage{}); !errors.Is(err, bus.ErrClosed) {
		t.Fatalf("expected ErrClosed on publish, got %v", err)
	}
}

type fakeQueue struct {
	mu        sync.Mutex
	handlers  map[string]mq.HandlerFunc
	published map[string][]*mq.Message
	started   bool
	closed    bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{handlers: map[string]mq.HandlerFunc{}, published: map[string][]*mq.Message{}}
}

func (q *fakeQueue) Publish(_ context.Context, topic string, m *mq.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published[topic] = append(q.published[topic], m)
	return nil
}

func (q *fakeQueue) Subscribe(_ context.Context, topic string, h mq.HandlerFunc, _ *mq.SubscribeOptions) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = h
	return nil
}

func (q *fakeQueue) Start() error { q.started = true; return nil }
func (q *fakeQueue) Stop() error { return nil }
func (q *fakeQueue) Ping(context.Context) error { return nil }
func (q *fakeQueue) Close() error { q.closed = true; return nil }

func (q *fakeQueue) handler(topic string) mq.HandlerFunc {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.handlers[topic]
}

func TestKafkaBusPublishesKeyedJSON(t *testing.T) {
	t.Parallel()
	q := newFakeQueue()
	b, err := bus.NewKafkaBus(context.Background(), q, bus.KafkaConfig{})
	if err != nil {
		t.Fatalf("new kafka bus: %v", err)
	}
	if !q.started {
		t.Fatalf("queue not started")
	}
	if q.handler("sandgate.inbound") == nil || q.handler("sandgate.outbound") != nil {
		t.Fatalf("unexpected subscriptions: %v", q.handlers)
	}

	err = b.PublishOutbound(context.Background(), bus.OutboundMessage{Channel: "slack", ChatID: "c1", Content: "done"})
	if err != nil {
		t.Fatalf("publish outbound: %v", err)
	}
	msgs := q.published["sandgate.outbound"]
	if len(msgs) != 1 || msgs[0].ID != "slack:c1" {
		t.Fatalf("unexpected published records: %+v", msgs)
	}
	if _, err := b.ConsumeOutbound(context.Background()); err == nil {
		t.Fatalf("expected error consuming a topic that is not subscribed")
	}
}

func TestKafkaBusDeliversSubscribedRecords(t *testing.T) {
	t.Parallel()
	q := newFakeQueue()
	b, err := bus.NewKafkaBus(context.Background(), q, bus.KafkaConfig{InboundTopic: "in"})
	if err != nil {
		t.Fatalf("new kafka bus: %v", err)
	}
	h := q.handler("in")

	handled := make(chan error, 2)
	go func() {
		handled <- h(context.Background(), mq.NewMessage("x", []byte("not json")))
		handled <- h(context.Background(), mq.NewMessage("cli:1", []byte(`{"channel":"cli","chat_id":"1","content":"ping"}`)))
	}()

	msg, err := b.ConsumeInbound(context.Background())
	if err != nil {
		t.Fatalf("consume inbound: %v", err)
	}
	if msg.SessionKey() != "cli:1" || msg.Content != "ping" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	for i := 0; i < 2; i++ {
		if err := <-handled; err != nil {
			t.Fatalf("handler returned %v", err)
		}
	}

	_ = b.Close()
	if !q.closed {
		t.Fatalf("queue not closed")
	}
}
