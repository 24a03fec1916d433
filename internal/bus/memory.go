package bus

import (
	"context"
	"sync"
)

// DefaultBufferSize is the per-direction channel capacity.
const DefaultBufferSize = 100

// MemoryBus is an in-process bus backed by buffered channels.
type MemoryBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
	done     chan struct{}
	once     sync.Once
}

func NewMemoryBus(size int) *MemoryBus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &MemoryBus{
		inbound:  make(chan InboundMessage, size),
		outbound: make(chan OutboundMessage, size),
		done:     make(chan struct{}),
	}
}

func (b *MemoryBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	return send(ctx, b.done, b.inbound, msg)
}

func (b *MemoryBus) ConsumeInbound(ctx context.Context) (InboundMessage, error) {
	return receive(ctx, b.done, b.inbound)
}

func (b *MemoryBus) PublishOutbound(ctx context.Context, msg OutboundMessage) error {
	return send(ctx, b.done, b.outbound, msg)
}

func (b *MemoryBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, error) {
	return receive(ctx, b.done, b.outbound)
}

// Close wakes every blocked caller. Buffered messages are dropped.
func (b *MemoryBus) Close() error {
	b.once.Do(func() { close(b.done) })
	return nil
}

func send[T any](ctx context.Context, done <-chan struct{}, ch chan<- T, v T) error {
	select {
	case <-done:
		return ErrClosed
	default:
	}
	select {
	case ch <- v:
		return nil
	case <-done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func receive[T any](ctx context.Context, done <-chan struct{}, ch <-chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
