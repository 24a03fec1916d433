// Package bus carries chat messages between channel connectors and the
// agent proxy.
package bus

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by every operation on a closed bus.
var ErrClosed = errors.New("message bus closed")

// InboundMessage arrives from a chat channel.
type InboundMessage struct {
	Channel   string            `json:"channel"`
	SenderID  string            `json:"sender_id"`
	ChatID    string            `json:"chat_id"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Media     []string          `json:"media,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SessionKey returns "channel:chat_id".
func (m InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// OutboundMessage is a reply routed back to a chat channel.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	ReplyTo  string            `json:"reply_to,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MessageBus decouples connectors from the agent side. Consume calls block
// until a message arrives, ctx ends or the bus is closed.
type MessageBus interface {
	PublishInbound(ctx context.Context, msg InboundMessage) error
	ConsumeInbound(ctx context.Context) (InboundMessage, error)
	PublishOutbound(ctx context.Context, msg OutboundMessage) error
	ConsumeOutbound(ctx context.Context) (OutboundMessage, error)
	Close() error
}
