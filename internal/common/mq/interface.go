package mq

import (
	"context"
	"time"
)

// MessageQueue is the broker surface used by the message bus.
type MessageQueue interface {
	// Publish publishes a message to the specified topic
	Publish(ctx context.Context, topic string, message *Message) error

	// Subscribe registers handler for topic. Consumption begins on Start.
	Subscribe(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error

	// Start starts consuming messages
	Start() error

	// Stop gracefully stops consuming messages
	Stop() error

	// Ping verifies the broker connection is alive
	Ping(ctx context.Context) error

	// Close stops consumers and closes the producer
	Close() error
}

// Message is one broker record.
type Message struct {
	ID        string            `json:"id"`
	Body      []byte            `json:"body"`
	Headers   map[string]string `json:"headers"`
	Timestamp time.Time         `json:"timestamp"`

	RetryCount int `json:"retry_count"`
}

// HandlerFunc processes one message. A non-nil error triggers a retry.
type HandlerFunc func(ctx context.Context, message *Message) error

// SubscribeOptions defines options for subscribing to a topic
type SubscribeOptions struct {
	// ConsumerGroup is the consumer group name
	ConsumerGroup string

	// Concurrency sets the number of concurrent handlers
	// Default: 1 (keeps per-partition order)
	Concurrency int

	// MaxRetries sets the maximum number of retries for failed messages
	// Default: 3
	MaxRetries int

	// RetryDelay sets the delay between retries
	// Default: 1 second
	RetryDelay time.Duration

	// DeadLetterTopic is where messages go after max retries
	DeadLetterTopic string
}

// SetDefaults sets default values for subscribe options
func (o *SubscribeOptions) SetDefaults() {
	if o.Concurrency == 0 {
		o.Concurrency = 1
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = time.Second
	}
}

// NewMessage creates a new message with the given body
func NewMessage(id string, body []byte) *Message {
	return &Message{
		ID:        id,
		Body:      body,
		Headers:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// SetHeader sets a header value
func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

// GetHeader retrieves a header value
func (m *Message) GetHeader(key string) (string, bool) {
	if m.Headers == nil {
		return "", false
	}
	val, ok := m.Headers[key]
	return val, ok
}
