package bus

import (
	"context"
	"encoding/json"
	"sync"

	"sandgate/internal/common/mq"
	appErr "sandgate/pkg/errors"
	"sandgate/pkg/utils/logger"

	"go.uber.org/zap"
)

// KafkaConfig names the topics used by KafkaBus.
type KafkaConfig struct {
	InboundTopic  string `yaml:"inboundTopic"`
	OutboundTopic string `yaml:"outboundTopic"`
	ConsumerGroup string `yaml:"consumerGroup"`
	// ConsumeOutbound subscribes to the outbound topic as well. Only
	// processes that deliver replies to channels need it.
	ConsumeOutbound bool `yaml:"consumeOutbound"`
	// ConsumeInbound defaults to true in ApplyDefaults.
	ConsumeInbound *bool `yaml:"consumeInbound"`
}

func (c *KafkaConfig) ApplyDefaults() {
	if c.InboundTopic == "" {
		c.InboundTopic = "sandgate.inbound"
	}
	if c.OutboundTopic == "" {
		c.OutboundTopic = "sandgate.outbound"
	}
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "sandgate-gateway"
	}
	if c.ConsumeInbound == nil {
		v := true
		c.ConsumeInbound = &v
	}
}

// KafkaBus carries messages as JSON records. Subscriptions feed unbuffered
// channels, so a record is committed only after a consumer took it.
type KafkaBus struct {
	queue    mq.MessageQueue
	cfg      KafkaConfig
	inbound  chan InboundMessage
	outbound chan OutboundMessage
	done     chan struct{}
	once     sync.Once
}

// NewKafkaBus subscribes to the configured topics and starts the queue.
func NewKafkaBus(ctx context.Context, queue mq.MessageQueue, cfg KafkaConfig) (*KafkaBus, error) {
	cfg.ApplyDefaults()
	b := &KafkaBus{
		queue:    queue,
		cfg:      cfg,
		inbound:  make(chan InboundMessage),
		outbound: make(chan OutboundMessage),
		done:     make(chan struct{}),
	}
	opts := &mq.SubscribeOptions{ConsumerGroup: cfg.ConsumerGroup}
	if *cfg.ConsumeInbound {
		if err := queue.Subscribe(ctx, cfg.InboundTopic, b.handleInbound, opts); err != nil {
			return nil, appErr.Wrapf(err, appErr.QueueError, "subscribe %s failed: %v", cfg.InboundTopic, err)
		}
	}
	if cfg.ConsumeOutbound {
		if err := queue.Subscribe(ctx, cfg.OutboundTopic, b.handleOutbound, opts); err != nil {
			return nil, appErr.Wrapf(err, appErr.QueueError, "subscribe %s failed: %v", cfg.OutboundTopic, err)
		}
	}
	if err := queue.Start(); err != nil {
		return nil, appErr.Wrapf(err, appErr.QueueError, "start message queue failed: %v", err)
	}
	return b, nil
}

func (b *KafkaBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	return b.publish(ctx, b.cfg.InboundTopic, msg.SessionKey(), msg)
}

func (b *KafkaBus) PublishOutbound(ctx context.Context, msg OutboundMessage) error {
	return b.publish(ctx, b.cfg.OutboundTopic, msg.Channel+":"+msg.ChatID, msg)
}

func (b *KafkaBus) ConsumeInbound(ctx context.Context) (InboundMessage, error) {
	if !*b.cfg.ConsumeInbound {
		return InboundMessage{}, appErr.Newf(appErr.QueueError, "inbound consumption is disabled")
	}
	return receive(ctx, b.done, b.inbound)
}

func (b *KafkaBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, error) {
	if !b.cfg.ConsumeOutbound {
		return OutboundMessage{}, appErr.Newf(appErr.QueueError, "outbound consumption is disabled")
	}
	return receive(ctx, b.done, b.outbound)
}

func (b *KafkaBus) Close() error {
	b.once.Do(func() { close(b.done) })
	return b.queue.Close()
}

// publish keys records by session so one chat stays on one partition.
func (b *KafkaBus) publish(ctx context.Context, topic, key string, v any) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	body, err := json.Marshal(v)
	if err != nil {
		return appErr.Wrapf(err, appErr.QueueError, "encode message failed")
	}
	if err := b.queue.Publish(ctx, topic, mq.NewMessage(key, body)); err != nil {
		return appErr.Wrapf(err, appErr.QueueError, "publish to %s failed: %v", topic, err)
	}
	return nil
}

func (b *KafkaBus) handleInbound(ctx context.Context, m *mq.Message) error {
	var msg InboundMessage
	if err := json.Unmarshal(m.Body, &msg); err != nil {
		logger.Warn(ctx, "dropping undecodable inbound record", zap.String("id", m.ID), zap.Error(err))
		return nil
	}
	return send(ctx, b.done, b.inbound, msg)
}

func (b *KafkaBus) handleOutbound(ctx context.Context, m *mq.Message) error {
	var msg OutboundMessage
	if err := json.Unmarshal(m.Body, &msg); err != nil {
		logger.Warn(ctx, "dropping undecodable outbound record", zap.String("id", m.ID), zap.Error(err))
		return nil
	}
	return send(ctx, b.done, b.outbound, msg)
}
