package mq

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	appErr "sandgate/pkg/errors"
	"sandgate/pkg/utils/logger"

	"github.com/segmentio/kafka-go"
	"github.com/zeromicro/go-zero/core/threading"
	"go.uber.org/zap"
)

const (
	headerID         = "x-message-id"
	headerTimestamp  = "x-message-ts"
	headerRetryCount = "x-message-retry"

	fetchBackoff = 100 * time.Millisecond
)

// KafkaConfig defines configuration for Kafka implementation.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"clientID"`

	// Producer settings
	RequiredAcks int           `yaml:"requiredAcks"`
	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`

	// Consumer settings
	MinBytes int           `yaml:"minBytes"`
	MaxBytes int           `yaml:"maxBytes"`
	MaxWait  time.Duration `yaml:"maxWait"`

	DialTimeout time.Duration `yaml:"dialTimeout"`
}

// KafkaQueue implements MessageQueue using Kafka.
type KafkaQueue struct {
	config KafkaConfig
	writer *kafka.Writer
	dialer *kafka.Dialer
	log    *zap.Logger

	mu            sync.Mutex
	subscriptions []*kafkaSubscription
	started       bool
	closed        bool
}

type kafkaSubscription struct {
	topic   string
	handler HandlerFunc
	opts    SubscribeOptions
	baseCtx context.Context

	reader *kafka.Reader
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewKafkaQueue creates a Kafka-backed message queue.
func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, appErr.InvalidParam("kafka.brokers", "is required")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = int(kafka.RequireOne)
	}

	dialer := &kafka.Dialer{
		ClientID:  cfg.ClientID,
		Timeout:   cfg.DialTimeout,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, address)
			},
			ClientID: cfg.ClientID,
		},
	}

	return &KafkaQueue{
		config: cfg,
		writer: writer,
		dialer: dialer,
		log:    logger.Named("kafka"),
	}, nil
}

// Publish publishes a message to a topic. The message ID is the record key,
// so messages sharing an ID land on one partition in order.
func (k *KafkaQueue) Publish(ctx context.Context, topic string, message *Message) error {
	if message == nil {
		return appErr.InvalidParam("message", "is nil")
	}
	if topic == "" {
		return appErr.InvalidParam("topic", "is required")
	}
	if err := k.writer.WriteMessages(ctx, toKafkaMessage(topic, message)); err != nil {
		return appErr.Wrapf(err, appErr.QueueError, "publish to %s failed: %v", topic, err)
	}
	return nil
}

// Subscribe subscribes to a topic.
func (k *KafkaQueue) Subscribe(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error {
	if topic == "" {
		return appErr.InvalidParam("topic", "is required")
	}
	if handler == nil {
		return appErr.InvalidParam("handler", "is required")
	}
	var options SubscribeOptions
	if opts != nil {
		options = *opts
	}
	options.SetDefaults()
	if options.ConsumerGroup == "" {
		options.ConsumerGroup = fmt.Sprintf("sandgate-%s", topic)
	}

	sub := &kafkaSubscription{
		topic:   topic,
		handler: handler,
		opts:    options,
		baseCtx: ctx,
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return errClosed()
	}
	k.subscriptions = append(k.subscriptions, sub)
	if k.started {
		k.startSubscription(sub)
	}
	return nil
}

// Start starts consuming messages for all subscriptions.
func (k *KafkaQueue) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return errClosed()
	}
	if k.started {
		return nil
	}
	for _, sub := range k.subscriptions {
		k.startSubscription(sub)
	}
	k.started = true
	return nil
}

// Stop stops all consumers gracefully.
func (k *KafkaQueue) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, sub := range k.subscriptions {
		if sub.cancel != nil {
			sub.cancel()
		}
	}
	for _, sub := range k.subscriptions {
		sub.wg.Wait()
		if sub.reader != nil {
			_ = sub.reader.Close()
			sub.reader = nil
		}
	}
	k.started = false
	return nil
}

// Ping succeeds when any configured broker accepts a connection.
func (k *KafkaQueue) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range k.config.Brokers {
		conn, err := k.dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return appErr.Wrapf(lastErr, appErr.QueueError, "no kafka broker reachable: %v", lastErr)
}

func errClosed() error {
	return appErr.New(appErr.QueueError).WithMessage("message queue is closed")
}

// Close closes the producer and stops consumers.
func (k *KafkaQueue) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	_ = k.Stop()
	return k.writer.Close()
}

func (k *KafkaQueue) startSubscription(sub *kafkaSubscription) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.config.Brokers,
		Topic:       sub.topic,
		GroupID:     sub.opts.ConsumerGroup,
		Dialer:      k.dialer,
		MinBytes:    k.config.MinBytes,
		MaxBytes:    k.config.MaxBytes,
		MaxWait:     k.config.MaxWait,
		StartOffset: kafka.LastOffset,
	})
	sub.reader = reader
	if sub.baseCtx == nil {
		sub.baseCtx = context.Background()
	}
	sub.ctx, sub.cancel = context.WithCancel(sub.baseCtx)

	msgCh := make(chan kafka.Message, sub.opts.Concurrency)
	sub.wg.Add(1)
	threading.GoSafe(func() {
		defer sub.wg.Done()
		defer close(msgCh)
		k.fetchLoop(sub, msgCh)
	})

	for i := 0; i < sub.opts.Concurrency; i++ {
		sub.wg.Add(1)
		threading.GoSafe(func() {
			defer sub.wg.Done()
			for msg := range msgCh {
				k.handleMessage(sub, msg)
			}
		})
	}
}

func (k *KafkaQueue) fetchLoop(sub *kafkaSubscription, out chan<- kafka.Message) {
	for {
		msg, err := sub.reader.FetchMessage(sub.ctx)
		if err != nil {
			if sub.ctx.Err() != nil {
				return
			}
			k.log.Warn("kafka fetch failed", zap.String("topic", sub.topic), zap.Error(err))
			if !sleepCtx(sub.ctx, fetchBackoff) {
				return
			}
			continue
		}
		select {
		case out <- msg:
		case <-sub.ctx.Done():
			return
		}
	}
}

// sleepCtx waits for d and reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (k *KafkaQueue) handleMessage(sub *kafkaSubscription, msg kafka.Message) {
	m := fromKafkaMessage(msg)
	for {
		err := sub.handler(sub.ctx, m)
		if err == nil {
			break
		}
		m.RetryCount++
		if m.RetryCount > sub.opts.MaxRetries {
			k.log.Error("kafka handler gave up",
				zap.String("topic", sub.topic), zap.String("id", m.ID), zap.Error(err))
			if sub.opts.DeadLetterTopic != "" {
				if err := k.Publish(sub.ctx, sub.opts.DeadLetterTopic, m); err != nil {
					k.log.Error("kafka dead letter publish failed",
						zap.String("topic", sub.opts.DeadLetterTopic), zap.String("id", m.ID), zap.Error(err))
				}
			}
			break
		}
		if !sleepCtx(sub.ctx, sub.opts.RetryDelay) {
			return
		}
	}
	if err := sub.reader.CommitMessages(sub.ctx, msg); err != nil && sub.ctx.Err() == nil {
		k.log.Warn("kafka commit failed", zap.String("topic", sub.topic), zap.Error(err))
	}
}

func toKafkaMessage(topic string, message *Message) kafka.Message {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	headers := make([]kafka.Header, 0, len(message.Headers)+3)
	for k, v := range message.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if message.ID != "" {
		headers = append(headers, kafka.Header{Key: headerID, Value: []byte(message.ID)})
	}
	headers = append(headers, kafka.Header{Key: headerTimestamp, Value: []byte(message.Timestamp.Format(time.RFC3339Nano))})
	if message.RetryCount != 0 {
		headers = append(headers, kafka.Header{Key: headerRetryCount, Value: []byte(strconv.Itoa(message.RetryCount))})
	}

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(message.ID),
		Value:   message.Body,
		Headers: headers,
		Time:    message.Timestamp,
	}
}

func fromKafkaMessage(msg kafka.Message) *Message {
	m := &Message{
		Body:      msg.Value,
		Headers:   make(map[string]string),
		Timestamp: msg.Time,
	}
	for _, h := range msg.Headers {
		switch h.Key {
		case headerID:
			m.ID = string(h.Value)
		case headerTimestamp:
			if ts, err := time.Parse(time.RFC3339Nano, string(h.Value)); err == nil {
				m.Timestamp = ts
			}
		case headerRetryCount:
			if v, err := strconv.Atoi(string(h.Value)); err == nil && v >= 0 {
				m.RetryCount = v
			}
		default:
			m.Headers[h.Key] = string(h.Value)
		}
	}
	if m.ID == "" {
		m.ID = string(msg.Key)
	}
	return m
}
