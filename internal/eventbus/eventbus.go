// Package eventbus implements the Event Bus Adapter: segmentio/kafka-go
// publish/subscribe over the core's topics, redis/go-redis/v9-backed
// duplicate-delivery suppression, and a dead-letter topic for messages
// a subscriber permanently fails to process.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/paynet/nexus-clearing/internal/corerr"
	"github.com/paynet/nexus-clearing/internal/telemetry/log"
)

// Core topic names (§4.6).
const (
	TopicWindowClosed          = "clearing.window.closed"
	TopicSettlementRequested   = "clearing.settlement.requested"
	TopicSettlementCompleted   = "settlement.completed"
	TopicReconciliationTier1   = "reconciliation.tier1"
	TopicReconciliationEOD     = "reconciliation.eod"
	TopicReconciliationBreaker = "reconciliation.circuit_breaker"
	TopicDLQ                   = "dlq.failed"
)

// Retention classifies how long a topic's messages are kept by the
// broker. It is a label only: Publisher and Subscriber do not read it,
// and the broker-side policy itself is infrastructure configuration
// outside this module.
type Retention string

const (
	RetentionHot  Retention = "hot"  // seconds-to-minutes: window/settlement control topics
	RetentionWarm Retention = "warm" // hours: reconciliation alerts
	RetentionCold Retention = "cold" // days: EOD statements, DLQ
)

// AckResult is a subscriber handler's verdict on one message.
type AckResult int

const (
	// Ok commits the message's offset.
	Ok AckResult = iota
	// TransientErr leaves the offset uncommitted for redelivery.
	TransientErr
	// PermanentErr commits the offset and republishes the message to
	// the DLQ topic instead of redelivering it forever.
	PermanentErr
)

// Handler processes one message and reports how to acknowledge it.
type Handler func(ctx context.Context, key string, value []byte) AckResult

// Publisher writes events to Kafka topics.
type Publisher struct {
	brokers []string
	writers map[string]*kafka.Writer
}

// NewPublisher constructs a Publisher against brokers, lazily creating
// one kafka.Writer per topic on first use.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{brokers: brokers, writers: map[string]*kafka.Writer{}}
}

func (p *Publisher) writerFor(topic string) *kafka.Writer {
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	p.writers[topic] = w
	return w
}

// Publish marshals payload as JSON and writes it to topic keyed by key
// (e.g. a window id or payment id, for partition locality).
func (p *Publisher) Publish(ctx context.Context, topic, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return corerr.Wrap(corerr.KindValidation, "marshal event payload", err)
	}
	msg := kafka.Message{Key: []byte(key), Value: body, Time: time.Now()}
	if err := p.writerFor(topic).WriteMessages(ctx, msg); err != nil {
		return corerr.Wrap(corerr.KindTransientInfra, "publish to "+topic, err)
	}
	return nil
}

// PublishDLQ republishes a permanently failed message to the DLQ topic,
// tagged with the topic it originally failed on.
func (p *Publisher) PublishDLQ(ctx context.Context, originalTopic, key string, value []byte, reason string) error {
	envelope := struct {
		OriginalTopic string          `json:"original_topic"`
		Reason        string          `json:"reason"`
		Payload       json.RawMessage `json:"payload"`
	}{OriginalTopic: originalTopic, Reason: reason, Payload: value}
	return p.Publish(ctx, TopicDLQ, key, envelope)
}

// Close flushes and closes every writer the Publisher has opened.
func (p *Publisher) Close() error {
	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Dedup suppresses redelivered messages using Redis SETNX with a
// TTL counted from a key's first sighting, grounded on the standard exactly-once-ish
// consumer idempotency pattern.
type Dedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDedup constructs a Dedup with the given TTL window (5 minutes
// by default per §4.6).
func NewDedup(client *redis.Client, ttl time.Duration) *Dedup {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Dedup{client: client, ttl: ttl}
}

// SeenBefore reports whether dedupKey has already been processed
// within the window, atomically marking it seen if not (SETNX).
func (d *Dedup) SeenBefore(ctx context.Context, dedupKey string) (bool, error) {
	set, err := d.client.SetNX(ctx, "eba:dedup:"+dedupKey, 1, d.ttl).Result()
	if err != nil {
		return false, corerr.Wrap(corerr.KindTransientInfra, "dedup check", err)
	}
	return !set, nil
}

// Subscriber consumes one topic with explicit offset commit, dedup
// suppression, and DLQ routing for permanently failed messages.
type Subscriber struct {
	reader    *kafka.Reader
	publisher *Publisher
	dedup     *Dedup
	topic     string
}

// NewSubscriber constructs a Subscriber for topic within consumer
// group groupID.
func NewSubscriber(brokers []string, topic, groupID string, publisher *Publisher, dedup *Dedup) *Subscriber {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  200 * time.Millisecond,
	})
	return &Subscriber{reader: reader, publisher: publisher, dedup: dedup, topic: topic}
}

// Run consumes messages until ctx is cancelled, dispatching each to
// handler, committing on Ok, leaving the offset uncommitted for
// redelivery on TransientErr, and routing to the DLQ on PermanentErr.
func (s *Subscriber) Run(ctx context.Context, handler Handler) error {
	logger := log.For("eventbus").Sugar()
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return corerr.Wrap(corerr.KindTransientInfra, "fetch message", err)
		}

		dedupKey := s.topic + "|" + string(msg.Key)
		if s.dedup != nil {
			seen, err := s.dedup.SeenBefore(ctx, dedupKey)
			if err != nil {
				logger.Warnw("dedup check failed, processing anyway", "topic", s.topic, "err", err)
			} else if seen {
				_ = s.reader.CommitMessages(ctx, msg)
				continue
			}
		}

		switch handler(ctx, string(msg.Key), msg.Value) {
		case Ok:
			if err := s.reader.CommitMessages(ctx, msg); err != nil {
				logger.Errorw("commit failed", "topic", s.topic, "err", err)
			}
		case TransientErr:
			logger.Warnw("transient handler failure, leaving uncommitted for redelivery", "topic", s.topic)
			if s.dedup != nil {
				_ = s.dedup.client.Del(ctx, "eba:dedup:"+dedupKey).Err()
			}
		case PermanentErr:
			if s.publisher != nil {
				if err := s.publisher.PublishDLQ(ctx, s.topic, string(msg.Key), msg.Value, "permanent handler failure"); err != nil {
					logger.Errorw("failed to route message to DLQ", "topic", s.topic, "err", err)
				}
			}
			if err := s.reader.CommitMessages(ctx, msg); err != nil {
				logger.Errorw("commit after DLQ route failed", "topic", s.topic, "err", err)
			}
		}
	}
}

// Close closes the underlying reader.
func (s *Subscriber) Close() error {
	return s.reader.Close()
}
