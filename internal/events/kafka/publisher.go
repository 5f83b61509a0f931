package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/nft-marketplace-ledger/internal/interfaces"
)

// Publisher writes ledger notifications to Kafka, one topic per notification
// kind, keyed by listing so that events of one item stay ordered.
//
// Writes are asynchronous: Publish only enqueues, and delivery failures are
// logged from the writer's completion callback.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, logger *zap.Logger) *Publisher {
	return &Publisher{writer: newWriter(brokers, logger)}
}

func newWriter(brokers []string, logger *zap.Logger) *kafka.Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err == nil {
				return
			}
			for _, m := range messages {
				logger.Warn("notification delivery failed",
					zap.String("topic", m.Topic),
					zap.String("key", string(m.Key)),
					zap.Error(err),
				)
			}
		},
	}
}

// Publish enqueues the event and returns without waiting for the broker.
func (p *Publisher) Publish(ctx context.Context, topic string, key string, event any) error {
	msg, err := message(topic, key, event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func message(topic string, key string, event any) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s event: %w", topic, err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}, nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
