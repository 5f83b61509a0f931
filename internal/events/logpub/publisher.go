// Package logpub publishes ledger notifications to the structured log. It is
// used when no broker is configured.
package logpub

import (
	"context"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/interfaces"
)

type Publisher struct {
	logger *zap.Logger
}

func NewPublisher(logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, topic string, key string, event any) error {
	p.logger.Info("notification",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Any("event", event),
	)
	return nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
