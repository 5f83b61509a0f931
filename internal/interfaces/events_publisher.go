package interfaces

import "context"

// EventPublisher delivers ledger notifications. Delivery is fire-and-forget from
// the ledger's point of view: a publish error never fails the operation.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}
