package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/interfaces"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models/events"
)

// unit is one open unit of work. It travels in the context handed to the asset
// registry and the value transfer so that a call back into the ledger joins it
// instead of waiting on the lock held by the caller.
type unit struct {
	owner    *Ledger
	tx       interfaces.LedgerTx
	pending  []events.Notification
	observed []observation
	done     bool
}

// observation is the metrics and log record of a nested operation, held until
// the top-level unit settles.
type observation struct {
	applied bool
	record  func()
}

type unitKey struct{}

func (l *Ledger) unitFrom(ctx context.Context) *unit {
	u, ok := ctx.Value(unitKey{}).(*unit)
	if !ok || u.owner != l || u.done {
		return nil
	}
	return u
}

func (u *unit) emit(topic, key string, event any) {
	u.pending = append(u.pending, events.Notification{Topic: topic, Key: key, Event: event})
}

// dropApplied forgets the applied observations from index from on; their
// writes were rolled back. Rejections stay: they were returned to a caller.
func (u *unit) dropApplied(from int) {
	kept := u.observed[:from]
	for _, o := range u.observed[from:] {
		if !o.applied {
			kept = append(kept, o)
		}
	}
	u.observed = kept
}

// observe records an operation outcome now, or queues it on the open unit
// when the operation ran nested inside another one.
func (l *Ledger) observe(ctx context.Context, err error, record func()) {
	if u := l.unitFrom(ctx); u != nil {
		u.observed = append(u.observed, observation{applied: err == nil, record: record})
		return
	}
	record()
}

// run executes fn as one all-or-nothing unit.
//
// Top-level calls are serialized on l.mu; fn's writes commit only if fn returns
// nil, and notifications are published after the commit. A re-entrant call runs
// fn inside the caller's unit behind a savepoint: on failure only its own
// writes and notifications are discarded.
func (l *Ledger) run(ctx context.Context, fn func(ctx context.Context, u *unit) error) error {
	if u := l.unitFrom(ctx); u != nil {
		return l.runNested(ctx, u, fn)
	}

	u, err := l.runTop(ctx, fn)
	if u == nil {
		return err
	}
	if err != nil {
		u.dropApplied(0)
	} else {
		l.publish(ctx, u.pending)
	}
	for _, o := range u.observed {
		o.record()
	}
	return err
}

// runTop returns the finished unit, also on failure, so that queued nested
// observations can be settled by the caller.
func (l *Ledger) runTop(ctx context.Context, fn func(ctx context.Context, u *unit) error) (*unit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin unit: %w", err)
	}

	u := &unit{owner: l, tx: tx}
	defer func() { u.done = true }()

	if err := fn(context.WithValue(ctx, unitKey{}, u), u); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			l.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return u, err
	}
	if err := tx.Commit(); err != nil {
		l.logger.Error("commit failed after unit completed", zap.Error(err))
		return u, fmt.Errorf("commit unit: %w", err)
	}
	return u, nil
}

func (l *Ledger) runNested(ctx context.Context, u *unit, fn func(ctx context.Context, u *unit) error) error {
	sp, err := u.tx.Savepoint(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	mark := len(u.pending)
	observedMark := len(u.observed)

	if err := fn(ctx, u); err != nil {
		if rbErr := u.tx.RollbackTo(ctx, sp); rbErr != nil {
			l.logger.Error("rollback to savepoint failed", zap.Error(rbErr))
		}
		u.pending = u.pending[:mark]
		u.dropApplied(observedMark)
		return err
	}
	return nil
}

func (l *Ledger) publish(ctx context.Context, pending []events.Notification) {
	if l.events == nil {
		return
	}
	for _, n := range pending {
		if err := l.events.Publish(ctx, n.Topic, n.Key, n.Event); err != nil {
			l.logger.Warn("notification dropped",
				zap.String("topic", n.Topic),
				zap.String("key", n.Key),
				zap.Error(err),
			)
		}
	}
}
