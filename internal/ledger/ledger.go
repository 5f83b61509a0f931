package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/interfaces"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models/events"
)

// Operation names used for logs and metrics.
const (
	OpList             = "list"
	OpCancel           = "cancel"
	OpBuy              = "buy"
	OpUpdatePrice      = "update_price"
	OpWithdrawProceeds = "withdraw_proceeds"
)

// Ledger is the marketplace state machine. It owns the listing and proceeds
// mappings (through the store) and calls out to the asset registry and the
// value transfer only after its own state for the operation is written.
type Ledger struct {
	store    interfaces.LedgerStore
	registry interfaces.AssetRegistry
	value    interfaces.ValueTransfer
	events   interfaces.EventPublisher
	metrics  interfaces.Metrics
	logger   *zap.Logger
	now      func() time.Time

	// account is the marketplace's own identity at the asset registry; sellers
	// approve it before listing.
	account models.Account

	mu sync.Mutex // one top-level unit at a time
}

type Option func(*Ledger)

func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.events = p }
}

func WithMetrics(m interfaces.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger builds a ledger acting as account at the registry.
func NewLedger(
	store interfaces.LedgerStore,
	registry interfaces.AssetRegistry,
	value interfaces.ValueTransfer,
	account models.Account,
	opts ...Option,
) *Ledger {
	l := &Ledger{
		store:    store,
		registry: registry,
		value:    value,
		account:  account,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Account returns the identity sellers must approve at the registry.
func (l *Ledger) Account() models.Account {
	return l.account
}

// List offers key for sale at price on behalf of caller.
func (l *Ledger) List(ctx context.Context, key models.ListingKey, price decimal.Decimal, caller models.Account) error {
	err := l.run(ctx, func(ctx context.Context, u *unit) error {
		if !models.ValidPrice(price) {
			return &Error{Kind: ErrInvalidPrice, Key: key, Price: price}
		}

		existing, err := u.tx.Listing(ctx, key)
		if err != nil {
			return fmt.Errorf("load listing: %w", err)
		}
		if existing.IsListed() {
			return &Error{Kind: ErrAlreadyListed, Key: key, Price: existing.Price}
		}

		owner, err := l.registry.OwnerOf(ctx, key)
		if err != nil {
			return fmt.Errorf("query owner: %w", err)
		}
		if owner != caller {
			return &Error{Kind: ErrNotOwner, Key: key, Account: caller}
		}

		approved, err := l.registry.GetApproved(ctx, key)
		if err != nil {
			return fmt.Errorf("query approval: %w", err)
		}
		if approved != l.account {
			return &Error{Kind: ErrNotApproved, Key: key, Account: l.account}
		}

		if err := u.tx.PutListing(ctx, key, models.Listing{Price: price, Seller: caller}); err != nil {
			return fmt.Errorf("save listing: %w", err)
		}
		u.emit(events.TopicItemListed, key.String(), events.ItemListed{
			EventID:    uuid.NewString(),
			Asset:      key.Asset,
			Item:       key.Item,
			Seller:     caller.String(),
			Price:      price,
			OccurredAt: l.now().UTC(),
		})
		return nil
	})

	l.finish(ctx, OpList, err,
		zap.String("asset", key.Asset),
		zap.String("item", key.Item),
		zap.String("seller", caller.String()),
		zap.Stringer("price", price),
	)
	return err
}

// Cancel withdraws the seller's offer for key.
func (l *Ledger) Cancel(ctx context.Context, key models.ListingKey, caller models.Account) error {
	err := l.run(ctx, func(ctx context.Context, u *unit) error {
		listing, err := l.listed(ctx, u, key)
		if err != nil {
			return err
		}
		if listing.Seller != caller {
			return &Error{Kind: ErrNotOwner, Key: key, Account: caller}
		}

		if err := u.tx.DeleteListing(ctx, key); err != nil {
			return fmt.Errorf("delete listing: %w", err)
		}
		u.emit(events.TopicItemCanceled, key.String(), events.ItemCanceled{
			EventID:    uuid.NewString(),
			Asset:      key.Asset,
			Item:       key.Item,
			Seller:     caller.String(),
			OccurredAt: l.now().UTC(),
		})
		return nil
	})

	l.finish(ctx, OpCancel, err,
		zap.String("asset", key.Asset),
		zap.String("item", key.Item),
		zap.String("seller", caller.String()),
	)
	return err
}

// Buy settles a purchase of key by buyer who attached paid.
//
// The whole payment is credited to the seller; paying more than the price is
// accepted and the excess stays with the seller. The seller's proceeds and the
// listing are written before the registry is asked to move the item, so a call
// back into the ledger from the transfer already sees the item as sold.
func (l *Ledger) Buy(ctx context.Context, key models.ListingKey, buyer models.Account, paid decimal.Decimal) error {
	var price decimal.Decimal
	err := l.run(ctx, func(ctx context.Context, u *unit) error {
		listing, err := l.listed(ctx, u, key)
		if err != nil {
			return err
		}
		price = listing.Price
		if !models.ValidAmount(paid) || paid.LessThan(listing.Price) {
			return &Error{Kind: ErrPriceNotMet, Key: key, Price: listing.Price, Amount: paid}
		}

		balance, err := u.tx.Proceeds(ctx, listing.Seller)
		if err != nil {
			return fmt.Errorf("load proceeds: %w", err)
		}
		if err := u.tx.SetProceeds(ctx, listing.Seller, balance.Add(paid)); err != nil {
			return fmt.Errorf("credit proceeds: %w", err)
		}
		if err := u.tx.DeleteListing(ctx, key); err != nil {
			return fmt.Errorf("delete listing: %w", err)
		}

		if err := l.registry.TransferFrom(ctx, key, listing.Seller, buyer, l.account); err != nil {
			return &Error{Kind: ErrTransferFailed, Key: key, Account: buyer, Err: err}
		}

		u.emit(events.TopicItemBought, key.String(), events.ItemBought{
			EventID:    uuid.NewString(),
			Asset:      key.Asset,
			Item:       key.Item,
			Buyer:      buyer.String(),
			Price:      listing.Price,
			OccurredAt: l.now().UTC(),
		})
		return nil
	})

	if err == nil && l.metrics != nil {
		l.observe(ctx, err, func() { l.metrics.ObserveSettled(paid) })
	}
	l.finish(ctx, OpBuy, err,
		zap.String("asset", key.Asset),
		zap.String("item", key.Item),
		zap.String("buyer", buyer.String()),
		zap.Stringer("price", price),
		zap.Stringer("paid", paid),
	)
	return err
}

// UpdatePrice changes the price of the seller's active listing.
func (l *Ledger) UpdatePrice(ctx context.Context, key models.ListingKey, newPrice decimal.Decimal, caller models.Account) error {
	err := l.run(ctx, func(ctx context.Context, u *unit) error {
		listing, err := l.listed(ctx, u, key)
		if err != nil {
			return err
		}
		if listing.Seller != caller {
			return &Error{Kind: ErrNotOwner, Key: key, Account: caller}
		}
		if !models.ValidPrice(newPrice) {
			return &Error{Kind: ErrInvalidPrice, Key: key, Price: newPrice}
		}

		listing.Price = newPrice
		if err := u.tx.PutListing(ctx, key, listing); err != nil {
			return fmt.Errorf("save listing: %w", err)
		}
		u.emit(events.TopicItemListed, key.String(), events.ItemListed{
			EventID:    uuid.NewString(),
			Asset:      key.Asset,
			Item:       key.Item,
			Seller:     caller.String(),
			Price:      newPrice,
			OccurredAt: l.now().UTC(),
		})
		return nil
	})

	l.finish(ctx, OpUpdatePrice, err,
		zap.String("asset", key.Asset),
		zap.String("item", key.Item),
		zap.String("seller", caller.String()),
		zap.Stringer("price", newPrice),
	)
	return err
}

// WithdrawProceeds pays caller's whole balance out and returns the amount paid.
// The balance is zeroed before the payout runs; a failed payout restores it.
func (l *Ledger) WithdrawProceeds(ctx context.Context, caller models.Account) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := l.run(ctx, func(ctx context.Context, u *unit) error {
		balance, err := u.tx.Proceeds(ctx, caller)
		if err != nil {
			return fmt.Errorf("load proceeds: %w", err)
		}
		if balance.Sign() <= 0 {
			return &Error{Kind: ErrNoProceeds, Account: caller}
		}

		if err := u.tx.SetProceeds(ctx, caller, decimal.Zero); err != nil {
			return fmt.Errorf("clear proceeds: %w", err)
		}
		if err := l.value.PayTo(ctx, caller, balance); err != nil {
			return &Error{Kind: ErrPayoutFailed, Account: caller, Amount: balance, Err: err}
		}
		amount = balance
		return nil
	})

	if err == nil && l.metrics != nil {
		l.observe(ctx, err, func() { l.metrics.ObserveWithdrawn(amount) })
	}
	l.finish(ctx, OpWithdrawProceeds, err,
		zap.String("account", caller.String()),
		zap.Stringer("amount", amount),
	)
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// GetListing returns the listing for key, or the sentinel when it is not for sale.
func (l *Ledger) GetListing(ctx context.Context, key models.ListingKey) (models.Listing, error) {
	var listing models.Listing
	err := l.run(ctx, func(ctx context.Context, u *unit) error {
		var err error
		listing, err = u.tx.Listing(ctx, key)
		return err
	})
	if err != nil {
		return models.NotListed(), err
	}
	return listing, nil
}

// GetProceeds returns the withdrawable balance of account.
func (l *Ledger) GetProceeds(ctx context.Context, account models.Account) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.run(ctx, func(ctx context.Context, u *unit) error {
		var err error
		balance, err = u.tx.Proceeds(ctx, account)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (l *Ledger) listed(ctx context.Context, u *unit, key models.ListingKey) (models.Listing, error) {
	listing, err := u.tx.Listing(ctx, key)
	if err != nil {
		return models.Listing{}, fmt.Errorf("load listing: %w", err)
	}
	if !listing.IsListed() {
		return models.Listing{}, &Error{Kind: ErrNotListed, Key: key}
	}
	return listing, nil
}

// finish records the outcome of op. Inside a nested unit the record waits for
// the top-level unit, and is dropped if op's writes are rolled back.
func (l *Ledger) finish(ctx context.Context, op string, err error, fields ...zap.Field) {
	l.observe(ctx, err, func() {
		if l.metrics != nil {
			l.metrics.ObserveOperation(op, err)
		}

		fields = append(fields, zap.String("operation", op))
		if err != nil {
			l.logger.Warn("operation rejected", append(fields, zap.String("kind", KindName(err)), zap.Error(err))...)
			return
		}
		l.logger.Info("operation applied", fields...)
	})
}
