package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models"
)

// LedgerStore owns the listing and proceeds mappings.
type LedgerStore interface {
	// Begin opens a unit of work. Nothing written through the returned LedgerTx
	// is visible to other units until Commit.
	Begin(ctx context.Context) (LedgerTx, error)
	Close() error
}

// LedgerTx reads and writes the two mappings inside one unit of work.
// Reads observe the unit's own earlier writes.
type LedgerTx interface {
	// Listing returns the sentinel from models.NotListed when the key is absent.
	Listing(ctx context.Context, key models.ListingKey) (models.Listing, error)
	PutListing(ctx context.Context, key models.ListingKey, listing models.Listing) error
	DeleteListing(ctx context.Context, key models.ListingKey) error

	// Proceeds returns zero for accounts never credited.
	Proceeds(ctx context.Context, account models.Account) (decimal.Decimal, error)
	SetProceeds(ctx context.Context, account models.Account, amount decimal.Decimal) error

	// Savepoint marks the current state; RollbackTo discards every write made
	// after the mark while keeping the unit open.
	Savepoint(ctx context.Context) (int, error)
	RollbackTo(ctx context.Context, savepoint int) error

	Commit() error
	Rollback() error
}
