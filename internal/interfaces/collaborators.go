package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models"
)

// AssetRegistry is the external authority over item ownership.
type AssetRegistry interface {
	OwnerOf(ctx context.Context, key models.ListingKey) (models.Account, error)
	// GetApproved returns models.ZeroAccount when no spender is approved.
	GetApproved(ctx context.Context, key models.ListingKey) (models.Account, error)
	// TransferFrom moves key from one account to another on behalf of operator.
	TransferFrom(ctx context.Context, key models.ListingKey, from, to, operator models.Account) error
}

// ValueTransfer pays withdrawn proceeds out to their owner.
type ValueTransfer interface {
	PayTo(ctx context.Context, payee models.Account, amount decimal.Decimal) error
}

// Metrics observes ledger outcomes.
type Metrics interface {
	ObserveOperation(operation string, err error)
	ObserveSettled(amount decimal.Decimal)
	ObserveWithdrawn(amount decimal.Decimal)
}
