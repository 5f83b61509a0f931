// Package storetest holds the behaviour every LedgerStore must share, run by
// each driver's tests.
package storetest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/interfaces"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/models"
)

var (
	key    = models.ListingKey{Asset: "basic-nft", Item: "0"}
	seller = models.Account("seller")
)

// Run exercises newStore with the shared LedgerStore contract.
func Run(t *testing.T, newStore func(t *testing.T) interfaces.LedgerStore) {
	t.Run("absent keys read as sentinel and zero", func(t *testing.T) {
		store := newStore(t)
		tx := begin(t, store)
		defer tx.Rollback()

		listing, err := tx.Listing(context.Background(), key)
		require.NoError(t, err)
		assert.False(t, listing.IsListed())
		assert.True(t, listing.Price.IsZero())
		assert.Equal(t, models.ZeroAccount, listing.Seller)

		amount, err := tx.Proceeds(context.Background(), seller)
		require.NoError(t, err)
		assert.True(t, amount.IsZero())
	})

	t.Run("commit makes writes visible", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		tx := begin(t, store)
		require.NoError(t, tx.PutListing(ctx, key, models.Listing{Price: decimal.NewFromInt(100), Seller: seller}))
		require.NoError(t, tx.SetProceeds(ctx, seller, decimal.NewFromInt(7)))

		listing, err := tx.Listing(ctx, key)
		require.NoError(t, err)
		assert.True(t, listing.Price.Equal(decimal.NewFromInt(100)), "unit reads its own writes")
		require.NoError(t, tx.Commit())

		tx = begin(t, store)
		defer tx.Rollback()
		listing, err = tx.Listing(ctx, key)
		require.NoError(t, err)
		assert.True(t, listing.Price.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, seller, listing.Seller)

		amount, err := tx.Proceeds(ctx, seller)
		require.NoError(t, err)
		assert.True(t, amount.Equal(decimal.NewFromInt(7)))
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		tx := begin(t, store)
		require.NoError(t, tx.PutListing(ctx, key, models.Listing{Price: decimal.NewFromInt(5), Seller: seller}))
		require.NoError(t, tx.Rollback())

		tx = begin(t, store)
		defer tx.Rollback()
		listing, err := tx.Listing(ctx, key)
		require.NoError(t, err)
		assert.False(t, listing.IsListed())
	})

	t.Run("delete resets to sentinel", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		tx := begin(t, store)
		require.NoError(t, tx.PutListing(ctx, key, models.Listing{Price: decimal.NewFromInt(5), Seller: seller}))
		require.NoError(t, tx.Commit())

		tx = begin(t, store)
		require.NoError(t, tx.DeleteListing(ctx, key))
		require.NoError(t, tx.Commit())

		tx = begin(t, store)
		defer tx.Rollback()
		listing, err := tx.Listing(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, models.ZeroAccount, listing.Seller)
		assert.True(t, listing.Price.IsZero())
	})

	t.Run("rollback to savepoint keeps earlier writes", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		tx := begin(t, store)
		require.NoError(t, tx.SetProceeds(ctx, seller, decimal.NewFromInt(1)))

		sp, err := tx.Savepoint(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.SetProceeds(ctx, seller, decimal.NewFromInt(2)))
		require.NoError(t, tx.PutListing(ctx, key, models.Listing{Price: decimal.NewFromInt(9), Seller: seller}))
		require.NoError(t, tx.RollbackTo(ctx, sp))
		require.NoError(t, tx.Commit())

		tx = begin(t, store)
		defer tx.Rollback()
		amount, err := tx.Proceeds(ctx, seller)
		require.NoError(t, err)
		assert.True(t, amount.Equal(decimal.NewFromInt(1)), "write before the savepoint survives")

		listing, err := tx.Listing(ctx, key)
		require.NoError(t, err)
		assert.False(t, listing.IsListed(), "write after the savepoint is gone")
	})

	t.Run("finished unit refuses writes", func(t *testing.T) {
		store := newStore(t)
		tx := begin(t, store)
		require.NoError(t, tx.Commit())
		assert.Error(t, tx.SetProceeds(context.Background(), seller, decimal.NewFromInt(1)))
	})
}

func begin(t *testing.T, store interfaces.LedgerStore) interfaces.LedgerTx {
	t.Helper()
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	return tx
}
