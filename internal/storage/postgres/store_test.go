package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/interfaces"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/storage/storetest"
)

// Runs against a disposable database named by POSTGRES_TEST_DSN.
func TestPostgresLedgerStore(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) interfaces.LedgerStore {
		store, err := Open(dsn)
		require.NoError(t, err)
		require.NoError(t, store.Migrate(context.Background()))
		_, err = store.db.Exec(`TRUNCATE listings, proceeds`)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestSavepointNameIsQuoted(t *testing.T) {
	require.Equal(t, `"ledger_sp_3"`, savepointName(3))
}
