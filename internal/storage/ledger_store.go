// Package storage selects the LedgerStore implementation named by config.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/config"
	interfaces "github.com/sheikh-saqib/nft-marketplace-ledger/internal/interfaces"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/storage/leveldb"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/nft-marketplace-ledger/internal/storage/postgres"
)

// Open builds the store for cfg.StoreDriver. The postgres schema is migrated
// on open.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (interfaces.LedgerStore, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Info("using in-memory ledger store")
		return memory.NewMemoryLedgerStore(), nil

	case config.DriverLevelDB:
		store, err := leveldb.Open(cfg.LevelDBPath)
		if err != nil {
			return nil, err
		}
		logger.Info("using leveldb ledger store", zap.String("path", cfg.LevelDBPath))
		return store, nil

	case config.DriverPostgres:
		store, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Info("using postgres ledger store")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
