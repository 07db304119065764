// Package backend selects and opens the configured ledger store.
package backend

import (
	"context"
	"fmt"

	"github.com/canopy-network/postertoken/pkg/config"
	"github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/chain"
	"github.com/canopy-network/postertoken/pkg/db/clickhouse"
	"github.com/canopy-network/postertoken/pkg/db/memory"
	"github.com/canopy-network/postertoken/pkg/db/sqlite"
	"github.com/canopy-network/postertoken/pkg/retry"
	"go.uber.org/zap"
)

// Open returns the store named by cfg.Store. component selects the
// ClickHouse pool profile ("ledger", "query", "audit").
func Open(ctx context.Context, logger *zap.Logger, cfg config.Config, component string) (db.LedgerStore, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("Using the in-memory ledger store; state is lost on exit")
		return memory.New(), nil
	case config.StoreSQLite:
		return sqlite.Open(ctx, logger, cfg.SQLitePath, retry.DefaultConfig())
	case config.StoreClickHouse:
		return chain.New(ctx, logger, cfg.ClickHouseDB, clickhouse.GetPoolConfigForComponent(component))
	default:
		return nil, fmt.Errorf("unknown ledger store %q", cfg.Store)
	}
}
