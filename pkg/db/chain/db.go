// Package chain is the ClickHouse ledger store. Each entity lives in a
// ReplacingMergeTree table; reads use FINAL so a key resolves to its newest row.
package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ledgerdb "github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/clickhouse"
	ledgermodels "github.com/canopy-network/postertoken/pkg/db/models/ledger"
	"go.uber.org/zap"
)

// DB implements db.LedgerStore on top of a ClickHouse database.
// ClickHouse has no multi-table transactions, so Commit writes the changeset
// in its documented order instead of atomically.
type DB struct {
	clickhouse.Client
	Name string

	lastVersion atomic.Uint64
}

var _ ledgerdb.LedgerStore = (*DB)(nil)

// New connects to ClickHouse, creates dbName and its tables if needed and
// switches the connection pool to it.
func New(ctx context.Context, logger *zap.Logger, dbName string, poolConfig *clickhouse.PoolConfig) (*DB, error) {
	name := clickhouse.SanitizeName(dbName)

	client, err := clickhouse.New(ctx, logger.With(
		zap.String("db", name),
		zap.String("component", poolConfig.Component),
	), name, poolConfig)
	if err != nil {
		return nil, err
	}

	ledgerDB := &DB{Client: client, Name: name}
	if err := ledgerDB.InitializeDB(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := ledgerDB.SwitchToTargetDatabase(ctx); err != nil {
		return nil, err
	}
	if err := ledgerDB.seedVersion(ctx); err != nil {
		_ = ledgerDB.Close()
		return nil, err
	}
	return ledgerDB, nil
}

// NewWithSharedClient wraps an existing connection pool. The database and
// tables must already exist.
func NewWithSharedClient(client clickhouse.Client, dbName string) *DB {
	return &DB{Client: client, Name: clickhouse.SanitizeName(dbName)}
}

// InitializeDB creates the database and all ledger tables in parallel.
func (db *DB) InitializeDB(ctx context.Context) error {
	start := time.Now()

	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}

	initOps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{ledgermodels.AccountsTableName, db.initAccounts},
		{ledgermodels.TokensTableName, db.initTokens},
		{ledgermodels.BalancesTableName, db.initBalances},
		{ledgermodels.TransactionsTableName, db.initTransactions},
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(initOps))
	for _, op := range initOps {
		wg.Add(1)
		go func(name string, fn func(context.Context) error) {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errChan <- fmt.Errorf("init %s: %w", name, err)
			}
		}(op.name, op.fn)
	}
	wg.Wait()
	close(errChan)

	for err := range errChan {
		return err
	}

	db.Logger.Info("Ledger database initialization complete",
		zap.String("database", db.Name),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.Db.Ping(ctx)
}

// createTableQuery renders the CREATE TABLE statement for a ledger table.
func (db *DB) createTableQuery(table string, columns []ledgermodels.ColumnDef, engine string, orderBy ...string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" %s (
			%s
		) ENGINE = %s
		ORDER BY (%s)
	`, db.Name, table, db.OnCluster(), ledgermodels.ColumnsToSchemaSQL(columns), engine, strings.Join(orderBy, ", "))
}

// insertQuery renders the INSERT prefix used with PrepareBatch.
func (db *DB) insertQuery(table string, columns []ledgermodels.ColumnDef) string {
	return fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`,
		db.Name, table, strings.Join(ledgermodels.ColumnsToNameList(columns), ", "))
}

// readCtx makes reads on a cluster wait for the replica to catch up with
// every insert already acknowledged elsewhere.
func (db *DB) readCtx(ctx context.Context) context.Context {
	if db.Cluster == "" {
		return ctx
	}
	return clickhouse.WithSequentialConsistency(ctx)
}

// seedVersion raises the version floor to the newest versioned row already
// stored, so rows written after a restart outrank earlier ones even when the
// wall clock has moved backwards.
func (db *DB) seedVersion(ctx context.Context) error {
	query := fmt.Sprintf(`SELECT greatest(
		(SELECT max(version) FROM "%[1]s"."%[2]s"),
		(SELECT max(version) FROM "%[1]s"."%[3]s"),
		(SELECT max(version) FROM "%[1]s"."%[4]s"))`,
		db.Name, ledgermodels.BalancesTableName, ledgermodels.AccountsTableName, ledgermodels.TokensTableName)

	var stored uint64
	if err := db.QueryRow(db.readCtx(ctx), query).Scan(&stored); err != nil {
		return fmt.Errorf("load last version: %w", err)
	}
	db.raiseVersion(stored)
	db.Logger.Debug("Seeded row version", zap.String("database", db.Name), zap.Uint64("version", stored))
	return nil
}

func (db *DB) raiseVersion(v uint64) {
	for {
		last := db.lastVersion.Load()
		if v <= last || db.lastVersion.CompareAndSwap(last, v) {
			return
		}
	}
}

// nextVersion returns a strictly increasing row version: the wall clock, or
// one past the last version handed out or seeded when the clock is behind it.
func (db *DB) nextVersion() uint64 {
	now := uint64(time.Now().UnixNano())
	for {
		last := db.lastVersion.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if db.lastVersion.CompareAndSwap(last, next) {
			return next
		}
	}
}
