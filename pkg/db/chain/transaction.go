package chain

import (
	"context"
	"fmt"

	ledgerdb "github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/clickhouse"
	ledgermodels "github.com/canopy-network/postertoken/pkg/db/models/ledger"
)

// initTransactions creates the transaction log. Rows are deduplicated by hash.
func (db *DB) initTransactions(ctx context.Context) error {
	query := db.createTableQuery(ledgermodels.TransactionsTableName, ledgermodels.TransactionColumns,
		db.Engine(clickhouse.ReplacingMergeTree, ""), "hash")
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", ledgermodels.TransactionsTableName, err)
	}
	return nil
}

func (db *DB) insertTransaction(ctx context.Context, t *ledgermodels.Transaction) error {
	query := db.insertQuery(ledgermodels.TransactionsTableName, ledgermodels.TransactionColumns)
	query = query + " (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	return db.Exec(ctx, query,
		t.Hash, t.From, t.To, t.Value, t.Timestamp, t.BlockNumber, t.Content, t.Status, t.Reason)
}

// HasTransaction reports whether the event hash has been recorded.
func (db *DB) HasTransaction(ctx context.Context, hash string) (bool, error) {
	var count uint64
	query := fmt.Sprintf(`SELECT count() FROM "%s"."%s" WHERE hash = ?`, db.Name, ledgermodels.TransactionsTableName)
	if err := db.QueryRow(db.readCtx(ctx), query, hash).Scan(&count); err != nil {
		return false, fmt.Errorf("has transaction: %w", err)
	}
	return count > 0, nil
}

// GetTransaction returns the recorded event.
func (db *DB) GetTransaction(ctx context.Context, hash string) (*ledgermodels.Transaction, error) {
	var t ledgermodels.Transaction
	query := fmt.Sprintf(`
		SELECT hash, from_address, to_address, value, timestamp, block_number, content, status, reason
		FROM "%s"."%s" FINAL
		WHERE hash = ?
		LIMIT 1
	`, db.Name, ledgermodels.TransactionsTableName)
	err := db.QueryRow(db.readCtx(ctx), query, hash).Scan(
		&t.Hash, &t.From, &t.To, &t.Value, &t.Timestamp, &t.BlockNumber, &t.Content, &t.Status, &t.Reason,
	)
	if clickhouse.IsNoRows(err) {
		return nil, ledgerdb.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}
