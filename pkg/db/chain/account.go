package chain

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	ledgerdb "github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/clickhouse"
	ledgermodels "github.com/canopy-network/postertoken/pkg/db/models/ledger"
)

func (db *DB) initAccounts(ctx context.Context) error {
	query := db.createTableQuery(ledgermodels.AccountsTableName, ledgermodels.AccountColumns,
		db.Engine(clickhouse.ReplacingMergeTree, "version"), "address")
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", ledgermodels.AccountsTableName, err)
	}
	return nil
}

// insertAccounts appends a new version of each account in one block.
func (db *DB) insertAccounts(ctx context.Context, accounts []*ledgermodels.Account, version uint64) error {
	if len(accounts) == 0 {
		return nil
	}
	batch, err := db.PrepareBatch(ctx, db.insertQuery(ledgermodels.AccountsTableName, ledgermodels.AccountColumns))
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, a := range accounts {
		if err := batch.Append(a.Address, a.Nonce, version); err != nil {
			return err
		}
	}
	return batch.Send()
}

// GetAccount returns the newest version of the account.
func (db *DB) GetAccount(ctx context.Context, address string) (*ledgermodels.Account, error) {
	var a ledgermodels.Account
	query := fmt.Sprintf(`SELECT address, nonce FROM "%s"."%s" FINAL WHERE address = ? LIMIT 1`,
		db.Name, ledgermodels.AccountsTableName)
	err := db.QueryRow(db.readCtx(ctx), query, address).Scan(&a.Address, &a.Nonce)
	if clickhouse.IsNoRows(err) {
		return nil, ledgerdb.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// ListAccounts returns every account ordered by address.
func (db *DB) ListAccounts(ctx context.Context) ([]ledgermodels.Account, error) {
	var out []ledgermodels.Account
	query := fmt.Sprintf(`SELECT address, nonce FROM "%s"."%s" FINAL ORDER BY address`,
		db.Name, ledgermodels.AccountsTableName)
	if err := db.SelectWithFinal(db.readCtx(ctx), &out, query); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

