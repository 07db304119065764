package chain

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	ledgerdb "github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/clickhouse"
	ledgermodels "github.com/canopy-network/postertoken/pkg/db/models/ledger"
)

func (db *DB) initBalances(ctx context.Context) error {
	query := db.createTableQuery(ledgermodels.BalancesTableName, ledgermodels.BalanceColumns,
		db.Engine(clickhouse.ReplacingMergeTree, "version"), "token", "account")
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", ledgermodels.BalancesTableName, err)
	}
	return nil
}

// insertBalances appends the balances as a single insert block, in slice order.
func (db *DB) insertBalances(ctx context.Context, balances []*ledgermodels.Balance, version uint64) error {
	if len(balances) == 0 {
		return nil
	}
	batch, err := db.PrepareBatch(ctx, db.insertQuery(ledgermodels.BalancesTableName, ledgermodels.BalanceColumns))
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, b := range balances {
		if err := batch.Append(b.Token, b.Account, b.Amount, version); err != nil {
			return err
		}
	}
	return batch.Send()
}

// GetBalance returns the newest amount held by account in token.
func (db *DB) GetBalance(ctx context.Context, token, account string) (*ledgermodels.Balance, error) {
	var b ledgermodels.Balance
	query := fmt.Sprintf(`
		SELECT token, account, amount
		FROM "%s"."%s" FINAL
		WHERE token = ? AND account = ?
		LIMIT 1
	`, db.Name, ledgermodels.BalancesTableName)
	err := db.QueryRow(db.readCtx(ctx), query, token, account).Scan(&b.Token, &b.Account, &b.Amount)
	if clickhouse.IsNoRows(err) {
		return nil, ledgerdb.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &b, nil
}

// ListTokenBalances returns every holder of token ordered by account.
func (db *DB) ListTokenBalances(ctx context.Context, token string) ([]ledgermodels.Balance, error) {
	var out []ledgermodels.Balance
	query := fmt.Sprintf(`
		SELECT token, account, amount
		FROM "%s"."%s" FINAL
		WHERE token = ?
		ORDER BY account
	`, db.Name, ledgermodels.BalancesTableName)
	if err := db.SelectWithFinal(db.readCtx(ctx), &out, query, token); err != nil {
		return nil, fmt.Errorf("list token balances: %w", err)
	}
	return out, nil
}

// ListAccountBalances returns every balance of address ordered by token.
func (db *DB) ListAccountBalances(ctx context.Context, address string) ([]ledgermodels.Balance, error) {
	var out []ledgermodels.Balance
	query := fmt.Sprintf(`
		SELECT token, account, amount
		FROM "%s"."%s" FINAL
		WHERE account = ?
		ORDER BY token
	`, db.Name, ledgermodels.BalancesTableName)
	if err := db.SelectWithFinal(db.readCtx(ctx), &out, query, address); err != nil {
		return nil, fmt.Errorf("list account balances: %w", err)
	}
	return out, nil
}
