package chain

import (
	"context"
	"fmt"

	ledgerdb "github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/clickhouse"
	ledgermodels "github.com/canopy-network/postertoken/pkg/db/models/ledger"
)

func (db *DB) initTokens(ctx context.Context) error {
	query := db.createTableQuery(ledgermodels.TokensTableName, ledgermodels.TokenColumns,
		db.Engine(clickhouse.ReplacingMergeTree, "version"), "name")
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", ledgermodels.TokensTableName, err)
	}
	return nil
}

// insertToken writes a token row. Tokens are immutable, the engine guarantees
// the name is unused before it gets here.
func (db *DB) insertToken(ctx context.Context, t *ledgermodels.Token, version uint64) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (name, creator, total_supply, created_height, created_tx, version) VALUES (?, ?, ?, ?, ?, ?)`,
		db.Name, ledgermodels.TokensTableName)
	return db.Exec(ctx, query, t.Name, t.Creator, t.TotalSupply, t.CreatedHeight, t.CreatedTx, version)
}

// GetToken returns the token by name.
func (db *DB) GetToken(ctx context.Context, name string) (*ledgermodels.Token, error) {
	var t ledgermodels.Token
	query := fmt.Sprintf(`
		SELECT name, creator, total_supply, created_height, created_tx
		FROM "%s"."%s" FINAL
		WHERE name = ?
		LIMIT 1
	`, db.Name, ledgermodels.TokensTableName)
	err := db.QueryRow(db.readCtx(ctx), query, name).Scan(&t.Name, &t.Creator, &t.TotalSupply, &t.CreatedHeight, &t.CreatedTx)
	if clickhouse.IsNoRows(err) {
		return nil, ledgerdb.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}

// ListTokens returns every token ordered by name.
func (db *DB) ListTokens(ctx context.Context) ([]ledgermodels.Token, error) {
	var out []ledgermodels.Token
	query := fmt.Sprintf(`
		SELECT name, creator, total_supply, created_height, created_tx
		FROM "%s"."%s" FINAL
		ORDER BY name
	`, db.Name, ledgermodels.TokensTableName)
	if err := db.SelectWithFinal(db.readCtx(ctx), &out, query); err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return out, nil
}
