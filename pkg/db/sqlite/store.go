// Package sqlite provides an embedded, transactional ledger store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/models/ledger"
	"github.com/canopy-network/postertoken/pkg/db/sqlite/migrations"
	"github.com/canopy-network/postertoken/pkg/retry"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store persists ledger state in SQLite. Commit runs in one SQL transaction,
// so a changeset is applied entirely or not at all.
type Store struct {
	sqlDB  *sql.DB
	logger *zap.Logger
}

var _ db.LedgerStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, logger *zap.Logger, path string, retryCfg retry.Config) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	var sqlDB *sql.DB
	err := retry.WithBackoff(ctx, retryCfg, logger, "sqlite_open", func() error {
		conn, err := sql.Open("sqlite", dsn)
		if err != nil {
			return retry.Permanent(fmt.Errorf("open sqlite db: %w", err))
		}
		// One writer; a single connection also keeps reads consistent with the last commit.
		conn.SetMaxOpenConns(1)
		if err := conn.PingContext(ctx); err != nil {
			_ = conn.Close()
			return fmt.Errorf("ping sqlite db: %w", err)
		}
		if err := applyMigrations(ctx, conn, migrations.FS); err != nil {
			_ = conn.Close()
			return retry.Permanent(fmt.Errorf("run migrations: %w", err))
		}
		sqlDB = conn
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("SQLite ledger store ready", zap.String("path", path))
	return &Store{sqlDB: sqlDB, logger: logger}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func (s *Store) GetAccount(ctx context.Context, address string) (*ledger.Account, error) {
	var nonce int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT nonce FROM accounts WHERE address = ?`, address).Scan(&nonce)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &ledger.Account{Address: address, Nonce: uint64(nonce)}, nil
}

func (s *Store) GetToken(ctx context.Context, name string) (*ledger.Token, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT name, creator, total_supply, created_height, created_tx FROM tokens WHERE name = ?`, name)
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

func (s *Store) GetBalance(ctx context.Context, token, account string) (*ledger.Balance, error) {
	var amount string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT amount FROM balances WHERE token = ? AND account = ?`, token, account).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	v, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	return &ledger.Balance{Token: token, Account: account, Amount: v}, nil
}

func (s *Store) HasTransaction(ctx context.Context, hash string) (bool, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(1) FROM transactions WHERE hash = ?`, hash).Scan(&n); err != nil {
		return false, fmt.Errorf("has transaction: %w", err)
	}
	return n > 0, nil
}

func (s *Store) GetTransaction(ctx context.Context, hash string) (*ledger.Transaction, error) {
	var (
		t     ledger.Transaction
		value string
		ts    int64
		block int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT hash, from_address, to_address, value, timestamp, block_number, content, status, reason
		FROM transactions WHERE hash = ?`, hash,
	).Scan(&t.Hash, &t.From, &t.To, &value, &ts, &block, &t.Content, &t.Status, &t.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if t.Value, err = parseAmount(value); err != nil {
		return nil, err
	}
	t.Timestamp = uint64(ts)
	t.BlockNumber = uint64(block)
	return &t, nil
}

// Commit writes the changeset in one transaction. Inserting a token that
// already exists fails the whole commit.
func (s *Store) Commit(ctx context.Context, cs *db.Changeset) error {
	if cs == nil {
		return nil
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, b := range cs.Balances {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO balances (token, account, amount) VALUES (?, ?, ?)
			ON CONFLICT (token, account) DO UPDATE SET amount = excluded.amount`,
			b.Token, b.Account, b.Amount.String(),
		); err != nil {
			return fmt.Errorf("save balance %s/%s: %w", b.Token, b.Account, err)
		}
	}
	for _, a := range cs.Accounts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (address, nonce) VALUES (?, ?)
			ON CONFLICT (address) DO UPDATE SET nonce = excluded.nonce`,
			a.Address, int64(a.Nonce),
		); err != nil {
			return fmt.Errorf("save account %s: %w", a.Address, err)
		}
	}
	if t := cs.Token; t != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tokens (name, creator, total_supply, created_height, created_tx) VALUES (?, ?, ?, ?, ?)`,
			t.Name, t.Creator, t.TotalSupply.String(), int64(t.CreatedHeight), t.CreatedTx,
		); err != nil {
			return fmt.Errorf("save token %s: %w", t.Name, err)
		}
	}
	if t := cs.Transaction; t != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (hash, from_address, to_address, value, timestamp, block_number, content, status, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Hash, t.From, t.To, t.Value.String(), int64(t.Timestamp), int64(t.BlockNumber), t.Content, t.Status, t.Reason,
		); err != nil {
			return fmt.Errorf("save transaction %s: %w", t.Hash, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT address, nonce FROM accounts ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		var (
			a     ledger.Account
			nonce int64
		)
		if err := rows.Scan(&a.Address, &nonce); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Nonce = uint64(nonce)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListTokens(ctx context.Context) ([]ledger.Token, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT name, creator, total_supply, created_height, created_tx FROM tokens ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var out []ledger.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) ListTokenBalances(ctx context.Context, token string) ([]ledger.Balance, error) {
	return s.listBalances(ctx, `SELECT token, account, amount FROM balances WHERE token = ? ORDER BY account`, token)
}

func (s *Store) ListAccountBalances(ctx context.Context, address string) ([]ledger.Balance, error) {
	return s.listBalances(ctx, `SELECT token, account, amount FROM balances WHERE account = ? ORDER BY token`, address)
}

func (s *Store) listBalances(ctx context.Context, query string, arg string) ([]ledger.Balance, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var out []ledger.Balance
	for rows.Next() {
		var (
			b      ledger.Balance
			amount string
		)
		if err := rows.Scan(&b.Token, &b.Account, &amount); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		if b.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*ledger.Token, error) {
	var (
		t       ledger.Token
		supply  string
		created int64
	)
	if err := row.Scan(&t.Name, &t.Creator, &supply, &created, &t.CreatedTx); err != nil {
		return nil, err
	}
	v, err := parseAmount(supply)
	if err != nil {
		return nil, err
	}
	t.TotalSupply = v
	t.CreatedHeight = uint64(created)
	return &t, nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt amount %q", s)
	}
	return v, nil
}
