package db

import (
	"context"
	"errors"

	"github.com/canopy-network/postertoken/pkg/db/models/ledger"
)

// ErrNotFound is returned by point lookups when the entity does not exist.
var ErrNotFound = errors.New("not found")

// LedgerReader exposes the point lookups the transition engine needs.
type LedgerReader interface {
	GetAccount(ctx context.Context, address string) (*ledger.Account, error)
	GetToken(ctx context.Context, name string) (*ledger.Token, error)
	GetBalance(ctx context.Context, token, account string) (*ledger.Balance, error)
	HasTransaction(ctx context.Context, hash string) (bool, error)
}

// LedgerWriter persists the result of one event.
type LedgerWriter interface {
	Commit(ctx context.Context, cs *Changeset) error
}

// LedgerQuerier exposes the listing operations used by the query API, the auditor and replay.
// Listings are ordered by their keys so that output is stable.
type LedgerQuerier interface {
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
	ListTokens(ctx context.Context) ([]ledger.Token, error)
	ListTokenBalances(ctx context.Context, token string) ([]ledger.Balance, error)
	ListAccountBalances(ctx context.Context, address string) ([]ledger.Balance, error)
	GetTransaction(ctx context.Context, hash string) (*ledger.Transaction, error)
}

// LedgerStore is implemented by every ledger backend (memory, sqlite, clickhouse).
type LedgerStore interface {
	LedgerReader
	LedgerWriter
	LedgerQuerier
	Ping(ctx context.Context) error
	Close() error
}
