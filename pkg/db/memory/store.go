// Package memory is an in-process ledger store used by tests and the replay tool.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/models/ledger"
	"github.com/puzpuzpuz/xsync/v4"
)

// Store keeps every entity kind in its own concurrent map. Point reads load
// straight from the maps. Commit and the listings share mu, so a listing never
// observes half of a changeset. Commit stores the transaction record last,
// so a hash reported as seen implies its balances are already visible.
type Store struct {
	mu           sync.RWMutex
	accounts     *xsync.Map[string, *ledger.Account]
	tokens       *xsync.Map[string, *ledger.Token]
	balances     *xsync.Map[ledger.BalanceKey, *ledger.Balance]
	transactions *xsync.Map[string, *ledger.Transaction]
}

var _ db.LedgerStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts:     xsync.NewMap[string, *ledger.Account](),
		tokens:       xsync.NewMap[string, *ledger.Token](),
		balances:     xsync.NewMap[ledger.BalanceKey, *ledger.Balance](),
		transactions: xsync.NewMap[string, *ledger.Transaction](),
	}
}

func (s *Store) GetAccount(_ context.Context, address string) (*ledger.Account, error) {
	if a, ok := s.accounts.Load(address); ok {
		return a.Clone(), nil
	}
	return nil, db.ErrNotFound
}

func (s *Store) GetToken(_ context.Context, name string) (*ledger.Token, error) {
	if t, ok := s.tokens.Load(name); ok {
		return t.Clone(), nil
	}
	return nil, db.ErrNotFound
}

func (s *Store) GetBalance(_ context.Context, token, account string) (*ledger.Balance, error) {
	if b, ok := s.balances.Load(ledger.BalanceKey{Token: token, Account: account}); ok {
		return b.Clone(), nil
	}
	return nil, db.ErrNotFound
}

func (s *Store) HasTransaction(_ context.Context, hash string) (bool, error) {
	_, ok := s.transactions.Load(hash)
	return ok, nil
}

func (s *Store) GetTransaction(_ context.Context, hash string) (*ledger.Transaction, error) {
	if t, ok := s.transactions.Load(hash); ok {
		return t.Clone(), nil
	}
	return nil, db.ErrNotFound
}

// Commit stores clones of every record in cs.
func (s *Store) Commit(ctx context.Context, cs *db.Changeset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cs == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range cs.Balances {
		s.balances.Store(b.Key(), b.Clone())
	}
	for _, a := range cs.Accounts {
		s.accounts.Store(a.Address, a.Clone())
	}
	if cs.Token != nil {
		s.tokens.Store(cs.Token.Name, cs.Token.Clone())
	}
	if cs.Transaction != nil {
		s.transactions.Store(cs.Transaction.Hash, cs.Transaction.Clone())
	}
	return nil
}

func (s *Store) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0, s.accounts.Size())
	s.accounts.Range(func(_ string, a *ledger.Account) bool {
		out = append(out, *a.Clone())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (s *Store) ListTokens(_ context.Context) ([]ledger.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Token, 0, s.tokens.Size())
	s.tokens.Range(func(_ string, t *ledger.Token) bool {
		out = append(out, *t.Clone())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListTokenBalances(_ context.Context, token string) ([]ledger.Balance, error) {
	return s.listBalances(func(k ledger.BalanceKey) bool { return k.Token == token }), nil
}

func (s *Store) ListAccountBalances(_ context.Context, address string) ([]ledger.Balance, error) {
	return s.listBalances(func(k ledger.BalanceKey) bool { return k.Account == address }), nil
}

func (s *Store) listBalances(match func(ledger.BalanceKey) bool) []ledger.Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Balance, 0)
	s.balances.Range(func(k ledger.BalanceKey, b *ledger.Balance) bool {
		if match(k) {
			out = append(out, *b.Clone())
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Token != out[j].Token {
			return out[i].Token < out[j].Token
		}
		return out[i].Account < out[j].Account
	})
	return out
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
