package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/models/ledger"
)

// workingSet holds the local copies of every record one event reads or
// writes. Nothing reaches the store until changeset() is committed, so a
// rejection at any step discards the working values without side effects.
type workingSet struct {
	reader db.LedgerReader

	accounts     map[string]*ledger.Account
	balances     map[ledger.BalanceKey]*ledger.Balance
	dirtyAccts   []string
	dirtyBals    []ledger.BalanceKey
	markedAccts  map[string]bool
	markedBals   map[ledger.BalanceKey]bool
	createdToken *ledger.Token
}

func newWorkingSet(reader db.LedgerReader) *workingSet {
	return &workingSet{
		reader:      reader,
		accounts:    make(map[string]*ledger.Account),
		balances:    make(map[ledger.BalanceKey]*ledger.Balance),
		markedAccts: make(map[string]bool),
		markedBals:  make(map[ledger.BalanceKey]bool),
	}
}

// resolve returns the account for address, creating a zero-nonce account when
// none is stored. It never returns nil without an error. A freshly created
// account is marked for persistence; whether it is written depends on the
// event reaching commit.
func (w *workingSet) resolve(ctx context.Context, address string) (*ledger.Account, error) {
	if acct, ok := w.accounts[address]; ok {
		return acct, nil
	}
	acct, err := w.reader.GetAccount(ctx, address)
	switch {
	case errors.Is(err, db.ErrNotFound):
		acct = ledger.NewAccount(address)
		w.markAccount(address)
	case err != nil:
		return nil, fmt.Errorf("load account %s: %w", address, err)
	default:
		acct = acct.Clone()
	}
	w.accounts[address] = acct
	return acct, nil
}

// balance returns the working balance for (token, account). When absent and
// create is false it returns nil; when create is true a zero balance is used.
func (w *workingSet) balance(ctx context.Context, token, account string, create bool) (*ledger.Balance, error) {
	key := ledger.BalanceKey{Token: token, Account: account}
	if bal, ok := w.balances[key]; ok {
		return bal, nil
	}
	bal, err := w.reader.GetBalance(ctx, token, account)
	switch {
	case errors.Is(err, db.ErrNotFound):
		if !create {
			return nil, nil
		}
		bal = ledger.NewBalance(token, account)
	case err != nil:
		return nil, fmt.Errorf("load balance %s/%s: %w", token, account, err)
	default:
		bal = bal.Clone()
	}
	w.balances[key] = bal
	return bal, nil
}

func (w *workingSet) markAccount(address string) {
	if w.markedAccts[address] {
		return
	}
	w.markedAccts[address] = true
	w.dirtyAccts = append(w.dirtyAccts, address)
}

// markBalance records a balance write. Call order is write order.
func (w *workingSet) markBalance(key ledger.BalanceKey) {
	if w.markedBals[key] {
		return
	}
	w.markedBals[key] = true
	w.dirtyBals = append(w.dirtyBals, key)
}

// changeset collects the marked records in the order they were marked.
func (w *workingSet) changeset() *db.Changeset {
	cs := &db.Changeset{Token: w.createdToken}
	for _, key := range w.dirtyBals {
		cs.Balances = append(cs.Balances, w.balances[key])
	}
	for _, addr := range w.dirtyAccts {
		cs.Accounts = append(cs.Accounts, w.accounts[addr])
	}
	return cs
}
