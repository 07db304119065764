package db

import (
	"github.com/canopy-network/postertoken/pkg/db/models/ledger"
)

// Changeset is every write produced by one event.
//
// Backends with transactions apply it atomically. Backends without them must
// write in this order: Balances (in slice order), Accounts, Token, Transaction.
// The engine places debits before credits and the token row after its initial
// balance, so an interrupted write leaves at worst a missed credit and no
// Transaction record, which makes the event eligible for redelivery.
type Changeset struct {
	Balances    []*ledger.Balance
	Accounts    []*ledger.Account
	Token       *ledger.Token
	Transaction *ledger.Transaction
}

// Empty reports whether the changeset carries no ledger mutation.
// The transaction record alone does not count.
func (c *Changeset) Empty() bool {
	return c == nil || (len(c.Balances) == 0 && len(c.Accounts) == 0 && c.Token == nil)
}
