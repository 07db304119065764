package chain

import (
	"context"
	"errors"
	"fmt"

	ledgerdb "github.com/canopy-network/postertoken/pkg/db"
	ledgermodels "github.com/canopy-network/postertoken/pkg/db/models/ledger"
)

// ErrAmountOutOfRange is returned for amounts a UInt256 column cannot hold.
var ErrAmountOutOfRange = errors.New("amount outside UInt256 range")

// Commit writes the changeset as Balances, Accounts, Token, Transaction.
// Every row in one changeset shares a version. A failure stops the sequence
// before the Transaction record, so the event is not marked as seen.
func (db *DB) Commit(ctx context.Context, cs *ledgerdb.Changeset) error {
	if cs == nil {
		return nil
	}
	if err := checkAmounts(cs); err != nil {
		return err
	}
	version := db.nextVersion()

	if err := db.insertBalances(ctx, cs.Balances, version); err != nil {
		return fmt.Errorf("save balances: %w", err)
	}
	if err := db.insertAccounts(ctx, cs.Accounts, version); err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}
	if cs.Token != nil {
		if err := db.insertToken(ctx, cs.Token, version); err != nil {
			return fmt.Errorf("save token %s: %w", cs.Token.Name, err)
		}
	}
	if cs.Transaction != nil {
		if err := db.insertTransaction(ctx, cs.Transaction); err != nil {
			return fmt.Errorf("save transaction %s: %w", cs.Transaction.Hash, err)
		}
	}
	return nil
}

// checkAmounts rejects the changeset before anything is written when an
// amount does not fit UInt256. The driver panics on such values.
func checkAmounts(cs *ledgerdb.Changeset) error {
	for _, b := range cs.Balances {
		if !ledgermodels.AmountInRange(b.Amount) {
			return fmt.Errorf("balance %s/%s: %w", b.Token, b.Account, ErrAmountOutOfRange)
		}
	}
	if cs.Token != nil && !ledgermodels.AmountInRange(cs.Token.TotalSupply) {
		return fmt.Errorf("token %s supply: %w", cs.Token.Name, ErrAmountOutOfRange)
	}
	if cs.Transaction != nil && !ledgermodels.AmountInRange(cs.Transaction.Value) {
		return fmt.Errorf("transaction %s value: %w", cs.Transaction.Hash, ErrAmountOutOfRange)
	}
	return nil
}
