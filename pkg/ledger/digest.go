package ledger

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/canopy-network/postertoken/pkg/db"
	"golang.org/x/crypto/sha3"
)

// StateDigest hashes the canonical form of the current ledger state:
// accounts, tokens and balances, each in key order. Two stores hold the same
// ledger state iff their digests match. Transaction records are excluded.
func StateDigest(ctx context.Context, q db.LedgerQuerier) (string, error) {
	h := sha3.NewLegacyKeccak256()

	accounts, err := q.ListAccounts(ctx)
	if err != nil {
		return "", fmt.Errorf("list accounts: %w", err)
	}
	for _, a := range accounts {
		_, _ = fmt.Fprintf(h, "A\x00%s\x00%d\n", a.Address, a.Nonce)
	}

	tokens, err := q.ListTokens(ctx)
	if err != nil {
		return "", fmt.Errorf("list tokens: %w", err)
	}
	for _, t := range tokens {
		_, _ = fmt.Fprintf(h, "T\x00%s\x00%s\x00%s\x00%d\x00%s\n", t.Name, t.Creator, t.TotalSupply, t.CreatedHeight, t.CreatedTx)
		balances, err := q.ListTokenBalances(ctx, t.Name)
		if err != nil {
			return "", fmt.Errorf("list balances of %s: %w", t.Name, err)
		}
		for _, b := range balances {
			_, _ = fmt.Fprintf(h, "B\x00%s\x00%s\x00%s\n", b.Token, b.Account, b.Amount)
		}
	}

	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}
