package sqlite

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/models/ledger"
	"github.com/canopy-network/postertoken/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testRetry() retry.Config {
	return retry.Config{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(context.Background(), zaptest.NewLogger(t), path, testRetry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func goldChangeset() *db.Changeset {
	huge, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	return &db.Changeset{
		Balances: []*ledger.Balance{{Token: "GOLD", Account: "0xa", Amount: huge}},
		Accounts: []*ledger.Account{{Address: "0xa", Nonce: 1}},
		Token:    &ledger.Token{Name: "GOLD", Creator: "0xa", TotalSupply: huge, CreatedHeight: 7, CreatedTx: "0x1"},
		Transaction: &ledger.Transaction{
			Hash: "0x1", From: "0xa", To: "0xposter", Value: big.NewInt(0),
			Timestamp: 1700000000, BlockNumber: 7, Content: `{"operation":"CREATE"}`, Status: "applied",
		},
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), nil, "  ", testRetry())
	assert.Error(t, err)
}

func TestCommitAndRead(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	cs := goldChangeset()
	require.NoError(t, s.Commit(ctx, cs))

	acct, err := s.GetAccount(ctx, "0xa")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), acct.Nonce)

	tok, err := s.GetToken(ctx, "GOLD")
	require.NoError(t, err)
	assert.Equal(t, cs.Token.TotalSupply.String(), tok.TotalSupply.String())
	assert.Equal(t, uint64(7), tok.CreatedHeight)

	bal, err := s.GetBalance(ctx, "GOLD", "0xa")
	require.NoError(t, err)
	assert.Equal(t, cs.Token.TotalSupply.String(), bal.Amount.String())

	rec, err := s.GetTransaction(ctx, "0x1")
	require.NoError(t, err)
	assert.Equal(t, "applied", rec.Status)
	assert.Equal(t, uint64(1700000000), rec.Timestamp)

	seen, err := s.HasTransaction(ctx, "0x1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestNotFound(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetAccount(ctx, "0xa")
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = s.GetToken(ctx, "GOLD")
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = s.GetBalance(ctx, "GOLD", "0xa")
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = s.GetTransaction(ctx, "0x1")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestCommitIsAtomic(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, goldChangeset()))

	// A second token row for GOLD violates the primary key; the balance
	// update ahead of it must roll back too.
	err := s.Commit(ctx, &db.Changeset{
		Balances:    []*ledger.Balance{{Token: "GOLD", Account: "0xb", Amount: big.NewInt(5)}},
		Token:       &ledger.Token{Name: "GOLD", Creator: "0xb", TotalSupply: big.NewInt(5)},
		Transaction: &ledger.Transaction{Hash: "0x2", Value: big.NewInt(0), Status: "applied"},
	})
	require.Error(t, err)

	_, err = s.GetBalance(ctx, "GOLD", "0xb")
	assert.ErrorIs(t, err, db.ErrNotFound)
	seen, err := s.HasTransaction(ctx, "0x2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestListingsAndReopen(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, &db.Changeset{
		Balances: []*ledger.Balance{
			{Token: "GOLD", Account: "0xb", Amount: big.NewInt(300)},
			{Token: "GOLD", Account: "0xa", Amount: big.NewInt(700)},
			{Token: "IRON", Account: "0xa", Amount: big.NewInt(1)},
		},
		Accounts: []*ledger.Account{{Address: "0xb"}, {Address: "0xa", Nonce: 3}},
		Token:    &ledger.Token{Name: "GOLD", Creator: "0xa", TotalSupply: big.NewInt(1000)},
	}))
	require.NoError(t, s.Close())

	// migrations are idempotent and data survives reopening
	s2, err := Open(ctx, zaptest.NewLogger(t), path, testRetry())
	require.NoError(t, err)
	defer s2.Close()

	accounts, err := s2.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "0xa", accounts[0].Address)
	assert.Equal(t, uint64(3), accounts[0].Nonce)

	tokens, err := s2.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	gold, err := s2.ListTokenBalances(ctx, "GOLD")
	require.NoError(t, err)
	require.Len(t, gold, 2)
	assert.Equal(t, "0xa", gold[0].Account)
	assert.Equal(t, "700", gold[0].Amount.String())

	mine, err := s2.ListAccountBalances(ctx, "0xa")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "GOLD", mine[0].Token)
	assert.Equal(t, "IRON", mine[1].Token)
}

func TestExtractUpMigration(t *testing.T) {
	assert.Equal(t, "\nCREATE x;\n", extractUpMigration("-- +migrate Up\nCREATE x;\n-- +migrate Down\nDROP x;"))
	assert.Equal(t, "CREATE y;", extractUpMigration("CREATE y;"))
}
