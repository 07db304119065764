package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/models/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.GetAccount(ctx, "a")
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = s.GetToken(ctx, "GOLD")
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = s.GetBalance(ctx, "GOLD", "a")
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = s.GetTransaction(ctx, "0x1")
	assert.ErrorIs(t, err, db.ErrNotFound)
	seen, err := s.HasTransaction(ctx, "0x1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestStoreCommitAndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, &db.Changeset{
		Balances: []*ledger.Balance{
			{Token: "GOLD", Account: "b", Amount: big.NewInt(300)},
			{Token: "GOLD", Account: "a", Amount: big.NewInt(700)},
			{Token: "SILVER", Account: "a", Amount: big.NewInt(5)},
		},
		Accounts:    []*ledger.Account{{Address: "b"}, {Address: "a", Nonce: 2}},
		Token:       &ledger.Token{Name: "GOLD", Creator: "a", TotalSupply: big.NewInt(1000)},
		Transaction: &ledger.Transaction{Hash: "0x1", Value: new(big.Int), Status: "applied"},
	}))

	accounts, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "a", accounts[0].Address)
	assert.Equal(t, uint64(2), accounts[0].Nonce)

	gold, err := s.ListTokenBalances(ctx, "GOLD")
	require.NoError(t, err)
	require.Len(t, gold, 2)
	assert.Equal(t, "a", gold[0].Account)
	assert.Equal(t, "700", gold[0].Amount.String())

	mine, err := s.ListAccountBalances(ctx, "a")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "GOLD", mine[0].Token)
	assert.Equal(t, "SILVER", mine[1].Token)

	seen, err := s.HasTransaction(ctx, "0x1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestStoreReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, &db.Changeset{
		Balances: []*ledger.Balance{{Token: "GOLD", Account: "a", Amount: big.NewInt(10)}},
	}))

	b, err := s.GetBalance(ctx, "GOLD", "a")
	require.NoError(t, err)
	b.Amount.SetInt64(-99)

	again, err := s.GetBalance(ctx, "GOLD", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(10), again.Amount.Int64())
}

func TestStoreCommitCancelled(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Commit(ctx, &db.Changeset{Token: &ledger.Token{Name: "GOLD"}})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.GetToken(context.Background(), "GOLD")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestStoreReadsDuringCommit(t *testing.T) {
	s := New()
	ctx := context.Background()
	const rounds = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= rounds; i++ {
			assert.NoError(t, s.Commit(ctx, &db.Changeset{
				Balances: []*ledger.Balance{
					{Token: "GOLD", Account: "0xa", Amount: big.NewInt(int64(i))},
					{Token: "GOLD", Account: "0xb", Amount: big.NewInt(int64(1000 - i))},
				},
				Transaction: &ledger.Transaction{Hash: fmt.Sprintf("0x%d", i), Value: new(big.Int)},
			}))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= rounds; i++ {
				list, err := s.ListTokenBalances(ctx, "GOLD")
				assert.NoError(t, err)
				if len(list) == 2 {
					sum := new(big.Int).Add(list[0].Amount, list[1].Amount)
					assert.Equal(t, int64(1000), sum.Int64())
				}

				seen, err := s.HasTransaction(ctx, fmt.Sprintf("0x%d", i))
				assert.NoError(t, err)
				if seen {
					b, err := s.GetBalance(ctx, "GOLD", "0xa")
					if assert.NoError(t, err) {
						assert.GreaterOrEqual(t, b.Amount.Int64(), int64(i))
					}
				}
			}
		}()
	}
	wg.Wait()
}
