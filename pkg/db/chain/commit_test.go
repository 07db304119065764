package chain

import (
	"context"
	"database/sql"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	ledgerdb "github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/clickhouse"
	ledgermodels "github.com/canopy-network/postertoken/pkg/db/models/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errInsertFailed = errors.New("insert failed")

// recordingConn records every statement in the order it reaches the server.
// The statement with index failOn (zero based) fails; -1 never fails.
type recordingConn struct {
	driver.Conn

	statements []string
	args       [][]any
	batches    []*recordingBatch
	ctxs       []context.Context
	failOn     int
	row        driver.Row
}

func newRecordingConn() *recordingConn {
	return &recordingConn{failOn: -1}
}

func (c *recordingConn) record(query string, args []any) error {
	c.statements = append(c.statements, query)
	c.args = append(c.args, args)
	if len(c.statements)-1 == c.failOn {
		return errInsertFailed
	}
	return nil
}

func (c *recordingConn) PrepareBatch(_ context.Context, query string, _ ...driver.PrepareBatchOption) (driver.Batch, error) {
	if err := c.record(query, nil); err != nil {
		return nil, err
	}
	b := &recordingBatch{}
	c.batches = append(c.batches, b)
	return b, nil
}

func (c *recordingConn) Exec(_ context.Context, query string, args ...any) error {
	return c.record(query, args)
}

func (c *recordingConn) QueryRow(ctx context.Context, _ string, _ ...any) driver.Row {
	c.ctxs = append(c.ctxs, ctx)
	return c.row
}

func (c *recordingConn) tables() []string {
	out := make([]string, 0, len(c.statements))
	for _, s := range c.statements {
		for _, table := range []string{
			ledgermodels.BalancesTableName,
			ledgermodels.AccountsTableName,
			ledgermodels.TokensTableName,
			ledgermodels.TransactionsTableName,
		} {
			if strings.Contains(s, `"`+table+`"`) {
				out = append(out, table)
			}
		}
	}
	return out
}

type recordingBatch struct {
	driver.Batch
	rows [][]any
	sent bool
}

func (b *recordingBatch) Append(v ...any) error {
	b.rows = append(b.rows, v)
	return nil
}

func (b *recordingBatch) Send() error {
	b.sent = true
	return nil
}

func (b *recordingBatch) Abort() error { return nil }

type versionRow struct {
	driver.Row
	v uint64
}

func (r versionRow) Scan(dest ...any) error {
	*(dest[0].(*uint64)) = r.v
	return nil
}

type noRows struct{ driver.Row }

func (noRows) Scan(...any) error { return sql.ErrNoRows }

func newRecordingDB(conn *recordingConn, cluster string) *DB {
	return NewWithSharedClient(clickhouse.Client{Db: conn, Logger: zap.NewNop(), Cluster: cluster}, "postertoken")
}

func createChangeset(supply *big.Int) *ledgerdb.Changeset {
	return &ledgerdb.Changeset{
		Balances: []*ledgermodels.Balance{
			{Token: "GOLD", Account: "0xa", Amount: new(big.Int).Set(supply)},
			{Token: "GOLD", Account: "0xb", Amount: new(big.Int)},
		},
		Accounts:    []*ledgermodels.Account{{Address: "0xa", Nonce: 1}},
		Token:       &ledgermodels.Token{Name: "GOLD", Creator: "0xa", TotalSupply: new(big.Int).Set(supply), CreatedTx: "0x01"},
		Transaction: &ledgermodels.Transaction{Hash: "0x01", From: "0xa", Value: new(big.Int), Status: "applied"},
	}
}

func TestCommitWritesTransactionLast(t *testing.T) {
	conn := newRecordingConn()
	db := newRecordingDB(conn, "")

	require.NoError(t, db.Commit(context.Background(), createChangeset(big.NewInt(1000))))

	assert.Equal(t, []string{
		ledgermodels.BalancesTableName,
		ledgermodels.AccountsTableName,
		ledgermodels.TokensTableName,
		ledgermodels.TransactionsTableName,
	}, conn.tables())

	require.Len(t, conn.batches, 2)
	balances, accounts := conn.batches[0], conn.batches[1]
	assert.True(t, balances.sent)
	assert.True(t, accounts.sent)
	require.Len(t, balances.rows, 2)

	version := balances.rows[0][3]
	assert.Equal(t, version, balances.rows[1][3])
	assert.Equal(t, version, accounts.rows[0][2])
	tokenArgs := conn.args[2]
	assert.Equal(t, version, tokenArgs[len(tokenArgs)-1])
}

func TestCommitStopsBeforeTransactionOnFailure(t *testing.T) {
	for name, failOn := range map[string]int{
		"balances": 0,
		"accounts": 1,
		"token":    2,
	} {
		t.Run(name, func(t *testing.T) {
			conn := newRecordingConn()
			conn.failOn = failOn
			db := newRecordingDB(conn, "")

			err := db.Commit(context.Background(), createChangeset(big.NewInt(1000)))
			require.ErrorIs(t, err, errInsertFailed)
			assert.Len(t, conn.statements, failOn+1)
			assert.NotContains(t, conn.tables(), ledgermodels.TransactionsTableName)
		})
	}
}

func TestCommitRejectsAmountsOutsideUInt256(t *testing.T) {
	conn := newRecordingConn()
	db := newRecordingDB(conn, "")

	tooBig := new(big.Int).Add(ledgermodels.MaxAmount(), big.NewInt(1))
	err := db.Commit(context.Background(), createChangeset(tooBig))
	require.ErrorIs(t, err, ErrAmountOutOfRange)
	assert.Empty(t, conn.statements)

	cs := createChangeset(big.NewInt(1))
	cs.Transaction.Value = big.NewInt(-1)
	require.ErrorIs(t, db.Commit(context.Background(), cs), ErrAmountOutOfRange)
	assert.Empty(t, conn.statements)

	require.NoError(t, db.Commit(context.Background(), createChangeset(ledgermodels.MaxAmount())))
	assert.Len(t, conn.statements, 4)
}

func TestSeedVersionOutranksStoredRows(t *testing.T) {
	stored := uint64(time.Now().Add(time.Hour).UnixNano())
	conn := newRecordingConn()
	conn.row = versionRow{v: stored}
	db := newRecordingDB(conn, "")

	require.NoError(t, db.seedVersion(context.Background()))
	assert.Greater(t, db.nextVersion(), stored)

	// an older stored version never lowers the floor
	conn.row = versionRow{v: 1}
	require.NoError(t, db.seedVersion(context.Background()))
	assert.Greater(t, db.nextVersion(), stored+1)
}

func TestReadsUseSequentialConsistencyOnCluster(t *testing.T) {
	ctx := context.Background()

	single := newRecordingConn()
	single.row = noRows{}
	_, err := newRecordingDB(single, "").GetAccount(ctx, "0xa")
	require.ErrorIs(t, err, ledgerdb.ErrNotFound)
	require.Len(t, single.ctxs, 1)
	assert.Equal(t, ctx, single.ctxs[0])

	clustered := newRecordingConn()
	clustered.row = noRows{}
	_, err = newRecordingDB(clustered, "ledger").GetAccount(ctx, "0xa")
	require.ErrorIs(t, err, ledgerdb.ErrNotFound)
	require.Len(t, clustered.ctxs, 1)
	assert.NotEqual(t, ctx, clustered.ctxs[0])
}
