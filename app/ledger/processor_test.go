package workerledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/canopy-network/postertoken/pkg/audit"
	"github.com/canopy-network/postertoken/pkg/db/memory"
	"github.com/canopy-network/postertoken/pkg/ledger"
	"github.com/canopy-network/postertoken/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, message interface{}) {
	m.Called(ctx, channel, message)
}

type brokenStore struct {
	*memory.Store
}

var errStoreDown = errors.New("store down")

func (brokenStore) HasTransaction(context.Context, string) (bool, error) {
	return false, errStoreDown
}

func newProcessor(t *testing.T, store ledger.Store, pub Publisher) *Processor {
	logger := zaptest.NewLogger(t)
	return &Processor{
		Engine:    ledger.NewEngine(store, logger, ledger.EngineConfig{NoncePolicy: ledger.NonceEnforce}),
		Publisher: pub,
		Channel:   "poster:ledger.applied",
		Logger:    logger,
	}
}

func entry(id, hash, from, content string) redis.Message {
	return redis.Message{
		ID:     id,
		Stream: "poster:posts",
		Values: map[string]interface{}{
			ledger.FieldHash:        hash,
			ledger.FieldFrom:        from,
			ledger.FieldTo:          "0xposter",
			ledger.FieldValue:       "0",
			ledger.FieldTimestamp:   "1700000000",
			ledger.FieldBlockNumber: "42",
			ledger.FieldContent:     content,
		},
	}
}

func TestHandleMessageAppliesAndPublishes(t *testing.T) {
	store := memory.New()
	pub := &mockPublisher{}
	var published []byte
	pub.On("Publish", mock.Anything, "poster:ledger.applied", mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Once()

	p := newProcessor(t, store, pub)
	err := p.HandleMessage(context.Background(),
		entry("1-0", "0x01", "0xa", `{"operation":"CREATE","name":"GOLD","supply":1000,"nonce":1}`))
	require.NoError(t, err)
	pub.AssertExpectations(t)

	var n ledger.Notification
	require.NoError(t, json.Unmarshal(published, &n))
	assert.Equal(t, "0x01", n.TxHash)
	assert.Equal(t, ledger.OpCreate, n.Operation)
	assert.Equal(t, "GOLD", n.Token)
	assert.Equal(t, uint64(42), n.BlockNumber)
	require.Len(t, n.Balances, 1)
	assert.Equal(t, "1000", n.Balances[0].Amount.String())

	bal, err := store.GetBalance(context.Background(), "GOLD", "0xa")
	require.NoError(t, err)
	assert.Equal(t, "1000", bal.Amount.String())
}

func TestHandleMessageDoesNotPublishRejections(t *testing.T) {
	store := memory.New()
	pub := &mockPublisher{}
	p := newProcessor(t, store, pub)

	// Wrong nonce, then a redelivery of the same hash.
	msg := entry("1-0", "0x01", "0xa", `{"operation":"CREATE","name":"GOLD","supply":1000,"nonce":7}`)
	require.NoError(t, p.HandleMessage(context.Background(), msg))
	require.NoError(t, p.HandleMessage(context.Background(), msg))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)

	tx, err := store.GetTransaction(context.Background(), "0x01")
	require.NoError(t, err)
	assert.Equal(t, string(ledger.StatusRejected), tx.Status)
	assert.Equal(t, string(ledger.ReasonBadNonce), tx.Reason)
}

func TestHandleMessageAcknowledgesMalformedEntries(t *testing.T) {
	store := memory.New()
	p := newProcessor(t, store, nil)

	bad := entry("1-0", "0x01", "0xa", `{}`)
	bad.Values[ledger.FieldBlockNumber] = "not-a-number"
	assert.NoError(t, p.HandleMessage(context.Background(), bad))

	anonymous := entry("2-0", "0x02", "", `{"operation":"CREATE","name":"GOLD","supply":1}`)
	assert.NoError(t, p.HandleMessage(context.Background(), anonymous))

	has, err := store.HasTransaction(context.Background(), "0x01")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestHandleMessageReturnsStoreErrors(t *testing.T) {
	p := newProcessor(t, brokenStore{memory.New()}, nil)
	err := p.HandleMessage(context.Background(),
		entry("1-0", "0x01", "0xa", `{"operation":"CREATE","name":"GOLD","supply":1,"nonce":1}`))
	assert.ErrorIs(t, err, errStoreDown)
}

func TestSchedulerAndProbes(t *testing.T) {
	store := memory.New()
	logger := zaptest.NewLogger(t)
	app := &App{
		Store:   store,
		Auditor: audit.NewAuditor(store, logger, 2),
		Logger:  logger,
	}
	defer app.Auditor.Close()

	assert.Error(t, app.SetupScheduler(context.Background(), "not a schedule"))
	require.NoError(t, app.SetupScheduler(context.Background(), "0 */5 * * * *"))
	assert.Len(t, app.Cron.Entries(), 1)

	app.runAudit(context.Background())

	app.SetupServer(":0")
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		app.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
