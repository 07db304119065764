package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostTxHash(t *testing.T) {
	p := Post{Hash: "0xabc", Sender: "0x1"}
	assert.Equal(t, "0xabc", p.TxHash())

	derived := Post{Sender: "0x1", Counterparty: "0x2", Value: big.NewInt(5), Timestamp: 10, BlockNumber: 3, Payload: []byte(`{}`)}
	h1 := derived.TxHash()
	assert.Len(t, h1, 66)
	assert.Equal(t, h1, derived.TxHash())

	other := derived
	other.BlockNumber = 4
	assert.NotEqual(t, h1, other.TxHash())

	// Field boundaries are length-prefixed.
	a := Post{Sender: "ab", Counterparty: "c"}
	b := Post{Sender: "a", Counterparty: "bc"}
	assert.NotEqual(t, a.TxHash(), b.TxHash())
}

func TestPostRecord(t *testing.T) {
	p := Post{Hash: "0x1", Sender: "0xa", Counterparty: "0xposter", Timestamp: 1700000000, BlockNumber: 12, Payload: []byte("hi")}
	rec := p.Record()
	assert.Equal(t, "0x1", rec.Hash)
	assert.Equal(t, "0xa", rec.From)
	assert.Equal(t, "0xposter", rec.To)
	assert.Equal(t, 0, rec.Value.Sign())
	assert.Equal(t, uint64(12), rec.BlockNumber)
	assert.Equal(t, "hi", rec.Content)
}

func TestPostValidate(t *testing.T) {
	assert.ErrorIs(t, Post{}.Validate(), ErrInvalidPost)
	assert.NoError(t, Post{Sender: "0xa"}.Validate())
}
