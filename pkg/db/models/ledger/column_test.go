package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnsToSchemaSQL(t *testing.T) {
	got := ColumnsToSchemaSQL([]ColumnDef{
		{Name: "address", Type: "String", Codec: "ZSTD(1)"},
		{Name: "nonce", Type: "UInt64"},
	})
	assert.Equal(t, "address String CODEC(ZSTD(1)),\n\t\t\tnonce UInt64", got)
}

func TestColumnsToNameList(t *testing.T) {
	assert.Equal(t, []string{"token", "account", "amount", "version"}, ColumnsToNameList(BalanceColumns))
}

func TestCloneIsDeep(t *testing.T) {
	b := &Balance{Token: "GOLD", Account: "a", Amount: big.NewInt(10)}
	cp := b.Clone()
	cp.Amount.Add(cp.Amount, big.NewInt(5))
	assert.Equal(t, int64(10), b.Amount.Int64())
	assert.Equal(t, BalanceKey{Token: "GOLD", Account: "a"}, cp.Key())

	tok := &Token{Name: "GOLD"}
	assert.Equal(t, 0, tok.Clone().TotalSupply.Sign())

	var nilAcct *Account
	assert.Nil(t, nilAcct.Clone())
}
