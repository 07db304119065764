package ledger

import "math/big"

const TokensTableName = "tokens"

// TokenColumns defines the schema for the tokens table.
var TokenColumns = []ColumnDef{
	{Name: "name", Type: "String", Codec: "ZSTD(1)"},
	{Name: "creator", Type: "String", Codec: "ZSTD(1)"},
	{Name: "total_supply", Type: "UInt256"},
	{Name: "created_height", Type: "UInt64"},
	{Name: "created_tx", Type: "String", Codec: "ZSTD(1)"},
	{Name: "version", Type: "UInt64"},
}

// Token is keyed by its human-chosen name. TotalSupply is fixed at creation.
type Token struct {
	Name          string   `ch:"name" json:"name"`
	Creator       string   `ch:"creator" json:"creator"`
	TotalSupply   *big.Int `ch:"total_supply" json:"total_supply"`
	CreatedHeight uint64   `ch:"created_height" json:"created_height"`
	CreatedTx     string   `ch:"created_tx" json:"created_tx"`
}

// Clone returns a deep copy.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	cp := *t
	cp.TotalSupply = cloneInt(t.TotalSupply)
	return &cp
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
