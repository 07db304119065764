package ledger

import "math/big"

const TransactionsTableName = "transactions"

// TransactionColumns defines the schema for the transactions table.
var TransactionColumns = []ColumnDef{
	{Name: "hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "from_address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "to_address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "value", Type: "UInt256"},
	{Name: "timestamp", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "block_number", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "content", Type: "String", Codec: "ZSTD(3)"},
	{Name: "status", Type: "LowCardinality(String)"},
	{Name: "reason", Type: "LowCardinality(String)"},
}

// Transaction is the immutable audit record of one observed post event.
// It is written once whether or not the payload carried a valid command.
type Transaction struct {
	Hash        string   `ch:"hash" json:"hash"`
	From        string   `ch:"from_address" json:"from"`
	To          string   `ch:"to_address" json:"to"`
	Value       *big.Int `ch:"value" json:"value"`
	Timestamp   uint64   `ch:"timestamp" json:"timestamp"`
	BlockNumber uint64   `ch:"block_number" json:"block_number"`
	Content     string   `ch:"content" json:"content"`

	// Outcome of interpreting Content.
	Status string `ch:"status" json:"status"`
	Reason string `ch:"reason" json:"reason,omitempty"`
}

// Clone returns a deep copy.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Value = cloneInt(t.Value)
	return &cp
}
