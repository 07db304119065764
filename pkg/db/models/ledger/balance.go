package ledger

import "math/big"

const BalancesTableName = "balances"

// BalanceColumns defines the schema for the balances table.
var BalanceColumns = []ColumnDef{
	{Name: "token", Type: "String", Codec: "ZSTD(1)"},
	{Name: "account", Type: "String", Codec: "ZSTD(1)"},
	{Name: "amount", Type: "UInt256"},
	{Name: "version", Type: "UInt64"},
}

// maxAmount is the largest value an amount column holds (UInt256).
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// MaxAmount returns 2^256 - 1.
func MaxAmount() *big.Int {
	return new(big.Int).Set(maxAmount)
}

// AmountInRange reports whether v can be stored in an amount or supply column.
func AmountInRange(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(maxAmount) <= 0
}

// BalanceKey is the composite identity of a Balance.
type BalanceKey struct {
	Token   string
	Account string
}

// Balance holds the amount of Token owned by Account. Amount is never negative.
type Balance struct {
	Token   string   `ch:"token" json:"token"`
	Account string   `ch:"account" json:"account"`
	Amount  *big.Int `ch:"amount" json:"amount"`
}

// NewBalance returns a zero balance for the pair.
func NewBalance(token, account string) *Balance {
	return &Balance{Token: token, Account: account, Amount: new(big.Int)}
}

func (b *Balance) Key() BalanceKey {
	return BalanceKey{Token: b.Token, Account: b.Account}
}

// Clone returns a deep copy.
func (b *Balance) Clone() *Balance {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Amount = cloneInt(b.Amount)
	return &cp
}
