package ledger

const AccountsTableName = "accounts"

// AccountColumns defines the schema for the accounts table.
// version is a store-side column used by ReplacingMergeTree and never leaves the store.
var AccountColumns = []ColumnDef{
	{Name: "address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "nonce", Type: "UInt64"},
	{Name: "version", Type: "UInt64"},
}

// Account is keyed by address. Accounts are created lazily on first reference
// and never deleted.
type Account struct {
	Address string `ch:"address" json:"address"`
	Nonce   uint64 `ch:"nonce" json:"nonce"`
}

// NewAccount returns a fresh account with a zero nonce.
func NewAccount(address string) *Account {
	return &Account{Address: address}
}

// Clone returns a copy safe to mutate.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
