package ledger

import (
	"github.com/canopy-network/postertoken/pkg/db/models/ledger"
)

// Notification is the published summary of an applied command.
type Notification struct {
	TxHash      string           `json:"tx_hash"`
	Operation   Operation        `json:"operation"`
	Sender      string           `json:"sender"`
	BlockNumber uint64           `json:"block_number"`
	Token       string           `json:"token"`
	Balances    []ledger.Balance `json:"balances"`
}

// NewNotification summarises an applied outcome. ok is false for any other status.
func NewNotification(post Post, out Outcome) (n Notification, ok bool) {
	if out.Status != StatusApplied || out.Changes == nil {
		return Notification{}, false
	}
	n = Notification{
		TxHash:      out.TxHash,
		Operation:   out.Operation,
		Sender:      post.Sender,
		BlockNumber: post.BlockNumber,
	}
	if out.Changes.Token != nil {
		n.Token = out.Changes.Token.Name
	}
	for _, b := range out.Changes.Balances {
		if n.Token == "" {
			n.Token = b.Token
		}
		n.Balances = append(n.Balances, *b.Clone())
	}
	return n, true
}
