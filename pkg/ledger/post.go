package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/canopy-network/postertoken/pkg/db/models/ledger"
	"golang.org/x/crypto/sha3"
)

// ErrInvalidPost is returned when the host hands over an event without a sender.
var ErrInvalidPost = errors.New("post event has no sender")

// Post is one externally ordered post event. Sender, timestamp and height are
// trusted as already authenticated by the delivery layer.
type Post struct {
	// Hash identifies the originating transaction. When empty, TxHash derives one.
	Hash         string
	Sender       string
	Counterparty string
	Value        *big.Int
	Timestamp    uint64
	BlockNumber  uint64
	Payload      []byte
}

// Validate checks the fields the engine cannot work without.
func (p Post) Validate() error {
	if p.Sender == "" {
		return ErrInvalidPost
	}
	return nil
}

// TxHash returns Hash, or a Keccak-256 digest of the event fields when the
// host did not supply one. The digest depends only on the event, so replays
// derive the same identity.
func (p Post) TxHash() string {
	if p.Hash != "" {
		return p.Hash
	}
	h := sha3.NewLegacyKeccak256()
	writeField := func(b []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	writeField([]byte(p.Sender))
	writeField([]byte(p.Counterparty))
	writeField(valueOrZero(p.Value).Bytes())
	var nums [16]byte
	binary.BigEndian.PutUint64(nums[:8], p.Timestamp)
	binary.BigEndian.PutUint64(nums[8:], p.BlockNumber)
	h.Write(nums[:])
	writeField(p.Payload)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// Record builds the audit record for the event. Status and reason are filled
// in once the payload has been interpreted.
func (p Post) Record() *ledger.Transaction {
	return &ledger.Transaction{
		Hash:        p.TxHash(),
		From:        p.Sender,
		To:          p.Counterparty,
		Value:       valueOrZero(p.Value),
		Timestamp:   p.Timestamp,
		BlockNumber: p.BlockNumber,
		Content:     string(p.Payload),
	}
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
