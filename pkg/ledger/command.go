package ledger

import (
	"math/big"

	"github.com/canopy-network/postertoken/pkg/db/models/ledger"
)

// Operation is the command tag carried in the "operation" field.
type Operation string

const (
	OpCreate   Operation = "CREATE"
	OpTransfer Operation = "TRANSFER"
)

// Known reports whether the ledger interprets op.
func (op Operation) Known() bool {
	return op == OpCreate || op == OpTransfer
}

// Payload field names.
const (
	fieldOperation = "operation"
	fieldNonce     = "nonce"
	fieldName      = "name"
	fieldSupply    = "supply"
	fieldToken     = "token"
	fieldRecipient = "recipient"
	fieldAmount    = "amount"
)

// Envelope is the part of a payload common to every command.
type Envelope struct {
	Operation Operation
	// Nonce is the raw nonce field; the engine's nonce policy decides what is required.
	Nonce Value
}

// Command is a validated CREATE or TRANSFER.
type Command interface {
	Op() Operation
}

// CreateCommand registers a new token and credits the whole supply to the sender.
type CreateCommand struct {
	Name string
	// SupplyField is the raw supply. Supply validates it once the name is known to be free.
	SupplyField Value
}

func (CreateCommand) Op() Operation { return OpCreate }

// TransferCommand moves Amount of Token from the sender to Recipient.
type TransferCommand struct {
	Token     string
	Recipient string
	Amount    *big.Int
}

func (TransferCommand) Op() Operation { return OpTransfer }

// ParseEnvelope extracts the operation tag. A missing or non-string operation
// is a rejection. An unknown operation is returned as-is; callers check Known.
func ParseEnvelope(p Payload) (Envelope, error) {
	op, ok := p.Field(fieldOperation).String()
	if !ok {
		return Envelope{}, reject(ReasonMissingOperation, "operation is %s", p.Field(fieldOperation).Kind())
	}
	return Envelope{Operation: Operation(op), Nonce: p.Field(fieldNonce)}, nil
}

// ParseCommand checks the required-field contract of a known operation.
// It looks only at the payload; ledger state checks happen in the engine.
// A CREATE's supply is left to CreateCommand.Supply, which runs after the name lookup.
func ParseCommand(op Operation, p Payload) (Command, error) {
	switch op {
	case OpCreate:
		return parseCreate(p)
	case OpTransfer:
		return parseTransfer(p)
	}
	return nil, reject(ReasonMissingOperation, "unsupported operation %q", op)
}

func parseCreate(p Payload) (Command, error) {
	name, err := requireString(p, fieldName, ReasonInvalidName)
	if err != nil {
		return nil, err
	}
	return CreateCommand{Name: name, SupplyField: p.Field(fieldSupply)}, nil
}

// Supply returns the validated supply: a JSON integer in [0, 2^256-1].
func (c CreateCommand) Supply() (*big.Int, error) {
	supply, ok := c.SupplyField.Integer()
	if !ok {
		return nil, reject(ReasonInvalidSupply, "supply must be an integer, got %s", c.SupplyField.Kind())
	}
	if supply.Sign() < 0 {
		return nil, reject(ReasonInvalidSupply, "supply must not be negative")
	}
	if !ledger.AmountInRange(supply) {
		return nil, reject(ReasonInvalidSupply, "supply exceeds 2^256-1")
	}
	return supply, nil
}

func parseTransfer(p Payload) (Command, error) {
	recipient, err := requireString(p, fieldRecipient, ReasonInvalidRecipient)
	if err != nil {
		return nil, err
	}
	amount, ok := p.Field(fieldAmount).Integer()
	if !ok {
		return nil, reject(ReasonInvalidAmount, "amount must be an integer, got %s", p.Field(fieldAmount).Kind())
	}
	if amount.Sign() <= 0 {
		return nil, reject(ReasonInvalidAmount, "amount must be positive")
	}
	token, err := requireString(p, fieldToken, ReasonInvalidToken)
	if err != nil {
		return nil, err
	}
	return TransferCommand{Token: token, Recipient: recipient, Amount: amount}, nil
}

// requireString returns a non-empty string field or a rejection with reason.
func requireString(p Payload, field string, reason Reason) (string, error) {
	v := p.Field(field)
	s, ok := v.String()
	if !ok {
		return "", reject(reason, "%s must be a string, got %s", field, v.Kind())
	}
	if s == "" {
		return "", reject(reason, "%s must not be empty", field)
	}
	return s, nil
}
