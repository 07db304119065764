package ledger

import "fmt"

// Status is the terminal state of one post event.
type Status string

const (
	// StatusApplied means the command mutated the ledger.
	StatusApplied Status = "applied"
	// StatusRejected means the command was recognised but refused.
	StatusRejected Status = "rejected"
	// StatusIgnored means the payload named an operation this ledger does not know.
	StatusIgnored Status = "ignored"
	// StatusUndecodable means the payload was not a JSON object.
	StatusUndecodable Status = "undecodable"
	// StatusDuplicate means the event was already recorded and was skipped.
	StatusDuplicate Status = "duplicate"
)

// Reason is the machine-readable cause of a rejection.
type Reason string

const (
	ReasonMissingOperation    Reason = "missing_operation"
	ReasonMissingNonce        Reason = "missing_nonce"
	ReasonBadNonce            Reason = "bad_nonce"
	ReasonInvalidName         Reason = "invalid_name"
	ReasonInvalidSupply       Reason = "invalid_supply"
	ReasonNameInUse           Reason = "name_in_use"
	ReasonInvalidRecipient    Reason = "invalid_recipient"
	ReasonInvalidAmount       Reason = "invalid_amount"
	ReasonInvalidToken        Reason = "invalid_token"
	ReasonNoSuchToken         Reason = "no_such_token"
	ReasonNoBalance           Reason = "no_balance"
	ReasonInsufficientBalance Reason = "insufficient_balance"
)

// Rejection is a per-event business failure. It is carried as an error inside
// the engine and converted into an Outcome before leaving Apply; it never
// reaches the host.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
