package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/canopy-network/postertoken/pkg/db"
	"github.com/canopy-network/postertoken/pkg/db/models/ledger"
	"go.uber.org/zap"
)

// NoncePolicy controls replay protection for commands.
type NoncePolicy string

const (
	// NonceEnforce requires every command to carry nonce == account.nonce + 1.
	NonceEnforce NoncePolicy = "enforce"
	// NonceDisabled ignores the nonce field entirely.
	NonceDisabled NoncePolicy = "disabled"
)

// Store is what the engine needs from a ledger backend.
type Store interface {
	db.LedgerReader
	db.LedgerWriter
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	NoncePolicy NoncePolicy
}

// Outcome describes how one post event terminated.
type Outcome struct {
	TxHash    string
	Status    Status
	Operation Operation
	Reason    Reason
	Detail    string
	// Changes is the committed ledger mutation; nil unless Status is StatusApplied.
	Changes *db.Changeset
}

// Engine interprets post events and applies them to a ledger store.
//
// It keeps no ledger state between events: every Apply reads the latest
// committed records, computes the next state in a private working set, and
// commits all affected records together. Apply calls are serialised; the host
// must still deliver events in block order.
type Engine struct {
	store  Store
	logger *zap.Logger
	policy NoncePolicy

	mu sync.Mutex
}

// NewEngine returns an engine bound to store. An empty NoncePolicy means NonceEnforce.
func NewEngine(store Store, logger *zap.Logger, cfg EngineConfig) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := cfg.NoncePolicy
	if policy == "" {
		policy = NonceEnforce
	}
	return &Engine{store: store, logger: logger, policy: policy}
}

// Apply processes one event to a terminal state. Business failures are
// reported through Outcome; the returned error is reserved for store failures,
// in which case nothing about the event should be assumed persisted and the
// host decides whether to redeliver.
func (e *Engine) Apply(ctx context.Context, post Post) (Outcome, error) {
	if err := post.Validate(); err != nil {
		return Outcome{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	hash := post.TxHash()
	seen, err := e.store.HasTransaction(ctx, hash)
	if err != nil {
		return Outcome{}, fmt.Errorf("check transaction %s: %w", hash, err)
	}
	if seen {
		e.logger.Debug("Post already recorded, skipping", zap.String("tx_hash", hash))
		return Outcome{TxHash: hash, Status: StatusDuplicate}, nil
	}

	out, cs, err := e.interpret(ctx, post)
	if err != nil {
		return Outcome{}, err
	}
	out.TxHash = hash

	record := post.Record()
	record.Status = string(out.Status)
	record.Reason = string(out.Reason)
	cs.Transaction = record

	if err := e.store.Commit(ctx, cs); err != nil {
		return Outcome{}, fmt.Errorf("commit %s: %w", hash, err)
	}
	if out.Status == StatusApplied {
		out.Changes = cs
	}

	e.logOutcome(post, out)
	return out, nil
}

// interpret decodes, validates and evaluates the payload. On anything but
// success it returns an empty changeset.
func (e *Engine) interpret(ctx context.Context, post Post) (Outcome, *db.Changeset, error) {
	payload, err := DecodePayload(post.Payload)
	if err != nil {
		return Outcome{Status: StatusUndecodable}, &db.Changeset{}, nil
	}

	env, err := ParseEnvelope(payload)
	if err != nil {
		return rejected("", err)
	}
	if !env.Operation.Known() {
		return Outcome{Status: StatusIgnored, Operation: env.Operation}, &db.Changeset{}, nil
	}

	ws := newWorkingSet(e.store)
	sender, err := ws.resolve(ctx, post.Sender)
	if err != nil {
		return Outcome{}, nil, err
	}

	if err := e.checkNonce(sender, env); err != nil {
		return rejected(env.Operation, err)
	}

	cmd, err := ParseCommand(env.Operation, payload)
	if err != nil {
		return rejected(env.Operation, err)
	}

	switch c := cmd.(type) {
	case CreateCommand:
		err = e.applyCreate(ctx, ws, post, sender, c)
	case TransferCommand:
		err = e.applyTransfer(ctx, ws, sender, c)
	}
	if err != nil {
		return rejected(env.Operation, err)
	}

	if e.policy == NonceEnforce {
		sender.Nonce++
		ws.markAccount(sender.Address)
	}

	return Outcome{Status: StatusApplied, Operation: env.Operation}, ws.changeset(), nil
}

// rejected converts a Rejection into an Outcome and passes any other error through.
func rejected(op Operation, err error) (Outcome, *db.Changeset, error) {
	var rej *Rejection
	if !errors.As(err, &rej) {
		return Outcome{}, nil, err
	}
	return Outcome{Status: StatusRejected, Operation: op, Reason: rej.Reason, Detail: rej.Detail}, &db.Changeset{}, nil
}

func (e *Engine) checkNonce(sender *ledger.Account, env Envelope) error {
	if e.policy != NonceEnforce {
		return nil
	}
	if !env.Nonce.Present() {
		return reject(ReasonMissingNonce, "no nonce provided")
	}
	nonce, ok := env.Nonce.Integer()
	if !ok {
		return reject(ReasonBadNonce, "nonce must be an integer, got %s", env.Nonce.Kind())
	}
	if !nonce.IsUint64() || nonce.Uint64() != sender.Nonce+1 {
		return reject(ReasonBadNonce, "expected nonce %d, got %s", sender.Nonce+1, nonce)
	}
	return nil
}

func (e *Engine) applyCreate(ctx context.Context, ws *workingSet, post Post, sender *ledger.Account, cmd CreateCommand) error {
	_, err := e.store.GetToken(ctx, cmd.Name)
	switch {
	case err == nil:
		return reject(ReasonNameInUse, "token %q already exists", cmd.Name)
	case !errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("load token %s: %w", cmd.Name, err)
	}

	supply, err := cmd.Supply()
	if err != nil {
		return err
	}

	bal, err := ws.balance(ctx, cmd.Name, sender.Address, true)
	if err != nil {
		return err
	}
	// A leftover row can only come from an interrupted earlier create of this
	// name; the token row is written last, so overwrite rather than add.
	bal.Amount.Set(supply)
	ws.markBalance(bal.Key())

	ws.createdToken = &ledger.Token{
		Name:          cmd.Name,
		Creator:       sender.Address,
		TotalSupply:   new(big.Int).Set(supply),
		CreatedHeight: post.BlockNumber,
		CreatedTx:     post.TxHash(),
	}
	return nil
}

func (e *Engine) applyTransfer(ctx context.Context, ws *workingSet, sender *ledger.Account, cmd TransferCommand) error {
	recipient, err := ws.resolve(ctx, cmd.Recipient)
	if err != nil {
		return err
	}

	if _, err := e.store.GetToken(ctx, cmd.Token); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return reject(ReasonNoSuchToken, "token %q does not exist", cmd.Token)
		}
		return fmt.Errorf("load token %s: %w", cmd.Token, err)
	}

	from, err := ws.balance(ctx, cmd.Token, sender.Address, false)
	if err != nil {
		return err
	}
	if from == nil {
		return reject(ReasonNoBalance, "%s holds no %s", sender.Address, cmd.Token)
	}
	if from.Amount.Cmp(cmd.Amount) < 0 {
		return reject(ReasonInsufficientBalance, "balance %s is below %s", from.Amount, cmd.Amount)
	}

	from.Amount.Sub(from.Amount, cmd.Amount)
	ws.markBalance(from.Key())

	// Same working value as from when sending to oneself.
	to, err := ws.balance(ctx, cmd.Token, recipient.Address, true)
	if err != nil {
		return err
	}
	to.Amount.Add(to.Amount, cmd.Amount)
	ws.markBalance(to.Key())
	return nil
}

func (e *Engine) logOutcome(post Post, out Outcome) {
	fields := []zap.Field{
		zap.String("tx_hash", out.TxHash),
		zap.String("sender", post.Sender),
		zap.Uint64("block_number", post.BlockNumber),
		zap.String("operation", string(out.Operation)),
	}
	switch out.Status {
	case StatusApplied:
		e.logger.Info("Command applied", fields...)
	case StatusRejected:
		e.logger.Warn("Command rejected", append(fields,
			zap.String("reason", string(out.Reason)),
			zap.String("detail", out.Detail))...)
	case StatusUndecodable:
		e.logger.Info("Could not parse json for content", zap.String("tx_hash", out.TxHash), zap.ByteString("content", post.Payload))
	case StatusIgnored:
		e.logger.Debug("Unrecognised operation", fields...)
	}
}
