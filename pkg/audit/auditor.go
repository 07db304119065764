// Package audit checks the conservation invariants of the ledger: every
// token's balances sum to its total supply and no balance is negative.
package audit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/postertoken/pkg/db"
	"go.uber.org/zap"
)

// Violation kinds.
const (
	SupplyMismatch  = "supply_mismatch"
	NegativeBalance = "negative_balance"
)

// Violation is one broken invariant.
type Violation struct {
	Kind    string `json:"kind"`
	Token   string `json:"token"`
	Account string `json:"account,omitempty"`
	Detail  string `json:"detail"`
}

// TokenSummary is the per-token result of an audit pass.
type TokenSummary struct {
	Name        string   `json:"name"`
	TotalSupply *big.Int `json:"total_supply"`
	Sum         *big.Int `json:"sum"`
	Holders     int      `json:"holders"`
}

// Report is the result of one audit pass.
type Report struct {
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration"`
	Tokens     []TokenSummary `json:"tokens"`
	Violations []Violation    `json:"violations"`
}

// OK reports whether every invariant held.
func (r Report) OK() bool { return len(r.Violations) == 0 }

// Auditor sums balances per token on a worker pool. It only reads, so it
// can run alongside the ledger worker; a token created mid-pass is simply
// picked up on the next run.
type Auditor struct {
	store  db.LedgerQuerier
	logger *zap.Logger
	pool   pond.Pool
}

// NewAuditor creates an auditor with the given number of workers.
func NewAuditor(store db.LedgerQuerier, logger *zap.Logger, workers int) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	return &Auditor{
		store:  store,
		logger: logger,
		pool:   pond.NewPool(workers, pond.WithQueueSize(workers*4)),
	}
}

// Close stops the worker pool after queued work drains.
func (a *Auditor) Close() {
	a.pool.StopAndWait()
}

// Run audits every token. Violations are logged and returned in the report;
// the error is reserved for store failures.
func (a *Auditor) Run(ctx context.Context) (Report, error) {
	report := Report{StartedAt: time.Now().UTC()}

	tokens, err := a.store.ListTokens(ctx)
	if err != nil {
		return report, fmt.Errorf("list tokens: %w", err)
	}

	var mu sync.Mutex
	group := a.pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, token := range tokens {
		token := token
		group.SubmitErr(func() error {
			balances, err := a.store.ListTokenBalances(groupCtx, token.Name)
			if err != nil {
				return fmt.Errorf("list balances of %s: %w", token.Name, err)
			}

			summary := TokenSummary{Name: token.Name, TotalSupply: token.TotalSupply, Sum: new(big.Int), Holders: len(balances)}
			var found []Violation
			for _, b := range balances {
				if b.Amount.Sign() < 0 {
					found = append(found, Violation{
						Kind: NegativeBalance, Token: token.Name, Account: b.Account,
						Detail: b.Amount.String(),
					})
				}
				summary.Sum.Add(summary.Sum, b.Amount)
			}
			if summary.Sum.Cmp(token.TotalSupply) != 0 {
				found = append(found, Violation{
					Kind: SupplyMismatch, Token: token.Name,
					Detail: fmt.Sprintf("sum %s != total supply %s", summary.Sum, token.TotalSupply),
				})
			}

			mu.Lock()
			report.Tokens = append(report.Tokens, summary)
			report.Violations = append(report.Violations, found...)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, pond.ErrGroupStopped) {
		return report, err
	}

	sort.Slice(report.Tokens, func(i, j int) bool { return report.Tokens[i].Name < report.Tokens[j].Name })
	sort.SliceStable(report.Violations, func(i, j int) bool { return report.Violations[i].Token < report.Violations[j].Token })
	report.Duration = time.Since(report.StartedAt)

	for _, v := range report.Violations {
		a.logger.Error("Ledger invariant violated",
			zap.String("kind", v.Kind),
			zap.String("token", v.Token),
			zap.String("account", v.Account),
			zap.String("detail", v.Detail))
	}
	a.logger.Info("Ledger audit completed",
		zap.Int("tokens", len(report.Tokens)),
		zap.Int("violations", len(report.Violations)),
		zap.Duration("duration", report.Duration))

	return report, nil
}
