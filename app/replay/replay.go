// Package replay rebuilds the ledger from an event log and fingerprints the result.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/canopy-network/postertoken/pkg/db/memory"
	"github.com/canopy-network/postertoken/pkg/ledger"
	"go.uber.org/zap"
)

// maxLineSize bounds a single event line.
const maxLineSize = 16 << 20

// Result summarises one replay.
type Result struct {
	// Events counts lines that became a post event.
	Events int
	// Malformed counts lines skipped because they were not a valid event.
	Malformed int
	Outcomes  map[ledger.Status]int
	Digest    string
	Store     *memory.Store
}

// Run applies every line of r, in order, to a fresh in-memory ledger.
// Lines that are blank are ignored; lines that are not an event are counted and skipped.
func Run(ctx context.Context, r io.Reader, policy ledger.NoncePolicy, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := memory.New()
	engine := ledger.NewEngine(store, logger, ledger.EngineConfig{NoncePolicy: policy})
	res := Result{Outcomes: make(map[ledger.Status]int), Store: store}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return res, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		post, err := ledger.DecodePostJSON(line)
		if err != nil {
			res.Malformed++
			logger.Warn("Skipping malformed event line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		out, err := engine.Apply(ctx, post)
		if errors.Is(err, ledger.ErrInvalidPost) {
			res.Malformed++
			logger.Warn("Skipping event without sender", zap.Int("line", lineNo))
			continue
		}
		if err != nil {
			return res, fmt.Errorf("line %d: %w", lineNo, err)
		}
		res.Events++
		res.Outcomes[out.Status]++
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("read event log: %w", err)
	}

	digest, err := ledger.StateDigest(ctx, store)
	if err != nil {
		return res, err
	}
	res.Digest = digest
	return res, nil
}
