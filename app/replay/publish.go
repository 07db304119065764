package replay

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/canopy-network/postertoken/pkg/ledger"
	"go.uber.org/zap"
)

// StreamProducer appends entries to a Redis stream.
type StreamProducer interface {
	XAdd(ctx context.Context, stream string, values map[string]interface{}) (string, error)
}

// Publish appends every well-formed line of r to stream, in order, as a post
// entry the ledger worker consumes. Each entry carries the event hash, derived
// when the line has none, so a stream entry resolves to the same event as the
// line it came from. It returns the number of entries written.
func Publish(ctx context.Context, r io.Reader, producer StreamProducer, stream string, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo, written := 0, 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return written, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		post, err := ledger.DecodePostJSON(line)
		if err != nil {
			logger.Warn("Skipping malformed event line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		hash := post.TxHash()
		fields := post.Fields()
		fields[ledger.FieldHash] = hash

		id, err := producer.XAdd(ctx, stream, fields)
		if err != nil {
			return written, fmt.Errorf("line %d: publish to %s: %w", lineNo, stream, err)
		}
		written++
		logger.Debug("Published event", zap.Int("line", lineNo), zap.String("id", id), zap.String("hash", hash))
	}
	if err := scanner.Err(); err != nil {
		return written, fmt.Errorf("read event log: %w", err)
	}
	return written, nil
}
