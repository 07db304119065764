package workerledger

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/canopy-network/postertoken/pkg/ledger"
	"github.com/canopy-network/postertoken/pkg/redis"
	"go.uber.org/zap"
)

// Publisher receives notifications of applied commands.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{})
}

// Processor turns stream entries into ledger events.
type Processor struct {
	Engine    *ledger.Engine
	Publisher Publisher // optional
	Channel   string
	Logger    *zap.Logger
}

// HandleMessage applies one stream entry. A nil return acknowledges the entry.
// Entries that can never become a valid event are logged and acknowledged so
// they do not block the stream; store failures are returned and the entry is
// delivered again.
func (p *Processor) HandleMessage(ctx context.Context, msg redis.Message) error {
	post, err := ledger.ParsePost(msg.Values)
	if err != nil {
		p.Logger.Warn("Dropping malformed post event", zap.String("id", msg.ID), zap.Error(err))
		return nil
	}

	out, err := p.Engine.Apply(ctx, post)
	if errors.Is(err, ledger.ErrInvalidPost) {
		p.Logger.Warn("Dropping post event without sender", zap.String("id", msg.ID))
		return nil
	}
	if err != nil {
		return err
	}

	p.notify(ctx, post, out)
	return nil
}

func (p *Processor) notify(ctx context.Context, post ledger.Post, out ledger.Outcome) {
	if p.Publisher == nil || p.Channel == "" {
		return
	}
	n, ok := ledger.NewNotification(post, out)
	if !ok {
		return
	}
	body, err := json.Marshal(n)
	if err != nil {
		p.Logger.Warn("Failed to encode ledger notification", zap.String("tx_hash", out.TxHash), zap.Error(err))
		return
	}
	p.Publisher.Publish(ctx, p.Channel, body)
}
