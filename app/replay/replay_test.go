package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/canopy-network/postertoken/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func line(t *testing.T, block int, from, content string) string {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"hash":         fmt.Sprintf("0x%064x", block),
		"from":         from,
		"to":           "0xposter",
		"value":        0,
		"timestamp":    1_700_000_000 + block,
		"block_number": block,
		"content":      content,
	})
	require.NoError(t, err)
	return string(b)
}

func eventLog(t *testing.T) []string {
	return []string{
		line(t, 1, "0xa", `{"operation":"CREATE","name":"GOLD","supply":1000,"nonce":1}`),
		line(t, 2, "0xa", `{"operation":"TRANSFER","token":"GOLD","recipient":"0xb","amount":250,"nonce":2}`),
		line(t, 3, "0xb", `{"operation":"TRANSFER","token":"GOLD","recipient":"0xc","amount":200,"nonce":1}`),
		line(t, 4, "0xb", `hello world`),
		line(t, 5, "0xc", `{"operation":"VOTE"}`),
		line(t, 6, "0xc", `{"operation":"CREATE","name":"GOLD","supply":1,"nonce":1}`),
	}
}

func TestReplayCountsOutcomes(t *testing.T) {
	lines := append(eventLog(t), "", "not json", line(t, 7, "", `{}`), eventLog(t)[0])
	res, err := Run(context.Background(), strings.NewReader(strings.Join(lines, "\n")), ledger.NonceEnforce, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, 7, res.Events)
	assert.Equal(t, 2, res.Malformed)
	assert.Equal(t, 3, res.Outcomes[ledger.StatusApplied])
	assert.Equal(t, 1, res.Outcomes[ledger.StatusRejected])
	assert.Equal(t, 1, res.Outcomes[ledger.StatusUndecodable])
	assert.Equal(t, 1, res.Outcomes[ledger.StatusIgnored])
	assert.Equal(t, 1, res.Outcomes[ledger.StatusDuplicate])

	bal, err := res.Store.GetBalance(context.Background(), "GOLD", "0xb")
	require.NoError(t, err)
	assert.Equal(t, "50", bal.Amount.String())
}

func TestReplayIsDeterministic(t *testing.T) {
	log := strings.Join(eventLog(t), "\n")

	first, err := Run(context.Background(), strings.NewReader(log), ledger.NonceEnforce, nil)
	require.NoError(t, err)
	second, err := Run(context.Background(), strings.NewReader(log), ledger.NonceEnforce, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Digest, second.Digest)
	assert.True(t, strings.HasPrefix(first.Digest, "0x"))

	lines := eventLog(t)
	lines[1], lines[2] = lines[2], lines[1]
	reordered, err := Run(context.Background(), strings.NewReader(strings.Join(lines, "\n")), ledger.NonceEnforce, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Digest, reordered.Digest)
}

func TestReplayHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, strings.NewReader(strings.Join(eventLog(t), "\n")), ledger.NonceEnforce, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
