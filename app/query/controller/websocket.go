package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/canopy-network/postertoken/pkg/ledger"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Server message types.
const (
	MessageApplied      = "ledger.applied"
	MessageSubscribed   = "subscribed"
	MessageUnsubscribed = "unsubscribed"
	MessageError        = "error"
	MessageInfo         = "info"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ClientMessage represents messages sent by WebSocket clients.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Token  string `json:"token"`  // Token name, or "*" for all tokens
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// clientSubscriptions tracks which tokens a client follows.
type clientSubscriptions struct {
	mu     sync.RWMutex
	tokens map[string]bool
}

func newClientSubscriptions() *clientSubscriptions {
	return &clientSubscriptions{
		tokens: make(map[string]bool),
	}
}

func (cs *clientSubscriptions) subscribe(token string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.tokens[token] = true
}

func (cs *clientSubscriptions) unsubscribe(token string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.tokens, token)
}

// isSubscribed checks a token name. Wildcard (*) matches all tokens.
func (cs *clientSubscriptions) isSubscribed(token string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.tokens["*"] || cs.tokens[token]
}

// HandleWebSocket upgrades HTTP connection to WebSocket and streams applied ledger commands.
//
// Protocol:
// Client sends: {"action": "subscribe", "token": "GOLD"}   // one token
// Client sends: {"action": "subscribe", "token": "*"}      // every token
// Client sends: {"action": "unsubscribe", "token": "GOLD"}
//
// Server sends:
// - {"type": "ledger.applied", "payload": {...}}
// - {"type": "subscribed", "payload": {"token": "GOLD"}}
// - {"type": "unsubscribed", "payload": {"token": "GOLD"}}
// - {"type": "error", "payload": {"message": "..."}}
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient == nil {
		http.Error(w, "Live feed not available (Redis disabled)", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	}(conn)

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := newClientSubscriptions()
	send := make(chan ServerMessage, 256)

	// producers write to send; send is closed only after they have all returned.
	var producers, consumers sync.WaitGroup
	guard := func(wg *sync.WaitGroup, name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					c.App.Logger.Error("Panic in websocket goroutine",
						zap.String("goroutine", name),
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("remote_addr", r.RemoteAddr))
					cancel()
				}
			}()
			fn()
		}()
	}

	guard(&producers, "redis_subscriber", func() { c.subscribeToRedis(ctx, send, subs) })
	guard(&consumers, "ping", func() { c.sendPings(ctx, conn) })
	guard(&consumers, "writer", func() { c.writeMessages(conn, send) })

	// Blocks until the connection closes.
	c.readClientMessages(ctx, conn, cancel, subs, send)

	cancel()
	producers.Wait()
	close(send)
	consumers.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

// subscribeToRedis subscribes to the applied channel and forwards matching events,
// reconnecting with exponential backoff until ctx is cancelled.
func (c *Controller) subscribeToRedis(ctx context.Context, send chan<- ServerMessage, subs *clientSubscriptions) {
	const (
		initialBackoff = 1 * time.Second
		maxBackoff     = 30 * time.Second
		backoffFactor  = 2.0
		jitterFactor   = 0.1
	)

	backoff := initialBackoff
	attemptNum := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		attemptNum++
		subscriptionErr := c.attemptRedisSubscription(ctx, send, subs, attemptNum)
		if ctx.Err() != nil {
			return
		}

		c.App.Logger.Warn("Redis subscription ended, will retry",
			zap.Error(subscriptionErr),
			zap.Int("attempt", attemptNum),
			zap.Duration("backoff", backoff))

		if !trySend(ctx, send, ServerMessage{
			Type: MessageError,
			Payload: map[string]interface{}{
				"message":     "Live feed interrupted, attempting to reconnect...",
				"retryIn":     backoff.Seconds(),
				"attempt":     attemptNum,
				"recoverable": true,
			},
		}) {
			return
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = calculateNextBackoff(backoff, maxBackoff, backoffFactor, jitterFactor)
	}
}

func (c *Controller) attemptRedisSubscription(ctx context.Context, send chan<- ServerMessage, subs *clientSubscriptions, attemptNum int) error {
	pubsub := c.App.RedisClient.Subscribe(ctx, c.App.AppliedChannel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			c.App.Logger.Debug("Error closing Redis subscription", zap.Error(err))
		}
	}()

	receiveCtx, receiveCancel := context.WithTimeout(ctx, 5*time.Second)
	defer receiveCancel()
	if _, err := pubsub.Receive(receiveCtx); err != nil {
		return fmt.Errorf("failed to confirm Redis subscription: %w", err)
	}

	if !trySend(ctx, send, ServerMessage{
		Type:    MessageInfo,
		Payload: map[string]interface{}{"message": "Live feed connected", "attempt": attemptNum},
	}) {
		return ctx.Err()
	}

	return c.forwardApplied(ctx, pubsub.Channel(), send, subs)
}

// forwardApplied relays notifications for subscribed tokens until ch closes or ctx ends.
func (c *Controller) forwardApplied(ctx context.Context, ch <-chan *goredis.Message, send chan<- ServerMessage, subs *clientSubscriptions) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var n ledger.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				c.App.Logger.Warn("Failed to parse ledger notification",
					zap.Error(err),
					zap.String("channel", msg.Channel))
				continue
			}
			if !subs.isSubscribed(n.Token) {
				continue
			}

			if !trySend(ctx, send, ServerMessage{Type: MessageApplied, Payload: n}) {
				return ctx.Err()
			}
		}
	}
}

func trySend(ctx context.Context, send chan<- ServerMessage, msg ServerMessage) bool {
	select {
	case send <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// calculateNextBackoff calculates the next backoff duration with exponential growth and jitter.
func calculateNextBackoff(current, max time.Duration, factor, jitterFactor float64) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		next = max
	}

	jitter := float64(next) * jitterFactor * (2*rand.Float64() - 1)
	nextWithJitter := time.Duration(float64(next) + jitter)

	if nextWithJitter < current {
		nextWithJitter = current
	}
	if nextWithJitter > max {
		nextWithJitter = max
	}
	return nextWithJitter
}

// sendPings sends periodic WebSocket ping frames to keep the connection alive.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// writeMessages writes messages from the send channel to the WebSocket connection.
func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan ServerMessage) {
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			c.App.Logger.Debug("Failed to write WebSocket message", zap.Error(err))
			// keep draining so producers never block on a dead connection
			for range send {
			}
			return
		}
	}
}

// readClientMessages handles subscription requests and detects connection closure.
func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, subs *clientSubscriptions, send chan<- ServerMessage) {
	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		if ctx.Err() != nil {
			return
		}

		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.App.Logger.Warn("WebSocket read error", zap.Error(err))
			}
			cancel()
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			cancel()
			return
		}

		var reply ServerMessage
		switch {
		case msg.Action != "subscribe" && msg.Action != "unsubscribe":
			reply = ServerMessage{Type: MessageError, Payload: map[string]string{"message": "unknown action: " + msg.Action}}
		case msg.Token == "":
			reply = ServerMessage{Type: MessageError, Payload: map[string]string{"message": "token is required"}}
		case msg.Action == "subscribe":
			subs.subscribe(msg.Token)
			reply = ServerMessage{Type: MessageSubscribed, Payload: map[string]string{"token": msg.Token}}
		default:
			subs.unsubscribe(msg.Token)
			reply = ServerMessage{Type: MessageUnsubscribed, Payload: map[string]string{"token": msg.Token}}
		}
		if !trySend(ctx, send, reply) {
			return
		}
	}
}
