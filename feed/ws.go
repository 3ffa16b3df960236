// Package feed is a thin boundary adapter for live prices: it reads
// tick messages off a websocket and forwards them to the ledger. It
// carries no market-data logic of its own.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/derj90/ai-trading-manager-clean/market"
)

// TickHandler consumes forwarded ticks. The portfolio ledger
// implements this.
type TickHandler interface {
	UpdatePrice(t market.Tick) error
}

type tickMsg struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	TsMs   int64   `json:"ts"`
}

type subscribeMsg struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

type Client struct {
	url     string
	symbols []string
	handler TickHandler
	logger  *zap.Logger
}

func NewClient(url string, symbols []string, handler TickHandler, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{url: url, symbols: symbols, handler: handler, logger: logger}
}

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Run connects and forwards ticks until ctx is done, reconnecting with
// capped exponential backoff on any stream error.
func (c *Client) Run(ctx context.Context) error {
	backoff := initialBackoff

	for {
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("feed stream ended, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) stream(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("feed dial %s: %w", c.url, err)
	}
	defer conn.Close()

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if len(c.symbols) > 0 {
		if err := conn.WriteJSON(subscribeMsg{Op: "subscribe", Symbols: c.symbols}); err != nil {
			return fmt.Errorf("feed subscribe: %w", err)
		}
	}

	c.logger.Info("feed connected", zap.String("url", c.url), zap.Strings("symbols", c.symbols))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed read: %w", err)
		}

		var msg tickMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("feed: skipping unparseable message", zap.ByteString("data", data))
			continue
		}
		if msg.Symbol == "" || msg.Bid <= 0 || msg.Ask <= 0 {
			continue
		}

		tm := time.Now().UTC()
		if msg.TsMs > 0 {
			tm = time.UnixMilli(msg.TsMs).UTC()
		}

		if err := c.handler.UpdatePrice(market.Tick{
			Symbol: msg.Symbol,
			Bid:    msg.Bid,
			Ask:    msg.Ask,
			Time:   tm,
		}); err != nil {
			c.logger.Error("feed: price update failed",
				zap.String("symbol", msg.Symbol),
				zap.Error(err))
		}
	}
}
