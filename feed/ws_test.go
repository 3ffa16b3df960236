package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/derj90/ai-trading-manager-clean/market"
)

type captureHandler struct {
	mu    sync.Mutex
	ticks []market.Tick
}

func (h *captureHandler) UpdatePrice(t market.Tick) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ticks = append(h.ticks, t)
	return nil
}

func (h *captureHandler) snapshot() []market.Tick {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]market.Tick(nil), h.ticks...)
}

func TestClientForwardsTicks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Expect the subscribe frame first.
		var sub subscribeMsg
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if sub.Op != "subscribe" || len(sub.Symbols) != 1 {
			t.Errorf("unexpected subscribe: %+v", sub)
		}

		conn.WriteJSON(tickMsg{Symbol: "BTCUSDT", Bid: 49999, Ask: 50001, TsMs: 1700000000000})
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))     // skipped
		conn.WriteJSON(tickMsg{Symbol: "", Bid: 1, Ask: 2})              // skipped
		conn.WriteJSON(tickMsg{Symbol: "ETHUSDT", Bid: 2999, Ask: 3001}) // no ts

		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	h := &captureHandler{}
	c := NewClient(url, []string{"BTCUSDT"}, h, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for {
		if len(h.snapshot()) >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("ticks never arrived: %v", h.snapshot())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	ticks := h.snapshot()
	if ticks[0].Symbol != "BTCUSDT" || ticks[0].Bid != 49999 {
		t.Errorf("first tick = %+v", ticks[0])
	}
	if !ticks[0].Time.Equal(time.UnixMilli(1700000000000).UTC()) {
		t.Errorf("tick time = %v, want from ts field", ticks[0].Time)
	}
	if ticks[1].Symbol != "ETHUSDT" {
		t.Errorf("second tick = %+v", ticks[1])
	}
}
