package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derj90/ai-trading-manager-clean/config"
	"github.com/derj90/ai-trading-manager-clean/signal"
)

func newTestServer(t *testing.T, mutate func(*config.ServerConfig)) (*Server, *signal.Queue) {
	t.Helper()
	cfg := config.ServerConfig{
		Addr:          ":0",
		RatePerMinute: 600,
		RateBurst:     100,
		MaxBodyBytes:  1 << 20,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	q := signal.NewQueue()
	return New(cfg, signal.NewDeduper(60*time.Second), q, nil), q
}

func post(s *Server, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:5000"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestWebhookAccepts(t *testing.T) {
	s, q := newTestServer(t, nil)

	w := post(s, `{"symbol": "BTCUSDT", "action": "buy", "price": 50000, "stop_loss": 49500}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "received", resp["status"])
	assert.NotEmpty(t, resp["signal_id"])
	assert.Equal(t, 1, q.Len())
}

func TestWebhookDuplicateIgnored(t *testing.T) {
	s, q := newTestServer(t, nil)

	body := `{"symbol": "BTCUSDT", "action": "buy", "price": 50000}`
	w1 := post(s, body, nil)
	require.Equal(t, http.StatusOK, w1.Code)

	w2 := post(s, body, nil)
	require.Equal(t, http.StatusOK, w2.Code, "duplicates are acknowledged, not errored")

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
	assert.Equal(t, "duplicate_ignored", resp["status"])
	assert.Equal(t, 1, q.Len(), "exactly one admission per window")
}

func TestWebhookConcurrentDuplicates(t *testing.T) {
	s, q := newTestServer(t, nil)
	body := `{"symbol": "BTCUSDT", "action": "buy", "price": 50000, "stop_loss": 49500}`

	const n = 16
	var wg sync.WaitGroup
	statuses := make(chan string, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			w := post(s, body, nil)
			var resp map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err == nil {
				status, _ := resp["status"].(string)
				statuses <- status
			}
		}()
	}
	wg.Wait()
	close(statuses)

	received := 0
	for status := range statuses {
		if status == "received" {
			received++
		}
	}
	assert.Equal(t, 1, received, "exactly one admission per window")
	assert.Equal(t, 1, q.Len())
}

func TestWebhookRejectsMalformed(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := post(s, `{"action": "buy"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(s, `{"symbol": "NOPE!!", "action": "buy"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookSignature(t *testing.T) {
	secret := "shhh"
	s, q := newTestServer(t, func(c *config.ServerConfig) { c.WebhookSecret = secret })

	body := `{"symbol": "BTCUSDT", "action": "buy", "price": 50000}`

	w := post(s, body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "missing signature")

	w = post(s, body, map[string]string{"x-tradingview-signature": "deadbeef"})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "wrong signature")
	assert.Equal(t, 0, q.Len(), "nothing enqueued on security failure")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	good := hex.EncodeToString(mac.Sum(nil))

	w = post(s, body, map[string]string{"x-tradingview-signature": good})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, q.Len())
}

func TestWebhookBodyCap(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.ServerConfig) { c.MaxBodyBytes = 64 })

	big := bytes.Repeat([]byte("x"), 200)
	w := post(s, string(big), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWebhookUnreadableBody(t *testing.T) {
	s, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook", brokenReader{})
	req.RemoteAddr = "192.0.2.1:5000"
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code, "a failed read is not an oversize body")
}

func TestWebhookIPAllowList(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.ServerConfig) {
		c.AllowedIPs = []string{"10.1.1.1"}
	})

	w := post(s, `{"symbol": "BTCUSDT", "action": "buy"}`, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebhookRateLimit(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.ServerConfig) {
		c.RatePerMinute = 60
		c.RateBurst = 1
	})

	w := post(s, `{"symbol": "BTCUSDT", "action": "buy"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = post(s, `{"symbol": "ETHUSDT", "action": "buy"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	l := newIPLimiter(600, 10)
	t0 := time.Now()

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		require.True(t, l.allowAt(ip, t0))
	}
	l.mu.Lock()
	n := len(l.buckets)
	l.mu.Unlock()
	require.Equal(t, 3, n)

	// An intake past the idle TTL purges the stale buckets.
	require.True(t, l.allowAt("10.0.0.9", t0.Add(bucketIdleTTL+time.Second)))
	l.mu.Lock()
	n = len(l.buckets)
	l.mu.Unlock()
	assert.Equal(t, 1, n)
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	post(s, `{"symbol": "BTCUSDT", "action": "buy"}`, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, 1.0, resp["recent_signals_count"])
}

func TestRecentSignalsNewestFirst(t *testing.T) {
	s, _ := newTestServer(t, nil)

	post(s, `{"symbol": "BTCUSDT", "action": "buy"}`, nil)
	post(s, `{"symbol": "ETHUSDT", "action": "sell"}`, nil)

	req := httptest.NewRequest(http.MethodGet, "/signals/recent", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Signals []signal.Signal `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Signals, 2)
	assert.Equal(t, "ETHUSDT", resp.Signals[0].Symbol)
	assert.Equal(t, "BTCUSDT", resp.Signals[1].Symbol)
}
