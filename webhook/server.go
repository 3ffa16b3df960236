// Package webhook is the HTTP boundary: it authenticates, rate-limits
// and validates inbound alerts, then hands accepted signals to the
// queue. It never touches portfolio state.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/derj90/ai-trading-manager-clean/config"
	"github.com/derj90/ai-trading-manager-clean/signal"
)

const signatureHeader = "x-tradingview-signature"

type Server struct {
	cfg     config.ServerConfig
	deduper *signal.Deduper
	queue   *signal.Queue
	logger  *zap.Logger
	limits  *ipLimiter
	started time.Time

	router *gin.Engine
}

func New(cfg config.ServerConfig, deduper *signal.Deduper, queue *signal.Queue, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		deduper: deduper,
		queue:   queue,
		logger:  logger,
		limits:  newIPLimiter(cfg.RatePerMinute, cfg.RateBurst),
		started: time.Now(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/webhook", s.allowIP, s.rateLimit, s.handleWebhook)
	r.GET("/health", s.handleHealth)
	r.GET("/signals/recent", s.handleRecent)

	s.router = r
	return s
}

// Router exposes the gin engine for http.Server wiring and tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "payload too large")
		} else {
			fail(c, http.StatusBadRequest, "unreadable body")
		}
		return
	}

	if !s.verifySignature(body, c.GetHeader(signatureHeader)) {
		s.logger.Warn("webhook signature rejected", zap.String("ip", c.ClientIP()))
		fail(c, http.StatusUnauthorized, "invalid signature")
		return
	}

	sig, err := signal.Validate(body, "webhook")
	if err != nil {
		s.logger.Info("webhook payload rejected",
			zap.String("ip", c.ClientIP()),
			zap.Error(err))
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	// Duplicates are acknowledged, not errored: the alerting source
	// must not retry-storm.
	if !s.deduper.Admit(sig) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "duplicate_ignored",
			"signal_id": sig.ID,
		})
		return
	}

	if !s.queue.Enqueue(sig) {
		s.logger.Info("signal dropped, intake paused", zap.String("signal_id", sig.ID))
	}

	s.logger.Info("signal accepted",
		zap.String("signal_id", sig.ID),
		zap.String("symbol", sig.Symbol),
		zap.String("action", string(sig.Action)))

	c.JSON(http.StatusOK, gin.H{
		"status":    "received",
		"signal_id": sig.ID,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":               "ok",
		"recent_signals_count": s.deduper.Count(),
		"queue_depth":          s.queue.Len(),
		"paused":               s.queue.Paused(),
		"uptime_seconds":       int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleRecent(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"signals": s.deduper.Recent(50),
	})
}

// verifySignature checks the hex HMAC-SHA256 of the raw body. With no
// secret configured the check is skipped; that mode is a documented
// reduced-security fallback.
func (s *Server) verifySignature(body []byte, header string) bool {
	if s.cfg.WebhookSecret == "" {
		return true
	}
	got, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
	mac.Write(body)
	// Constant-time comparison; no timing side channel.
	return hmac.Equal(got, mac.Sum(nil))
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
