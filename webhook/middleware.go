package webhook

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// allowIP rejects callers outside the configured allow-list. An empty
// list admits everyone.
func (s *Server) allowIP(c *gin.Context) {
	if len(s.cfg.AllowedIPs) == 0 {
		return
	}
	ip := c.ClientIP()
	for _, allowed := range s.cfg.AllowedIPs {
		if ip == allowed {
			return
		}
	}
	fail(c, http.StatusForbidden, "ip not allowed")
	c.Abort()
}

func (s *Server) rateLimit(c *gin.Context) {
	if !s.limits.allow(c.ClientIP()) {
		fail(c, http.StatusTooManyRequests, "rate limit exceeded")
		c.Abort()
	}
}

// ipLimiter keeps one token bucket per caller IP. Buckets idle longer
// than bucketIdleTTL are purged lazily on intake; there is no
// background sweeper.
type ipLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*ipBucket
	limit     rate.Limit
	burst     int
	nextSweep time.Time
}

type ipBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

const bucketIdleTTL = 10 * time.Minute

func newIPLimiter(perMinute float64, burst int) *ipLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiter{
		buckets: make(map[string]*ipBucket),
		limit:   rate.Limit(perMinute / 60),
		burst:   burst,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	return l.allowAt(ip, time.Now())
}

func (l *ipLimiter) allowAt(ip string, now time.Time) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	l.sweepLocked(now)
	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	l.mu.Unlock()
	return b.lim.Allow()
}

func (l *ipLimiter) sweepLocked(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for ip, b := range l.buckets {
		if now.Sub(b.seen) > bucketIdleTTL {
			delete(l.buckets, ip)
		}
	}
	l.nextSweep = now.Add(bucketIdleTTL)
}
