package signal

import (
	"sync"
	"time"
)

// Deduper suppresses repeated alerts for the same symbol/action inside
// a TTL window. This is an at-most-one-admission-per-window policy: two
// distinct payloads for the same symbol/action collapse to one.
//
// It also keeps the bounded recent-signal window served by the
// /signals/recent endpoint. Entries older than 10x the TTL are purged
// lazily on every intake call; there is no background sweeper.
type Deduper struct {
	mu     sync.Mutex
	ttl    time.Duration
	recent []Signal // ascending by ReceivedAt
}

const retentionFactor = 10

func NewDeduper(ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Deduper{ttl: ttl}
}

func (d *Deduper) TTL() time.Duration { return d.ttl }

// Admit records the signal and reports true if no accepted signal with
// the same symbol and action arrived less than one TTL earlier. Check
// and record happen under a single lock acquisition, so concurrent
// intakes of the same symbol/action admit exactly one.
func (d *Deduper) Admit(sig Signal) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sweepLocked(sig.ReceivedAt)

	for i := len(d.recent) - 1; i >= 0; i-- {
		s := d.recent[i]
		if sig.ReceivedAt.Sub(s.ReceivedAt) >= d.ttl {
			break
		}
		if s.Symbol == sig.Symbol && s.Action == sig.Action {
			return false
		}
	}
	d.recent = append(d.recent, sig)
	return true
}

// Recent returns up to n accepted signals, newest first.
func (d *Deduper) Recent(n int) []Signal {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n > len(d.recent) {
		n = len(d.recent)
	}
	out := make([]Signal, 0, n)
	for i := len(d.recent) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, d.recent[i])
	}
	return out
}

// Count returns the number of signals currently retained.
func (d *Deduper) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.recent)
}

func (d *Deduper) sweepLocked(now time.Time) {
	cutoff := now.Add(-retentionFactor * d.ttl)
	i := 0
	for i < len(d.recent) && d.recent[i].ReceivedAt.Before(cutoff) {
		i++
	}
	if i > 0 {
		d.recent = append(d.recent[:0:0], d.recent[i:]...)
	}
}
