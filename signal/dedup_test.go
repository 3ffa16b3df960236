package signal

import (
	"sync"
	"testing"
	"time"
)

func sigAt(symbol string, action Action, at time.Time) Signal {
	return Signal{
		ID:         "sig-" + symbol + "-" + at.Format("150405"),
		ReceivedAt: at,
		Symbol:     symbol,
		Action:     action,
	}
}

func TestDeduperWindow(t *testing.T) {
	d := NewDeduper(60 * time.Second)
	t0 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	if !d.Admit(sigAt("BTCUSDT", ActionBuy, t0)) {
		t.Fatal("empty window must admit")
	}

	// Same symbol/action inside the TTL: duplicate.
	if d.Admit(sigAt("BTCUSDT", ActionBuy, t0.Add(30*time.Second))) {
		t.Error("same symbol/action within TTL must be a duplicate")
	}
	// Different action or symbol: admitted.
	if !d.Admit(sigAt("BTCUSDT", ActionSell, t0.Add(30*time.Second))) {
		t.Error("different action is not a duplicate")
	}
	if !d.Admit(sigAt("ETHUSDT", ActionBuy, t0.Add(30*time.Second))) {
		t.Error("different symbol is not a duplicate")
	}
	// Past the TTL: admitted again.
	if !d.Admit(sigAt("BTCUSDT", ActionBuy, t0.Add(61*time.Second))) {
		t.Error("signal past the TTL is not a duplicate")
	}
}

func TestDeduperConcurrentAdmitsOne(t *testing.T) {
	d := NewDeduper(60 * time.Second)
	t0 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	const workers = 32
	var (
		start    sync.WaitGroup
		done     sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	start.Add(1)
	done.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer done.Done()
			start.Wait()
			if d.Admit(sigAt("BTCUSDT", ActionBuy, t0)) {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	start.Done()
	done.Wait()

	if admitted != 1 {
		t.Errorf("admitted = %d, want exactly 1 per window", admitted)
	}
	if d.Count() != 1 {
		t.Errorf("retained = %d, want 1", d.Count())
	}
}

func TestDeduperLazySweep(t *testing.T) {
	d := NewDeduper(time.Second)
	t0 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		d.Admit(sigAt("ETHUSDT", ActionBuy, t0.Add(time.Duration(i)*2*time.Second)))
	}
	if d.Count() != 5 {
		t.Fatalf("count = %d, want 5", d.Count())
	}

	// An intake call past 10xTTL purges the whole window.
	d.Admit(sigAt("BTCUSDT", ActionBuy, t0.Add(20*time.Second)))
	if d.Count() != 1 {
		t.Errorf("count after sweep = %d, want 1", d.Count())
	}
}

func TestDeduperRecentNewestFirst(t *testing.T) {
	d := NewDeduper(time.Minute)
	t0 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	d.Admit(sigAt("BTCUSDT", ActionBuy, t0))
	d.Admit(sigAt("ETHUSDT", ActionSell, t0.Add(time.Second)))
	d.Admit(sigAt("XAUUSD", ActionBuy, t0.Add(2*time.Second)))

	recent := d.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("recent = %d, want 2", len(recent))
	}
	if recent[0].Symbol != "XAUUSD" || recent[1].Symbol != "ETHUSDT" {
		t.Errorf("recent not newest first: %s, %s", recent[0].Symbol, recent[1].Symbol)
	}
}
