package signal

import (
	"context"
	"sync"
	"testing"
	"time"
)

type captureSink struct {
	mu   sync.Mutex
	seen []Signal
}

func (s *captureSink) ProcessSignal(_ context.Context, sig Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, sig)
}

func (s *captureSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.seen))
	for i, sig := range s.seen {
		out[i] = sig.ID
	}
	return out
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	sink := &captureSink{}
	d := NewDispatcher(q, sink, time.Second, nil)

	q.Enqueue(Signal{ID: "a"})
	q.Enqueue(Signal{ID: "b"})
	q.Enqueue(Signal{ID: "c"})

	d.Drain(context.Background())

	ids := sink.ids()
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("drain order = %v, want [a b c]", ids)
	}
	if q.Len() != 0 {
		t.Errorf("queue len = %d after drain, want 0", q.Len())
	}
}

func TestQueueDropsWhilePaused(t *testing.T) {
	q := NewQueue()

	q.Pause()
	if q.Enqueue(Signal{ID: "dropped"}) {
		t.Error("enqueue while paused should report a drop")
	}
	if q.Len() != 0 {
		t.Errorf("paused queue buffered a signal, len = %d", q.Len())
	}

	q.Resume()
	if !q.Enqueue(Signal{ID: "kept"}) {
		t.Error("enqueue after resume should succeed")
	}
	if q.Len() != 1 {
		t.Errorf("queue len = %d, want 1", q.Len())
	}
}

type blockingSink struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingSink) ProcessSignal(_ context.Context, _ Signal) {
	s.entered <- struct{}{}
	<-s.release
}

func TestDrainPassesAreSerialized(t *testing.T) {
	q := NewQueue()
	sink := &blockingSink{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	d := NewDispatcher(q, sink, time.Second, nil)

	q.Enqueue(Signal{ID: "a"})

	go d.Drain(context.Background())
	<-sink.entered // first pass is now mid-signal

	// A second pass while the first is processing must be a no-op.
	q.Enqueue(Signal{ID: "b"})
	d.Drain(context.Background())
	if q.Len() != 1 {
		t.Errorf("overlapping drain consumed the queue, len = %d, want 1", q.Len())
	}

	close(sink.release)
}

func TestDispatcherRunStopsOnCancel(t *testing.T) {
	q := NewQueue()
	sink := &captureSink{}
	d := NewDispatcher(q, sink, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	q.Enqueue(Signal{ID: "a"})
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
	if len(sink.ids()) == 0 {
		t.Error("dispatcher never drained while running")
	}
}
