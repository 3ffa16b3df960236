package signal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sink consumes drained signals. The portfolio ledger implements this.
type Sink interface {
	ProcessSignal(ctx context.Context, sig Signal)
}

// Queue buffers accepted signals between the webhook handlers and the
// dispatcher. Safe for concurrent producers and a single consumer.
// While the system is paused, Enqueue drops the signal rather than
// buffering it: backpressure policy is drop-while-inactive, never block
// the producer.
type Queue struct {
	mu     sync.Mutex
	items  []Signal
	paused bool
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends a signal. Returns false if the queue is paused and
// the signal was dropped.
func (q *Queue) Enqueue(sig Signal) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused {
		return false
	}
	q.items = append(q.items, sig)
	return true
}

// DrainAll pops every queued signal in FIFO order.
func (q *Queue) DrainAll() []Signal {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
}

func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
}

func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Dispatcher drains the queue on a fixed interval and forwards each
// signal, in FIFO order, to the sink. Drain passes are serialized: if
// the interval fires while a previous pass is still processing, the
// tick is skipped.
type Dispatcher struct {
	queue    *Queue
	sink     Sink
	interval time.Duration
	logger   *zap.Logger

	drainMu sync.Mutex
}

func NewDispatcher(q *Queue, sink Sink, interval time.Duration, logger *zap.Logger) *Dispatcher {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{queue: q, sink: sink, interval: interval, logger: logger}
}

// Run blocks until ctx is done, draining on every tick. A final drain
// is not attempted on shutdown; undelivered signals are dropped with
// the queue.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain runs one pass. Exposed for tests and for callers that want an
// immediate flush.
func (d *Dispatcher) Drain(ctx context.Context) {
	if !d.drainMu.TryLock() {
		return // previous pass still running
	}
	defer d.drainMu.Unlock()

	batch := d.queue.DrainAll()
	if len(batch) == 0 {
		return
	}
	d.logger.Debug("dispatch drain", zap.Int("signals", len(batch)))

	for _, sig := range batch {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.sink.ProcessSignal(ctx, sig)
	}
}
