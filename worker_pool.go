package monitorz

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// workerPool delivers completion events to observers off the recording path.
//
// The pool:
//   - Accepts events with a non-blocking send and drops them when full
//   - Fans each event out to the observers registered at delivery time
//   - Recovers observer panics so one callback cannot stop delivery
//   - Applies the configured per-callback timeout
//   - Drains queued events on close
type workerPool struct {
	// Time abstraction for deterministic testing
	clock  clockz.Clock
	logger *zap.Logger

	// Channel of pending completion events
	tasks chan Completion

	// observers returns the current observer set
	observers func() []observerEntry

	// WaitGroup to track worker goroutines for graceful shutdown
	wg sync.WaitGroup

	mu sync.RWMutex

	// Timeout applied to each callback; zero means none
	timeout time.Duration

	closed bool

	// Metrics pointer for atomic updates
	metrics *Metrics
}

// newWorkerPool creates a pool and starts cfg.workers goroutines.
func newWorkerPool(cfg config, metrics *Metrics, observers func() []observerEntry) *workerPool {
	pool := &workerPool{
		clock:     cfg.clock,
		logger:    cfg.logger,
		tasks:     make(chan Completion, cfg.queueSize),
		observers: observers,
		timeout:   cfg.timeout,
		metrics:   metrics,
	}

	for i := 0; i < cfg.workers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}

	return pool
}

// submit queues an event for delivery.
//
// Returns ErrQueueFull instead of waiting when the queue has no room, and
// ErrRegistryClosed once the pool is closed.
func (p *workerPool) submit(event Completion) error {
	// Held across the send so close cannot close the channel underneath it.
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrRegistryClosed
	}

	select {
	case p.tasks <- event:
		atomic.AddInt64(&p.metrics.QueueDepth, 1)
		return nil
	default:
		atomic.AddInt64(&p.metrics.EventsDropped, 1)
		return ErrQueueFull
	}
}

// close stops accepting events and waits until queued events are delivered.
func (p *workerPool) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()
}

// worker processes events until the channel is closed.
func (p *workerPool) worker() {
	defer p.wg.Done()

	for event := range p.tasks {
		atomic.AddInt64(&p.metrics.QueueDepth, -1)
		p.deliver(event)
		atomic.AddInt64(&p.metrics.EventsDelivered, 1)
	}
}

// deliver runs every current observer for one event.
func (p *workerPool) deliver(event Completion) {
	for _, obs := range p.observers() {
		if err := p.executeSafely(obs, event); err != nil {
			atomic.AddInt64(&p.metrics.ObserverFailures, 1)
			p.logger.Warn("observer failed",
				zap.String("operation", event.Name),
				zap.String("observer", obs.id),
				zap.Error(err))
		}
	}
}

// executeSafely runs a callback with panic recovery.
func (p *workerPool) executeSafely(obs observerEntry, event Completion) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("observer panicked",
				zap.String("operation", event.Name),
				zap.Any("panic", r))
			err = ErrObserverPanicked
		}
	}()

	return p.execute(obs, event)
}

// execute runs the callback under the configured timeout.
func (p *workerPool) execute(obs observerEntry, event Completion) error {
	ctx := context.Background()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = p.clock.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	return obs.callback(ctx, event)
}
