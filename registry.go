package monitorz

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// Option configures a Registry during creation.
type Option func(*config)

// config holds internal configuration for registry creation.
type config struct {
	clock     clockz.Clock // Time abstraction for deterministic testing
	logger    *zap.Logger
	workers   int
	queueSize int
	timeout   time.Duration
}

// WithClock sets the clock used to time monitored operations and to stamp
// completion events. Default is clockz.RealClock.
// Use a fake clock from clockz for deterministic tests.
func WithClock(clock clockz.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithLogger sets the structured logger. Default is zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithWorkers sets the number of goroutines delivering completion events to
// observers. Default is 4.
func WithWorkers(count int) Option {
	return func(c *config) {
		c.workers = count
	}
}

// WithQueueSize sets the observer queue size.
// Default is 0, which auto-calculates as workers * 64.
func WithQueueSize(size int) Option {
	return func(c *config) {
		c.queueSize = size
	}
}

// WithObserverTimeout bounds each observer callback. Default is no timeout.
func WithObserverTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = timeout
	}
}

// maxObservers caps observer registrations per registry.
const maxObservers = 64

// Completion describes one finished invocation delivered to observers.
type Completion struct {
	Name    Key
	Elapsed float64 // Milliseconds
	Failed  bool
	Err     error // Set when reported through a Monitor
	At      time.Time
}

// observerEntry pairs a callback with the id used to unhook it.
type observerEntry struct {
	id       string
	callback func(context.Context, Completion) error
}

// Registry maps operation names to their Aggregate.
//
// Aggregates are created on first use and are never removed, so a Registry
// grows with the number of distinct names it has seen. Concurrent first use
// of a name always yields a single Aggregate.
//
// A Registry is an ordinary value: construct one with New and pass it to the
// code that reports operations. All methods are safe for concurrent use.
type Registry struct {
	clock      clockz.Clock
	logger     *zap.Logger
	cfg        config
	aggregates sync.Map // map[Key]*Aggregate

	// observers is replaced wholesale under mu and read lock-free on the
	// completion path.
	observers atomic.Pointer[[]observerEntry]
	workers   atomic.Pointer[workerPool]
	mu        sync.Mutex
	closed    bool

	metrics Metrics
}

// New creates a registry with the specified options.
//
// Default configuration:
//   - clockz.RealClock
//   - zap.NewNop() logger
//   - 4 observer workers with a queue of 256, started on the first Observe
//
// Example:
//
//	registry := monitorz.New(
//	    monitorz.WithLogger(logger),
//	    monitorz.WithWorkers(8),
//	)
//	defer registry.Close()
func New(opts ...Option) *Registry {
	cfg := config{
		clock:   clockz.RealClock,
		workers: 4,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.workers <= 0 {
		cfg.workers = 1
	}
	if cfg.queueSize <= 0 {
		cfg.queueSize = cfg.workers * 64
	}

	return &Registry{
		clock:  cfg.clock,
		logger: cfg.logger,
		cfg:    cfg,
	}
}

// GetOrCreate returns the aggregate for name, creating it on first use.
// Every caller racing on a new name receives the same instance.
func (r *Registry) GetOrCreate(name Key) *Aggregate {
	if v, ok := r.aggregates.Load(name); ok {
		return v.(*Aggregate)
	}

	v, loaded := r.aggregates.LoadOrStore(name, newAggregate(name))
	if !loaded {
		atomic.AddInt64(&r.metrics.Operations, 1)
		r.logger.Debug("operation registered", zap.String("operation", name))
	}
	return v.(*Aggregate)
}

// Lookup returns the aggregate for name without creating it.
func (r *Registry) Lookup(name Key) (*Aggregate, bool) {
	v, ok := r.aggregates.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Aggregate), true
}

// RecordEntry counts one start of the named operation.
// It performs a single atomic add and never waits on a lock.
func (r *Registry) RecordEntry(name Key) {
	r.GetOrCreate(name).Enter()
}

// RecordCompletion records one finished invocation of the named operation
// that took elapsed milliseconds, and returns the recorded duration.
//
// Completions of the same name are serialized; different names never
// contend. Registered observers are notified asynchronously afterwards.
func (r *Registry) RecordCompletion(name Key, elapsed float64, failed bool) float64 {
	return r.complete(r.GetOrCreate(name), elapsed, failed, nil)
}

func (r *Registry) complete(agg *Aggregate, elapsed float64, failed bool, err error) float64 {
	last := agg.Complete(elapsed, failed)
	r.dispatch(agg.Name(), last, failed, err)
	return last
}

// dispatch hands a completion to the observer pool without blocking.
func (r *Registry) dispatch(name Key, elapsed float64, failed bool, err error) {
	obs := r.observers.Load()
	if obs == nil || len(*obs) == 0 {
		return
	}
	pool := r.workers.Load()
	if pool == nil {
		return
	}

	event := Completion{
		Name:    name,
		Elapsed: elapsed,
		Failed:  failed,
		Err:     err,
		At:      r.clock.Now(),
	}
	if submitErr := pool.submit(event); errors.Is(submitErr, ErrQueueFull) {
		r.logger.Debug("completion event dropped",
			zap.String("operation", name),
			zap.Error(submitErr))
	}
}

// Snapshot returns a point-in-time copy of the statistics for name.
// The second result is false if name has never been recorded.
func (r *Registry) Snapshot(name Key) (Statistics, bool) {
	agg, ok := r.Lookup(name)
	if !ok {
		return Statistics{}, false
	}
	return agg.Statistics(), true
}

// Names returns every registered operation name in unspecified order.
func (r *Registry) Names() []Key {
	names := make([]Key, 0, atomic.LoadInt64(&r.metrics.Operations))
	r.aggregates.Range(func(k, _ any) bool {
		names = append(names, k.(Key))
		return true
	})
	return names
}

// Snapshots returns statistics for every registered operation, sorted by
// name. Each entry is consistent on its own; entries are taken one after
// another and may race with concurrent recording.
func (r *Registry) Snapshots() []Statistics {
	out := make([]Statistics, 0, atomic.LoadInt64(&r.metrics.Operations))
	r.aggregates.Range(func(_, v any) bool {
		out = append(out, v.(*Aggregate).Statistics())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Observe registers a callback invoked for every completion recorded after
// registration. Callbacks run on the observer worker pool, never on the
// goroutine that reported the completion, so they may block or do I/O.
//
// The worker pool is started by the first registration.
func (r *Registry) Observe(callback func(context.Context, Completion) error) (Hook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Hook{}, ErrRegistryClosed
	}

	current := r.currentObservers()
	if len(current) >= maxObservers {
		return Hook{}, ErrTooManyObservers
	}

	if r.workers.Load() == nil {
		r.workers.Store(newWorkerPool(r.cfg, &r.metrics, r.currentObservers))
		r.logger.Debug("observer pool started",
			zap.Int("workers", r.cfg.workers),
			zap.Int("queue_size", r.cfg.queueSize))
	}

	id := r.generateID()
	next := make([]observerEntry, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, observerEntry{id: id, callback: callback})
	r.observers.Store(&next)

	return Hook{
		unhook: func() error {
			return r.removeObserver(id)
		},
	}, nil
}

// currentObservers returns the live observer slice. Callers must not modify it.
func (r *Registry) currentObservers() []observerEntry {
	if obs := r.observers.Load(); obs != nil {
		return *obs
	}
	return nil
}

// removeObserver removes an observer by id.
func (r *Registry) removeObserver(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.currentObservers()
	for i, entry := range current {
		if entry.id == id {
			next := make([]observerEntry, 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			r.observers.Store(&next)
			return nil
		}
	}
	return ErrHookNotFound
}

// Metrics returns current registry metrics.
func (r *Registry) Metrics() Metrics {
	m := Metrics{
		Operations:          atomic.LoadInt64(&r.metrics.Operations),
		RegisteredObservers: int64(len(r.currentObservers())),
		QueueDepth:          atomic.LoadInt64(&r.metrics.QueueDepth),
		EventsDelivered:     atomic.LoadInt64(&r.metrics.EventsDelivered),
		EventsDropped:       atomic.LoadInt64(&r.metrics.EventsDropped),
		ObserverFailures:    atomic.LoadInt64(&r.metrics.ObserverFailures),
	}
	if pool := r.workers.Load(); pool != nil {
		m.QueueCapacity = int64(cap(pool.tasks))
	}
	return m
}

// Close stops observer delivery after draining queued events.
// Statistics can still be recorded and read after Close.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrAlreadyClosed
	}
	r.closed = true
	r.mu.Unlock()

	if pool := r.workers.Load(); pool != nil {
		pool.close()
	}
	return nil
}

// generateID creates a random identifier for observer handles.
func (r *Registry) generateID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand does not fail on supported platforms
		return fmt.Sprintf("%d", r.clock.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
