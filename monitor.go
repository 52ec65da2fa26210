package monitorz

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MonitorOption configures a Monitor.
type MonitorOption func(*monitorConfig)

type monitorConfig struct {
	traceLevel   zapcore.Level
	failureLevel zapcore.Level
}

// WithTraceLevel sets the level of the entering/exiting log lines.
// Default is zapcore.DebugLevel.
func WithTraceLevel(level zapcore.Level) MonitorOption {
	return func(c *monitorConfig) {
		c.traceLevel = level
	}
}

// WithFailureLevel sets the level used to log failed invocations.
// Default is zapcore.ErrorLevel.
func WithFailureLevel(level zapcore.Level) MonitorOption {
	return func(c *monitorConfig) {
		c.failureLevel = level
	}
}

// Monitor reports the entry and completion of one named operation to its
// Registry, timing each invocation with the registry clock.
//
// A Monitor is cheap to keep: it resolves its Aggregate once and is safe for
// concurrent use.
type Monitor struct {
	registry *Registry
	agg      *Aggregate
	logger   *zap.Logger
	cfg      monitorConfig
}

// Monitor returns a Monitor for name, registering the operation if needed.
func (r *Registry) Monitor(name Key, opts ...MonitorOption) *Monitor {
	cfg := monitorConfig{
		traceLevel:   zapcore.DebugLevel,
		failureLevel: zapcore.ErrorLevel,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Monitor{
		registry: r,
		agg:      r.GetOrCreate(name),
		logger:   r.logger.With(zap.String("operation", name)),
		cfg:      cfg,
	}
}

// Name returns the monitored operation name.
func (m *Monitor) Name() Key { return m.agg.Name() }

// Statistics returns a snapshot of the monitored operation.
func (m *Monitor) Statistics() Statistics { return m.agg.Statistics() }

// Run invokes fn and records it. The error fn returns is passed back
// unchanged. If fn panics, the invocation is recorded as failed and the
// panic continues with its original value.
func (m *Monitor) Run(ctx context.Context, fn func(context.Context) error) error {
	inv := m.Begin()
	defer inv.recoverAndEnd()

	err := fn(ctx)
	return inv.End(err)
}

// Call is the value-returning form of Monitor.Run.
func Call[T any](ctx context.Context, m *Monitor, fn func(context.Context) (T, error)) (T, error) {
	inv := m.Begin()
	defer inv.recoverAndEnd()

	v, err := fn(ctx)
	return v, inv.End(err)
}

// Begin records an entry and starts timing. The returned Invocation must be
// ended exactly once, typically in a defer:
//
//	func (s *Service) Create(ctx context.Context, o Order) (err error) {
//		inv := s.createMonitor.Begin()
//		defer func() { err = inv.End(err) }()
//		...
//	}
func (m *Monitor) Begin() *Invocation {
	m.agg.Enter()
	if ce := m.logger.Check(m.cfg.traceLevel, "entering operation"); ce != nil {
		ce.Write()
	}
	return &Invocation{monitor: m, start: m.registry.clock.Now()}
}

// Invocation is one timed run of a monitored operation.
type Invocation struct {
	monitor *Monitor
	start   time.Time
	ended   atomic.Bool
}

// End records the invocation as failed when err is non-nil and returns err
// unchanged. Only the first call records; later calls just return err.
func (inv *Invocation) End(err error) error {
	if !inv.ended.CompareAndSwap(false, true) {
		return err
	}

	m := inv.monitor
	elapsed := Milliseconds(m.registry.clock.Now().Sub(inv.start))
	m.registry.complete(m.agg, elapsed, err != nil, err)

	if err != nil {
		if ce := m.logger.Check(m.cfg.failureLevel, "operation failed"); ce != nil {
			ce.Write(zap.Float64("elapsed_ms", elapsed), zap.Error(err))
		}
		return err
	}
	if ce := m.logger.Check(m.cfg.traceLevel, "exiting operation"); ce != nil {
		ce.Write(zap.Float64("elapsed_ms", elapsed))
	}
	return nil
}

// recoverAndEnd records a panicking invocation as failed and re-panics.
// An invocation left unended without a panic, as after runtime.Goexit, is
// recorded as failed too. It must be deferred directly so recover sees the
// panic.
func (inv *Invocation) recoverAndEnd() {
	r := recover()
	if !inv.ended.CompareAndSwap(false, true) {
		if r != nil {
			panic(r)
		}
		return
	}

	m := inv.monitor
	elapsed := Milliseconds(m.registry.clock.Now().Sub(inv.start))
	m.registry.complete(m.agg, elapsed, true, nil)
	if r == nil {
		if ce := m.logger.Check(m.cfg.failureLevel, "operation exited without returning"); ce != nil {
			ce.Write(zap.Float64("elapsed_ms", elapsed))
		}
		return
	}
	if ce := m.logger.Check(m.cfg.failureLevel, "operation panicked"); ce != nil {
		ce.Write(zap.Float64("elapsed_ms", elapsed), zap.Any("panic", r))
	}
	panic(r)
}
