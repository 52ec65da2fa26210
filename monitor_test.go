package monitorz

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errDeclined = errors.New("payment declined")

func newTestRegistry(t *testing.T) (*Registry, *clockz.FakeClock, *observer.ObservedLogs) {
	t.Helper()
	clock := clockz.NewFakeClock()
	core, logs := observer.New(zap.DebugLevel)
	registry := New(WithClock(clock), WithLogger(zap.New(core)))
	t.Cleanup(func() { _ = registry.Close() })
	return registry, clock, logs
}

func TestMonitorRunSuccess(t *testing.T) {
	registry, clock, logs := newTestRegistry(t)
	m := registry.Monitor(TestOrderCreate)

	err := m.Run(context.Background(), func(ctx context.Context) error {
		clock.Advance(10 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	err = m.Run(context.Background(), func(ctx context.Context) error {
		clock.Advance(20 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	s := m.Statistics()
	assert.Equal(t, TestOrderCreate, m.Name())
	assert.Equal(t, int64(2), s.Entries)
	assert.Equal(t, int64(2), s.Exits)
	assert.Equal(t, int64(0), s.Failures)
	assert.InDelta(t, 30.0, s.TotalDuration, 1e-9)
	assert.InDelta(t, 20.0, s.LastDuration, 1e-9)
	assert.InDelta(t, 12.5, s.WeightedAverage, 1e-9)

	assert.Equal(t, 2, logs.FilterMessage("entering operation").Len())
	assert.Equal(t, 2, logs.FilterMessage("exiting operation").Len())
}

func TestMonitorRunReturnsSameError(t *testing.T) {
	registry, clock, logs := newTestRegistry(t)
	m := registry.Monitor(TestOrderCreate, WithFailureLevel(zapcore.WarnLevel))

	err := m.Run(context.Background(), func(ctx context.Context) error {
		clock.Advance(5 * time.Millisecond)
		return errDeclined
	})
	assert.Same(t, errDeclined, err, "error must not be wrapped")

	s := m.Statistics()
	assert.Equal(t, int64(1), s.Exits)
	assert.Equal(t, int64(1), s.Failures)
	assert.InDelta(t, 5.0, s.LastDuration, 1e-9)

	failures := logs.FilterMessage("operation failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, zapcore.WarnLevel, failures[0].Level)
	assert.Equal(t, TestOrderCreate, failures[0].ContextMap()["operation"])
}

func TestMonitorRunPanic(t *testing.T) {
	registry, clock, logs := newTestRegistry(t)
	m := registry.Monitor(TestOrderCancel)

	assert.PanicsWithValue(t, "boom", func() {
		_ = m.Run(context.Background(), func(ctx context.Context) error {
			clock.Advance(3 * time.Millisecond)
			panic("boom")
		})
	})

	s := m.Statistics()
	assert.Equal(t, int64(1), s.Entries)
	assert.Equal(t, int64(1), s.Exits)
	assert.Equal(t, int64(1), s.Failures)
	assert.InDelta(t, 3.0, s.LastDuration, 1e-9)
	assert.Equal(t, 1, logs.FilterMessage("operation panicked").Len())
}

func TestMonitorRunGoexit(t *testing.T) {
	registry, clock, logs := newTestRegistry(t)
	m := registry.Monitor(TestOrderCancel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(context.Background(), func(ctx context.Context) error {
			clock.Advance(2 * time.Millisecond)
			runtime.Goexit()
			return nil
		})
	}()
	<-done

	s := m.Statistics()
	assert.Equal(t, int64(1), s.Entries)
	assert.Equal(t, int64(1), s.Exits)
	assert.Equal(t, int64(1), s.Failures)
	assert.Equal(t, int64(0), s.InFlight())
	assert.InDelta(t, 2.0, s.LastDuration, 1e-9)
	assert.Equal(t, 1, logs.FilterMessage("operation exited without returning").Len())
}

func TestCallGoexit(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	m := registry.Monitor(TestOrderCreate)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Call(context.Background(), m, func(ctx context.Context) (int, error) {
			runtime.Goexit()
			return 0, nil
		})
	}()
	<-done

	s := m.Statistics()
	assert.Equal(t, int64(1), s.Exits)
	assert.Equal(t, int64(1), s.Failures)
}

func TestCall(t *testing.T) {
	registry, clock, _ := newTestRegistry(t)
	m := registry.Monitor(TestOrderCreate)

	v, err := Call(context.Background(), m, func(ctx context.Context) (string, error) {
		clock.Advance(time.Millisecond)
		return "order-1", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "order-1", v)

	_, err = Call(context.Background(), m, func(ctx context.Context) (int, error) {
		return 0, errDeclined
	})
	assert.ErrorIs(t, err, errDeclined)

	s := m.Statistics()
	assert.Equal(t, int64(2), s.Exits)
	assert.Equal(t, int64(1), s.Failures)
}

func TestInvocationEndOnce(t *testing.T) {
	registry, clock, _ := newTestRegistry(t)
	m := registry.Monitor(TestOrderCreate)

	inv := m.Begin()
	clock.Advance(4 * time.Millisecond)
	assert.ErrorIs(t, inv.End(errDeclined), errDeclined)
	assert.NoError(t, inv.End(nil), "second End returns its argument")

	s := m.Statistics()
	assert.Equal(t, int64(1), s.Entries)
	assert.Equal(t, int64(1), s.Exits)
	assert.Equal(t, int64(1), s.Failures)
}

func TestInvocationInFlight(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	m := registry.Monitor(TestOrderCreate)

	inv := m.Begin()
	s := m.Statistics()
	assert.Equal(t, int64(1), s.InFlight())

	require.NoError(t, inv.End(nil))
	assert.Equal(t, int64(0), m.Statistics().InFlight())
}

func TestMonitorSharesRegistryAggregate(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	a := registry.Monitor(TestOrderCreate)
	b := registry.Monitor(TestOrderCreate)
	require.NoError(t, a.Run(context.Background(), func(context.Context) error { return nil }))
	require.NoError(t, b.Run(context.Background(), func(context.Context) error { return nil }))

	s, ok := registry.Snapshot(TestOrderCreate)
	require.True(t, ok)
	assert.Equal(t, int64(2), s.Exits)
}

func TestMonitorNotifiesObserversWithError(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	events := make(chan Completion, 1)
	_, err := registry.Observe(func(ctx context.Context, c Completion) error {
		events <- c
		return nil
	})
	require.NoError(t, err)

	m := registry.Monitor(TestOrderCreate)
	_ = m.Run(context.Background(), func(context.Context) error { return errDeclined })

	select {
	case c := <-events:
		assert.True(t, c.Failed)
		assert.Same(t, errDeclined, c.Err)
	case <-time.After(time.Second):
		t.Fatal("observer not notified")
	}
}
