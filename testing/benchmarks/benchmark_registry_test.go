package benchmarks

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/zoobzio/monitorz"
)

// BenchmarkRecordEntry measures the lock-free entry path.
func BenchmarkRecordEntry(b *testing.B) {
	registry := monitorz.New()
	defer registry.Close()
	names := generateOperationNames(64)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			registry.RecordEntry(names[i%len(names)])
			i++
		}
	})
}

// BenchmarkRecordCompletion measures completion recording when every
// goroutine hits the same operation, the worst case for the spin lock.
func BenchmarkRecordCompletion(b *testing.B) {
	b.Run("SingleOperation", func(b *testing.B) {
		registry := monitorz.New()
		defer registry.Close()
		durations := generateDurations(1024)

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			i := 0
			for pb.Next() {
				registry.RecordCompletion("hot.Operation()", durations[i%len(durations)], false)
				i++
			}
		})
	})

	b.Run("SpreadOperations", func(b *testing.B) {
		registry := monitorz.New()
		defer registry.Close()
		names := generateOperationNames(256)
		durations := generateDurations(1024)

		var seed atomic.Int64
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			i := int(seed.Add(1)) * 31
			for pb.Next() {
				registry.RecordCompletion(names[i%len(names)], durations[i%len(durations)], false)
				i++
			}
		})
	})
}

// BenchmarkRecordCompletionWithObserver includes the non-blocking dispatch.
func BenchmarkRecordCompletionWithObserver(b *testing.B) {
	registry := monitorz.New(monitorz.WithQueueSize(8192))
	defer registry.Close()

	_, err := registry.Observe(func(ctx context.Context, c monitorz.Completion) error { return nil })
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		registry.RecordCompletion("observed.Operation()", 1, false)
	}
	b.StopTimer()

	b.ReportMetric(float64(registry.Metrics().EventsDropped)/float64(b.N), "dropped/op")
}

// BenchmarkGetOrCreateFirstUse measures registration of new names.
func BenchmarkGetOrCreateFirstUse(b *testing.B) {
	names := generateOperationNames(b.N)
	registry := monitorz.New()
	defer registry.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		registry.GetOrCreate(names[i])
	}
}

// BenchmarkSnapshot measures reading statistics.
func BenchmarkSnapshot(b *testing.B) {
	registry := monitorz.New()
	defer registry.Close()
	registry.RecordCompletion("read.Operation()", 1, false)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := registry.Snapshot("read.Operation()"); !ok {
			b.Fatal("missing snapshot")
		}
	}
}

// BenchmarkMonitorRun measures the full wrapper including timing and the
// disabled debug log check.
func BenchmarkMonitorRun(b *testing.B) {
	registry := monitorz.New()
	defer registry.Close()
	m := registry.Monitor("wrapped.Operation()")
	ctx := context.Background()
	fn := func(context.Context) error { return nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Run(ctx, fn)
	}
}
