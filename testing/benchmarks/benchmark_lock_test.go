package benchmarks

import (
	"sync"
	"testing"

	"github.com/zoobzio/monitorz"
)

// BenchmarkSpinLockUncontended measures a single goroutine lock/unlock.
func BenchmarkSpinLockUncontended(b *testing.B) {
	var lock monitorz.SpinLock
	counter := 0

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lock.Lock()
		counter++
		lock.Unlock()
	}
	_ = counter
}

// BenchmarkSpinLockReentrant measures a nested acquisition.
func BenchmarkSpinLockReentrant(b *testing.B) {
	var lock monitorz.SpinLock

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lock.Lock()
		lock.Lock()
		lock.Unlock()
		lock.Unlock()
	}
}

// BenchmarkSpinLockContended compares against sync.Mutex for the short
// critical sections the spin lock is meant for.
func BenchmarkSpinLockContended(b *testing.B) {
	b.Run("SpinLock", func(b *testing.B) {
		var lock monitorz.SpinLock
		counter := 0
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				lock.Lock()
				counter++
				lock.Unlock()
			}
		})
	})

	b.Run("Mutex", func(b *testing.B) {
		var mu sync.Mutex
		counter := 0
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				mu.Lock()
				counter++
				mu.Unlock()
			}
		})
	})
}

// BenchmarkSpinLockDo measures the closure wrapper overhead.
func BenchmarkSpinLockDo(b *testing.B) {
	var lock monitorz.SpinLock
	counter := 0
	action := func() error {
		counter++
		return nil
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = lock.Do(action)
	}
}
