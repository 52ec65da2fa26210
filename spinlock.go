package monitorz

import (
	"sync/atomic"

	"github.com/petermattis/goid"
)

// unowned marks a SpinLock that no goroutine holds. Goroutine ids start at 1.
const unowned int64 = 0

// SpinLock is a reentrant mutual-exclusion lock that waits by spinning.
//
// The goroutine holding the lock may acquire it again without blocking
// itself; each Lock must be paired with an Unlock, and the lock becomes
// available to other goroutines once the outermost Unlock runs.
//
// Waiting goroutines never park: Lock retries a compare-and-swap in a tight
// loop until ownership is obtained. There is no fairness, no timeout and no
// deadlock detection, so the lock must only guard short, non-blocking
// critical sections that perform no I/O and take no other locks, channel
// operations or waits. Prefer Do and Exclusive over raw Lock/Unlock.
//
// The zero value is an unlocked SpinLock. A SpinLock must not be copied
// after first use.
type SpinLock struct {
	owner atomic.Int64
	depth atomic.Int64
}

// Lock acquires the lock for the calling goroutine, spinning until it is
// available. A goroutine that already holds the lock re-enters immediately.
func (l *SpinLock) Lock() {
	self := goid.Get()
	for !l.owner.CompareAndSwap(unowned, self) {
		// Only the owner can have stored its own id, so this read is stable
		// for the calling goroutine.
		if l.owner.Load() == self {
			break
		}
	}
	l.depth.Add(1)
}

// Unlock releases one level of ownership. The outermost Unlock hands the
// lock back to other goroutines.
//
// Calling Unlock from a goroutine that does not hold the lock is a contract
// violation and is not checked.
func (l *SpinLock) Unlock() {
	if l.depth.Add(-1) <= 0 {
		l.depth.Store(0)
		l.owner.Store(unowned)
	}
}

// HeldByCurrent reports whether the calling goroutine holds the lock.
func (l *SpinLock) HeldByCurrent() bool {
	return l.owner.Load() == goid.Get()
}

// Do runs action while holding the lock and returns its error.
// The lock is released on every exit path, including a panic in action,
// which continues to propagate after release.
func (l *SpinLock) Do(action func() error) error {
	l.Lock()
	defer l.Unlock()
	return action()
}

// Exclusive runs fn while holding l and returns its result.
// Like Do, it releases the lock before an error or panic reaches the caller.
func Exclusive[T any](l *SpinLock, fn func() (T, error)) (T, error) {
	l.Lock()
	defer l.Unlock()
	return fn()
}
