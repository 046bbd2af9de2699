// Package sync provides a spinlock for guarding state shared between the
// kernel main loop and code invoked through the syscall gate.
package sync

import "sync/atomic"

var (
	// yieldFn is invoked between acquisition attempts. The kernel runs a
	// single flow of control so it defaults to nil; tests substitute
	// runtime.Gosched.
	yieldFn func()
)

// Spinlock implements a lock where each caller trying to acquire it
// busy-waits till the lock becomes available. Spinlocks must never be
// acquired by trap handlers: traps are serviced on the stack of the
// interrupted code so a handler spinning on a lock held by that code would
// never make progress.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired. Any attempt to re-acquire a
// lock already held by the caller will cause a deadlock.
func (l *Spinlock) Acquire() {
	for !l.TryToAcquire() {
		if yieldFn != nil {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release relinquishes a held lock allowing other callers to acquire it.
// Calling Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
