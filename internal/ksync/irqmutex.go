// Package ksync provides the interrupt-safe synchronization primitives the
// rest of the kernel is built on: an interrupt-disabling spinlock, a ring
// buffer, a wait queue, preemption guards, and a one-shot init flag. None of
// these may be used across a suspension point — a task must never yield or
// block while holding an IrqMutex.
package ksync

import (
	"sync/atomic"

	"github.com/sloplabs/slopos/internal/arch"
)

// IrqMutex guards T with an interrupt-disabling spinlock. Acquiring saves
// RFLAGS and disables interrupts before spinning for the lock; releasing
// restores the saved flags. It is not reentrant: a task that acquires the
// same IrqMutex twice deadlocks itself.
type IrqMutex[T any] struct {
	locked atomic.Bool
	value  T
}

// Guard is the RAII handle returned by Lock; Unlock must be called exactly
// once, and the holder must not yield or block before calling it.
type Guard[T any] struct {
	m     *IrqMutex[T]
	flags uint64
}

// NewIrqMutex wraps v in a lock.
func NewIrqMutex[T any](v T) *IrqMutex[T] {
	return &IrqMutex[T]{value: v}
}

// Lock disables interrupts, spins for the lock, and returns a guard over the
// protected value.
func (m *IrqMutex[T]) Lock() *Guard[T] {
	flags := arch.SaveFlagsCLI()
	for !m.locked.CompareAndSwap(false, true) {
		arch.Pause()
	}
	return &Guard[T]{m: m, flags: flags}
}

// TryLock attempts to acquire without spinning; ok is false if contended, in
// which case interrupts are left exactly as found.
func (m *IrqMutex[T]) TryLock() (*Guard[T], bool) {
	flags := arch.SaveFlagsCLI()
	if !m.locked.CompareAndSwap(false, true) {
		arch.RestoreFlags(flags)
		return nil, false
	}
	return &Guard[T]{m: m, flags: flags}, true
}

// Get returns a pointer to the protected value, valid until Unlock.
func (g *Guard[T]) Get() *T { return &g.m.value }

// Unlock releases the lock and restores the interrupt flag state observed
// at Lock time.
func (g *Guard[T]) Unlock() {
	g.m.locked.Store(false)
	arch.RestoreFlags(g.flags)
}

// IrqRwLock is the reader/writer variant: many readers or one writer, with
// the same interrupt-disabling discipline as IrqMutex.
type IrqRwLock[T any] struct {
	state atomic.Int32 // -1 = write-locked, 0 = free, >0 = N readers
	value T
}

func NewIrqRwLock[T any](v T) *IrqRwLock[T] {
	return &IrqRwLock[T]{value: v}
}

type ReadGuard[T any] struct {
	l     *IrqRwLock[T]
	flags uint64
}

type WriteGuard[T any] struct {
	l     *IrqRwLock[T]
	flags uint64
}

func (l *IrqRwLock[T]) RLock() *ReadGuard[T] {
	flags := arch.SaveFlagsCLI()
	for {
		cur := l.state.Load()
		if cur >= 0 && l.state.CompareAndSwap(cur, cur+1) {
			break
		}
		arch.Pause()
	}
	return &ReadGuard[T]{l: l, flags: flags}
}

func (g *ReadGuard[T]) Get() *T { return &g.l.value }

func (g *ReadGuard[T]) RUnlock() {
	g.l.state.Add(-1)
	arch.RestoreFlags(g.flags)
}

func (l *IrqRwLock[T]) WLock() *WriteGuard[T] {
	flags := arch.SaveFlagsCLI()
	for !l.state.CompareAndSwap(0, -1) {
		arch.Pause()
	}
	return &WriteGuard[T]{l: l, flags: flags}
}

func (g *WriteGuard[T]) Get() *T { return &g.l.value }

func (g *WriteGuard[T]) WUnlock() {
	g.l.state.Store(0)
	arch.RestoreFlags(g.flags)
}
