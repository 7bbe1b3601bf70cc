package ksync

import "sync/atomic"

// InitFlag is a one-shot atomic flag used to idempotently guard the
// process-wide singletons (frame allocator, IRQ table, kernel heap,
// scheduler queues): InitOnce runs the initializer exactly once across
// however many CPUs race into it.
type InitFlag struct {
	done atomic.Bool
}

// InitOnce returns true the first time it is called (and runs nothing
// itself — callers do their init work only when they get true back), false
// on every subsequent call.
func (f *InitFlag) InitOnce() bool {
	return f.done.CompareAndSwap(false, true)
}

func (f *InitFlag) IsSet() bool { return f.done.Load() }

// StateFlag is a plain settable/clearable atomic boolean, for state that
// isn't one-shot (e.g. "scheduler accepting new tasks").
type StateFlag struct {
	v atomic.Bool
}

func (f *StateFlag) Set()          { f.v.Store(true) }
func (f *StateFlag) Clear()        { f.v.Store(false) }
func (f *StateFlag) IsSet() bool   { return f.v.Load() }
func (f *StateFlag) TestAndSet() bool {
	return !f.v.Swap(true)
}
