package sched

import (
	"sync/atomic"

	"github.com/sloplabs/slopos/internal/ksync"
)

// monotonicMs counts milliseconds since boot, advanced by Tick. This kernel
// ties its timer tick rate to 1ms, so Tick (already called once per tick
// from the timer IRQ for preemption accounting) doubles as the clock source
// instead of running a second free-running counter.
var monotonicMs atomic.Uint64

// GetTimeMs returns milliseconds elapsed since boot.
func GetTimeMs() uint64 { return monotonicMs.Load() }

var sleepQueue = ksync.NewWaitQueue()

// SleepCurrentTask blocks the calling task for approximately ms
// milliseconds. It has no wake condition of its own (nothing ever makes it
// true): the only way out is WaitEventTimeout's deadline, the same
// timeout-only cancellation model §5 specifies for sleep_ms.
func SleepCurrentTask(ms uint64) {
	sleepQueue.WaitEventTimeout(func() bool { return false }, ms)
}
