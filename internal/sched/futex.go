package sched

import (
	"sync/atomic"
	"unsafe"

	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/ksync"
)

const futexBuckets = 256

// futexBucket guards the wait queue for every uaddr that hashes to it.
// waiting tracks how many tasks are actually parked so FutexWake doesn't
// burn WaitQueue's pending-wakeup counter on a bucket nobody is in.
type futexBucket struct {
	q       *ksync.WaitQueue
	waiting atomic.Int32
}

var buckets [futexBuckets]futexBucket

func init() {
	for i := range buckets {
		buckets[i].q = ksync.NewWaitQueue()
	}
}

func hashFutex(uaddr uintptr) int {
	return int((uaddr >> 2) % futexBuckets)
}

// FutexWait blocks the calling task while *uaddr == expected, waking on
// FutexWake or, if timeoutMs is non-zero, on timeout.
func FutexWait(uaddr *uint32, expected uint32, timeoutMs uint64) errno.Errno {
	b := &buckets[hashFutex(uintptr(unsafe.Pointer(uaddr)))]
	cond := func() bool { return atomic.LoadUint32(uaddr) != expected }

	if cond() {
		return errno.EAGAIN
	}
	b.waiting.Add(1)
	defer b.waiting.Add(-1)

	if timeoutMs == 0 {
		b.q.WaitEvent(cond)
		return 0
	}
	if b.q.WaitEventTimeout(cond, timeoutMs) {
		return 0
	}
	return errno.ETIMEDOUT
}

// FutexWake wakes up to n tasks blocked on uaddr's bucket, returning how
// many it actually woke. Bucket hashing means a collision can wake an
// unrelated waiter on the same bucket; that waiter just re-checks its own
// condition and blocks again.
func FutexWake(uaddr *uint32, n int) int {
	b := &buckets[hashFutex(uintptr(unsafe.Pointer(uaddr)))]
	woken := 0
	waiting := int(b.waiting.Load())
	for woken < n && woken < waiting {
		b.q.WakeOne()
		woken++
	}
	return woken
}
