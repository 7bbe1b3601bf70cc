package sched

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sloplabs/slopos/internal/ksync"
)

// goroutineID and fakeScheduler mirror ksync's own waitqueue_test.go fixture:
// futex/waitpid are built on ksync.WaitQueue, which needs a registered
// ksync.Scheduler to block/wake against. Standing up the real scheduler
// would need a booted machine (arch.SwitchContext, a live PCR), so tests
// here run real goroutines as stand-ins for tasks, resolving "current task"
// by goroutine id exactly as ksync's own tests do.
func goroutineID() int64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	buf = buf[:bytes.IndexByte(buf, ' ')]
	id, _ := strconv.ParseInt(string(buf), 10, 64)
	return id
}

type fakeScheduler struct {
	mu     sync.Mutex
	chans  map[ksync.TaskHandle]chan struct{}
	byGoID map[int64]ksync.TaskHandle
	next   atomic.Uint64
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		chans:  make(map[ksync.TaskHandle]chan struct{}),
		byGoID: make(map[int64]ksync.TaskHandle),
	}
}

func (s *fakeScheduler) bind() ksync.TaskHandle {
	h := ksync.TaskHandle(s.next.Add(1))
	s.mu.Lock()
	s.chans[h] = make(chan struct{}, 1)
	s.byGoID[goroutineID()] = h
	s.mu.Unlock()
	return h
}

func (s *fakeScheduler) CurrentTask() ksync.TaskHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byGoID[goroutineID()]
}

func (s *fakeScheduler) chanFor(h ksync.TaskHandle) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chans[h]
}

func (s *fakeScheduler) BlockCurrentTask() {
	<-s.chanFor(s.CurrentTask())
}

func (s *fakeScheduler) BlockCurrentTaskTimeout(ms uint64) bool {
	select {
	case <-s.chanFor(s.CurrentTask()):
		return false
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return true
	}
}

func (s *fakeScheduler) MarkReady(h ksync.TaskHandle) {
	ch := s.chanFor(h)
	select {
	case ch <- struct{}{}:
	default:
	}
}
