package syscalls

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sloplabs/slopos/internal/ksync"
)

// fakeScheduler mirrors internal/sched's own test fixture (sched_fake_test.go),
// which itself mirrors ksync/waitqueue_test.go's: WaitQueue needs a registered
// ksync.Scheduler to block/wake a real task, and standing up the real
// scheduler needs a booted machine, so tests run real goroutines as
// stand-ins, resolved by goroutine id.
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

// useFakeScheduler registers s for the test's duration and binds the calling
// goroutine as one task; any other goroutine the test spawns that touches a
// WaitQueue must call s.bind() on its own stack too.
func useFakeScheduler(t *testing.T) *fakeScheduler {
	s := newFakeScheduler()
	ksync.RegisterScheduler(s)
	t.Cleanup(func() { ksync.RegisterScheduler(nil) })
	s.bind()
	return s
}
