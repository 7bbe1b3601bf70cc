package sched

import (
	"testing"
	"time"

	"github.com/sloplabs/slopos/internal/ksync"
)

func TestTerminateThenWaitPIDReturnsRecord(t *testing.T) {
	s := newFakeScheduler()
	ksync.RegisterScheduler(s)
	defer ksync.RegisterScheduler(nil)
	s.bind()

	tk := newTestTask(42, 0)
	tk.waiters = ksync.NewWaitQueue()
	registerTask(tk)
	defer unregisterTask(tk.ID)

	Terminate(tk, 7, false, 0)
	if tk.State() != StateZombie {
		t.Fatalf("state after Terminate = %v, want StateZombie", tk.State())
	}

	rec, ok := WaitPID(tk.ID, true)
	if !ok {
		t.Fatal("WaitPID(nohang=true) found no record after Terminate")
	}
	if rec.ExitCode != 7 {
		t.Fatalf("ExitCode = %d, want 7", rec.ExitCode)
	}
}

func TestWaitPIDNoHangReturnsFalseBeforeExit(t *testing.T) {
	tk := newTestTask(43, 0)
	tk.waiters = ksync.NewWaitQueue()
	registerTask(tk)
	defer unregisterTask(tk.ID)

	if _, ok := WaitPID(tk.ID, true); ok {
		t.Fatal("WaitPID(nohang=true) found a record before any Terminate")
	}
}

func TestWaitPIDBlocksUntilTerminate(t *testing.T) {
	s := newFakeScheduler()
	ksync.RegisterScheduler(s)
	defer ksync.RegisterScheduler(nil)

	tk := newTestTask(44, 0)
	tk.waiters = ksync.NewWaitQueue()
	registerTask(tk)
	defer unregisterTask(tk.ID)

	done := make(chan int32, 1)
	go func() {
		s.bind()
		rec, _ := WaitPID(tk.ID, false)
		done <- rec.ExitCode
	}()

	time.Sleep(20 * time.Millisecond)
	Terminate(tk, 3, true, SIGKILL)

	select {
	case code := <-done:
		if code != 3 {
			t.Fatalf("ExitCode = %d, want 3", code)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitPID never returned after Terminate")
	}
}

func TestKillSIGKILLTerminatesImmediately(t *testing.T) {
	tk := newTestTask(45, 0)
	tk.waiters = ksync.NewWaitQueue()
	registerTask(tk)
	defer unregisterTask(tk.ID)

	Kill(tk, SIGKILL)
	if tk.State() != StateZombie {
		t.Fatalf("state after Kill(SIGKILL) = %v, want StateZombie", tk.State())
	}
	rec, ok := WaitPID(tk.ID, true)
	if !ok || rec.ExitCode != 128+SIGKILL {
		t.Fatalf("exit record = %+v, ok=%v, want ExitCode %d", rec, ok, 128+SIGKILL)
	}
}
