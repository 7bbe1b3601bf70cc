package sched

import (
	"testing"
	"unsafe"
)

// newUserStack returns a real, page-aligned backing buffer and a RSP value
// near its top, so DeliverPendingSignal/SigReturn's direct unsafe.Pointer
// writes into "user stack" memory land in addressable test-process memory.
func newUserStack(t *testing.T) uintptr {
	t.Helper()
	buf := make([]byte, 4096)
	base := uintptr(unsafe.Pointer(&buf[0]))
	top := base + uintptr(len(buf)) - 256
	return top &^ 0xF
}

func TestKillSetsPendingBit(t *testing.T) {
	tk := newTestTask(1, 0)
	Kill(tk, 10)
	if tk.signalState.pending.Load()&(1<<10) == 0 {
		t.Fatal("Kill(10) did not set bit 10 in pending")
	}
}

func TestKillSIGKILLBypassesPendingAndTerminates(t *testing.T) {
	tk := newTestTask(2, 0)
	Kill(tk, SIGKILL)
	if tk.State() != StateZombie {
		t.Fatalf("state after Kill(SIGKILL) = %v, want StateZombie", tk.State())
	}
	if tk.signalState.pending.Load() != 0 {
		t.Fatal("SIGKILL should never be recorded as a pending bit")
	}
}

func TestDeliverPendingSignalNothingPendingReturnsFalse(t *testing.T) {
	tk := newTestTask(3, 0)
	if DeliverPendingSignal(tk) {
		t.Fatal("DeliverPendingSignal with nothing pending returned true")
	}
}

func TestDeliverPendingSignalSigIgnIsNoop(t *testing.T) {
	tk := newTestTask(4, 0)
	tk.SetAction(10, SigAction{Handler: 1})
	Kill(tk, 10)

	before := tk.Frame
	if !DeliverPendingSignal(tk) {
		t.Fatal("DeliverPendingSignal returned false for a pending signal")
	}
	if tk.Frame != before {
		t.Fatal("SIG_IGN must not touch the trap frame")
	}
	if tk.signalState.pending.Load() != 0 {
		t.Fatal("pending bit should be cleared once consumed")
	}
}

func TestDeliverPendingSignalSigDflTerminates(t *testing.T) {
	tk := newTestTask(5, 0)
	Kill(tk, 10)
	if !DeliverPendingSignal(tk) {
		t.Fatal("DeliverPendingSignal returned false for a pending signal")
	}
	if tk.State() != StateZombie {
		t.Fatalf("state after default-disposition delivery = %v, want StateZombie", tk.State())
	}
}

func TestDeliverPendingSignalLowestSignumFirst(t *testing.T) {
	tk := newTestTask(6, 0)
	tk.SetAction(20, SigAction{Handler: 1})
	tk.SetAction(10, SigAction{Handler: 1})
	Kill(tk, 20)
	Kill(tk, 10)

	DeliverPendingSignal(tk)
	if tk.signalState.pending.Load()&(1<<10) != 0 {
		t.Fatal("signal 10 should have been delivered first and cleared")
	}
	if tk.signalState.pending.Load()&(1<<20) == 0 {
		t.Fatal("signal 20 should still be pending")
	}
}

func TestDeliverPendingSignalHandlerRewritesFrameAndSigReturnRestores(t *testing.T) {
	tk := newTestTask(7, 0)
	tk.Frame.RSP = uint64(newUserStack(t))
	tk.Frame.RIP = 0x4000
	origRSP := tk.Frame.RSP
	origRIP := tk.Frame.RIP

	const handlerAddr = 0x5000
	const restorerAddr = 0x6000
	tk.SetAction(10, SigAction{Handler: handlerAddr, Restorer: restorerAddr})
	Kill(tk, 10)

	if !DeliverPendingSignal(tk) {
		t.Fatal("DeliverPendingSignal returned false for a pending signal")
	}
	if tk.Frame.RIP != handlerAddr {
		t.Fatalf("RIP = %#x, want handler address %#x", tk.Frame.RIP, uint64(handlerAddr))
	}
	if tk.Frame.RDI != 10 {
		t.Fatalf("RDI = %d, want signal number 10", tk.Frame.RDI)
	}
	if tk.Frame.RSP == origRSP {
		t.Fatal("RSP was not moved down to make room for the signal frame")
	}
	if tk.signalState.blocked&(1<<10) == 0 {
		t.Fatal("the delivered signal should be added to the blocked mask (no SA_NODEFER)")
	}

	SigReturn(tk)
	if tk.Frame.RSP != origRSP {
		t.Fatalf("RSP after SigReturn = %#x, want original %#x", tk.Frame.RSP, origRSP)
	}
	if tk.Frame.RIP != origRIP {
		t.Fatalf("RIP after SigReturn = %#x, want original %#x", tk.Frame.RIP, origRIP)
	}
	if tk.signalState.blocked != 0 {
		t.Fatal("SigReturn should restore the pre-delivery blocked mask")
	}
}

func TestDeliverPendingSignalRespectsBlockedMask(t *testing.T) {
	tk := newTestTask(8, 0)
	tk.SetAction(10, SigAction{Handler: 1})
	tk.SetBlocked(1 << 10)
	Kill(tk, 10)

	if DeliverPendingSignal(tk) {
		t.Fatal("a blocked signal must not be delivered")
	}
	if tk.signalState.pending.Load()&(1<<10) == 0 {
		t.Fatal("a blocked signal should remain pending, not be dropped")
	}
}

func TestSetActionReturnsPrevious(t *testing.T) {
	tk := newTestTask(9, 0)
	tk.SetAction(10, SigAction{Handler: 0x1111})
	old := tk.SetAction(10, SigAction{Handler: 0x2222})
	if old.Handler != 0x1111 {
		t.Fatalf("SetAction returned previous handler %#x, want %#x", old.Handler, 0x1111)
	}
}

func TestSetBlockedReturnsPrevious(t *testing.T) {
	tk := newTestTask(10, 0)
	tk.SetBlocked(0xFF)
	old := tk.SetBlocked(0x0)
	if old != 0xFF {
		t.Fatalf("SetBlocked returned previous mask %#x, want %#x", old, 0xFF)
	}
}
