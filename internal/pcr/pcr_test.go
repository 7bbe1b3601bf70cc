package pcr

import "testing"

// fakePreempt lets the PreemptGuard/PreemptCounter contract be exercised
// without a real PCR (no MSR writes, no GDT/TSS install).
type fakePreempt struct {
	n        uint32
	pending  bool
	yielded  int
}

func (f *fakePreempt) Inc() uint32              { f.n++; return f.n }
func (f *fakePreempt) Dec() uint32              { f.n--; return f.n }
func (f *fakePreempt) ReschedulePending() bool  { return f.pending }
func (f *fakePreempt) ClearReschedulePending()  { f.pending = false }
func (f *fakePreempt) TriggerYieldPoint()       { f.yielded++ }

func TestAllocatePCRAssignsDenseIndices(t *testing.T) {
	before := CPUCount()
	p0 := AllocatePCR()
	p1 := AllocatePCR()

	if p1.CPUIndex != p0.CPUIndex+1 {
		t.Fatalf("expected dense indices, got %d then %d", p0.CPUIndex, p1.CPUIndex)
	}
	if CPUCount() != before+2 {
		t.Fatalf("CPUCount = %d, want %d", CPUCount(), before+2)
	}

	got, ok := ForIndex(p0.CPUIndex)
	if !ok || got != p0 {
		t.Fatalf("ForIndex(%d) = %v,%v want %v,true", p0.CPUIndex, got, ok, p0)
	}

	if p0.SelfPtr == 0 {
		t.Fatal("SelfPtr should be set to the PCR's own address")
	}
}

func TestForIndexOutOfRange(t *testing.T) {
	if _, ok := ForIndex(maxCPUs); ok {
		t.Fatal("ForIndex at maxCPUs should report not-found")
	}
}

func TestForAPICIDUnknown(t *testing.T) {
	if _, ok := ForAPICID(0xDEADBEEF); ok {
		t.Fatal("ForAPICID for an unregistered id should report not-found")
	}
}

func TestPreemptCounterViewTracksFakeCounter(t *testing.T) {
	f := &fakePreempt{}
	f.Inc()
	f.Inc()
	if f.Dec(); f.n != 1 {
		t.Fatalf("n = %d, want 1", f.n)
	}

	f.pending = true
	if !f.ReschedulePending() {
		t.Fatal("ReschedulePending should report true after being set")
	}
	f.ClearReschedulePending()
	if f.ReschedulePending() {
		t.Fatal("ReschedulePending should clear")
	}

	f.TriggerYieldPoint()
	if f.yielded != 1 {
		t.Fatalf("yielded = %d, want 1", f.yielded)
	}
}

func TestRegisterYieldPointHookIsCalledByPreemptCounterView(t *testing.T) {
	called := false
	RegisterYieldPointHook(func() { called = true })
	defer RegisterYieldPointHook(func() {})

	p := AllocatePCR()
	view := p.PreemptCounterView()
	view.TriggerYieldPoint()

	if !called {
		t.Fatal("PreemptCounterView.TriggerYieldPoint did not invoke the registered hook")
	}
}

func TestSetReschedulePendingRoundTrips(t *testing.T) {
	p := AllocatePCR()
	if p.ReschedulePending() {
		t.Fatal("fresh PCR should not have a reschedule pending")
	}
	p.SetReschedulePending()
	if !p.ReschedulePending() {
		t.Fatal("ReschedulePending should report true after SetReschedulePending")
	}
	if !p.PreemptCounterView().ReschedulePending() {
		t.Fatal("PreemptCounterView should observe the same reschedulePending flag")
	}
}
