package sched

import "testing"

func newTestTask(id uint64, priority int) *Task {
	t := &Task{ID: id, Priority: priority}
	t.SetState(StateReady)
	return t
}

func TestReadyQueuesPopHighestPriorityFirst(t *testing.T) {
	q := NewReadyQueues()
	low := newTestTask(1, 5)
	high := newTestTask(2, 0)
	mid := newTestTask(3, 2)
	q.Push(low)
	q.Push(high)
	q.Push(mid)

	got := q.PopForCPU(0)
	if got != high {
		t.Fatalf("PopForCPU = task %d, want the priority-0 task", got.ID)
	}
	got = q.PopForCPU(0)
	if got != mid {
		t.Fatalf("PopForCPU = task %d, want the priority-2 task", got.ID)
	}
	got = q.PopForCPU(0)
	if got != low {
		t.Fatalf("PopForCPU = task %d, want the priority-5 task", got.ID)
	}
}

func TestReadyQueuesFIFOWithinPriority(t *testing.T) {
	q := NewReadyQueues()
	a := newTestTask(1, 3)
	b := newTestTask(2, 3)
	c := newTestTask(3, 3)
	q.Push(a)
	q.Push(b)
	q.Push(c)

	for _, want := range []*Task{a, b, c} {
		if got := q.PopForCPU(0); got != want {
			t.Fatalf("PopForCPU = %d, want %d", got.ID, want.ID)
		}
	}
}

func TestReadyQueuesPopForCPUEmptyReturnsNil(t *testing.T) {
	q := NewReadyQueues()
	if got := q.PopForCPU(0); got != nil {
		t.Fatalf("PopForCPU on empty queue = %v, want nil", got)
	}
}

func TestReadyQueuesAffinitySkipsIneligibleTask(t *testing.T) {
	q := NewReadyQueues()
	pinned := newTestTask(1, 1)
	pinned.Affinity = 1 << 2 // CPU 2 only
	any := newTestTask(2, 1)
	q.Push(pinned)
	q.Push(any)

	got := q.PopForCPU(0)
	if got != any {
		t.Fatalf("PopForCPU(0) = %d, want the unpinned task", got.ID)
	}
	got = q.PopForCPU(2)
	if got != pinned {
		t.Fatalf("PopForCPU(2) = %d, want the pinned task", got.ID)
	}
}

func TestReadyQueuesPushSetsStateReady(t *testing.T) {
	q := NewReadyQueues()
	tk := newTestTask(1, 0)
	tk.SetState(StateRunning)
	q.Push(tk)
	if tk.State() != StateReady {
		t.Fatalf("state after Push = %v, want StateReady", tk.State())
	}
}
