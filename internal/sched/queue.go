package sched

import (
	"math/bits"

	"github.com/sloplabs/slopos/internal/ksync"
)

type runqueueState struct {
	head, tail [NumPriorities]*Task
	nonEmpty   uint32 // bit i set iff priority i's queue is non-empty
}

// ReadyQueues holds one FIFO per priority level, shared across every CPU.
// Affinity is checked by the caller when popping, not baked into the queue
// structure, since affinity masks are rare and per-task.
type ReadyQueues struct {
	state ksync.IrqMutex[runqueueState]
}

func NewReadyQueues() *ReadyQueues {
	return &ReadyQueues{state: *ksync.NewIrqMutex(runqueueState{})}
}

// Push enqueues t at the tail of its priority's ready queue.
func (q *ReadyQueues) Push(t *Task) {
	t.SetState(StateReady)
	t.next = nil
	g := q.state.Lock()
	defer g.Unlock()
	s := g.Get()
	p := t.Priority
	if s.tail[p] == nil {
		s.head[p] = t
	} else {
		s.tail[p].next = t
	}
	s.tail[p] = t
	s.nonEmpty |= 1 << uint(p)
}

// PopForCPU removes and returns the highest-priority ready task whose
// affinity permits cpuIndex, skipping over (without reordering) tasks that
// don't. Returns nil if no eligible task is ready.
func (q *ReadyQueues) PopForCPU(cpuIndex int) *Task {
	g := q.state.Lock()
	defer g.Unlock()
	s := g.Get()
	mask := s.nonEmpty
	for mask != 0 {
		p := bits.TrailingZeros32(mask)
		mask &^= 1 << uint(p)

		var prev *Task
		for cur := s.head[p]; cur != nil; cur = cur.next {
			if cur.Affinity == 0 || cur.Affinity&(1<<uint(cpuIndex)) != 0 {
				if prev == nil {
					s.head[p] = cur.next
				} else {
					prev.next = cur.next
				}
				if s.tail[p] == cur {
					s.tail[p] = prev
				}
				if s.head[p] == nil {
					s.nonEmpty &^= 1 << uint(p)
				}
				cur.next = nil
				return cur
			}
			prev = cur
		}
	}
	return nil
}
