// Package surface is the compositor-facing backend behind
// internal/syscalls' Surfaces and Input hooks: a shared-memory token table,
// an attach/commit/damage surface registry, and a PS/2-fed input queue.
// FbFlip pushes internal/fbuf's backbuffer to hardware and advances frame
// sequences; it does not copy shm surface pixels into the backbuffer.
// Grounded on §5's resource model ("Shm tokens: a global table keyed by
// token with per-entry acquire/release counters and a producer-consumer
// released-frame list") and on internal/syscalls/pipe.go's shape for a
// blocking, IrqMutex-guarded shared resource table.
package surface

import (
	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/ksync"
	"github.com/sloplabs/slopos/internal/pmm"
	"github.com/sloplabs/slopos/internal/sched"
	"github.com/sloplabs/slopos/internal/vmm"
)

// FrameAllocator is the subset of *pmm.Allocator shm needs; injected so
// hosted tests can fake frame allocation without a booted machine.
type FrameAllocator interface {
	Alloc(order int, flags pmm.AllocFlags) (pmm.Frame, error)
	Free(f pmm.Frame)
}

// shmSegment is one shm_create allocation: a fixed run of physical frames,
// an acquire/release refcount, and the set of tasks that currently have it
// mapped (so Unmap/process-exit cleanup can tear every mapping down).
type shmSegment struct {
	frames       []pmm.Frame
	size         uint64
	acquireCount int
	destroyed    bool
	mappedAt     map[uint64]uintptr // taskID -> base VA
}

type shmState struct {
	segments map[uint64]*shmSegment
	next     uint64
}

// ShmTable is the global shm token table; one instance backs a booted
// kernel's Compositor.
type ShmTable struct {
	mu    ksync.IrqMutex[shmState]
	alloc FrameAllocator
}

// NewShmTable builds an empty table backed by alloc for frame allocation.
func NewShmTable(alloc FrameAllocator) *ShmTable {
	return &ShmTable{
		mu:    *ksync.NewIrqMutex(shmState{segments: make(map[uint64]*shmSegment), next: 1}),
		alloc: alloc,
	}
}

// Create allocates ceil(size/PageSize) zeroed frames and returns a fresh
// token naming them.
func (t *ShmTable) Create(size uint64) (uint64, errno.Errno) {
	if size == 0 {
		return 0, errno.EINVAL
	}
	npages := int((size + pmm.PageSize - 1) / pmm.PageSize)
	frames := make([]pmm.Frame, 0, npages)
	for i := 0; i < npages; i++ {
		f, err := t.alloc.Alloc(0, pmm.AllocZero)
		if err != nil {
			for _, done := range frames {
				t.alloc.Free(done)
			}
			return 0, errno.ENOMEM
		}
		frames = append(frames, f)
	}

	g := t.mu.Lock()
	s := g.Get()
	token := s.next
	s.next++
	s.segments[token] = &shmSegment{frames: frames, size: size, mappedAt: make(map[uint64]uintptr)}
	g.Unlock()
	return token, 0
}

// Map inserts the segment's frames into taskID's address space as one
// anonymous read/write VMA, bumping the task's mmap cursor, and returns the
// mapped base address.
func (t *ShmTable) Map(taskID, token uint64) (uintptr, errno.Errno) {
	task := sched.Lookup(taskID)
	if task == nil || task.AddressSpace == nil || task.VMATree == nil {
		return 0, errno.EINVAL
	}

	g := t.mu.Lock()
	s := g.Get()
	seg, ok := s.segments[token]
	if !ok || seg.destroyed {
		g.Unlock()
		return 0, errno.EINVAL
	}
	if _, already := seg.mappedAt[taskID]; already {
		base := seg.mappedAt[taskID]
		g.Unlock()
		return base, 0
	}
	frames := append([]pmm.Frame(nil), seg.frames...)
	g.Unlock()

	base := task.MmapCursor
	flags := vmm.VMARead | vmm.VMAWrite | vmm.VMAUser | vmm.VMAAnon
	pteFlags := (&vmm.VMA{Flags: flags}).PTEFlags()
	for i, f := range frames {
		va := base + uintptr(i)*pmm.PageSize
		if !task.AddressSpace.Map(globalAllocFor(t), va, f, pteFlags) {
			return 0, errno.ENOMEM
		}
	}
	task.VMATree.Insert(&vmm.VMA{Start: base, End: base + uintptr(len(frames))*pmm.PageSize, Flags: flags})
	task.MmapCursor = base + uintptr(len(frames))*pmm.PageSize

	g2 := t.mu.Lock()
	if seg2, ok := g2.Get().segments[token]; ok {
		seg2.mappedAt[taskID] = base
	}
	g2.Unlock()
	return base, 0
}

// globalAllocFor adapts ShmTable's injected FrameAllocator back to the
// *pmm.Allocator AddressSpace.Map expects for page-table-node allocation;
// the booted kernel always injects pmm.Global() itself, so this type
// assertion only fails in a hosted test using a fake allocator, which never
// calls Map.
func globalAllocFor(t *ShmTable) *pmm.Allocator {
	a, _ := t.alloc.(*pmm.Allocator)
	return a
}

// Unmap removes taskID's mapping of token, if any.
func (t *ShmTable) Unmap(taskID, token uint64) errno.Errno {
	task := sched.Lookup(taskID)
	if task == nil || task.AddressSpace == nil || task.VMATree == nil {
		return errno.EINVAL
	}

	g := t.mu.Lock()
	s := g.Get()
	seg, ok := s.segments[token]
	if !ok {
		g.Unlock()
		return errno.EINVAL
	}
	base, mapped := seg.mappedAt[taskID]
	if mapped {
		delete(seg.mappedAt, taskID)
	}
	n := len(seg.frames)
	g.Unlock()
	if !mapped {
		return errno.EINVAL
	}

	for i := 0; i < n; i++ {
		task.AddressSpace.Unmap(base + uintptr(i)*pmm.PageSize)
	}
	task.VMATree.Remove(base)
	return 0
}

// Acquire bumps token's live-reference count; a surface being attached by
// the compositor and the client that created it each hold one reference.
func (t *ShmTable) Acquire(token uint64) errno.Errno {
	g := t.mu.Lock()
	defer g.Unlock()
	seg, ok := g.Get().segments[token]
	if !ok || seg.destroyed {
		return errno.EINVAL
	}
	seg.acquireCount++
	return 0
}

// Release drops token's reference count; reaching zero after a pending
// Destroy actually frees the frames, the "producer-consumer released-frame
// list" §5 describes collapsed to a refcount since this table is the only
// consumer of its own release events.
func (t *ShmTable) Release(token uint64) errno.Errno {
	g := t.mu.Lock()
	s := g.Get()
	seg, ok := s.segments[token]
	if !ok {
		g.Unlock()
		return errno.EINVAL
	}
	if seg.acquireCount > 0 {
		seg.acquireCount--
	}
	shouldFree := seg.destroyed && seg.acquireCount == 0
	if shouldFree {
		delete(s.segments, token)
	}
	g.Unlock()
	if shouldFree {
		for _, f := range seg.frames {
			t.alloc.Free(f)
		}
	}
	return 0
}

// Destroy marks token for reclamation: freed immediately if nothing holds a
// reference, otherwise deferred to the matching Release.
func (t *ShmTable) Destroy(token uint64) errno.Errno {
	g := t.mu.Lock()
	s := g.Get()
	seg, ok := s.segments[token]
	if !ok {
		g.Unlock()
		return errno.EINVAL
	}
	seg.destroyed = true
	freeNow := seg.acquireCount == 0
	if freeNow {
		delete(s.segments, token)
	}
	g.Unlock()
	if freeNow {
		for _, f := range seg.frames {
			t.alloc.Free(f)
		}
	}
	return 0
}

// bytes returns token's backing frames' size in bytes and whether it
// exists, for the surface registry to validate commit/damage rects against.
func (t *ShmTable) bytes(token uint64) (uint64, bool) {
	g := t.mu.Lock()
	defer g.Unlock()
	seg, ok := g.Get().segments[token]
	if !ok || seg.destroyed {
		return 0, false
	}
	return seg.size, true
}
