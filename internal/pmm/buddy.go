package pmm

import (
	"errors"

	"github.com/sloplabs/slopos/internal/ksync"
)

// AllocFlags modify a buddy allocation request.
type AllocFlags uint32

const (
	AllocZero  AllocFlags = 1 << iota // zero the returned frame(s)
	AllocDMA                         // constrain to physical addresses below DMALimit
	AllocNoPCP                       // bypass the per-CPU page cache
)

var ErrOutOfMemory = errors.New("pmm: out of memory")

// Allocator is the global buddy allocator. One instance backs the whole
// system; per-CPU caches (PerCPUCache) sit in front of it for single-frame
// fast paths.
type Allocator struct {
	metas    []frameMeta                          // indexed directly by absolute frame number
	freeList [MaxOrder + 1]ksync.IrqMutex[uint32] // head frame number per order, noNext = empty
	zeroFn   func(Frame)
}

// NewAllocator builds an allocator covering the usable ranges of m, backed
// by a metadata array sized for every frame up to m.HighestUsedFrame.
// zeroFn is called to clear a frame when AllocZero is requested; it's
// injected rather than hardcoded so the allocator doesn't need an HHDM
// mapping to exist yet when it's first constructed during early boot.
func NewAllocator(m *RegionMap, zeroFn func(Frame)) *Allocator {
	top := m.HighestUsedFrame()
	a := &Allocator{metas: make([]frameMeta, top), zeroFn: zeroFn}
	for i := range a.freeList {
		a.freeList[i] = *ksync.NewIrqMutex(noNext)
	}
	for _, rng := range m.UsableRanges() {
		a.seed(FrameOf(rng.Start), FrameOf(rng.End))
	}
	return a
}

func (a *Allocator) meta(f Frame) *frameMeta {
	idx := int(f)
	if idx < 0 || idx >= len(a.metas) {
		return nil
	}
	return &a.metas[idx]
}

// seed inserts every maximal aligned power-of-two run in [start,end) into
// the free lists, the usual way a buddy allocator bootstraps from an
// arbitrary-length usable range.
func (a *Allocator) seed(start, end Frame) {
	for start < end {
		order := MaxOrder
		for order > 0 {
			size := Frame(1) << uint(order)
			if start%size == 0 && start+size <= end {
				break
			}
			order--
		}
		a.pushFree(start, order)
		start += Frame(1) << uint(order)
	}
}

func (a *Allocator) pushFree(f Frame, order int) {
	m := a.meta(f)
	if m == nil {
		return
	}
	m.order = uint8(order)
	m.free.Store(true)
	g := a.freeList[order].Lock()
	m.next = *g.Get()
	*g.Get() = uint32(f)
	g.Unlock()
}

func (a *Allocator) popFree(order int) (Frame, bool) {
	g := a.freeList[order].Lock()
	defer g.Unlock()
	head := *g.Get()
	if head == noNext {
		return 0, false
	}
	m := a.meta(Frame(head))
	*g.Get() = m.next
	m.free.Store(false)
	return Frame(head), true
}

func buddyOf(f Frame, order int) Frame {
	return f ^ (Frame(1) << uint(order))
}

// Alloc reserves 2^order contiguous frames and returns the first one with
// refcount 1. It splits higher-order blocks on demand and never merges on
// the allocation path (only Free coalesces).
func (a *Allocator) Alloc(order int, flags AllocFlags) (Frame, error) {
	if order > MaxOrder {
		return 0, ErrOutOfMemory
	}
	const maxDMARetries = 64
	var rejected []Frame
	defer func() {
		for _, r := range rejected {
			a.freeFrame(r, order)
		}
	}()
	for attempt := 0; attempt <= maxDMARetries; attempt++ {
		o := order
		found := false
		var f Frame
		for o <= MaxOrder {
			if got, ok := a.popFree(o); ok {
				f, found = got, true
				for o > order {
					o--
					buddy := f + (Frame(1) << uint(o))
					a.pushFree(buddy, o)
				}
				break
			}
			o++
		}
		if !found {
			return 0, ErrOutOfMemory
		}
		if flags&AllocDMA != 0 && !f.IsDMA() {
			// Not eligible: set it aside (released on return) and try again.
			// DMA memory is scarce and sits at the bottom of the map, so a
			// handful of retries either finds it or the system genuinely has
			// none left.
			rejected = append(rejected, f)
			if attempt == maxDMARetries {
				return 0, ErrOutOfMemory
			}
			continue
		}
		m := a.meta(f)
		m.refcount.Store(1)
		if flags&AllocZero != 0 && a.zeroFn != nil {
			a.zeroFn(f)
		}
		return f, nil
	}
	return 0, ErrOutOfMemory
}

func (a *Allocator) freeFrame(f Frame, order int) {
	for order < MaxOrder {
		buddy := buddyOf(f, order)
		bm := a.meta(buddy)
		if bm == nil || !bm.free.Load() || int(bm.order) != order {
			break
		}
		// Reclaim the buddy from its free list before merging.
		g := a.freeList[order].Lock()
		head := *g.Get()
		if head == uint32(buddy) {
			*g.Get() = bm.next
		} else {
			prev := head
			found := false
			for prev != noNext {
				pm := a.meta(Frame(prev))
				if pm.next == uint32(buddy) {
					pm.next = bm.next
					found = true
					break
				}
				prev = pm.next
			}
			if !found {
				g.Unlock()
				break
			}
		}
		g.Unlock()
		bm.free.Store(false)
		if buddy < f {
			f = buddy
		}
		order++
	}
	a.pushFree(f, order)
}

// Free releases a single-frame allocation obtained with order 0, the common
// case; multi-frame allocations free through FreeOrder. A frame that still
// has other references only loses one.
func (a *Allocator) Free(f Frame) {
	if m := a.meta(f); m != nil && m.refcount.Load() > 1 {
		if m.refcount.Add(^uint32(0)) > 0 {
			return
		}
	}
	a.FreeOrder(f, 0)
}

// FreeOrder releases a 2^order block previously returned by Alloc.
func (a *Allocator) FreeOrder(f Frame, order int) { a.freeFrame(f, order) }
