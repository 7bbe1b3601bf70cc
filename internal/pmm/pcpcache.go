package pmm

import "github.com/sloplabs/slopos/internal/ksync"

// pcpMagazineSize is how many single frames a per-CPU cache holds before
// spilling back to the buddy allocator, and how many it pulls in one batch
// on refill, so steady-state alloc/free churn rarely touches the buddy lock.
const pcpMagazineSize = 32
const pcpRefillBatch = 16

// PerCPUCache is a small magazine of single (order-0) frames in front of an
// Allocator, avoiding the buddy lock on the hot single-page alloc/free path.
// One lives per CPU; it is only ever touched by its owning CPU, so it needs
// no locking of its own.
type PerCPUCache struct {
	backing *Allocator
	ring    *ksync.RingBuffer[Frame]
}

func NewPerCPUCache(backing *Allocator) *PerCPUCache {
	return &PerCPUCache{backing: backing, ring: ksync.NewRingBuffer[Frame](pcpMagazineSize)}
}

// Alloc returns a single frame, refilling from the backing allocator in a
// batch if the cache is empty. AllocNoPCP callers should go straight to
// the backing Allocator instead of through here.
func (c *PerCPUCache) Alloc(flags AllocFlags) (Frame, error) {
	if f, ok := c.ring.TryPop(); ok {
		m := c.backing.meta(f)
		m.refcount.Store(1)
		if flags&AllocZero != 0 && c.backing.zeroFn != nil {
			c.backing.zeroFn(f)
		}
		return f, nil
	}
	if err := c.refill(); err != nil {
		return c.backing.Alloc(0, flags)
	}
	return c.Alloc(flags)
}

func (c *PerCPUCache) refill() error {
	got := 0
	for i := 0; i < pcpRefillBatch; i++ {
		f, err := c.backing.Alloc(0, 0)
		if err != nil {
			break
		}
		c.backing.meta(f).refcount.Store(0) // parked in the cache, not the buddy free list
		c.ring.PushOverwrite(f)
		got++
	}
	if got == 0 {
		return ErrOutOfMemory
	}
	return nil
}

// Free returns a frame to the cache, spilling the oldest cached frame back
// to the buddy allocator if the magazine is full.
func (c *PerCPUCache) Free(f Frame) {
	c.backing.meta(f).refcount.Store(0)
	if c.ring.Len() >= pcpMagazineSize {
		if old, ok := c.ring.TryPop(); ok {
			c.backing.Free(old)
		}
	}
	c.ring.PushOverwrite(f)
}
