package vmm

import (
	"unsafe"

	"github.com/sloplabs/slopos/internal/kdiag"
	"github.com/sloplabs/slopos/internal/ksync"
	"github.com/sloplabs/slopos/internal/pmm"
)

// slabClasses are the kernel heap's fixed allocation sizes; anything larger
// takes the large-block path straight to the page allocator. The free-list
// segment coalescing in mazboot's heap.go inspired the large-block path
// (kmalloc/kfree's doubly-linked, size-tagged segments); small, frequent
// kernel allocations get dedicated slabs instead, since a general best-fit
// walk is the wrong shape for a fixed, small set of hot sizes.
var slabClasses = [...]uint32{16, 32, 64, 128, 256, 512, 1024, 2048}

// slabMagic/largeMagic tag a page (or large-block header) so Kfree can
// recover the owning header from a bare pointer and tell a corrupted or
// already-freed block from a live one.
const (
	slabMagic  = 0x5341424c // "SABL"
	largeMagic = 0x4c524745 // "LRGE"
)

// slabHeader sits at the page-aligned base of every page backing a slab
// class: 16-byte aligned, as the free-list objects that follow it must also
// start 16-byte aligned for the fixed-size classes here (all multiples of
// 16). size lets Kfree confirm the caller's claimed class matches the page
// the pointer actually lives on.
type slabHeader struct {
	magic uint32
	size  uint32
	_     uint64 // pad to 16 bytes
}

const slabHeaderSize = uintptr(unsafe.Sizeof(slabHeader{}))

type slabFreeNode struct {
	next *slabFreeNode
}

type slab struct {
	lock        ksync.IrqMutex[*slabFreeNode]
	size        uint32
	objsPerPage int
}

// KHeap is the kernel heap: one slab per class, backed by pages from alloc,
// plus a large-block path for allocations above the largest slab class.
type KHeap struct {
	alloc *pmm.Allocator
	slabs [len(slabClasses)]slab
	large ksync.IrqMutex[*largeSegment]
}

// largeSegment is the intrusive header prepended to every large-block
// allocation: it lives in the first bytes of the pages it describes, so
// Kfree recovers it directly from the user pointer rather than consulting a
// side table.
type largeSegment struct {
	magic  uint32
	pages  uint32
	size   uint64
	next   *largeSegment
}

const largeHeaderSize = uintptr(unsafe.Sizeof(largeSegment{}))

func NewKHeap(alloc *pmm.Allocator) *KHeap {
	h := &KHeap{alloc: alloc}
	for i, sz := range slabClasses {
		h.slabs[i].size = sz
		h.slabs[i].objsPerPage = (pmm.PageSize - int(slabHeaderSize)) / int(sz)
		h.slabs[i].lock = *ksync.NewIrqMutex[*slabFreeNode](nil)
	}
	h.large = *ksync.NewIrqMutex[*largeSegment](nil)
	return h
}

func classFor(size int) int {
	for i, sz := range slabClasses {
		if size <= int(sz) {
			return i
		}
	}
	return -1
}

// growSlab carves a freshly allocated page into a 16-byte-aligned slabHeader
// followed by objsPerPage free nodes, and links those nodes onto the class's
// free list. The header lets Kfree recover the owning page (and its class)
// from any object pointer inside it.
func (h *KHeap) growSlab(s *slab) bool {
	f, err := h.alloc.Alloc(0, 0)
	if err != nil {
		return false
	}
	base := uintptr(pmm.ToVirt(f.Addr()))
	hdr := (*slabHeader)(unsafe.Pointer(base))
	hdr.magic = slabMagic
	hdr.size = s.size

	objsBase := base + slabHeaderSize
	g := s.lock.Lock()
	defer g.Unlock()
	for i := 0; i < s.objsPerPage; i++ {
		node := (*slabFreeNode)(unsafe.Pointer(objsBase + uintptr(i)*uintptr(s.size)))
		node.next = *g.Get()
		*g.Get() = node
	}
	return true
}

// Kmalloc allocates size bytes, routing to a slab class or the large-block
// path. Returns 0 on exhaustion.
func (h *KHeap) Kmalloc(size int) uintptr {
	if size <= 0 {
		return 0
	}
	if c := classFor(size); c >= 0 {
		s := &h.slabs[c]
		for {
			g := s.lock.Lock()
			head := *g.Get()
			if head != nil {
				*g.Get() = head.next
				g.Unlock()
				return uintptr(unsafe.Pointer(head))
			}
			g.Unlock()
			if !h.growSlab(s) {
				return 0
			}
		}
	}
	return h.kmallocLarge(size)
}

// Kfree releases memory obtained from Kmalloc. size must match the original
// request since this allocator doesn't tag blocks with their class (the
// caller, syscalls' kernel-side buffers, always knows its own size); the
// page header recovered below cross-checks that claim against what the page
// was actually carved for. Freeing the same pointer twice is a kernel-fatal
// corruption, not a silent no-op: a double Kfree is caught by walking the
// class free list for ptr before linking it back in, which also rejects a
// cycle an undetected double-free would have created.
func (h *KHeap) Kfree(ptr uintptr, size int) {
	if ptr == 0 {
		return
	}
	if c := classFor(size); c >= 0 {
		s := &h.slabs[c]
		pageBase := ptr &^ uintptr(pmm.PageSize-1)
		hdr := (*slabHeader)(unsafe.Pointer(pageBase))
		if hdr.magic != slabMagic || hdr.size != s.size {
			kdiag.Panic("vmm: kheap Kfree: corrupt or foreign slab header", nil)
			return
		}

		node := (*slabFreeNode)(unsafe.Pointer(ptr))
		g := s.lock.Lock()
		defer g.Unlock()
		for n := *g.Get(); n != nil; n = n.next {
			if n == node {
				kdiag.Panic("vmm: kheap Kfree: double free detected", nil)
				return
			}
		}
		node.next = *g.Get()
		*g.Get() = node
		return
	}
	h.kfreeLarge(ptr)
}

func orderForPages(npages int) int {
	order := 0
	for (1 << order) < npages {
		order++
	}
	return order
}

// kmallocLarge writes the largeSegment header into the first bytes of the
// freshly allocated pages and returns a pointer past it, so the block the
// caller sees never overlaps the header.
func (h *KHeap) kmallocLarge(size int) uintptr {
	npages := (size + int(largeHeaderSize) + pmm.PageSize - 1) / pmm.PageSize
	order := orderForPages(npages)
	f, err := h.alloc.Alloc(order, 0)
	if err != nil {
		return 0
	}
	base := uintptr(pmm.ToVirt(f.Addr()))

	hdr := (*largeSegment)(unsafe.Pointer(base))
	hdr.magic = largeMagic
	hdr.pages = uint32(1 << order)
	hdr.size = uint64(size)

	g := h.large.Lock()
	hdr.next = *g.Get()
	*g.Get() = hdr
	g.Unlock()
	return base + largeHeaderSize
}

// kfreeLarge recovers the largeSegment header from ptr, validates its magic
// (catching both corruption and a double free, which would hand back a
// pointer whose header was already unlinked and likely reused), then
// unlinks it from the live list before releasing the backing pages.
func (h *KHeap) kfreeLarge(ptr uintptr) {
	base := ptr - largeHeaderSize
	hdr := (*largeSegment)(unsafe.Pointer(base))
	if hdr.magic != largeMagic {
		kdiag.Panic("vmm: kheap Kfree: corrupt or double-freed large block", nil)
		return
	}

	g := h.large.Lock()
	var prev *largeSegment
	found := false
	for cur := *g.Get(); cur != nil; cur = cur.next {
		if cur == hdr {
			if prev == nil {
				*g.Get() = cur.next
			} else {
				prev.next = cur.next
			}
			found = true
			break
		}
		prev = cur
	}
	g.Unlock()
	if !found {
		kdiag.Panic("vmm: kheap Kfree: double free detected", nil)
		return
	}

	hdr.magic = 0
	f := pmm.FrameOf(pmm.FromVirt(unsafe.Pointer(base)))
	h.alloc.FreeOrder(f, orderForPages(int(hdr.pages)))
}
