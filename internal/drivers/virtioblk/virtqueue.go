// Package virtioblk drives a legacy (transitional) virtio-blk device found over PCI:
// queue setup, request submission, and the completion poll that backs the
// block-device read/write sector calls internal/vfs's disk-backed mounts
// need. The split-virtqueue layout and free-descriptor-list bookkeeping are
// ported from the teacher's virtqueue.go (same VirtQDesc/VirtQAvailable/
// VirtQUsed shapes and the same add/notify/reap algorithm); unlike the rest
// of mazarin this code is architecture-independent, since the VirtIO ring
// format doesn't vary by CPU. It's expressed over pmm-allocated, HHDM-mapped
// memory and Go slices rather than the teacher's manual kmalloc+unsafe
// pointer arithmetic, since this kernel already has both.
package virtioblk

import (
	"unsafe"

	"github.com/sloplabs/slopos/internal/pmm"
)

const (
	descFNext  = 1 << 0
	descFWrite = 1 << 1

	noDesc = 0xFFFF
)

// vqDesc mirrors the VirtIO 1.2 wire descriptor: 16 bytes, no padding.
type vqDesc struct {
	Addr  uint64
	Len   uint32
	Flags uint16
	Next  uint16
}

// vqUsedElem mirrors one entry of the used ring.
type vqUsedElem struct {
	ID  uint32
	Len uint32
}

// virtqueue is one split virtqueue: a descriptor table, an available ring
// the driver writes and the device reads, and a used ring the device
// writes and the driver reads. All three regions live in one contiguous,
// physically-contiguous allocation (virtqueues must be addressable by
// physical address for the device to DMA into/out of).
type virtqueue struct {
	size uint16

	desc  []vqDesc
	avail *availRing
	used  *usedRing

	physBase pmm.PhysAddr

	freeHead    uint16
	numFree     uint16
	lastUsedIdx uint16

	frame  pmm.Frame
	order  int
}

// availRing overlays the VirtIO available-ring header; Ring is accessed
// through ringAt rather than a flex-array field since Go has no incomplete
// array types.
type availRing struct {
	Flags uint16
	Idx   uint16
}

type usedRing struct {
	Flags uint16
	Idx   uint16
}

func ringSizeBytes(size uint16) uintptr {
	descBytes := uintptr(size) * unsafe.Sizeof(vqDesc{})
	availBytes := uintptr(4 + 2*int(size) + 2)
	usedBytes := uintptr(4) + uintptr(size)*unsafe.Sizeof(vqUsedElem{}) + 2
	return descBytes + availBytes + usedBytes
}

// newVirtqueue allocates and initializes a virtqueue of the given power-of-2
// size, linking every descriptor into one free chain exactly as
// virtqueueInit does.
func newVirtqueue(size uint16) (*virtqueue, error) {
	if size == 0 || size&(size-1) != 0 {
		panic("virtioblk: queue size must be a power of 2")
	}
	need := ringSizeBytes(size)
	order := 0
	for (pmm.PageSize << order) < int(need) {
		order++
	}
	frame, err := pmm.Global().Alloc(order, pmm.AllocZero|pmm.AllocDMA)
	if err != nil {
		return nil, err
	}
	vq := newVirtqueueAt(uintptr(pmm.ToVirt(frame.Addr())), size)
	vq.physBase = frame.Addr()
	vq.frame = frame
	vq.order = order
	return vq, nil
}

// newVirtqueueAt lays out a virtqueue's three regions starting at a given
// virtual address, with no pmm dependency; the real path points it at an
// HHDM-mapped DMA allocation, and tests point it at a plain Go byte slice,
// since the free-list/ring bookkeeping this exercises doesn't care where
// the bytes live.
func newVirtqueueAt(virt uintptr, size uint16) *virtqueue {
	descBytes := uintptr(size) * unsafe.Sizeof(vqDesc{})
	availBytes := uintptr(4 + 2*int(size) + 2)

	vq := &virtqueue{
		size:    size,
		desc:    unsafe.Slice((*vqDesc)(unsafe.Pointer(virt)), size),
		avail:   (*availRing)(unsafe.Pointer(virt + descBytes)),
		used:    (*usedRing)(unsafe.Pointer(virt + descBytes + availBytes)),
		numFree: size,
	}
	for i := uint16(0); i < size-1; i++ {
		vq.desc[i].Next = i + 1
	}
	vq.desc[size-1].Next = noDesc
	return vq
}

// close releases the backing memory; only used when a probe finds a device
// but decides not to keep it (e.g. unsupported feature bits).
func (vq *virtqueue) close() { pmm.Global().FreeOrder(vq.frame, vq.order) }

func (vq *virtqueue) availRingSlot(i uint16) *uint16 {
	base := uintptr(unsafe.Pointer(vq.avail)) + 4
	return (*uint16)(unsafe.Pointer(base + uintptr(i)*2))
}

func (vq *virtqueue) usedRingSlot(i uint16) *vqUsedElem {
	base := uintptr(unsafe.Pointer(vq.used)) + 4
	return (*vqUsedElem)(unsafe.Pointer(base + uintptr(i)*unsafe.Sizeof(vqUsedElem{})))
}

// addDesc claims one descriptor off the free list and fills it in,
// mirroring virtqueueAddDesc.
func (vq *virtqueue) addDesc(addr uint64, length uint32, flags uint16, next uint16) (uint16, bool) {
	if vq.numFree == 0 {
		return noDesc, false
	}
	idx := vq.freeHead
	vq.freeHead = vq.desc[idx].Next
	vq.numFree--
	vq.desc[idx] = vqDesc{Addr: addr, Len: length, Flags: flags, Next: next}
	return idx, true
}

// submitChain builds a descriptor chain from bufs (each marked writable by
// the device per writable[i]) and publishes it to the available ring.
// Returns the head descriptor index, or false if the queue has no room.
func (vq *virtqueue) submitChain(addrs []uint64, lens []uint32, writable []bool) (uint16, bool) {
	n := len(addrs)
	if n == 0 || uint16(n) > vq.numFree {
		return noDesc, false
	}
	indices := make([]uint16, n)
	for i := n - 1; i >= 0; i-- {
		flags := uint16(0)
		if writable[i] {
			flags |= descFWrite
		}
		next := uint16(noDesc)
		if i < n-1 {
			flags |= descFNext
			next = indices[i+1]
		}
		idx, ok := vq.addDesc(addrs[i], lens[i], flags, next)
		if !ok {
			return noDesc, false
		}
		indices[i] = idx
	}
	head := indices[0]
	*vq.availRingSlot(vq.avail.Idx % vq.size) = head
	vq.avail.Idx++
	return head, true
}

// hasUsed reports whether the device has completed at least one more
// request than the driver has reaped.
func (vq *virtqueue) hasUsed() bool { return vq.used.Idx != vq.lastUsedIdx }

// popUsed returns the next completed descriptor chain's head index and byte
// count, freeing the whole chain back onto the free list.
func (vq *virtqueue) popUsed() (descIdx uint16, length uint32, ok bool) {
	if !vq.hasUsed() {
		return 0, 0, false
	}
	elem := vq.usedRingSlot(vq.lastUsedIdx % vq.size)
	vq.lastUsedIdx++
	descIdx, length = uint16(elem.ID), elem.Len
	vq.freeChain(descIdx)
	return descIdx, length, true
}

// freeChain walks a descriptor chain from head, returning every descriptor
// in it to the free list, mirroring virtqueueFreeDescChain.
func (vq *virtqueue) freeChain(head uint16) {
	cur := head
	for {
		d := &vq.desc[cur]
		next := d.Next
		hasNext := d.Flags&descFNext != 0
		d.Next = vq.freeHead
		vq.freeHead = cur
		vq.numFree++
		if !hasNext || next == noDesc {
			break
		}
		cur = next
	}
}
