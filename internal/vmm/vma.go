package vmm

import "github.com/sloplabs/slopos/internal/ksync"

// VMAFlags describe a virtual memory area's permissions and backing.
type VMAFlags uint32

const (
	VMARead VMAFlags = 1 << iota
	VMAWrite
	VMAExec
	VMAUser
	VMALazy // demand-paged: not present until first touch
	VMAAnon // anonymous, zero-fill-on-demand backing
)

// VMA is one mapped region of a process's address space, [Start, End).
type VMA struct {
	Start, End uintptr
	Flags      VMAFlags
	// File/offset backing would live here for a file-backed mapping; out of
	// scope for this kernel's VFS (no mmap of files).
}

func (v *VMA) Contains(addr uintptr) bool { return addr >= v.Start && addr < v.End }

// PTEFlags translates a VMA's permission bits into the PTE flags a mapping
// for it should carry (minus Present, added by the caller).
func (v *VMA) PTEFlags() uint64 {
	var f uint64
	if v.Flags&VMAWrite != 0 {
		f |= PTEWritable
	}
	if v.Flags&VMAUser != 0 {
		f |= PTEUser
	}
	if v.Flags&VMAExec == 0 {
		f |= PTENX
	}
	return f
}

// treapNode is one node of the randomized augmented interval tree backing a
// process's VMA set. Priorities are assigned at insertion from a
// process-local LCG rather than math/rand/v2, since this tree is built and
// queried from fault context where an allocation-free, deterministic-enough
// source is preferable to seeding crypto-grade randomness per insert.
type treapNode struct {
	vma      *VMA
	priority uint64
	maxEnd   uintptr
	left     *treapNode
	right    *treapNode
}

// Tree is an augmented treap keyed by VMA.Start, each node caching the
// maximum End in its subtree so a point or range query can prune whole
// branches, the standard augmented-interval-tree trick applied to a
// probabilistically balanced BST instead of a red-black tree.
type Tree struct {
	mu   ksync.IrqMutex[*treapNode]
	rng  uint64
}

// NewTree returns an empty VMA tree seeded with a fixed, non-zero LCG state;
// the seed only needs to avoid producing degenerate always-equal priorities,
// not to be unpredictable.
func NewTree() *Tree {
	t := &Tree{rng: 0x9E3779B97F4A7C15}
	t.mu = *ksync.NewIrqMutex[*treapNode](nil)
	return t
}

func (t *Tree) nextPriority() uint64 {
	t.rng = t.rng*6364136223846793005 + 1442695040888963407
	return t.rng
}

func recomputeMaxEnd(n *treapNode) {
	m := n.vma.End
	if n.left != nil && n.left.maxEnd > m {
		m = n.left.maxEnd
	}
	if n.right != nil && n.right.maxEnd > m {
		m = n.right.maxEnd
	}
	n.maxEnd = m
}

func rotateRight(n *treapNode) *treapNode {
	l := n.left
	n.left = l.right
	l.right = n
	recomputeMaxEnd(n)
	recomputeMaxEnd(l)
	return l
}

func rotateLeft(n *treapNode) *treapNode {
	r := n.right
	n.right = r.left
	r.left = n
	recomputeMaxEnd(n)
	recomputeMaxEnd(r)
	return r
}

func insert(n *treapNode, add *treapNode) *treapNode {
	if n == nil {
		return add
	}
	if add.vma.Start < n.vma.Start {
		n.left = insert(n.left, add)
		if n.left.priority > n.priority {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, add)
		if n.right.priority > n.priority {
			n = rotateLeft(n)
		}
	}
	recomputeMaxEnd(n)
	return n
}

// Insert adds vma to the tree. Callers must ensure it doesn't overlap an
// existing VMA; Find/Overlapping exist precisely to check that first.
func (t *Tree) Insert(vma *VMA) {
	g := t.mu.Lock()
	defer g.Unlock()
	*g.Get() = insert(*g.Get(), &treapNode{vma: vma, priority: t.nextPriority(), maxEnd: vma.End})
}

func remove(n *treapNode, start uintptr) *treapNode {
	if n == nil {
		return nil
	}
	switch {
	case start < n.vma.Start:
		n.left = remove(n.left, start)
	case start > n.vma.Start:
		n.right = remove(n.right, start)
	default:
		switch {
		case n.left == nil:
			return n.right
		case n.right == nil:
			return n.left
		case n.left.priority > n.right.priority:
			n = rotateRight(n)
			n.right = remove(n.right, start)
		default:
			n = rotateLeft(n)
			n.left = remove(n.left, start)
		}
	}
	if n != nil {
		recomputeMaxEnd(n)
	}
	return n
}

// Remove deletes the VMA starting at start, if any.
func (t *Tree) Remove(start uintptr) {
	g := t.mu.Lock()
	defer g.Unlock()
	*g.Get() = remove(*g.Get(), start)
}

// find relies on VMAs never overlapping: once addr >= n.vma.Start, no node
// in the left subtree (whose starts are all smaller) can contain it, so the
// search only ever has to go one direction.
func find(n *treapNode, addr uintptr) *VMA {
	for n != nil {
		if addr < n.vma.Start {
			if n.left == nil || n.left.maxEnd <= addr {
				return nil
			}
			n = n.left
			continue
		}
		if n.vma.Contains(addr) {
			return n.vma
		}
		if n.right == nil || n.right.maxEnd <= addr {
			return nil
		}
		n = n.right
	}
	return nil
}

// Find returns the VMA covering addr, if any.
func (t *Tree) Find(addr uintptr) *VMA {
	g := t.mu.Lock()
	defer g.Unlock()
	return find(*g.Get(), addr)
}

func overlapping(n *treapNode, a, b uintptr) *VMA {
	if n == nil || n.maxEnd <= a {
		return nil
	}
	if n.left != nil {
		if v := overlapping(n.left, a, b); v != nil {
			return v
		}
	}
	if n.vma.Start < b && a < n.vma.End {
		return n.vma
	}
	if n.vma.Start >= b {
		return nil
	}
	return overlapping(n.right, a, b)
}

// Overlapping returns a VMA intersecting [a,b), or nil if none does.
func (t *Tree) Overlapping(a, b uintptr) *VMA {
	g := t.mu.Lock()
	defer g.Unlock()
	return overlapping(*g.Get(), a, b)
}

// FindCovering returns the single VMA with Start<=a and End>=b, or nil if no
// one VMA spans the whole range (mprotect/munmap only operate on a range
// wholly inside one VMA or split/remove it first).
func (t *Tree) FindCovering(a, b uintptr) *VMA {
	g := t.mu.Lock()
	defer g.Unlock()
	v := find(*g.Get(), a)
	if v == nil || v.End < b {
		return nil
	}
	return v
}

// Punch removes [a,b) from the tree, splitting any VMA that only partially
// overlaps it into the piece(s) that remain, and returns the Start/End of
// every range actually unmapped so the caller can tear down the matching
// page-table entries. Used by munmap, which may carve a hole out of the
// middle of a larger mapping.
func (t *Tree) Punch(a, b uintptr) []VMA {
	var removed []VMA
	for _, v := range t.All() {
		if v.End <= a || v.Start >= b {
			continue
		}
		lo, hi := v.Start, v.End
		if lo < a {
			lo = a
		}
		if hi > b {
			hi = b
		}
		removed = append(removed, VMA{Start: lo, End: hi, Flags: v.Flags})

		t.Remove(v.Start)
		if v.Start < a {
			t.Insert(&VMA{Start: v.Start, End: a, Flags: v.Flags})
		}
		if v.End > b {
			t.Insert(&VMA{Start: b, End: v.End, Flags: v.Flags})
		}
	}
	return removed
}

func collect(n *treapNode, out *[]*VMA) {
	if n == nil {
		return
	}
	collect(n.left, out)
	*out = append(*out, n.vma)
	collect(n.right, out)
}

// All returns every VMA in start order, for fork's VMA-tree duplication walk.
func (t *Tree) All() []*VMA {
	g := t.mu.Lock()
	defer g.Unlock()
	var out []*VMA
	collect(*g.Get(), &out)
	return out
}
