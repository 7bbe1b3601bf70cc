package pmm

import "sort"

// RegionKind classifies a span of physical address space for the allocator.
type RegionKind uint8

const (
	Usable RegionKind = iota
	Reserved
)

// Region is one entry of the canonical memory-region map: the firmware map
// merged with overlay reservations for the framebuffer, ACPI tables, APIC
// MMIO windows, the kernel-and-modules image, and allocator metadata itself.
type Region struct {
	PhysBase PhysAddr
	Length   uint64
	Kind     RegionKind
	Type     uint32 // opaque firmware-reported subtype, preserved through merges
	Flags    uint32
	Label    string
}

func (r Region) end() PhysAddr { return r.PhysBase + PhysAddr(r.Length) }

func (r Region) equivalent(o Region) bool {
	return r.Kind == o.Kind && r.Type == o.Type && r.Flags == o.Flags && r.Label == o.Label
}

// RegionMap is a sorted, non-overlapping sequence of regions. It does not
// require contiguous coverage of the address space, but within the map,
// adjacent equivalent entries are always coalesced.
type RegionMap struct {
	regions []Region
}

// NewRegionMap builds a map from the firmware-reported entries, sorting and
// coalescing them.
func NewRegionMap(entries []Region) *RegionMap {
	m := &RegionMap{regions: append([]Region(nil), entries...)}
	m.sortAndCoalesce()
	return m
}

func (m *RegionMap) Regions() []Region { return m.regions }

func (m *RegionMap) sortAndCoalesce() {
	sort.Slice(m.regions, func(i, j int) bool { return m.regions[i].PhysBase < m.regions[j].PhysBase })
	out := m.regions[:0]
	for _, r := range m.regions {
		if n := len(out); n > 0 && out[n-1].end() == r.PhysBase && out[n-1].equivalent(r) {
			out[n-1].Length += r.Length
			continue
		}
		out = append(out, r)
	}
	m.regions = out
}

// Overlay inserts a reservation at [base, base+length), splitting and
// re-stamping whatever existing regions intersect it. Regions entirely
// outside the overlay are untouched; a region straddling an overlay edge is
// split into the part before, the re-stamped overlap, and the part after.
func (m *RegionMap) Overlay(base PhysAddr, length uint64, kind RegionKind, label string) {
	if length == 0 {
		return
	}
	ovlEnd := base + PhysAddr(length)
	var out []Region
	for _, r := range m.regions {
		if r.end() <= base || r.PhysBase >= ovlEnd {
			out = append(out, r)
			continue
		}
		if r.PhysBase < base {
			out = append(out, Region{PhysBase: r.PhysBase, Length: uint64(base - r.PhysBase), Kind: r.Kind, Type: r.Type, Flags: r.Flags, Label: r.Label})
		}
		midBase := max(r.PhysBase, base)
		midEnd := min(r.end(), ovlEnd)
		out = append(out, Region{PhysBase: midBase, Length: uint64(midEnd - midBase), Kind: kind, Label: label})
		if r.end() > ovlEnd {
			out = append(out, Region{PhysBase: ovlEnd, Length: uint64(r.end() - ovlEnd), Kind: r.Kind, Type: r.Type, Flags: r.Flags, Label: r.Label})
		}
	}
	m.regions = out
	m.sortAndCoalesce()
}

// UsableRanges returns the [start,end) physical ranges available to the
// frame allocator, i.e. every Usable region.
func (m *RegionMap) UsableRanges() []struct{ Start, End PhysAddr } {
	var out []struct{ Start, End PhysAddr }
	for _, r := range m.regions {
		if r.Kind == Usable {
			out = append(out, struct{ Start, End PhysAddr }{r.PhysBase, r.end()})
		}
	}
	return out
}

// HighestUsedFrame returns the frame number one past the highest address
// covered by any region, recorded at boot for sizing the metadata array.
func (m *RegionMap) HighestUsedFrame() Frame {
	var top PhysAddr
	for _, r := range m.regions {
		if r.end() > top {
			top = r.end()
		}
	}
	return FrameOf(top)
}

func max(a, b PhysAddr) PhysAddr {
	if a > b {
		return a
	}
	return b
}

func min(a, b PhysAddr) PhysAddr {
	if a < b {
		return a
	}
	return b
}
