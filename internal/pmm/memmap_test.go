package pmm

import "testing"

func TestOverlaySplitsIntersectingRegion(t *testing.T) {
	m := NewRegionMap([]Region{{PhysBase: 0, Length: 0x10000, Kind: Usable}})
	m.Overlay(0x4000, 0x2000, Reserved, "framebuffer")

	regs := m.Regions()
	if len(regs) != 3 {
		t.Fatalf("got %d regions, want 3: %+v", len(regs), regs)
	}
	if regs[0].PhysBase != 0 || regs[0].end() != 0x4000 || regs[0].Kind != Usable {
		t.Fatalf("region 0 = %+v", regs[0])
	}
	if regs[1].PhysBase != 0x4000 || regs[1].end() != 0x6000 || regs[1].Kind != Reserved {
		t.Fatalf("region 1 = %+v", regs[1])
	}
	if regs[2].PhysBase != 0x6000 || regs[2].end() != 0x10000 || regs[2].Kind != Usable {
		t.Fatalf("region 2 = %+v", regs[2])
	}
}

func TestAdjacentEquivalentRegionsCoalesce(t *testing.T) {
	m := NewRegionMap([]Region{
		{PhysBase: 0, Length: 0x1000, Kind: Usable},
		{PhysBase: 0x1000, Length: 0x1000, Kind: Usable},
	})
	if len(m.Regions()) != 1 {
		t.Fatalf("expected coalesced single region, got %+v", m.Regions())
	}
}

func TestOverlayAtEdgeDoesNotSplitUnnecessarily(t *testing.T) {
	m := NewRegionMap([]Region{{PhysBase: 0, Length: 0x2000, Kind: Usable}})
	m.Overlay(0, 0x1000, Reserved, "kernel")
	regs := m.Regions()
	if len(regs) != 2 {
		t.Fatalf("got %d regions, want 2: %+v", len(regs), regs)
	}
	if regs[0].Kind != Reserved || regs[1].Kind != Usable {
		t.Fatalf("unexpected kinds: %+v", regs)
	}
}

func TestHighestUsedFrame(t *testing.T) {
	m := NewRegionMap([]Region{
		{PhysBase: 0, Length: 0x1000, Kind: Usable},
		{PhysBase: 0x10000, Length: 0x1000, Kind: Reserved},
	})
	if got, want := m.HighestUsedFrame(), FrameOf(0x11000); got != want {
		t.Fatalf("HighestUsedFrame = %d, want %d", got, want)
	}
}
