package pcr

// Selector indices, fixed across every CPU: null, kernel code, kernel data,
// user data, user code, TSS (two slots — a TSS descriptor is 16 bytes in
// long mode). User data precedes user code so SYSRET's fixed +16/+8 selector
// arithmetic (STAR MSR layout) lands on the right descriptors.
const (
	selNull = iota
	selKernelCode
	selKernelData
	selUserData32 // unused 32-bit compat placeholder, kept for STAR layout parity
	selUserData
	selUserCode
	selTSSLo
	selTSSHi
	gdtEntries
)

const (
	KernelCodeSelector = selKernelCode * 8
	KernelDataSelector = selKernelData * 8
	UserDataSelector   = (selUserData * 8) | 3
	UserCodeSelector   = (selUserCode * 8) | 3
	TSSSelector        = selTSSLo * 8
)

type gdtEntry8 = uint64

// GDT is a per-CPU Global Descriptor Table: null, kernel code/data, user
// code/data, and a 16-byte TSS descriptor.
type GDT struct {
	entries [gdtEntries]gdtEntry8
	tssSel  uint16
}

const (
	accPresent  = 1 << 7
	accUser     = 0 // DPL 0 unless accDPL3 set
	accDPL3     = 3 << 5
	accCode     = 1 << 3 // type bit for code vs data
	accRW       = 1 << 1 // readable (code) / writable (data)
	accExec     = 1 << 0 // TSS "busy/available" low bit placeholder, unused here
	flagsLong   = 1 << 5 // L bit: 64-bit code segment
	flagsGran4K = 1 << 3 // G bit
	descSystem  = 1 << 4 // S bit: 1 = code/data, 0 = system (TSS)
)

func codeDescriptor(dpl uint64) uint64 {
	access := uint64(accPresent) | descSystem | accCode | accRW | (dpl << 5)
	flags := uint64(flagsLong) << 20
	return access<<40 | flags
}

func dataDescriptor(dpl uint64) uint64 {
	access := uint64(accPresent) | descSystem | accRW | (dpl << 5)
	return access << 40
}

// Build fills in the fixed descriptor layout and the TSS descriptor
// pointing at tss. It must run before Load.
func (g *GDT) Build(tss *TSS) {
	g.entries[selNull] = 0
	g.entries[selKernelCode] = codeDescriptor(0)
	g.entries[selKernelData] = dataDescriptor(0)
	g.entries[selUserData] = dataDescriptor(3)
	g.entries[selUserCode] = codeDescriptor(3)

	base := uint64(tss.addr())
	limit := uint64(tssSize - 1)
	lo := limit&0xFFFF | (base&0xFFFFFF)<<16 | uint64(0x89)<<40 | ((limit>>16)&0xF)<<48 | ((base>>24)&0xFF)<<56
	hi := (base >> 32) & 0xFFFFFFFF
	g.entries[selTSSLo] = lo
	g.entries[selTSSHi] = hi
	g.tssSel = TSSSelector
}

// Load installs this GDT via LGDT and reloads every segment register,
// including a far jump to reload CS — the only way to change CS on x86_64.
func (g *GDT) Load() {
	loadGDT(&g.entries[0], uint16(len(g.entries)*8-1))
	reloadSegments(KernelCodeSelector, KernelDataSelector)
}

//go:nosplit
func loadGDT(base *uint64, limit uint16)

//go:nosplit
func reloadSegments(codeSel, dataSel uint16)
