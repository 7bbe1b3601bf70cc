package boot

import (
	"encoding/binary"
	"errors"
	"unsafe"

	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/pcr"
	"github.com/sloplabs/slopos/internal/pmm"
	"github.com/sloplabs/slopos/internal/sched"
	"github.com/sloplabs/slopos/internal/syscalls"
	"github.com/sloplabs/slopos/internal/vfs"
	"github.com/sloplabs/slopos/internal/vmm"
)

// Grounded on original_source/core/src/exec/mod.rs's do_exec/spawn_program
// flow: resolve a path through the filesystem, load its segments into a
// fresh address space, and point the task at the loaded entry point. That
// file works against slopos_mm::elf's own loader; this kernel's vfs has no
// such helper yet, so this file's parseELF64 is written directly against the
// standard ELF64 layout (no library in the retrieval pack parses ELF).

const (
	userStackPages = 16
	userStackTop   = 0x0000_7000_0000_0000 // arbitrary canonical userspace ceiling
)

var ErrNotExecutable = errors.New("boot: not a valid ELF64 executable")

// registerExecLoader installs loadExecutable as the syscalls exec/spawn_path
// backend, wired once rootVFS exists (Services phase).
func registerExecLoader(root *vfs.VFS) {
	syscalls.RegisterExec(func(t *sched.Task, path string, argv []string) errno.Errno {
		return loadExecutable(root, t, path)
	})
}

func loadExecutable(root *vfs.VFS, t *sched.Task, path string) errno.Errno {
	fh, e := root.Open(path, 0)
	if e != 0 {
		return e
	}
	defer fh.Close()

	st, e := fh.Stat()
	if e != 0 {
		return e
	}
	data := make([]byte, st.Size)
	for off := 0; off < len(data); {
		n, e := fh.Read(data[off:])
		if e != 0 {
			return e
		}
		if n == 0 {
			break
		}
		off += n
	}

	entry, segments, err := parseELF64(data)
	if err != nil {
		return errno.EINVAL
	}

	as, err := vmm.NewAddressSpace(pmm.Global())
	if err != nil {
		return errno.ENOMEM
	}
	tree := vmm.NewTree()

	var highWaterMark uint64
	for _, seg := range segments {
		if err := mapSegment(as, tree, seg); err != nil {
			return errno.ENOMEM
		}
		if end := seg.vaddr + seg.memsz; end > highWaterMark {
			highWaterMark = end
		}
	}
	stackFlags := vmm.VMARead | vmm.VMAWrite | vmm.VMAUser
	stackStart := uintptr(userStackTop - userStackPages*pmm.PageSize)
	if err := mapAnon(as, tree, stackStart, userStackTop, stackFlags); err != nil {
		return errno.ENOMEM
	}

	t.AddressSpace = as
	t.VMATree = tree
	t.BrkBase = alignUp(highWaterMark, pmm.PageSize)
	t.MmapBase = 0x0000_6000_0000_0000
	t.MmapCursor = t.MmapBase
	t.Frame = sched.Regs{}
	t.Frame.RIP = entry
	t.Frame.RSP = userStackTop
	t.Frame.RFLAGS = 0x202 // IF set, reserved bit 1
	t.Frame.CS = uint64(pcr.UserCodeSelector)
	t.Frame.SS = uint64(pcr.UserDataSelector)
	return 0
}

func alignUp(v uint64, align uint64) uintptr { return uintptr((v + align - 1) &^ (align - 1)) }

type elfSegment struct {
	vaddr, filesz, memsz uint64
	data                 []byte
	flags                uint32
}

const (
	elfMagic   = "\x7fELF"
	elfClass64 = 2
	elfData2LSB = 1
	elfTypeExec = 2
	elfTypeDyn  = 3
	elfMachineX86_64 = 0x3E
	ptLoad = 1

	pfExec  = 1
	pfWrite = 2
)

// parseELF64 reads a 64-byte ELF64 header and its program header table,
// returning every PT_LOAD segment's in-file bytes alongside its virtual
// address and permission flags.
func parseELF64(data []byte) (entry uint64, segments []elfSegment, err error) {
	if len(data) < 64 || string(data[:4]) != elfMagic {
		return 0, nil, ErrNotExecutable
	}
	if data[4] != elfClass64 || data[5] != elfData2LSB {
		return 0, nil, ErrNotExecutable
	}
	etype := binary.LittleEndian.Uint16(data[16:18])
	machine := binary.LittleEndian.Uint16(data[18:20])
	if (etype != elfTypeExec && etype != elfTypeDyn) || machine != elfMachineX86_64 {
		return 0, nil, ErrNotExecutable
	}
	entry = binary.LittleEndian.Uint64(data[24:32])
	phoff := binary.LittleEndian.Uint64(data[32:40])
	phentsize := binary.LittleEndian.Uint16(data[54:56])
	phnum := binary.LittleEndian.Uint16(data[56:58])

	for i := uint16(0); i < phnum; i++ {
		off := phoff + uint64(i)*uint64(phentsize)
		if off+56 > uint64(len(data)) {
			return 0, nil, ErrNotExecutable
		}
		ph := data[off : off+56]
		ptype := binary.LittleEndian.Uint32(ph[0:4])
		if ptype != ptLoad {
			continue
		}
		pflags := binary.LittleEndian.Uint32(ph[4:8])
		poffset := binary.LittleEndian.Uint64(ph[8:16])
		pvaddr := binary.LittleEndian.Uint64(ph[16:24])
		pfilesz := binary.LittleEndian.Uint64(ph[32:40])
		pmemsz := binary.LittleEndian.Uint64(ph[40:48])
		if poffset+pfilesz > uint64(len(data)) {
			return 0, nil, ErrNotExecutable
		}
		segments = append(segments, elfSegment{
			vaddr:  pvaddr,
			filesz: pfilesz,
			memsz:  pmemsz,
			data:   data[poffset : poffset+pfilesz],
			flags:  pflags,
		})
	}
	if len(segments) == 0 {
		return 0, nil, ErrNotExecutable
	}
	return entry, segments, nil
}

// mapSegment allocates and maps one page-aligned frame per page the segment
// covers, copies its file bytes in, and zero-fills the remainder (the
// .bss tail when memsz > filesz, and the partial page at either edge).
func mapSegment(as *vmm.AddressSpace, tree *vmm.Tree, seg elfSegment) error {
	start := seg.vaddr &^ (pmm.PageSize - 1)
	end := alignUp(seg.vaddr+seg.memsz, pmm.PageSize)

	flags := vmm.VMARead | vmm.VMAUser
	if seg.flags&pfWrite != 0 {
		flags |= vmm.VMAWrite
	}
	if seg.flags&pfExec != 0 {
		flags |= vmm.VMAExec
	}
	tree.Insert(&vmm.VMA{Start: uintptr(start), End: uintptr(end), Flags: flags})

	alloc := pmm.Global()
	pteFlags := (&vmm.VMA{Flags: flags}).PTEFlags() | vmm.PTEPresent
	for va := start; va < end; va += pmm.PageSize {
		f, err := alloc.Alloc(0, pmm.AllocZero)
		if err != nil {
			return err
		}
		if !as.Map(alloc, uintptr(va), f, pteFlags) {
			return errors.New("boot: duplicate mapping while loading segment")
		}
		page := unsafeFramePage(f)
		fileStart := int64(va) - int64(seg.vaddr)
		fileEnd := fileStart + pmm.PageSize
		if fileStart < int64(len(seg.data)) {
			lo := fileStart
			if lo < 0 {
				lo = 0
			}
			hi := fileEnd
			if hi > int64(len(seg.data)) {
				hi = int64(len(seg.data))
			}
			copy(page[lo-fileStart:], seg.data[lo:hi])
		}
	}
	return nil
}

func mapAnon(as *vmm.AddressSpace, tree *vmm.Tree, start, end uintptr, flags vmm.VMAFlags) error {
	tree.Insert(&vmm.VMA{Start: start, End: end, Flags: flags | vmm.VMAAnon})
	alloc := pmm.Global()
	pteFlags := (&vmm.VMA{Flags: flags}).PTEFlags() | vmm.PTEPresent
	for va := start; va < end; va += pmm.PageSize {
		f, err := alloc.Alloc(0, pmm.AllocZero)
		if err != nil {
			return err
		}
		if !as.Map(alloc, va, f, pteFlags) {
			return errors.New("boot: duplicate mapping while mapping stack")
		}
	}
	return nil
}

func unsafeFramePage(f pmm.Frame) []byte {
	p := pmm.ToVirt(f.Addr())
	return unsafe.Slice((*byte)(p), pmm.PageSize)
}
