package vfs

import "encoding/binary"

// Ext2Fs is a read-only ext2 rev-0/rev-1 adapter: superblock + single block
// group descriptor table + inode table + direct/single-indirect block
// reads. §6 treats ext2's on-disk format as external, so this stays to the
// subset the original fs crate's own tests actually exercise — one
// filesystem's worth of layout constants, not a general-purpose ext2
// driver. Double/triple indirect blocks aren't walked: anything this
// kernel reads off disk (the init binary, its libraries) fits in 12 direct
// blocks plus one indirect block already.
type Ext2Fs struct {
	dev            BlockDevice
	blockSize      uint32
	inodesPerGroup uint32
	inodeSize      uint16
	inodesCount    uint32
	groups         []ext2GroupDesc
}

type ext2GroupDesc struct {
	inodeTableBlock uint32
}

const (
	ext2SuperblockOffset = 1024
	ext2SuperblockSize   = 1024
	ext2GroupDescSize    = 32
	ext2Magic            = 0xEF53
	ext2RootInode        = InodeID(2)

	ext2ModeTypeMask = 0xF000
	ext2ModeDir      = 0x4000
	ext2ModeRegular  = 0x8000

	ext2DirectBlocks   = 12
	ext2IndirectIndex  = 12
)

// OpenExt2 reads dev's superblock and group descriptor table and returns a
// ready Backend, or the Error the original's init_internal would report
// for the same malformed image.
func OpenExt2(dev BlockDevice) (*Ext2Fs, Error) {
	sb := make([]byte, ext2SuperblockSize)
	if err := dev.ReadAt(ext2SuperblockOffset, sb); err != nil {
		return nil, ErrDeviceError
	}
	if binary.LittleEndian.Uint16(sb[56:]) != ext2Magic {
		return nil, ErrInvalidSuperblock
	}
	logBlockSize := binary.LittleEndian.Uint32(sb[24:])
	if logBlockSize != 0 {
		return nil, ErrUnsupportedBlockSize
	}
	blockSize := uint32(1024) << logBlockSize

	inodesCount := binary.LittleEndian.Uint32(sb[0:])
	blocksCount := binary.LittleEndian.Uint32(sb[4:])
	firstDataBlock := binary.LittleEndian.Uint32(sb[20:])
	blocksPerGroup := binary.LittleEndian.Uint32(sb[32:])
	inodesPerGroup := binary.LittleEndian.Uint32(sb[40:])
	inodeSize := binary.LittleEndian.Uint16(sb[88:])
	if blocksPerGroup == 0 || inodesPerGroup == 0 {
		return nil, ErrInvalidSuperblock
	}

	groupCount := (blocksCount + blocksPerGroup - 1) / blocksPerGroup
	if groupCount == 0 {
		groupCount = 1
	}
	descTableBlock := firstDataBlock + 1
	descBytes := make([]byte, groupCount*ext2GroupDescSize)
	if err := dev.ReadAt(uint64(descTableBlock)*uint64(blockSize), descBytes); err != nil {
		return nil, ErrDeviceError
	}
	groups := make([]ext2GroupDesc, groupCount)
	for i := range groups {
		off := i * ext2GroupDescSize
		groups[i] = ext2GroupDesc{inodeTableBlock: binary.LittleEndian.Uint32(descBytes[off+8:])}
	}

	return &Ext2Fs{
		dev:            dev,
		blockSize:      blockSize,
		inodesPerGroup: inodesPerGroup,
		inodeSize:      inodeSize,
		inodesCount:    inodesCount,
		groups:         groups,
	}, ErrNone
}

func (f *Ext2Fs) Name() string       { return "ext2" }
func (f *Ext2Fs) RootInode() InodeID { return ext2RootInode }

type ext2Inode struct {
	mode   uint16
	size   uint32
	blocks [15]uint32
}

func (f *Ext2Fs) readBlock(blockNum uint32, buf []byte) Error {
	if blockNum == 0 {
		for i := range buf {
			buf[i] = 0
		}
		return ErrNone
	}
	if err := f.dev.ReadAt(uint64(blockNum)*uint64(f.blockSize), buf); err != nil {
		return ErrDeviceError
	}
	return ErrNone
}

func (f *Ext2Fs) readInode(inum InodeID) (ext2Inode, Error) {
	if inum == 0 || uint32(inum) > f.inodesCount {
		return ext2Inode{}, ErrInvalidInode
	}
	idx := uint32(inum) - 1
	group := idx / f.inodesPerGroup
	local := idx % f.inodesPerGroup
	if int(group) >= len(f.groups) {
		return ext2Inode{}, ErrInvalidInode
	}
	tableBlock := f.groups[group].inodeTableBlock
	off := uint64(tableBlock)*uint64(f.blockSize) + uint64(local)*uint64(f.inodeSize)
	raw := make([]byte, f.inodeSize)
	if err := f.dev.ReadAt(off, raw); err != nil {
		return ext2Inode{}, ErrDeviceError
	}
	var in ext2Inode
	in.mode = binary.LittleEndian.Uint16(raw[0:])
	in.size = binary.LittleEndian.Uint32(raw[4:])
	for i := 0; i < 15; i++ {
		in.blocks[i] = binary.LittleEndian.Uint32(raw[40+i*4:])
	}
	return in, ErrNone
}

func (f *Ext2Fs) Stat(inode InodeID) (Stat, Error) {
	in, e := f.readInode(inode)
	if e != ErrNone {
		return Stat{}, e
	}
	ft := FileRegular
	if in.mode&ext2ModeTypeMask == ext2ModeDir {
		ft = FileDirectory
	}
	return Stat{Type: ft, Size: uint64(in.size), Mode: in.mode &^ ext2ModeTypeMask, Nlink: 1}, ErrNone
}

// blockForIndex resolves the physical block holding data-block index idx,
// supporting direct blocks (0..11) and a single level of indirection
// (12..12+blockSize/4-1).
func (f *Ext2Fs) blockForIndex(in *ext2Inode, idx uint32) (uint32, Error) {
	if idx < ext2DirectBlocks {
		return in.blocks[idx], ErrNone
	}
	indirect := in.blocks[ext2IndirectIndex]
	if indirect == 0 {
		return 0, ErrNone
	}
	ptrsPerBlock := f.blockSize / 4
	rel := idx - ext2DirectBlocks
	if rel >= ptrsPerBlock {
		return 0, ErrDeviceError // double/triple indirect: out of scope
	}
	ptrBlock := make([]byte, f.blockSize)
	if e := f.readBlock(indirect, ptrBlock); e != ErrNone {
		return 0, e
	}
	return binary.LittleEndian.Uint32(ptrBlock[rel*4:]), ErrNone
}

func (f *Ext2Fs) Read(inode InodeID, offset int64, buf []byte) (int, Error) {
	in, e := f.readInode(inode)
	if e != ErrNone {
		return 0, e
	}
	if in.mode&ext2ModeTypeMask != ext2ModeRegular {
		return 0, ErrNotFile
	}
	if offset < 0 || uint64(offset) >= uint64(in.size) {
		return 0, ErrNone
	}
	end := uint64(offset) + uint64(len(buf))
	if end > uint64(in.size) {
		end = uint64(in.size)
	}
	total := 0
	block := make([]byte, f.blockSize)
	for pos := uint64(offset); pos < end; {
		idx := uint32(pos / uint64(f.blockSize))
		blockNum, e := f.blockForIndex(&in, idx)
		if e != ErrNone {
			return total, e
		}
		if e := f.readBlock(blockNum, block); e != ErrNone {
			return total, e
		}
		within := pos % uint64(f.blockSize)
		n := uint64(f.blockSize) - within
		if pos+n > end {
			n = end - pos
		}
		copy(buf[total:], block[within:within+n])
		total += int(n)
		pos += n
	}
	return total, ErrNone
}

func (f *Ext2Fs) Write(InodeID, int64, []byte) (int, Error) { return 0, ErrReadOnly }
func (f *Ext2Fs) Truncate(InodeID, int64) Error              { return ErrReadOnly }
func (f *Ext2Fs) Create(InodeID, string, FileType) (InodeID, Error) { return 0, ErrReadOnly }
func (f *Ext2Fs) Unlink(InodeID, string) Error                { return ErrReadOnly }

// forEachDirEntry walks a directory inode's direct blocks' ext2_dir_entry
// records, calling fn(name, inode) for each in-use entry until fn returns
// false or the directory is exhausted.
func (f *Ext2Fs) forEachDirEntry(inode InodeID, fn func(name string, inode InodeID) bool) Error {
	in, e := f.readInode(inode)
	if e != ErrNone {
		return e
	}
	if in.mode&ext2ModeTypeMask != ext2ModeDir {
		return ErrNotDirectory
	}
	block := make([]byte, f.blockSize)
	for i := 0; i < ext2DirectBlocks; i++ {
		if in.blocks[i] == 0 {
			continue
		}
		if e := f.readBlock(in.blocks[i], block); e != ErrNone {
			return e
		}
		pos := uint32(0)
		for pos < f.blockSize {
			if pos+8 > f.blockSize {
				return ErrDirectoryFormat
			}
			dirInode := binary.LittleEndian.Uint32(block[pos:])
			recLen := binary.LittleEndian.Uint16(block[pos+4:])
			nameLen := block[pos+6]
			if recLen == 0 || pos+uint32(recLen) > f.blockSize {
				return ErrDirectoryFormat
			}
			if dirInode != 0 {
				name := string(block[pos+8 : pos+8+uint32(nameLen)])
				if !fn(name, InodeID(dirInode)) {
					return ErrNone
				}
			}
			pos += uint32(recLen)
		}
	}
	return ErrNone
}

func (f *Ext2Fs) Lookup(parent InodeID, name string) (InodeID, Error) {
	var found InodeID
	e := f.forEachDirEntry(parent, func(entryName string, inode InodeID) bool {
		if entryName == name {
			found = inode
			return false
		}
		return true
	})
	if e != ErrNone {
		return 0, e
	}
	if found == 0 {
		return 0, ErrNotFound
	}
	return found, ErrNone
}

func (f *Ext2Fs) Readdir(inode InodeID, offset int, fn func(name string, inode InodeID, ft FileType) bool) (int, Error) {
	count := 0
	skipped := 0
	e := f.forEachDirEntry(inode, func(name string, child InodeID) bool {
		if skipped < offset {
			skipped++
			return true
		}
		st, e := f.Stat(child)
		if e != ErrNone {
			return true
		}
		count++
		return fn(name, child, st.Type)
	})
	return count, e
}
