package vfs

import "testing"

const ext2BlockSize = 1024

func putLE32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

func putLE16(b []byte, off int, v uint16) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

// buildExt2Image constructs the same minimal single-group ext2 image shape
// the original fs crate's tests build: superblock in block 1, one group
// descriptor in block 2, an inode table starting at block 5 (root inode #2
// at table index 1, an optional regular file inode #3 at index 2), and a root
// directory block at block 6. When fileName is non-empty, the root
// directory's block also gets a "." / ".." / fileName entry triple.
func buildExt2Image(blocks, inodes uint32, fileName string, fileData []byte, fileBlock uint32) *MemoryBlockDevice {
	const inodeSize = 128
	dev := NewMemoryBlockDevice(int(blocks) * ext2BlockSize)
	raw := make([]byte, ext2BlockSize)

	putLE32(raw, 0, inodes)
	putLE32(raw, 4, blocks)
	putLE32(raw, 20, 1) // first_data_block
	putLE32(raw, 24, 0) // log_block_size => 1024
	putLE32(raw, 32, blocks)
	putLE32(raw, 40, inodes)
	putLE16(raw, 56, ext2Magic)
	putLE16(raw, 88, inodeSize)
	dev.WriteAt(ext2SuperblockOffset, raw)

	desc := make([]byte, ext2GroupDescSize)
	putLE32(desc, 8, 5) // inode table at block 5
	dev.WriteAt(2*ext2BlockSize, desc)

	rootOff := inodeSize // inode N lives at table index N-1
	rootRaw := make([]byte, inodeSize)
	putLE16(rootRaw, 0, ext2ModeDir)
	putLE32(rootRaw, 4, ext2BlockSize)
	putLE32(rootRaw, 40, 6) // root dir data at block 6
	dev.WriteAt(uint64(5*ext2BlockSize+rootOff), rootRaw)

	dirBlock := make([]byte, ext2BlockSize)
	writeDirEntry := func(off int, inode uint32, recLen uint16, name string, fileType byte) {
		putLE32(dirBlock, off, inode)
		putLE16(dirBlock, off+4, recLen)
		dirBlock[off+6] = byte(len(name))
		dirBlock[off+7] = fileType
		copy(dirBlock[off+8:], name)
	}
	if fileName != "" {
		fileInodeOff := 2 * inodeSize
		fileRaw := make([]byte, inodeSize)
		putLE16(fileRaw, 0, ext2ModeRegular)
		putLE32(fileRaw, 4, uint32(len(fileData)))
		putLE32(fileRaw, 40, fileBlock)
		dev.WriteAt(uint64(5*ext2BlockSize+fileInodeOff), fileRaw)

		if int(fileBlock) < int(blocks) {
			dataBlock := make([]byte, ext2BlockSize)
			copy(dataBlock, fileData)
			dev.WriteAt(uint64(fileBlock)*ext2BlockSize, dataBlock)
		}

		used := 8 + (len(fileName)+3)&^3
		writeDirEntry(0, 2, 12, ".", 2)
		writeDirEntry(12, 2, 12, "..", 2)
		writeDirEntry(24, 3, uint16(used), fileName, 1)
		writeDirEntry(24+used, 0, uint16(ext2BlockSize-24-used), "", 0)
	} else {
		writeDirEntry(0, 2, 12, ".", 2)
		writeDirEntry(12, 2, uint16(ext2BlockSize-12), "..", 2)
	}
	dev.WriteAt(6*ext2BlockSize, dirBlock)

	return dev
}

func TestExt2OpenRejectsBadMagic(t *testing.T) {
	dev := buildExt2Image(64, 32, "", nil, 0)
	raw := make([]byte, ext2SuperblockSize)
	dev.ReadAt(ext2SuperblockOffset, raw)
	putLE16(raw, 56, 0)
	dev.WriteAt(ext2SuperblockOffset, raw)

	if _, e := OpenExt2(dev); e != ErrInvalidSuperblock {
		t.Fatalf("OpenExt2(bad magic) = %v, want ErrInvalidSuperblock", e)
	}
}

func TestExt2OpenRejectsUnsupportedBlockSize(t *testing.T) {
	dev := buildExt2Image(64, 32, "", nil, 0)
	raw := make([]byte, ext2SuperblockSize)
	dev.ReadAt(ext2SuperblockOffset, raw)
	putLE32(raw, 24, 1)
	dev.WriteAt(ext2SuperblockOffset, raw)

	if _, e := OpenExt2(dev); e != ErrUnsupportedBlockSize {
		t.Fatalf("OpenExt2(log_block_size=1) = %v, want ErrUnsupportedBlockSize", e)
	}
}

func TestExt2DirectoryFormatErrorOnZeroRecLen(t *testing.T) {
	dev := buildExt2Image(64, 32, "", nil, 0)
	dirBlock := make([]byte, ext2BlockSize)
	dev.ReadAt(6*ext2BlockSize, dirBlock)
	putLE16(dirBlock, 4, 0)
	dev.WriteAt(6*ext2BlockSize, dirBlock)

	fs, e := OpenExt2(dev)
	if e != ErrNone {
		t.Fatalf("OpenExt2 failed: %v", e)
	}
	if e := fs.forEachDirEntry(ext2RootInode, func(string, InodeID) bool { return true }); e != ErrDirectoryFormat {
		t.Fatalf("forEachDirEntry = %v, want ErrDirectoryFormat", e)
	}
}

func TestExt2ReadInodeOutOfRangeFails(t *testing.T) {
	dev := buildExt2Image(64, 32, "", nil, 0)
	fs, e := OpenExt2(dev)
	if e != ErrNone {
		t.Fatalf("OpenExt2 failed: %v", e)
	}
	if _, e := fs.readInode(9999); e != ErrInvalidInode {
		t.Fatalf("readInode(9999) = %v, want ErrInvalidInode", e)
	}
}

func TestExt2ReadOnDirectoryFails(t *testing.T) {
	dev := buildExt2Image(64, 32, "", nil, 0)
	fs, e := OpenExt2(dev)
	if e != ErrNone {
		t.Fatalf("OpenExt2 failed: %v", e)
	}
	if _, e := fs.Read(ext2RootInode, 0, make([]byte, 32)); e != ErrNotFile {
		t.Fatalf("Read(root) = %v, want ErrNotFile", e)
	}
}

type failingBlockDevice struct{ capacity uint64 }

func (d failingBlockDevice) ReadAt(uint64, []byte) error  { return errBlockDeviceRange }
func (d failingBlockDevice) WriteAt(uint64, []byte) error { return errBlockDeviceRange }
func (d failingBlockDevice) Capacity() uint64              { return d.capacity }

func TestExt2OpenPropagatesDeviceReadError(t *testing.T) {
	if _, e := OpenExt2(failingBlockDevice{capacity: 4096}); e != ErrDeviceError {
		t.Fatalf("OpenExt2(failing device) = %v, want ErrDeviceError", e)
	}
}

func TestExt2LookupAndReadFileRoundTrip(t *testing.T) {
	content := []byte("hello ext2")
	dev := buildExt2Image(64, 32, "hello.txt", content, 7)
	fs, e := OpenExt2(dev)
	if e != ErrNone {
		t.Fatalf("OpenExt2 failed: %v", e)
	}
	inode, e := fs.Lookup(ext2RootInode, "hello.txt")
	if e != ErrNone {
		t.Fatalf("Lookup failed: %v", e)
	}
	buf := make([]byte, 32)
	n, e := fs.Read(inode, 0, buf)
	if e != ErrNone || string(buf[:n]) != string(content) {
		t.Fatalf("Read = (%q, %v), want (%q, nil)", buf[:n], e, content)
	}
}

func TestExt2WriteIsReadOnly(t *testing.T) {
	dev := buildExt2Image(64, 32, "", nil, 0)
	fs, _ := OpenExt2(dev)
	if _, e := fs.Write(ext2RootInode, 0, []byte("x")); e != ErrReadOnly {
		t.Fatalf("Write = %v, want ErrReadOnly", e)
	}
}
