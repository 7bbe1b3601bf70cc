package syscalls

import "github.com/sloplabs/slopos/internal/errno"

// Stat is the fixed-layout struct fs_stat/fstat copy out; a small subset of
// struct stat, enough for the shell's ls/cat to work.
type Stat struct {
	Size    uint64
	Mode    uint32
	IsDir   uint32
	MTimeMs uint64
}

// FileHandle is an open file description: the table underneath a process's
// fd table entry. internal/vfs implements this for its inode handles.
type FileHandle interface {
	Read(buf []byte) (int, errno.Errno)
	Write(buf []byte) (int, errno.Errno)
	Seek(offset int64, whence int) (int64, errno.Errno)
	Stat() (Stat, errno.Errno)
	Close()
}

// OpenFlags mirrors the handful of O_* bits this kernel's fs_open cares
// about.
const (
	OCreat    = 1 << 0
	OTrunc    = 1 << 1
	OAppend   = 1 << 2
	OWrOnly   = 1 << 3
	ORdWr     = 1 << 4
	ODirectory = 1 << 5
)

// FileSystem is the path-level hook internal/vfs registers: mount table,
// inode resolution, ramfs/ext2 backing all live there. syscalls never
// imports vfs directly (vfs maps its own Error enum onto errno at this same
// boundary, and depending on vfs's types here would invert that).
type FileSystem interface {
	Open(path string, flags uint32) (FileHandle, errno.Errno)
	Stat(path string) (Stat, errno.Errno)
	Mkdir(path string) errno.Errno
	Unlink(path string) errno.Errno
	List(path string) ([]string, errno.Errno)
}

var fs FileSystem

// RegisterFileSystem installs the VFS backing the Files syscall family.
func RegisterFileSystem(f FileSystem) { fs = f }
