// Package vfs is the VFS core: a path-level mount table over one or more
// Backends (ramfs always, ext2 when a block device is present), inode
// handles bound into fd-table entries, and the Error-to-errno mapping at
// the syscall boundary. It implements internal/syscalls.FileSystem so the
// syscall layer never imports vfs directly — RegisterFileSystem is the only
// point of contact, the same dependency-inversion shape internal/drivers/tty
// uses for Console.
package vfs

import (
	"sort"
	"strings"

	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/ksync"
	"github.com/sloplabs/slopos/internal/syscalls"
)

// InodeID identifies an inode within a single Backend; it is not unique
// across backends, so every reference to one is always paired with the
// Backend that issued it.
type InodeID uint32

// FileType is the handful of kinds this VFS models; ramfs can produce
// either, ext2's read-only adapter only Regular and Directory.
type FileType int

const (
	FileRegular FileType = iota
	FileDirectory
)

// Error is the VFS's own result enum; syscalls maps it onto errno at the
// boundary rather than vfs depending on errno's exact numbering for
// anything but that one conversion.
type Error int

const (
	ErrNone Error = iota
	ErrNotFound
	ErrNotDirectory
	ErrIsDirectory
	ErrAlreadyExists
	ErrNotEmpty
	ErrNoSpace
	ErrReadOnly
	ErrInvalidPath
	ErrInvalidSuperblock
	ErrUnsupportedBlockSize
	ErrDirectoryFormat
	ErrInvalidInode
	ErrNotFile
	ErrDeviceError
)

// toErrno maps Error onto the errno taxonomy from §7. The taxonomy has no
// ENOSPC or EROFS, so NoSpace lands on ENOMEM and ReadOnly on EACCES —
// the closest budgeted fits, same kind of gap as internal/syscalls' mapping
// of internal/net's refused-connection error onto EDESTADDRREQ. The ext2 format/device errors
// (corrupt superblock, bad directory record, device I/O failure) all
// surface as EINVAL: userland has no way to distinguish "bad path" from
// "bad filesystem" and doesn't need to.
func (e Error) toErrno() errno.Errno {
	switch e {
	case ErrNone:
		return 0
	case ErrNotFound:
		return errno.ENOENT
	case ErrNotDirectory:
		return errno.ENOTDIR
	case ErrIsDirectory, ErrNotFile:
		return errno.EISDIR
	case ErrAlreadyExists:
		return errno.EEXIST
	case ErrNotEmpty:
		return errno.ENOTEMPTY
	case ErrNoSpace:
		return errno.ENOMEM
	case ErrReadOnly:
		return errno.EACCES
	default:
		return errno.EINVAL
	}
}

// Stat is what a Backend reports about one inode.
type Stat struct {
	Type  FileType
	Size  uint64
	Mode  uint16
	Nlink uint32
}

// Backend is one mounted filesystem's implementation: ramfs and the ext2
// adapter both satisfy it. Paths never reach a Backend — only inode IDs
// relative to its own RootInode — path walking lives in VFS.
type Backend interface {
	Name() string
	RootInode() InodeID
	Lookup(parent InodeID, name string) (InodeID, Error)
	Stat(inode InodeID) (Stat, Error)
	Read(inode InodeID, offset int64, buf []byte) (int, Error)
	Write(inode InodeID, offset int64, buf []byte) (int, Error)
	Create(parent InodeID, name string, ft FileType) (InodeID, Error)
	Unlink(parent InodeID, name string) Error
	Readdir(inode InodeID, offset int, fn func(name string, inode InodeID, ft FileType) bool) (int, Error)
	Truncate(inode InodeID, size int64) Error
}

type mountPoint struct {
	path    string // cleaned: "/" or no trailing slash
	backend Backend
}

// VFS is the mount table; the boot orchestrator builds one, mounts ramfs at
// "/" (always) and the ext2 adapter at a subpath when virtio-blk probed a
// disk, then calls RegisterFileSystem(v).
//
// Mount points are not transparently visible in their parent directory's
// listing (readdir on "/" won't show "disk" as an entry unless ramfs itself
// has one) — a real union mount view is more machinery than this VFS needs
// for a kernel with one disk and one init process that already knows its
// own mount paths.
type VFS struct {
	mu ksync.IrqMutex[[]mountPoint]
}

func New() *VFS {
	return &VFS{mu: *ksync.NewIrqMutex([]mountPoint(nil))}
}

func cleanMountPath(p string) string {
	if p == "/" || p == "" {
		return "/"
	}
	return "/" + strings.Trim(p, "/")
}

// Mount adds a backend at path, re-sorting so the longest matching prefix
// is always tried first (so "/disk" shadows "/"'s own idea of what lives
// there).
func (v *VFS) Mount(path string, b Backend) {
	g := v.mu.Lock()
	defer g.Unlock()
	mounts := append(*g.Get(), mountPoint{path: cleanMountPath(path), backend: b})
	sort.Slice(mounts, func(i, j int) bool { return len(mounts[i].path) > len(mounts[j].path) })
	*g.Get() = mounts
}

func splitComponents(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// backendFor finds the longest mounted prefix of path and returns the
// backend plus the path components still to walk within it.
func (v *VFS) backendFor(path string) (Backend, []string, Error) {
	if !strings.HasPrefix(path, "/") {
		return nil, nil, ErrInvalidPath
	}
	g := v.mu.Lock()
	mounts := *g.Get()
	g.Unlock()
	for _, m := range mounts {
		if m.path == "/" {
			continue // tried last, as the fallback
		}
		if path == m.path || strings.HasPrefix(path, m.path+"/") {
			return m.backend, splitComponents(strings.TrimPrefix(path, m.path)), ErrNone
		}
	}
	for _, m := range mounts {
		if m.path == "/" {
			return m.backend, splitComponents(path), ErrNone
		}
	}
	return nil, nil, ErrInvalidPath
}

// resolve walks path to its inode, failing with NotFound/NotDirectory on
// the way if an intermediate component isn't a directory.
func (v *VFS) resolve(path string) (Backend, InodeID, Error) {
	b, comps, e := v.backendFor(path)
	if e != ErrNone {
		return nil, 0, e
	}
	cur := b.RootInode()
	for _, c := range comps {
		next, e := b.Lookup(cur, c)
		if e != ErrNone {
			return nil, 0, e
		}
		cur = next
	}
	return b, cur, ErrNone
}

// resolveParent splits path into its parent directory's inode and the
// final component's name, for Create/Unlink.
func (v *VFS) resolveParent(path string) (Backend, InodeID, string, Error) {
	b, comps, e := v.backendFor(path)
	if e != ErrNone {
		return nil, 0, "", e
	}
	if len(comps) == 0 {
		return nil, 0, "", ErrInvalidPath
	}
	cur := b.RootInode()
	for _, c := range comps[:len(comps)-1] {
		next, e := b.Lookup(cur, c)
		if e != ErrNone {
			return nil, 0, "", e
		}
		cur = next
	}
	return b, cur, comps[len(comps)-1], ErrNone
}

func toStat(s Stat) syscalls.Stat {
	var isDir uint32
	if s.Type == FileDirectory {
		isDir = 1
	}
	return syscalls.Stat{Size: s.Size, Mode: uint32(s.Mode), IsDir: isDir}
}

// inodeHandle is the FileHandle behind an open fd: a backend, an inode, and
// an independent read/write offset. dup'd fds share the same *inodeHandle
// (and so its offset), matching POSIX dup semantics.
type inodeHandle struct {
	backend    Backend
	inode      InodeID
	mu         ksync.IrqMutex[int64]
	appendMode bool
}

func (h *inodeHandle) Read(buf []byte) (int, errno.Errno) {
	g := h.mu.Lock()
	off := *g.Get()
	n, e := h.backend.Read(h.inode, off, buf)
	if e == ErrNone {
		*g.Get() = off + int64(n)
	}
	g.Unlock()
	if e != ErrNone {
		return 0, e.toErrno()
	}
	return n, 0
}

func (h *inodeHandle) Write(buf []byte) (int, errno.Errno) {
	g := h.mu.Lock()
	off := *g.Get()
	if h.appendMode {
		if st, e := h.backend.Stat(h.inode); e == ErrNone {
			off = int64(st.Size)
		}
	}
	n, e := h.backend.Write(h.inode, off, buf)
	if e == ErrNone {
		*g.Get() = off + int64(n)
	}
	g.Unlock()
	if e != ErrNone {
		return 0, e.toErrno()
	}
	return n, 0
}

func (h *inodeHandle) Seek(offset int64, whence int) (int64, errno.Errno) {
	st, e := h.backend.Stat(h.inode)
	if e != ErrNone {
		return 0, e.toErrno()
	}
	g := h.mu.Lock()
	defer g.Unlock()
	var base int64
	switch whence {
	case 0: // SEEK_SET
		base = 0
	case 1: // SEEK_CUR
		base = *g.Get()
	case 2: // SEEK_END
		base = int64(st.Size)
	default:
		return 0, errno.EINVAL
	}
	next := base + offset
	if next < 0 {
		return 0, errno.EINVAL
	}
	*g.Get() = next
	return next, 0
}

func (h *inodeHandle) Stat() (syscalls.Stat, errno.Errno) {
	st, e := h.backend.Stat(h.inode)
	if e != ErrNone {
		return syscalls.Stat{}, e.toErrno()
	}
	return toStat(st), 0
}

func (h *inodeHandle) Close() {}

// Open implements internal/syscalls.FileSystem.
func (v *VFS) Open(path string, flags uint32) (syscalls.FileHandle, errno.Errno) {
	b, inode, e := v.resolve(path)
	if e == ErrNotFound && flags&syscalls.OCreat != 0 {
		pb, parent, name, pe := v.resolveParent(path)
		if pe != ErrNone {
			return nil, pe.toErrno()
		}
		newInode, ce := pb.Create(parent, name, FileRegular)
		if ce != ErrNone {
			return nil, ce.toErrno()
		}
		b, inode, e = pb, newInode, ErrNone
	}
	if e != ErrNone {
		return nil, e.toErrno()
	}
	st, e := b.Stat(inode)
	if e != ErrNone {
		return nil, e.toErrno()
	}
	if flags&syscalls.ODirectory != 0 && st.Type != FileDirectory {
		return nil, errno.ENOTDIR
	}
	if flags&syscalls.OTrunc != 0 {
		if e := b.Truncate(inode, 0); e != ErrNone {
			return nil, e.toErrno()
		}
	}
	h := &inodeHandle{backend: b, inode: inode, mu: *ksync.NewIrqMutex(int64(0)), appendMode: flags&syscalls.OAppend != 0}
	return h, 0
}

// Stat implements internal/syscalls.FileSystem.
func (v *VFS) Stat(path string) (syscalls.Stat, errno.Errno) {
	b, inode, e := v.resolve(path)
	if e != ErrNone {
		return syscalls.Stat{}, e.toErrno()
	}
	st, e := b.Stat(inode)
	if e != ErrNone {
		return syscalls.Stat{}, e.toErrno()
	}
	return toStat(st), 0
}

// Mkdir implements internal/syscalls.FileSystem.
func (v *VFS) Mkdir(path string) errno.Errno {
	b, parent, name, e := v.resolveParent(path)
	if e != ErrNone {
		return e.toErrno()
	}
	if _, e := b.Create(parent, name, FileDirectory); e != ErrNone {
		return e.toErrno()
	}
	return 0
}

// Unlink implements internal/syscalls.FileSystem.
func (v *VFS) Unlink(path string) errno.Errno {
	b, parent, name, e := v.resolveParent(path)
	if e != ErrNone {
		return e.toErrno()
	}
	if e := b.Unlink(parent, name); e != ErrNone {
		return e.toErrno()
	}
	return 0
}

// List implements internal/syscalls.FileSystem.
func (v *VFS) List(path string) ([]string, errno.Errno) {
	b, inode, e := v.resolve(path)
	if e != ErrNone {
		return nil, e.toErrno()
	}
	var names []string
	_, e = b.Readdir(inode, 0, func(name string, _ InodeID, _ FileType) bool {
		names = append(names, name)
		return true
	})
	if e != ErrNone {
		return nil, e.toErrno()
	}
	return names, 0
}

// RegisterAsFileSystem installs v as the syscall layer's VFS backing,
// exactly like internal/drivers/tty's Console registration.
func (v *VFS) RegisterAsFileSystem() {
	syscalls.RegisterFileSystem(v)
}
