package vfs

import "github.com/sloplabs/slopos/internal/ksync"

// RamFs is an in-RAM Backend: a bounded inode table and bounded per-inode
// data/dir-entry arrays, the same fixed-capacity shape as the original
// ramfs (MAX_INODES/RAMFS_MAX_FILE_SIZE/MAX_DIR_ENTRIES), just expressed
// over Go slices instead of const-generic arrays.
type RamFs struct {
	mu ksync.IrqMutex[ramState]
}

const (
	ramMaxInodes      = 256
	ramMaxFileSize    = 65536
	ramMaxDirEntries  = 64
	ramRootInode      = InodeID(1)
)

type ramDirEntry struct {
	name  string
	inode InodeID
}

type ramInode struct {
	inUse   bool
	ftype   FileType
	data    []byte
	entries []ramDirEntry
	parent  InodeID
	mode    uint16
	nlink   uint32
}

type ramState struct {
	inodes []ramInode // index 0 unused; inode IDs are 1-based
	next   InodeID
}

func NewRamFs() *RamFs {
	s := ramState{inodes: make([]ramInode, ramMaxInodes), next: ramRootInode + 1}
	root := &s.inodes[ramRootInode]
	root.inUse = true
	root.ftype = FileDirectory
	root.mode = 0o755
	root.nlink = 2
	root.parent = ramRootInode
	root.entries = append(root.entries, ramDirEntry{".", ramRootInode}, ramDirEntry{"..", ramRootInode})
	return &RamFs{mu: *ksync.NewIrqMutex(s)}
}

func (f *RamFs) Name() string       { return "ramfs" }
func (f *RamFs) RootInode() InodeID { return ramRootInode }

func (s *ramState) get(id InodeID) (*ramInode, Error) {
	if id == 0 || int(id) >= len(s.inodes) || !s.inodes[id].inUse {
		return nil, ErrNotFound
	}
	return &s.inodes[id], ErrNone
}

func (n *ramInode) lookup(name string) (InodeID, Error) {
	for _, e := range n.entries {
		if e.name == name {
			return e.inode, ErrNone
		}
	}
	return 0, ErrNotFound
}

func (n *ramInode) addEntry(name string, inode InodeID) Error {
	if len(n.entries) >= ramMaxDirEntries {
		return ErrNoSpace
	}
	if _, e := n.lookup(name); e == ErrNone {
		return ErrAlreadyExists
	}
	n.entries = append(n.entries, ramDirEntry{name, inode})
	return ErrNone
}

func (n *ramInode) removeEntry(name string) (InodeID, Error) {
	for i, e := range n.entries {
		if e.name == name {
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
			return e.inode, ErrNone
		}
	}
	return 0, ErrNotFound
}

func (s *ramState) alloc() (InodeID, Error) {
	for i := 0; i < len(s.inodes); i++ {
		id := s.next
		if int(s.next) >= len(s.inodes)-1 {
			s.next = ramRootInode + 1
		} else {
			s.next++
		}
		if int(id) < len(s.inodes) && !s.inodes[id].inUse {
			return id, ErrNone
		}
	}
	return 0, ErrNoSpace
}

func (f *RamFs) Lookup(parent InodeID, name string) (InodeID, Error) {
	g := f.mu.Lock()
	defer g.Unlock()
	s := g.Get()
	p, e := s.get(parent)
	if e != ErrNone {
		return 0, e
	}
	if p.ftype != FileDirectory {
		return 0, ErrNotDirectory
	}
	return p.lookup(name)
}

func (f *RamFs) Stat(inode InodeID) (Stat, Error) {
	g := f.mu.Lock()
	defer g.Unlock()
	n, e := g.Get().get(inode)
	if e != ErrNone {
		return Stat{}, e
	}
	return Stat{Type: n.ftype, Size: uint64(len(n.data)), Mode: n.mode, Nlink: n.nlink}, ErrNone
}

func (f *RamFs) Read(inode InodeID, offset int64, buf []byte) (int, Error) {
	g := f.mu.Lock()
	defer g.Unlock()
	n, e := g.Get().get(inode)
	if e != ErrNone {
		return 0, e
	}
	if n.ftype == FileDirectory {
		return 0, ErrIsDirectory
	}
	if offset < 0 || int(offset) >= len(n.data) {
		return 0, ErrNone
	}
	c := copy(buf, n.data[offset:])
	return c, ErrNone
}

func (f *RamFs) Write(inode InodeID, offset int64, buf []byte) (int, Error) {
	g := f.mu.Lock()
	defer g.Unlock()
	n, e := g.Get().get(inode)
	if e != ErrNone {
		return 0, e
	}
	if n.ftype == FileDirectory {
		return 0, ErrIsDirectory
	}
	end := int(offset) + len(buf)
	if end > ramMaxFileSize {
		return 0, ErrNoSpace
	}
	if end > len(n.data) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[offset:end], buf)
	return len(buf), ErrNone
}

func (f *RamFs) Create(parent InodeID, name string, ft FileType) (InodeID, Error) {
	g := f.mu.Lock()
	defer g.Unlock()
	s := g.Get()
	p, e := s.get(parent)
	if e != ErrNone {
		return 0, e
	}
	if p.ftype != FileDirectory {
		return 0, ErrNotDirectory
	}
	if _, e := p.lookup(name); e == ErrNone {
		return 0, ErrAlreadyExists
	}
	id, e := s.alloc()
	if e != ErrNone {
		return 0, e
	}
	n := &s.inodes[id]
	*n = ramInode{inUse: true, ftype: ft, parent: parent}
	if ft == FileDirectory {
		n.mode = 0o755
		n.nlink = 2
		n.entries = append(n.entries, ramDirEntry{".", id}, ramDirEntry{"..", parent})
	} else {
		n.mode = 0o644
		n.nlink = 1
	}
	if e := s.inodes[parent].addEntry(name, id); e != ErrNone {
		s.inodes[id] = ramInode{}
		return 0, e
	}
	if ft == FileDirectory {
		s.inodes[parent].nlink++
	}
	return id, ErrNone
}

func (f *RamFs) Unlink(parent InodeID, name string) Error {
	g := f.mu.Lock()
	defer g.Unlock()
	s := g.Get()
	p, e := s.get(parent)
	if e != ErrNone {
		return e
	}
	if p.ftype != FileDirectory {
		return ErrNotDirectory
	}
	id, e := p.lookup(name)
	if e != ErrNone {
		return e
	}
	target, e := s.get(id)
	if e != ErrNone {
		return e
	}
	if target.ftype == FileDirectory && len(target.entries) > 2 {
		return ErrNotEmpty
	}
	isDir := target.ftype == FileDirectory
	if _, e := p.removeEntry(name); e != ErrNone {
		return e
	}
	if isDir {
		p.nlink--
	}
	s.inodes[id] = ramInode{}
	return ErrNone
}

func (f *RamFs) Readdir(inode InodeID, offset int, fn func(name string, inode InodeID, ft FileType) bool) (int, Error) {
	g := f.mu.Lock()
	defer g.Unlock()
	s := g.Get()
	n, e := s.get(inode)
	if e != ErrNone {
		return 0, e
	}
	if n.ftype != FileDirectory {
		return 0, ErrNotDirectory
	}
	count := 0
	for i := offset; i < len(n.entries); i++ {
		entry := n.entries[i]
		target, e := s.get(entry.inode)
		if e != ErrNone {
			continue
		}
		if !fn(entry.name, entry.inode, target.ftype) {
			break
		}
		count++
	}
	return count, ErrNone
}

func (f *RamFs) Truncate(inode InodeID, size int64) Error {
	g := f.mu.Lock()
	defer g.Unlock()
	n, e := g.Get().get(inode)
	if e != ErrNone {
		return e
	}
	if n.ftype == FileDirectory {
		return ErrIsDirectory
	}
	newSize := int(size)
	if newSize > ramMaxFileSize {
		newSize = ramMaxFileSize
	}
	if newSize <= len(n.data) {
		n.data = n.data[:newSize]
	} else {
		grown := make([]byte, newSize)
		copy(grown, n.data)
		n.data = grown
	}
	return ErrNone
}
