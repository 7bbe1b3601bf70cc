package vfs

import (
	"testing"

	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/syscalls"
)

func newTestVFS() *VFS {
	v := New()
	v.Mount("/", NewRamFs())
	return v
}

func TestStatRoot(t *testing.T) {
	v := newTestVFS()
	st, e := v.Stat("/")
	if e != 0 {
		t.Fatalf("Stat(/) failed: %v", e)
	}
	if st.IsDir != 1 {
		t.Fatalf("Stat(/).IsDir = %d, want 1", st.IsDir)
	}
}

func TestOpenWithCreateMakesNewFile(t *testing.T) {
	v := newTestVFS()
	h, e := v.Open("/hello.txt", syscalls.OCreat)
	if e != 0 {
		t.Fatalf("Open(OCreat) failed: %v", e)
	}
	defer h.Close()
	if _, e := h.Write([]byte("hi")); e != 0 {
		t.Fatalf("Write failed: %v", e)
	}
}

func TestOpenMissingFileWithoutCreateFails(t *testing.T) {
	v := newTestVFS()
	if _, e := v.Open("/nope.txt", 0); e != errno.ENOENT {
		t.Fatalf("Open(missing) = %v, want ENOENT", e)
	}
}

func TestMkdirThenListFindsChild(t *testing.T) {
	v := newTestVFS()
	if e := v.Mkdir("/dir"); e != 0 {
		t.Fatalf("Mkdir failed: %v", e)
	}
	h, e := v.Open("/dir/file.txt", syscalls.OCreat)
	if e != 0 {
		t.Fatalf("Open(OCreat) failed: %v", e)
	}
	h.Close()

	names, e := v.List("/dir")
	if e != 0 {
		t.Fatalf("List failed: %v", e)
	}
	found := false
	for _, n := range names {
		if n == "file.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("List(/dir) = %v, want to contain file.txt", names)
	}
}

func TestUnlinkThenOpenFails(t *testing.T) {
	v := newTestVFS()
	h, _ := v.Open("/x.txt", syscalls.OCreat)
	h.Close()
	if e := v.Unlink("/x.txt"); e != 0 {
		t.Fatalf("Unlink failed: %v", e)
	}
	if _, e := v.Open("/x.txt", 0); e != errno.ENOENT {
		t.Fatalf("Open after unlink = %v, want ENOENT", e)
	}
}

func TestOpenDirectoryFlagRejectsRegularFile(t *testing.T) {
	v := newTestVFS()
	h, _ := v.Open("/f.txt", syscalls.OCreat)
	h.Close()
	if _, e := v.Open("/f.txt", syscalls.ODirectory); e != errno.ENOTDIR {
		t.Fatalf("Open(ODirectory) on file = %v, want ENOTDIR", e)
	}
}

func TestSeekEndThenReadReadsNothing(t *testing.T) {
	v := newTestVFS()
	h, _ := v.Open("/seek.txt", syscalls.OCreat)
	defer h.Close()
	h.Write([]byte("0123456789"))
	if _, e := h.Seek(0, 2); e != 0 {
		t.Fatalf("Seek(END) failed: %v", e)
	}
	buf := make([]byte, 4)
	n, e := h.Read(buf)
	if e != 0 || n != 0 {
		t.Fatalf("Read after seek-to-end = (%d, %v), want (0, nil)", n, e)
	}
}

func TestSecondMountWithLongerPrefixTakesPriority(t *testing.T) {
	v := New()
	root := NewRamFs()
	sub := NewRamFs()
	v.Mount("/", root)
	v.Mount("/disk", sub)

	sub.Create(sub.RootInode(), "only-on-disk", FileRegular)
	if _, _, e := v.resolve("/disk/only-on-disk"); e != ErrNone {
		t.Fatalf("resolve(/disk/only-on-disk) = %v, want ErrNone", e)
	}
	if _, _, e := v.resolve("/only-on-disk"); e != ErrNotFound {
		t.Fatalf("resolve(/only-on-disk) = %v, want ErrNotFound", e)
	}
}

func TestReadsAdvanceHandleOffset(t *testing.T) {
	v := newTestVFS()
	h, _ := v.Open("/shared.txt", syscalls.OCreat)
	defer h.Close()
	h.Write([]byte("0123456789"))
	ih := h.(*inodeHandle)
	ih.Seek(0, 0)

	buf := make([]byte, 4)
	n1, _ := h.Read(buf)
	n2, _ := h.Read(buf)
	if n1 != 4 || n2 != 4 {
		t.Fatalf("reads = (%d, %d), want (4, 4) since offset advances across calls", n1, n2)
	}
}
