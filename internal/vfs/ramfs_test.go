package vfs

import "testing"

func TestRamFsRootIsADirectory(t *testing.T) {
	f := NewRamFs()
	st, e := f.Stat(f.RootInode())
	if e != ErrNone {
		t.Fatalf("Stat(root) failed: %v", e)
	}
	if st.Type != FileDirectory {
		t.Fatalf("root type = %v, want FileDirectory", st.Type)
	}
}

func TestRamFsCreateLookupRoundTrip(t *testing.T) {
	f := NewRamFs()
	id, e := f.Create(f.RootInode(), "hello.txt", FileRegular)
	if e != ErrNone {
		t.Fatalf("Create failed: %v", e)
	}
	got, e := f.Lookup(f.RootInode(), "hello.txt")
	if e != ErrNone || got != id {
		t.Fatalf("Lookup = (%v, %v), want (%v, nil)", got, e, id)
	}
}

func TestRamFsCreateDuplicateNameFails(t *testing.T) {
	f := NewRamFs()
	if _, e := f.Create(f.RootInode(), "dup", FileRegular); e != ErrNone {
		t.Fatalf("first Create failed: %v", e)
	}
	if _, e := f.Create(f.RootInode(), "dup", FileRegular); e != ErrAlreadyExists {
		t.Fatalf("second Create = %v, want ErrAlreadyExists", e)
	}
}

func TestRamFsWriteThenReadRoundTrips(t *testing.T) {
	f := NewRamFs()
	id, _ := f.Create(f.RootInode(), "data", FileRegular)
	content := []byte("hello ramfs")
	n, e := f.Write(id, 0, content)
	if e != ErrNone || n != len(content) {
		t.Fatalf("Write = (%d, %v), want (%d, nil)", n, e, len(content))
	}
	buf := make([]byte, 32)
	n, e = f.Read(id, 0, buf)
	if e != ErrNone || string(buf[:n]) != "hello ramfs" {
		t.Fatalf("Read = (%d, %q), want %q", n, buf[:n], content)
	}
}

func TestRamFsReadDirectoryFails(t *testing.T) {
	f := NewRamFs()
	if _, e := f.Read(f.RootInode(), 0, make([]byte, 8)); e != ErrIsDirectory {
		t.Fatalf("Read(root) = %v, want ErrIsDirectory", e)
	}
}

func TestRamFsUnlinkRemovesEntry(t *testing.T) {
	f := NewRamFs()
	f.Create(f.RootInode(), "gone", FileRegular)
	if e := f.Unlink(f.RootInode(), "gone"); e != ErrNone {
		t.Fatalf("Unlink failed: %v", e)
	}
	if _, e := f.Lookup(f.RootInode(), "gone"); e != ErrNotFound {
		t.Fatalf("Lookup after unlink = %v, want ErrNotFound", e)
	}
}

func TestRamFsUnlinkNonEmptyDirectoryFails(t *testing.T) {
	f := NewRamFs()
	dir, _ := f.Create(f.RootInode(), "sub", FileDirectory)
	f.Create(dir, "child", FileRegular)
	if e := f.Unlink(f.RootInode(), "sub"); e != ErrNotEmpty {
		t.Fatalf("Unlink(non-empty dir) = %v, want ErrNotEmpty", e)
	}
}

func TestRamFsReaddirListsEntries(t *testing.T) {
	f := NewRamFs()
	f.Create(f.RootInode(), "a", FileRegular)
	f.Create(f.RootInode(), "b", FileRegular)
	var names []string
	f.Readdir(f.RootInode(), 0, func(name string, _ InodeID, _ FileType) bool {
		names = append(names, name)
		return true
	})
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found["a"] || !found["b"] {
		t.Fatalf("Readdir = %v, want to contain a and b", names)
	}
}

func TestRamFsWriteBeyondMaxFileSizeFails(t *testing.T) {
	f := NewRamFs()
	id, _ := f.Create(f.RootInode(), "big", FileRegular)
	if _, e := f.Write(id, int64(ramMaxFileSize), []byte("x")); e != ErrNoSpace {
		t.Fatalf("Write past max = %v, want ErrNoSpace", e)
	}
}
