package vfs

// Init builds the standard mount table: ramfs at "/", and when disk is
// non-nil an ext2 adapter mounted at "/disk" backed by it. It registers the
// result as the syscall layer's filesystem and returns it so the boot
// orchestrator can report ext2 mount failure (a corrupt or absent disk
// image isn't fatal — root stays ramfs-backed either way).
func Init(disk BlockDevice) (*VFS, Error) {
	v := New()
	v.Mount("/", NewRamFs())

	var mountErr Error = ErrNone
	if disk != nil {
		ext2, e := OpenExt2(disk)
		if e != ErrNone {
			mountErr = e
		} else {
			v.Mount("/disk", ext2)
		}
	}
	v.RegisterAsFileSystem()
	return v, mountErr
}
