package syscalls

import (
	"github.com/sloplabs/slopos/internal/errno"
)

func init() {
	register(SysFsOpen, "fs_open", handleFsOpen)
	register(SysFsClose, "fs_close", handleFsClose)
	register(SysFsRead, "fs_read", handleFsRead)
	register(SysFsWrite, "fs_write", handleFsWrite)
	register(SysFsStat, "fs_stat", handleFsStat)
	register(SysFsMkdir, "fs_mkdir", handleFsMkdir)
	register(SysFsUnlink, "fs_unlink", handleFsUnlink)
	register(SysFsList, "fs_list", handleFsList)
	register(SysDup, "dup", handleDup)
	register(SysDup2, "dup2", handleDup2)
	register(SysDup3, "dup3", handleDup3)
	register(SysFcntl, "fcntl", handleFcntl)
	register(SysLseek, "lseek", handleLseek)
	register(SysFstat, "fstat", handleFstat)
	register(SysIoctl, "ioctl", handleIoctl)
}

func handleFsOpen(ctx *Context) (Disposition, uint64) {
	if fs == nil {
		return fail(errno.ENOSYS)
	}
	path, e := readUserCString(ctx.Task, uintptr(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	flags := uint32(ctx.Args[1])
	h, e := fs.Open(path, flags)
	if e != 0 {
		return fail(e)
	}
	fd, e := installFd(ctx.Task.ID, h)
	if e != 0 {
		h.Close()
		return fail(e)
	}
	return ok(uint64(fd))
}

func handleFsClose(ctx *Context) (Disposition, uint64) {
	if e := closeFd(ctx.Task.ID, int(ctx.Args[0])); e != 0 {
		return fail(e)
	}
	return ok(0)
}

func handleFsRead(ctx *Context) (Disposition, uint64) {
	h, e := lookupFd(ctx.Task.ID, int(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	p, e := TryNewUserPtr(uintptr(ctx.Args[1]))
	if e != 0 {
		return fail(e)
	}
	n := int(ctx.Args[2])
	buf := make([]byte, n)
	got, e := h.Read(buf)
	if e != 0 {
		return fail(e)
	}
	if e := CopyToUser(ctx.Task, p, buf[:got]); e != 0 {
		return fail(e)
	}
	return ok(uint64(got))
}

func handleFsWrite(ctx *Context) (Disposition, uint64) {
	h, e := lookupFd(ctx.Task.ID, int(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	p, e := TryNewUserPtr(uintptr(ctx.Args[1]))
	if e != 0 {
		return fail(e)
	}
	buf, e := CopyFromUser(ctx.Task, p, int(ctx.Args[2]))
	if e != 0 {
		return fail(e)
	}
	n, e := h.Write(buf)
	if e != 0 {
		return fail(e)
	}
	return ok(uint64(n))
}

func copyStatOut(ctx *Context, ptr uintptr, st Stat) (Disposition, uint64) {
	p, e := TryNewUserPtr(ptr)
	if e != 0 {
		return fail(e)
	}
	if e := CopyToUser(ctx.Task, p, structBytes(&st)); e != 0 {
		return fail(e)
	}
	return ok(0)
}

func handleFsStat(ctx *Context) (Disposition, uint64) {
	if fs == nil {
		return fail(errno.ENOSYS)
	}
	path, e := readUserCString(ctx.Task, uintptr(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	st, e := fs.Stat(path)
	if e != 0 {
		return fail(e)
	}
	return copyStatOut(ctx, uintptr(ctx.Args[1]), st)
}

func handleFstat(ctx *Context) (Disposition, uint64) {
	h, e := lookupFd(ctx.Task.ID, int(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	st, e := h.Stat()
	if e != 0 {
		return fail(e)
	}
	return copyStatOut(ctx, uintptr(ctx.Args[1]), st)
}

func handleFsMkdir(ctx *Context) (Disposition, uint64) {
	if fs == nil {
		return fail(errno.ENOSYS)
	}
	path, e := readUserCString(ctx.Task, uintptr(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	if e := fs.Mkdir(path); e != 0 {
		return fail(e)
	}
	return ok(0)
}

func handleFsUnlink(ctx *Context) (Disposition, uint64) {
	if fs == nil {
		return fail(errno.ENOSYS)
	}
	path, e := readUserCString(ctx.Task, uintptr(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	if e := fs.Unlink(path); e != 0 {
		return fail(e)
	}
	return ok(0)
}

func handleFsList(ctx *Context) (Disposition, uint64) {
	if fs == nil {
		return fail(errno.ENOSYS)
	}
	path, e := readUserCString(ctx.Task, uintptr(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	entries, e := fs.List(path)
	if e != 0 {
		return fail(e)
	}
	var joined []byte
	for _, n := range entries {
		joined = append(joined, n...)
		joined = append(joined, 0)
	}
	p, e := TryNewUserPtr(uintptr(ctx.Args[1]))
	if e != 0 {
		return fail(e)
	}
	bufCap := int(ctx.Args[2])
	if len(joined) > bufCap {
		return fail(errno.EINVAL)
	}
	if e := CopyToUser(ctx.Task, p, joined); e != 0 {
		return fail(e)
	}
	return ok(uint64(len(joined)))
}

func handleDup(ctx *Context) (Disposition, uint64) {
	fd, e := dupFd(ctx.Task.ID, int(ctx.Args[0]), -1)
	if e != 0 {
		return fail(e)
	}
	return ok(uint64(fd))
}

func handleDup2(ctx *Context) (Disposition, uint64) {
	fd, e := dupFd(ctx.Task.ID, int(ctx.Args[0]), int(ctx.Args[1]))
	if e != 0 {
		return fail(e)
	}
	return ok(uint64(fd))
}

func handleDup3(ctx *Context) (Disposition, uint64) {
	if ctx.Args[0] == ctx.Args[1] {
		return fail(errno.EINVAL)
	}
	fd, e := dupFd(ctx.Task.ID, int(ctx.Args[0]), int(ctx.Args[1]))
	if e != 0 {
		return fail(e)
	}
	return ok(uint64(fd))
}

const (
	fdGetFD = 1
	fdSetFD = 2
)

func handleFcntl(ctx *Context) (Disposition, uint64) {
	// F_GETFD/F_SETFD are the only commands this kernel's console-and-files
	// surface needs; F_DUPFD is already covered by dup/dup2/dup3, and
	// F_GETFL/F_SETFL have no status flags worth tracking without a
	// non-blocking I/O model.
	switch ctx.Args[1] {
	case fdGetFD, fdSetFD:
		if _, e := lookupFd(ctx.Task.ID, int(ctx.Args[0])); e != 0 {
			return fail(e)
		}
		return ok(0)
	default:
		return fail(errno.EINVAL)
	}
}

const (
	seekSet = 0
	seekCur = 1
	seekEnd = 2
)

func handleLseek(ctx *Context) (Disposition, uint64) {
	h, e := lookupFd(ctx.Task.ID, int(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	whence := int(ctx.Args[2])
	if whence != seekSet && whence != seekCur && whence != seekEnd {
		return fail(errno.EINVAL)
	}
	pos, e := h.Seek(int64(ctx.Args[1]), whence)
	if e != 0 {
		return fail(e)
	}
	return ok(uint64(pos))
}

// ioctl supports only the console TTY commands per §6; any other fd or
// request fails with ENOSYS rather than silently succeeding.
const (
	tcgets = 0x5401
	tcsets = 0x5402
)

func handleIoctl(ctx *Context) (Disposition, uint64) {
	if ctx.Args[0] > 2 { // only the console stdio fds 0/1/2
		return fail(errno.ENOSYS)
	}
	switch ctx.Args[1] {
	case tcgets, tcsets:
		if console == nil {
			return fail(errno.ENOSYS)
		}
		return ok(0)
	default:
		return fail(errno.ENOSYS)
	}
}
