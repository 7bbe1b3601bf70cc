package syscalls

import "github.com/sloplabs/slopos/internal/errno"

func init() {
	register(SysFbInfo, "fb_info", handleFbInfo)
	register(SysFbFlip, "fb_flip", handleFbFlip)
	register(SysSurfaceCommit, "surface_commit", handleSurfaceCommit)
	register(SysSurfaceAttach, "surface_attach", handleSurfaceAttach)
	register(SysSurfaceFrame, "surface_frame", handleSurfaceFrame)
	register(SysSurfaceDamage, "surface_damage", handleSurfaceDamage)
	register(SysShmCreate, "shm_create", handleShmCreate)
	register(SysShmMap, "shm_map", handleShmMap)
	register(SysShmUnmap, "shm_unmap", handleShmUnmap)
	register(SysShmDestroy, "shm_destroy", handleShmDestroy)
	register(SysShmAcquire, "shm_acquire", handleShmAcquire)
	register(SysShmRelease, "shm_release", handleShmRelease)
}

func readRect(ctx *Context, ptr uintptr) (Rect, errno.Errno) {
	p, e := TryNewUserPtr(ptr)
	if e != 0 {
		return Rect{}, e
	}
	buf, e := CopyFromUser(ctx.Task, p, int(structSize[Rect]()))
	if e != 0 {
		return Rect{}, e
	}
	return bytesToStruct[Rect](buf), 0
}

func handleFbInfo(ctx *Context) (Disposition, uint64) {
	if surfaces == nil {
		return fail(errno.ENOSYS)
	}
	p, e := TryNewUserPtr(uintptr(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	info := surfaces.FbInfo()
	if e := CopyToUser(ctx.Task, p, structBytes(&info)); e != 0 {
		return fail(e)
	}
	return ok(0)
}

// handleFbFlip is compositor-only: any task writing pixels directly to the
// hardware framebuffer would break the single-writer assumption the
// shm/surface damage model depends on.
func handleFbFlip(ctx *Context) (Disposition, uint64) {
	if e := requireCompositor(ctx); e != 0 {
		return fail(e)
	}
	if surfaces == nil {
		return fail(errno.ENOSYS)
	}
	n := int(ctx.Args[1])
	var damage []Rect
	if n > 0 {
		p, e := TryNewUserPtr(uintptr(ctx.Args[0]))
		if e != 0 {
			return fail(e)
		}
		entrySize := int(structSize[Rect]())
		buf, e := CopyFromUser(ctx.Task, p, n*entrySize)
		if e != 0 {
			return fail(e)
		}
		for i := 0; i < n; i++ {
			off := i * entrySize
			damage = append(damage, bytesToStruct[Rect](buf[off:off+entrySize]))
		}
	}
	if e := surfaces.FbFlip(damage); e != 0 {
		return fail(e)
	}
	return ok(0)
}

func handleSurfaceCommit(ctx *Context) (Disposition, uint64) {
	if surfaces == nil {
		return fail(errno.ENOSYS)
	}
	rect, e := readRect(ctx, uintptr(ctx.Args[1]))
	if e != 0 {
		return fail(e)
	}
	if e := surfaces.SurfaceCommit(ctx.Args[0], rect); e != 0 {
		return fail(e)
	}
	return ok(0)
}

func handleSurfaceAttach(ctx *Context) (Disposition, uint64) {
	if surfaces == nil {
		return fail(errno.ENOSYS)
	}
	if e := surfaces.SurfaceAttach(ctx.Args[0], int32(ctx.Args[1]), int32(ctx.Args[2])); e != 0 {
		return fail(e)
	}
	return ok(0)
}

// handleSurfaceFrame blocks (inside surfaces.SurfaceFrame) until the
// compositor's next frame callback for this token, the syscall-layer half of
// a vsync-paced redraw loop.
func handleSurfaceFrame(ctx *Context) (Disposition, uint64) {
	if surfaces == nil {
		return fail(errno.ENOSYS)
	}
	seq, e := surfaces.SurfaceFrame(ctx.Args[0])
	if e != 0 {
		return fail(e)
	}
	return ok(seq)
}

func handleSurfaceDamage(ctx *Context) (Disposition, uint64) {
	if surfaces == nil {
		return fail(errno.ENOSYS)
	}
	rect, e := readRect(ctx, uintptr(ctx.Args[1]))
	if e != 0 {
		return fail(e)
	}
	if e := surfaces.SurfaceDamage(ctx.Args[0], rect); e != 0 {
		return fail(e)
	}
	return ok(0)
}

func handleShmCreate(ctx *Context) (Disposition, uint64) {
	if surfaces == nil {
		return fail(errno.ENOSYS)
	}
	token, e := surfaces.ShmCreate(ctx.Args[0])
	if e != 0 {
		return fail(e)
	}
	return ok(token)
}

func handleShmMap(ctx *Context) (Disposition, uint64) {
	if surfaces == nil {
		return fail(errno.ENOSYS)
	}
	addr, e := surfaces.ShmMap(ctx.Task.ID, ctx.Args[0])
	if e != 0 {
		return fail(e)
	}
	return ok(uint64(addr))
}

func handleShmUnmap(ctx *Context) (Disposition, uint64) {
	if surfaces == nil {
		return fail(errno.ENOSYS)
	}
	if e := surfaces.ShmUnmap(ctx.Task.ID, ctx.Args[0]); e != 0 {
		return fail(e)
	}
	return ok(0)
}

func handleShmDestroy(ctx *Context) (Disposition, uint64) {
	if surfaces == nil {
		return fail(errno.ENOSYS)
	}
	if e := surfaces.ShmDestroy(ctx.Args[0]); e != 0 {
		return fail(e)
	}
	return ok(0)
}

func handleShmAcquire(ctx *Context) (Disposition, uint64) {
	if surfaces == nil {
		return fail(errno.ENOSYS)
	}
	if e := surfaces.ShmAcquire(ctx.Args[0]); e != 0 {
		return fail(e)
	}
	return ok(0)
}

func handleShmRelease(ctx *Context) (Disposition, uint64) {
	if surfaces == nil {
		return fail(errno.ENOSYS)
	}
	if e := surfaces.ShmRelease(ctx.Args[0]); e != 0 {
		return fail(e)
	}
	return ok(0)
}
