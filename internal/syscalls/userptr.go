package syscalls

import (
	"unsafe"

	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/sched"
	"github.com/sloplabs/slopos/internal/vmm"
)

// KernelSpaceStart is the lowest canonical higher-half address; any
// user-supplied pointer at or above this is rejected outright, the same
// check real hardware's non-canonical-address fault would otherwise raise
// as a GPFault.
const KernelSpaceStart = 0xFFFF_8000_0000_0000

// UserPtr is a validated pointer into a task's address space, the Go
// spelling of UserPtr<T>::try_new. It carries no type-level size; callers
// pass the byte count they intend to access to CopyFromUser/CopyToUser.
type UserPtr struct {
	addr uintptr
}

// TryNewUserPtr rejects a kernel-range address outright; it does not by
// itself prove the address is mapped (that's checked per-access, since
// mappings can be demand-paged in after this call).
func TryNewUserPtr(addr uintptr) (UserPtr, errno.Errno) {
	if addr == 0 || addr >= KernelSpaceStart {
		return UserPtr{}, errno.EFAULT
	}
	return UserPtr{addr: addr}, 0
}

func (p UserPtr) Addr() uintptr { return p.addr }

// checkRange validates that [addr, addr+n) lies entirely within a single
// VMA of t with at least the required permission, mirroring
// copy_from_user/copy_to_user's page-table walk. It does not itself resolve
// demand/COW faults; an unmapped-but-valid VMA still fails here, matching
// this kernel's choice not to attempt i/o from inside a syscall's
// user-pointer validation path.
func checkRange(t *sched.Task, addr uintptr, n int, needWrite bool) errno.Errno {
	if addr == 0 || n < 0 {
		return errno.EFAULT
	}
	end := addr + uintptr(n)
	if end < addr || end > KernelSpaceStart {
		return errno.EFAULT
	}
	if t == nil || t.VMATree == nil {
		return errno.EFAULT
	}
	v := t.VMATree.FindCovering(addr, end)
	if v == nil {
		return errno.EFAULT
	}
	if needWrite && v.Flags&vmm.VMAWrite == 0 {
		return errno.EFAULT
	}
	if !needWrite && v.Flags&vmm.VMARead == 0 {
		return errno.EFAULT
	}
	return 0
}

// CopyFromUser copies n bytes starting at p into a freshly allocated kernel
// slice.
func CopyFromUser(t *sched.Task, p UserPtr, n int) ([]byte, errno.Errno) {
	if e := checkRange(t, p.addr, n, false); e != 0 {
		return nil, e
	}
	out := make([]byte, n)
	src := unsafe.Slice((*byte)(unsafe.Pointer(p.addr)), n)
	copy(out, src)
	return out, 0
}

// CopyToUser copies src into the len(src) bytes starting at p.
func CopyToUser(t *sched.Task, p UserPtr, src []byte) errno.Errno {
	if e := checkRange(t, p.addr, len(src), true); e != 0 {
		return e
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(p.addr)), len(src))
	copy(dst, src)
	return 0
}

// userPtrUnsafe returns addr as a raw pointer with no range validation,
// used only by futex, which operates directly on the user word the same
// way real futex implementations do (the atomic compare happens on the
// address itself, not a kernel-side copy).
func userPtrUnsafe(addr uintptr) unsafe.Pointer { return unsafe.Pointer(addr) }

const maxCStringLen = 4096

// readUserCString copies a NUL-terminated string from user memory, used by
// spawn_path/exec for the path argument.
func readUserCString(t *sched.Task, addr uintptr) (string, errno.Errno) {
	p, e := TryNewUserPtr(addr)
	if e != 0 {
		return "", e
	}
	for n := 1; n <= maxCStringLen; n++ {
		buf, e := CopyFromUser(t, p, n)
		if e != 0 {
			return "", e
		}
		if buf[n-1] == 0 {
			return string(buf[:n-1]), 0
		}
	}
	return "", errno.EINVAL
}
