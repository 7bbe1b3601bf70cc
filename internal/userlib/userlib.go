// Package userlib wraps the kernel's raw six-register syscall ABI in a
// typed Go API, the same shape kornnellio-runc-Go's x/sys/unix wrappers give
// its container primitives: one function per syscall, errno decoded off the
// raw return value instead of leaking the negative-integer convention to
// every caller.
package userlib

import "github.com/sloplabs/slopos/internal/errno"

// sysno mirrors internal/syscalls.Sysno's assignment order; userlib can't
// import internal/syscalls (that package lives kernel-side, this one
// crosses into userland), so the numbering is kept in lockstep by hand here.
type sysno uint64

const (
	sysYield sysno = iota
	sysExit
	sysWrite
	sysRead
	sysReadChar
	sysSleepMs
	sysGetTimeMs
	sysSysInfo
	sysHalt
	sysReboot

	sysBrk
	sysMmap
	sysMunmap
	sysMprotect

	sysSpawnPath
	sysWaitpid
	sysTerminateTask
	sysExec
	sysFork
	sysClone
	sysFutex
	sysArchPrctl
	sysGetPID
	sysGetTID
	sysGetPPID
	sysSetPGID
	sysGetPGID
	sysSetSID

	sysRtSigaction
	sysRtSigprocmask
	sysKill
	sysRtSigreturn

	sysFsOpen
	sysFsClose
	sysFsRead
	sysFsWrite
	sysFsStat
	sysFsMkdir
	sysFsUnlink
	sysFsList
	sysDup
	sysDup2
	sysDup3
	sysFcntl
	sysLseek
	sysFstat
	sysPoll
	sysSelect
	sysPipe
	sysPipe2
	sysIoctl

	sysFbInfo
	sysFbFlip
	sysSurfaceCommit
	sysSurfaceAttach
	sysSurfaceFrame
	sysSurfaceDamage
	sysShmCreate
	sysShmMap
	sysShmUnmap
	sysShmDestroy
	sysShmAcquire
	sysShmRelease

	sysInputPoll
	sysInputPollBatch
	sysEnumerateWindows
	sysSetFocus
	sysSetWindowState

	sysSocket
	sysBind
	sysListen
	sysAccept
	sysConnect
)

// decodeResult splits a raw syscall return value into its value and errno
// halves, following the same negative-errno-range convention
// internal/errno.Errno.AsRAX encodes on the kernel side: results in
// [-4095, -1] (interpreted as a signed 64-bit value) are errors, everything
// else is a successful return value.
func decodeResult(raw uint64) (uint64, errno.Errno) {
	s := int64(raw)
	if s < 0 && s >= -4095 {
		return 0, errno.Errno(-s)
	}
	return raw, 0
}

func call(n sysno, a0, a1, a2, a3, a4, a5 uint64) (uint64, errno.Errno) {
	return decodeResult(backend.Syscall(uint64(n), a0, a1, a2, a3, a4, a5))
}

// Core

func Yield()                         { call(sysYield, 0, 0, 0, 0, 0, 0) }
func Exit(code int32)                { call(sysExit, uint64(uint8(code)), 0, 0, 0, 0, 0) }
func Write(fd int, buf []byte) (int, errno.Errno) {
	v, e := call(sysWrite, uint64(fd), bufAddr(buf), uint64(len(buf)), 0, 0, 0)
	return int(v), e
}
func Read(fd int, buf []byte) (int, errno.Errno) {
	v, e := call(sysRead, uint64(fd), bufAddr(buf), uint64(len(buf)), 0, 0, 0)
	return int(v), e
}
func ReadChar() (byte, errno.Errno) {
	v, e := call(sysReadChar, 0, 0, 0, 0, 0, 0)
	return byte(v), e
}
func SleepMs(ms uint64)          { call(sysSleepMs, ms, 0, 0, 0, 0, 0) }
func GetTimeMs() uint64          { v, _ := call(sysGetTimeMs, 0, 0, 0, 0, 0, 0); return v }
func Halt()                      { call(sysHalt, 0, 0, 0, 0, 0, 0) }
func Reboot()                    { call(sysReboot, 0, 0, 0, 0, 0, 0) }

// SysInfo mirrors internal/syscalls.SysInfo's on-the-wire layout.
type SysInfo struct {
	UptimeMs uint64
	NumTasks uint64
	PageSize uint32
	_        uint32
}

func GetSysInfo() (SysInfo, errno.Errno) {
	var info SysInfo
	_, e := call(sysSysInfo, structAddr(&info), 0, 0, 0, 0, 0)
	return info, e
}

// Memory

const (
	ProtRead  = 1 << 0
	ProtWrite = 1 << 1
	ProtExec  = 1 << 2

	MapAnonymous = 1 << 5
)

func Brk(addr uintptr) (uintptr, errno.Errno) {
	v, e := call(sysBrk, uint64(addr), 0, 0, 0, 0, 0)
	return uintptr(v), e
}
func Mmap(addr, length uintptr, prot, flags uint64) (uintptr, errno.Errno) {
	v, e := call(sysMmap, uint64(addr), uint64(length), prot, flags, 0, 0)
	return uintptr(v), e
}
func Munmap(addr, length uintptr) errno.Errno {
	_, e := call(sysMunmap, uint64(addr), uint64(length), 0, 0, 0, 0)
	return e
}
func Mprotect(addr, length uintptr, prot uint64) errno.Errno {
	_, e := call(sysMprotect, uint64(addr), uint64(length), prot, 0, 0, 0)
	return e
}

// Process

const (
	CloneVM      = 1 << 8
	CloneFiles   = 1 << 9
	CloneSighand = 1 << 10
	CloneSetTLS  = 1 << 19
)

func SpawnPath(path string) (uint64, errno.Errno) {
	v, e := call(sysSpawnPath, cstrAddr(path), 0, 0, 0, 0, 0)
	return v, e
}
func Exec(path string) errno.Errno {
	_, e := call(sysExec, cstrAddr(path), 0, 0, 0, 0, 0)
	return e
}
func Fork() (uint64, errno.Errno) {
	v, e := call(sysFork, 0, 0, 0, 0, 0, 0)
	return v, e
}
func Clone(flags uint64, childStack uintptr, tls uint64) (uint64, errno.Errno) {
	v, e := call(sysClone, flags, uint64(childStack), tls, 0, 0, 0)
	return v, e
}

const WNoHang = 1

func Waitpid(id uint64, noHang bool) (status uint64, e errno.Errno) {
	var flags uint64
	if noHang {
		flags = WNoHang
	}
	return call(sysWaitpid, id, flags, 0, 0, 0, 0)
}

// TerminateTask is compositor-only on the kernel side; any other caller gets
// EPERM back.
func TerminateTask(id uint64) errno.Errno {
	_, e := call(sysTerminateTask, id, 0, 0, 0, 0, 0)
	return e
}

const (
	futexOpWait = 0
	futexOpWake = 1
)

func FutexWait(addr *uint32, expected uint32, timeoutMs uint64) errno.Errno {
	_, e := call(sysFutex, futexOpWait, uint64(uintptr(ptrOf(addr))), uint64(expected), timeoutMs, 0, 0)
	return e
}
func FutexWake(addr *uint32, n int) (int, errno.Errno) {
	v, e := call(sysFutex, futexOpWake, uint64(uintptr(ptrOf(addr))), uint64(n), 0, 0, 0)
	return int(v), e
}

const (
	archOpSetFS = 0x1002
	archOpGetFS = 0x1003
)

func ArchSetFS(base uint64) errno.Errno {
	_, e := call(sysArchPrctl, archOpSetFS, base, 0, 0, 0, 0)
	return e
}
func ArchGetFS() (uint64, errno.Errno) {
	var base uint64
	_, e := call(sysArchPrctl, archOpGetFS, structAddr(&base), 0, 0, 0, 0)
	return base, e
}

func GetPID() uint64  { v, _ := call(sysGetPID, 0, 0, 0, 0, 0, 0); return v }
func GetTID() uint64  { v, _ := call(sysGetTID, 0, 0, 0, 0, 0, 0); return v }
func GetPPID() uint64 { v, _ := call(sysGetPPID, 0, 0, 0, 0, 0, 0); return v }

func SetPGID(id, pgid uint64) errno.Errno {
	_, e := call(sysSetPGID, id, pgid, 0, 0, 0, 0)
	return e
}
func GetPGID(id uint64) (uint64, errno.Errno) { return call(sysGetPGID, id, 0, 0, 0, 0, 0) }
func SetSID() (uint64, errno.Errno)           { return call(sysSetSID, 0, 0, 0, 0, 0, 0) }

// Signals

const (
	SigBlock = iota
	SigUnblock
	SigSetMask
)

const SANoDefer = 1 << 0

// SigAction mirrors internal/syscalls' userSigAction wire layout.
type SigAction struct {
	Handler  uint64
	Mask     uint64
	Flags    uint64
	Restorer uint64
}

func RtSigaction(signum int, newAct, oldAct *SigAction) errno.Errno {
	_, e := call(sysRtSigaction, uint64(signum), structAddr(newAct), structAddr(oldAct), 0, 0, 0)
	return e
}
func RtSigprocmask(how int, set, oldSet *uint64) errno.Errno {
	_, e := call(sysRtSigprocmask, uint64(how), structAddr(set), structAddr(oldSet), 0, 0, 0)
	return e
}
func Kill(id uint64, signum int) errno.Errno {
	_, e := call(sysKill, id, uint64(signum), 0, 0, 0, 0)
	return e
}
func RtSigreturn() { call(sysRtSigreturn, 0, 0, 0, 0, 0, 0) }

// Files

const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// OpenFlags mirrors internal/syscalls.OCreat et al.
const (
	OCreat     = 1 << 0
	OTrunc     = 1 << 1
	OAppend    = 1 << 2
	OWrOnly    = 1 << 3
	ORdWr      = 1 << 4
	ODirectory = 1 << 5
)

// Stat mirrors internal/syscalls.Stat's wire layout.
type Stat struct {
	Size    uint64
	Mode    uint32
	IsDir   uint32
	MTimeMs uint64
}

func FsOpen(path string, flags uint32) (int, errno.Errno) {
	v, e := call(sysFsOpen, cstrAddr(path), uint64(flags), 0, 0, 0, 0)
	return int(v), e
}
func FsClose(fd int) errno.Errno {
	_, e := call(sysFsClose, uint64(fd), 0, 0, 0, 0, 0)
	return e
}
func FsRead(fd int, buf []byte) (int, errno.Errno) {
	v, e := call(sysFsRead, uint64(fd), bufAddr(buf), uint64(len(buf)), 0, 0, 0)
	return int(v), e
}
func FsWrite(fd int, buf []byte) (int, errno.Errno) {
	v, e := call(sysFsWrite, uint64(fd), bufAddr(buf), uint64(len(buf)), 0, 0, 0)
	return int(v), e
}
func FsStat(path string) (Stat, errno.Errno) {
	var st Stat
	_, e := call(sysFsStat, cstrAddr(path), structAddr(&st), 0, 0, 0, 0)
	return st, e
}
func Fstat(fd int) (Stat, errno.Errno) {
	var st Stat
	_, e := call(sysFstat, uint64(fd), structAddr(&st), 0, 0, 0, 0)
	return st, e
}
func FsMkdir(path string) errno.Errno {
	_, e := call(sysFsMkdir, cstrAddr(path), 0, 0, 0, 0, 0)
	return e
}
func FsUnlink(path string) errno.Errno {
	_, e := call(sysFsUnlink, cstrAddr(path), 0, 0, 0, 0, 0)
	return e
}

// FsList copies at most len(buf) bytes of NUL-separated directory entry
// names into buf, returning the number of bytes actually written.
func FsList(path string, buf []byte) (int, errno.Errno) {
	v, e := call(sysFsList, cstrAddr(path), bufAddr(buf), uint64(len(buf)), 0, 0, 0)
	return int(v), e
}

func Dup(fd int) (int, errno.Errno) {
	v, e := call(sysDup, uint64(fd), 0, 0, 0, 0, 0)
	return int(v), e
}
func Dup2(oldfd, newfd int) (int, errno.Errno) {
	v, e := call(sysDup2, uint64(oldfd), uint64(newfd), 0, 0, 0, 0)
	return int(v), e
}
func Dup3(oldfd, newfd int) (int, errno.Errno) {
	v, e := call(sysDup3, uint64(oldfd), uint64(newfd), 0, 0, 0, 0)
	return int(v), e
}

const (
	FGetFD = 1
	FSetFD = 2
)

func Fcntl(fd int, cmd, arg uint64) errno.Errno {
	_, e := call(sysFcntl, uint64(fd), cmd, arg, 0, 0, 0)
	return e
}
func Lseek(fd int, offset int64, whence int) (int64, errno.Errno) {
	v, e := call(sysLseek, uint64(fd), uint64(offset), uint64(whence), 0, 0, 0)
	return int64(v), e
}

const (
	TCGets = 0x5401
	TCSets = 0x5402
)

func Ioctl(fd int, req uint64) errno.Errno {
	_, e := call(sysIoctl, uint64(fd), req, 0, 0, 0, 0)
	return e
}

func Pipe() (readFd, writeFd int, e errno.Errno) {
	var fds [2]int32
	_, e = call(sysPipe, structAddr(&fds), 0, 0, 0, 0, 0)
	return int(fds[0]), int(fds[1]), e
}
func Pipe2(flags uint64) (readFd, writeFd int, e errno.Errno) {
	var fds [2]int32
	_, e = call(sysPipe2, structAddr(&fds), flags, 0, 0, 0, 0)
	return int(fds[0]), int(fds[1]), e
}

// PollFD mirrors internal/syscalls' pollFD wire layout.
type PollFD struct {
	FD      int32
	Events  int16
	Revents int16
}

const PollIn = 0x0001

func Poll(fds []PollFD) (int, errno.Errno) {
	v, e := call(sysPoll, sliceAddr(fds), uint64(len(fds)), 0, 0, 0, 0)
	return int(v), e
}

// Select always reports every one of the first n descriptors ready; the
// kernel's select doesn't model real fd_set bitmaps (cmd/shell calls
// neither select nor poll).
func Select(n int) (int, errno.Errno) {
	v, e := call(sysSelect, uint64(n), 0, 0, 0, 0, 0)
	return int(v), e
}

// Surfaces

type PixelFormat uint32

const (
	FormatRgb888 PixelFormat = iota
	FormatRgba8888
	FormatBgr888
	FormatBgra8888
)

// FbInfo mirrors internal/syscalls.FbInfo's wire layout.
type FbInfo struct {
	Address       uint64
	Width         uint32
	Height        uint32
	Pitch         uint32
	BytesPerPixel uint32
	Format        PixelFormat
}

// Rect mirrors internal/syscalls.Rect's wire layout.
type Rect struct {
	X, Y, W, H uint32
}

func GetFbInfo() (FbInfo, errno.Errno) {
	var info FbInfo
	_, e := call(sysFbInfo, structAddr(&info), 0, 0, 0, 0, 0)
	return info, e
}

// FbFlip is compositor-only.
func FbFlip(damage []Rect) errno.Errno {
	_, e := call(sysFbFlip, sliceAddr(damage), uint64(len(damage)), 0, 0, 0, 0)
	return e
}
func SurfaceCommit(token uint64, r Rect) errno.Errno {
	_, e := call(sysSurfaceCommit, token, structAddr(&r), 0, 0, 0, 0)
	return e
}
func SurfaceAttach(token uint64, x, y int32) errno.Errno {
	_, e := call(sysSurfaceAttach, token, uint64(uint32(x)), uint64(uint32(y)), 0, 0, 0)
	return e
}
func SurfaceFrame(token uint64) (uint64, errno.Errno) {
	return call(sysSurfaceFrame, token, 0, 0, 0, 0, 0)
}
func SurfaceDamage(token uint64, r Rect) errno.Errno {
	_, e := call(sysSurfaceDamage, token, structAddr(&r), 0, 0, 0, 0)
	return e
}
func ShmCreate(size uint64) (uint64, errno.Errno) { return call(sysShmCreate, size, 0, 0, 0, 0, 0) }
func ShmMap(token uint64) (uintptr, errno.Errno) {
	v, e := call(sysShmMap, token, 0, 0, 0, 0, 0)
	return uintptr(v), e
}
func ShmUnmap(token uint64) errno.Errno {
	_, e := call(sysShmUnmap, token, 0, 0, 0, 0, 0)
	return e
}
func ShmDestroy(token uint64) errno.Errno {
	_, e := call(sysShmDestroy, token, 0, 0, 0, 0, 0)
	return e
}
func ShmAcquire(token uint64) errno.Errno {
	_, e := call(sysShmAcquire, token, 0, 0, 0, 0, 0)
	return e
}
func ShmRelease(token uint64) errno.Errno {
	_, e := call(sysShmRelease, token, 0, 0, 0, 0, 0)
	return e
}

// Input

// InputEvent mirrors internal/syscalls.InputEvent's wire layout.
type InputEvent struct {
	Kind   uint32
	Code   uint32
	Value  int32
	TimeMs uint64
}

// WindowInfo mirrors internal/syscalls.WindowInfo's wire layout.
type WindowInfo struct {
	ID       uint32
	OwnerPID uint64
	X, Y     int32
	W, H     uint32
	Focused  uint32
}

// InputPoll, InputPollBatch, EnumerateWindows, SetFocus, and
// SetWindowState are compositor-only on the kernel side.
func InputPoll() (InputEvent, errno.Errno) {
	var ev InputEvent
	_, e := call(sysInputPoll, structAddr(&ev), 0, 0, 0, 0, 0)
	return ev, e
}
func InputPollBatch(events []InputEvent) (int, errno.Errno) {
	v, e := call(sysInputPollBatch, sliceAddr(events), uint64(len(events)), 0, 0, 0, 0)
	return int(v), e
}
func EnumerateWindows(buf []WindowInfo) (int, errno.Errno) {
	v, e := call(sysEnumerateWindows, sliceAddr(buf), uint64(len(buf)*int(structSizeOf(WindowInfo{}))), 0, 0, 0, 0)
	return int(v), e
}
func SetFocus(windowID uint32) errno.Errno {
	_, e := call(sysSetFocus, uint64(windowID), 0, 0, 0, 0, 0)
	return e
}
func SetWindowState(windowID uint32, x, y int32, w, h uint32) errno.Errno {
	_, e := call(sysSetWindowState, uint64(windowID), uint64(uint32(x)), uint64(uint32(y)), uint64(w), uint64(h), 0)
	return e
}

// Net

const (
	AFUnix     = 1
	SockStream = 1
)

func Socket(family, typ uint64) (int, errno.Errno) {
	v, e := call(sysSocket, family, typ, 0, 0, 0, 0)
	return int(v), e
}
func Bind(fd int, path string) errno.Errno {
	_, e := call(sysBind, uint64(fd), cstrAddr(path), 0, 0, 0, 0)
	return e
}
func Listen(fd int) errno.Errno {
	_, e := call(sysListen, uint64(fd), 0, 0, 0, 0, 0)
	return e
}
func Accept(fd int) (int, errno.Errno) {
	v, e := call(sysAccept, uint64(fd), 0, 0, 0, 0, 0)
	return int(v), e
}
func Connect(fd int, path string) errno.Errno {
	_, e := call(sysConnect, uint64(fd), cstrAddr(path), 0, 0, 0, 0)
	return e
}
