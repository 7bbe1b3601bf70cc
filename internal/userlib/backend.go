// Package userlib is the userland syscall ABI client: cmd/shell and
// cmd/compositor link against it instead of talking to internal/syscalls
// directly, the same split tinyrange-cc keeps between its host-side CLI and
// the sentry it drives, and kornnellio-runc-Go keeps between its container
// primitives and the raw x/sys/unix calls underneath them.
//
// Two backends implement the six-register raw syscall this package wraps:
// a real one (raw_kernel_amd64.go, built with the sloposkernel tag) that
// issues INT $0x80 against the kernel's syscall gate, and a hosted one (raw_hosted.go,
// the default) that development and test builds point at a fake via
// SetBackend so cmd/shell's own tests never need a booted machine.
package userlib

// Backend issues one raw syscall: sysno in RAX per the kernel ABI,
// six argument registers, one 64-bit return register. Matches
// internal/syscalls.Dispatch's argument shape one level up, across the
// process boundary this package exists to cross.
type Backend interface {
	Syscall(sysno uint64, a0, a1, a2, a3, a4, a5 uint64) uint64
}

var backend Backend = defaultBackend()

// SetBackend installs the syscall backend; hosted test builds call this
// with a fake before exercising any userlib function.
func SetBackend(b Backend) { backend = b }
