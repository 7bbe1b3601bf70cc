package syscalls

import "github.com/sloplabs/slopos/internal/errno"

// Disposition is a syscall handler's outcome, the Go spelling of
// SyscallDisposition.
type Disposition int

const (
	// DispositionOk means the handler succeeded; its second return value is
	// the value to place in RAX.
	DispositionOk Disposition = iota
	// DispositionErr means the handler failed; its second return value is
	// an errno.Errno to negate into RAX.
	DispositionErr
	// DispositionNoReturn means the handler already diverted control flow
	// (exit, exec, a successful rt_sigreturn) and Dispatch's return value
	// is never consulted.
	DispositionNoReturn
)

func ok(v uint64) (Disposition, uint64)         { return DispositionOk, v }
func fail(e errno.Errno) (Disposition, uint64)  { return DispositionErr, uint64(e) }
func noReturn() (Disposition, uint64)           { return DispositionNoReturn, 0 }
