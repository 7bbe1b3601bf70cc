package syscalls

// Console is the hook internal/drivers/tty registers at boot so the core
// write/read/read_char syscalls (console I/O, distinct from the general fd
// table the Files family operates on) have somewhere to go. Mirrors the
// ksync.RegisterScheduler dependency-inversion pattern: syscalls can't
// import drivers/tty (tty will eventually need the syscall error taxonomy),
// so tty registers itself here instead.
type Console interface {
	WriteBytes(b []byte) int
	ReadBytes(b []byte) int
	ReadChar() (byte, bool)
}

var console Console

// RegisterConsole installs the console backing core write/read/read_char.
func RegisterConsole(c Console) { console = c }
