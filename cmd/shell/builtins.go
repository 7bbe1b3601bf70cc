package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/sloplabs/slopos/internal/userlib"
	"github.com/spf13/cobra"
)

// newRootCmd builds a fresh cobra command tree for one pipeline stage.
// cobra commands carry mutable output streams, so this is built per
// invocation rather than once at startup, the same reason kornnellio-runc-Go's
// cmd.Execute() constructs rootCmd fresh in its own package-level init rather
// than handing callers a shared instance to re-run.
func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "shell",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stdout)
	root.AddCommand(newLsCmd(), newCatCmd(), newPsCmd(), newKillCmd())
	return root
}

// cobraBuiltins are the commands newRootCmd actually registers; cd and exit
// are also in builtinNames for tab completion but main.go intercepts both
// before a line ever reaches runStage, so they never need a cobra entry.
var cobraBuiltins = []string{"ls", "cat", "ps", "kill"}

// isBuiltin reports whether name is one of the subcommands newRootCmd wires
// up, so runStage knows to run it in-process instead of forking+execing.
func isBuiltin(name string) bool {
	for _, n := range cobraBuiltins {
		if n == name {
			return true
		}
	}
	return false
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "list directory entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			buf := make([]byte, 8192)
			n, errno := userlib.FsList(path, buf)
			if errno != 0 {
				return fmt.Errorf("ls: %s: errno %d", path, errno)
			}
			names := splitNUL(buf[:n])
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>...",
		Short: "print file contents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				fd, errno := userlib.FsOpen(path, 0)
				if errno != 0 {
					return fmt.Errorf("cat: %s: errno %d", path, errno)
				}
				buf := make([]byte, 4096)
				for {
					n, errno := userlib.FsRead(fd, buf)
					if n <= 0 || errno != 0 {
						break
					}
					cmd.OutOrStdout().Write(buf[:n])
				}
				userlib.FsClose(fd)
			}
			return nil
		},
	}
}

// newPsCmd reports what the syscall ABI actually exposes: a task count from
// GetSysInfo plus this shell's own PID/PPID. There is no task-enumeration
// syscall (internal/syscalls.Sysno has nothing for it), so a per-process
// table the way a hosted ps prints one is not obtainable from userland here.
func newPsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "report task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, errno := userlib.GetSysInfo()
			if errno != 0 {
				return fmt.Errorf("ps: errno %d", errno)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "PID\tPPID\tTASKS\n")
			fmt.Fprintf(out, "%d\t%d\t%d\n", userlib.GetPID(), userlib.GetPPID(), info.NumTasks)
			return nil
		},
	}
}

func newKillCmd() *cobra.Command {
	var signum int
	cmd := &cobra.Command{
		Use:   "kill <pid>",
		Short: "send a signal to a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("kill: %s: not a pid", args[0])
			}
			if errno := userlib.Kill(pid, signum); errno != 0 {
				return fmt.Errorf("kill: %d: errno %d", pid, errno)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&signum, "signal", "s", 9, "signal number")
	return cmd
}

func splitNUL(b []byte) []string {
	var names []string
	start := 0
	for i, c := range b {
		if c == 0 {
			if i > start {
				names = append(names, string(b[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(b) {
		names = append(names, string(b[start:]))
	}
	return names
}
