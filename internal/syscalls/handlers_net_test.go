package syscalls

import (
	"testing"

	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/sched"
	"github.com/sloplabs/slopos/internal/vmm"
)

func pathArg(t *testing.T, path string) (*sched.Task, uintptr) {
	buf := make([]byte, len(path)+1)
	copy(buf, path)
	task, addr := newMappedTask(buf, vmm.VMARead|vmm.VMAWrite)
	return task, addr
}

func TestHandleSocketRejectsNonAFUnixDomain(t *testing.T) {
	useFakeScheduler(t)
	ctx := &Context{Task: &sched.Task{ID: 1}, Args: [6]uint64{2, sockStream, 0, 0, 0, 0}}
	disp, val := handleSocket(ctx)
	if disp != DispositionErr || errno.Errno(val) != errno.EAFNOSUPPORT {
		t.Fatalf("handleSocket(domain=2) = (%v, %v), want EAFNOSUPPORT", disp, val)
	}
}

func TestHandleSocketRejectsNonStreamType(t *testing.T) {
	useFakeScheduler(t)
	ctx := &Context{Task: &sched.Task{ID: 2}, Args: [6]uint64{afUnix, 2, 0, 0, 0, 0}}
	disp, val := handleSocket(ctx)
	if disp != DispositionErr || errno.Errno(val) != errno.EPROTONOSUPPORT {
		t.Fatalf("handleSocket(type=2) = (%v, %v), want EPROTONOSUPPORT", disp, val)
	}
}

func TestHandleSocketInstallsNewFd(t *testing.T) {
	useFakeScheduler(t)
	ctx := &Context{Task: &sched.Task{ID: 3}, Args: [6]uint64{afUnix, sockStream, 0, 0, 0, 0}}
	disp, val := handleSocket(ctx)
	if disp != DispositionOk || val < 3 {
		t.Fatalf("handleSocket = (%v, %v), want (Ok, fd>=3)", disp, val)
	}
}

func TestBindListenAcceptConnectRoundTrip(t *testing.T) {
	s := useFakeScheduler(t)
	const path = "/tmp/test.sock"

	serverTask, pathAddr := pathArg(t, path)
	serverTask.ID = 100
	_, fdVal := handleSocket(&Context{Task: serverTask, Args: [6]uint64{afUnix, sockStream, 0, 0, 0, 0}})
	serverFd := fdVal

	if disp, val := handleBind(&Context{Task: serverTask, Args: [6]uint64{serverFd, uint64(pathAddr), 0, 0, 0, 0}}); disp != DispositionOk {
		t.Fatalf("handleBind = (%v, %v), want Ok", disp, val)
	}
	if disp, val := handleListen(&Context{Task: serverTask, Args: [6]uint64{serverFd, 0, 0, 0, 0, 0}}); disp != DispositionOk {
		t.Fatalf("handleListen = (%v, %v), want Ok", disp, val)
	}

	acceptDone := make(chan struct{})
	var acceptFd uint64
	var acceptDisp Disposition
	go func() {
		s.bind() // Accept blocks, so this goroutine needs its own scheduler identity.
		acceptDisp, acceptFd = handleAccept(&Context{Task: serverTask, Args: [6]uint64{serverFd, 0, 0, 0, 0, 0}})
		close(acceptDone)
	}()

	clientTask, clientPathAddr := pathArg(t, path)
	clientTask.ID = 101
	_, clientFdVal := handleSocket(&Context{Task: clientTask, Args: [6]uint64{afUnix, sockStream, 0, 0, 0, 0}})
	if disp, val := handleConnect(&Context{Task: clientTask, Args: [6]uint64{clientFdVal, uint64(clientPathAddr), 0, 0, 0, 0}}); disp != DispositionOk {
		t.Fatalf("handleConnect = (%v, %v), want Ok", disp, val)
	}

	<-acceptDone
	if acceptDisp != DispositionOk {
		t.Fatalf("handleAccept = (%v, %v), want Ok", acceptDisp, acceptFd)
	}

	clientH, e := lookupSocket(&Context{Task: clientTask}, int(clientFdVal))
	if e != 0 {
		t.Fatalf("lookupSocket(client) failed: %v", e)
	}
	if n := clientH.conn.Write([]byte("hi")); n != 2 {
		t.Fatalf("client write = %d, want 2", n)
	}

	serverH, e := lookupSocket(&Context{Task: serverTask}, int(acceptFd))
	if e != 0 {
		t.Fatalf("lookupSocket(server) failed: %v", e)
	}
	readBuf := make([]byte, 8)
	if n := serverH.conn.Read(readBuf); n != 2 || string(readBuf[:2]) != "hi" {
		t.Fatalf("server read = (%d, %q), want (2, %q)", n, readBuf[:n], "hi")
	}
}

func TestHandleBindOnNonNewSocketFails(t *testing.T) {
	useFakeScheduler(t)
	task, pathAddr := pathArg(t, "/tmp/twice.sock")
	task.ID = 200
	sockCtx := &Context{Task: task, Args: [6]uint64{afUnix, sockStream, 0, 0, 0, 0}}
	_, fdVal := handleSocket(sockCtx)

	bindCtx := &Context{Task: task, Args: [6]uint64{fdVal, uint64(pathAddr), 0, 0, 0, 0}}
	handleBind(bindCtx)
	if disp, val := handleBind(bindCtx); disp != DispositionErr || errno.Errno(val) != errno.EINVAL {
		t.Fatalf("second handleBind = (%v, %v), want EINVAL", disp, val)
	}
}

func TestHandleAcceptOnUnboundSocketFails(t *testing.T) {
	useFakeScheduler(t)
	task := &sched.Task{ID: 300}
	sockCtx := &Context{Task: task, Args: [6]uint64{afUnix, sockStream, 0, 0, 0, 0}}
	_, fdVal := handleSocket(sockCtx)

	acceptCtx := &Context{Task: task, Args: [6]uint64{fdVal, 0, 0, 0, 0, 0}}
	if disp, val := handleAccept(acceptCtx); disp != DispositionErr || errno.Errno(val) != errno.EINVAL {
		t.Fatalf("handleAccept(unbound) = (%v, %v), want EINVAL", disp, val)
	}
}

func TestLookupSocketOnNonSocketFdReturnsENOTSOCK(t *testing.T) {
	useFakeScheduler(t)
	task := &sched.Task{ID: 400}
	fd, e := installFd(task.ID, &fakeFile{})
	if e != 0 {
		t.Fatalf("installFd failed: %v", e)
	}
	if _, e := lookupSocket(&Context{Task: task}, fd); e != errno.ENOTSOCK {
		t.Fatalf("lookupSocket on a non-socket fd = %v, want ENOTSOCK", e)
	}
}
