package syscalls

import (
	"testing"
	"time"
)

func TestPipeWriteThenReadReturnsSameBytes(t *testing.T) {
	useFakeScheduler(t)
	p := newPipe()
	r, w := pipeReadEnd{p}, pipeWriteEnd{p}

	n, e := w.Write([]byte("hello"))
	if e != 0 || n != 5 {
		t.Fatalf("Write = (%d, %v), want (5, 0)", n, e)
	}
	buf := make([]byte, 5)
	n, e = r.Read(buf)
	if e != 0 || n != 5 {
		t.Fatalf("Read = (%d, %v), want (5, 0)", n, e)
	}
	if string(buf) != "hello" {
		t.Fatalf("Read = %q, want %q", buf, "hello")
	}
}

func TestPipeReadBlocksUntilWrite(t *testing.T) {
	s := useFakeScheduler(t)
	p := newPipe()
	r, w := pipeReadEnd{p}, pipeWriteEnd{p}

	done := make(chan string, 1)
	go func() {
		s.bind()
		buf := make([]byte, 4)
		n, _ := r.Read(buf)
		done <- string(buf[:n])
	}()

	select {
	case <-done:
		t.Fatal("Read returned before any Write")
	case <-time.After(20 * time.Millisecond):
	}

	w.Write([]byte("ping"))
	select {
	case got := <-done:
		if got != "ping" {
			t.Fatalf("Read = %q, want %q", got, "ping")
		}
	case <-time.After(time.Second):
		t.Fatal("Read never unblocked after Write")
	}
}

func TestPipeWriteBlocksWhenFullThenDrains(t *testing.T) {
	s := useFakeScheduler(t)
	p := newPipe()
	r, w := pipeReadEnd{p}, pipeWriteEnd{p}

	filler := make([]byte, pipeCapacity)
	if n, e := w.Write(filler); e != 0 || n != pipeCapacity {
		t.Fatalf("fill Write = (%d, %v), want (%d, 0)", n, e, pipeCapacity)
	}

	done := make(chan int, 1)
	go func() {
		s.bind()
		n, _ := w.Write([]byte("more"))
		done <- n
	}()

	select {
	case <-done:
		t.Fatal("Write returned while pipe was full")
	case <-time.After(20 * time.Millisecond):
	}

	buf := make([]byte, 4)
	r.Read(buf)

	select {
	case n := <-done:
		if n != 4 {
			t.Fatalf("drained Write = %d, want 4", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Write never unblocked after room freed")
	}
}

func TestPipeCloseUnblocksPendingRead(t *testing.T) {
	s := useFakeScheduler(t)
	p := newPipe()
	r := pipeReadEnd{p}

	done := make(chan int, 1)
	go func() {
		s.bind()
		buf := make([]byte, 4)
		n, _ := r.Read(buf)
		done <- n
	}()

	time.Sleep(20 * time.Millisecond)
	p.closeEnd()

	select {
	case n := <-done:
		if n != 0 {
			t.Fatalf("Read after close = %d, want 0", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Read never unblocked after close")
	}
}
