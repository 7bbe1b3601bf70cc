package kdiag

import (
	"strings"
	"testing"
)

type recordingSink struct {
	lines []string
}

func (s *recordingSink) WriteBytes(b []byte) int {
	s.lines = append(s.lines, string(b))
	return len(b)
}

func TestEmitDropsBelowMinLevel(t *testing.T) {
	s := &recordingSink{}
	RegisterSink(s)
	defer RegisterSink(nil)
	SetLevel(LevelWarn)
	defer SetLevel(LevelTrace)

	Info("should not appear")
	if len(s.lines) != 0 {
		t.Fatalf("got %d lines, want 0 below min level", len(s.lines))
	}

	Warn("should appear")
	if len(s.lines) != 1 {
		t.Fatalf("got %d lines, want 1 at min level", len(s.lines))
	}
}

func TestEmitPrefixesLevelAndMessage(t *testing.T) {
	s := &recordingSink{}
	RegisterSink(s)
	defer RegisterSink(nil)
	SetLevel(LevelTrace)

	Error("disk missing")
	if len(s.lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(s.lines))
	}
	if !strings.HasPrefix(s.lines[0], "[ERROR] disk missing") {
		t.Fatalf("line = %q, want prefix %q", s.lines[0], "[ERROR] disk missing")
	}
}

func TestEmitWithNoSinkDoesNotPanic(t *testing.T) {
	RegisterSink(nil)
	Info("dropped on the floor")
}

func TestPutHex64(t *testing.T) {
	got := PutHex64(0xDEADBEEF)
	want := "0x00000000deadbeef"
	if got != want {
		t.Fatalf("PutHex64 = %q, want %q", got, want)
	}
}

func TestPutDec(t *testing.T) {
	cases := map[uint64]string{0: "0", 7: "7", 1234: "1234"}
	for in, want := range cases {
		if got := PutDec(in); got != want {
			t.Fatalf("PutDec(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestPanicCallsFatalHookAfterLogging(t *testing.T) {
	s := &recordingSink{}
	RegisterSink(s)
	defer RegisterSink(nil)
	SetLevel(LevelTrace)

	called := false
	RegisterFatalHook(func() { called = true })
	defer RegisterFatalHook(nil)

	Panic("test fault", map[string]uint64{"RIP": 0x1000})
	if !called {
		t.Fatal("Panic did not invoke the fatal hook")
	}
	if len(s.lines) < 2 {
		t.Fatalf("got %d lines, want at least a PANIC line plus a register line", len(s.lines))
	}
}
