package ps2

import "testing"

func TestFeedMakeCodeAppendsASCIIAndEvent(t *testing.T) {
	k := newWithIO(nil)
	k.Feed(0x1E) // 'a' make code

	c, ok := k.ReadChar()
	if !ok || c != 'a' {
		t.Fatalf("ReadChar = (%q, %v), want ('a', true)", c, ok)
	}
	ev, ok := k.PollEvent()
	if !ok || ev.Code != 0x1E || !ev.Pressed {
		t.Fatalf("PollEvent = %+v, ok=%v, want Code=0x1E Pressed=true", ev, ok)
	}
}

func TestFeedBreakCodeDoesNotAppendASCII(t *testing.T) {
	k := newWithIO(nil)
	k.Feed(0x1E | releaseBit)

	if _, ok := k.ReadChar(); ok {
		t.Fatal("ReadChar after a break code returned a byte")
	}
	ev, ok := k.PollEvent()
	if !ok || ev.Pressed {
		t.Fatalf("PollEvent = %+v, want Pressed=false", ev)
	}
}

func TestFeedUnmappedScancodeSkipsASCIIButRecordsEvent(t *testing.T) {
	k := newWithIO(nil)
	k.Feed(0x01) // Escape: no ASCII mapping

	if _, ok := k.ReadChar(); ok {
		t.Fatal("ReadChar after Escape returned a byte")
	}
	if _, ok := k.PollEvent(); !ok {
		t.Fatal("PollEvent after Escape found nothing")
	}
}

func TestReadASCIIDrainsMultipleQueuedBytes(t *testing.T) {
	k := newWithIO(nil)
	for _, sc := range []byte{0x1E, 0x1F, 0x20} { // a, s, d
		k.Feed(sc)
	}
	buf := make([]byte, 8)
	n := k.ReadASCII(buf)
	if n != 3 || string(buf[:3]) != "asd" {
		t.Fatalf("ReadASCII = (%d, %q), want (3, %q)", n, buf[:n], "asd")
	}
}
