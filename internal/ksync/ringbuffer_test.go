package ksync

import "testing"

func TestRingBufferBasic(t *testing.T) {
	r := NewRingBuffer[int](4)
	if !r.IsEmpty() {
		t.Fatal("new ring buffer should be empty")
	}
	if _, ok := r.TryPop(); ok {
		t.Fatal("pop on empty buffer should fail")
	}

	r.PushOverwrite(1)
	r.PushOverwrite(2)
	r.PushOverwrite(3)

	if got := r.Len(); got != 3 {
		t.Fatalf("len = %d, want 3", got)
	}

	v, ok := r.TryPop()
	if !ok || v != 1 {
		t.Fatalf("pop = %d,%v want 1,true", v, ok)
	}
}

func TestRingBufferOverwriteDropsOldest(t *testing.T) {
	r := NewRingBuffer[int](4) // rounds to capacity 4
	for i := 0; i < 6; i++ {
		r.PushOverwrite(i)
	}
	if got := r.Len(); got != r.Cap() {
		t.Fatalf("len = %d, want cap %d", got, r.Cap())
	}
	// Oldest entries (0, 1) should have been dropped; next pop is 2.
	v, ok := r.TryPop()
	if !ok || v != 2 {
		t.Fatalf("pop = %d,%v want 2,true", v, ok)
	}
}

func TestRingBufferOrdering(t *testing.T) {
	r := NewRingBuffer[int](8)
	for i := 0; i < 5; i++ {
		r.PushOverwrite(i)
	}
	for i := 0; i < 5; i++ {
		v, ok := r.TryPop()
		if !ok || v != i {
			t.Fatalf("pop %d = %d,%v want %d,true", i, v, ok, i)
		}
	}
	if !r.IsEmpty() {
		t.Fatal("buffer should be drained")
	}
}
