package vkcore

import "testing"

func TestPoolInsertGetRoundTrips(t *testing.T) {
	p := NewPool[int]()
	h := p.Insert(42)
	v, ok := p.Get(h)
	if !ok || v != 42 {
		t.Fatalf("Get(%v) = (%d, %v), want (42, true)", h, v, ok)
	}
}

func TestPoolRemoveInvalidatesHandle(t *testing.T) {
	p := NewPool[int]()
	h := p.Insert(7)
	v, ok := p.Remove(h)
	if !ok || v != 7 {
		t.Fatalf("Remove(%v) = (%d, %v), want (7, true)", h, v, ok)
	}
	if _, ok := p.Get(h); ok {
		t.Fatal("Get succeeded against a removed handle")
	}
}

func TestPoolReusedSlotBumpsGeneration(t *testing.T) {
	p := NewPool[int]()
	first := p.Insert(1)
	p.Remove(first)
	second := p.Insert(2)

	if second.index != first.index {
		t.Fatalf("expected slot reuse: first.index=%d second.index=%d", first.index, second.index)
	}
	if second.generation == first.generation {
		t.Fatal("expected a reused slot to bump its generation")
	}
	if _, ok := p.Get(first); ok {
		t.Fatal("stale handle into a reused slot must fail Get")
	}
	v, ok := p.Get(second)
	if !ok || v != 2 {
		t.Fatalf("Get(second) = (%d, %v), want (2, true)", v, ok)
	}
}

func TestHandleZeroValueIsInvalid(t *testing.T) {
	var h Handle[int]
	if h.Valid() {
		t.Fatal("zero-value Handle reports Valid")
	}
}

func TestPoolGetUnknownIndexFails(t *testing.T) {
	p := NewPool[int]()
	p.Insert(1)
	if _, ok := p.Get(Handle[int]{index: 99, generation: 1}); ok {
		t.Fatal("Get succeeded against an index the pool never allocated")
	}
}

func TestPoolDoubleRemoveFails(t *testing.T) {
	p := NewPool[int]()
	h := p.Insert(1)
	if _, ok := p.Remove(h); !ok {
		t.Fatal("first Remove unexpectedly failed")
	}
	if _, ok := p.Remove(h); ok {
		t.Fatal("second Remove against an already-removed handle should fail")
	}
}
