package queue

import "testing"

func TestFIFOOrder(t *testing.T) {
	q := New[int]()
	if !q.IsEmpty() {
		t.Fatal("new queue should be empty")
	}
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	if q.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", q.Len())
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() returned ok=false at i=%d", i)
		}
		if v != i {
			t.Fatalf("Pop() = %d, want %d (FIFO order violated)", v, i)
		}
	}
	if !q.IsEmpty() {
		t.Fatal("queue should be empty after draining")
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop() on empty queue returned ok=true")
	}
}

func TestInterleavedPushPop(t *testing.T) {
	q := New[string]()
	q.Push("a")
	q.Push("b")
	if v, _ := q.Pop(); v != "a" {
		t.Fatalf("Pop() = %q, want a", v)
	}
	q.Push("c")
	if v, _ := q.Pop(); v != "b" {
		t.Fatalf("Pop() = %q, want b", v)
	}
	if v, _ := q.Pop(); v != "c" {
		t.Fatalf("Pop() = %q, want c", v)
	}
}
