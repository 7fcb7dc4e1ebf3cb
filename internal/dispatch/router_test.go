package dispatch

import (
	"testing"
	"time"
)

func TestRouter_EmitInOrder(t *testing.T) {
	r := NewRouter()
	ch := r.Open("inv-1")

	if !r.Emit("inv-1", "one") {
		t.Fatal("emit to open window should succeed")
	}
	if !r.Emit("inv-1", "two") {
		t.Fatal("emit to open window should succeed")
	}
	r.Finish("inv-1")

	var got []string
	for chunk := range ch {
		got = append(got, chunk.Text)
	}
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("chunks = %v, want [one two]", got)
	}
}

func TestRouter_EmitUnknownInvocation(t *testing.T) {
	r := NewRouter()
	if r.Emit("nope", "dropped") {
		t.Error("emit to unknown invocation should report false")
	}
}

func TestRouter_EmitAfterFinish(t *testing.T) {
	r := NewRouter()
	ch := r.Open("inv-1")
	r.Finish("inv-1")

	if r.Emit("inv-1", "late") {
		t.Error("emit after finish should report false")
	}
	if _, open := <-ch; open {
		t.Error("channel should be closed after Finish")
	}
	// Double finish is safe.
	r.Finish("inv-1")
}

func TestRouter_EmitBlocksOnFullWindow(t *testing.T) {
	r := NewRouter()
	ch := r.Open("inv-1")
	for i := 0; i < windowBuffer; i++ {
		if !r.Emit("inv-1", "fill") {
			t.Fatalf("emit %d should succeed", i)
		}
	}

	done := make(chan bool, 1)
	go func() { done <- r.Emit("inv-1", "over") }()

	select {
	case ok := <-done:
		t.Fatalf("emit on a full window returned %v before the reader drained", ok)
	case <-time.After(50 * time.Millisecond):
	}

	<-ch // free one slot
	select {
	case ok := <-done:
		if !ok {
			t.Error("emit should deliver once the window drains")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("emit never completed after drain")
	}
}

func TestRouter_Release(t *testing.T) {
	r := NewRouter()
	ch := r.Open("inv-1")
	r.Release("inv-1")

	if _, open := <-ch; open {
		t.Error("channel should be closed after Release")
	}
	if r.Emit("inv-1", "x") {
		t.Error("emit after release should report false")
	}
	// Release after finish is safe too.
	r.Open("inv-2")
	r.Finish("inv-2")
	r.Release("inv-2")
}
