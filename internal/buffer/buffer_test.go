package buffer

import (
	"context"
	"testing"
	"time"
)

func TestCapacityOneDropsAllButLast(t *testing.T) {
	b := New[int](1)
	for i := 0; i < 5; i++ {
		b.Put(i)
	}
	if got := b.Dropped(); got != 4 {
		t.Fatalf("dropped = %d, want 4", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item, ok := b.Get(ctx)
	if !ok || item != 4 {
		t.Fatalf("Get() = %d, %v; want 4, true", item, ok)
	}
}

func TestGetBlocksUntilPut(t *testing.T) {
	b := New[string](1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan string, 1)
	go func() {
		v, ok := b.Get(ctx)
		if ok {
			done <- v
		}
	}()

	time.Sleep(50 * time.Millisecond)
	b.Put("frame-5")

	select {
	case v := <-done:
		if v != "frame-5" {
			t.Fatalf("got %q, want frame-5", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Get never returned after Put")
	}
}

func TestGetCancellation(t *testing.T) {
	b := New[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := b.Get(ctx)
	if ok {
		t.Fatal("expected ok=false after cancellation")
	}
}

func TestAudioBufferDepth(t *testing.T) {
	b := New[int](1024)
	for i := 0; i < 10; i++ {
		if dropped := b.Put(i); dropped {
			t.Fatalf("unexpected drop at i=%d", i)
		}
	}
	if b.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", b.Len())
	}
	if b.Dropped() != 0 {
		t.Fatalf("Dropped() = %d, want 0", b.Dropped())
	}
}
