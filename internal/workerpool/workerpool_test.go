package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitRunsAllTasks(t *testing.T) {
	p := New(4)
	defer p.Close()

	var count int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&count, 1)
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for all tasks to run")
	}

	if got := atomic.LoadInt64(&count); got != 50 {
		t.Fatalf("got %d completed tasks, want 50", got)
	}
}

func TestNewDefaultsToPositiveSize(t *testing.T) {
	p := New(0)
	defer p.Close()

	done := make(chan struct{})
	p.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}
