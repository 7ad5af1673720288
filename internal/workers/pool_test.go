package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := NewPool(2, 8, nil)

	var ran atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		ok := p.Submit(func() {
			defer wg.Done()
			ran.Add(1)
		})
		if !ok {
			t.Fatal("Submit returned false on a running pool")
		}
	}
	wg.Wait()

	if got := ran.Load(); got != 20 {
		t.Fatalf("ran %d tasks, want 20", got)
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestPoolStopDrainsQueue(t *testing.T) {
	p := NewPool(1, 16, nil)

	var ran atomic.Int64
	for i := 0; i < 10; i++ {
		p.Submit(func() { ran.Add(1) })
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := ran.Load(); got != 10 {
		t.Fatalf("ran %d tasks after drain, want 10", got)
	}
}

func TestPoolRejectsAfterStop(t *testing.T) {
	p := NewPool(1, 1, nil)
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.Submit(func() {}) {
		t.Fatal("Submit succeeded on a stopped pool")
	}
}

func TestPoolRecoversFromPanic(t *testing.T) {
	p := NewPool(1, 4, nil)

	done := make(chan struct{})
	p.Submit(func() { panic("boom") })
	p.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
	p.Stop(context.Background())
}
