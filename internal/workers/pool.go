// Package workers provides the bounded pool that runs asynchronous
// command handlers off the message-delivery goroutine.
package workers

import (
	"context"
	"log/slog"
	"sync"
)

// Pool runs submitted tasks on a fixed number of goroutines. Submission
// is fire-and-forget: callers never learn when or whether a task ran,
// matching the pipeline's handoff semantics for async commands.
type Pool struct {
	queue   chan func()
	wg      sync.WaitGroup
	logger  *slog.Logger
	mu      sync.RWMutex
	stopped bool
}

// NewPool creates and starts a pool. Size defaults to 4 workers and
// queueDepth to 64 pending tasks.
func NewPool(size, queueDepth int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 4
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		queue:  make(chan func(), queueDepth),
		logger: logger.With("component", "workers"),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues a task, blocking when the queue is full. It returns
// false after the pool has been stopped.
func (p *Pool) Submit(task func()) bool {
	if task == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}
	p.queue <- task
	return true
}

// Stop drains queued tasks and waits for workers to finish, or until the
// context is done.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("async task panicked", "panic", r)
		}
	}()
	task()
}
