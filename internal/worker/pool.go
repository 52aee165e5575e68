package worker

import (
	"context"
	"sync"
)

// Task is one unit of work. Tasks report failures inside R; the pool has no
// opinion about errors, it only runs things.
type Task[R any] func(ctx context.Context) R

// Pool runs tasks across a fixed set of goroutines. Results arrive in
// completion order, not submission order; callers needing determinism sort
// afterwards.
type Pool[R any] struct {
	workers   int
	tasks     chan Task[R]
	results   chan R
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPool creates a pool of the given size. Cancelling the parent context
// stops workers between tasks.
func NewPool[R any](parent context.Context, workers int) *Pool[R] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool[R]{
		workers: workers,
		tasks:   make(chan Task[R], workers*2), // buffered so submission rarely blocks
		results: make(chan R, workers*2),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers.
func (p *Pool[R]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool[R]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			result := task(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a task. Submissions after cancellation are dropped.
func (p *Pool[R]) Submit(task Task[R]) {
	select {
	case <-p.ctx.Done():
		return
	case p.tasks <- task:
	}
}

// Wait closes the queue, waits for the workers to drain it, and returns
// every result. Call exactly once, after the last Submit.
func (p *Pool[R]) Wait() []R {
	close(p.tasks)

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []R
	for result := range p.results {
		results = append(results, result)
	}

	p.cancel()
	return results
}

// Shutdown stops the pool without draining the queue.
func (p *Pool[R]) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[R]) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
