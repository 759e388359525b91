package worker

import (
	"context"
	"sync"
)

// Task is a unit of work executed by a pool worker
type Task[T any] func(ctx context.Context) T

// Pool runs tasks on a fixed number of workers
type Pool[T any] struct {
	workers    int
	tasks      chan Task[T]
	results    chan T
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a pool whose workers stop when parent is cancelled
func NewPool[T any](parent context.Context, workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool[T]{
		workers:    workers,
		tasks:      make(chan Task[T], workers*2),
		results:    make(chan T, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers
func (p *Pool[T]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool[T]) worker() {
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

// Submit queues a task. It reports false when the pool was shut down
// before the task could be queued.
func (p *Pool[T]) Submit(task Task[T]) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.tasks <- task:
		return true
	}
}

// Wait closes the queue and collects results in completion order. Results
// must be drained concurrently with Submit when more tasks are queued than
// the buffers hold, so callers submit from a separate goroutine.
func (p *Pool[T]) Wait() []T {
	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []T
	for result := range p.results {
		results = append(results, result)
	}
	return results
}

// Close signals that no more tasks will be submitted
func (p *Pool[T]) Close() {
	close(p.tasks)
}

// Shutdown cancels running tasks and stops the workers
func (p *Pool[T]) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[T]) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
