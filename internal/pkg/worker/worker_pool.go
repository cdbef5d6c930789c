package worker

import (
	"context"
	"sync"
)

// Task represents a unit of work to be processed by a worker
type Task func()

// WorkerPool runs submitted tasks on a fixed number of goroutines sharing one queue.
type WorkerPool struct {
	taskQueue chan Task
	stop      chan struct{}
	wg        sync.WaitGroup
	once      sync.Once
}

// NewWorkerPool creates a new WorkerPool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	pool := &WorkerPool{
		taskQueue: make(chan Task),
		stop:      make(chan struct{}),
	}

	for i := 0; i < numWorkers; i++ {
		pool.wg.Add(1)
		go pool.run()
	}

	return pool
}

func (p *WorkerPool) run() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.taskQueue:
			task()
		case <-p.stop:
			return
		}
	}
}

// Submit blocks until a worker takes the task. It returns false if ctx ends or the pool is stopped first.
func (p *WorkerPool) Submit(ctx context.Context, task Task) bool {
	select {
	case p.taskQueue <- task:
		return true
	case <-ctx.Done():
		return false
	case <-p.stop:
		return false
	}
}

// Stop stops the workers and waits for running tasks to finish.
func (p *WorkerPool) Stop() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
}
