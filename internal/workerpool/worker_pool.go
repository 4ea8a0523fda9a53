package workerpool

import (
	"context"
	"runtime"
	"sync"
)

// WorkerPool runs submitted jobs on a fixed number of goroutines
type WorkerPool struct {
	workers  int
	jobQueue chan func()
	wg       sync.WaitGroup
	once     sync.Once
	closed   sync.Once
}

// New creates a pool with the given number of workers; <= 0 means NumCPU
func New(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Start launches the workers. Calling it more than once is a no-op.
func (wp *WorkerPool) Start() {
	wp.once.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

func (wp *WorkerPool) worker() {
	for job := range wp.jobQueue {
		job()
	}
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.jobQueue <- func() {
		defer wp.wg.Done()
		job()
	}
}

// Wait blocks until every submitted job has finished
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Close stops the workers after the queued jobs drain
func (wp *WorkerPool) Close() {
	wp.closed.Do(func() { close(wp.jobQueue) })
}

// Map applies fn to every input on a temporary pool and returns the
// results in input order. Inputs not yet started when ctx is cancelled
// are passed to fn with the cancelled context.
func Map[In, Out any](ctx context.Context, workers int, inputs []In, fn func(context.Context, int, In) Out) []Out {
	out := make([]Out, len(inputs))
	if len(inputs) == 0 {
		return out
	}
	if workers > len(inputs) {
		workers = len(inputs)
	}

	wp := New(workers)
	wp.Start()
	defer wp.Close()

	for i, in := range inputs {
		i, in := i, in
		wp.Submit(func() {
			out[i] = fn(ctx, i, in)
		})
	}
	wp.Wait()
	return out
}
