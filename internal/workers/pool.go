// Package workers runs independent jobs on a fixed number of goroutines and
// collects their results in input order.
package workers

import (
	"context"
	"sync"
)

// DefaultWorkers is used when a pool is created with a non-positive size.
const DefaultWorkers = 10

// WorkerPool manages a pool of worker goroutines for parallel batch jobs
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// Size returns the number of workers
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

// Result is the outcome of one job.
type Result[R any] struct {
	Value R
	Err   error
}

// jobItem represents a single job
type jobItem[T any] struct {
	index int
	item  T
}

// resultItem represents the result of a job
type resultItem[R any] struct {
	index  int
	result Result[R]
}

// Process applies fn to every item on the pool's workers and returns the
// results in the same order as items. Jobs not yet started when ctx is
// cancelled report ctx.Err() without calling fn.
func Process[T, R any](ctx context.Context, wp *WorkerPool, items []T, fn func(context.Context, T) (R, error)) []Result[R] {
	numItems := len(items)
	if numItems == 0 {
		return []Result[R]{}
	}

	jobs := make(chan jobItem[T], numItems)
	results := make(chan resultItem[R], numItems)

	var wg sync.WaitGroup
	numActualWorkers := wp.numWorkers
	if numItems < numActualWorkers {
		numActualWorkers = numItems // Don't spawn more workers than items
	}

	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, fn)
		}()
	}

	for idx, item := range items {
		jobs <- jobItem[T]{index: idx, item: item}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	resultSlice := make([]Result[R], numItems)
	for r := range results {
		resultSlice[r.index] = r.result
	}

	return resultSlice
}

func worker[T, R any](
	ctx context.Context,
	jobs <-chan jobItem[T],
	results chan<- resultItem[R],
	fn func(context.Context, T) (R, error),
) {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- resultItem[R]{index: job.index, result: Result[R]{Err: err}}
			continue
		}

		value, err := fn(ctx, job.item)
		results <- resultItem[R]{
			index:  job.index,
			result: Result[R]{Value: value, Err: err},
		}
	}
}
