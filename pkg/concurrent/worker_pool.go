// Package concurrent runs a fixed set of jobs over a bounded number of goroutines.
package concurrent

import "sync"

// WorkerPool fans jobs out to numWorkers goroutines. Usage:
//
//	wp := NewWorkerPool[In, Out](workers, len(items))
//	for _, it := range items { wp.AddJob(it) }
//	wp.Close()
//	wp.Start(fn)
//	wp.Wait()
//	for res := range wp.CollectResults() { ... }
//
// Both channels are buffered to jobCount, so AddJob never blocks as long as
// no more than jobCount jobs are added.
type WorkerPool[T any, G any] struct {
	numWorkers int
	jobQueue   chan Job[T]
	results    chan G
	wg         sync.WaitGroup
	nextID     int
}

func NewWorkerPool[T any, G any](numWorkers, jobCount int) *WorkerPool[T, G] {
	return &WorkerPool[T, G]{
		numWorkers: max(numWorkers, 1),
		jobQueue:   make(chan Job[T], jobCount),
		results:    make(chan G, jobCount),
	}
}

func (wp *WorkerPool[T, G]) AddJob(item T) {
	wp.jobQueue <- Job[T]{ID: wp.nextID, JobItem: item}
	wp.nextID++
}

// Close signals that no more jobs are coming. Must be called before Wait.
func (wp *WorkerPool[T, G]) Close() {
	close(wp.jobQueue)
}

func (wp *WorkerPool[T, G]) Start(fn JobFunc[T, G]) {
	for range wp.numWorkers {
		wp.wg.Add(1)
		go wp.worker(fn)
	}
}

func (wp *WorkerPool[T, G]) worker(fn JobFunc[T, G]) {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		wp.results <- fn(job.JobItem)
	}
}

// Wait blocks until every job is processed, then closes the result channel.
func (wp *WorkerPool[T, G]) Wait() {
	wp.wg.Wait()
	close(wp.results)
}

func (wp *WorkerPool[T, G]) CollectResults() <-chan G {
	return wp.results
}
