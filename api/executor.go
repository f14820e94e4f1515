// Package api
// Author: momentics
//
// Executor contract for data-parallel dispatch over a fixed worker set.

package api

// ParallelExecutor applies one callback across an array on a fixed set of
// workers. Dispatch is synchronous and not reentrant.
type ParallelExecutor interface {
	// Init starts the workers; calling it on a running executor does nothing.
	Init(maxWorkers int) error

	// Shutdown stops and joins every worker.
	Shutdown() error

	// Dispatch runs fn on each stride-sized element of buf[:stride*count].
	Dispatch(buf []byte, stride, count int, fn func(elem []byte)) error

	// Range runs fn over disjoint half-open index ranges covering [0, count).
	Range(count int, fn func(start, end int)) error

	// Workers returns the number of worker threads, zero when stopped.
	Workers() int
}
