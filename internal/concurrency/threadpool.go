// File: internal/concurrency/threadpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ThreadPool owns a fixed set of OS-thread-locked workers that apply one
// batch body across [0, count) per dispatch, synchronised by a barrier.

package concurrency

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-parfor/affinity"
	"github.com/momentics/hioload-parfor/api"
)

const (
	// HardMaxWorkers caps the number of threads regardless of detected cores.
	HardMaxWorkers = 64
	// DefaultBatchSize is the number of elements granted per claim.
	DefaultBatchSize = 512
)

// Config describes a ThreadPool. Zero values select defaults.
type Config struct {
	BatchSize int
	Schedule  api.Schedule
	// Pin binds worker i to the i-th CPU of the process mask.
	Pin bool
	// Detect reports available hardware parallelism.
	Detect func() (int, error)
}

// RunStats reports what a dispatch did.
type RunStats struct {
	Claims int64
	Panic  *api.CallbackPanic
}

// ThreadPool is not reentrant: one Run at a time, enforced by the busy flag.
type ThreadPool struct {
	cfg Config

	mu       sync.Mutex // serialises Start and Close
	running  atomic.Bool
	busy     atomic.Bool
	shutdown atomic.Bool

	barrier *Barrier
	workers []*worker
	wg      sync.WaitGroup
	desc    Descriptor
}

// NewThreadPool creates a stopped pool.
func NewThreadPool(cfg Config) *ThreadPool {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Detect == nil {
		cfg.Detect = DetectParallelism
	}
	return &ThreadPool{cfg: cfg}
}

// Start spawns the workers. It is a no-op on a running pool.
// limit <= 0 means no caller limit.
func (tp *ThreadPool) Start(limit int) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.running.Load() {
		return nil
	}

	detected, err := tp.cfg.Detect()
	if err == nil && detected <= 0 {
		err = fmt.Errorf("detected %d CPUs", detected)
	}
	if err != nil {
		if !errors.Is(err, api.ErrTopologyUnavailable) {
			err = fmt.Errorf("%w: %v", api.ErrTopologyUnavailable, err)
		}
		return err
	}
	n := WorkerCount(detected, HardMaxWorkers, limit)

	cpus := make([]int, n)
	for i := range cpus {
		cpus[i] = -1
	}
	if tp.cfg.Pin {
		avail, err := affinity.CPUs()
		if err != nil {
			return fmt.Errorf("%w: %v", api.ErrWorkerSpawn, err)
		}
		if len(avail) == 0 {
			return fmt.Errorf("%w: empty CPU mask", api.ErrWorkerSpawn)
		}
		for i := range cpus {
			cpus[i] = avail[i%len(avail)]
		}
	}

	tp.shutdown.Store(false)
	tp.barrier = NewBarrier(n + 1)
	tp.workers = make([]*worker, n)

	ready := make(chan error, n)
	// true releases a worker into the barrier loop, a closed gate aborts it.
	gate := make(chan bool, n)
	for i := 0; i < n; i++ {
		w := newWorker(i, cpus[i], tp)
		tp.workers[i] = w
		tp.wg.Add(1)
		go w.run(ready, gate)
	}

	var spawnErr error
	for i := 0; i < n; i++ {
		if err := <-ready; err != nil && spawnErr == nil {
			spawnErr = err
		}
	}
	if spawnErr != nil {
		close(gate)
		tp.wg.Wait()
		tp.barrier = nil
		return fmt.Errorf("%w: %v", api.ErrWorkerSpawn, spawnErr)
	}

	for i := 0; i < n; i++ {
		gate <- true
	}
	tp.running.Store(true)
	return nil
}

// Close wakes every worker with the shutdown flag set and joins them.
func (tp *ThreadPool) Close() error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if !tp.running.Load() {
		return api.ErrNotInitialized
	}
	if !tp.busy.CompareAndSwap(false, true) {
		return api.ErrPoolBusy
	}
	defer tp.busy.Store(false)

	tp.running.Store(false)
	tp.shutdown.Store(true)
	tp.barrier.Wait()
	tp.wg.Wait()
	tp.barrier = nil
	return nil
}

// Run applies body over [0, count) and returns once every worker has
// exhausted its claims. It cannot be cancelled.
func (tp *ThreadPool) Run(count int, body BatchFunc) (RunStats, error) {
	if !tp.busy.CompareAndSwap(false, true) {
		return RunStats{}, api.ErrPoolBusy
	}
	defer tp.busy.Store(false)

	if !tp.running.Load() {
		return RunStats{}, api.ErrNotInitialized
	}
	if count < 0 || body == nil {
		return RunStats{}, fmt.Errorf("%w: count=%d body=%t", api.ErrInvalidArgument, count, body != nil)
	}
	if count == 0 {
		return RunStats{}, nil
	}

	tp.desc.Reset(count, tp.cfg.BatchSize, len(tp.workers), tp.cfg.Schedule, body)
	tp.barrier.Wait() // start of work
	tp.barrier.Wait() // end of work

	return RunStats{Claims: tp.desc.Claims(), Panic: tp.desc.Fault()}, nil
}

// NumWorkers returns the number of workers, zero when stopped.
func (tp *ThreadPool) NumWorkers() int {
	if !tp.running.Load() {
		return 0
	}
	return len(tp.workers)
}

// Running reports whether Start has completed and Close has not.
func (tp *ThreadPool) Running() bool {
	return tp.running.Load()
}

// BatchSize returns the configured claim size.
func (tp *ThreadPool) BatchSize() int {
	return tp.cfg.BatchSize
}

// Schedule returns the configured schedule.
func (tp *ThreadPool) Schedule() api.Schedule {
	return tp.cfg.Schedule
}

// States returns the phase of each worker of the current or most recent
// worker set.
func (tp *ThreadPool) States() []api.WorkerState {
	tp.mu.Lock()
	workers := tp.workers
	tp.mu.Unlock()

	out := make([]api.WorkerState, len(workers))
	for i, w := range workers {
		out[i] = w.State()
	}
	return out
}
