// File: internal/concurrency/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker loop: wait for work, claim and execute batches, wait for completion.

package concurrency

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync/atomic"

	"github.com/momentics/hioload-parfor/affinity"
	"github.com/momentics/hioload-parfor/api"
)

// worker is one OS thread of a ThreadPool.
type worker struct {
	id    int
	cpu   int // -1 when not pinned
	pool  *ThreadPool
	state atomic.Int32
}

func newWorker(id, cpu int, pool *ThreadPool) *worker {
	w := &worker{id: id, cpu: cpu, pool: pool}
	w.setState(api.WorkerWaitingForWork)
	return w
}

func (w *worker) setState(s api.WorkerState) {
	w.state.Store(int32(s))
}

// State returns the current phase of the worker.
func (w *worker) State() api.WorkerState {
	return api.WorkerState(w.state.Load())
}

// run is the thread body. It reports startup success on ready, waits for the
// gate and then cycles through the barrier until shutdown. The shutdown flag
// is only read after a barrier wake.
// The goroutine never unlocks its OS thread, so the thread is destroyed
// together with the goroutine.
func (w *worker) run(ready chan<- error, gate <-chan bool) {
	runtime.LockOSThread()
	if w.cpu >= 0 {
		if err := affinity.SetAffinity(w.cpu); err != nil {
			w.exit()
			ready <- fmt.Errorf("worker %d: pin to cpu %d: %w", w.id, w.cpu, err)
			return
		}
	}
	ready <- nil
	if ok := <-gate; !ok {
		w.exit()
		return
	}
	w.loop()
}

func (w *worker) exit() {
	w.setState(api.WorkerTerminated)
	w.pool.wg.Done()
}

func (w *worker) loop() {
	tp := w.pool
	inDispatch := false
	defer func() {
		if inDispatch {
			// A callback called runtime.Goexit. This goroutine is gone, so a
			// replacement takes its seat at the end barrier.
			go w.resume()
			return
		}
		w.exit()
	}()

	for {
		w.setState(api.WorkerWaitingForWork)
		tp.barrier.Wait()
		if tp.shutdown.Load() {
			return
		}

		w.setState(api.WorkerClaiming)
		inDispatch = true
		w.execute(&tp.desc)
		inDispatch = false

		w.setState(api.WorkerWaitingForCompletion)
		tp.barrier.Wait()
	}
}

// resume continues the loop of a worker whose goroutine was terminated
// mid-dispatch. Re-pinning is best effort; the fault is already recorded.
func (w *worker) resume() {
	runtime.LockOSThread()
	if w.cpu >= 0 {
		_ = affinity.SetAffinity(w.cpu)
	}
	w.setState(api.WorkerWaitingForCompletion)
	w.pool.barrier.Wait()
	w.loop()
}

// execute drains the descriptor according to its schedule. A panicking
// callback, or one that calls runtime.Goexit, aborts the dispatch.
func (w *worker) execute(d *Descriptor) {
	var (
		claims   int64
		cur      int
		finished bool
	)
	defer func() {
		d.claims.Add(claims)
		r := recover()
		if r == nil && !finished {
			r = api.ErrCallbackExited
		}
		if r != nil {
			d.Abort(&api.CallbackPanic{
				WorkerID:   w.id,
				BatchStart: cur,
				Value:      r,
				Stack:      debug.Stack(),
			})
		}
	}()

	if d.schedule == api.ScheduleStatic {
		start, end := StaticShare(d.count, d.parts, w.id)
		for s := start; s < end && !d.Aborted(); s += d.batch {
			cur = s
			claims++
			d.body(s, min(s+d.batch, end))
		}
		finished = true
		return
	}

	for {
		start, end, ok := d.Claim()
		if !ok {
			finished = true
			return
		}
		cur = start
		claims++
		d.body(start, end)
	}
}
