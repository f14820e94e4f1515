// File: parfor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package parfor provides a fixed-size, reusable worker pool that applies a
// single callback to every element of an array in parallel.
//
// Workers are OS threads created once by Init and joined by Shutdown. Each
// dispatch wakes them through a start barrier; they claim contiguous batches
// from a shared atomic cursor until the array is exhausted and meet the
// dispatcher again at an end barrier. Dispatch therefore returns only when
// every element has been processed.
//
// # Basic Usage
//
//	p := parfor.New()
//	if err := p.Init(0); err != nil { // 0: one worker per available CPU
//	    log.Fatal(err)
//	}
//	defer p.Shutdown()
//
//	nums := make([]int, 1_000_003)
//	err := parfor.ForEach(p, nums, func(x *int) { *x = *x * *x })
//
// Raw buffers with a fixed element stride go through Dispatch:
//
//	err := p.Dispatch(buf, 8, len(buf)/8, func(elem []byte) { ... })
//
// # Contract
//
// A pool runs one dispatch at a time. A second Dispatch issued while one is
// in flight, including one issued from inside a callback, fails with
// api.ErrPoolBusy. Dispatches cannot be cancelled or timed out.
//
// A callback must only touch the element it was given. If a callback
// panics, the remaining batches are abandoned, all workers still meet at the
// end barrier, and Dispatch re-panics on the caller's goroutine with an
// *api.CallbackPanic. A callback that calls runtime.Goexit, as t.FailNow
// does, is treated the same way with api.ErrCallbackExited as the value; the
// exited worker goroutine is replaced. The pool remains usable afterwards.
//
// # Tuning
//
// MaxWorkers caps parallelism regardless of detected cores. A larger batch
// size (WithBatchSize) lowers contention on the cursor but lengthens the tail
// when callback cost is uneven.
package parfor
