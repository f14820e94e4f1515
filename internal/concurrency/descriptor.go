// File: internal/concurrency/descriptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Work descriptor shared by the dispatcher and all workers of a pool.

package concurrency

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-parfor/api"
)

// BatchFunc processes the half-open index range [start, end).
type BatchFunc func(start, end int)

// Descriptor describes the live dispatch. The plain fields are written by
// the dispatcher strictly before the start barrier and only read by workers
// afterwards; the cursor is the only field mutated concurrently.
type Descriptor struct {
	count    int
	batch    int
	parts    int
	schedule api.Schedule
	body     BatchFunc

	_      cpu.CacheLinePad
	cursor atomic.Int64
	_      cpu.CacheLinePad

	claims  atomic.Int64
	aborted atomic.Bool
	fault   atomic.Pointer[api.CallbackPanic]
}

// Reset prepares the descriptor for a new dispatch.
func (d *Descriptor) Reset(count, batch, parts int, schedule api.Schedule, body BatchFunc) {
	d.count = count
	d.batch = batch
	d.parts = parts
	d.schedule = schedule
	d.body = body
	d.cursor.Store(0)
	d.claims.Store(0)
	d.aborted.Store(false)
	d.fault.Store(nil)
}

// Claim grants the caller an exclusive batch. ok is false once the cursor
// has passed count or the dispatch was aborted.
func (d *Descriptor) Claim() (start, end int, ok bool) {
	if d.aborted.Load() {
		return 0, 0, false
	}
	s := d.cursor.Add(int64(d.batch)) - int64(d.batch)
	if s >= int64(d.count) {
		return 0, 0, false
	}
	start = int(s)
	return start, min(start+d.batch, d.count), true
}

// Abort records the first callback panic and stops further claims.
// Later panics in the same dispatch are dropped.
func (d *Descriptor) Abort(p *api.CallbackPanic) {
	d.fault.CompareAndSwap(nil, p)
	d.aborted.Store(true)
}

// Aborted reports whether a callback panicked during this dispatch.
func (d *Descriptor) Aborted() bool {
	return d.aborted.Load()
}

// Fault returns the recorded panic, if any.
func (d *Descriptor) Fault() *api.CallbackPanic {
	return d.fault.Load()
}

// Claims returns the number of batches executed so far.
func (d *Descriptor) Claims() int64 {
	return d.claims.Load()
}
