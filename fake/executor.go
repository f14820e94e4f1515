// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"fmt"

	"github.com/momentics/hioload-parfor/api"
)

var _ api.ParallelExecutor = (*Executor)(nil)

// Executor is a single-threaded api.ParallelExecutor for tests. It runs
// every callback on the calling goroutine, in index order.
type Executor struct {
	running bool
	busy    bool
	// Calls counts Dispatch and Range invocations that invoked the body,
	// which excludes empty ones.
	Calls int
}

func (e *Executor) Init(int) error {
	e.running = true
	return nil
}

func (e *Executor) Shutdown() error {
	if !e.running {
		return api.ErrNotInitialized
	}
	e.running = false
	return nil
}

func (e *Executor) Workers() int {
	if e.running {
		return 1
	}
	return 0
}

func (e *Executor) Dispatch(buf []byte, stride, count int, fn func(elem []byte)) error {
	if stride <= 0 || count < 0 || fn == nil || len(buf)/stride < count {
		return fmt.Errorf("%w: stride=%d count=%d len=%d", api.ErrInvalidArgument, stride, count, len(buf))
	}
	return e.Range(count, func(start, end int) {
		for i := start; i < end; i++ {
			off := i * stride
			fn(buf[off : off+stride : off+stride])
		}
	})
}

func (e *Executor) Range(count int, fn func(start, end int)) error {
	switch {
	case !e.running:
		return api.ErrNotInitialized
	case e.busy:
		return api.ErrPoolBusy
	case count < 0 || fn == nil:
		return fmt.Errorf("%w: count=%d", api.ErrInvalidArgument, count)
	}
	e.busy = true
	defer func() { e.busy = false }()
	if count > 0 {
		e.Calls++
		fn(0, count)
	}
	return nil
}
