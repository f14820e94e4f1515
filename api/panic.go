// File: api/panic.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Panic value re-raised on the dispatching goroutine.

package api

import "fmt"

// CallbackPanic carries a panic recovered inside a worker back to the caller
// of a dispatch. BatchStart is the first index of the batch whose callback
// panicked; the failing element lies in that batch.
type CallbackPanic struct {
	WorkerID   int
	BatchStart int
	Value      any
	Stack      []byte
}

func (p *CallbackPanic) Error() string {
	return fmt.Sprintf("parfor: callback panicked on worker %d in batch starting at %d: %v", p.WorkerID, p.BatchStart, p.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (p *CallbackPanic) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}
