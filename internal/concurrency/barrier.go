// File: internal/concurrency/barrier.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reusable rendezvous barrier built on sync.Cond with a generation counter.

package concurrency

import "sync"

// Barrier blocks each caller of Wait until all parties have arrived.
// It resets itself once tripped and can be reused indefinitely.
// The mutex hand-off orders every write made before Wait ahead of
// every read made after it, in all parties.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	arrived    int
	generation uint64
}

// NewBarrier creates a barrier for the given number of parties.
func NewBarrier(parties int) *Barrier {
	if parties <= 0 {
		panic("concurrency: barrier parties must be > 0")
	}
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until all parties have called Wait for the current generation.
// It reports true to exactly one party per generation, the one that tripped it.
func (b *Barrier) Wait() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.generation
	b.arrived++
	if b.arrived == b.parties {
		b.arrived = 0
		b.generation++
		b.cond.Broadcast()
		return true
	}
	// Spurious wakeups and late waiters of the next generation are filtered
	// by comparing generations.
	for gen == b.generation {
		b.cond.Wait()
	}
	return false
}

// Parties returns the number of parties required to trip the barrier.
func (b *Barrier) Parties() int {
	return b.parties
}

// Generation returns how many times the barrier has tripped.
func (b *Barrier) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}
