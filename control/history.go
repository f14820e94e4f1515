// control/history.go
// Author: momentics <momentics@gmail.com>
//
// Bounded FIFO of recent dispatch records.

package control

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-parfor/api"
)

// History keeps the last limit dispatch records; older ones are evicted.
type History struct {
	mu    sync.Mutex
	q     *queue.Queue
	limit int
	seq   uint64
}

// NewHistory creates a history holding at most limit records.
// limit <= 0 disables recording.
func NewHistory(limit int) *History {
	return &History{q: queue.New(), limit: limit}
}

// Record appends r, assigning it the next sequence number, and returns it.
func (h *History) Record(r api.DispatchRecord) api.DispatchRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	r.Seq = h.seq
	if h.limit <= 0 {
		return r
	}
	h.q.Add(r)
	for h.q.Length() > h.limit {
		h.q.Remove()
	}
	return r
}

// Snapshot returns the retained records, oldest first.
func (h *History) Snapshot() []api.DispatchRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]api.DispatchRecord, h.q.Length())
	for i := range out {
		out[i] = h.q.Get(i).(api.DispatchRecord)
	}
	return out
}

// Last returns the most recent record.
func (h *History) Last() (api.DispatchRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.q.Length()
	if n == 0 {
		return api.DispatchRecord{}, false
	}
	return h.q.Get(n - 1).(api.DispatchRecord), true
}

// Len returns the number of retained records.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.q.Length()
}

// Total returns how many records were ever written.
func (h *History) Total() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}
