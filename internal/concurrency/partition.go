// File: internal/concurrency/partition.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Static partitioning of [0, count) into contiguous per-worker shares.

package concurrency

// StaticShare returns the range owned by worker id when count items are
// split evenly across parts workers. The first count%parts workers take
// one extra item, so shares differ in size by at most one.
func StaticShare(count, parts, id int) (start, end int) {
	if parts <= 0 || id < 0 || id >= parts || count <= 0 {
		return 0, 0
	}
	avg := count / parts
	left := count % parts
	n := avg
	if id < left {
		n++
	}
	start = avg*id + min(id, left)
	return start, start + n
}

// WorkerCount clamps detected parallelism to the hard maximum and, when
// positive, the caller's limit.
func WorkerCount(detected, hardMax, limit int) int {
	n := min(detected, hardMax)
	if limit > 0 && limit < n {
		n = limit
	}
	return n
}
