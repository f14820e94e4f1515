// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency core of hioload-parfor: a fixed set of OS-thread-locked
// workers, a reusable rendezvous barrier, and a shared work descriptor
// whose atomic cursor hands out disjoint index batches.
//
// One dispatch is two barrier trips. The dispatcher writes the descriptor,
// trips the start barrier, and waits on the end barrier; workers claim
// batches until the cursor passes the element count, then arrive at the end
// barrier. Shutdown reuses the start barrier with the shutdown flag set.
//
// Platform backends (topology detection) are selected by build tags.
package concurrency
