// Package api
// Author: momentics@gmail.com
//
// CPU affinity and topology definitions.

package api

// Affinity controls which CPUs the calling OS thread may run on.
type Affinity interface {
	// Pin locks the current goroutine to its OS thread and binds it to cpuID.
	Pin(cpuID int) error
	// Unpin restores the process-wide CPU mask.
	Unpin() error
	// CPUs lists the CPUs available to the process.
	CPUs() ([]int, error)
}
