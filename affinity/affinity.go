// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_windows.go, etc.) guarded by build tags.

package affinity

import (
	"runtime"

	"github.com/momentics/hioload-parfor/api"
)

var _ api.Affinity = Pinner{}

// SetAffinity binds the calling OS thread to a given logical CPU.
// The caller must already hold runtime.LockOSThread, otherwise the
// binding applies to whatever goroutine next runs on the thread.
// On unsupported platforms returns api.ErrAffinityNotSupported.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}

// Reset restores the process-wide CPU mask on the calling OS thread.
func Reset() error {
	return resetAffinityPlatform()
}

// CPUs lists the logical CPUs the process may run on, in ascending order.
func CPUs() ([]int, error) {
	return cpusPlatform()
}

// Pinner adapts the package functions to api.Affinity.
type Pinner struct{}

// Pin locks the goroutine to its OS thread and binds the thread to cpuID.
// The goroutine stays locked if binding fails.
func (Pinner) Pin(cpuID int) error {
	runtime.LockOSThread()
	return SetAffinity(cpuID)
}

// Unpin restores the process mask and releases the OS thread lock.
func (Pinner) Unpin() error {
	err := Reset()
	runtime.UnlockOSThread()
	return err
}

// CPUs implements api.Affinity.
func (Pinner) CPUs() ([]int, error) {
	return CPUs()
}
