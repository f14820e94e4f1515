//go:build !linux && !windows
// +build !linux,!windows

// File: internal/concurrency/topology_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import "runtime"

func platformParallelism() (int, error) {
	return runtime.NumCPU(), nil
}
