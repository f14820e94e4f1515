//go:build windows
// +build windows

// File: internal/concurrency/topology_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"errors"

	"golang.org/x/sys/windows"
)

func platformParallelism() (int, error) {
	n := windows.GetActiveProcessorCount(windows.ALL_PROCESSOR_GROUPS)
	if n == 0 {
		return 0, errors.New("GetActiveProcessorCount returned 0")
	}
	return int(n), nil
}
