//go:build windows
// +build windows

// File: affinity/affinity_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows-specific implementation for setting thread CPU affinity.
// Only the first processor group (64 CPUs) is addressable.

package affinity

import (
	"fmt"
	"math/bits"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-parfor/api"
)

var (
	kernel32                   = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadAffinityMask  = kernel32.NewProc("SetThreadAffinityMask")
	procGetProcessAffinityMask = kernel32.NewProc("GetProcessAffinityMask")
)

func processMask() (uintptr, error) {
	var procMask, sysMask uintptr
	ret, _, err := procGetProcessAffinityMask.Call(
		uintptr(windows.CurrentProcess()),
		uintptr(unsafe.Pointer(&procMask)),
		uintptr(unsafe.Pointer(&sysMask)),
	)
	if ret == 0 {
		return 0, fmt.Errorf("affinity: GetProcessAffinityMask: %w", err)
	}
	return procMask, nil
}

func setThreadMask(mask uintptr) error {
	thread, err := windows.GetCurrentThread()
	if err != nil {
		return fmt.Errorf("affinity: GetCurrentThread: %w", err)
	}
	ret, _, err := procSetThreadAffinityMask.Call(uintptr(thread), mask)
	if ret == 0 {
		return fmt.Errorf("affinity: SetThreadAffinityMask: %w", err)
	}
	return nil
}

// setAffinityPlatform sets thread affinity to a given CPU for Windows.
func setAffinityPlatform(cpuID int) error {
	if cpuID < 0 || cpuID >= bits.UintSize {
		return fmt.Errorf("affinity: cpu %d: %w", cpuID, api.ErrInvalidArgument)
	}
	return setThreadMask(uintptr(1) << cpuID)
}

func resetAffinityPlatform() error {
	mask, err := processMask()
	if err != nil {
		return err
	}
	return setThreadMask(mask)
}

func cpusPlatform() ([]int, error) {
	mask, err := processMask()
	if err != nil {
		return nil, err
	}
	cpus := make([]int, 0, bits.OnesCount64(uint64(mask)))
	for cpu := 0; cpu < bits.UintSize; cpu++ {
		if mask&(uintptr(1)<<cpu) != 0 {
			cpus = append(cpus, cpu)
		}
	}
	return cpus, nil
}
