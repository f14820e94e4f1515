//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific implementation for setting thread CPU affinity through
// sched_setaffinity(2). Pure Go, no libnuma required.

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-parfor/api"
)

// processSet is the mask inherited by the process at startup.
var processSet, processErr = loadProcessSet()

func loadProcessSet() (unix.CPUSet, error) {
	var set unix.CPUSet
	err := unix.SchedGetaffinity(0, &set)
	return set, err
}

// setAffinityPlatform sets thread affinity to a given CPU for Linux.
func setAffinityPlatform(cpuID int) error {
	if cpuID < 0 {
		return fmt.Errorf("affinity: cpu %d: %w", cpuID, api.ErrInvalidArgument)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if set.Count() == 0 {
		return fmt.Errorf("affinity: cpu %d out of mask range: %w", cpuID, api.ErrInvalidArgument)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity cpu %d: %w", cpuID, err)
	}
	return nil
}

func resetAffinityPlatform() error {
	if processErr != nil {
		return fmt.Errorf("affinity: process mask unavailable: %w", processErr)
	}
	set := processSet
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity reset: %w", err)
	}
	return nil
}

func cpusPlatform() ([]int, error) {
	if processErr != nil {
		return nil, fmt.Errorf("affinity: sched_getaffinity: %w", processErr)
	}
	set := processSet
	cpus := make([]int, 0, set.Count())
	for cpu := 0; len(cpus) < cap(cpus); cpu++ {
		if set.IsSet(cpu) {
			cpus = append(cpus, cpu)
		}
	}
	return cpus, nil
}
