//go:build linux
// +build linux

// File: internal/concurrency/topology_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux: count the CPUs in the scheduler affinity mask, which honours
// taskset and cgroup cpusets unlike the online CPU count.

package concurrency

import "golang.org/x/sys/unix"

func platformParallelism() (int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0, err
	}
	return set.Count(), nil
}
