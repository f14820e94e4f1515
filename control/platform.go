// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Platform probes: detected parallelism and the process CPU mask.

package control

import (
	"runtime"

	"github.com/momentics/hioload-parfor/affinity"
	"github.com/momentics/hioload-parfor/internal/concurrency"
)

// RegisterPlatformProbes sets platform debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.os", func() any {
		return runtime.GOOS + "/" + runtime.GOARCH
	})
	dp.RegisterProbe("platform.cpus", func() any {
		n, err := concurrency.DetectParallelism()
		if err != nil {
			return err.Error()
		}
		return n
	})
	dp.RegisterProbe("platform.cpu_mask", func() any {
		cpus, err := affinity.CPUs()
		if err != nil {
			return err.Error()
		}
		return cpus
	})
}
