// File: internal/concurrency/topology.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Hardware parallelism detection with per-platform backends.

package concurrency

import (
	"fmt"

	"github.com/momentics/hioload-parfor/api"
)

// DetectParallelism returns the number of logical CPUs this process may use.
// There is no fallback: a failed probe is reported as ErrTopologyUnavailable.
func DetectParallelism() (int, error) {
	n, err := platformParallelism()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", api.ErrTopologyUnavailable, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: probe reported %d CPUs", api.ErrTopologyUnavailable, n)
	}
	return n, nil
}
