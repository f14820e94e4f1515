// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, configuration snapshots, and debug introspection for
// hioload-parfor pools.
//
// Provides concurrent-safe state handling primitives including:
//   - Config snapshots with change listeners
//   - Prometheus collectors for dispatch throughput and latency
//   - A bounded history of recent dispatches
//   - Debug probes exporting pool and worker state
package control
