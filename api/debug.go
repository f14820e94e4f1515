// Package api
// Author: momentics
//
// Live introspection of pools in production workloads.

package api

// Debug exposes runtime introspection for pools and their workers.
type Debug interface {
	// DumpState emits a snapshot of registered probes.
	DumpState() map[string]any

	// RegisterProbe registers a named probe.
	RegisterProbe(name string, fn func() any)
}
