// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Control adapter implementing api.Control over a set of parfor pools.

package adapters

import (
	"sync"

	"github.com/momentics/hioload-parfor/api"
	"github.com/momentics/hioload-parfor/control"
	"github.com/momentics/hioload-parfor/parfor"
)

var _ api.Control = (*ControlAdapter)(nil)

// ControlAdapter aggregates config, counters and probes of several pools.
type ControlAdapter struct {
	mu      sync.RWMutex
	pools   []*parfor.Pool
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
}

// NewControlAdapter creates an adapter with platform probes registered and
// the given pools attached.
func NewControlAdapter(pools ...*parfor.Pool) *ControlAdapter {
	c := &ControlAdapter{
		metrics: control.NewMetricsRegistry(),
		debug:   control.NewDebugProbes(),
	}
	control.RegisterPlatformProbes(c.debug)
	for _, p := range pools {
		c.Attach(p)
	}
	return c
}

// Attach adds a pool; its stats appear under "pool.<id>".
func (c *ControlAdapter) Attach(p *parfor.Pool) {
	c.mu.Lock()
	c.pools = append(c.pools, p)
	c.mu.Unlock()
	c.debug.RegisterProbe("pool."+p.ID(), func() any { return p.Stats() })
}

// GetConfig returns the effective settings of every attached pool.
func (c *ControlAdapter) GetConfig() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg := make(map[string]any, len(c.pools))
	for _, p := range c.pools {
		st := p.Stats()
		cfg[p.ID()] = map[string]any{
			"workers":    st.Workers,
			"batch_size": st.BatchSize,
			"schedule":   st.Schedule.String(),
		}
	}
	return cfg
}

// Stats combines totals across pools, custom metrics and debug probes.
func (c *ControlAdapter) Stats() map[string]any {
	c.mu.RLock()
	var dispatches uint64
	var elements, claims, panics int64
	running := 0
	for _, p := range c.pools {
		st := p.Stats()
		dispatches += st.Dispatches
		elements += st.Elements
		claims += st.Claims
		panics += st.Panics
		if st.Running {
			running++
		}
	}
	pools := len(c.pools)
	c.mu.RUnlock()

	combined := c.metrics.GetSnapshot()
	combined["pools"] = pools
	combined["pools_running"] = running
	combined["dispatches"] = dispatches
	combined["elements"] = elements
	combined["claims"] = claims
	combined["panics"] = panics
	for k, v := range c.debug.DumpState() {
		combined["debug."+k] = v
	}
	return combined
}

// SetMetric records a custom value reported by Stats.
func (c *ControlAdapter) SetMetric(key string, value any) {
	c.metrics.Set(key, value)
}

// RegisterDebugProbe adds a probe reported by Stats under "debug.<name>".
func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}
