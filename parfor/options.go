// File: parfor/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options for Pool.

package parfor

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/momentics/hioload-parfor/api"
	"github.com/momentics/hioload-parfor/control"
)

// Option configures a Pool.
type Option func(*options)

type options struct {
	maxWorkers int
	batchSize  int
	schedule   api.Schedule
	pin        bool
	history    int
	logger     *slog.Logger
	metrics    *control.Metrics
	probes     *control.DebugProbes
	tracer     trace.Tracer
	detect     func() (int, error)
}

func defaultOptions() options {
	return options{
		batchSize: DefaultBatchSize,
		schedule:  api.ScheduleDynamic,
		history:   DefaultHistory,
	}
}

// WithMaxWorkers sets the worker limit used when Init is called with 0.
func WithMaxWorkers(n int) Option {
	return func(o *options) { o.maxWorkers = n }
}

// WithBatchSize sets how many contiguous elements one claim grants.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithSchedule selects dynamic batch claiming or static even shares.
func WithSchedule(s api.Schedule) Option {
	return func(o *options) { o.schedule = s }
}

// WithPinning binds worker i to the i-th CPU of the process mask. Init fails
// if pinning is unsupported or refused by the OS.
func WithPinning(pin bool) Option {
	return func(o *options) { o.pin = pin }
}

// WithHistory keeps the last n dispatch records; 0 disables the history.
func WithHistory(n int) Option {
	return func(o *options) { o.history = n }
}

// WithLogger sets the logger; the pool adds its own id attribute.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics reports to the given collectors under the pool id label.
func WithMetrics(m *control.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithProbes registers the pool's debug probes in dp.
func WithProbes(dp *control.DebugProbes) Option {
	return func(o *options) { o.probes = dp }
}

// WithTracer emits one span per dispatch.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithTopology replaces hardware parallelism detection.
func WithTopology(detect func() (int, error)) Option {
	return func(o *options) { o.detect = detect }
}
