// File: parfor/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool: lifecycle, Dispatch and Range over a fixed worker set.

package parfor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/momentics/hioload-parfor/api"
	"github.com/momentics/hioload-parfor/control"
	"github.com/momentics/hioload-parfor/internal/concurrency"
)

const (
	// MaxWorkers is the hard upper bound on worker threads per pool.
	MaxWorkers = concurrency.HardMaxWorkers
	// DefaultBatchSize is the number of elements granted per claim.
	DefaultBatchSize = concurrency.DefaultBatchSize
	// DefaultHistory is the number of dispatch records kept by default.
	DefaultHistory = 64

	tracerName = "github.com/momentics/hioload-parfor/parfor"
)

var _ api.ParallelExecutor = (*Pool)(nil)

// Pool is a data-parallel executor with a fixed set of worker threads.
// The zero value is not usable; create pools with New.
type Pool struct {
	id      string
	opts    options
	tp      *concurrency.ThreadPool
	log     *slog.Logger
	tracer  trace.Tracer
	metrics *control.PoolMetrics

	history  *control.History
	counters *control.MetricsRegistry
	config   *control.ConfigStore
	probes   *control.DebugProbes
}

// Stats is a point-in-time view of a pool.
type Stats struct {
	ID         string
	Running    bool
	Workers    int
	BatchSize  int
	Schedule   api.Schedule
	States     []api.WorkerState
	Dispatches uint64
	Elements   int64
	Claims     int64
	Panics     int64
	Last       api.DispatchRecord
}

// New creates a stopped pool. Call Init before dispatching.
func New(opts ...Option) *Pool {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New().String()
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	p := &Pool{
		id:   id,
		opts: o,
		tp: concurrency.NewThreadPool(concurrency.Config{
			BatchSize: o.batchSize,
			Schedule:  o.schedule,
			Pin:       o.pin,
			Detect:    o.detect,
		}),
		log:      logger.With("component", "parfor", "pool", id),
		tracer:   tracer,
		history:  control.NewHistory(o.history),
		counters: control.NewMetricsRegistry(),
		config:   control.NewConfigStore(),
		probes:   o.probes,
	}
	if o.metrics != nil {
		p.metrics = o.metrics.ForPool(id)
	}
	if p.probes == nil {
		p.probes = control.NewDebugProbes()
	}

	p.config.OnChange(func(snapshot map[string]any) {
		p.log.Debug("pool config updated", "config", snapshot)
	})
	p.config.SetConfig(map[string]any{
		"max_workers": o.maxWorkers,
		"batch_size":  o.batchSize,
		"schedule":    o.schedule.String(),
		"pin_workers": o.pin,
		"history":     o.history,
	})
	p.registerProbes()
	return p
}

// NewFromConfig creates a pool from a file config plus extra options,
// which take precedence.
func NewFromConfig(cfg Config, opts ...Option) (*Pool, error) {
	base, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return New(append(base, opts...)...), nil
}

// MustInit is Init that panics on failure.
func (p *Pool) MustInit(maxWorkers int) {
	if err := p.Init(maxWorkers); err != nil {
		panic(err)
	}
}

// Init starts min(detected CPUs, MaxWorkers, maxWorkers) workers. maxWorkers
// <= 0 falls back to WithMaxWorkers, and then to no caller limit. Calling
// Init on a running pool does nothing.
func (p *Pool) Init(maxWorkers int) error {
	if maxWorkers <= 0 {
		maxWorkers = p.opts.maxWorkers
	}
	if p.tp.Running() {
		return nil
	}

	if err := p.tp.Start(maxWorkers); err != nil {
		p.log.Error("pool init failed", "error", err)
		return api.Wrap(err, "parfor: init").WithContext("pool", p.id)
	}

	n := p.tp.NumWorkers()
	p.config.SetConfig(map[string]any{"workers": n})
	if p.metrics != nil {
		p.metrics.Workers.Set(float64(n))
	}
	p.log.Info("pool started",
		"workers", n,
		"batch_size", p.tp.BatchSize(),
		"schedule", p.tp.Schedule().String(),
		"pinned", p.opts.pin,
	)
	return nil
}

// MustShutdown is Shutdown that panics on failure.
func (p *Pool) MustShutdown() {
	if err := p.Shutdown(); err != nil {
		panic(err)
	}
}

// Shutdown stops and joins every worker. The pool may be initialized again
// afterwards. It fails with api.ErrNotInitialized on a stopped pool and with
// api.ErrPoolBusy while a dispatch is running.
func (p *Pool) Shutdown() error {
	if err := p.tp.Close(); err != nil {
		return api.Wrap(err, "parfor: shutdown").WithContext("pool", p.id)
	}
	p.config.SetConfig(map[string]any{"workers": 0})
	if p.metrics != nil {
		p.metrics.Workers.Set(0)
	}
	p.log.Info("pool stopped", "dispatches", p.history.Total())
	return nil
}

// MustDispatch is Dispatch that panics on failure.
func (p *Pool) MustDispatch(buf []byte, stride, count int, fn func(elem []byte)) {
	if err := p.Dispatch(buf, stride, count, fn); err != nil {
		panic(err)
	}
}

// Dispatch calls fn once for each element buf[i*stride:(i+1)*stride],
// i in [0, count), and returns when all calls have finished. Each element
// slice has its capacity clipped to stride. Bounds are checked once here.
//
// Dispatch blocks until completion and cannot be cancelled. A callback that
// panics or calls runtime.Goexit (t.FailNow, require.*) aborts the dispatch,
// and Dispatch panics with *api.CallbackPanic.
func (p *Pool) Dispatch(buf []byte, stride, count int, fn func(elem []byte)) error {
	if err := checkBuffer(len(buf), stride, count); err != nil {
		return p.reject(err)
	}
	if fn == nil {
		return p.reject(fmt.Errorf("%w: nil callback", api.ErrInvalidArgument))
	}
	return p.run(count, stride, func(start, end int) {
		off := start * stride
		for i := start; i < end; i++ {
			next := off + stride
			fn(buf[off:next:next])
			off = next
		}
	})
}

// Range calls fn with disjoint half-open ranges that together cover
// [0, count). Each range is one claimed batch.
func (p *Pool) Range(count int, fn func(start, end int)) error {
	if count < 0 {
		return p.reject(fmt.Errorf("%w: negative count %d", api.ErrInvalidArgument, count))
	}
	if fn == nil {
		return p.reject(fmt.Errorf("%w: nil callback", api.ErrInvalidArgument))
	}
	return p.run(count, 0, fn)
}

func (p *Pool) run(count, stride int, body concurrency.BatchFunc) error {
	_, span := p.tracer.Start(context.Background(), "parfor.dispatch",
		trace.WithAttributes(
			attribute.String("parfor.pool", p.id),
			attribute.Int("parfor.count", count),
			attribute.Int("parfor.stride", stride),
			attribute.Int("parfor.batch_size", p.tp.BatchSize()),
			attribute.String("parfor.schedule", p.tp.Schedule().String()),
		))
	defer span.End()

	workers := p.tp.NumWorkers()
	started := time.Now()
	stats, err := p.tp.Run(count, body)
	elapsed := time.Since(started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return p.reject(err)
	}

	rec := p.history.Record(api.DispatchRecord{
		Count:    count,
		Stride:   stride,
		Workers:  workers,
		Claims:   stats.Claims,
		Schedule: p.tp.Schedule(),
		Panicked: stats.Panic != nil,
		Started:  started,
		Duration: elapsed,
	})
	p.counters.Add("dispatches", 1)
	p.counters.Add("elements", int64(count))
	p.counters.Add("claims", stats.Claims)
	if p.metrics != nil {
		p.metrics.Dispatches.Inc()
		p.metrics.Elements.Add(float64(count))
		p.metrics.Claims.Add(float64(stats.Claims))
		p.metrics.Duration.Observe(elapsed.Seconds())
	}
	span.SetAttributes(
		attribute.Int("parfor.workers", workers),
		attribute.Int64("parfor.claims", stats.Claims),
	)

	if cp := stats.Panic; cp != nil {
		p.counters.Add("panics", 1)
		if p.metrics != nil {
			p.metrics.Panics.Inc()
		}
		span.RecordError(cp)
		span.SetStatus(codes.Error, "callback panic")
		p.log.Error("callback panicked, dispatch aborted",
			"seq", rec.Seq, "worker", cp.WorkerID, "batch_start", cp.BatchStart, "panic", cp.Value)
		panic(cp)
	}

	p.log.Debug("dispatch complete",
		"seq", rec.Seq, "count", count, "claims", stats.Claims, "elapsed", elapsed)
	return nil
}

func (p *Pool) reject(err error) error {
	reason := "invalid_argument"
	switch {
	case errors.Is(err, api.ErrPoolBusy):
		reason = "busy"
	case errors.Is(err, api.ErrNotInitialized):
		reason = "not_initialized"
	}
	if p.metrics != nil {
		p.metrics.Rejected(reason)
	}
	p.counters.Add("rejected", 1)
	p.log.Warn("dispatch rejected", "reason", reason, "error", err)
	return api.Wrap(err, "parfor: dispatch").WithContext("pool", p.id)
}

func checkBuffer(size, stride, count int) error {
	if stride <= 0 {
		return fmt.Errorf("%w: stride must be positive, got %d", api.ErrInvalidArgument, stride)
	}
	if count < 0 {
		return fmt.Errorf("%w: negative count %d", api.ErrInvalidArgument, count)
	}
	if count > 0 && stride > math.MaxInt/count {
		return fmt.Errorf("%w: stride %d * count %d overflows", api.ErrInvalidArgument, stride, count)
	}
	if need := stride * count; need > size {
		return fmt.Errorf("%w: buffer holds %d bytes, need %d", api.ErrInvalidArgument, size, need)
	}
	return nil
}

// ID returns the pool's unique id, used in logs, metrics and spans.
func (p *Pool) ID() string { return p.id }

// Workers returns the number of worker threads, zero when stopped.
func (p *Pool) Workers() int { return p.tp.NumWorkers() }

// Running reports whether the pool is initialized.
func (p *Pool) Running() bool { return p.tp.Running() }

// Probes returns the registry holding this pool's debug probes.
func (p *Pool) Probes() *control.DebugProbes { return p.probes }

// History returns the retained dispatch records, oldest first.
func (p *Pool) History() []api.DispatchRecord { return p.history.Snapshot() }

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() Stats {
	c := p.counters.GetSnapshot()
	last, _ := p.history.Last()
	return Stats{
		ID:         p.id,
		Running:    p.tp.Running(),
		Workers:    p.tp.NumWorkers(),
		BatchSize:  p.tp.BatchSize(),
		Schedule:   p.tp.Schedule(),
		States:     p.tp.States(),
		Dispatches: p.history.Total(),
		Elements:   counter(c, "elements"),
		Claims:     counter(c, "claims"),
		Panics:     counter(c, "panics"),
		Last:       last,
	}
}

func counter(m map[string]any, key string) int64 {
	v, _ := m[key].(int64)
	return v
}

func (p *Pool) registerProbes() {
	prefix := "parfor." + p.id + "."
	p.probes.RegisterProbe(prefix+"config", func() any { return p.config.GetSnapshot() })
	p.probes.RegisterProbe(prefix+"counters", func() any { return p.counters.GetSnapshot() })
	p.probes.RegisterProbe(prefix+"workers", func() any {
		states := p.tp.States()
		out := make([]string, len(states))
		for i, s := range states {
			out[i] = s.String()
		}
		return out
	})
	p.probes.RegisterProbe(prefix+"history", func() any { return p.history.Snapshot() })
}
