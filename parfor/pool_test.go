// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package parfor

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/momentics/hioload-parfor/api"
	"github.com/momentics/hioload-parfor/control"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func fixedCPUs(n int) Option {
	return WithTopology(func() (int, error) { return n, nil })
}

// bounded runs fn and fails the test if it has not returned within d.
func bounded(t *testing.T, d time.Duration, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("Timeout: %s did not return, possible deadlock", what)
	}
}

func initPool(t *testing.T, p *Pool, maxWorkers int) {
	t.Helper()
	var err error
	bounded(t, 2*time.Second, "Init", func() { err = p.Init(maxWorkers) })
	require.NoError(t, err)
}

func shutdownPool(t *testing.T, p *Pool) {
	t.Helper()
	var err error
	bounded(t, 2*time.Second, "Shutdown", func() { err = p.Shutdown() })
	require.NoError(t, err)
}

func newTestPool(t *testing.T, workers int, opts ...Option) *Pool {
	t.Helper()
	p := New(append([]Option{WithLogger(quiet), fixedCPUs(workers)}, opts...)...)
	initPool(t, p, 0)
	t.Cleanup(func() {
		if p.Running() {
			shutdownPool(t, p)
		}
	})
	return p
}

// indexedBuffer returns count elements of the given stride, each starting
// with its own index.
func indexedBuffer(count, stride int) []byte {
	buf := make([]byte, count*stride)
	for i := 0; i < count; i++ {
		binary.LittleEndian.PutUint64(buf[i*stride:], uint64(i))
	}
	return buf
}

func mutate(n int32) int32 {
	m := int32(math.Sqrt(float64(n) * float64(n) * float64(n)))
	return (m * 103) % 1027
}

func TestDispatch_ExhaustiveDisjointCoverage(t *testing.T) {
	const stride = 12
	p := newTestPool(t, 4, WithBatchSize(64))

	for _, count := range []int{0, 1, 63, 64, 65, 4096, 50_001} {
		buf := indexedBuffer(count, stride)
		hits := make([]int32, count)
		err := p.Dispatch(buf, stride, count, func(elem []byte) {
			assert.Len(t, elem, stride)
			assert.Equal(t, stride, cap(elem))
			atomic.AddInt32(&hits[binary.LittleEndian.Uint64(elem)], 1)
		})
		require.NoError(t, err)
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("count=%d: index %d visited %d times", count, i, h)
			}
		}
	}
}

func TestDispatch_EquivalentToSequential(t *testing.T) {
	for _, sched := range []api.Schedule{api.ScheduleDynamic, api.ScheduleStatic} {
		t.Run(sched.String(), func(t *testing.T) {
			p := newTestPool(t, 4, WithSchedule(sched))

			const count = (1 << 16) + 7
			seq := make([]byte, count*4)
			for i := 0; i < count; i++ {
				binary.LittleEndian.PutUint32(seq[i*4:], uint32(i%1028))
			}
			par := append([]byte(nil), seq...)

			apply := func(elem []byte) {
				v := int32(binary.LittleEndian.Uint32(elem))
				binary.LittleEndian.PutUint32(elem, uint32(mutate(v)))
			}
			for i := 0; i < count; i++ {
				apply(seq[i*4 : i*4+4])
			}
			require.NoError(t, p.Dispatch(par, 4, count, apply))
			assert.Equal(t, seq, par)
		})
	}
}

func TestDispatch_PrefixOfLargerBuffer(t *testing.T) {
	p := newTestPool(t, 2)
	buf := make([]byte, 100)
	require.NoError(t, p.Dispatch(buf, 4, 10, func(elem []byte) { elem[0] = 1 }))
	for i := 0; i < 10; i++ {
		assert.Equal(t, byte(1), buf[i*4])
	}
	for _, b := range buf[40:] {
		assert.Zero(t, b)
	}
}

func TestDispatch_ReusableAcrossDispatches(t *testing.T) {
	p := newTestPool(t, 3, WithBatchSize(32))
	for n := 0; n < 50; n++ {
		count := n*97 + n%5
		hits := make([]int32, count)
		require.NoError(t, ForEachIndex(p, hits, func(i int, v *int32) {
			atomic.AddInt32(v, 1)
		}))
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("dispatch %d: index %d visited %d times", n, i, h)
			}
		}
	}
	assert.Equal(t, uint64(50), p.Stats().Dispatches)
}

func TestDispatch_ZeroCount(t *testing.T) {
	p := newTestPool(t, 2)
	var calls atomic.Int32
	require.NoError(t, p.Dispatch(nil, 8, 0, func([]byte) { calls.Add(1) }))
	require.NoError(t, p.Range(0, func(int, int) { calls.Add(1) }))
	assert.Zero(t, calls.Load())
}

func TestRange_BatchesClippedAndDisjoint(t *testing.T) {
	const batch = 100
	p := newTestPool(t, 4, WithBatchSize(batch))

	cases := []struct {
		count, claims int
	}{
		{50, 1},    // below one batch
		{100, 1},   // exactly one batch
		{1001, 11}, // clipped tail
		{10_000, 100},
	}
	for _, c := range cases {
		hits := make([]int32, c.count)
		var ranges atomic.Int32
		require.NoError(t, p.Range(c.count, func(start, end int) {
			ranges.Add(1)
			assert.Less(t, start, end)
			assert.LessOrEqual(t, end, c.count, "out of bounds range")
			assert.LessOrEqual(t, end-start, batch)
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		}))
		assert.Equal(t, int32(c.claims), ranges.Load(), "count=%d", c.count)
		for i, h := range hits {
			require.Equal(t, int32(1), h, "count=%d index=%d", c.count, i)
		}
		last, ok := p.history.Last()
		require.True(t, ok)
		assert.Equal(t, int64(c.claims), last.Claims)
	}
}

func TestForEach_SquaresMillion(t *testing.T) {
	const count = 1_000_003
	p := New(WithLogger(quiet), fixedCPUs(8))
	initPool(t, p, 4)
	defer shutdownPool(t, p)
	require.Equal(t, 4, p.Workers())

	nums := make([]int64, count)
	writes := make([]int32, count)
	for i := range nums {
		nums[i] = int64(i)
	}
	var err error
	bounded(t, 10*time.Second, "ForEachIndex", func() {
		err = ForEachIndex(p, nums, func(i int, x *int64) {
			*x = *x * *x
			atomic.AddInt32(&writes[i], 1)
		})
	})
	require.NoError(t, err)
	for i := range nums {
		if nums[i] != int64(i)*int64(i) || writes[i] != 1 {
			t.Fatalf("index %d: value %d, writes %d", i, nums[i], writes[i])
		}
	}
}

func TestMap(t *testing.T) {
	p := newTestPool(t, 4)
	in := make([]int, 10_000)
	for i := range in {
		in[i] = i
	}
	out := make([]string, len(in))
	require.NoError(t, Map(p, in, out, func(v int) string {
		if v%2 == 0 {
			return "even"
		}
		return "odd"
	}))
	assert.Equal(t, "even", out[0])
	assert.Equal(t, "odd", out[9_999])

	err := Map(p, in, out[:10], func(v int) string { return "" })
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestPool_Preconditions(t *testing.T) {
	p := New(WithLogger(quiet), fixedCPUs(2))
	noop := func([]byte) {}

	err := p.Dispatch(make([]byte, 8), 8, 1, noop)
	require.ErrorIs(t, err, api.ErrNotInitialized)
	assert.Equal(t, api.ErrCodePrecondition, api.CodeOf(err))
	require.ErrorIs(t, p.Shutdown(), api.ErrNotInitialized)

	initPool(t, p, 0)
	cases := []struct {
		name   string
		buf    []byte
		stride int
		count  int
		fn     func([]byte)
	}{
		{"zero stride", make([]byte, 8), 0, 1, noop},
		{"negative count", make([]byte, 8), 8, -1, noop},
		{"short buffer", make([]byte, 15), 8, 2, noop},
		{"overflow", make([]byte, 8), math.MaxInt / 2, 3, noop},
		{"nil callback", make([]byte, 8), 8, 1, nil},
	}
	for _, c := range cases {
		err := p.Dispatch(c.buf, c.stride, c.count, c.fn)
		assert.ErrorIs(t, err, api.ErrInvalidArgument, c.name)
		var apiErr *api.Error
		if assert.True(t, errors.As(err, &apiErr), c.name) {
			assert.Equal(t, p.ID(), apiErr.Context["pool"])
		}
	}
	assert.ErrorIs(t, ForEach[int](p, nil, nil), api.ErrInvalidArgument)
	assert.ErrorIs(t, p.Range(-1, func(int, int) {}), api.ErrInvalidArgument)

	shutdownPool(t, p)
	err = p.Dispatch(make([]byte, 8), 8, 1, noop)
	assert.ErrorIs(t, err, api.ErrNotInitialized)
	assert.ErrorIs(t, p.Shutdown(), api.ErrNotInitialized)
}

func TestPool_MustHelpersPanic(t *testing.T) {
	p := New(WithLogger(quiet), fixedCPUs(2))
	assert.Panics(t, func() { p.MustDispatch(nil, 1, 0, func([]byte) {}) })
	assert.Panics(t, func() { p.MustShutdown() })

	failing := New(WithLogger(quiet), WithTopology(func() (int, error) {
		return 0, errors.New("probe failed")
	}))
	assert.Panics(t, func() { failing.MustInit(0) })

	p.MustInit(0)
	p.MustDispatch(make([]byte, 4), 1, 4, func(b []byte) { b[0] = 9 })
	p.MustShutdown()
}

func TestPool_InitIdempotentAndRestartable(t *testing.T) {
	p := New(WithLogger(quiet), fixedCPUs(3))
	initPool(t, p, 0)
	initPool(t, p, 1)
	assert.Equal(t, 3, p.Workers())

	shutdownPool(t, p)
	assert.Zero(t, p.Workers())
	assert.False(t, p.Running())

	initPool(t, p, 2)
	assert.Equal(t, 2, p.Workers())
	hits := make([]int32, 999)
	var err error
	bounded(t, 2*time.Second, "ForEach", func() {
		err = ForEach(p, hits, func(v *int32) { atomic.AddInt32(v, 1) })
	})
	require.NoError(t, err)
	for i, h := range hits {
		require.Equal(t, int32(1), h, "index %d", i)
	}
	shutdownPool(t, p)
}

func TestPool_InitShutdownCycles(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))

	p := New(WithLogger(quiet), fixedCPUs(8))
	for i := 0; i < 200; i++ {
		initPool(t, p, 0)
		if i%2 == 0 {
			require.NoError(t, p.Range(0, func(int, int) {}))
		}
		shutdownPool(t, p)
	}
	for i, s := range p.Stats().States {
		assert.Equal(t, api.WorkerTerminated, s, "worker %d", i)
	}
}

func TestPool_WithMaxWorkersDefault(t *testing.T) {
	p := newTestPool(t, 16, WithMaxWorkers(5))
	assert.Equal(t, 5, p.Workers())
}

func TestPool_DetectionFailure(t *testing.T) {
	p := New(WithLogger(quiet), WithTopology(func() (int, error) {
		return 0, errors.New("sched_getaffinity: EPERM")
	}))
	err := p.Init(0)
	require.ErrorIs(t, err, api.ErrTopologyUnavailable)
	assert.Equal(t, api.ErrCodeResourceExhausted, api.CodeOf(err))
	assert.False(t, p.Running())
}

func TestPool_ShutdownJoinsWorkers(t *testing.T) {
	baseline := runtime.NumGoroutine()

	p := New(WithLogger(quiet), fixedCPUs(6))
	initPool(t, p, 0)
	bounded(t, 2*time.Second, "Range", func() {
		for i := 0; i < 3; i++ {
			assert.NoError(t, p.Range(10_000, func(int, int) {}))
		}
	})
	shutdownPool(t, p)

	st := p.Stats()
	assert.False(t, st.Running)
	require.Len(t, st.States, 6)
	for i, s := range st.States {
		assert.Equal(t, api.WorkerTerminated, s, "worker %d", i)
	}
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline
	}, 2*time.Second, 10*time.Millisecond, "worker goroutines leaked")
}

func TestPool_ReentrantDispatchRejected(t *testing.T) {
	p := newTestPool(t, 2, WithBatchSize(1))
	var inner atomic.Value
	require.NoError(t, p.Range(1, func(int, int) {
		inner.Store(p.Range(1, func(int, int) {}))
	}))
	err, _ := inner.Load().(error)
	assert.ErrorIs(t, err, api.ErrPoolBusy)
}

func TestPool_CallbackPanicPropagates(t *testing.T) {
	p := newTestPool(t, 4, WithBatchSize(16))
	items := make([]int, 5000)

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		_ = ForEachIndex(p, items, func(i int, _ *int) {
			if i == 1234 {
				panic(errors.New("bad element"))
			}
		})
	}()

	cp, ok := recovered.(*api.CallbackPanic)
	require.True(t, ok, "expected *api.CallbackPanic, got %T", recovered)
	assert.EqualError(t, cp.Unwrap(), "bad element")
	assert.Equal(t, 1234/16*16, cp.BatchStart)

	st := p.Stats()
	assert.Equal(t, int64(1), st.Panics)
	assert.True(t, st.Last.Panicked)

	// The pool is still usable.
	hits := make([]int32, 5000)
	require.NoError(t, ForEach(p, hits, func(v *int32) { atomic.AddInt32(v, 1) }))
	for i, h := range hits {
		require.Equal(t, int32(1), h, "index %d", i)
	}
}

func TestPool_CallbackGoexitPropagates(t *testing.T) {
	p := newTestPool(t, 2, WithBatchSize(8))

	var recovered any
	bounded(t, 2*time.Second, "Range", func() {
		defer func() { recovered = recover() }()
		_ = p.Range(100, func(start, end int) {
			if start == 40 {
				runtime.Goexit()
			}
		})
	})

	cp, ok := recovered.(*api.CallbackPanic)
	require.True(t, ok, "expected *api.CallbackPanic, got %T", recovered)
	assert.ErrorIs(t, cp, api.ErrCallbackExited)
	assert.Equal(t, 40, cp.BatchStart)

	hits := make([]int32, 1000)
	bounded(t, 2*time.Second, "ForEach", func() {
		assert.NoError(t, ForEach(p, hits, func(v *int32) { atomic.AddInt32(v, 1) }))
	})
	for i, h := range hits {
		require.Equal(t, int32(1), h, "index %d", i)
	}
}

func TestPool_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := control.NewMetrics("parfor_test", reg)
	p := newTestPool(t, 2, WithMetrics(m), WithBatchSize(10))

	require.NoError(t, p.Range(95, func(int, int) {}))
	require.NoError(t, p.Range(5, func(int, int) {}))
	_ = p.Dispatch(nil, 0, 1, func([]byte) {})

	id := p.ID()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DispatchesTotal.WithLabelValues(id)))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.ElementsTotal.WithLabelValues(id)))
	assert.Equal(t, 11.0, testutil.ToFloat64(m.ClaimsTotal.WithLabelValues(id)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Workers.WithLabelValues(id)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTotal.WithLabelValues(id, "invalid_argument")))

	shutdownPool(t, p)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Workers.WithLabelValues(id)))
}

func TestPool_TracingSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	p := newTestPool(t, 2, WithTracer(provider.Tracer("test")))
	require.NoError(t, p.Range(1000, func(int, int) {}))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "parfor.dispatch", spans[0].Name())

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, int64(1000), attrs["parfor.count"])
	assert.Equal(t, int64(2), attrs["parfor.workers"])
	assert.Equal(t, p.ID(), attrs["parfor.pool"])
}

func TestPool_HistoryAndProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	p := newTestPool(t, 2, WithHistory(2), WithProbes(dp))
	for _, n := range []int{10, 20, 30} {
		require.NoError(t, p.Range(n, func(int, int) {}))
	}

	hist := p.History()
	require.Len(t, hist, 2)
	assert.Equal(t, 20, hist[0].Count)
	assert.Equal(t, 30, hist[1].Count)
	assert.Equal(t, uint64(3), hist[1].Seq)

	state := dp.DumpState()
	prefix := "parfor." + p.ID() + "."
	require.Contains(t, state, prefix+"config")
	cfg := state[prefix+"config"].(map[string]any)
	assert.Equal(t, 2, cfg["workers"])
	assert.Equal(t, DefaultBatchSize, cfg["batch_size"])

	counters := state[prefix+"counters"].(map[string]any)
	assert.Equal(t, int64(60), counters["elements"])

	workers := state[prefix+"workers"].([]string)
	assert.Len(t, workers, 2)
}

func TestPool_Pinning(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("pinning test runs on linux only")
	}
	p := newTestPool(t, 2, WithPinning(true))
	hits := make([]int32, 4096)
	require.NoError(t, ForEach(p, hits, func(v *int32) { atomic.AddInt32(v, 1) }))
	for i, h := range hits {
		require.Equal(t, int32(1), h, "index %d", i)
	}
}

func TestPool_IndependentPools(t *testing.T) {
	a := newTestPool(t, 2)
	b := newTestPool(t, 3)
	assert.NotEqual(t, a.ID(), b.ID())

	// A callback on one pool may dispatch on another.
	hits := make([]int32, 100)
	require.NoError(t, a.Range(1, func(int, int) {
		assert.NoError(t, ForEach(b, hits, func(v *int32) { atomic.AddInt32(v, 1) }))
	}))
	for i, h := range hits {
		require.Equal(t, int32(1), h, "index %d", i)
	}
}
