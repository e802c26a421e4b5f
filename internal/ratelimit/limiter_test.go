package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"binancex/pkg/core"
)

func smallBudgets() core.RateLimitConfig {
	return core.RateLimitConfig{
		Enabled:     true,
		IPAPI:       core.WindowBudget{Weight: 100, Interval: time.Minute},
		IPSAPI:      core.WindowBudget{Weight: 200, Interval: time.Minute},
		AccountAPI:  core.WindowBudget{Weight: 50, Interval: time.Minute},
		AccountSAPI: core.WindowBudget{Weight: 50, Interval: time.Minute},
		OrderSecond: core.WindowBudget{Weight: 2, Interval: 10 * time.Second},
		OrderMinute: core.WindowBudget{Weight: 3, Interval: 5 * time.Minute},
		OrderDay:    core.WindowBudget{Weight: 10, Interval: 24 * time.Hour},
	}
}

func TestWeightLimiter_New(t *testing.T) {
	limiter := New(core.DefaultRateLimitConfig())

	assert.NotNil(t, limiter)
	assert.Equal(t, 6000, limiter.IPWindow(core.GroupAPI).Basic())
	assert.Equal(t, 12000, limiter.IPWindow(core.GroupSAPI).Basic())
	assert.Equal(t, int32(2), limiter.Metrics().WindowCount)
}

func TestWeightLimiter_NoDimensions(t *testing.T) {
	limiter := New(smallBudgets())

	assert.True(t, limiter.Admit(context.Background(), core.Meta{Weight: 1_000_000}))
}

func TestWeightLimiter_IPWeight(t *testing.T) {
	clock := newFakeClock()
	limiter := New(smallBudgets(), WithClock(clock.Now))
	meta := core.Meta{Weight: 40, Dimensions: []core.RateDimension{core.IPWeight(core.GroupAPI)}}

	assert.True(t, limiter.Admit(context.Background(), meta))
	assert.True(t, limiter.Admit(context.Background(), meta))
	assert.False(t, limiter.Admit(context.Background(), meta))
	assert.Equal(t, 20, limiter.IPWindow(core.GroupAPI).Remaining())
	assert.Equal(t, 200, limiter.IPWindow(core.GroupSAPI).Remaining(), "sapi budget is separate")

	clock.Advance(time.Minute + time.Millisecond)
	assert.True(t, limiter.Admit(context.Background(), meta))
	assert.Equal(t, 60, limiter.IPWindow(core.GroupAPI).Remaining())
}

func TestWeightLimiter_AccountWindowsAreLazyAndIsolated(t *testing.T) {
	clock := newFakeClock()
	limiter := New(smallBudgets(), WithClock(clock.Now))
	before := limiter.Metrics().WindowCount

	alice := core.Meta{Weight: 50, Dimensions: []core.RateDimension{core.AccountWeight("alice", core.GroupAPI)}}
	bob := core.Meta{Weight: 50, Dimensions: []core.RateDimension{core.AccountWeight("bob", core.GroupAPI)}}

	assert.True(t, limiter.Admit(context.Background(), alice))
	assert.False(t, limiter.Admit(context.Background(), alice))
	assert.True(t, limiter.Admit(context.Background(), bob))

	assert.Same(t, limiter.AccountWindow("alice", core.GroupAPI), limiter.AccountWindow("alice", core.GroupAPI))
	assert.NotSame(t, limiter.AccountWindow("alice", core.GroupAPI), limiter.AccountWindow("alice", core.GroupSAPI))
	assert.Equal(t, before+3, limiter.Metrics().WindowCount)
}

func TestWeightLimiter_OrderRateShortCircuits(t *testing.T) {
	clock := newFakeClock()
	limiter := New(smallBudgets(), WithClock(clock.Now))
	meta := core.Meta{Weight: 1, Dimensions: []core.RateDimension{core.OrderRate("alice")}}

	assert.True(t, limiter.Admit(context.Background(), meta))
	assert.True(t, limiter.Admit(context.Background(), meta))
	assert.False(t, limiter.Admit(context.Background(), meta), "second window holds two orders")

	second, minute, day := limiter.OrderWindows("alice")
	assert.Equal(t, 0, second.Remaining())
	assert.Equal(t, 1, minute.Remaining(), "minute window is not charged when the second window denies")
	assert.Equal(t, 8, day.Remaining())

	clock.Advance(11 * time.Second)
	assert.True(t, limiter.Admit(context.Background(), meta))
	assert.False(t, limiter.Admit(context.Background(), meta), "minute window holds three orders")
	assert.Equal(t, 0, minute.Remaining())
	assert.Equal(t, 0, second.Remaining(), "second window was charged before the minute window denied")
	assert.Equal(t, 7, day.Remaining())
}

func TestWeightLimiter_OrderCostIsOne(t *testing.T) {
	limiter := New(smallBudgets())
	meta := core.Meta{Weight: 500, Dimensions: []core.RateDimension{core.OrderRate("alice")}}

	assert.True(t, limiter.Admit(context.Background(), meta))

	second, _, _ := limiter.OrderWindows("alice")
	assert.Equal(t, 1, second.Remaining())
}

func TestWeightLimiter_DenialStillDeductsOtherDimensions(t *testing.T) {
	clock := newFakeClock()
	limiter := New(smallBudgets(), WithClock(clock.Now))
	meta := core.Meta{
		Weight: 10,
		Dimensions: []core.RateDimension{
			core.IPWeight(core.GroupAPI),
			core.AccountWeight("alice", core.GroupAPI),
			core.OrderRate("alice"),
		},
	}

	assert.True(t, limiter.Admit(context.Background(), meta))
	assert.True(t, limiter.Admit(context.Background(), meta))
	assert.False(t, limiter.Admit(context.Background(), meta), "order second window is exhausted")

	assert.Equal(t, 70, limiter.IPWindow(core.GroupAPI).Remaining())
	assert.Equal(t, 20, limiter.AccountWindow("alice", core.GroupAPI).Remaining())

	snapshot := limiter.Metrics()
	assert.Equal(t, int64(3), snapshot.TotalRequests)
	assert.Equal(t, int64(2), snapshot.AllowedRequests)
	assert.Equal(t, int64(1), snapshot.DeniedRequests)
}

func TestWeightLimiter_NegativeWeight(t *testing.T) {
	limiter := New(smallBudgets())
	meta := core.Meta{Weight: -5, Dimensions: []core.RateDimension{core.IPWeight(core.GroupAPI)}}

	assert.True(t, limiter.Admit(context.Background(), meta))
	assert.Equal(t, 100, limiter.IPWindow(core.GroupAPI).Remaining())
}

func TestWeightLimiter_Concurrent(t *testing.T) {
	limiter := New(smallBudgets())

	var wg sync.WaitGroup
	results := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- limiter.Admit(context.Background(), core.Meta{
				Weight:     1,
				Dimensions: []core.RateDimension{core.AccountWeight("shared", core.GroupAPI)},
			})
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for ok := range results {
		if ok {
			admitted++
		}
	}
	assert.Equal(t, 50, admitted)
}

func TestWeightLimiter_OtelCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	limiter := New(smallBudgets(), WithMeterProvider(provider))
	meta := core.Meta{Weight: 60, Dimensions: []core.RateDimension{core.IPWeight(core.GroupAPI)}}

	limiter.Admit(context.Background(), meta)
	limiter.Admit(context.Background(), meta)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(1), totals["binancex.ratelimit.admitted"])
	assert.Equal(t, int64(1), totals["binancex.ratelimit.denied"])
}
