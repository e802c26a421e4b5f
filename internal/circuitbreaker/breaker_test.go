package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"binancex/pkg/core"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(c *clock) *Breaker {
	return New(Config{
		FailThreshold:    3,
		SuccessThreshold: 2,
		Timeout:          time.Second,
	}, WithClock(c.Now))
}

var serverErr = core.NewConnectivityError("send request", errors.New("connection reset"))

func TestState_String(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  string
	}{
		{"closed", StateClosed, "CLOSED"},
		{"open", StateOpen, "OPEN"},
		{"half_open", StateHalfOpen, "HALF_OPEN"},
		{"unknown", State(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := core.DefaultConfig().WithCircuitBreaker(4, 1, time.Minute)

	assert.Equal(t, Config{FailThreshold: 4, SuccessThreshold: 1, Timeout: time.Minute}, ConfigFrom(cfg))
}

func TestIsFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connectivity", serverErr, true},
		{"timeout", core.NewTimeoutError("late", nil), true},
		{"upstream_server", core.NewUpstreamError(503, -1008, "Server is currently overloaded"), true},
		{"upstream_request", core.NewUpstreamError(400, -1121, "Invalid symbol."), false},
		{"local_rate_limit", core.NewRateLimitError("denied"), false},
		{"http_500_without_code", &core.ExchangeError{Type: core.ErrorTypeDeserialize, StatusCode: 502}, true},
		{"plain", errors.New("plain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFailure(tt.err))
		})
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	breaker := newTestBreaker(c)

	breaker.Record(serverErr)
	breaker.Record(serverErr)
	assert.Equal(t, StateClosed, breaker.State())
	assert.NoError(t, breaker.Allow())

	breaker.Record(serverErr)
	assert.Equal(t, StateOpen, breaker.State())
	assert.ErrorIs(t, breaker.Allow(), core.ErrCircuitBreakerOpen)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	breaker := newTestBreaker(c)

	breaker.Record(serverErr)
	breaker.Record(serverErr)
	breaker.Record(nil)
	breaker.Record(serverErr)

	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, 1, breaker.Failures())
}

func TestBreaker_CallerErrorsDoNotTrip(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	breaker := newTestBreaker(c)

	for i := 0; i < 10; i++ {
		breaker.Record(core.NewUpstreamError(400, -1102, "Mandatory parameter was not sent"))
	}

	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	breaker := newTestBreaker(c)
	for i := 0; i < 3; i++ {
		breaker.Record(serverErr)
	}

	c.Advance(time.Second)
	assert.NoError(t, breaker.Allow())
	assert.Equal(t, StateHalfOpen, breaker.State())

	breaker.Record(nil)
	assert.Equal(t, StateHalfOpen, breaker.State())
	breaker.Record(nil)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	breaker := newTestBreaker(c)
	for i := 0; i < 3; i++ {
		breaker.Record(serverErr)
	}

	c.Advance(2 * time.Second)
	assert.NoError(t, breaker.Allow())
	breaker.Record(serverErr)

	assert.Equal(t, StateOpen, breaker.State())
	assert.Error(t, breaker.Allow())
}

func TestBreaker_ResetAndMetrics(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	breaker := newTestBreaker(c)
	for i := 0; i < 3; i++ {
		breaker.Record(serverErr)
	}
	_ = breaker.Allow()

	snapshot := breaker.Metrics()
	assert.Equal(t, int64(1), snapshot.TotalRequests)
	assert.Equal(t, int64(1), snapshot.RejectedCalls)
	assert.Equal(t, int64(3), snapshot.FailedRequests)
	assert.Equal(t, "OPEN", snapshot.CurrentState)

	breaker.Reset()
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, 0, breaker.Failures())
}
