package circuitbreaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"binancex/pkg/core"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	FailThreshold    int           `json:"fail_threshold" validate:"min=1"`
	SuccessThreshold int           `json:"success_threshold" validate:"min=1"`
	Timeout          time.Duration `json:"timeout" validate:"min=1ms"`
}

// ConfigFrom extracts breaker settings from a client config.
func ConfigFrom(cfg *core.Config) Config {
	return Config{
		FailThreshold:    cfg.CircuitBreakerFailThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
	}
}

// Breaker stops calls to the exchange after repeated server-side failures.
type Breaker struct {
	mu               sync.Mutex
	state            atomic.Int32
	failures         int
	successes        int
	failThreshold    int
	successThreshold int
	timeout          time.Duration
	openedAt         time.Time
	now              func() time.Time
	metrics          *Metrics
}

type Metrics struct {
	totalRequests   atomic.Int64
	rejectedCalls   atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	stateChanges    atomic.Int32
}

type Option func(*Breaker)

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

func New(config Config, opts ...Option) *Breaker {
	b := &Breaker{
		failThreshold:    config.FailThreshold,
		successThreshold: config.SuccessThreshold,
		timeout:          config.Timeout,
		now:              time.Now,
		metrics:          &Metrics{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.state.Store(int32(StateClosed))
	return b
}

// Allow returns core.ErrCircuitBreakerOpen while the breaker is open.
// After the timeout one probe window is allowed in half-open state.
func (b *Breaker) Allow() error {
	b.metrics.totalRequests.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.State() == StateOpen {
		if b.now().Sub(b.openedAt) < b.timeout {
			b.metrics.rejectedCalls.Add(1)
			return core.ErrCircuitBreakerOpen
		}
		b.successes = 0
		b.transitionTo(StateHalfOpen)
	}
	return nil
}

// Record feeds the outcome of a call. Only failures on the exchange side count.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !IsFailure(err) {
		b.metrics.successRequests.Add(1)
		switch b.State() {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.successes++
			if b.successes >= b.successThreshold {
				b.failures = 0
				b.successes = 0
				b.transitionTo(StateClosed)
			}
		}
		return
	}

	b.metrics.failedRequests.Add(1)
	switch b.State() {
	case StateClosed:
		b.failures++
		if b.failures >= b.failThreshold {
			b.open()
		}
	case StateHalfOpen:
		b.open()
	}
}

// IsFailure reports whether err should count against the breaker.
// Caller mistakes and local rejections never trip it.
func IsFailure(err error) bool {
	if err == nil {
		return false
	}
	if core.IsConnectivityError(err) || core.IsTimeoutError(err) {
		return true
	}
	if code, ok := core.UpstreamCode(err); ok {
		return core.LookupCode(code).Class == core.ClassServer
	}
	var exErr *core.ExchangeError
	if errors.As(err, &exErr) {
		return exErr.StatusCode >= 500
	}
	return false
}

func (b *Breaker) open() {
	b.openedAt = b.now()
	b.successes = 0
	b.transitionTo(StateOpen)
}

func (b *Breaker) transitionTo(newState State) {
	b.state.Store(int32(newState))
	b.metrics.stateChanges.Add(1)
}

func (b *Breaker) State() State {
	return State(b.state.Load())
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Store(int32(StateClosed))
	b.failures = 0
	b.successes = 0
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalRequests:   b.metrics.totalRequests.Load(),
		RejectedCalls:   b.metrics.rejectedCalls.Load(),
		SuccessRequests: b.metrics.successRequests.Load(),
		FailedRequests:  b.metrics.failedRequests.Load(),
		StateChanges:    b.metrics.stateChanges.Load(),
		CurrentState:    b.State().String(),
	}
}

type MetricsSnapshot struct {
	TotalRequests   int64
	RejectedCalls   int64
	SuccessRequests int64
	FailedRequests  int64
	StateChanges    int32
	CurrentState    string
}
