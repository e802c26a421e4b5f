package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"binancex/pkg/core"
)

// WeightLimiter decides admission of requests against IP, account and order-rate windows.
//
// Every dimension a request names is evaluated, and each one deducts on its own.
// A request denied by one dimension still consumes the budget of the others.
type WeightLimiter struct {
	ipAPI  *WeightWindow
	ipSAPI *WeightWindow

	accounts sync.Map // accountKey -> *WeightWindow
	orders   sync.Map // account id -> *orderWindows

	budgets core.RateLimitConfig
	clock   Clock
	logger  zerolog.Logger
	metrics *Metrics

	meterProvider metric.MeterProvider
	admitted      metric.Int64Counter
	denied        metric.Int64Counter
}

type accountKey struct {
	id    string
	group core.APIGroup
}

type orderWindows struct {
	second *WeightWindow
	minute *WeightWindow
	day    *WeightWindow
}

// admit charges one order, stopping at the first granularity that denies.
func (o *orderWindows) admit() bool {
	return o.second.Admit(1) && o.minute.Admit(1) && o.day.Admit(1)
}

// Metrics tracks statistics about limiter usage.
type Metrics struct {
	totalRequests   atomic.Int64
	allowedRequests atomic.Int64
	deniedRequests  atomic.Int64
	windowCount     atomic.Int32
}

// Option configures a WeightLimiter.
type Option func(*WeightLimiter)

// WithClock replaces the time source of every window.
func WithClock(clock Clock) Option {
	return func(l *WeightLimiter) {
		l.clock = clock
	}
}

// WithLogger sets the logger used for denial events.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *WeightLimiter) {
		l.logger = logger
	}
}

// WithMeterProvider registers counters on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(l *WeightLimiter) {
		l.meterProvider = mp
	}
}

// New creates a WeightLimiter with the given budgets.
func New(budgets core.RateLimitConfig, opts ...Option) *WeightLimiter {
	l := &WeightLimiter{
		budgets: budgets,
		logger:  zerolog.Nop(),
		metrics: &Metrics{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.meterProvider == nil {
		l.meterProvider = otel.GetMeterProvider()
	}
	l.initMetrics()

	l.ipAPI = l.newWindow(budgets.IPAPI)
	l.ipSAPI = l.newWindow(budgets.IPSAPI)
	return l
}

func (l *WeightLimiter) initMetrics() {
	meter := l.meterProvider.Meter("binancex/ratelimit")
	if counter, err := meter.Int64Counter("binancex.ratelimit.admitted",
		metric.WithDescription("Dimension checks admitted by scope"),
		metric.WithUnit("{request}")); err == nil {
		l.admitted = counter
	}
	if counter, err := meter.Int64Counter("binancex.ratelimit.denied",
		metric.WithDescription("Dimension checks denied by scope"),
		metric.WithUnit("{request}")); err == nil {
		l.denied = counter
	}
}

func (l *WeightLimiter) newWindow(budget core.WindowBudget) *WeightWindow {
	l.metrics.windowCount.Add(1)
	return NewWeightWindow(budget.Weight, budget.Interval, l.clock)
}

// Admit evaluates the dimensions of meta in account, order, IP order.
// It returns true only if every dimension admitted. A request without dimensions is admitted.
func (l *WeightLimiter) Admit(ctx context.Context, meta core.Meta) bool {
	l.metrics.totalRequests.Add(1)

	weight := max(meta.Weight, 0)
	allowed := true
	for _, scope := range [...]core.RateScope{core.ScopeAccount, core.ScopeOrder, core.ScopeIP} {
		for _, dim := range meta.Dimensions {
			if dim.Scope != scope {
				continue
			}
			ok := l.admitDimension(dim, weight)
			l.record(ctx, dim, ok)
			if !ok {
				l.logger.Debug().
					Str("scope", dim.Scope.String()).
					Str("group", dim.Group.String()).
					Int("weight", weight).
					Msg("rate window denied request")
			}
			allowed = allowed && ok
		}
	}

	if allowed {
		l.metrics.allowedRequests.Add(1)
	} else {
		l.metrics.deniedRequests.Add(1)
	}
	return allowed
}

func (l *WeightLimiter) admitDimension(dim core.RateDimension, weight int) bool {
	switch dim.Scope {
	case core.ScopeIP:
		return l.IPWindow(dim.Group).Admit(weight)
	case core.ScopeAccount:
		return l.AccountWindow(dim.AccountID, dim.Group).Admit(weight)
	case core.ScopeOrder:
		return l.getOrders(dim.AccountID).admit()
	}
	return true
}

func (l *WeightLimiter) record(ctx context.Context, dim core.RateDimension, ok bool) {
	counter := l.admitted
	if !ok {
		counter = l.denied
	}
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", dim.Scope.String()),
		attribute.String("group", dim.Group.String()),
	))
}

// IPWindow returns the shared IP window of group.
func (l *WeightLimiter) IPWindow(group core.APIGroup) *WeightWindow {
	if group == core.GroupSAPI {
		return l.ipSAPI
	}
	return l.ipAPI
}

// AccountWindow returns the weight window of an account, creating it on first use.
func (l *WeightLimiter) AccountWindow(accountID string, group core.APIGroup) *WeightWindow {
	key := accountKey{id: accountID, group: group}
	if v, ok := l.accounts.Load(key); ok {
		return v.(*WeightWindow)
	}

	budget := l.budgets.AccountAPI
	if group == core.GroupSAPI {
		budget = l.budgets.AccountSAPI
	}
	window := NewWeightWindow(budget.Weight, budget.Interval, l.clock)
	actual, loaded := l.accounts.LoadOrStore(key, window)
	if !loaded {
		l.metrics.windowCount.Add(1)
	}
	return actual.(*WeightWindow)
}

// OrderWindows returns the second, minute and day order-rate windows of an account.
func (l *WeightLimiter) OrderWindows(accountID string) (second, minute, day *WeightWindow) {
	o := l.getOrders(accountID)
	return o.second, o.minute, o.day
}

func (l *WeightLimiter) getOrders(accountID string) *orderWindows {
	if v, ok := l.orders.Load(accountID); ok {
		return v.(*orderWindows)
	}

	o := &orderWindows{
		second: NewWeightWindow(l.budgets.OrderSecond.Weight, l.budgets.OrderSecond.Interval, l.clock),
		minute: NewWeightWindow(l.budgets.OrderMinute.Weight, l.budgets.OrderMinute.Interval, l.clock),
		day:    NewWeightWindow(l.budgets.OrderDay.Weight, l.budgets.OrderDay.Interval, l.clock),
	}
	actual, loaded := l.orders.LoadOrStore(accountID, o)
	if !loaded {
		l.metrics.windowCount.Add(3)
	}
	return actual.(*orderWindows)
}

// Metrics returns a snapshot of the current limiter statistics.
func (l *WeightLimiter) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalRequests:   l.metrics.totalRequests.Load(),
		AllowedRequests: l.metrics.allowedRequests.Load(),
		DeniedRequests:  l.metrics.deniedRequests.Load(),
		WindowCount:     l.metrics.windowCount.Load(),
	}
}

// MetricsSnapshot is a point-in-time capture of limiter statistics.
type MetricsSnapshot struct {
	// TotalRequests is the total number of admission checks performed.
	TotalRequests int64
	// AllowedRequests is the number of requests that were admitted.
	AllowedRequests int64
	// DeniedRequests is the number of requests that were denied.
	DeniedRequests int64
	// WindowCount is the number of windows created so far.
	WindowCount int32
}
