// Package rest is the public REST surface. A Client sends requests through the
// timeout, rate limit and authorization stages before they reach the exchange.
package rest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"binancex/internal/circuitbreaker"
	httpClient "binancex/internal/http"
	"binancex/internal/keyring"
	"binancex/internal/pipeline"
	"binancex/internal/ratelimit"
	"binancex/internal/signing"
	"binancex/pkg/core"
)

// Client sends REST requests to one Binance base URL.
type Client struct {
	config      *core.Config
	transport   *httpClient.Client
	handler     pipeline.Handler
	keyRing     *keyring.KeyRing
	rateLimiter *ratelimit.WeightLimiter
	breaker     *circuitbreaker.Breaker
	logger      zerolog.Logger

	duration metric.Float64Histogram
}

// Option is a functional option for configuring the Client.
type Option func(*Options)

// Options holds construction-time dependencies of a Client.
type Options struct {
	KeyRing       *keyring.KeyRing
	Logger        zerolog.Logger
	MeterProvider metric.MeterProvider
	Clock         func() time.Time
}

// WithKeyRing replaces the ring built from cfg.Credentials.
func WithKeyRing(kr *keyring.KeyRing) Option {
	return func(o *Options) {
		o.KeyRing = kr
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Options) {
		o.MeterProvider = mp
	}
}

// WithClock sets the time source of rate windows and signature timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Clock = now
	}
}

// New validates cfg and assembles the pipeline.
func New(cfg *core.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, core.NewParameterError("validate config", err).WithCode(core.ErrCodeInvalidConfig)
	}

	options := &Options{
		Logger: zerolog.Nop(),
		Clock:  time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.MeterProvider == nil {
		options.MeterProvider = otel.GetMeterProvider()
	}
	logger := options.Logger

	signer, err := signing.NewSigner(cfg.SignatureScheme)
	if err != nil {
		return nil, err
	}

	kr := options.KeyRing
	if kr == nil {
		strategy, err := keyring.ParseRotationStrategy(cfg.RotationStrategy)
		if err != nil {
			return nil, core.NewParameterError("rotation strategy", err).WithCode(core.ErrCodeInvalidConfig)
		}
		kr = keyring.FromCredentials(cfg.Credentials, strategy)
	}
	kr.SetLogger(logger)

	transport, err := httpClient.NewClient(&httpClient.Config{
		BaseURL: cfg.BaseURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	c := &Client{
		config:    cfg,
		transport: transport,
		keyRing:   kr,
		logger:    logger,
	}
	c.initMetrics(options.MeterProvider)

	var limit, guard pipeline.Middleware
	if cfg.RateLimit.Enabled {
		c.rateLimiter = ratelimit.New(cfg.RateLimit,
			ratelimit.WithClock(options.Clock),
			ratelimit.WithLogger(logger),
			ratelimit.WithMeterProvider(options.MeterProvider))
		limit = pipeline.RateLimit(c.rateLimiter)
	}
	if cfg.CircuitBreakerEnabled {
		c.breaker = circuitbreaker.New(circuitbreaker.ConfigFrom(cfg))
		guard = pipeline.Guard(c.breaker)
	}

	authorizer := signing.NewAuthorizer(signer,
		signing.WithCredentialSource(kr),
		signing.WithRecvWindow(cfg.RecvWindow),
		signing.WithClock(options.Clock),
		signing.WithLogger(logger))

	c.handler = pipeline.Chain(transport,
		pipeline.Timeout(cfg.Timeout),
		limit,
		pipeline.Authorize(authorizer),
		guard,
		pipeline.Observe(c.observe),
	)
	return c, nil
}

func (c *Client) initMetrics(mp metric.MeterProvider) {
	meter := mp.Meter("binancex/rest")
	if h, err := meter.Float64Histogram("binancex.rest.request.duration",
		metric.WithDescription("Time spent in the transport per request"),
		metric.WithUnit("s")); err == nil {
		c.duration = h
	}
}

// observe runs after authorization, where the key id is known.
func (c *Client) observe(ctx context.Context, req core.Request, resp *core.Response, err error, elapsed time.Duration) {
	if c.duration != nil {
		c.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
			attribute.String("path", req.Path),
			attribute.Bool("error", err != nil),
		))
	}

	if err == nil {
		if resp != nil && len(resp.UsedWeight) > 0 {
			c.logger.Debug().Str("path", req.Path).Interface("used_weight", resp.UsedWeight).Msg("exchange weight")
		}
		return
	}
	if core.IsAuthRejection(err) && req.Meta.KeyID != "" {
		c.logger.Warn().Str("key_id", req.Meta.KeyID).Err(err).Msg("credential rejected by exchange")
		c.keyRing.OnError(req.Meta.KeyID, err)
	}
}

// Do sends req through the pipeline. Responses with status 400 and above come
// back as errors together with the response.
func (c *Client) Do(ctx context.Context, req core.Request) (*core.Response, error) {
	requestID := uuid.NewString()
	logger := c.logger.With().Str("request_id", requestID).Str("request", req.String()).Logger()

	resp, err := c.handler.Do(ctx, req)
	if err != nil {
		event := logger.Debug()
		if core.IsRateLimitError(err) || core.IsUpstreamError(err) {
			event = logger.Warn()
		}
		event.Err(err).Msg("request failed")
		return resp, err
	}
	logger.Debug().Int("status", resp.StatusCode).Msg("request completed")
	return resp, nil
}

// Close releases the transport. Later calls fail with core.ErrClientClosed.
func (c *Client) Close() error {
	return c.transport.Close()
}

// KeyRing returns the ring credentials are drawn from.
func (c *Client) KeyRing() *keyring.KeyRing {
	return c.keyRing
}

// RateLimiter returns the local limiter, or nil when rate limiting is disabled.
func (c *Client) RateLimiter() *ratelimit.WeightLimiter {
	return c.rateLimiter
}

// CircuitBreaker returns the breaker, or nil when it is disabled.
func (c *Client) CircuitBreaker() *circuitbreaker.Breaker {
	return c.breaker
}
