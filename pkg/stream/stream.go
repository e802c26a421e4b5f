// Package stream is the public websocket surface. A Client owns one connection,
// keeps its subscription set and delivers decoded events, acks and errors on a
// single channel in arrival order.
package stream

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"binancex/internal/ws"
	"binancex/pkg/core"
	"binancex/pkg/market"
)

type ConnState = ws.ConnState

const (
	StateConnected = ws.StateConnected
	StateClosing   = ws.StateClosing
	StateClosed    = ws.StateClosed
)

type (
	Item[O any] = ws.Item[O]
	ItemKind    = ws.ItemKind
	Ack         = ws.Ack
	CloseInfo   = ws.CloseInfo
)

const (
	ItemPayload = ws.ItemPayload
	ItemAck     = ws.ItemAck
	ItemError   = ws.ItemError
	ItemClosed  = ws.ItemClosed
)

type options struct {
	url           string
	logger        zerolog.Logger
	meterProvider metric.MeterProvider
}

type Option func(*options)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithURL overrides cfg.Stream.URL, e.g. with a market.CombinedURL.
func WithURL(url string) Option {
	return func(o *options) {
		o.url = url
	}
}

// Client is a subscription-managed stream of events of type O.
type Client[O any] struct {
	conn   *ws.Connection[O]
	logger zerolog.Logger
}

// Dial connects using cfg.Stream. It does not reconnect; once Items is closed
// a new Client must be dialed.
func Dial[O any](ctx context.Context, cfg *core.Config, opts ...Option) (*Client[O], error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	wsCfg := ws.ConfigFrom(cfg.Stream)
	if o.url != "" {
		wsCfg.URL = o.url
	}

	wsOpts := []ws.Option{ws.WithLogger(o.logger)}
	if o.meterProvider != nil {
		wsOpts = append(wsOpts, ws.WithMeterProvider(o.meterProvider))
	}
	conn, err := ws.Dial[O](ctx, wsCfg, wsOpts...)
	if err != nil {
		return nil, err
	}
	return &Client[O]{conn: conn, logger: o.logger}, nil
}

// Subscribe adds streams. Names already subscribed are not sent again.
func (c *Client[O]) Subscribe(ctx context.Context, names ...fmt.Stringer) error {
	return c.conn.Subscribe(ctx, stringify(names)...)
}

// Unsubscribe removes streams. Names not subscribed are ignored.
func (c *Client[O]) Unsubscribe(ctx context.Context, names ...fmt.Stringer) error {
	return c.conn.Unsubscribe(ctx, stringify(names)...)
}

// Subscriptions returns the live subscription set in lexical order.
func (c *Client[O]) Subscriptions(ctx context.Context) ([]string, error) {
	return c.conn.Subscriptions(ctx)
}

// Items delivers events, acks and errors. The last item before the channel
// closes is either ItemClosed or an ItemError with a connectivity error.
func (c *Client[O]) Items() <-chan Item[O] {
	return c.conn.Items()
}

func (c *Client[O]) Done() <-chan struct{} {
	return c.conn.Done()
}

func (c *Client[O]) State() ConnState {
	return c.conn.State()
}

// Close sends a close frame after any queued commands and waits for the
// connection to stop.
func (c *Client[O]) Close() error {
	return c.conn.Close()
}

// ListenKeyStream names the user data stream of a listen key obtained from
// rest.Client.CreateListenKey.
func ListenKeyStream(listenKey string) market.Stream {
	return market.Stream(listenKey)
}

func stringify(names []fmt.Stringer) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == nil {
			continue
		}
		out = append(out, n.String())
	}
	return out
}
