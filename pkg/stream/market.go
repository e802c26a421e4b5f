package stream

import (
	"context"
	"fmt"

	"binancex/pkg/core"
	"binancex/pkg/market"
)

// DialTrades connects and subscribes to the trade streams of symbols.
func DialTrades(ctx context.Context, cfg *core.Config, symbols []string, opts ...Option) (*Client[market.Trade], error) {
	return dialSubscribed[market.Trade](ctx, cfg, streamsOf(symbols, market.TradeStream), opts...)
}

// DialAggTrades connects and subscribes to the aggregate trade streams of symbols.
func DialAggTrades(ctx context.Context, cfg *core.Config, symbols []string, opts ...Option) (*Client[market.AggTrade], error) {
	return dialSubscribed[market.AggTrade](ctx, cfg, streamsOf(symbols, market.AggTradeStream), opts...)
}

// DialBookTickers connects and subscribes to the best bid/ask streams of symbols.
func DialBookTickers(ctx context.Context, cfg *core.Config, symbols []string, opts ...Option) (*Client[market.BookTicker], error) {
	return dialSubscribed[market.BookTicker](ctx, cfg, streamsOf(symbols, market.BookTickerStream), opts...)
}

// DialKlines connects and subscribes to the kline streams of symbols at interval.
func DialKlines(ctx context.Context, cfg *core.Config, interval string, symbols []string, opts ...Option) (*Client[market.Kline], error) {
	return dialSubscribed[market.Kline](ctx, cfg, streamsOf(symbols, func(s string) market.Stream {
		return market.KlineStream(s, interval)
	}), opts...)
}

// DialDepth connects and subscribes to the diff depth streams of symbols.
func DialDepth(ctx context.Context, cfg *core.Config, fast bool, symbols []string, opts ...Option) (*Client[market.DepthUpdate], error) {
	return dialSubscribed[market.DepthUpdate](ctx, cfg, streamsOf(symbols, func(s string) market.Stream {
		return market.DepthStream(s, 0, fast)
	}), opts...)
}

func streamsOf(symbols []string, build func(string) market.Stream) []fmt.Stringer {
	out := make([]fmt.Stringer, len(symbols))
	for i, s := range symbols {
		out[i] = build(s)
	}
	return out
}

func dialSubscribed[O any](ctx context.Context, cfg *core.Config, names []fmt.Stringer, opts ...Option) (*Client[O], error) {
	client, err := Dial[O](ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return client, nil
	}
	if err := client.Subscribe(ctx, names...); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
