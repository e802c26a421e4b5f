package market

import (
	"strconv"
	"strings"
)

// Stream is a stream name as used in SUBSCRIBE frames, e.g. "btcusdt@trade".
type Stream string

func (s Stream) String() string {
	return string(s)
}

// Kline intervals accepted by KlineStream.
const (
	Interval1s  = "1s"
	Interval1m  = "1m"
	Interval3m  = "3m"
	Interval5m  = "5m"
	Interval15m = "15m"
	Interval30m = "30m"
	Interval1h  = "1h"
	Interval2h  = "2h"
	Interval4h  = "4h"
	Interval6h  = "6h"
	Interval8h  = "8h"
	Interval12h = "12h"
	Interval1d  = "1d"
	Interval3d  = "3d"
	Interval1w  = "1w"
	Interval1M  = "1M"
)

// AllMiniTickers is the stream of every symbol's rolling 24h mini ticker.
const AllMiniTickers Stream = "!miniTicker@arr"

func named(symbol, kind string) Stream {
	return Stream(strings.ToLower(symbol) + "@" + kind)
}

func TradeStream(symbol string) Stream {
	return named(symbol, "trade")
}

func AggTradeStream(symbol string) Stream {
	return named(symbol, "aggTrade")
}

// KlineStream keeps the interval as given since "1m" and "1M" differ.
func KlineStream(symbol, interval string) Stream {
	return named(symbol, "kline_"+interval)
}

func BookTickerStream(symbol string) Stream {
	return named(symbol, "bookTicker")
}

func MiniTickerStream(symbol string) Stream {
	return named(symbol, "miniTicker")
}

// DepthStream returns the diff depth stream when levels is zero, otherwise the
// partial book stream of 5, 10 or 20 levels. fast selects the 100ms update speed.
func DepthStream(symbol string, levels int, fast bool) Stream {
	kind := "depth"
	if levels > 0 {
		kind += strconv.Itoa(levels)
	}
	if fast {
		kind += "@100ms"
	}
	return named(symbol, kind)
}

// Names converts streams to the plain strings carried in control frames.
func Names(streams ...Stream) []string {
	out := make([]string, len(streams))
	for i, s := range streams {
		out[i] = string(s)
	}
	return out
}

// CombinedURL returns the combined-stream endpoint for base, which is the
// host root such as wss://stream.binance.com:9443.
func CombinedURL(base string, streams ...Stream) string {
	return strings.TrimRight(base, "/") + "/stream?streams=" + strings.Join(Names(streams...), "/")
}
