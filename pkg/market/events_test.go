package market

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrade_Decode(t *testing.T) {
	frame := `{"e":"trade","E":1672515782136,"s":"BNBBTC","t":12345,"p":"0.001","q":"100","T":1672515782136,"m":true,"M":false}`

	var trade Trade
	require.NoError(t, sonic.Unmarshal([]byte(frame), &trade))
	require.NoError(t, trade.Validate())

	assert.Equal(t, "BNBBTC", trade.Symbol)
	assert.Equal(t, int64(12345), trade.TradeID)
	assert.Equal(t, "0.001", trade.Price.String())
	assert.Equal(t, "100", trade.Quantity.String())
	assert.True(t, trade.IsBuyerMaker)
	assert.Equal(t, int64(1672515782136), trade.Time().UnixMilli())
}

func TestAggTrade_Decode(t *testing.T) {
	frame := `{"e":"aggTrade","E":1672515782136,"s":"BNBBTC","a":12345,"p":"0.001","q":"100","f":100,"l":105,"T":1672515782136,"m":true,"M":true}`

	var trade AggTrade
	require.NoError(t, sonic.Unmarshal([]byte(frame), &trade))
	require.NoError(t, trade.Validate())

	assert.Equal(t, int64(12345), trade.AggTradeID)
	assert.Equal(t, int64(100), trade.FirstTradeID)
	assert.Equal(t, int64(105), trade.LastTradeID)
}

func TestKline_Decode(t *testing.T) {
	frame := `{"e":"kline","E":1672515782136,"s":"BNBBTC","k":{"t":1672515780000,"T":1672515839999,"s":"BNBBTC","i":"1m","f":100,"L":200,"o":"0.0010","c":"0.0020","h":"0.0025","l":"0.0015","v":"1000","n":100,"x":false,"q":"1.0000","V":"500","Q":"0.500","B":"123456"}}`

	var kline Kline
	require.NoError(t, sonic.Unmarshal([]byte(frame), &kline))
	require.NoError(t, kline.Validate())

	c := kline.Candle
	assert.Equal(t, "1m", c.Interval)
	assert.Equal(t, int64(200), c.LastTradeID)
	assert.Equal(t, "0.0015", c.Low.String())
	assert.Equal(t, "1000", c.Volume.String())
	assert.Equal(t, "500", c.TakerBuyVolume.String())
	assert.Equal(t, "1.0000", c.QuoteVolume.String())
	assert.False(t, c.Closed)
}

func TestBookTicker_Decode(t *testing.T) {
	frame := `{"u":400900217,"s":"BNBUSDT","b":"25.35190000","B":"31.21000000","a":"25.36520000","A":"40.66000000"}`

	var ticker BookTicker
	require.NoError(t, sonic.Unmarshal([]byte(frame), &ticker))
	require.NoError(t, ticker.Validate())

	assert.Equal(t, "25.35190000", ticker.BidPrice.String())
	assert.Equal(t, "31.21000000", ticker.BidQty.String())
	assert.Equal(t, "40.66000000", ticker.AskQty.String())

	assert.Error(t, (&BookTicker{}).Validate())
}

func TestDepthUpdate_Levels(t *testing.T) {
	frame := `{"e":"depthUpdate","E":1672515782136,"s":"BNBBTC","U":157,"u":160,"b":[["0.0024","10"]],"a":[["0.0026","100"],["0.0027","5"]]}`

	var depth DepthUpdate
	require.NoError(t, sonic.Unmarshal([]byte(frame), &depth))
	require.NoError(t, depth.Validate())
	assert.Equal(t, int64(157), depth.FirstUpdateID)
	assert.Equal(t, int64(160), depth.FinalUpdateID)

	asks, err := Levels(depth.Asks)
	require.NoError(t, err)
	require.Len(t, asks, 2)
	assert.Equal(t, "0.0027", asks[1].Price.String())
	assert.Equal(t, "5", asks[1].Quantity.String())

	_, err = Levels([][]string{{"1"}})
	assert.Error(t, err)
	_, err = Levels([][]string{{"abc", "1"}})
	assert.Error(t, err)
}

func TestValidate_WrongEvent(t *testing.T) {
	var trade Trade
	require.NoError(t, sonic.Unmarshal([]byte(`{"e":"aggTrade","s":"BNBBTC"}`), &trade))
	assert.Error(t, trade.Validate())

	assert.Error(t, (&MiniTicker{Event: "kline"}).Validate())
	assert.NoError(t, (&MiniTicker{Event: EventMiniTicker}).Validate())
	assert.Error(t, (&PartialDepth{}).Validate())
}

func TestCombinedEvent(t *testing.T) {
	frame := `{"stream":"bnbbtc@trade","data":{"e":"trade","E":1,"s":"BNBBTC","t":1,"p":"1.5","q":"2","T":1,"m":false,"M":true}}`

	var event CombinedEvent[Trade]
	require.NoError(t, sonic.Unmarshal([]byte(frame), &event))
	require.NoError(t, event.Validate())
	assert.Equal(t, "bnbbtc@trade", event.Stream)
	assert.Equal(t, "1.5", event.Data.Price.String())

	bad := CombinedEvent[Trade]{Stream: "bnbbtc@trade", Data: Trade{Event: "kline"}}
	assert.Error(t, bad.Validate())
	assert.Error(t, (&CombinedEvent[Trade]{}).Validate())
}
