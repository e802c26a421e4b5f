package market

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"
)

// User data event type names.
const (
	EventAccountPosition  = "outboundAccountPosition"
	EventBalanceUpdate    = "balanceUpdate"
	EventExecutionReport  = "executionReport"
	EventListenKeyExpired = "listenKeyExpired"
)

type AssetBalance struct {
	Asset  string      `json:"a"`
	Free   apd.Decimal `json:"f"`
	Locked apd.Decimal `json:"l"`
}

// AccountPosition lists the balances that changed with an account update.
type AccountPosition struct {
	Event          string         `json:"e"`
	EventTime      int64          `json:"E"`
	LastUpdateTime int64          `json:"u"`
	Balances       []AssetBalance `json:"B"`
}

// BalanceUpdate reports a deposit, withdrawal or transfer.
type BalanceUpdate struct {
	Event     string      `json:"e"`
	EventTime int64       `json:"E"`
	Asset     string      `json:"a"`
	Delta     apd.Decimal `json:"d"`
	ClearTime int64       `json:"T"`
}

// ExecutionReport is an order update.
type ExecutionReport struct {
	Event                   string      `json:"e"`
	EventTime               int64       `json:"E"`
	Symbol                  string      `json:"s"`
	ClientOrderID           string      `json:"c"`
	Side                    OrderSide   `json:"S"`
	Type                    OrderType   `json:"o"`
	TimeInForce             TimeInForce `json:"f"`
	Quantity                apd.Decimal `json:"q"`
	Price                   apd.Decimal `json:"p"`
	StopPrice               apd.Decimal `json:"P"`
	IcebergQuantity         apd.Decimal `json:"F"`
	OrderListID             int64       `json:"g"`
	OrigClientOrderID       string      `json:"C"`
	ExecutionType           string      `json:"x"`
	Status                  OrderStatus `json:"X"`
	RejectReason            string      `json:"r"`
	OrderID                 int64       `json:"i"`
	LastExecutedQuantity    apd.Decimal `json:"l"`
	CumulativeQuantity      apd.Decimal `json:"z"`
	LastExecutedPrice       apd.Decimal `json:"L"`
	Commission              apd.Decimal `json:"n"`
	CommissionAsset         *string     `json:"N"`
	TransactionTime         int64       `json:"T"`
	TradeID                 int64       `json:"t"`
	Ignore                  int64       `json:"I"`
	IsOnBook                bool        `json:"w"`
	IsMaker                 bool        `json:"m"`
	IgnoreM                 bool        `json:"M"`
	CreationTime            int64       `json:"O"`
	CumulativeQuoteQuantity apd.Decimal `json:"Z"`
	LastQuoteQuantity       apd.Decimal `json:"Y"`
	QuoteOrderQuantity      apd.Decimal `json:"Q"`
	WorkingTime             int64       `json:"W"`
	SelfTradePreventionMode string      `json:"V"`
	TrailingDelta           int64       `json:"d"`
	TrailingTime            int64       `json:"D"`
	StrategyID              int64       `json:"j"`
	StrategyType            int64       `json:"J"`
	PreventedMatchID        int64       `json:"v"`
	PreventedQuantity       apd.Decimal `json:"A"`
	LastPreventedQuantity   apd.Decimal `json:"B"`
	TradeGroupID            int64       `json:"u"`
	CounterOrderID          int64       `json:"U"`
	AllocationID            int64       `json:"a"`
	WorkingFloor            string      `json:"k"`
	UsedSor                 bool        `json:"uS"`
}

type ListenKeyExpired struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	ListenKey string `json:"listenKey"`
}

// UserEvent is one frame of a user data stream. Exactly one pointer is set.
type UserEvent struct {
	Type             string
	AccountPosition  *AccountPosition
	BalanceUpdate    *BalanceUpdate
	ExecutionReport  *ExecutionReport
	ListenKeyExpired *ListenKeyExpired
}

func (u *UserEvent) UnmarshalJSON(data []byte) error {
	var head struct {
		Event     string `json:"e"`
		EventTime int64  `json:"E"`
	}
	if err := sonic.Unmarshal(data, &head); err != nil {
		return err
	}

	var target any
	switch head.Event {
	case EventAccountPosition:
		u.AccountPosition = new(AccountPosition)
		target = u.AccountPosition
	case EventBalanceUpdate:
		u.BalanceUpdate = new(BalanceUpdate)
		target = u.BalanceUpdate
	case EventExecutionReport:
		u.ExecutionReport = new(ExecutionReport)
		target = u.ExecutionReport
	case EventListenKeyExpired:
		u.ListenKeyExpired = new(ListenKeyExpired)
		target = u.ListenKeyExpired
	default:
		return fmt.Errorf("unknown user data event %q", head.Event)
	}
	u.Type = head.Event
	return sonic.Unmarshal(data, target)
}

var _ json.Unmarshaler = (*UserEvent)(nil)
