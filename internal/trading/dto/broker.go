package dto

import "time"

// Credentials identify one brokerage account.
type Credentials struct {
	KeyID     string
	SecretKey string
	Paper     bool
}

// Account is the brokerage account snapshot.
type Account struct {
	ID              string  `json:"id"`
	Status          string  `json:"status"`
	Equity          float64 `json:"equity"`
	LastEquity      float64 `json:"last_equity"`
	Cash            float64 `json:"cash"`
	BuyingPower     float64 `json:"buying_power"`
	TradingBlocked  bool    `json:"trading_blocked"`
	PatternDayTrade bool    `json:"pattern_day_trader"`
}

// DailyPnLPct returns today's P&L in percent relative to the prior close equity.
func (a Account) DailyPnLPct() float64 {
	if a.LastEquity <= 0 {
		return 0
	}
	return (a.Equity - a.LastEquity) / a.LastEquity * 100
}

// Position is an open broker position.
type Position struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Qty           float64 `json:"qty"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	CurrentPrice  float64 `json:"current_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPL  float64 `json:"unrealized_pl"`
}

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Order statuses used when listing orders.
const (
	OrderStatusOpen   = "open"
	OrderStatusClosed = "closed"
	OrderStatusAll    = "all"
)

// Order is a broker order, including bracket legs.
type Order struct {
	ID             string     `json:"id"`
	ClientOrderID  string     `json:"client_order_id"`
	Symbol         string     `json:"symbol"`
	Side           OrderSide  `json:"side"`
	Type           string     `json:"type"`
	OrderClass     string     `json:"order_class"`
	Status         string     `json:"status"`
	Qty            float64    `json:"qty"`
	FilledQty      float64    `json:"filled_qty"`
	FilledAvgPrice float64    `json:"filled_avg_price"`
	StopPrice      float64    `json:"stop_price"`
	LimitPrice     float64    `json:"limit_price"`
	SubmittedAt    *time.Time `json:"submitted_at"`
	FilledAt       *time.Time `json:"filled_at"`
	Legs           []Order    `json:"legs"`
}

// StopLeg returns the protective stop leg of a bracket order.
func (o Order) StopLeg() (Order, bool) {
	for _, leg := range o.Legs {
		if leg.Type == "stop" || leg.Type == "stop_limit" {
			return leg, true
		}
	}
	return Order{}, false
}

// BracketOrderRequest is an entry with an attached stop and take-profit.
type BracketOrderRequest struct {
	Symbol        string
	Side          OrderSide
	Qty           int
	StopPrice     float64
	TargetPrice   float64
	ClientOrderID string
}
