package dto

import "time"

// Trade event types published on the trade events stream.
const (
	EventOrderPlaced       = "order_placed"
	EventOrderFailed       = "order_failed"
	EventRiskLocked        = "risk_locked"
	EventManualStop        = "manual_stop"
	EventManualStart       = "manual_start"
	EventPositionExtended  = "position_extended"
	EventPositionFlattened = "position_flattened"
	EventSessionFlattened  = "session_flattened"
	EventScanFallback      = "scan_fallback"
	EventScanCompleted     = "scan_completed"
)

// TradeEvent is the stream payload consumed by the notification service.
type TradeEvent struct {
	Type        string    `json:"type"`
	AccountID   uint      `json:"account_id,omitempty"`
	AccountName string    `json:"account_name,omitempty"`
	Symbol      string    `json:"symbol,omitempty"`
	Side        string    `json:"side,omitempty"`
	Qty         int       `json:"qty,omitempty"`
	Price       float64   `json:"price,omitempty"`
	StopPrice   float64   `json:"stop_price,omitempty"`
	TargetPrice float64   `json:"target_price,omitempty"`
	R           float64   `json:"r,omitempty"`
	Rank        int       `json:"rank,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Symbols     []string  `json:"symbols,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
