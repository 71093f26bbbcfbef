package entity

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TradeStatusOpen    = "open"
	TradeStatusPartial = "partial"
	TradeStatusClosed  = "closed"
	TradeStatusFailed  = "failed"
)

// TradeLog is the append-only record of every order submission and its outcome.
type TradeLog struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	AccountID     uint           `gorm:"not null;index:idx_trade_logs_account_date" json:"account_id"`
	TradeDate     string         `gorm:"type:varchar(10);not null;index:idx_trade_logs_account_date" json:"trade_date"`
	Symbol        string         `gorm:"not null" json:"symbol"`
	Side          string         `gorm:"not null" json:"side"`
	Qty           int            `gorm:"not null" json:"qty"`
	Price         float64        `json:"price"`
	StopPrice     float64        `json:"stop_price"`
	TargetPrice   float64        `json:"target_price"`
	Target2Price  float64        `gorm:"column:target2_price" json:"target2_price"`
	RiskPerShare  float64        `json:"risk_per_share"`
	Rank          int            `json:"rank"`
	Status        string         `gorm:"not null" json:"status"`
	OrderID       string         `json:"order_id"`
	ClientOrderID string         `json:"client_order_id"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Strategy      string         `gorm:"not null" json:"strategy"`
	Extended      bool           `gorm:"not null;default:false" json:"extended"`
	ExitReason    string         `json:"exit_reason,omitempty"`
	ExitPrice     float64        `json:"exit_price"`
	RealizedPnL   float64        `gorm:"column:realized_pnl" json:"realized_pnl"`
	Metadata      datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TradeLog) TableName() string {
	return "trade_logs"
}
