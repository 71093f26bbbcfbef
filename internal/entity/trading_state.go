package entity

import (
	"time"

	"golang-orb-trader/internal/trading/orb"
)

// TradingState is the persisted per-account daily risk record.
type TradingState struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AccountID   uint      `gorm:"not null;uniqueIndex:idx_trading_states_account_date" json:"account_id"`
	TradeDate   string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_trading_states_account_date" json:"trade_date"`
	TradesToday int       `gorm:"not null;default:0" json:"trades_today"`
	DailyPnLPct float64   `gorm:"column:daily_pnl_pct" json:"daily_pnl_pct"`
	IsLocked    bool      `gorm:"not null;default:false" json:"is_locked"`
	LockReason  string    `json:"lock_reason"`
	ManualStop  bool      `gorm:"not null;default:false" json:"manual_stop"`
	StopReason  string    `json:"stop_reason"`
	Liquidated  bool      `gorm:"not null;default:false" json:"liquidated"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TradingState) TableName() string {
	return "trading_states"
}

func NewTradingState(s orb.State) TradingState {
	return TradingState{
		AccountID:   s.AccountID,
		TradeDate:   s.Date,
		TradesToday: s.TradesTaken,
		DailyPnLPct: s.DailyPnLPct,
		IsLocked:    s.Locked,
		LockReason:  s.LockReason,
		ManualStop:  s.ManualStop,
		StopReason:  s.StopReason,
		Liquidated:  s.Liquidated,
	}
}

func (e TradingState) ToState() orb.State {
	return orb.State{
		AccountID:   e.AccountID,
		Date:        e.TradeDate,
		TradesTaken: e.TradesToday,
		DailyPnLPct: e.DailyPnLPct,
		Locked:      e.IsLocked,
		LockReason:  e.LockReason,
		ManualStop:  e.ManualStop,
		StopReason:  e.StopReason,
		Liquidated:  e.Liquidated,
		UpdatedAt:   e.UpdatedAt,
	}
}
