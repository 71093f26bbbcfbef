package entity

import (
	"time"

	"github.com/lib/pq"
)

// TickerSelection restricts an account to a subset of the qualified symbols.
type TickerSelection struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	AccountID uint           `gorm:"not null;uniqueIndex" json:"account_id"`
	Symbols   pq.StringArray `gorm:"type:text[]" json:"symbols"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TickerSelection) TableName() string {
	return "ticker_selections"
}
