package entity

import "time"

type TradingAccount struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	UserID             uint      `gorm:"not null" json:"user_id"`
	Name               string    `gorm:"not null" json:"name"`
	APIKeyID           string    `gorm:"column:api_key_id;not null" json:"-"`
	SecretKey          string    `gorm:"not null" json:"-"`
	IsPaperTrading     bool      `gorm:"not null;default:true" json:"is_paper_trading"`
	AutoTradingEnabled bool      `gorm:"not null;default:false" json:"auto_trading_enabled"`
	SelectedStrategy   string    `gorm:"not null" json:"selected_strategy"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TradingAccount) TableName() string {
	return "trading_accounts"
}
