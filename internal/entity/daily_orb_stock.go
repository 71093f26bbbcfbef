package entity

import (
	"time"

	"golang-orb-trader/internal/trading/orb"
)

type DailyORBStock struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ScanDate      string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_daily_orb_stocks_date_symbol" json:"scan_date"`
	Rank          int       `gorm:"not null" json:"rank"`
	Symbol        string    `gorm:"not null;uniqueIndex:idx_daily_orb_stocks_date_symbol" json:"symbol"`
	Price         float64   `json:"price"`
	PriceChange   float64   `json:"price_change"`
	RVOL          float64   `gorm:"column:rvol" json:"rvol"`
	AvgVolume     float64   `json:"avg_volume"`
	Volume        float64   `json:"volume"`
	FloatMillions float64   `json:"float_millions"`
	Exchange      string    `json:"exchange"`
	IsFallback    bool      `gorm:"not null;default:false" json:"is_fallback"`
	DaysAgo       int       `gorm:"not null;default:0" json:"days_ago"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DailyORBStock) TableName() string {
	return "daily_orb_stocks"
}

func NewDailyORBStock(s orb.QualifiedStock) DailyORBStock {
	return DailyORBStock{
		ScanDate:      s.ScanDate,
		Rank:          s.Rank,
		Symbol:        s.Symbol,
		Price:         s.Price,
		PriceChange:   s.ChangePct,
		RVOL:          s.RVOL,
		AvgVolume:     s.AvgVolume,
		Volume:        s.Volume,
		FloatMillions: s.FloatMillions,
		Exchange:      s.Exchange,
		IsFallback:    s.IsFallback,
		DaysAgo:       s.DaysAgo,
	}
}

func (e DailyORBStock) ToQualified() orb.QualifiedStock {
	return orb.QualifiedStock{
		Symbol:        e.Symbol,
		Exchange:      e.Exchange,
		FloatMillions: e.FloatMillions,
		Price:         e.Price,
		ChangePct:     e.PriceChange,
		RVOL:          e.RVOL,
		AvgVolume:     e.AvgVolume,
		Volume:        e.Volume,
		Rank:          e.Rank,
		ScanDate:      e.ScanDate,
		IsFallback:    e.IsFallback,
		DaysAgo:       e.DaysAgo,
	}
}
