package entity

import (
	"time"

	"golang-orb-trader/internal/trading/orb"
)

type MarketRegime struct {
	ScanDate    string    `gorm:"type:varchar(10);primaryKey" json:"scan_date"`
	Regime      string    `gorm:"not null" json:"regime"`
	IndexSymbol string    `gorm:"not null" json:"index_symbol"`
	IndexPrice  float64   `json:"index_price"`
	SMA200      float64   `gorm:"column:sma200" json:"sma200"`
	Degraded    bool      `gorm:"not null;default:false" json:"degraded"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (MarketRegime) TableName() string {
	return "market_regimes"
}

func NewMarketRegime(scanDate string, r orb.MarketRegime) MarketRegime {
	return MarketRegime{
		ScanDate:    scanDate,
		Regime:      string(r.Regime),
		IndexSymbol: r.IndexSymbol,
		IndexPrice:  r.IndexPrice,
		SMA200:      r.SMA,
		Degraded:    r.Degraded,
	}
}

func (e MarketRegime) ToRegime() orb.MarketRegime {
	return orb.MarketRegime{
		Regime:      orb.Regime(e.Regime),
		IndexSymbol: e.IndexSymbol,
		IndexPrice:  e.IndexPrice,
		SMA:         e.SMA200,
		AsOf:        e.CreatedAt,
		Degraded:    e.Degraded,
	}
}
