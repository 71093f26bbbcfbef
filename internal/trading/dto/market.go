package dto

import "time"

// Bar is one OHLCV bar as returned by the market data provider.
type Bar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
	VWAP      float64   `json:"vw"`
}

// LatestTrade is the most recent trade print for a symbol.
type LatestTrade struct {
	Price     float64   `json:"p"`
	Size      float64   `json:"s"`
	Timestamp time.Time `json:"t"`
}

// Timeframes accepted by GetIntradayBars.
const (
	Timeframe1Min = "1Min"
	Timeframe5Min = "5Min"
	Timeframe1Day = "1Day"
)
