// Package orb holds the opening range breakout decision engine: qualification,
// opening range capture, breakout detection, regime gating, sizing and the
// per-account risk state machine. It performs no I/O.
package orb

import (
	"errors"
	"time"
)

// ErrNotReady reports empty or partial input data. Callers skip and retry next tick.
var ErrNotReady = errors.New("market data not ready")

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

type Regime string

const (
	RegimeBullish Regime = "bullish"
	RegimeBearish Regime = "bearish"
)

// MarketRegime is the broad market trend used for side gating.
type MarketRegime struct {
	Regime      Regime    `json:"regime"`
	IndexSymbol string    `json:"index_symbol"`
	IndexPrice  float64   `json:"index_price"`
	SMA         float64   `json:"sma"`
	AsOf        time.Time `json:"as_of"`
	// Degraded is set when the regime could not be computed and the conservative default was used.
	Degraded bool `json:"degraded"`
}

// BearishDefault is used when the index history is unavailable; it suppresses longs.
func BearishDefault(indexSymbol string, asOf time.Time) MarketRegime {
	return MarketRegime{Regime: RegimeBearish, IndexSymbol: indexSymbol, AsOf: asOf, Degraded: true}
}
