package orb

import (
	"fmt"
	"sort"
	"time"

	"golang-orb-trader/internal/trading/dto"
)

// ComputeRegime compares the last completed close of the index with its SMA over prior closes.
// Bars on or after sessionDate are ignored. At least minBars closes are required.
func ComputeRegime(indexSymbol string, bars []dto.Bar, sessionDate time.Time, period, minBars int) (MarketRegime, error) {
	loc := sessionDate.Location()
	day := startOfDay(sessionDate)

	prior := make([]dto.Bar, 0, len(bars))
	for _, b := range bars {
		if startOfDay(b.Timestamp.In(loc)).Before(day) {
			prior = append(prior, b)
		}
	}
	sort.Slice(prior, func(i, j int) bool { return prior[i].Timestamp.Before(prior[j].Timestamp) })

	if minBars <= 0 || minBars > period {
		minBars = period
	}
	if len(prior) < minBars {
		return MarketRegime{}, fmt.Errorf("%s: %d daily bars for regime: %w", indexSymbol, len(prior), ErrNotReady)
	}

	window := period
	if len(prior) < window {
		window = len(prior)
	}
	closes := make([]float64, len(prior))
	for i, b := range prior {
		closes[i] = b.Close
	}
	sma, _ := SMA(closes, window)
	price := closes[len(closes)-1]

	regime := RegimeBullish
	if price < sma {
		regime = RegimeBearish
	}
	return MarketRegime{
		Regime:      regime,
		IndexSymbol: indexSymbol,
		IndexPrice:  price,
		SMA:         sma,
		AsOf:        startOfDay(prior[len(prior)-1].Timestamp.In(loc)),
	}, nil
}

// Gate filters signal candidates by trend and volatility.
type Gate struct {
	// ShortsOnlyAbove drops longs when the volatility index is above it. Zero disables the rule.
	ShortsOnlyAbove float64
}

// Gate rejection reasons.
const (
	GateBearishRegime      = "bearish_regime"
	GateElevatedVolatility = "elevated_volatility"
)

// Allow reports whether the signal may proceed. Shorts always pass.
func (g Gate) Allow(side Side, regime MarketRegime, volatilityIndex float64) (bool, string) {
	if side == SideShort {
		return true, ""
	}
	if regime.Regime == RegimeBearish {
		return false, GateBearishRegime
	}
	if g.ShortsOnlyAbove > 0 && volatilityIndex > g.ShortsOnlyAbove {
		return false, GateElevatedVolatility
	}
	return true, ""
}
