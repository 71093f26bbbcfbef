package orb

import "math"

// Limits are the per-account risk parameters. Percent values are in percent units (2 means 2%).
type Limits struct {
	MaxTradesPerDay   int
	DailyLossLimitPct float64
	TopRankRiskPct    float64
	AggressiveRiskPct float64
	TierRiskPct       float64
	MaxTieredRank     int
	// LowVolatilityMax enables aggressive sizing for rank #1 in a bullish regime at or below this level.
	LowVolatilityMax float64
	Target1R         float64
	Target2R         float64
}

func DefaultLimits() Limits {
	return Limits{
		MaxTradesPerDay:   3,
		DailyLossLimitPct: 3,
		TopRankRiskPct:    2,
		AggressiveRiskPct: 3,
		TierRiskPct:       1,
		MaxTieredRank:     4,
		LowVolatilityMax:  18,
		Target1R:          2,
		Target2R:          4,
	}
}

// RiskPercent returns the tiered risk for a ranked ticker, or zero when the rank is not tradable.
func (l Limits) RiskPercent(rank int, regime Regime, volatilityIndex float64) float64 {
	switch {
	case rank < 1 || rank > l.MaxTieredRank:
		return 0
	case rank == 1:
		if regime == RegimeBullish && volatilityIndex > 0 && volatilityIndex <= l.LowVolatilityMax {
			return l.AggressiveRiskPct
		}
		return l.TopRankRiskPct
	default:
		return l.TierRiskPct
	}
}

// Levels are the stop and targets of a trade. R is the entry to stop distance.
type Levels struct {
	Stop    float64 `json:"stop"`
	Target1 float64 `json:"target1"`
	Target2 float64 `json:"target2"`
	R       float64 `json:"r"`
}

// ComputeLevels places the stop at the opposite extreme of the range and the targets at multiples of R.
func (l Limits) ComputeLevels(side Side, entry float64, r OpeningRange) Levels {
	if side == SideLong {
		risk := entry - r.Low
		return Levels{Stop: r.Low, R: risk, Target1: entry + l.Target1R*risk, Target2: entry + l.Target2R*risk}
	}
	risk := r.High - entry
	return Levels{Stop: r.High, R: risk, Target1: entry - l.Target1R*risk, Target2: entry - l.Target2R*risk}
}

// PositionSize is floor(equity * riskPct / |entry - stop|). It is zero when the risk per share is not positive.
func PositionSize(equity, riskPct, entry, stop float64) int {
	riskPerShare := math.Abs(entry - stop)
	if riskPerShare <= 0 || equity <= 0 || riskPct <= 0 {
		return 0
	}
	return int(math.Floor(equity * riskPct / 100 / riskPerShare))
}
