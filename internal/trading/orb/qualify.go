package orb

import (
	"fmt"
	"math"
	"sort"
	"time"

	"golang-orb-trader/internal/trading/dto"
)

// Thresholds are the dynamic qualification filters, applied in field order.
type Thresholds struct {
	MinRVOL          float64
	MinChangePct     float64
	MinAvgVolume     float64
	MinPrice         float64
	MaxFloatMillions float64
	TopN             int
	AvgVolumePeriod  int
	// LookbackSessions bounds how stale the most recent completed session may be.
	LookbackSessions int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinRVOL:          2.5,
		MinChangePct:     3,
		MinAvgVolume:     800_000,
		MinPrice:         15,
		MaxFloatMillions: 150,
		TopN:             6,
		AvgVolumePeriod:  30,
		LookbackSessions: 5,
	}
}

// DailyStats describes the most recent completed session of a symbol.
type DailyStats struct {
	Symbol      string
	SessionDate time.Time
	Close       float64
	PrevClose   float64
	Volume      float64
	AvgVolume   float64
	RVOL        float64
	ChangePct   float64
}

// ComputeDailyStats derives RVOL and day over day change from daily bars strictly before sessionDate.
// The average volume excludes the most recent bar.
func ComputeDailyStats(symbol string, bars []dto.Bar, sessionDate time.Time, th Thresholds) (DailyStats, error) {
	loc := sessionDate.Location()
	day := startOfDay(sessionDate)

	prior := make([]dto.Bar, 0, len(bars))
	for _, b := range bars {
		if startOfDay(b.Timestamp.In(loc)).Before(day) {
			prior = append(prior, b)
		}
	}
	if len(prior) < 2 {
		return DailyStats{}, fmt.Errorf("%s: %d prior daily bars: %w", symbol, len(prior), ErrNotReady)
	}
	sort.Slice(prior, func(i, j int) bool { return prior[i].Timestamp.Before(prior[j].Timestamp) })

	last := prior[len(prior)-1]
	if th.LookbackSessions > 0 && weekdaysBetween(startOfDay(last.Timestamp.In(loc)), day) > th.LookbackSessions {
		return DailyStats{}, fmt.Errorf("%s: last session %s is stale: %w", symbol, last.Timestamp.In(loc).Format("2006-01-02"), ErrNotReady)
	}

	history := prior[:len(prior)-1]
	if th.AvgVolumePeriod > 0 && len(history) > th.AvgVolumePeriod {
		history = history[len(history)-th.AvgVolumePeriod:]
	}
	volumes := make([]float64, len(history))
	for i, b := range history {
		volumes[i] = b.Volume
	}
	avgVolume, _ := Mean(volumes)
	prevClose := prior[len(prior)-2].Close
	if avgVolume <= 0 || prevClose <= 0 || last.Close <= 0 {
		return DailyStats{}, fmt.Errorf("%s: zero volume or price in history: %w", symbol, ErrNotReady)
	}

	return DailyStats{
		Symbol:      symbol,
		SessionDate: startOfDay(last.Timestamp.In(loc)),
		Close:       last.Close,
		PrevClose:   prevClose,
		Volume:      last.Volume,
		AvgVolume:   avgVolume,
		RVOL:        last.Volume / avgVolume,
		ChangePct:   (last.Close - prevClose) / prevClose * 100,
	}, nil
}

// QualifiedStock is a symbol selected for the trading day.
type QualifiedStock struct {
	Symbol        string  `json:"symbol"`
	Exchange      string  `json:"exchange"`
	FloatMillions float64 `json:"float_millions"`
	Price         float64 `json:"price"`
	ChangePct     float64 `json:"change_pct"`
	RVOL          float64 `json:"rvol"`
	AvgVolume     float64 `json:"avg_volume"`
	Volume        float64 `json:"volume"`
	Rank          int     `json:"rank"`
	ScanDate      string  `json:"scan_date"`
	IsFallback    bool    `json:"is_fallback"`
	DaysAgo       int     `json:"days_ago"`
}

// Rejection reasons returned by Check.
const (
	RejectRVOL      = "rvol_below_min"
	RejectChange    = "change_below_min"
	RejectAvgVolume = "avg_volume_below_min"
	RejectPrice     = "price_below_min"
	RejectFloat     = "float_above_ceiling"
)

// Check applies the thresholds in order and returns the first failing rule.
func (th Thresholds) Check(s DailyStats, c Candidate) (bool, string) {
	switch {
	case s.RVOL < th.MinRVOL:
		return false, RejectRVOL
	case math.Abs(s.ChangePct) < th.MinChangePct:
		return false, RejectChange
	case s.AvgVolume < th.MinAvgVolume:
		return false, RejectAvgVolume
	case s.Close < th.MinPrice:
		return false, RejectPrice
	case c.FloatMillions <= 0 || c.FloatMillions > th.MaxFloatMillions:
		return false, RejectFloat
	}
	return true, ""
}

// Qualify filters stats against the thresholds, ranks survivors by RVOL descending and keeps the top N.
// Stats without a matching candidate are dropped.
func Qualify(stats []DailyStats, candidates []Candidate, th Thresholds, scanDate string) []QualifiedStock {
	bySymbol := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		bySymbol[c.Symbol] = c
	}

	var out []QualifiedStock
	for _, s := range stats {
		c, ok := bySymbol[s.Symbol]
		if !ok {
			continue
		}
		if pass, _ := th.Check(s, c); !pass {
			continue
		}
		out = append(out, QualifiedStock{
			Symbol:        s.Symbol,
			Exchange:      c.Exchange,
			FloatMillions: c.FloatMillions,
			Price:         s.Close,
			ChangePct:     s.ChangePct,
			RVOL:          s.RVOL,
			AvgVolume:     s.AvgVolume,
			Volume:        s.Volume,
			ScanDate:      scanDate,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RVOL == out[j].RVOL {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].RVOL > out[j].RVOL
	})
	if th.TopN > 0 && len(out) > th.TopN {
		out = out[:th.TopN]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// DefaultFallbackSymbols are used when no fallback list is configured.
var DefaultFallbackSymbols = []string{"NVDA", "TSLA"}

// FallbackSet builds the deterministic substitute set used when nothing qualifies.
// It is never empty and every entry is flagged.
func FallbackSet(symbols []string, candidates []Candidate, scanDate string) []QualifiedStock {
	if len(symbols) == 0 {
		symbols = DefaultFallbackSymbols
	}
	bySymbol := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		bySymbol[c.Symbol] = c
	}

	out := make([]QualifiedStock, 0, len(symbols))
	for i, symbol := range symbols {
		c := bySymbol[symbol]
		out = append(out, QualifiedStock{
			Symbol:        symbol,
			Exchange:      c.Exchange,
			FloatMillions: c.FloatMillions,
			Rank:          i + 1,
			ScanDate:      scanDate,
			IsFallback:    true,
		})
	}
	return out
}

// Reuse marks a previous day's qualified set as a fallback for scanDate.
func Reuse(previous []QualifiedStock, scanDate string, daysAgo int) []QualifiedStock {
	out := make([]QualifiedStock, len(previous))
	for i, s := range previous {
		s.ScanDate = scanDate
		s.IsFallback = true
		s.DaysAgo = daysAgo
		s.Rank = i + 1
		out[i] = s
	}
	return out
}

// ScanResult is the full outcome of a qualification scan.
type ScanResult struct {
	Date         string           `json:"date"`
	Stocks       []QualifiedStock `json:"stocks"`
	Regime       MarketRegime     `json:"regime"`
	IsFallback   bool             `json:"is_fallback"`
	Warning      string           `json:"warning,omitempty"`
	Eligible     int              `json:"eligible"`
	MissingFloat int              `json:"missing_float"`
	NeedsReview  bool             `json:"needs_review"`
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// weekdaysBetween counts weekdays strictly between from and to.
func weekdaysBetween(from, to time.Time) int {
	n := 0
	for d := from.AddDate(0, 0, 1); d.Before(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			n++
		}
	}
	return n
}
