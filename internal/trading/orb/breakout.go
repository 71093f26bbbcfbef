package orb

import (
	"math"
	"time"

	"golang-orb-trader/internal/trading/dto"
)

// DetectorConfig parameterizes breakout confirmation and confidence scoring.
type DetectorConfig struct {
	MinVolumeRatio  float64
	BaseConfidence  float64
	ConfidenceSlope float64
	MaxConfidence   float64
	MinConfidence   float64
	// VolumeLookback is the number of bars in the trailing volume average.
	VolumeLookback int
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinVolumeRatio:  1.5,
		BaseConfidence:  0.7,
		ConfidenceSlope: 0.1,
		MaxConfidence:   0.95,
		MinConfidence:   0.7,
		VolumeLookback:  20,
	}
}

// Signal is a directional breakout candidate.
type Signal struct {
	Symbol      string       `json:"symbol"`
	Side        Side         `json:"side"`
	Price       float64      `json:"price"`
	VolumeRatio float64      `json:"volume_ratio"`
	Confidence  float64      `json:"confidence"`
	Range       OpeningRange `json:"range"`
	At          time.Time    `json:"at"`
}

// Detector turns live price and volume into breakout signals. It keeps no state.
type Detector struct {
	cfg DetectorConfig
}

func NewDetector(cfg DetectorConfig) Detector {
	return Detector{cfg: cfg}
}

// Confidence scales linearly with the volume ratio above the confirmation minimum, capped.
func (d Detector) Confidence(volumeRatio float64) float64 {
	c := d.cfg.BaseConfidence + (volumeRatio-d.cfg.MinVolumeRatio)*d.cfg.ConfidenceSlope
	return math.Min(d.cfg.MaxConfidence, c)
}

// Evaluate emits a long above the range high or a short below the range low when volume confirms.
func (d Detector) Evaluate(r OpeningRange, price, volumeRatio float64, at time.Time) (Signal, bool) {
	if !r.IsSet || price <= 0 || volumeRatio < d.cfg.MinVolumeRatio {
		return Signal{}, false
	}

	var side Side
	switch {
	case price > r.High:
		side = SideLong
	case price < r.Low:
		side = SideShort
	default:
		return Signal{}, false
	}

	confidence := d.Confidence(volumeRatio)
	if confidence < d.cfg.MinConfidence {
		return Signal{}, false
	}
	return Signal{
		Symbol:      r.Symbol,
		Side:        side,
		Price:       price,
		VolumeRatio: volumeRatio,
		Confidence:  confidence,
		Range:       r,
		At:          at,
	}, true
}

// VolumeRatio divides the volume of the last bar by the mean of up to lookback bars before it.
func VolumeRatio(bars []dto.Bar, lookback int) (float64, error) {
	if len(bars) < 2 {
		return 0, ErrNotReady
	}
	current := bars[len(bars)-1]
	history := bars[:len(bars)-1]
	if lookback > 0 && len(history) > lookback {
		history = history[len(history)-lookback:]
	}
	volumes := make([]float64, len(history))
	for i, b := range history {
		volumes[i] = b.Volume
	}
	avg, _ := Mean(volumes)
	if avg <= 0 {
		return 0, ErrNotReady
	}
	return current.Volume / avg, nil
}

// VWAP is the volume weighted typical price of the last lookback bars.
func VWAP(bars []dto.Bar, lookback int) (float64, bool) {
	if lookback > 0 && len(bars) > lookback {
		bars = bars[len(bars)-lookback:]
	}
	var pv, vol float64
	for _, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3
		pv += typical * b.Volume
		vol += b.Volume
	}
	if vol <= 0 {
		return 0, false
	}
	return pv / vol, true
}

// GapPct is the percent move from the prior close to the opening print.
func GapPct(prevClose, open float64) (float64, bool) {
	if prevClose <= 0 || open <= 0 {
		return 0, false
	}
	return (open - prevClose) / prevClose * 100, true
}
