package orb

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAdvice marks advisory output that cannot be used.
var ErrInvalidAdvice = errors.New("invalid advice")

const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"

	SourceRule = "rule"
)

// Snapshot is the structured view of a candidate handed to a Scorer.
type Snapshot struct {
	Symbol      string  `json:"symbol"`
	Side        Side    `json:"side"`
	Price       float64 `json:"price"`
	RangeHigh   float64 `json:"range_high"`
	RangeLow    float64 `json:"range_low"`
	VolumeRatio float64 `json:"volume_ratio"`
	Confidence  float64 `json:"confidence"`
	VWAP        float64 `json:"vwap"`
	Regime      Regime  `json:"regime"`
	Rank        int     `json:"rank"`
}

// SnapshotOf builds the scorer input for a signal.
func SnapshotOf(sig Signal, rank int, regime Regime, vwap float64) Snapshot {
	return Snapshot{
		Symbol:      sig.Symbol,
		Side:        sig.Side,
		Price:       sig.Price,
		RangeHigh:   sig.Range.High,
		RangeLow:    sig.Range.Low,
		VolumeRatio: sig.VolumeRatio,
		Confidence:  sig.Confidence,
		VWAP:        vwap,
		Regime:      regime,
		Rank:        rank,
	}
}

// Advice is a scorer verdict on a candidate.
type Advice struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	StopLoss   float64 `json:"stop_loss"`
	Target1    float64 `json:"target1"`
	Target2    float64 `json:"target2"`
	Reason     string  `json:"reason"`
	Source     string  `json:"source"`
}

// Scorer rates a breakout candidate.
type Scorer interface {
	Score(ctx context.Context, snap Snapshot) (Advice, error)
}

// RuleScorer echoes the detector confidence and the rule levels.
type RuleScorer struct {
	Limits Limits
}

func (s RuleScorer) Score(_ context.Context, snap Snapshot) (Advice, error) {
	levels := s.Limits.ComputeLevels(snap.Side, snap.Price, OpeningRange{High: snap.RangeHigh, Low: snap.RangeLow, IsSet: true})
	action := ActionBuy
	if snap.Side == SideShort {
		action = ActionSell
	}
	return Advice{
		Action:     action,
		Confidence: snap.Confidence,
		StopLoss:   levels.Stop,
		Target1:    levels.Target1,
		Target2:    levels.Target2,
		Reason:     fmt.Sprintf("%s breakout with volume ratio %.2f", snap.Side, snap.VolumeRatio),
		Source:     SourceRule,
	}, nil
}

// Vetoes reports whether the advice declines the trade.
func (a Advice) Vetoes() bool {
	return a.Action == ActionHold
}

// Validate checks the advice against the candidate side and entry.
func (a Advice) Validate(side Side, entry float64) error {
	a.Action = strings.ToLower(strings.TrimSpace(a.Action))
	switch a.Action {
	case ActionHold:
	case ActionBuy:
		if side != SideLong {
			return fmt.Errorf("%w: action %s on a %s candidate", ErrInvalidAdvice, a.Action, side)
		}
	case ActionSell:
		if side != SideShort {
			return fmt.Errorf("%w: action %s on a %s candidate", ErrInvalidAdvice, a.Action, side)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidAdvice, a.Action)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f out of range", ErrInvalidAdvice, a.Confidence)
	}
	if a.Target1 != 0 && !a.targetsUsable(side, entry) {
		return fmt.Errorf("%w: targets %.2f/%.2f not on the profit side of %.2f", ErrInvalidAdvice, a.Target1, a.Target2, entry)
	}
	return nil
}

// targetsUsable reports whether target1 and target2 lie beyond entry in the trade direction and are ordered.
func (a Advice) targetsUsable(side Side, entry float64) bool {
	if side == SideLong {
		return a.Target1 > entry && (a.Target2 == 0 || a.Target2 >= a.Target1)
	}
	return a.Target1 > 0 && a.Target1 < entry && (a.Target2 == 0 || (a.Target2 > 0 && a.Target2 <= a.Target1))
}
