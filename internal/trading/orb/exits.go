package orb

import "math"

type ExitAction string

const (
	ExitHold    ExitAction = "hold"
	ExitExtend  ExitAction = "extend"
	ExitFlatten ExitAction = "flatten"
)

// ExitRule drives the checkpoint decision and the trailing reference of extended positions.
type ExitRule struct {
	ExtendR   float64
	EMAPeriod int
}

func DefaultExitRule() ExitRule {
	return ExitRule{ExtendR: 1.5, EMAPeriod: 9}
}

// UnrealizedR expresses the open profit in units of entry to stop distance.
func UnrealizedR(side Side, entry, stop, price float64) float64 {
	risk := math.Abs(entry - stop)
	if risk <= 0 {
		return 0
	}
	if side == SideLong {
		return (price - entry) / risk
	}
	return (entry - price) / risk
}

// Checkpoint extends a position at or above ExtendR and flattens everything else.
func (e ExitRule) Checkpoint(side Side, entry, stop, price float64) ExitAction {
	if UnrealizedR(side, entry, stop, price) >= e.ExtendR {
		return ExitExtend
	}
	return ExitFlatten
}

// TrailBreached reports whether price has crossed the moving average against the position.
func TrailBreached(side Side, price, average float64) bool {
	if average <= 0 {
		return false
	}
	if side == SideLong {
		return price < average
	}
	return price > average
}

// RatchetStop returns the tighter of the current and proposed stops. The bool is true when it moved.
func RatchetStop(side Side, current, proposed float64) (float64, bool) {
	if proposed <= 0 {
		return current, false
	}
	if side == SideLong && proposed > current {
		return proposed, true
	}
	if side == SideShort && (current <= 0 || proposed < current) {
		return proposed, true
	}
	return current, false
}
