package orb

import (
	"sync"
	"time"

	"golang-orb-trader/internal/trading/dto"
)

type RangeState string

const (
	RangeUnformed RangeState = "unformed"
	RangeForming  RangeState = "forming"
	RangeFormed   RangeState = "formed"
)

// OpeningRange is the high and low of the first bar after the open. It is frozen once set.
type OpeningRange struct {
	Symbol   string    `json:"symbol"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Open     float64   `json:"open"`
	FormedAt time.Time `json:"formed_at"`
	IsSet    bool      `json:"is_set"`
}

// Height returns high minus low.
func (r OpeningRange) Height() float64 {
	return r.High - r.Low
}

// RangeTracker owns the opening ranges of one session.
type RangeTracker struct {
	mu      sync.RWMutex
	session string
	ranges  map[string]OpeningRange
	states  map[string]RangeState
}

func NewRangeTracker() *RangeTracker {
	return &RangeTracker{
		ranges: make(map[string]OpeningRange),
		states: make(map[string]RangeState),
	}
}

// Reset clears every range when the session key changes. It reports whether a reset happened.
func (t *RangeTracker) Reset(sessionKey string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == sessionKey {
		return false
	}
	t.session = sessionKey
	t.ranges = make(map[string]OpeningRange)
	t.states = make(map[string]RangeState)
	return true
}

// Restore seeds a formed range, used when resuming a session after a restart.
func (t *RangeTracker) Restore(r OpeningRange) {
	if !r.IsSet {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ranges[r.Symbol]; ok {
		return
	}
	t.ranges[r.Symbol] = r
	t.states[r.Symbol] = RangeFormed
}

// Observe advances the state machine of symbol with the intraday bars fetched this tick.
// The range forms from the single bar that starts at the open and spans the whole window;
// a missing or partial bar leaves the ticker forming. A formed range is returned unchanged.
func (t *RangeTracker) Observe(symbol string, session Session, bars []dto.Bar, now time.Time) (OpeningRange, RangeState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.ranges[symbol]; ok {
		return r, RangeFormed
	}

	openAt := session.OpenAt()
	if now.Before(openAt) {
		t.states[symbol] = RangeUnformed
		return OpeningRange{Symbol: symbol}, RangeUnformed
	}
	if now.Before(session.RangeEndAt()) {
		t.states[symbol] = RangeForming
		return OpeningRange{Symbol: symbol}, RangeForming
	}

	for _, b := range bars {
		if !b.Timestamp.Equal(openAt) {
			continue
		}
		if b.High <= 0 || b.Low <= 0 || b.High < b.Low {
			break
		}
		r := OpeningRange{
			Symbol:   symbol,
			High:     b.High,
			Low:      b.Low,
			Open:     b.Open,
			FormedAt: openAt.Add(session.RangeWindow()),
			IsSet:    true,
		}
		t.ranges[symbol] = r
		t.states[symbol] = RangeFormed
		return r, RangeFormed
	}

	t.states[symbol] = RangeForming
	return OpeningRange{Symbol: symbol}, RangeForming
}

// State returns the current state of symbol.
func (t *RangeTracker) State(symbol string) RangeState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.states[symbol]; ok {
		return s
	}
	return RangeUnformed
}

// Range returns the formed range of symbol.
func (t *RangeTracker) Range(symbol string) (OpeningRange, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.ranges[symbol]
	return r, ok
}

// Ranges returns a copy of all formed ranges.
func (t *RangeTracker) Ranges() []OpeningRange {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]OpeningRange, 0, len(t.ranges))
	for _, r := range t.ranges {
		out = append(out, r)
	}
	return out
}
