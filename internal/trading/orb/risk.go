package orb

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLockedForDay is returned when a manual start is requested on a locked day.
var ErrLockedForDay = errors.New("risk state is locked for the trading day")

type Status string

const (
	StatusActive          Status = "active"
	StatusLocked          Status = "locked"
	StatusManuallyStopped Status = "manually_stopped"
)

// Rejection reasons returned in a Decision.
const (
	ReasonLocked          = "locked"
	ReasonManualStop      = "manual_stop"
	ReasonTradeCap        = "trade_cap"
	ReasonRankNotTradable = "rank_not_tradable"
	ReasonInvalidRisk     = "invalid_risk_per_share"
	ReasonZeroSize        = "zero_size"
)

// State is the per-account, per-day risk record.
type State struct {
	AccountID   uint      `json:"account_id"`
	Date        string    `json:"date"`
	Status      Status    `json:"status"`
	TradesTaken int       `json:"trades_taken"`
	Reserved    int       `json:"reserved"`
	DailyPnLPct float64   `json:"daily_pnl_pct"`
	Locked      bool      `json:"locked"`
	LockReason  string    `json:"lock_reason,omitempty"`
	ManualStop  bool      `json:"manual_stop"`
	StopReason  string    `json:"stop_reason,omitempty"`
	Liquidated  bool      `json:"liquidated"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Proposal is a gated signal presented to the controller for approval.
type Proposal struct {
	Signal          Signal
	Rank            int
	Equity          float64
	Regime          MarketRegime
	VolatilityIndex float64
	Advice          *Advice
}

// Approval is a sized, reserved trade. It must be committed or released.
type Approval struct {
	Reservation  uint64  `json:"reservation"`
	AccountID    uint    `json:"account_id"`
	Symbol       string  `json:"symbol"`
	Side         Side    `json:"side"`
	Rank         int     `json:"rank"`
	Entry        float64 `json:"entry"`
	Levels       Levels  `json:"levels"`
	Qty          int     `json:"qty"`
	RiskPct      float64 `json:"risk_pct"`
	Confidence   float64 `json:"confidence"`
	VolumeRatio  float64 `json:"volume_ratio"`
	AdviceSource string  `json:"advice_source"`
	AdviceReason string  `json:"advice_reason,omitempty"`
}

// Decision is the controller verdict on a candidate.
type Decision struct {
	Allow    bool
	Reason   string
	Approval Approval
}

// Controller is the single authority over one account's risk state for the day.
// Approval reserves a trade slot under the lock, so concurrent approvals cannot exceed the cap.
type Controller struct {
	mu           sync.Mutex
	limits       Limits
	state        State
	seq          uint64
	reservations map[uint64]struct{}
	halt         chan struct{}
}

func NewController(accountID uint, date string, limits Limits) *Controller {
	return &Controller{
		limits:       limits,
		state:        State{AccountID: accountID, Date: date, Status: StatusActive, UpdatedAt: time.Now()},
		reservations: make(map[uint64]struct{}),
		halt:         make(chan struct{}),
	}
}

func (c *Controller) Limits() Limits {
	return c.limits
}

// Restore loads a persisted record of the same day, e.g. after a restart.
func (c *Controller) Restore(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.Date != c.state.Date {
		return
	}
	c.state.TradesTaken = s.TradesTaken
	c.state.DailyPnLPct = s.DailyPnLPct
	c.state.Locked = s.Locked
	c.state.LockReason = s.LockReason
	c.state.ManualStop = s.ManualStop
	c.state.StopReason = s.StopReason
	c.state.Liquidated = s.Liquidated
	if c.state.Locked || c.state.ManualStop {
		c.closeHalt()
	}
	c.touch()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Rollover resets the state when date differs from the current day. It clears any lock.
func (c *Controller) Rollover(date string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Date == date {
		return false
	}
	c.state = State{AccountID: c.state.AccountID, Date: date}
	c.reservations = make(map[uint64]struct{})
	c.halt = make(chan struct{})
	c.touch()
	return true
}

// Approve evaluates a candidate and, when allowed, reserves a trade slot.
func (c *Controller) Approve(cand Proposal) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state.Locked:
		return Decision{Reason: ReasonLocked}
	case c.state.ManualStop:
		return Decision{Reason: ReasonManualStop}
	case c.state.TradesTaken+len(c.reservations) >= c.limits.MaxTradesPerDay:
		return Decision{Reason: ReasonTradeCap}
	}

	sig := cand.Signal
	riskPct := c.limits.RiskPercent(cand.Rank, cand.Regime.Regime, cand.VolatilityIndex)
	if riskPct <= 0 {
		return Decision{Reason: ReasonRankNotTradable}
	}
	levels := c.limits.ComputeLevels(sig.Side, sig.Price, sig.Range)
	if levels.R <= 0 {
		return Decision{Reason: ReasonInvalidRisk}
	}
	qty := PositionSize(cand.Equity, riskPct, sig.Price, levels.Stop)
	if qty <= 0 {
		return Decision{Reason: ReasonZeroSize}
	}

	approval := Approval{
		AccountID:    c.state.AccountID,
		Symbol:       sig.Symbol,
		Side:         sig.Side,
		Rank:         cand.Rank,
		Entry:        sig.Price,
		Levels:       levels,
		Qty:          qty,
		RiskPct:      riskPct,
		Confidence:   sig.Confidence,
		VolumeRatio:  sig.VolumeRatio,
		AdviceSource: SourceRule,
	}
	if a := cand.Advice; a != nil && a.Source != SourceRule && a.Validate(sig.Side, sig.Price) == nil {
		approval.AdviceSource = a.Source
		approval.AdviceReason = a.Reason
		approval.Confidence = a.Confidence
		if a.Target1 != 0 {
			approval.Levels.Target1 = a.Target1
			if a.Target2 != 0 {
				approval.Levels.Target2 = a.Target2
			}
		}
	}

	c.seq++
	approval.Reservation = c.seq
	c.reservations[c.seq] = struct{}{}
	c.touch()
	return Decision{Allow: true, Approval: approval}
}

// Commit turns a reservation into a taken trade. It returns false for an unknown reservation.
func (c *Controller) Commit(a Approval) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.reservations[a.Reservation]; !ok {
		return c.state, false
	}
	delete(c.reservations, a.Reservation)
	c.state.TradesTaken++
	c.touch()
	return c.state, true
}

// Release frees a reservation without consuming the trade budget.
func (c *Controller) Release(a Approval) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.reservations, a.Reservation)
	c.touch()
}

// UpdatePnL records the daily P&L percent and locks the day when it reaches the loss limit.
// It returns true only on the transition to locked.
func (c *Controller) UpdatePnL(pct float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.DailyPnLPct = pct
	defer c.touch()
	if c.state.Locked || pct > -c.limits.DailyLossLimitPct {
		return false
	}
	c.lock(fmt.Sprintf("daily loss %.2f%% reached limit of %.2f%%", pct, c.limits.DailyLossLimitPct))
	return true
}

// Lock locks the day with reason. It returns false when already locked.
func (c *Controller) Lock(reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Locked {
		return false
	}
	c.lock(reason)
	c.touch()
	return true
}

func (c *Controller) lock(reason string) {
	c.state.Locked = true
	c.state.LockReason = reason
	c.closeHalt()
}

// Stop halts new entries until Start. Existing positions are left alone.
func (c *Controller) Stop(reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ManualStop {
		return false
	}
	c.state.ManualStop = true
	c.state.StopReason = reason
	c.closeHalt()
	c.touch()
	return true
}

// Start clears a manual stop. A locked day cannot be restarted.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Locked {
		return ErrLockedForDay
	}
	c.state.ManualStop = false
	c.state.StopReason = ""
	select {
	case <-c.halt:
		c.halt = make(chan struct{})
	default:
	}
	c.touch()
	return nil
}

// CanSubmit reports whether an approved order may still be sent.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.state.Locked && !c.state.ManualStop
}

// Halted is closed when the account is locked or manually stopped.
func (c *Controller) Halted() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halt
}

// PendingLiquidation reports a lock whose cancel-and-flatten has not completed.
func (c *Controller) PendingLiquidation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Locked && !c.state.Liquidated
}

func (c *Controller) MarkLiquidated() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Liquidated = true
	c.touch()
}

func (c *Controller) closeHalt() {
	select {
	case <-c.halt:
	default:
		close(c.halt)
	}
}

func (c *Controller) touch() {
	c.state.Reserved = len(c.reservations)
	switch {
	case c.state.Locked:
		c.state.Status = StatusLocked
	case c.state.ManualStop:
		c.state.Status = StatusManuallyStopped
	default:
		c.state.Status = StatusActive
	}
	c.state.UpdatedAt = time.Now()
}
