package orb

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDate = "2025-03-10"

func longProposal(symbol string, rank int) Proposal {
	return Proposal{
		Signal: Signal{
			Symbol:      symbol,
			Side:        SideLong,
			Price:       101,
			VolumeRatio: 4,
			Confidence:  0.95,
			Range:       formedRange(symbol, 100, 95),
		},
		Rank:            rank,
		Equity:          100_000,
		Regime:          MarketRegime{Regime: RegimeBullish},
		VolatilityIndex: 20,
	}
}

func TestApproveSizesAndReserves(t *testing.T) {
	c := NewController(7, testDate, DefaultLimits())

	d := c.Approve(longProposal("ARM", 1))
	require.True(t, d.Allow)
	a := d.Approval
	assert.Equal(t, uint(7), a.AccountID)
	assert.Equal(t, 333, a.Qty)
	assert.Equal(t, 2.0, a.RiskPct)
	assert.Equal(t, Levels{Stop: 95, R: 6, Target1: 113, Target2: 125}, a.Levels)
	assert.Equal(t, SourceRule, a.AdviceSource)
	assert.Equal(t, 1, c.Snapshot().Reserved)

	state, ok := c.Commit(a)
	require.True(t, ok)
	assert.Equal(t, 1, state.TradesTaken)
	assert.Equal(t, 0, state.Reserved)

	_, ok = c.Commit(a)
	assert.False(t, ok, "a reservation commits once")
}

func TestApproveRejectsAtTradeCap(t *testing.T) {
	c := NewController(1, testDate, DefaultLimits())
	c.Restore(State{Date: testDate, TradesTaken: 3})

	cand := longProposal("ARM", 1)
	cand.Signal.Confidence = 0.95
	d := c.Approve(cand)
	assert.False(t, d.Allow)
	assert.Equal(t, ReasonTradeCap, d.Reason)
}

func TestReleaseDoesNotConsumeBudget(t *testing.T) {
	c := NewController(1, testDate, DefaultLimits())
	c.Restore(State{Date: testDate, TradesTaken: 2})

	d := c.Approve(longProposal("ARM", 1))
	require.True(t, d.Allow)
	assert.Equal(t, ReasonTradeCap, c.Approve(longProposal("SMCI", 2)).Reason)

	c.Release(d.Approval)
	assert.Equal(t, 2, c.Snapshot().TradesTaken)

	again := c.Approve(longProposal("SMCI", 2))
	assert.True(t, again.Allow)
}

func TestApproveRejectsUntradableCandidates(t *testing.T) {
	c := NewController(1, testDate, DefaultLimits())

	assert.Equal(t, ReasonRankNotTradable, c.Approve(longProposal("ARM", 5)).Reason)

	bad := longProposal("ARM", 1)
	bad.Signal.Price = 95
	assert.Equal(t, ReasonInvalidRisk, c.Approve(bad).Reason)

	tiny := longProposal("ARM", 2)
	tiny.Equity = 100
	assert.Equal(t, ReasonZeroSize, c.Approve(tiny).Reason)

	assert.Equal(t, 0, c.Snapshot().Reserved)
}

func TestConcurrentApprovalsTakeOneSlot(t *testing.T) {
	for round := 0; round < 50; round++ {
		c := NewController(1, testDate, DefaultLimits())
		c.Restore(State{Date: testDate, TradesTaken: 2})

		var wg sync.WaitGroup
		start := make(chan struct{})
		results := make([]Decision, 2)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				results[i] = c.Approve(longProposal("ARM", i+1))
			}(i)
		}
		close(start)
		wg.Wait()

		approved := 0
		for _, d := range results {
			if d.Allow {
				approved++
			} else {
				assert.Equal(t, ReasonTradeCap, d.Reason)
			}
		}
		assert.Equal(t, 1, approved)
	}
}

func TestConcurrentApprovalsNeverExceedCap(t *testing.T) {
	c := NewController(1, testDate, DefaultLimits())

	var wg sync.WaitGroup
	var mu sync.Mutex
	approved := 0
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := c.Approve(longProposal("ARM", 2))
			if !d.Allow {
				return
			}
			c.Commit(d.Approval)
			mu.Lock()
			approved++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, approved)
	assert.Equal(t, 3, c.Snapshot().TradesTaken)
}

func TestDailyLossLocksTheDay(t *testing.T) {
	c := NewController(1, testDate, DefaultLimits())

	assert.False(t, c.UpdatePnL(-2.9))
	assert.Equal(t, StatusActive, c.Snapshot().Status)

	assert.True(t, c.UpdatePnL(-3.1))
	s := c.Snapshot()
	assert.True(t, s.Locked)
	assert.Equal(t, StatusLocked, s.Status)
	assert.Contains(t, s.LockReason, "-3.10%")
	assert.True(t, c.PendingLiquidation())
	assert.False(t, c.CanSubmit())

	select {
	case <-c.Halted():
	default:
		t.Fatal("halt channel should be closed after a lock")
	}

	assert.False(t, c.UpdatePnL(-4), "the transition happens once")
	assert.False(t, c.UpdatePnL(1), "a recovery does not unlock")
	assert.True(t, c.Snapshot().Locked)

	d := c.Approve(longProposal("ARM", 1))
	assert.False(t, d.Allow)
	assert.Equal(t, ReasonLocked, d.Reason)

	c.MarkLiquidated()
	assert.False(t, c.PendingLiquidation())

	assert.ErrorIs(t, c.Start(), ErrLockedForDay)
}

func TestManualStopIsReversible(t *testing.T) {
	c := NewController(1, testDate, DefaultLimits())
	halted := c.Halted()

	assert.True(t, c.Stop("user request"))
	assert.False(t, c.Stop("again"))
	assert.Equal(t, StatusManuallyStopped, c.Snapshot().Status)
	assert.False(t, c.PendingLiquidation(), "a manual stop does not flatten")
	assert.Equal(t, ReasonManualStop, c.Approve(longProposal("ARM", 1)).Reason)

	select {
	case <-halted:
	case <-time.After(time.Second):
		t.Fatal("in-flight submissions should observe the stop")
	}

	require.NoError(t, c.Start())
	assert.Equal(t, StatusActive, c.Snapshot().Status)
	assert.True(t, c.CanSubmit())
	assert.True(t, c.Approve(longProposal("ARM", 1)).Allow)

	select {
	case <-c.Halted():
		t.Fatal("a fresh halt channel is open after start")
	default:
	}
}

func TestRolloverClearsLock(t *testing.T) {
	c := NewController(1, testDate, DefaultLimits())
	c.UpdatePnL(-5)
	c.Approve(longProposal("ARM", 1))

	assert.False(t, c.Rollover(testDate))
	assert.True(t, c.Rollover("2025-03-11"))

	s := c.Snapshot()
	assert.Equal(t, "2025-03-11", s.Date)
	assert.False(t, s.Locked)
	assert.Equal(t, 0, s.TradesTaken)
	assert.Equal(t, 0, s.Reserved)
	assert.True(t, c.CanSubmit())
}

func TestRestoreIgnoresOtherDays(t *testing.T) {
	c := NewController(1, testDate, DefaultLimits())
	c.Restore(State{Date: "2025-03-07", Locked: true, TradesTaken: 3})
	assert.False(t, c.Snapshot().Locked)

	c.Restore(State{Date: testDate, ManualStop: true, TradesTaken: 1})
	s := c.Snapshot()
	assert.Equal(t, StatusManuallyStopped, s.Status)
	assert.Equal(t, 1, s.TradesTaken)
	assert.False(t, c.CanSubmit())
}

func TestApproveAppliesValidAdvice(t *testing.T) {
	c := NewController(1, testDate, DefaultLimits())

	cand := longProposal("ARM", 2)
	cand.Advice = &Advice{Action: ActionBuy, Confidence: 0.82, Target1: 110, Target2: 118, Source: "gemini", Reason: "clean breakout"}
	d := c.Approve(cand)
	require.True(t, d.Allow)
	assert.Equal(t, "gemini", d.Approval.AdviceSource)
	assert.Equal(t, 0.82, d.Approval.Confidence)
	assert.Equal(t, 110.0, d.Approval.Levels.Target1)
	assert.Equal(t, 118.0, d.Approval.Levels.Target2)
	assert.Equal(t, 95.0, d.Approval.Levels.Stop, "the stop always comes from the range")

	cand.Advice = &Advice{Action: ActionBuy, Confidence: 0.9, Target1: 90, Source: "gemini"}
	d = c.Approve(cand)
	require.True(t, d.Allow)
	assert.Equal(t, SourceRule, d.Approval.AdviceSource)
	assert.Equal(t, 113.0, d.Approval.Levels.Target1)
}
