package orb

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"golang-orb-trader/internal/trading/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDailyStats(t *testing.T) {
	loc := newYork(t)
	session := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)
	th := DefaultThresholds()

	bars := dailyBars(session, 31, func(i int) (float64, float64) {
		if i == 30 {
			return 20.8, 3_000_000
		}
		return 20, 1_000_000
	})
	// A same-day bar must never leak into the stats.
	bars = append(bars, dto.Bar{Timestamp: session.Add(10 * time.Hour), Close: 50, Volume: 90_000_000})

	stats, err := ComputeDailyStats("SMCI", bars, session, th)
	require.NoError(t, err)
	assert.Equal(t, 20.8, stats.Close)
	assert.Equal(t, 20.0, stats.PrevClose)
	assert.Equal(t, 1_000_000.0, stats.AvgVolume)
	assert.InDelta(t, 3.0, stats.RVOL, 1e-9)
	assert.InDelta(t, 4.0, stats.ChangePct, 1e-9)
	assert.True(t, stats.SessionDate.Before(session))
}

func TestComputeDailyStatsNotReady(t *testing.T) {
	loc := newYork(t)
	session := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)
	th := DefaultThresholds()

	_, err := ComputeDailyStats("X", nil, session, th)
	assert.ErrorIs(t, err, ErrNotReady)

	stale := dailyBars(session.AddDate(0, 0, -14), 10, func(int) (float64, float64) { return 20, 1_000_000 })
	_, err = ComputeDailyStats("X", stale, session, th)
	assert.ErrorIs(t, err, ErrNotReady)

	zero := dailyBars(session, 5, func(int) (float64, float64) { return 20, 0 })
	_, err = ComputeDailyStats("X", zero, session, th)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestQualifyNeverReturnsViolators(t *testing.T) {
	loc := newYork(t)
	session := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)
	th := DefaultThresholds()
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		var candidates []Candidate
		var stats []DailyStats
		for i := 0; i < 12; i++ {
			symbol := string(rune('A'+i)) + "X"
			candidates = append(candidates, Candidate{
				Symbol:        symbol,
				FloatMillions: float64(rng.Intn(300)),
				Exchange:      "NASDAQ",
			})
			base := 5 + rng.Float64()*60
			baseVol := 200_000 + rng.Float64()*2_000_000
			bars := dailyBars(session, 31, func(i int) (float64, float64) {
				c := base * (0.9 + rng.Float64()*0.2)
				v := baseVol * (0.5 + rng.Float64())
				if i == 30 {
					v *= 1 + rng.Float64()*5
				}
				return c, v
			})
			s, err := ComputeDailyStats(symbol, bars, session, th)
			require.NoError(t, err)
			stats = append(stats, s)
		}

		floats := make(map[string]float64)
		for _, c := range candidates {
			floats[c.Symbol] = c.FloatMillions
		}

		got := Qualify(stats, candidates, th, "2025-03-10")
		assert.LessOrEqual(t, len(got), th.TopN)
		for i, q := range got {
			assert.GreaterOrEqual(t, q.RVOL, th.MinRVOL)
			assert.GreaterOrEqual(t, math.Abs(q.ChangePct), th.MinChangePct)
			assert.GreaterOrEqual(t, q.AvgVolume, th.MinAvgVolume)
			assert.GreaterOrEqual(t, q.Price, th.MinPrice)
			assert.Greater(t, floats[q.Symbol], 0.0)
			assert.LessOrEqual(t, floats[q.Symbol], th.MaxFloatMillions)
			assert.False(t, q.IsFallback)
			assert.Equal(t, i+1, q.Rank)
			if i > 0 {
				assert.GreaterOrEqual(t, got[i-1].RVOL, q.RVOL)
			}
		}
	}
}

func TestQualifyRanksByRVOLAndTruncates(t *testing.T) {
	th := DefaultThresholds()
	th.TopN = 2
	candidates := []Candidate{
		{Symbol: "AAA", FloatMillions: 50, Exchange: "NASDAQ"},
		{Symbol: "BBB", FloatMillions: 50, Exchange: "NASDAQ"},
		{Symbol: "CCC", FloatMillions: 50, Exchange: "NASDAQ"},
	}
	stats := []DailyStats{
		{Symbol: "AAA", Close: 30, ChangePct: 5, AvgVolume: 1e6, RVOL: 3},
		{Symbol: "BBB", Close: 30, ChangePct: -4, AvgVolume: 1e6, RVOL: 5},
		{Symbol: "CCC", Close: 30, ChangePct: 6, AvgVolume: 1e6, RVOL: 4},
		{Symbol: "ZZZ", Close: 30, ChangePct: 6, AvgVolume: 1e6, RVOL: 9},
	}

	got := Qualify(stats, candidates, th, "2025-03-10")
	require.Len(t, got, 2)
	assert.Equal(t, "BBB", got[0].Symbol)
	assert.Equal(t, "CCC", got[1].Symbol)
	assert.Equal(t, "2025-03-10", got[0].ScanDate)
}

func TestThresholdsCheckOrder(t *testing.T) {
	th := DefaultThresholds()
	c := Candidate{Symbol: "AAA", FloatMillions: 100}

	ok, reason := th.Check(DailyStats{RVOL: 1, ChangePct: 1, AvgVolume: 1, Close: 1}, c)
	assert.False(t, ok)
	assert.Equal(t, RejectRVOL, reason)

	_, reason = th.Check(DailyStats{RVOL: 3, ChangePct: -2.9, AvgVolume: 1e6, Close: 20}, c)
	assert.Equal(t, RejectChange, reason)

	_, reason = th.Check(DailyStats{RVOL: 3, ChangePct: 3, AvgVolume: 799_999, Close: 20}, c)
	assert.Equal(t, RejectAvgVolume, reason)

	_, reason = th.Check(DailyStats{RVOL: 3, ChangePct: 3, AvgVolume: 1e6, Close: 14.99}, c)
	assert.Equal(t, RejectPrice, reason)

	_, reason = th.Check(DailyStats{RVOL: 3, ChangePct: 3, AvgVolume: 1e6, Close: 20}, Candidate{FloatMillions: 151})
	assert.Equal(t, RejectFloat, reason)

	ok, _ = th.Check(DailyStats{RVOL: 2.5, ChangePct: -3, AvgVolume: 800_000, Close: 15}, c)
	assert.True(t, ok)
}

func TestFallbackSetIsFlaggedAndNeverEmpty(t *testing.T) {
	got := FallbackSet(nil, DefaultUniverse(), "2025-03-10")
	require.Len(t, got, len(DefaultFallbackSymbols))
	for i, q := range got {
		assert.True(t, q.IsFallback)
		assert.Equal(t, DefaultFallbackSymbols[i], q.Symbol)
		assert.Equal(t, i+1, q.Rank)
	}
	assert.Equal(t, "NASDAQ", got[0].Exchange)

	again := FallbackSet(nil, DefaultUniverse(), "2025-03-10")
	assert.Equal(t, got, again)

	custom := FallbackSet([]string{"SMCI"}, nil, "2025-03-10")
	require.Len(t, custom, 1)
	assert.Equal(t, "SMCI", custom[0].Symbol)
	assert.True(t, custom[0].IsFallback)
}

func TestReuseAnnotatesDaysAgo(t *testing.T) {
	prev := []QualifiedStock{{Symbol: "ARM", Rank: 3, ScanDate: "2025-03-07", RVOL: 3.2}}
	got := Reuse(prev, "2025-03-10", 1)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsFallback)
	assert.Equal(t, 1, got[0].DaysAgo)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, "2025-03-10", got[0].ScanDate)
	assert.False(t, prev[0].IsFallback)
}
