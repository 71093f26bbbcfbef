package orb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckpointExtendsWinnersAndFlattensTheRest(t *testing.T) {
	rule := DefaultExitRule()

	// Long from 100 with stop 95: R is 5.
	assert.InDelta(t, 1.6, UnrealizedR(SideLong, 100, 95, 108), 1e-9)
	assert.Equal(t, ExitExtend, rule.Checkpoint(SideLong, 100, 95, 108))
	assert.Equal(t, ExitFlatten, rule.Checkpoint(SideLong, 100, 95, 102.5))
	assert.Equal(t, ExitFlatten, rule.Checkpoint(SideLong, 100, 95, 97))

	assert.Equal(t, ExitExtend, rule.Checkpoint(SideShort, 100, 105, 92))
	assert.Equal(t, ExitFlatten, rule.Checkpoint(SideShort, 100, 105, 97.5))

	assert.Equal(t, 0.0, UnrealizedR(SideLong, 100, 100, 110))
}

func TestTrailBreached(t *testing.T) {
	assert.True(t, TrailBreached(SideLong, 99, 100))
	assert.False(t, TrailBreached(SideLong, 101, 100))
	assert.True(t, TrailBreached(SideShort, 101, 100))
	assert.False(t, TrailBreached(SideShort, 99, 100))
	assert.False(t, TrailBreached(SideLong, 99, 0))
}

func TestRatchetStop(t *testing.T) {
	stop, moved := RatchetStop(SideLong, 95, 97)
	assert.True(t, moved)
	assert.Equal(t, 97.0, stop)

	stop, moved = RatchetStop(SideLong, 97, 96)
	assert.False(t, moved)
	assert.Equal(t, 97.0, stop)

	stop, moved = RatchetStop(SideShort, 105, 103)
	assert.True(t, moved)
	assert.Equal(t, 103.0, stop)

	_, moved = RatchetStop(SideShort, 103, 104)
	assert.False(t, moved)
}

func TestIndicators(t *testing.T) {
	sma, ok := SMA([]float64{1, 2, 3, 4}, 2)
	assert.True(t, ok)
	assert.Equal(t, 3.5, sma)

	_, ok = SMA([]float64{1}, 2)
	assert.False(t, ok)

	ema, ok := EMA([]float64{10, 10, 10, 10}, 3)
	assert.True(t, ok)
	assert.InDelta(t, 10, ema, 1e-9)

	ema, ok = EMA([]float64{1, 2, 3, 4}, 3)
	assert.True(t, ok)
	assert.InDelta(t, 3, ema, 1e-9)

	assert.Equal(t, 101.24, RoundPrice(101.2449))
}
