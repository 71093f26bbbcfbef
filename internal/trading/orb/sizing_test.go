package orb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskPercentTiers(t *testing.T) {
	l := DefaultLimits()

	assert.Equal(t, 3.0, l.RiskPercent(1, RegimeBullish, 15))
	assert.Equal(t, 3.0, l.RiskPercent(1, RegimeBullish, 18))
	assert.Equal(t, 2.0, l.RiskPercent(1, RegimeBullish, 20))
	assert.Equal(t, 2.0, l.RiskPercent(1, RegimeBearish, 15))
	assert.Equal(t, 2.0, l.RiskPercent(1, RegimeBullish, 0))
	assert.Equal(t, 1.0, l.RiskPercent(2, RegimeBullish, 15))
	assert.Equal(t, 1.0, l.RiskPercent(4, RegimeBearish, 30))
	assert.Equal(t, 0.0, l.RiskPercent(5, RegimeBullish, 15))
	assert.Equal(t, 0.0, l.RiskPercent(0, RegimeBullish, 15))
}

func TestComputeLevels(t *testing.T) {
	l := DefaultLimits()
	r := formedRange("ARM", 100, 95)

	long := l.ComputeLevels(SideLong, 101, r)
	assert.Equal(t, Levels{Stop: 95, R: 6, Target1: 113, Target2: 125}, long)

	short := l.ComputeLevels(SideShort, 94, r)
	assert.Equal(t, Levels{Stop: 100, R: 6, Target1: 82, Target2: 70}, short)
}

func TestPositionSize(t *testing.T) {
	assert.Equal(t, 333, PositionSize(100_000, 2, 101, 95))
	assert.Equal(t, 500, PositionSize(100_000, 3, 101, 95))
	assert.Equal(t, 0, PositionSize(100_000, 2, 95, 95))
	assert.Equal(t, 0, PositionSize(0, 2, 101, 95))
	assert.Equal(t, 0, PositionSize(100, 1, 500, 100))
}
