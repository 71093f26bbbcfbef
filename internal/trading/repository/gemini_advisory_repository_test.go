package repository

import (
	"errors"
	"testing"

	"golang-orb-trader/internal/trading/orb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAdvice(t *testing.T) {
	t.Run("fenced reply", func(t *testing.T) {
		raw := "```json\n{\"action\": \"BUY\", \"confidence\": 0.82, \"stop_loss\": 95, \"target1\": 113, \"target2\": 125, \"reason\": \"clean break\"}\n```"
		advice, err := ParseAdvice(raw)
		require.NoError(t, err)
		assert.Equal(t, orb.ActionBuy, advice.Action)
		assert.InDelta(t, 0.82, advice.Confidence, 1e-9)
		assert.InDelta(t, 113.0, advice.Target1, 1e-9)
		assert.Equal(t, "clean break", advice.Reason)
	})

	t.Run("no object", func(t *testing.T) {
		_, err := ParseAdvice("I would hold this one.")
		assert.True(t, errors.Is(err, orb.ErrInvalidAdvice))
	})

	t.Run("broken object", func(t *testing.T) {
		_, err := ParseAdvice(`{"action": "buy", "confidence": }`)
		assert.True(t, errors.Is(err, orb.ErrInvalidAdvice))
	})
}

func TestBuildBreakoutAdvicePrompt(t *testing.T) {
	prompt := BuildBreakoutAdvicePrompt(orb.Snapshot{
		Symbol: "SMCI", Side: orb.SideShort, Price: 94, RangeHigh: 100, RangeLow: 95,
		VolumeRatio: 2, Confidence: 0.75, Regime: orb.RegimeBearish, Rank: 1,
	})
	assert.Contains(t, prompt, "SMCI")
	assert.Contains(t, prompt, `expected action "sell"`)
	assert.Contains(t, prompt, "high 100.00, low 95.00")
}
