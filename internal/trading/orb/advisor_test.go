package orb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleScorer(t *testing.T) {
	sig := Signal{Symbol: "ARM", Side: SideShort, Price: 94, VolumeRatio: 2, Confidence: 0.75, Range: formedRange("ARM", 100, 95)}
	advice, err := RuleScorer{Limits: DefaultLimits()}.Score(context.Background(), SnapshotOf(sig, 1, RegimeBearish, 96))
	require.NoError(t, err)

	assert.Equal(t, ActionSell, advice.Action)
	assert.Equal(t, SourceRule, advice.Source)
	assert.Equal(t, 0.75, advice.Confidence)
	assert.Equal(t, 100.0, advice.StopLoss)
	assert.Equal(t, 82.0, advice.Target1)
	assert.NoError(t, advice.Validate(SideShort, 94))
}

func TestAdviceValidate(t *testing.T) {
	cases := map[string]struct {
		advice Advice
		side   Side
		valid  bool
	}{
		"hold is always valid":   {Advice{Action: ActionHold, Confidence: 0.4}, SideLong, true},
		"buy with targets":       {Advice{Action: ActionBuy, Confidence: 0.8, Target1: 110, Target2: 120}, SideLong, true},
		"buy on short candidate": {Advice{Action: ActionBuy, Confidence: 0.8}, SideShort, false},
		"unknown action":         {Advice{Action: "maybe", Confidence: 0.8}, SideLong, false},
		"confidence too high":    {Advice{Action: ActionBuy, Confidence: 1.5}, SideLong, false},
		"target below entry":     {Advice{Action: ActionBuy, Confidence: 0.8, Target1: 99}, SideLong, false},
		"targets out of order":   {Advice{Action: ActionBuy, Confidence: 0.8, Target1: 110, Target2: 105}, SideLong, false},
		"short targets":          {Advice{Action: ActionSell, Confidence: 0.8, Target1: 90, Target2: 80}, SideShort, true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.advice.Validate(tc.side, 100)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidAdvice)
			}
		})
	}

	assert.True(t, Advice{Action: ActionHold}.Vetoes())
}
