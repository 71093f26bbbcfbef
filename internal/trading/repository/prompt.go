package repository

import (
	"fmt"

	"golang-orb-trader/internal/trading/orb"
)

func BuildBreakoutAdvicePrompt(snap orb.Snapshot) string {
	action := "buy"
	if snap.Side == orb.SideShort {
		action = "sell"
	}

	promptTemplate := `You are an intraday equity trader reviewing an opening range breakout on a US stock.

Candidate:
- Symbol: %s
- Direction: %s (expected action "%s")
- Last price: %.2f
- Opening range: high %.2f, low %.2f
- Volume ratio vs trailing average: %.2f
- Rule confidence: %.2f
- VWAP: %.2f
- Market regime: %s
- Scanner rank: %d

Rules:
- Answer "%s" to take the trade or "hold" to decline it. Any other action is invalid.
- The stop loss is the opposite side of the opening range.
- target1 and target2 must be on the profit side of the last price, target2 beyond target1.
- confidence is between 0.0 and 1.0.

Respond with a single JSON object and nothing else:

{
  "action": "%s | hold",
  "confidence": {0.0 - 1.0},
  "stop_loss": {price},
  "target1": {price},
  "target2": {price},
  "reason": "{one sentence}"
}`

	return fmt.Sprintf(promptTemplate,
		snap.Symbol, snap.Side, action, snap.Price, snap.RangeHigh, snap.RangeLow,
		snap.VolumeRatio, snap.Confidence, snap.VWAP, snap.Regime, snap.Rank,
		action, action,
	)
}
