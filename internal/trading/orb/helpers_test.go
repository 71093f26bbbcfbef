package orb

import (
	"testing"
	"time"

	"golang-orb-trader/internal/trading/dto"

	"github.com/stretchr/testify/require"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

// dailyBars builds n daily bars on the weekdays strictly before end, oldest first.
func dailyBars(end time.Time, n int, gen func(i int) (closePrice, volume float64)) []dto.Bar {
	days := make([]time.Time, 0, n)
	for d := startOfDay(end).AddDate(0, 0, -1); len(days) < n; d = d.AddDate(0, 0, -1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	bars := make([]dto.Bar, n)
	for i := 0; i < n; i++ {
		day := days[n-1-i]
		c, v := gen(i)
		bars[i] = dto.Bar{Timestamp: day, Open: c, High: c * 1.01, Low: c * 0.99, Close: c, Volume: v}
	}
	return bars
}

func formedRange(symbol string, high, low float64) OpeningRange {
	return OpeningRange{Symbol: symbol, High: high, Low: low, IsSet: true}
}
