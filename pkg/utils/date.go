package utils

import (
	"log"
	"sync"
	"time"
)

const DateLayout = "2006-01-02"

var (
	marketLocation     *time.Location
	marketLocationOnce sync.Once
)

// GetMarketLocation returns the US equity market timezone.
func GetMarketLocation() *time.Location {
	marketLocationOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			log.Fatal("Failed to load location", err)
		}
		marketLocation = loc
	})
	return marketLocation
}

// DateKey formats t as a calendar date in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDate parses a YYYY-MM-DD string in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, loc)
}
