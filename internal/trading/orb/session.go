package orb

import (
	"fmt"
	"time"
)

// SessionConfig holds the intraday schedule as offsets from local midnight.
type SessionConfig struct {
	Location     *time.Location
	Open         time.Duration
	RangeWindow  time.Duration
	EntryCutoff  time.Duration
	Checkpoint   time.Duration
	ExtendedEnd  time.Duration
	ReentryStart time.Duration
	ReentryEnd   time.Duration
	Holidays     map[string]struct{}
}

// DefaultSessionConfig is the US equity schedule: 09:30 open, 5 minute range, 10:15 checkpoint, 11:30 hard end.
func DefaultSessionConfig(loc *time.Location) SessionConfig {
	return SessionConfig{
		Location:     loc,
		Open:         9*time.Hour + 30*time.Minute,
		RangeWindow:  5 * time.Minute,
		EntryCutoff:  10*time.Hour + 15*time.Minute,
		Checkpoint:   10*time.Hour + 15*time.Minute,
		ExtendedEnd:  11*time.Hour + 30*time.Minute,
		ReentryStart: 9*time.Hour + 50*time.Minute,
		ReentryEnd:   10*time.Hour + 5*time.Minute,
		Holidays:     map[string]struct{}{},
	}
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(value string) (time.Duration, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", value, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// IsTradingDay reports whether t falls on a weekday that is not a configured holiday.
func (c SessionConfig) IsTradingDay(t time.Time) bool {
	local := t.In(c.Location)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	_, holiday := c.Holidays[local.Format("2006-01-02")]
	return !holiday
}

// SessionFor returns the session of the calendar day containing now.
func (c SessionConfig) SessionFor(now time.Time) Session {
	return Session{cfg: c, Date: startOfDay(now.In(c.Location))}
}

// Session is one trading day.
type Session struct {
	cfg  SessionConfig
	Date time.Time
}

// Key returns the session date as YYYY-MM-DD.
func (s Session) Key() string {
	return s.Date.Format("2006-01-02")
}

func (s Session) at(offset time.Duration) time.Time {
	return s.Date.Add(offset)
}

func (s Session) OpenAt() time.Time        { return s.at(s.cfg.Open) }
func (s Session) RangeEndAt() time.Time    { return s.at(s.cfg.Open + s.cfg.RangeWindow) }
func (s Session) EntryCutoffAt() time.Time { return s.at(s.cfg.EntryCutoff) }
func (s Session) CheckpointAt() time.Time  { return s.at(s.cfg.Checkpoint) }
func (s Session) ExtendedEndAt() time.Time { return s.at(s.cfg.ExtendedEnd) }
func (s Session) RangeWindow() time.Duration {
	return s.cfg.RangeWindow
}

type Phase string

const (
	PhaseClosed       Phase = "closed"
	PhasePreOpen      Phase = "pre_open"
	PhaseRangeForming Phase = "range_forming"
	PhaseEntry        Phase = "entry"
	PhaseManaging     Phase = "managing"
	PhaseEnded        Phase = "ended"
)

// Phase classifies now within the session.
func (s Session) Phase(now time.Time) Phase {
	if !s.cfg.IsTradingDay(s.Date) {
		return PhaseClosed
	}
	switch {
	case now.Before(s.OpenAt()):
		return PhasePreOpen
	case now.Before(s.RangeEndAt()):
		return PhaseRangeForming
	case now.Before(s.EntryCutoffAt()):
		return PhaseEntry
	case now.Before(s.ExtendedEndAt()):
		return PhaseManaging
	default:
		return PhaseEnded
	}
}

// InReentryWindow reports whether a stopped out ticker may be entered again.
func (s Session) InReentryWindow(now time.Time) bool {
	if s.cfg.ReentryEnd <= s.cfg.ReentryStart {
		return false
	}
	return !now.Before(s.at(s.cfg.ReentryStart)) && now.Before(s.at(s.cfg.ReentryEnd))
}
