package models

import (
	"fmt"
	"time"
)

// DayLayout is the calendar date format used on the wire.
const DayLayout = "2006-01-02"

// DateRange is a caller supplied range of calendar days. Either bound may be
// omitted, leaving that side unbounded.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// Window is a resolved range of instants: From is the start of the first day
// and To the last instant of the final day.
type Window struct {
	From *time.Time
	To   *time.Time
}

// Complete reports whether both bounds are set.
func (w Window) Complete() bool {
	return w.From != nil && w.To != nil
}

// Overlaps applies the closed-interval test start <= other.To && end >= other.From.
// Both windows must be complete.
func (w Window) Overlaps(other Window) bool {
	if !w.Complete() || !other.Complete() {
		return false
	}
	return !w.From.After(*other.To) && !w.To.Before(*other.From)
}

// Window resolves the range in loc: [startOfDay(Start), endOfDay(End)].
func (r DateRange) Window(loc *time.Location) (Window, error) {
	var w Window
	if r.Start != nil {
		from := StartOfDay(*r.Start, loc)
		w.From = &from
	}
	if r.End != nil {
		to := EndOfDay(*r.End, loc)
		w.To = &to
	}
	if w.Complete() && w.From.After(*w.To) {
		return Window{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidPeriod,
			r.Start.In(locOrUTC(loc)).Format(DayLayout), r.End.In(locOrUTC(loc)).Format(DayLayout))
	}
	return w, nil
}

// StartOfDay returns midnight of t's calendar day in loc, expressed in UTC.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	loc = locOrUTC(loc)
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).UTC()
}

// EndOfDay returns the last millisecond of t's calendar day in loc, expressed
// in UTC. Millisecond precision keeps the value stable in stores that truncate.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	loc = locOrUTC(loc)
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc).UTC()
}

// ParseDay parses a YYYY-MM-DD value as a calendar day in loc.
func ParseDay(value string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(DayLayout, value, locOrUTC(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidPeriod, value)
	}
	return day.UTC(), nil
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
