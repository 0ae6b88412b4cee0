package model

import (
	"time"
)

const DayLayout = "2006-01-02"

// ParseDay parses a YYYY-MM-DD calendar date at UTC midnight.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, s, time.UTC)
}

// DayOf truncates t to its UTC calendar date.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDay(t time.Time) string {
	return DayOf(t).Format(DayLayout)
}

// DaysBetween returns the whole number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DayOf(b).Sub(DayOf(a)).Hours() / 24)
}

// StayRange is a half-open [Start, End) interval of calendar dates.
type StayRange struct {
	Start time.Time
	End   time.Time
}

func NewStayRange(start, end time.Time) StayRange {
	return StayRange{Start: DayOf(start), End: DayOf(end)}
}

func (r StayRange) Valid() bool {
	return r.End.After(r.Start)
}

func (r StayRange) Nights() int {
	return DaysBetween(r.Start, r.End)
}

func (r StayRange) Overlaps(other StayRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Contains reports whether other lies entirely within r.
func (r StayRange) Contains(other StayRange) bool {
	return !other.Start.Before(r.Start) && !other.End.After(r.End)
}

func (r StayRange) Equal(other StayRange) bool {
	return r.Start.Equal(other.Start) && r.End.Equal(other.End)
}

// Days lists every date in the range in ascending order.
func (r StayRange) Days() []time.Time {
	n := r.Nights()
	if n <= 0 {
		return nil
	}
	days := make([]time.Time, 0, n)
	for d := r.Start; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (r StayRange) String() string {
	return "[" + FormatDay(r.Start) + "," + FormatDay(r.End) + ")"
}
