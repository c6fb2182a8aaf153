package clock

import "time"

// Clock is the injected time source for the core. All command handlers and
// aggregation code take their notion of "now" and week numbering from here
// so tests can fix time.
type Clock interface {
	Now() time.Time
	// ISOWeek returns the ISO 8601 year and week number for t.
	ISOWeek(t time.Time) (year, week int)
}

// System is the production clock backed by the OS.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) ISOWeek(t time.Time) (int, int) { return t.ISOWeek() }

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekStart returns the Monday 00:00 that opens the given ISO week, in UTC.
// ISO 8601 guarantees January 4th always falls in week 1 of its year, which
// anchors the computation without special cases at year boundaries.
func WeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	// Monday of week 1.
	wd := int(jan4.Weekday())
	if wd == 0 {
		wd = 7 // Sunday
	}
	monday := jan4.AddDate(0, 0, 1-wd)
	return monday.AddDate(0, 0, (week-1)*7)
}

// WeekBounds returns the half-open Monday..next-Monday interval of the ISO
// week containing t, in t's location.
func WeekBounds(t time.Time) (start, end time.Time) {
	date := DateOf(t)
	wd := int(date.Weekday())
	if wd == 0 {
		wd = 7
	}
	start = date.AddDate(0, 0, 1-wd)
	return start, start.AddDate(0, 0, 7)
}
