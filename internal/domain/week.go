package domain

import "time"

// DefaultWeekAnchor is the Monday that counts as week 1 when no anchor is configured.
var DefaultWeekAnchor = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// WeekCalendar maps instants to absolute week numbers.
//
// Week numbers count Monday-starting weeks from the anchor week (week 1) and
// never wrap at year boundaries, so "week + 1" is always the following week.
type WeekCalendar struct {
	anchor time.Time
}

// NewWeekCalendar returns a calendar anchored at the Monday on or before anchor.
// A zero anchor uses DefaultWeekAnchor.
func NewWeekCalendar(anchor time.Time) WeekCalendar {
	if anchor.IsZero() {
		anchor = DefaultWeekAnchor
	}
	return WeekCalendar{anchor: startOfWeek(anchor.UTC())}
}

// Anchor returns the start of week 1.
func (c WeekCalendar) Anchor() time.Time {
	if c.anchor.IsZero() {
		return DefaultWeekAnchor
	}
	return c.anchor
}

// WeekOf returns the week number containing t. Instants before the anchor
// produce numbers below 1.
func (c WeekCalendar) WeekOf(t time.Time) int {
	start := startOfWeek(t.UTC())
	days := int(start.Sub(c.Anchor()).Hours()) / 24
	return days/7 + 1
}

// StartOf returns the Monday 00:00 UTC that begins the given week.
func (c WeekCalendar) StartOf(week int) time.Time {
	return c.Anchor().AddDate(0, 0, 7*(week-1))
}

// EndOf returns the exclusive end of the given week.
func (c WeekCalendar) EndOf(week int) time.Time {
	return c.StartOf(week + 1)
}

func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}
