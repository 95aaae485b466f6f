package recurring

import (
	"time"

	"github.com/rezkam/weekplan/internal/domain"
)

// WeeklyCalculator generates occurrences on a fixed weekday every N weeks,
// counted from the week the template was created in.
type WeeklyCalculator struct {
	weeksPerStep int
}

func (c *WeeklyCalculator) stepDays(template *domain.RecurringTaskTemplate) int {
	return 7 * c.weeksPerStep * interval(template)
}

// first returns the configured weekday inside the template's creation week.
func (c *WeeklyCalculator) first(template *domain.RecurringTaskTemplate) time.Time {
	created := dateOnly(template.CreatedAt)
	monday := created.AddDate(0, 0, -((int(created.Weekday()) + 6) % 7))

	weekday := time.Monday
	if template.DayOfWeek != nil {
		weekday = *template.DayOfWeek
	}
	return monday.AddDate(0, 0, (int(weekday)+6)%7)
}

func (c *WeeklyCalculator) NextOccurrence(template *domain.RecurringTaskTemplate, after time.Time) time.Time {
	first := c.first(template)
	if after.Before(first) {
		return first
	}
	step := c.stepDays(template)
	days := int(after.Sub(first).Hours() / 24)
	next := first.AddDate(0, 0, (days/step+1)*step)
	if !next.After(after) {
		next = next.AddDate(0, 0, step)
	}
	return next
}

func (c *WeeklyCalculator) OccurrencesBetween(template *domain.RecurringTaskTemplate, start, end time.Time) []time.Time {
	first := c.first(template)
	step := c.stepDays(template)

	current := first
	if start.After(first) {
		days := int(start.Sub(first).Hours() / 24)
		current = first.AddDate(0, 0, (days/step)*step)
	}

	var occurrences []time.Time
	for current.Before(end) {
		if !current.Before(start) {
			occurrences = append(occurrences, current)
		}
		current = current.AddDate(0, 0, step)
	}
	return occurrences
}

// MonthlyCalculator generates occurrences on a day of the month every N months,
// counted from the month the template was created in. Days past the end of a
// month clamp to its last day.
type MonthlyCalculator struct{}

func (c *MonthlyCalculator) day(template *domain.RecurringTaskTemplate) int {
	if template.DayOfMonth != nil && *template.DayOfMonth >= 1 {
		return min(*template.DayOfMonth, 31)
	}
	return template.CreatedAt.UTC().Day()
}

func (c *MonthlyCalculator) occurrence(template *domain.RecurringTaskTemplate, monthOffset int) time.Time {
	created := template.CreatedAt.UTC()
	monthStart := time.Date(created.Year(), created.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, monthOffset, 0)
	lastDay := monthStart.AddDate(0, 1, -1).Day()
	return monthStart.AddDate(0, 0, min(c.day(template), lastDay)-1)
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

func (c *MonthlyCalculator) NextOccurrence(template *domain.RecurringTaskTemplate, after time.Time) time.Time {
	step := interval(template)
	offset := 0
	if diff := monthsBetween(template.CreatedAt.UTC(), after.UTC()); diff > 0 {
		offset = (diff / step) * step
	}
	for {
		occ := c.occurrence(template, offset)
		if occ.After(after) {
			return occ
		}
		offset += step
	}
}

func (c *MonthlyCalculator) OccurrencesBetween(template *domain.RecurringTaskTemplate, start, end time.Time) []time.Time {
	step := interval(template)
	offset := 0
	if diff := monthsBetween(template.CreatedAt.UTC(), start.UTC()) - 1; diff > 0 {
		offset = (diff / step) * step
	}

	var occurrences []time.Time
	for {
		occ := c.occurrence(template, offset)
		if !occ.Before(end) {
			break
		}
		if !occ.Before(start) {
			occurrences = append(occurrences, occ)
		}
		offset += step
	}
	return occurrences
}
