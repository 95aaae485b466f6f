package recurring

import (
	"time"

	"github.com/rezkam/weekplan/internal/domain"
)

// PatternCalculator computes occurrence instants for a recurring template.
type PatternCalculator interface {
	// NextOccurrence returns the first occurrence strictly after the given instant.
	NextOccurrence(template *domain.RecurringTaskTemplate, after time.Time) time.Time

	// OccurrencesBetween returns all occurrences within [start, end).
	OccurrencesBetween(template *domain.RecurringTaskTemplate, start, end time.Time) []time.Time
}

// GetCalculator returns the appropriate calculator for the given pattern.
func GetCalculator(pattern domain.RecurrencePattern) PatternCalculator {
	switch pattern {
	case domain.RecurrenceWeekly:
		return &WeeklyCalculator{weeksPerStep: 1}
	case domain.RecurrenceBiweekly:
		return &WeeklyCalculator{weeksPerStep: 2}
	case domain.RecurrenceMonthly:
		return &MonthlyCalculator{}
	default:
		return nil
	}
}

// interval returns the template interval, treating anything below 1 as 1 so
// occurrence loops always advance.
func interval(template *domain.RecurringTaskTemplate) int {
	if template.Interval < 1 {
		return 1
	}
	return template.Interval
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
