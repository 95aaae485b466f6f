package config

import (
	"fmt"
	"time"

	"github.com/rezkam/weekplan/internal/domain"
)

// EngineConfig holds lifecycle engine settings.
type EngineConfig struct {
	DefaultSpanWeeks int `env:"WEEKPLAN_DEFAULT_SPAN_WEEKS" default:"1"`
	MaxSpanWeeks     int `env:"WEEKPLAN_MAX_SPAN_WEEKS" default:"15"`

	// WeekAnchor is the Monday that counts as week 1. Zero uses domain.DefaultWeekAnchor.
	WeekAnchor time.Time `env:"WEEKPLAN_WEEK_ANCHOR"`
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	if c.MaxSpanWeeks < 1 {
		return fmt.Errorf("WEEKPLAN_MAX_SPAN_WEEKS must be at least 1, got %d", c.MaxSpanWeeks)
	}
	if c.DefaultSpanWeeks < 1 || c.DefaultSpanWeeks > c.MaxSpanWeeks {
		return fmt.Errorf("WEEKPLAN_DEFAULT_SPAN_WEEKS must be between 1 and %d, got %d", c.MaxSpanWeeks, c.DefaultSpanWeeks)
	}
	if !c.WeekAnchor.IsZero() && c.WeekAnchor.Weekday() != time.Monday {
		return fmt.Errorf("WEEKPLAN_WEEK_ANCHOR must be a Monday, got %s", c.WeekAnchor.Weekday())
	}
	return nil
}

// Calendar returns the week calendar described by the configuration.
func (c *EngineConfig) Calendar() domain.WeekCalendar {
	return domain.NewWeekCalendar(c.WeekAnchor)
}
