package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rezkam/weekplan/internal/env"
)

// ScheduleParser parses WEEKPLAN_WORKER_SCHEDULE. Expressions carry a leading seconds field.
var ScheduleParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// WorkerConfig holds all configuration for the worker binary.
type WorkerConfig struct {
	Database      DatabaseConfig
	Engine        EngineConfig
	Archive       ArchiveConfig
	Observability ObservabilityConfig

	Schedule         string        `env:"WEEKPLAN_WORKER_SCHEDULE" default:"0 5 * * * *"`
	OperationTimeout time.Duration `env:"WEEKPLAN_WORKER_OPERATION_TIMEOUT" default:"30s"`
}

// Validate validates the worker-specific settings.
func (c *WorkerConfig) Validate() error {
	if _, err := ScheduleParser.Parse(c.Schedule); err != nil {
		return fmt.Errorf("invalid WEEKPLAN_WORKER_SCHEDULE %q: %w", c.Schedule, err)
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("WEEKPLAN_WORKER_OPERATION_TIMEOUT must be positive, got %s", c.OperationTimeout)
	}
	return nil
}

// LoadWorkerConfig loads and validates worker configuration from environment.
func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load worker config: %w", err)
	}

	return cfg, nil
}
