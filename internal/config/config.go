// Package config loads weekplan configuration from WEEKPLAN_* environment variables.
package config

import (
	"fmt"

	"github.com/rezkam/weekplan/internal/env"
)

// Config holds the configuration shared by the operator CLI.
type Config struct {
	Database      DatabaseConfig
	Engine        EngineConfig
	Archive       ArchiveConfig
	Observability ObservabilityConfig
}

// Load parses environment variables into a Config struct.
// Every section is validated on the way.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}
