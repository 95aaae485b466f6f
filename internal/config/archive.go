package config

import "fmt"

// Supported archive backends.
const (
	ArchiveNone = "none"
	ArchiveFS   = "fs"
	ArchiveGCS  = "gcs"
)

// ArchiveConfig selects where snapshots of closed weeks are kept.
type ArchiveConfig struct {
	Type   string `env:"WEEKPLAN_ARCHIVE_TYPE" default:"none"`
	Dir    string `env:"WEEKPLAN_ARCHIVE_DIR" default:"./weekplan-archive"`
	Bucket string `env:"WEEKPLAN_ARCHIVE_BUCKET"`
}

// Validate validates the archive configuration.
func (c *ArchiveConfig) Validate() error {
	switch c.Type {
	case ArchiveNone:
	case ArchiveFS:
		if c.Dir == "" {
			return fmt.Errorf("WEEKPLAN_ARCHIVE_DIR is required when WEEKPLAN_ARCHIVE_TYPE is 'fs'")
		}
	case ArchiveGCS:
		if c.Bucket == "" {
			return fmt.Errorf("WEEKPLAN_ARCHIVE_BUCKET is required when WEEKPLAN_ARCHIVE_TYPE is 'gcs'")
		}
	default:
		return fmt.Errorf("unknown WEEKPLAN_ARCHIVE_TYPE: %s", c.Type)
	}
	return nil
}
