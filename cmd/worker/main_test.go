package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPassword(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"postgres with password", "postgres://planner:secret@db:5432/weekplan", "postgres://planner:xxxxxx@db:5432/weekplan"},
		{"postgres without password", "postgres://planner@db/weekplan", "postgres://planner@db/weekplan"},
		{"sqlite path", "data/weekplan.db", "data/weekplan.db"},
		{"unparseable", "postgres://%zz", "[REDACTED]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maskPassword(tt.in))
		})
	}
}
