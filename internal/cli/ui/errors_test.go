package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name        string
		opts        ErrorOptions
		contains    []string
		notContains []string
	}{
		{
			name:     "context and problem",
			opts:     ErrorOptions{Context: "resource not found", Problem: "Cannot find resource type 'tems'."},
			contains: []string{"❌ RESOURCE NOT FOUND: Cannot find resource type 'tems'."},
		},
		{
			name:     "suggestions",
			opts:     ErrorOptions{Problem: "unknown", Suggestions: []string{"teams", "team_members"}},
			contains: []string{"Did you mean: teams, team_members?"},
		},
		{
			name:     "help commands",
			opts:     ErrorOptions{Problem: "failed", HelpCommands: []string{"Check migration status: kwai migrate status"}},
			contains: []string{"→ Check migration status: kwai migrate status"},
		},
		{
			name:        "warning",
			opts:        ErrorOptions{Level: ErrorLevelWarning, Problem: "cache unavailable"},
			contains:    []string{"⚠️ cache unavailable"},
			notContains: []string{"❌", "Did you mean"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.NoColor = true
			out := FormatError(tt.opts)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestMessages(t *testing.T) {
	t.Run("resource not found", func(t *testing.T) {
		out := ResourceNotFoundError("tems", []string{"teams"}, true)
		assert.Contains(t, out, "Cannot find resource type 'tems'.")
		assert.Contains(t, out, "Did you mean: teams?")
		assert.Contains(t, out, "kwai resources")
	})

	t.Run("migration error", func(t *testing.T) {
		assert.Contains(t, MigrationError("syntax error", nil, true), "No migrations were applied.")
		assert.Contains(t, MigrationError("syntax error", []string{"001_club"}, true), "Applied before the failure: 001_club")
	})

	t.Run("config error", func(t *testing.T) {
		assert.Contains(t, ConfigError("database.url is not set", true), "CONFIGURATION ERROR: database.url is not set")
	})

	t.Run("success", func(t *testing.T) {
		var buf bytes.Buffer
		WriteSuccess(&buf, "Applied 001_club", true)
		assert.Equal(t, "✓ Applied 001_club\n", buf.String())
	})
}
