package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 20*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.False(t, cfg.Pipeline.SuppressEmptyBids)
	assert.Equal(t, "sources.yaml", cfg.SourcesFile)
	assert.Equal(t, "cash_bids.csv", cfg.Output.CSVName)
}

func TestLoadFrom_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
logging:
  level: debug
pipeline:
  concurrency: 8
  suppress_empty_bids: true
sources_file: /etc/grainbids/sources.yaml
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.True(t, cfg.Pipeline.SuppressEmptyBids)
	assert.Equal(t, "/etc/grainbids/sources.yaml", cfg.SourcesFile)
	// Fields not in the file keep their defaults.
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 20*time.Second, cfg.Fetch.Timeout)
}

func TestLoadFrom_EnvOverride(t *testing.T) {
	t.Setenv("GRAINBIDS_SERVER_PORT", "7070")
	t.Setenv("GRAINBIDS_LOGGING_LEVEL", "warn")

	cfg, err := LoadFrom("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFrom_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: 99999\n"},
		{"bad log level", "logging:\n  level: verbose\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := LoadFrom(path)
			assert.Error(t, err)
		})
	}
}

func TestValidate_Concurrency(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)
	cfg.Pipeline.Concurrency = 0
	assert.Error(t, cfg.validate())
}
