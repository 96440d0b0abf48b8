package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "reactor.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeTOML(t, `
[scheduler]
batch_size = 32
budget = 500
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Scheduler.BatchSize)
	assert.Equal(t, 500, cfg.Scheduler.Budget)
	assert.Equal(t, int32(-1024), cfg.Scheduler.NiceMin)
	assert.Equal(t, int32(1024), cfg.Scheduler.NiceMax)
	assert.Equal(t, "real", cfg.Scheduler.ClockMode)
	assert.Equal(t, "off", cfg.Trace.Level)
}

func TestLoadRequiresSchedulerSection(t *testing.T) {
	path := writeTOML(t, `
[trace]
level = "debug"
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrSchedulerSectionMissing)
}

func TestLoadRejectsInvertedNiceRange(t *testing.T) {
	path := writeTOML(t, `
[scheduler]
batch_size = 16
budget = 200
nice_min = 100
nice_max = -100
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nice_min")
}

func TestLoadRejectsUnknownClockMode(t *testing.T) {
	path := writeTOML(t, `
[scheduler]
batch_size = 16
budget = 200
clock_mode = "fictional"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clock_mode")
}

func TestLoadMalformedTOML(t *testing.T) {
	path := writeTOML(t, `this is not toml {{{`)
	_, err := Load(path)
	require.Error(t, err)
}
