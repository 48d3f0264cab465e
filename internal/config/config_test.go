package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
listen: ":9090"
sheet:
  format: tsv
  spreadsheet_id: abc
  timeout: 30s
schedule:
  ranges:
    - range: "Schedule!A1:J200"
      course: 2
  parity_filter: true
  first_week_odd: false
log:
  level: DEBUG
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "Europe/Moscow", cfg.Timezone)
	assert.Equal(t, SheetCSV, cfg.Sheet.Format)
	assert.Equal(t, 30*time.Second, cfg.Sheet.Timeout)
	assert.Equal(t, float64(1), cfg.Sheet.RatePerSec)
	assert.Equal(t, []RangeConfig{{Range: "Schedule!A1:J200", Course: 2}}, cfg.Schedule.Ranges)
	assert.Equal(t, 2, cfg.Schedule.HeaderRows)
	assert.Equal(t, 1, cfg.Schedule.HolidayHeaderRows)
	assert.True(t, cfg.Schedule.ParityFilter)
	require.NotNil(t, cfg.Schedule.FirstWeekOdd)
	assert.False(t, *cfg.Schedule.FirstWeekOdd)
	assert.Equal(t, 9, cfg.Academic.AutumnStartMonth)
	assert.Equal(t, 2, cfg.Academic.SpringStartMonth)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, CatalogStatic, cfg.Catalog.Driver)
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Schedule.Ranges = append(cfg.Schedule.Ranges, RangeConfig{Range: "Course2!A1:J300", Course: 2})
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	cfg.Catalog = CatalogConfig{Driver: CatalogStatic, Subjects: []SubjectConfig{{Course: 2, Semester: 1, Name: "Algorithms"}}}
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spreadsheet_id")

	cfg.Sheet.Format = SheetFile
	cfg.Sheet.Dir = "testdata"
	cfg.Timezone = "Mars/Olympus"
	cfg.Schedule.Ranges = nil
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timezone")
	assert.Contains(t, err.Error(), "schedule.ranges is empty")
	assert.Equal(t, time.Local, cfg.Location())
}

func TestNormalizeHolidayHeaderRows(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{-1, -1},
		{3, 3},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Schedule.HolidayHeaderRows = tt.in
		cfg.Normalize()
		assert.Equal(t, tt.want, cfg.Schedule.HolidayHeaderRows, "input %d", tt.in)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schedule:\n  holiday_header_rows: -1\n"), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Schedule.HolidayHeaderRows)
}
