package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// Sheet reader kinds.
const (
	SheetCSV  = "csv"
	SheetHTML = "html"
	SheetFile = "file"
)

// Catalog drivers.
const (
	CatalogStatic = "static"
	CatalogSQLite = "sqlite"
)

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format" json:"format"`
}

// SheetConfig describes where the raw timetable ranges come from.
type SheetConfig struct {
	// Format is one of "csv", "html" (Google Sheets exports) or "file"
	// (local <dir>/<sheet>.csv files).
	Format        string `yaml:"format" json:"format"`
	SpreadsheetID string `yaml:"spreadsheet_id" json:"spreadsheet_id"`
	// BaseURL overrides https://docs.google.com, mostly for tests and proxies.
	BaseURL    string        `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Dir        string        `yaml:"dir,omitempty" json:"dir,omitempty"`
	CacheDir   string        `yaml:"cache_dir" json:"cache_dir"`
	RatePerSec float64       `yaml:"rate_per_sec" json:"rate_per_sec"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// RangeConfig is one timetable range and the course bare group tokens in it
// belong to.
type RangeConfig struct {
	Range  string `yaml:"range" json:"range"`
	Course int    `yaml:"course" json:"course"`
}

// ScheduleConfig controls parsing and query semantics.
type ScheduleConfig struct {
	Ranges       []RangeConfig `yaml:"ranges" json:"ranges"`
	HolidayRange string        `yaml:"holiday_range" json:"holiday_range"`
	HeaderRows   int           `yaml:"header_rows" json:"header_rows"`
	// HolidayHeaderRows defaults to 1; -1 means the range has no title row.
	HolidayHeaderRows int `yaml:"holiday_header_rows" json:"holiday_header_rows"`
	// ParityFilter enables odd/even week filtering of lessons.
	ParityFilter bool `yaml:"parity_filter" json:"parity_filter"`
	// FirstWeekOdd tells whether odd ISO weeks are the academic odd weeks.
	FirstWeekOdd *bool `yaml:"first_week_odd,omitempty" json:"first_week_odd,omitempty"`
}

// AcademicConfig sets the semester boundaries (months, 1-12).
type AcademicConfig struct {
	SpringStartMonth int `yaml:"spring_start_month" json:"spring_start_month"`
	AutumnStartMonth int `yaml:"autumn_start_month" json:"autumn_start_month"`
}

// SubjectConfig is one statically configured subject.
type SubjectConfig struct {
	Course   int    `yaml:"course" json:"course"`
	Semester int    `yaml:"semester" json:"semester"`
	Name     string `yaml:"name" json:"name"`
}

// CatalogConfig selects the subject catalog.
type CatalogConfig struct {
	// Driver is "static" (Subjects below) or "sqlite" (Range read from the
	// sheet, last good copy kept at Path).
	Driver     string          `yaml:"driver" json:"driver"`
	Path       string          `yaml:"path,omitempty" json:"path,omitempty"`
	Range      string          `yaml:"range,omitempty" json:"range,omitempty"`
	HeaderRows int             `yaml:"header_rows,omitempty" json:"header_rows,omitempty"`
	Subjects   []SubjectConfig `yaml:"subjects,omitempty" json:"subjects,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone lessons are held in (e.g. "Europe/Moscow").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// RefreshTimeout bounds a single refresh run.
	RefreshTimeout time.Duration `yaml:"refresh_timeout" json:"refresh_timeout"`

	Log      LogConfig      `yaml:"log" json:"log"`
	Sheet    SheetConfig    `yaml:"sheet" json:"sheet"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Academic AcademicConfig `yaml:"academic" json:"academic"`
	Catalog  CatalogConfig  `yaml:"catalog" json:"catalog"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Listen:         "127.0.0.1:8080",
		Timezone:       "Europe/Moscow",
		RefreshCron:    "*/15 * * * *",
		RefreshTimeout: 2 * time.Minute,
		Log:            LogConfig{Level: "info", Format: "console"},
		Sheet: SheetConfig{
			Format:     SheetCSV,
			CacheDir:   "/var/lib/schedbot/sheet-cache",
			RatePerSec: 1,
			Timeout:    15 * time.Second,
		},
		Schedule: ScheduleConfig{
			Ranges:       []RangeConfig{{Range: "Schedule!A1:J300", Course: 1}},
			HolidayRange: "Holidays!A1:B50",
		},
		Catalog: CatalogConfig{
			Driver: CatalogSQLite,
			Path:   "/var/lib/schedbot/catalog.db",
			Range:  "Subjects!A1:C500",
		},
		BasicAuth: nil,
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Moscow"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = 2 * time.Minute
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		c.Log.Format = "console"
	}

	switch c.Sheet.Format {
	case SheetCSV, SheetHTML, SheetFile:
	default:
		// Unknown value; fall back to the CSV export.
		c.Sheet.Format = SheetCSV
	}
	if c.Sheet.RatePerSec <= 0 {
		c.Sheet.RatePerSec = 1
	}
	if c.Sheet.Timeout <= 0 {
		c.Sheet.Timeout = 15 * time.Second
	}

	if c.Schedule.Ranges == nil {
		c.Schedule.Ranges = []RangeConfig{}
	}
	if c.Schedule.HeaderRows <= 0 {
		c.Schedule.HeaderRows = 2
	}
	// Negative means the holiday range has no title row.
	if c.Schedule.HolidayHeaderRows == 0 {
		c.Schedule.HolidayHeaderRows = 1
	}
	if c.Schedule.FirstWeekOdd == nil {
		odd := true
		c.Schedule.FirstWeekOdd = &odd
	}

	if c.Academic.SpringStartMonth < 1 || c.Academic.SpringStartMonth > 12 {
		c.Academic.SpringStartMonth = 2
	}
	if c.Academic.AutumnStartMonth < 1 || c.Academic.AutumnStartMonth > 12 {
		c.Academic.AutumnStartMonth = 9
	}

	switch c.Catalog.Driver {
	case CatalogStatic, CatalogSQLite:
	default:
		c.Catalog.Driver = CatalogStatic
	}
	if c.Catalog.HeaderRows <= 0 {
		c.Catalog.HeaderRows = 1
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if len(c.Schedule.Ranges) == 0 {
		errs = append(errs, errors.New("schedule.ranges is empty"))
	}
	for i, r := range c.Schedule.Ranges {
		if strings.TrimSpace(r.Range) == "" {
			errs = append(errs, fmt.Errorf("schedule.ranges[%d]: range is empty", i))
		}
		if r.Course < 0 {
			errs = append(errs, fmt.Errorf("schedule.ranges[%d]: negative course", i))
		}
	}
	switch c.Sheet.Format {
	case SheetFile:
		if c.Sheet.Dir == "" {
			errs = append(errs, errors.New("sheet.dir is required for the file format"))
		}
	default:
		if c.Sheet.SpreadsheetID == "" {
			errs = append(errs, errors.New("sheet.spreadsheet_id is required"))
		}
	}
	if c.Catalog.Driver == CatalogSQLite {
		if c.Catalog.Range == "" {
			errs = append(errs, errors.New("catalog.range is required for the sqlite driver"))
		}
		if c.Catalog.Path == "" {
			errs = append(errs, errors.New("catalog.path is required for the sqlite driver"))
		}
	}
	return errors.Join(errs...)
}

// Location returns the configured time zone, or time.Local when it cannot be
// loaded.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".schedbot-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
