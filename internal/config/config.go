// Package config handles pipeline configuration.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "GAP"

// Config holds the environment-provided paths and switches for one run.
type Config struct {
	DBLPPath     string `envconfig:"DBLP_PATH" required:"true"`      // dblp.xml
	ReferenceDir string `envconfig:"REFERENCE_DIR" required:"true"`  // Country and research area CSVs
	GenderPath   string `envconfig:"GENDER_PATH" required:"true"`    // File or directory of gender batches
	WorkDir      string `envconfig:"WORK_DIR" default:"work"`        // Intermediate JSONL record files
	DBPath       string `envconfig:"DB_PATH" default:"gap.db"`       // Target SQLite database
	ExportDir    string `envconfig:"EXPORT_DIR" default:"csv"`       // CSV exports, filters and diagnostics
	SettingsPath string `envconfig:"SETTINGS_PATH"`                  // Optional YAML settings file
	MetricsPath  string `envconfig:"METRICS_PATH"`                   // Optional Prometheus textfile
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`       // debug, info, warn, error
	LogFormat    string `envconfig:"LOG_FORMAT" default:"json"`      // json or console
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * 0"`

	S3 S3Config `envconfig:"S3"`

	Settings Settings `ignored:"true"`
}

// S3Config configures publication of the export directory. Publication is
// disabled when Bucket is empty.
type S3Config struct {
	Bucket    string `envconfig:"BUCKET"`
	Prefix    string `envconfig:"PREFIX" default:"gap"`
	Region    string `envconfig:"REGION" default:"eu-central-1"`
	Endpoint  string `envconfig:"ENDPOINT"`
	AccessKey string `envconfig:"ACCESS_KEY"`
	SecretKey string `envconfig:"SECRET_KEY"`
}

// Enabled reports whether an export bucket is configured.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// Export subdirectories and diagnostic file names inside ExportDir.
const (
	TablesDir       = "db"
	FiltersDir      = "filters"
	DiagnosticsDir  = "diagnostics"
	UnprocessedDir  = "gender/unprocessed"
	RecordExtension = ".jsonl"

	DuplicatedAuthorsFile    = "publications_with_erroneously_duplicated_authors.csv"
	UnresolvedAuthorsFile    = "unresolved_publication_authors.csv"
	NoPublicationTypeFile    = "noPublicationType.csv"
	UnknownFirstNamesFile    = "first_names.csv"
	PublicationAuthorsRecord = "publication_authors"
)

// Load reads the configuration from the environment (and an optional .env
// file), then overlays the YAML settings file if one is configured.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	settings, err := LoadSettings(cfg.SettingsPath)
	if err != nil {
		return nil, err
	}
	cfg.Settings = settings

	return &cfg, nil
}

// ReferencePath returns the path of a reference file inside the reference directory.
func (c *Config) ReferencePath(name string) string {
	return filepath.Join(c.ReferenceDir, name)
}

// RecordsPath returns the JSONL file holding the extracted records of one entity.
func (c *Config) RecordsPath(entity string) string {
	return filepath.Join(c.WorkDir, entity+RecordExtension)
}

// TablesPath returns the directory receiving one CSV per database table.
func (c *Config) TablesPath() string {
	return filepath.Join(c.ExportDir, TablesDir)
}

// FiltersPath returns the directory receiving the dashboard filter lists.
func (c *Config) FiltersPath() string {
	return filepath.Join(c.ExportDir, FiltersDir)
}

// DiagnosticsPath returns the path of a diagnostics file.
func (c *Config) DiagnosticsPath(name string) string {
	return filepath.Join(c.ExportDir, DiagnosticsDir, name)
}

// UnknownFirstNamesPath returns where first names without a gender are listed
// for submission to the gender service.
func (c *Config) UnknownFirstNamesPath() string {
	return filepath.Join(c.ExportDir, UnprocessedDir, UnknownFirstNamesFile)
}
