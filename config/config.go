package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // school time zones on hosts without zoneinfo

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverDocument = "document"
	DriverMemory   = "memory"
)

// ErrUnknownDriver is returned for a DB_DRIVER value no backend handles.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Config holds the settings of the reconciliation tool. Values come from
// config.yaml when present; environment variables (including those loaded
// from .env) override them.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Import   ImportConfig   `yaml:"import"`
}

// DatabaseConfig selects and addresses the storage backend.
type DatabaseConfig struct {
	Driver       string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	Host         string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port         int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User         string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password     string `yaml:"-" env:"DB_PASSWORD"` // secret, env only
	Name         string `yaml:"name" env:"DB_NAME" env-default:"colegio"`
	SSLMode      string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`
	SQLitePath   string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"colegio.db"`
	DocumentPath string `yaml:"document_path" env:"DOCUMENT_PATH" env-default:"colegio.json"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"`
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	CompoundIDSeparator string `yaml:"compound_id_separator" env:"COMPOUND_ID_SEPARATOR" env-default:"-"`
	BatchSize           int    `yaml:"batch_size" env:"IMPORT_BATCH_SIZE" env-default:"1000"`
	Workers             int    `yaml:"workers" env:"IMPORT_WORKERS" env-default:"4"`
	FailedImportsDir    string `yaml:"failed_imports_dir" env:"FAILED_IMPORTS_DIR" env-default:"failed_imports"`
	ColumnMapPath       string `yaml:"column_map" env:"IMPORT_COLUMN_MAP" env-default:""`
	Timezone            string `yaml:"timezone" env:"IMPORT_TIMEZONE" env-default:"America/Santiago"`
}

// Location returns the time zone dates without an offset are read in.
func (c *ImportConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid import timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads .env (if present), then path (if present), then the
// environment. An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			return cfg, cfg.Validate()
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings no backend or pipeline stage can work with.
func (c *Config) Validate() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverDocument, DriverMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Database.Driver)
	}
	if c.Import.CompoundIDSeparator == "" {
		return errors.New("compound id separator must not be empty")
	}
	if c.Import.Workers < 1 {
		c.Import.Workers = 1
	}
	if c.Import.BatchSize < 1 {
		return fmt.Errorf("import batch size must be positive, got %d", c.Import.BatchSize)
	}
	return nil
}

// DSN returns the Postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
