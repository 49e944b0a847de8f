// Package config loads application configuration from YAML, .env and the
// process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/engine"
	"ifrs9-risk-lab/internal/generator"
	"ifrs9-risk-lab/internal/reporting"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Storage modes.
const (
	StorageMemory     = "memory"
	StoragePostgres   = "postgres"
	StorageClickHouse = "clickhouse"
	StorageSQLite     = "sqlite"
)

// RiskConfig holds the engine calibration and batch parallelism.
type RiskConfig struct {
	engine.Params `yaml:",inline"`
	Workers       int `yaml:"workers"` // 0 means GOMAXPROCS
}

// GeneratorConfig configures synthetic portfolios.
type GeneratorConfig struct {
	Loans         int    `yaml:"loans"`
	Seed          uint64 `yaml:"seed"`
	ReportingDate string `yaml:"reporting_date"` // YYYY-MM-DD
}

// StorageConfig selects and configures the loan store.
type StorageConfig struct {
	Mode          string `yaml:"mode"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	SQLitePath    string `yaml:"sqlite_path"`
}

// ServerConfig configures cmd/server.
type ServerConfig struct {
	Addr     string        `yaml:"addr"`
	Interval time.Duration `yaml:"interval"` // pipeline schedule, 0 runs once
	// AllowedOrigins are cross-origin pages allowed to open /ws.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ReportConfig configures report output.
type ReportConfig struct {
	OutputDir     string `yaml:"output_dir"`
	Currency      string `yaml:"currency"`
	WatchlistSize int    `yaml:"watchlist_size"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the application configuration.
type Config struct {
	Risk      RiskConfig      `yaml:"risk"`
	Generator GeneratorConfig `yaml:"generator"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	Report    ReportConfig    `yaml:"report"`
	Logging   LogConfig       `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Risk: RiskConfig{Params: engine.DefaultParams()},
		Generator: GeneratorConfig{
			Loans:         1000,
			Seed:          42,
			ReportingDate: generator.DefaultReportingDate.Format(domain.DateLayout),
		},
		Storage: StorageConfig{
			Mode:       StorageMemory,
			SQLitePath: "ifrs9.db",
		},
		Server: ServerConfig{
			Addr:     ":8080",
			Interval: time.Hour,
		},
		Report: ReportConfig{
			OutputDir:     "output",
			Currency:      reporting.DefaultCurrency,
			WatchlistSize: reporting.DefaultWatchlistSize,
		},
		Logging: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults (skipped when path is empty), loads
// .env if present, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304: path comes from the operator's command line
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := LoadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads variables from the given .env files (default ".env") into the
// process environment. Missing files are ignored; set variables are kept.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Storage.Mode = GetEnvOrDefaultAsString("STORAGE_MODE", c.Storage.Mode)
	c.Storage.PostgresDSN = GetEnvOrDefaultAsString("POSTGRES_DSN", c.Storage.PostgresDSN)
	c.Storage.ClickHouseDSN = GetEnvOrDefaultAsString("CLICKHOUSE_DSN", c.Storage.ClickHouseDSN)
	c.Storage.SQLitePath = GetEnvOrDefaultAsString("SQLITE_PATH", c.Storage.SQLitePath)
	c.Logging.Level = GetEnvOrDefaultAsString("LOG_LEVEL", c.Logging.Level)
	c.Server.Addr = GetEnvOrDefaultAsString("SERVER_ADDR", c.Server.Addr)
	c.Report.OutputDir = GetEnvOrDefaultAsString("REPORT_DIR", c.Report.OutputDir)

	if v, ok := os.LookupEnv("IFRS9_SEED"); ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: IFRS9_SEED %q is not an unsigned integer", ErrInvalidConfig, v)
		}
		c.Generator.Seed = seed
	}
	return nil
}

// Validate checks the risk parameters and storage settings.
func (c *Config) Validate() error {
	if err := c.Risk.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Risk.Workers < 0 {
		return fmt.Errorf("%w: risk.workers must be >= 0", ErrInvalidConfig)
	}

	if c.Generator.Loans <= 0 {
		return fmt.Errorf("%w: generator.loans must be positive", ErrInvalidConfig)
	}
	if _, err := c.ReportingDate(); err != nil {
		return err
	}

	switch c.Storage.Mode {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres mode requires POSTGRES_DSN", ErrInvalidConfig)
		}
	case StorageClickHouse:
		if c.Storage.ClickHouseDSN == "" {
			return fmt.Errorf("%w: clickhouse mode requires CLICKHOUSE_DSN", ErrInvalidConfig)
		}
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite mode requires SQLITE_PATH", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage mode %q", ErrInvalidConfig, c.Storage.Mode)
	}

	if c.Server.Interval < 0 {
		return fmt.Errorf("%w: server.interval must be >= 0", ErrInvalidConfig)
	}
	if c.Report.WatchlistSize <= 0 {
		return fmt.Errorf("%w: report.watchlist_size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ReportingDate parses generator.reporting_date.
func (c *Config) ReportingDate() (time.Time, error) {
	d, err := time.Parse(domain.DateLayout, c.Generator.ReportingDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: generator.reporting_date %q: %v", ErrInvalidConfig, c.Generator.ReportingDate, err)
	}
	return d, nil
}

// GetEnvOrDefaultAsString returns the value of key or defaultVal if unset.
func GetEnvOrDefaultAsString(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
