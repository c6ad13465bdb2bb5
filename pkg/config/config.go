// Package config loads server and import settings from a TOML file, with the
// PORT and DATABASE_URL environment variables taking precedence.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/JayJamieson/csv-sql/pkg/csvfile"
	"github.com/JayJamieson/csv-sql/pkg/db"
	"github.com/JayJamieson/csv-sql/pkg/infer"
	"github.com/labstack/gommon/log"
)

const (
	DefaultPort           = 8001
	DefaultDatabaseURL    = "file:data.db"
	DefaultMaxUploadBytes = 5 << 20
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Import ImportConfig `toml:"import"`
}

type ServerConfig struct {
	Port           int    `toml:"port"`
	DatabaseURL    string `toml:"database_url"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
	LogLevel       string `toml:"log_level"` // debug|info|warn|error|off
	CORS           bool   `toml:"cors"`
}

// ImportConfig bounds uploads and tunes inference and loading.
type ImportConfig struct {
	MaxRows        int    `toml:"max_rows"`
	MaxColumns     int    `toml:"max_columns"`
	MaxCellSize    int    `toml:"max_cell_size"`
	SampleSize     int    `toml:"sample_size"` // 0 scans every value
	DynamicTyping  bool   `toml:"dynamic_typing"`
	PrimaryKeyName string `toml:"primary_key_name"`
	PreviewLimit   int    `toml:"preview_limit"`
	BatchSize      int    `toml:"batch_size"`
	MaxParams      int    `toml:"max_params"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           DefaultPort,
			DatabaseURL:    DefaultDatabaseURL,
			MaxUploadBytes: DefaultMaxUploadBytes,
			LogLevel:       "info",
			CORS:           true,
		},
		Import: ImportConfig{
			MaxRows:        csvfile.DefaultMaxRows,
			MaxColumns:     csvfile.DefaultMaxColumns,
			MaxCellSize:    csvfile.DefaultMaxCellSize,
			PrimaryKeyName: infer.DefaultPrimaryKeyName,
			PreviewLimit:   db.DefaultPreviewLimit,
			BatchSize:      db.DefaultBatchSize,
			MaxParams:      db.DefaultMaxParams,
		},
	}
}

// Load reads the TOML file at path over the defaults. An empty path yields
// the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides the port and database url from PORT and DATABASE_URL.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if envPort := getenv("PORT"); envPort != "" {
		port, err := strconv.Atoi(envPort)
		if err != nil {
			return fmt.Errorf("invalid PORT environment variable: %s", envPort)
		}
		c.Server.Port = port
	}

	if envDBURL := getenv("DATABASE_URL"); envDBURL != "" {
		c.Server.DatabaseURL = envDBURL
	}

	return c.Validate()
}

func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if strings.TrimSpace(c.Server.DatabaseURL) == "" {
		errs = append(errs, "server.database_url is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, "server.max_upload_bytes must be positive")
	}
	if _, err := ParseLogLevel(c.Server.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}

	for name, v := range map[string]int{
		"import.max_rows":      c.Import.MaxRows,
		"import.max_columns":   c.Import.MaxColumns,
		"import.max_cell_size": c.Import.MaxCellSize,
		"import.preview_limit": c.Import.PreviewLimit,
		"import.batch_size":    c.Import.BatchSize,
		"import.max_params":    c.Import.MaxParams,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive", name))
		}
	}
	if c.Import.SampleSize < 0 {
		errs = append(errs, "import.sample_size must not be negative")
	}
	if strings.TrimSpace(c.Import.PrimaryKeyName) == "" {
		errs = append(errs, "import.primary_key_name is required")
	}

	if len(errs) > 0 {
		slices.Sort(errs)
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DBOptions converts the import section for db.New.
func (c *Config) DBOptions() db.Options {
	level, _ := ParseLogLevel(c.Server.LogLevel)

	return db.Options{
		Parse: csvfile.Options{
			MaxRows:       c.Import.MaxRows,
			MaxColumns:    c.Import.MaxColumns,
			MaxCellSize:   c.Import.MaxCellSize,
			DynamicTyping: c.Import.DynamicTyping,
		},
		Infer:          infer.Options{SampleSize: c.Import.SampleSize},
		PrimaryKeyName: c.Import.PrimaryKeyName,
		BatchSize:      c.Import.BatchSize,
		MaxParams:      c.Import.MaxParams,
		PreviewLimit:   c.Import.PreviewLimit,
		LogLevel:       level,
	}
}

// ParseLogLevel maps a level name to a gommon level.
func ParseLogLevel(level string) (log.Lvl, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DEBUG, nil
	case "", "info":
		return log.INFO, nil
	case "warn", "warning":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off":
		return log.OFF, nil
	default:
		return 0, fmt.Errorf("server.log_level %q must be debug, info, warn, error or off", level)
	}
}
