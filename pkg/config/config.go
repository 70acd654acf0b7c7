package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Config holds the resolved configuration.
type Config struct {
	Driver   string
	DSN      string
	Port     string
	MinChunk int64
	Workers  int
	LogLevel zerolog.Level
	RowLimit int
	// ViewTTL is how long serve keeps a table view open before closing it.
	ViewTTL time.Duration
}

// Load resolves configuration from defaults, an optional YAML file at path,
// a .env file next to the working directory and GEOQUERY_* environment
// variables, in increasing order of precedence. fs is used for every file
// access so tests can supply an in-memory filesystem.
func Load(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)

	v.SetDefault(KeyDriver, DefaultDriver)
	v.SetDefault(KeyDSN, DefaultDSN)
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyMinChunk, DefaultMinChunk)
	v.SetDefault(KeyWorkers, DefaultWorkers)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyRowLimit, DefaultRowLimit)
	v.SetDefault(KeyViewTTL, DefaultViewTTL)

	if err := loadDotEnv(fs, ".env"); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	level, err := zerolog.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}

	cfg := &Config{
		Driver:   v.GetString(KeyDriver),
		DSN:      v.GetString(KeyDSN),
		Port:     v.GetString(KeyPort),
		MinChunk: v.GetInt64(KeyMinChunk),
		Workers:  v.GetInt(KeyWorkers),
		LogLevel: level,
		RowLimit: v.GetInt(KeyRowLimit),
		ViewTTL:  v.GetDuration(KeyViewTTL),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Driver == "" {
		errs = append(errs, fmt.Errorf("%s cannot be empty", KeyDriver))
	}
	if c.MinChunk < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", KeyMinChunk, c.MinChunk))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", KeyWorkers, c.Workers))
	}
	if c.RowLimit < 1 || c.RowLimit > MaxRowLimit {
		errs = append(errs, fmt.Errorf("%s must be between 1 and %d, got %d", KeyRowLimit, MaxRowLimit, c.RowLimit))
	}
	if c.ViewTTL < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %s", KeyViewTTL, c.ViewTTL))
	}
	return errors.Join(errs...)
}

// loadDotEnv exports the variables of a .env file without overriding
// variables already set. A missing file is not an error.
func loadDotEnv(fs afero.Fs, name string) error {
	if _, err := fs.Stat(name); err != nil {
		return nil
	}
	f, err := fs.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	for key, value := range vars {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}
