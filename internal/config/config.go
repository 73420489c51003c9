// Package config loads the server configuration from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen          = ":8099"
	defaultDataDir         = "./data"
	defaultSyncIntervalMin = 60
	defaultFetchTimeout    = "30s"
	defaultMaxImportBytes  = 5 << 20
)

// Config is the top-level server configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// DataDir holds the SQLite database.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Timezone is the IANA zone calendar dates are bucketed in. Empty means
	// the server's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DefaultSyncIntervalMin applies to subscriptions without their own interval.
	DefaultSyncIntervalMin int `yaml:"default_sync_interval_min" json:"default_sync_interval_min"`

	// FetchTimeout bounds one subscription download, e.g. "30s".
	FetchTimeout string `yaml:"fetch_timeout" json:"fetch_timeout"`

	// MaxImportBytes caps uploaded and fetched .ics payloads.
	MaxImportBytes int64 `yaml:"max_import_bytes" json:"max_import_bytes"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                 defaultListen,
		DataDir:                defaultDataDir,
		DefaultSyncIntervalMin: defaultSyncIntervalMin,
		FetchTimeout:           defaultFetchTimeout,
		MaxImportBytes:         defaultMaxImportBytes,
	}
}

// Normalize fills in missing or invalid values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.DefaultSyncIntervalMin <= 0 {
		c.DefaultSyncIntervalMin = defaultSyncIntervalMin
	}
	if d, err := time.ParseDuration(c.FetchTimeout); err != nil || d <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.MaxImportBytes <= 0 {
		c.MaxImportBytes = defaultMaxImportBytes
	}
}

// ApplyEnv overrides fields from CAMPUSLINK_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("CAMPUSLINK_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("CAMPUSLINK_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("CAMPUSLINK_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("CAMPUSLINK_SYNC_INTERVAL_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing CAMPUSLINK_SYNC_INTERVAL_MIN: %w", err)
		}
		c.DefaultSyncIntervalMin = n
	}
	if v := os.Getenv("CAMPUSLINK_FETCH_TIMEOUT"); v != "" {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("parsing CAMPUSLINK_FETCH_TIMEOUT: %w", err)
		}
		c.FetchTimeout = v
	}
	if v := os.Getenv("CAMPUSLINK_MAX_IMPORT_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing CAMPUSLINK_MAX_IMPORT_BYTES: %w", err)
		}
		c.MaxImportBytes = n
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local when it is empty
// or unknown.
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

// FetchTimeoutDuration returns FetchTimeout as a duration.
func (c *Config) FetchTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaultFetchTimeout)
	}
	return d
}

// DatabasePath is the SQLite file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "campuslink.db")
}

// Load reads the YAML file at path, then applies environment overrides.
// On first run a default file is written with 0600 permissions.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename.
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
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".campuslink-config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("setting config permissions: %w", err)
	}

	return os.Rename(tmpName, path)
}
