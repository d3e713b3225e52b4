package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// AppConfig is the application configuration.
type AppConfig struct {
	Server ServerConfig `toml:"server"`
	Fetch  FetchConfig  `toml:"fetch"`
	Import ImportConfig `toml:"import"`
	Data   DataConfig   `toml:"data"`
}

// ServerConfig configures the query API server.
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// FetchConfig configures the archive transport. The rate ceiling and client
// identity keep the crawler polite towards the archive host.
type FetchConfig struct {
	CacheDir           string `toml:"cache_dir"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
	UserAgent          string `toml:"user_agent"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	Retries            int    `toml:"retries"`
}

// ImportConfig configures the import coordinator.
type ImportConfig struct {
	Workers int `toml:"workers"`
	// DeltaPolicy is "signed" or "clamp"; how negative cumulative deltas
	// from upstream revisions are handled.
	DeltaPolicy string `toml:"delta_policy"`
}

// DataConfig locates the working data directory.
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    8870,
			DevMode: false,
		},
		Fetch: FetchConfig{
			CacheDir:           "cache",
			RateLimitPerMinute: 20,
			UserAgent:          "jpinfect-archive-client/1.0",
			TimeoutSeconds:     30,
			Retries:            3,
		},
		Import: ImportConfig{
			Workers:     4,
			DeltaPolicy: "signed",
		},
		Data: DataConfig{
			DataDir: "data",
		},
	}
}

// LoadConfig loads path over the defaults and then applies environment
// overrides. A missing file is not an error; the defaults apply.
func LoadConfig(path string) (*AppConfig, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "config.toml"
	}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values from JPINFECT_* variables, used for local
// runs and CI.
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("JPINFECT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("JPINFECT_CACHE_DIR"); v != "" {
		cfg.Fetch.CacheDir = v
	}
	if v := os.Getenv("JPINFECT_DATA_DIR"); v != "" {
		cfg.Data.DataDir = v
	}
	if v := os.Getenv("JPINFECT_USER_AGENT"); v != "" {
		cfg.Fetch.UserAgent = v
	}
	if v := os.Getenv("JPINFECT_DELTA_POLICY"); v != "" {
		cfg.Import.DeltaPolicy = v
	}
}

func (c *AppConfig) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Server.Port)
	}
	if c.Fetch.RateLimitPerMinute <= 0 {
		return fmt.Errorf("config: rate_limit_per_minute must be positive")
	}
	switch c.Import.DeltaPolicy {
	case "signed", "clamp":
	default:
		return fmt.Errorf("config: unknown delta_policy %q", c.Import.DeltaPolicy)
	}
	return nil
}

// SaveConfig writes the configuration next to where it was loaded from.
func SaveConfig(cfg *AppConfig, path string) error {
	if path == "" {
		path = "config.toml"
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// EnsureDataDir creates the data directory and its fixed subdirectories.
func EnsureDataDir(cfg *AppConfig) (string, error) {
	dataDir := cfg.Data.DataDir
	for _, dir := range []string{dataDir, filepath.Join(dataDir, "exports"), filepath.Join(dataDir, "releases")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	return dataDir, nil
}
