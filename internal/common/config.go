package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Static  StaticConfig  `toml:"static"`
	Build   BuildConfig   `toml:"build"`
	Logging LoggingConfig `toml:"logging"`
	Proxy   ProxyConfig   `toml:"proxy"`
}

type ServerConfig struct {
	Port           int      `toml:"port"`
	Host           string   `toml:"host"`
	SnapshotDB     string   `toml:"snapshot_db"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// StaticConfig controls how static asset URLs are resolved and where the
// export tree is written.
type StaticConfig struct {
	BaseURL   string `toml:"base_url"`   // Base URL prepended to canonical asset paths
	ExportDir string `toml:"export_dir"` // Root of the static asset tree on disk
	Mode      string `toml:"mode"`       // "dev" or "prod"
}

// BuildConfig contains snapshot builder settings.
type BuildConfig struct {
	Workers   int    `toml:"workers"`    // Asset hashing/export concurrency (default: 8)
	BatchSize int    `toml:"batch_size"` // Rows per FTS insert batch (default: 200)
	OutputDB  string `toml:"output_db"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// ProxyConfig bounds outbound fetches of static summary/source content.
type ProxyConfig struct {
	FetchTimeout string `toml:"fetch_timeout"` // e.g. "10s"
	CacheSize    int    `toml:"cache_size"`    // LRU entries for fetched assets (default: 128)
}

// DefaultConfig returns a config populated with sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Static: StaticConfig{
			Mode: "dev",
		},
		Build: BuildConfig{
			Workers:   8,
			BatchSize: 200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Proxy: ProxyConfig{
			FetchTimeout: "10s",
			CacheSize:    128,
		},
	}
}

// LoadFromFiles loads configuration in precedence order:
// defaults -> config files (later files override earlier) -> environment.
// CLI flag overrides are applied afterwards by the caller and win over all.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies PAPER_DB_* environment variables over file values.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("PAPER_DB_STATIC_BASE_URL"); v != "" {
		config.Static.BaseURL = v
	}
	if v := os.Getenv("PAPER_DB_STATIC_MODE"); v != "" {
		config.Static.Mode = v
	}
	if v := os.Getenv("PAPER_DB_STATIC_EXPORT_DIR"); v != "" {
		config.Static.ExportDir = v
	}
	if v := os.Getenv("PAPER_DB_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		config.Server.AllowedOrigins = origins
	}
}
