// Package config loads the server configuration from an optional YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server struct {
		Port         int    `yaml:"port"`
		CORSOrigin   string `yaml:"cors_origin"`
		ReadTimeout  int    `yaml:"read_timeout_seconds"`
		WriteTimeout int    `yaml:"write_timeout_seconds"`
	} `yaml:"server"`

	Provider struct {
		Endpoint       string `yaml:"endpoint"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		MaxRetries     int    `yaml:"max_retries"`
	} `yaml:"provider"`

	Scan struct {
		WaveSize        int `yaml:"wave_size"`
		PoolSize        int `yaml:"pool_size"`
		WavePauseMillis int `yaml:"wave_pause_ms"`
		PriceTTLSeconds int `yaml:"price_ttl_seconds"`
	} `yaml:"scan"`

	Heatmap struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"heatmap"`

	Snapshot struct {
		// Path to the fundamentals snapshot JSON generated offline.
		Path string `yaml:"path"`
	} `yaml:"snapshot"`

	Database struct {
		// Optional Postgres DSN for the reference-data stores. Empty means
		// the in-memory snapshot only.
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() Config {
	var cfg Config
	cfg.Server.Port = 8000
	cfg.Server.CORSOrigin = "*"
	cfg.Server.ReadTimeout = 30
	cfg.Server.WriteTimeout = 0 // streaming responses must not time out
	cfg.Provider.TimeoutSeconds = 30
	cfg.Provider.MaxRetries = 3
	cfg.Scan.WaveSize = 3
	cfg.Scan.PoolSize = 10
	cfg.Scan.WavePauseMillis = 200
	cfg.Scan.PriceTTLSeconds = 600
	cfg.Heatmap.TTLSeconds = 120
	cfg.Snapshot.Path = "data/sp500_info.json"
	return cfg
}

// Load reads path (if non-empty and present) over the defaults, then applies
// environment overrides. A missing file at the default path is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		cfg.Server.CORSOrigin = v
	}
	if v := os.Getenv("PROVIDER_ENDPOINT"); v != "" {
		cfg.Provider.Endpoint = v
	}
	if v := os.Getenv("SNAPSHOT_PATH"); v != "" {
		cfg.Snapshot.Path = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
}

// PriceTTL returns the bulk price cache TTL as a duration.
func (c Config) PriceTTL() time.Duration {
	return time.Duration(c.Scan.PriceTTLSeconds) * time.Second
}

// HeatmapTTL returns the heatmap cache TTL as a duration.
func (c Config) HeatmapTTL() time.Duration {
	return time.Duration(c.Heatmap.TTLSeconds) * time.Second
}

// WavePause returns the inter-wave pause as a duration.
func (c Config) WavePause() time.Duration {
	return time.Duration(c.Scan.WavePauseMillis) * time.Millisecond
}

// ProviderTimeout returns the provider HTTP timeout as a duration.
func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}
