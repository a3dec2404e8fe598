// Package config loads typed process configuration from a YAML file
// overlaid with environment variables, following the
// "-c/--config clowdy.yaml, then env" shape the control plane's own
// entry point documents.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of knobs the control plane reads at startup.
type Config struct {
	HTTPPort int `yaml:"http_port"`

	DockerHost string `yaml:"docker_host"`

	MaxPoolSize  int           `yaml:"max_pool_size"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	ReapInterval time.Duration `yaml:"reap_interval"`
	ExecTimeout  time.Duration `yaml:"exec_timeout"`

	ResourceMemoryMB int   `yaml:"resource_memory_mb"`
	ResourceNanoCPUs int64 `yaml:"resource_nano_cpus"`

	DefaultRuntimeImage string `yaml:"default_runtime_image"`

	Environment string `yaml:"environment"` // "development" or "production"
}

// Default returns a Config with every field set to the control plane's
// built-in defaults, before any file or env overlay is applied.
func Default() Config {
	return Config{
		HTTPPort:            8080,
		MaxPoolSize:         10,
		IdleTimeout:         300 * time.Second,
		ReapInterval:        30 * time.Second,
		ExecTimeout:         30 * time.Second,
		ResourceMemoryMB:    128,
		ResourceNanoCPUs:    500_000_000,
		DefaultRuntimeImage: "clowdy-python-runtime",
		Environment:         "development",
	}
}

// Load reads Config from path (if it exists), applies defaults for
// anything left unset, overlays CLOWDY_* environment variables, then
// validates the result. path may be empty, in which case only defaults
// and the environment overlay apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverlay(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverlay(cfg *Config) {
	if v := os.Getenv("CLOWDY_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTPPort = n
		}
	}
	if v := os.Getenv("CLOWDY_DOCKER_HOST"); v != "" {
		cfg.DockerHost = v
	}
	if v := os.Getenv("CLOWDY_MAX_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPoolSize = n
		}
	}
	if v := os.Getenv("CLOWDY_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.IdleTimeout = d
		}
	}
	if v := os.Getenv("CLOWDY_REAP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReapInterval = d
		}
	}
	if v := os.Getenv("CLOWDY_EXEC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ExecTimeout = d
		}
	}
	if v := os.Getenv("CLOWDY_DEFAULT_RUNTIME_IMAGE"); v != "" {
		cfg.DefaultRuntimeImage = v
	}
	if v := os.Getenv("CLOWDY_ENV"); v != "" {
		cfg.Environment = v
	}
}

func (cfg Config) validate() error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("config: http_port out of range: %d", cfg.HTTPPort)
	}
	if cfg.MaxPoolSize <= 0 {
		return fmt.Errorf("config: max_pool_size must be positive: %d", cfg.MaxPoolSize)
	}
	if cfg.IdleTimeout <= 0 {
		return fmt.Errorf("config: idle_timeout must be positive: %s", cfg.IdleTimeout)
	}
	if cfg.ReapInterval <= 0 {
		return fmt.Errorf("config: reap_interval must be positive: %s", cfg.ReapInterval)
	}
	if cfg.ExecTimeout <= 0 {
		return fmt.Errorf("config: exec_timeout must be positive: %s", cfg.ExecTimeout)
	}
	if cfg.ResourceMemoryMB <= 0 {
		return fmt.Errorf("config: resource_memory_mb must be positive: %d", cfg.ResourceMemoryMB)
	}
	if cfg.DefaultRuntimeImage == "" {
		return fmt.Errorf("config: default_runtime_image must not be empty")
	}
	return nil
}

// IsProduction reports whether the process should use production-shaped
// logging (JSON instead of a pretty console writer).
func (cfg Config) IsProduction() bool {
	return cfg.Environment == "production"
}
