package server

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/inferloop/mlregistry/internal/fetch"
	"github.com/inferloop/mlregistry/internal/metadata"
	"github.com/inferloop/mlregistry/internal/observability/logmonitor"
	"github.com/inferloop/mlregistry/internal/registry"
	"github.com/inferloop/mlregistry/pkg/constants"
	"github.com/inferloop/mlregistry/pkg/errors"
)

// Config is the full server configuration.
type Config struct {
	Host            string                 `json:"host" yaml:"host"`
	Port            int                    `json:"port" yaml:"port"`
	MetricsPort     int                    `json:"metrics_port" yaml:"metrics_port"`
	LogLevel        string                 `json:"log_level" yaml:"log_level"`
	LogFormat       string                 `json:"log_format" yaml:"log_format"`
	ReadTimeout     time.Duration          `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration          `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration          `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration          `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	Registry        *registry.Config       `json:"registry" yaml:"registry"`
	Metadata        *metadata.StoreConfig  `json:"metadata" yaml:"metadata"`
	Influx          *metadata.InfluxConfig `json:"influx,omitempty" yaml:"influx,omitempty"`
	Cache           *metadata.CacheConfig  `json:"cache,omitempty" yaml:"cache,omitempty"`
	Fetcher         *fetch.Config          `json:"fetcher" yaml:"fetcher"`
	LogMonitor      *logmonitor.Config     `json:"log_monitor,omitempty" yaml:"log_monitor,omitempty"`
}

// DefaultConfig returns the server defaults: filesystem registry under the
// default root, no Influx mirror, no Redis cache.
func DefaultConfig() *Config {
	root := constants.DefaultRegistryPath
	return &Config{
		Host:            constants.DefaultHost,
		Port:            constants.DefaultPort,
		MetricsPort:     constants.DefaultMetricsPort,
		LogLevel:        constants.DefaultLogLevel,
		LogFormat:       constants.DefaultLogFormat,
		ReadTimeout:     constants.DefaultReadTimeout,
		WriteTimeout:    constants.DefaultWriteTimeout,
		IdleTimeout:     constants.DefaultIdleTimeout,
		ShutdownTimeout: constants.DefaultShutdownTimeout,
		Registry:        registry.DefaultConfig(),
		Metadata: &metadata.StoreConfig{
			BasePath: filepath.Join(root, constants.DefaultMetricsDir),
		},
		Fetcher: fetch.DefaultConfig(),
	}
}

// LoadConfig reads configuration from the given file (optional) and from
// MLREG_* environment variables, on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MLREG")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeConfiguration,
				"CONFIG_READ_FAILED", fmt.Sprintf("Failed to read config file %s", path))
		}
	}

	config := DefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration,
			"CONFIG_PARSE_FAILED", "Failed to parse configuration")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.NewAppError(errors.ErrorTypeConfiguration,
			"INVALID_PORT", fmt.Sprintf("Port %d is out of range", c.Port))
	}
	if c.MetricsPort == c.Port {
		return errors.NewAppError(errors.ErrorTypeConfiguration,
			"INVALID_PORT", "Metrics port must differ from the API port")
	}
	if c.Registry == nil || c.Registry.RootPath == "" {
		return errors.NewAppError(errors.ErrorTypeConfiguration,
			"MISSING_ROOT", "Registry root path is required")
	}
	if c.Metadata == nil || c.Metadata.BasePath == "" {
		return errors.NewAppError(errors.ErrorTypeConfiguration,
			"MISSING_ROOT", "Metadata store base path is required")
	}
	return nil
}
