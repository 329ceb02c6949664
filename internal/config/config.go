// Package config provides configuration management for databendd using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultPreviewTTL      = 30 * time.Second
	defaultPreviewMaxDim   = 1280
	defaultMaxActiveJobs   = 4
	defaultCodecProbeTTL   = 5 * time.Minute
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Codec   CodecConfig   `mapstructure:"codec"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Preview PreviewConfig `mapstructure:"preview"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// CodecConfig holds codec resolver configuration.
type CodecConfig struct {
	// BinaryPath overrides auto-detection of the decoder/encoder binary (empty = auto-detect).
	BinaryPath string `mapstructure:"binary_path"`
	// ProbePath overrides auto-detection of the frame-map probe binary (empty = auto-detect).
	ProbePath string `mapstructure:"probe_path"`
	// BinariesDir is an additional sidecar directory to search before PATH.
	BinariesDir string `mapstructure:"binaries_dir"`
	// ProbeCacheTTL controls how long a resolved binary's capability probe is cached.
	ProbeCacheTTL time.Duration `mapstructure:"probe_cache_ttl"`
}

// JobsConfig holds JobRegistry / Pipeline concurrency configuration.
type JobsConfig struct {
	MaxActive int `mapstructure:"max_active"`
	// ProgressIntervalMillis is loaded but not read by the pipeline, which
	// throttles progress events to a fixed 200ms.
	ProgressIntervalMillis int `mapstructure:"progress_interval_millis"`
}

// PreviewConfig holds PreviewBufferStore / PreviewEncoder configuration.
type PreviewConfig struct {
	// BufferTTL is loaded but not read by the preview store, which prunes
	// idle buffers after its fixed 30s TTL.
	BufferTTL time.Duration `mapstructure:"buffer_ttl"`
	// MaxDimension is validated (at least 2) but not read by the preview
	// renderer, which scales to its fixed 1280px longest side.
	MaxDimension int `mapstructure:"max_dimension"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with DATABENDD_ and use underscores for nesting.
// Example: DATABENDD_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/databendd")
		v.AddConfigPath("$HOME/.databendd")
	}

	v.SetEnvPrefix("DATABENDD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("codec.binary_path", "")
	v.SetDefault("codec.probe_path", "")
	v.SetDefault("codec.binaries_dir", "")
	v.SetDefault("codec.probe_cache_ttl", defaultCodecProbeTTL)

	v.SetDefault("jobs.max_active", defaultMaxActiveJobs)
	v.SetDefault("jobs.progress_interval_millis", 200)

	v.SetDefault("preview.buffer_ttl", defaultPreviewTTL)
	v.SetDefault("preview.max_dimension", defaultPreviewMaxDim)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Jobs.MaxActive < 1 {
		return fmt.Errorf("jobs.max_active must be at least 1")
	}
	if c.Preview.MaxDimension < 2 {
		return fmt.Errorf("preview.max_dimension must be at least 2")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
