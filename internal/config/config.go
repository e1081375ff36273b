// Package config provides configuration management for the media
// engine using Viper. It supports configuration from a file,
// environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/corten/mediaengine/internal/mediatypes"
)

// Default configuration values.
const (
	defaultMaxConcurrentSessions = 16
	defaultInternalQueueDepth    = 32
	defaultWorkerCount           = 4
	defaultSyncThreshold         = 40 * time.Millisecond
	defaultMaxTotalBytes         = 256 * 1024 * 1024
	defaultRingCapacity          = 4 * 1024 * 1024
	defaultMaxCachedFrames       = 128
	defaultJitterBufferCapacity  = 512
	defaultSourceTimeout         = 10 * time.Second
	defaultCircuitBreakerThresh  = 5
	defaultCircuitBreakerTimeout = 30 * time.Second
	defaultConnectionPoolSize    = 16
	defaultSessionCleanupEvery   = 30 * time.Second
	defaultServerPort            = 8088
)

// Config holds all configuration for the media engine process.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Engine  EngineConfig  `mapstructure:"engine"`
}

// ServerConfig holds the demo HTTP facade's server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// EngineConfig holds the media engine's own tuning knobs.
type EngineConfig struct {
	MaxConcurrentSessions int                  `mapstructure:"max_concurrent_sessions"`
	JitterBufferCapacity  int                  `mapstructure:"jitter_buffer_capacity"`
	SourceTimeout         time.Duration        `mapstructure:"source_timeout"`
	Pipeline              PipelineConfig       `mapstructure:"pipeline"`
	Buffer                BufferConfig         `mapstructure:"buffer"`
	CircuitBreaker        CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	ConnectionPoolSize    int                  `mapstructure:"connection_pool_size"`
	SessionCleanupEvery   time.Duration        `mapstructure:"session_cleanup_every"`
}

// PipelineConfig holds per-session pipeline tuning.
type PipelineConfig struct {
	InternalQueueDepth int           `mapstructure:"internal_queue_depth"`
	WorkerCount        int           `mapstructure:"worker_count"`
	SyncThreshold      time.Duration `mapstructure:"sync_threshold"`
	HardwareAccel      bool          `mapstructure:"hardware_accel"`
}

// BufferConfig holds per-session memory/cache tuning. MaxTotalBytes
// accepts human-readable sizes like "256MB" via pkg/bytesize.
type BufferConfig struct {
	MaxTotalBytes   ByteSize `mapstructure:"max_total_bytes"`
	RingCapacity    ByteSize `mapstructure:"ring_capacity"`
	MaxCachedFrames int      `mapstructure:"max_cached_frames"`
}

// CircuitBreakerConfig holds the source-read circuit breaker's tuning.
type CircuitBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and
// are prefixed with MEDIAENGINE_, e.g. MEDIAENGINE_ENGINE_MAX_CONCURRENT_SESSIONS.
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
		v.AddConfigPath("/etc/mediaengine")
		v.AddConfigPath("$HOME/.mediaengine")
	}

	v.SetEnvPrefix("MEDIAENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(byteSizeDecodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("engine.max_concurrent_sessions", defaultMaxConcurrentSessions)
	v.SetDefault("engine.jitter_buffer_capacity", defaultJitterBufferCapacity)
	v.SetDefault("engine.source_timeout", defaultSourceTimeout)
	v.SetDefault("engine.connection_pool_size", defaultConnectionPoolSize)
	v.SetDefault("engine.session_cleanup_every", defaultSessionCleanupEvery)

	v.SetDefault("engine.pipeline.internal_queue_depth", defaultInternalQueueDepth)
	v.SetDefault("engine.pipeline.worker_count", defaultWorkerCount)
	v.SetDefault("engine.pipeline.sync_threshold", defaultSyncThreshold)
	v.SetDefault("engine.pipeline.hardware_accel", true)

	v.SetDefault("engine.buffer.max_total_bytes", defaultMaxTotalBytes)
	v.SetDefault("engine.buffer.ring_capacity", defaultRingCapacity)
	v.SetDefault("engine.buffer.max_cached_frames", defaultMaxCachedFrames)

	v.SetDefault("engine.circuit_breaker.failure_threshold", defaultCircuitBreakerThresh)
	v.SetDefault("engine.circuit_breaker.success_threshold", 2)
	v.SetDefault("engine.circuit_breaker.timeout", defaultCircuitBreakerTimeout)
}

// Validate checks the config for internally-inconsistent values that
// would otherwise surface as confusing runtime errors.
func (c *Config) Validate() error {
	if c.Engine.MaxConcurrentSessions <= 0 {
		return fmt.Errorf("engine.max_concurrent_sessions must be positive")
	}
	if c.Engine.Pipeline.WorkerCount <= 0 {
		return fmt.Errorf("engine.pipeline.worker_count must be positive")
	}
	if c.Engine.Buffer.MaxTotalBytes <= 0 {
		return fmt.Errorf("engine.buffer.max_total_bytes must be positive")
	}
	return nil
}

// ToMediaTypes narrows the ambient EngineConfig (Viper-friendly,
// human-readable byte sizes) down to the mediatypes.EngineConfig the
// engine and session packages actually run on.
func (c EngineConfig) ToMediaTypes() mediatypes.EngineConfig {
	return mediatypes.EngineConfig{
		MaxConcurrentSessions: c.MaxConcurrentSessions,
		JitterBufferCapacity:  c.JitterBufferCapacity,
		ConnectionPoolSize:    c.ConnectionPoolSize,
		Pipeline: mediatypes.PipelineConfig{
			InternalQueueDepth: c.Pipeline.InternalQueueDepth,
			WorkerCount:        c.Pipeline.WorkerCount,
			SyncThreshold:      c.Pipeline.SyncThreshold,
			HardwareAccel:      c.Pipeline.HardwareAccel,
		},
		Buffer: mediatypes.BufferConfig{
			MaxTotalBytes:   c.Buffer.MaxTotalBytes.Bytes(),
			RingCapacity:    int(c.Buffer.RingCapacity.Bytes()),
			MaxCachedFrames: c.Buffer.MaxCachedFrames,
		},
	}
}
