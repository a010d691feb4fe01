package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the swarm core service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"SWARM_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"SWARM_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Worker configuration
	Workers WorkerConfig

	// Message bus configuration
	Bus BusConfig

	// Redis stream relay configuration
	Redis RedisConfig

	// LLM configuration
	LLM LLMConfig

	// Context snapshot export configuration
	Snapshot SnapshotConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"32"`
	AnalyzerPoolSize    int           `env:"WORKER_ANALYZER_POOL_SIZE" envDefault:"16"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
	EchoUnit            time.Duration `env:"WORKER_ECHO_UNIT" envDefault:"10ms"`
}

// BusConfig holds message bus configuration
type BusConfig struct {
	SwarmCapacity    int           `env:"BUS_SWARM_CAPACITY" envDefault:"5000"`
	ContextCapacity  int           `env:"BUS_CONTEXT_CAPACITY" envDefault:"10000"`
	Overflow         string        `env:"BUS_OVERFLOW_POLICY" envDefault:"drop"`
	PublishTimeout   time.Duration `env:"BUS_PUBLISH_TIMEOUT" envDefault:"100ms"`
	SubscribeTimeout time.Duration `env:"BUS_SUBSCRIBE_TIMEOUT" envDefault:"100ms"`
}

// RedisConfig holds Redis relay configuration. An empty address disables the relay.
type RedisConfig struct {
	Addr         string        `env:"REDIS_ADDR"`
	Password     string        `env:"REDIS_PASS"`
	DB           int           `env:"REDIS_DB" envDefault:"0"`
	Stream       string        `env:"REDIS_STREAM" envDefault:"swarm:context"`
	MaxLen       int64         `env:"REDIS_STREAM_MAXLEN" envDefault:"10000"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// LLMConfig holds LLM provider configuration. An empty API key runs the
// translation executors in stub mode.
type LLMConfig struct {
	Provider       string        `env:"LLM_PROVIDER" envDefault:"anthropic"`
	APIKey         string        `env:"LLM_API_KEY"`
	BaseURL        string        `env:"LLM_BASE_URL"`
	Model          string        `env:"LLM_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	MaxTokens      int           `env:"LLM_MAX_TOKENS" envDefault:"4096"`
	RequestTimeout time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"120s"`
	CacheSize      int           `env:"LLM_CACHE_SIZE" envDefault:"1024"`
}

// SnapshotConfig holds S3 snapshot export configuration. An empty endpoint
// disables the exporter.
type SnapshotConfig struct {
	Endpoint  string        `env:"SNAPSHOT_S3_ENDPOINT"`
	Bucket    string        `env:"SNAPSHOT_S3_BUCKET" envDefault:"swarm-snapshots"`
	Region    string        `env:"SNAPSHOT_S3_REGION" envDefault:"us-east-1"`
	AccessKey string        `env:"SNAPSHOT_S3_ACCESS_KEY"`
	SecretKey string        `env:"SNAPSHOT_S3_SECRET_KEY"`
	UseSSL    bool          `env:"SNAPSHOT_S3_USE_SSL" envDefault:"false"`
	Prefix    string        `env:"SNAPSHOT_S3_PREFIX" envDefault:"context"`
	Interval  time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"60s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	BatchTimeout    time.Duration `env:"TIMEOUT_BATCH" envDefault:"300s"`
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from a .env file, when present, and environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate worker config
	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.AnalyzerPoolSize < 1 {
		return fmt.Errorf("analyzer pool size must be at least 1")
	}

	// Validate bus config
	if c.Bus.SwarmCapacity < 1 || c.Bus.ContextCapacity < 1 {
		return fmt.Errorf("bus capacity must be at least 1")
	}
	if c.Bus.Overflow != "drop" && c.Bus.Overflow != "wait" {
		return fmt.Errorf("invalid bus overflow policy: %s (must be drop or wait)", c.Bus.Overflow)
	}

	// Validate LLM config
	if c.LLM.APIKey != "" && c.LLM.Provider != "anthropic" {
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}

	// Validate snapshot config
	if c.Snapshot.Endpoint != "" && c.Snapshot.Interval <= 0 {
		return fmt.Errorf("snapshot interval must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
