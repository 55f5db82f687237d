package config

import (
	"errors"
	"time"
)

// Config represents the sync service configuration
type Config struct {
	Server     ServerConfig    `mapstructure:"server"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Tracker    TrackerConfig   `mapstructure:"tracker"`
	Indexing   IndexingConfig  `mapstructure:"indexing"`
	TaskQueue  TaskQueueConfig `mapstructure:"task_queue"`
	Superusers []string        `mapstructure:"superusers"`
	Metrics    MetricsConfig   `mapstructure:"metrics"`
	Logging    LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
}

// DatabaseConfig represents PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig represents Redis idempotency store configuration
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// TrackerConfig represents the remote ticket service configuration
type TrackerConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Token         string        `mapstructure:"token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	IssueURLTmpl  string        `mapstructure:"issue_url_template"`
	AppBaseURL    string        `mapstructure:"app_base_url"`
}

// IndexingConfig represents full-text index maintenance configuration
type IndexingConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
}

// TaskQueueConfig represents the task queue sweep configuration
type TaskQueueConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Queue         string        `mapstructure:"queue"`
	Timeout       time.Duration `mapstructure:"timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Database == "" {
		return errors.New("database.database is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Redis.Host == "" {
		return errors.New("redis.host is required")
	}
	if c.Tracker.BaseURL == "" {
		return errors.New("tracker.base_url is required")
	}
	if c.Tracker.MaxAttempts <= 0 {
		return errors.New("tracker.max_attempts must be positive")
	}
	if c.Tracker.RetryInterval <= 0 {
		return errors.New("tracker.retry_interval must be positive")
	}
	if c.Indexing.ChunkSize <= 0 {
		return errors.New("indexing.chunk_size must be positive")
	}
	if c.TaskQueue.SweepInterval <= 0 {
		return errors.New("task_queue.sweep_interval must be positive")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			RateLimit:       100,
			RateBurst:       200,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "grc",
			User:            "grc",
			Password:        "",
			MaxConnections:  50,
			MinConnections:  10,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         6379,
			Password:     "",
			DB:           0,
			MaxRetries:   3,
			PoolSize:     20,
			MinIdleConns: 5,
		},
		Tracker: TrackerConfig{
			BaseURL:       "http://localhost:9090",
			Token:         "",
			Timeout:       30 * time.Second,
			MaxAttempts:   10,
			RetryInterval: 10 * time.Second,
			IssueURLTmpl:  "http://issues.example.com/issues/%d",
			AppBaseURL:    "http://localhost:8080",
		},
		Indexing: IndexingConfig{
			ChunkSize: 3000,
		},
		TaskQueue: TaskQueueConfig{
			BaseURL:       "http://localhost:9091",
			Queue:         "ggrcImport",
			Timeout:       30 * time.Second,
			SweepInterval: 5 * time.Minute,
		},
		Superusers: nil,
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9100,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
