// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Indexer, Search, Postgres, Kafka, Redis, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the query server.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxQueryBytes   int64         `yaml:"maxQueryBytes"`
	// RateLimit is the per-client request budget per minute on /api/
	// routes; 0 disables limiting.
	RateLimit       int           `yaml:"rateLimit"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// IndexerConfig controls corpus discovery and index building.
type IndexerConfig struct {
	CorpusDir        string   `yaml:"corpusDir"`
	IndexPath        string   `yaml:"indexPath"`
	Extensions       []string `yaml:"extensions"`
	Workers          int      `yaml:"workers"`
	MaxDocumentBytes int64    `yaml:"maxDocumentBytes"`
}

// SearchConfig controls result truncation and query timeouts.
type SearchConfig struct {
	DefaultLimit int           `yaml:"defaultLimit"`
	MaxResults   int           `yaml:"maxResults"`
	Timeout      time.Duration `yaml:"timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the index run
// registry.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete   string `yaml:"indexComplete"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and query-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig toggles span logging of index build phases.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadOptional behaves like Load but treats a missing file as "use defaults".
// The CLIs pass a conventional path that may not exist on a fresh checkout.
func LoadOptional(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	return Load(path)
}

// Validate reports configuration values the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Indexer.IndexPath == "" {
		errs = append(errs, errors.New("indexer.indexPath must not be empty"))
	}
	if c.Indexer.Workers < 1 {
		errs = append(errs, fmt.Errorf("indexer.workers must be positive, got %d", c.Indexer.Workers))
	}
	if len(c.Indexer.Extensions) == 0 {
		errs = append(errs, errors.New("indexer.extensions must list at least one extension"))
	}
	if c.Search.DefaultLimit < 1 {
		errs = append(errs, fmt.Errorf("search.defaultLimit must be positive, got %d", c.Search.DefaultLimit))
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		errs = append(errs, fmt.Errorf("search.maxResults (%d) must be >= search.defaultLimit (%d)",
			c.Search.MaxResults, c.Search.DefaultLimit))
	}
	if c.Server.MaxQueryBytes < 1 {
		errs = append(errs, fmt.Errorf("server.maxQueryBytes must be positive, got %d", c.Server.MaxQueryBytes))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rateLimit must not be negative, got %d", c.Server.RateLimit))
	}
	return errors.Join(errs...)
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxQueryBytes:   64 << 10,
		},
		Indexer: IndexerConfig{
			CorpusDir:        ".",
			IndexPath:        "index.json",
			Extensions:       []string{".xhtml", ".xml", ".html", ".htm", ".txt"},
			Workers:          4,
			MaxDocumentBytes: 64 << 20,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxResults:   100,
			Timeout:      5 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "seroost",
			User:            "seroost",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "seroost-searcher",
			Topics: KafkaTopics{
				IndexComplete:   "index.complete",
				AnalyticsEvents: "analytics-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SEROOST_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt("SEROOST_SERVER_PORT", &cfg.Server.Port)
	setInt("SEROOST_SERVER_RATE_LIMIT", &cfg.Server.RateLimit)
	setString("SEROOST_INDEXER_CORPUS_DIR", &cfg.Indexer.CorpusDir)
	setString("SEROOST_INDEXER_INDEX_PATH", &cfg.Indexer.IndexPath)
	if v := os.Getenv("SEROOST_INDEXER_EXTENSIONS"); v != "" {
		cfg.Indexer.Extensions = strings.Split(v, ",")
	}
	setInt("SEROOST_INDEXER_WORKERS", &cfg.Indexer.Workers)
	setInt("SEROOST_SEARCH_DEFAULT_LIMIT", &cfg.Search.DefaultLimit)
	setInt("SEROOST_SEARCH_MAX_RESULTS", &cfg.Search.MaxResults)

	setBool("SEROOST_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	setString("SEROOST_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("SEROOST_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("SEROOST_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("SEROOST_POSTGRES_USER", &cfg.Postgres.User)
	setString("SEROOST_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("SEROOST_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)

	setBool("SEROOST_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("SEROOST_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}

	setBool("SEROOST_REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("SEROOST_REDIS_ADDR", &cfg.Redis.Addr)
	setString("SEROOST_REDIS_PASSWORD", &cfg.Redis.Password)

	setString("SEROOST_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("SEROOST_LOGGING_FORMAT", &cfg.Logging.Format)
	setBool("SEROOST_TRACING_ENABLED", &cfg.Tracing.Enabled)
	setBool("SEROOST_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setInt("SEROOST_METRICS_PORT", &cfg.Metrics.Port)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
