// Package config loads and validates labelmine configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// document store connection, every store backend, the indexing and extraction
// stages, and the ambient subsystems (Kafka, metrics, logging).
package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
)

// Supported store drivers. The set is closed; see store/driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config is the top-level application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// StoreConfig selects the document store backend and names the collection
// the pipeline owns. Driver and URI are process-wide and established once.
type StoreConfig struct {
	Driver         string        `yaml:"driver"`
	URI            string        `yaml:"uri"`
	RootCollection string        `yaml:"rootCollection"`
	Collection     string        `yaml:"collection"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// CollectionPath returns the absolute path of the top-level collection,
// e.g. /db/LabelMe.
func (s StoreConfig) CollectionPath() string {
	return path.Join(s.RootCollection, s.Collection)
}

// PostgresConfig holds pool parameters for the postgres backend. The DSN
// itself comes from StoreConfig.URI.
type PostgresConfig struct {
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// RedisConfig holds pool and keyspace parameters for the redis backend.
type RedisConfig struct {
	PoolSize  int    `yaml:"poolSize"`
	KeyPrefix string `yaml:"keyPrefix"`
}

type SQLiteConfig struct {
	BusyTimeout time.Duration `yaml:"busyTimeout"`
}

// IndexerConfig controls which files the dataset indexer stores.
type IndexerConfig struct {
	Suffix string `yaml:"suffix"`
}

// ExtractorConfig controls the vocabulary path-query, label case folding and
// co-occurrence mode.
type ExtractorConfig struct {
	Path         string `yaml:"path"`
	FoldCase     bool   `yaml:"foldCase"`
	Cooccurrence bool   `yaml:"cooccurrence"`
}

// KafkaConfig holds broker and topic settings for pipeline events.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides over the defaults.
func Load(file string) (*Config, error) {
	cfg := Default()
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", file, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns a Config pointing at a local sqlite file and the
// /db/LabelMe collection.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:         DriverSQLite,
			URI:            "labelmine.db",
			RootCollection: "/db",
			Collection:     "LabelMe",
			ConnectTimeout: 5 * time.Second,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:  10,
			KeyPrefix: "labelmine",
		},
		SQLite: SQLiteConfig{
			BusyTimeout: 5 * time.Second,
		},
		Indexer: IndexerConfig{
			Suffix: ".xml",
		},
		Extractor: ExtractorConfig{
			Path:         "/annotation/object/name",
			FoldCase:     true,
			Cooccurrence: true,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "labelmine-vocabulary",
			Topics: KafkaTopics{
				IndexComplete: "labelmine.index.complete",
			},
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

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverRedis:
	default:
		return apperrors.Newf(apperrors.ErrUnknownDriver, "%q (want memory, sqlite, postgres or redis)", c.Store.Driver)
	}
	if c.Store.Driver != DriverMemory && c.Store.URI == "" {
		return apperrors.Newf(apperrors.ErrInvalidInput, "store.uri is required for driver %s", c.Store.Driver)
	}
	if !strings.HasPrefix(c.Store.RootCollection, "/") {
		return apperrors.Newf(apperrors.ErrInvalidInput, "store.rootCollection must be absolute, got %q", c.Store.RootCollection)
	}
	if c.Store.Collection == "" || strings.Contains(c.Store.Collection, "/") {
		return apperrors.Newf(apperrors.ErrInvalidInput, "store.collection must be a single name, got %q", c.Store.Collection)
	}
	if c.Indexer.Suffix == "" {
		return apperrors.New(apperrors.ErrInvalidInput, "indexer.suffix must not be empty")
	}
	if c.Extractor.Path == "" {
		return apperrors.New(apperrors.ErrInvalidInput, "extractor.path must not be empty")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return apperrors.New(apperrors.ErrInvalidInput, "kafka.brokers must not be empty when kafka is enabled")
	}
	return nil
}

// applyEnvOverrides reads LM_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LM_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("LM_STORE_URI"); v != "" {
		cfg.Store.URI = v
	}
	if v := os.Getenv("LM_STORE_ROOT_COLLECTION"); v != "" {
		cfg.Store.RootCollection = v
	}
	if v := os.Getenv("LM_STORE_COLLECTION"); v != "" {
		cfg.Store.Collection = v
	}
	if v := os.Getenv("LM_INDEXER_SUFFIX"); v != "" {
		cfg.Indexer.Suffix = v
	}
	if v := os.Getenv("LM_EXTRACTOR_PATH"); v != "" {
		cfg.Extractor.Path = v
	}
	if v := os.Getenv("LM_EXTRACTOR_FOLD_CASE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Extractor.FoldCase = b
		}
	}
	if v := os.Getenv("LM_EXTRACTOR_COOCCURRENCE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Extractor.Cooccurrence = b
		}
	}
	if v := os.Getenv("LM_REDIS_KEY_PREFIX"); v != "" {
		cfg.Redis.KeyPrefix = v
	}
	if v := os.Getenv("LM_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("LM_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LM_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LM_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LM_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("LM_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
