// Package config defines the ChemMap configuration tree. Backend sections
// reuse the config structs of the infrastructure packages that consume them,
// so a section here decodes straight into what the client constructor takes.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/ChemMap/internal/infrastructure/database/neo4j"
	"github.com/turtacn/ChemMap/internal/infrastructure/database/postgres"
	"github.com/turtacn/ChemMap/internal/infrastructure/database/redis"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/internal/infrastructure/storage/minio"
)

// Vocabulary sources.
const (
	SourceFile     = "file"
	SourceMinIO    = "minio"
	SourcePostgres = "postgres"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	MaxBatchRows    int           `mapstructure:"max_batch_rows"`
	// RateLimit is the per-client request rate on /api/v1/mappings; zero
	// disables limiting.
	RateLimit   float64  `mapstructure:"rate_limit"`
	RateBurst   int      `mapstructure:"rate_burst"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MatchingConfig tunes the match engine and the batch worker pool.
type MatchingConfig struct {
	MinScore     int  `mapstructure:"min_score"`
	Workers      int  `mapstructure:"workers"`
	SkipSolvents bool `mapstructure:"skip_solvents"`
}

// VocabularyConfig says where the reference vocabulary and the curated
// overrides are loaded from.
type VocabularyConfig struct {
	Source          string        `mapstructure:"source"` // "file" | "minio" | "postgres"
	Path            string        `mapstructure:"path"`
	OverridesPath   string        `mapstructure:"overrides_path"`
	Bucket          string        `mapstructure:"bucket"`
	Object          string        `mapstructure:"object"`
	OverridesObject string        `mapstructure:"overrides_object"`
	ReloadInterval  time.Duration `mapstructure:"reload_interval"`
}

// PostgresSection enables the relational store.
type PostgresSection struct {
	Enabled                 bool   `mapstructure:"enabled"`
	AutoMigrate             bool   `mapstructure:"auto_migrate"`
	MigrationsPath          string `mapstructure:"migrations_path"`
	postgres.PostgresConfig `mapstructure:",squash"`
}

// DatabaseConfig groups relational stores.
type DatabaseConfig struct {
	Postgres PostgresSection `mapstructure:"postgres"`
}

// RedisSection enables the match record cache.
type RedisSection struct {
	Enabled           bool          `mapstructure:"enabled"`
	TTL               time.Duration `mapstructure:"ttl"`
	KeyPrefix         string        `mapstructure:"key_prefix"`
	redis.RedisConfig `mapstructure:",squash"`
}

// CacheConfig groups caches.
type CacheConfig struct {
	Redis RedisSection `mapstructure:"redis"`
}

// KafkaConfig holds broker, topic and retry settings shared by the record
// publisher and the worker's consumer.
type KafkaConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Brokers          []string      `mapstructure:"brokers"`
	GroupID          string        `mapstructure:"group_id"`
	RequestTopic     string        `mapstructure:"request_topic"`
	RecordTopic      string        `mapstructure:"record_topic"`
	DeadLetterTopic  string        `mapstructure:"dead_letter_topic"`
	AutoOffsetReset  string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	AutoCreateTopics bool          `mapstructure:"auto_create_topics"`
	Acks             string        `mapstructure:"acks"`
	Compression      string        `mapstructure:"compression"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	MaxRetryBackoff  time.Duration `mapstructure:"max_retry_backoff"`
	SASLEnabled      bool          `mapstructure:"sasl_enabled"`
	SASLMechanism    string        `mapstructure:"sasl_mechanism"`
	SASLUsername     string        `mapstructure:"sasl_username"`
	SASLPassword     string        `mapstructure:"sasl_password"`
	TLSEnabled       bool          `mapstructure:"tls_enabled"`
	TLSCertPath      string        `mapstructure:"tls_cert_path"`
	TLSInsecure      bool          `mapstructure:"tls_insecure"`
}

// MessagingConfig groups message brokers.
type MessagingConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// StorageConfig groups object stores. MinIO is used when the vocabulary
// source is "minio" and by `chemmap vocab publish`.
type StorageConfig struct {
	MinIO minio.MinIOConfig `mapstructure:"minio"`
}

// Neo4jSection enables the mapping graph sink.
type Neo4jSection struct {
	Enabled           bool `mapstructure:"enabled"`
	BatchSize         int  `mapstructure:"batch_size"`
	neo4j.Neo4jConfig `mapstructure:",squash"`
}

// GraphConfig groups graph stores.
type GraphConfig struct {
	Neo4j Neo4jSection `mapstructure:"neo4j"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	Path                 string `mapstructure:"path"`
	EnableGoMetrics      bool   `mapstructure:"enable_go_metrics"`
	EnableProcessMetrics bool   `mapstructure:"enable_process_metrics"`
}

// Config is the root of the tree. Every binary reads the whole tree and wires
// only the sections it needs.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Log        logging.LogConfig `mapstructure:"log"`
	Matching   MatchingConfig    `mapstructure:"matching"`
	Vocabulary VocabularyConfig  `mapstructure:"vocabulary"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Cache      CacheConfig       `mapstructure:"cache"`
	Messaging  MessagingConfig   `mapstructure:"messaging"`
	Storage    StorageConfig     `mapstructure:"storage"`
	Graph      GraphConfig       `mapstructure:"graph"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
}

// Validate returns the first semantic error in c. Sections that are disabled
// are not checked.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.Server.MaxBatchRows < 1 {
		return fmt.Errorf("server.max_batch_rows must be >= 1, got %d", c.Server.MaxBatchRows)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be >= 0, got %g", c.Server.RateLimit)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Matching.MinScore < 0 || c.Matching.MinScore > 100 {
		return fmt.Errorf("matching.min_score %d is out of range [0, 100]", c.Matching.MinScore)
	}
	if c.Matching.Workers < 0 {
		return fmt.Errorf("matching.workers must be >= 0, got %d", c.Matching.Workers)
	}

	switch c.Vocabulary.Source {
	case SourceFile:
		if c.Vocabulary.Path == "" {
			return fmt.Errorf("vocabulary.path is required when vocabulary.source is %q", SourceFile)
		}
	case SourceMinIO:
		if c.Storage.MinIO.Endpoint == "" {
			return fmt.Errorf("storage.minio.endpoint is required when vocabulary.source is %q", SourceMinIO)
		}
		if c.Vocabulary.Bucket == "" || c.Vocabulary.Object == "" {
			return fmt.Errorf("vocabulary.bucket and vocabulary.object are required when vocabulary.source is %q", SourceMinIO)
		}
	case SourcePostgres:
		if !c.Database.Postgres.Enabled {
			return fmt.Errorf("database.postgres.enabled must be true when vocabulary.source is %q", SourcePostgres)
		}
	default:
		return fmt.Errorf("vocabulary.source %q is invalid; expected file|minio|postgres", c.Vocabulary.Source)
	}
	if c.Vocabulary.ReloadInterval < 0 {
		return fmt.Errorf("vocabulary.reload_interval must not be negative")
	}

	if pg := c.Database.Postgres; pg.Enabled {
		if pg.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if pg.Port < 1 || pg.Port > 65535 {
			return fmt.Errorf("database.postgres.port %d is out of range [1, 65535]", pg.Port)
		}
		if pg.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if pg.Username == "" {
			return fmt.Errorf("database.postgres.username is required")
		}
		if pg.AutoMigrate && pg.MigrationsPath == "" {
			return fmt.Errorf("database.postgres.migrations_path is required when auto_migrate is set")
		}
	}

	if rc := c.Cache.Redis; rc.Enabled {
		switch rc.Mode {
		case "", "standalone":
			if rc.Addr == "" {
				return fmt.Errorf("cache.redis.addr is required")
			}
		case "sentinel":
			if rc.MasterName == "" || len(rc.SentinelAddrs) == 0 {
				return fmt.Errorf("cache.redis.master_name and cache.redis.sentinel_addrs are required in sentinel mode")
			}
		case "cluster":
			if len(rc.ClusterAddrs) == 0 {
				return fmt.Errorf("cache.redis.cluster_addrs is required in cluster mode")
			}
		default:
			return fmt.Errorf("cache.redis.mode %q is invalid; expected standalone|sentinel|cluster", rc.Mode)
		}
		if rc.TTL < 0 {
			return fmt.Errorf("cache.redis.ttl must not be negative")
		}
	}

	if k := c.Messaging.Kafka; k.Enabled {
		if len(k.Brokers) == 0 {
			return fmt.Errorf("messaging.kafka.brokers must contain at least one broker address")
		}
		if k.GroupID == "" {
			return fmt.Errorf("messaging.kafka.group_id is required")
		}
		if k.RequestTopic == "" || k.RecordTopic == "" {
			return fmt.Errorf("messaging.kafka.request_topic and messaging.kafka.record_topic are required")
		}
		switch k.AutoOffsetReset {
		case "earliest", "latest":
		default:
			return fmt.Errorf("messaging.kafka.auto_offset_reset %q is invalid; expected earliest|latest", k.AutoOffsetReset)
		}
	}

	if g := c.Graph.Neo4j; g.Enabled {
		if g.URI == "" {
			return fmt.Errorf("graph.neo4j.uri is required")
		}
		if g.BatchSize < 1 {
			return fmt.Errorf("graph.neo4j.batch_size must be >= 1, got %d", g.BatchSize)
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path)
	}

	return nil
}
