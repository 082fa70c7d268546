package config

import (
	"time"

	"github.com/turtacn/ChemMap/internal/domain/mapping"
	"github.com/turtacn/ChemMap/internal/infrastructure/messaging/kafka"
	storage "github.com/turtacn/ChemMap/internal/infrastructure/storage/minio"
)

const (
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultServerMode      = "release"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxBodySize     = 8 << 20
	DefaultMaxBatchRows    = 50000

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMinScore = mapping.DefaultMinScore

	DefaultVocabularySource = SourceFile
	DefaultVocabularyPath   = "data/vocabulary.tsv"

	DefaultDBHost         = "localhost"
	DefaultDBPort         = 5432
	DefaultDBName         = "chemmap"
	DefaultDBSSLMode      = "disable"
	DefaultMigrationsPath = "migrations"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisMode      = "standalone"
	DefaultRedisTTL       = 24 * time.Hour
	DefaultRedisKeyPrefix = "chemmap:match:"

	DefaultKafkaBroker          = "localhost:9092"
	DefaultKafkaGroupID         = "chemmap-worker"
	DefaultKafkaRequestTopic    = kafka.TopicMatchRequests
	DefaultKafkaRecordTopic     = kafka.TopicMappingRecords
	DefaultKafkaDeadLetterTopic = kafka.TopicDeadLetter
	DefaultKafkaMaxRetries      = 3
	DefaultKafkaRetryBackoff    = time.Second

	DefaultNeo4jURI       = "bolt://localhost:7687"
	DefaultNeo4jBatchSize = 500

	DefaultMetricsPath = "/metrics"
)

// NewDefaultConfig returns a Config that validates as-is: file vocabulary,
// every optional backend disabled, metrics on.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Matching.MinScore = DefaultMinScore
	cfg.Matching.SkipSolvents = true
	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-value fields in cfg. Explicit values always win.
// Boolean switches are not touched here; their defaults are registered on
// the viper instance so an explicit false survives.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	s := &cfg.Server
	if s.Host == "" {
		s.Host = DefaultServerHost
	}
	if s.Port == 0 {
		s.Port = DefaultServerPort
	}
	if s.Mode == "" {
		s.Mode = DefaultServerMode
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.MaxBodySize == 0 {
		s.MaxBodySize = DefaultMaxBodySize
	}
	if s.MaxBatchRows == 0 {
		s.MaxBatchRows = DefaultMaxBatchRows
	}
	if s.RateLimit > 0 && s.RateBurst == 0 {
		s.RateBurst = int(2*s.RateLimit) + 1
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// matching.min_score 0 is a legal floor; its default lives on the viper
	// instance.

	v := &cfg.Vocabulary
	if v.Source == "" {
		v.Source = DefaultVocabularySource
	}
	if v.Source == SourceFile && v.Path == "" {
		v.Path = DefaultVocabularyPath
	}
	if v.Bucket == "" {
		v.Bucket = storage.DefaultBucket
	}
	if v.Object == "" {
		v.Object = storage.DefaultVocabularyObject
	}

	pg := &cfg.Database.Postgres
	if pg.Host == "" {
		pg.Host = DefaultDBHost
	}
	if pg.Port == 0 {
		pg.Port = DefaultDBPort
	}
	if pg.Database == "" {
		pg.Database = DefaultDBName
	}
	if pg.SSLMode == "" {
		pg.SSLMode = DefaultDBSSLMode
	}
	if pg.MigrationsPath == "" {
		pg.MigrationsPath = DefaultMigrationsPath
	}

	rc := &cfg.Cache.Redis
	if rc.Mode == "" {
		rc.Mode = DefaultRedisMode
	}
	if rc.Addr == "" {
		rc.Addr = DefaultRedisAddr
	}
	if rc.TTL == 0 {
		rc.TTL = DefaultRedisTTL
	}
	if rc.KeyPrefix == "" {
		rc.KeyPrefix = DefaultRedisKeyPrefix
	}

	k := &cfg.Messaging.Kafka
	if len(k.Brokers) == 0 {
		k.Brokers = []string{DefaultKafkaBroker}
	}
	if k.GroupID == "" {
		k.GroupID = DefaultKafkaGroupID
	}
	if k.RequestTopic == "" {
		k.RequestTopic = DefaultKafkaRequestTopic
	}
	if k.RecordTopic == "" {
		k.RecordTopic = DefaultKafkaRecordTopic
	}
	if k.DeadLetterTopic == "" {
		k.DeadLetterTopic = DefaultKafkaDeadLetterTopic
	}
	if k.AutoOffsetReset == "" {
		k.AutoOffsetReset = "earliest"
	}
	if k.MaxRetries == 0 {
		k.MaxRetries = DefaultKafkaMaxRetries
	}
	if k.RetryBackoff == 0 {
		k.RetryBackoff = DefaultKafkaRetryBackoff
	}

	g := &cfg.Graph.Neo4j
	if g.URI == "" {
		g.URI = DefaultNeo4jURI
	}
	if g.BatchSize == 0 {
		g.BatchSize = DefaultNeo4jBatchSize
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}
