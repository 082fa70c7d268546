package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultServerMode, cfg.Server.Mode)
	assert.Equal(t, SourceFile, cfg.Vocabulary.Source)
	assert.Equal(t, DefaultVocabularyPath, cfg.Vocabulary.Path)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Messaging.Kafka.Brokers)
	assert.Equal(t, DefaultRedisTTL, cfg.Cache.Redis.TTL)
	assert.Equal(t, DefaultNeo4jBatchSize, cfg.Graph.Neo4j.BatchSize)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
	assert.Zero(t, cfg.Matching.MinScore)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Vocabulary.Source = SourceMinIO
	cfg.Messaging.Kafka.Brokers = []string{"k1:9092", "k2:9092"}
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Empty(t, cfg.Vocabulary.Path)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Messaging.Kafka.Brokers)
}

func TestApplyDefaults_RateBurstFollowsRate(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	assert.Zero(t, cfg.Server.RateBurst)

	cfg = &Config{}
	cfg.Server.RateLimit = 10
	ApplyDefaults(cfg)
	assert.Equal(t, 21, cfg.Server.RateBurst)
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, DefaultMinScore, cfg.Matching.MinScore)
	assert.True(t, cfg.Matching.SkipSolvents)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Database.Postgres.Enabled)
}
