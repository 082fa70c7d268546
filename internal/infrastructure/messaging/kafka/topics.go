package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// Topics.
const (
	TopicMappingRecords = "compound.mapping.records"
	TopicMatchRequests  = "compound.match.requests"
	TopicDeadLetter     = "dead_letter.compound"
)

// Header keys.
const (
	HeaderRunID         = "run_id"
	HeaderIndexVersion  = "index_version"
	HeaderRowKey        = "row_key"
	HeaderOriginalTopic = "original_topic"
	HeaderErrorMessage  = "error_message"
)

// RequestRow is one name to match; Key is echoed back as the envelope's
// RowKey.
type RequestRow struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// MatchRequest is the payload of TopicMatchRequests.
type MatchRequest struct {
	Rows []RequestRow `json:"rows"`
}

// DecodeMatchRequest parses and validates a request message.
func DecodeMatchRequest(msg *Message) (*MatchRequest, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeBatchInputInvalid, "empty match request")
	}
	var req MatchRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBatchInputInvalid, "malformed match request").
			WithDetailf("offset=%d", msg.Offset)
	}
	if len(req.Rows) == 0 {
		return nil, errors.New(errors.ErrCodeBatchInputInvalid, "match request has no rows").
			WithDetailf("offset=%d", msg.Offset)
	}
	for i := range req.Rows {
		if req.Rows[i].Key == "" {
			req.Rows[i].Key = strconv.Itoa(i)
		}
	}
	return &req, nil
}

// ToMessage encodes the request for topic.
func (r *MatchRequest) ToMessage(topic string) (*ProducerMessage, error) {
	val, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal match request")
	}
	return &ProducerMessage{Topic: topic, Value: val}, nil
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates the ChemMap topics.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials the first broker.
func NewTopicManager(brokers []string, sec SecurityConfig, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	tlsCfg, err := buildTLSConfig(sec)
	if err != nil {
		return nil, err
	}
	mech, err := buildSASLMechanism(sec)
	if err != nil {
		return nil, err
	}
	dialer := &kafka.Dialer{DualStack: true, TLS: tlsCfg, SASLMechanism: mech}
	conn, err := dialer.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessageQueue, "failed to dial kafka").
			WithDetailf("broker=%s", brokers[0])
	}
	return &TopicManager{conn: conn, logger: logger.Named("kafka_topics")}, nil
}

// CreateTopic creates cfg; an existing topic is not an error.
func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 {
		return errors.New(errors.ErrCodeValidation, "NumPartitions must be > 0")
	}
	if cfg.ReplicationFactor <= 0 {
		return errors.New(errors.ErrCodeValidation, "ReplicationFactor must be > 0")
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(cfg.RetentionMs, 10)})
	}
	if cfg.CleanupPolicy != "" {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "cleanup.policy", ConfigValue: cfg.CleanupPolicy})
	}
	if cfg.MaxMessageBytes > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "max.message.bytes", ConfigValue: strconv.Itoa(cfg.MaxMessageBytes)})
	}
	for k, v := range cfg.Configs {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: k, ConfigValue: v})
	}

	if err := m.conn.CreateTopics(kCfg); err != nil {
		if stderrors.Is(err, kafka.TopicAlreadyExists) || strings.Contains(err.Error(), "already exists") {
			return nil
		}
		if exists, _ := m.TopicExists(ctx, cfg.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeMessageQueue, "failed to create topic").
			WithDetailf("topic=%s", cfg.Name)
	}
	m.logger.Info("topic created", logging.String("topic", cfg.Name))
	return nil
}

// TopicExists reports whether name has any partitions.
func (m *TopicManager) TopicExists(ctx context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeMessageQueue, "failed to read partitions")
	}
	return len(partitions) > 0, nil
}

// EnsureTopics creates every topic in order and stops at the first failure.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	for _, topic := range topics {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDefaultTopics creates DefaultTopics.
func (m *TopicManager) EnsureDefaultTopics(ctx context.Context) error {
	return m.EnsureTopics(ctx, DefaultTopics())
}

// Close closes the broker connection.
func (m *TopicManager) Close() error {
	return m.conn.Close()
}

const day = int64(24 * 3600 * 1000)

// DefaultTopics are the topics the worker and the API publish to. Records
// are compacted by key so the latest mapping per name survives.
func DefaultTopics() []TopicConfig {
	return []TopicConfig{
		{Name: TopicMatchRequests, NumPartitions: 6, ReplicationFactor: 3, RetentionMs: 3 * day},
		{Name: TopicMappingRecords, NumPartitions: 6, ReplicationFactor: 3, CleanupPolicy: "compact"},
		{Name: TopicDeadLetter, NumPartitions: 3, ReplicationFactor: 3, RetentionMs: 30 * day},
	}
}
