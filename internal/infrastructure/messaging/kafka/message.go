// Package kafka carries mapping records to downstream consumers and feeds
// the stream-matching worker. It wraps segmentio/kafka-go behind small
// writer, reader and conn interfaces so the tests can substitute fakes.
package kafka

import (
	"context"
	"time"
)

// Message is a consumed record with its headers flattened to strings.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is a record to publish. A zero Timestamp is stamped at
// send time.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
	Partition int
}

// MessageHandler processes one consumed message. A returned error triggers
// the consumer's retry policy.
type MessageHandler func(ctx context.Context, msg *Message) error

// TopicConfig describes a topic for TopicManager.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
	MaxMessageBytes   int
	Configs           map[string]string
}

// BatchPublishResult reports per-message outcomes of PublishBatch.
type BatchPublishResult struct {
	Succeeded int
	Failed    int
	Errors    []BatchItemError
}

// BatchItemError is the failure of one message in a batch. Index is -1 when
// the whole write failed.
type BatchItemError struct {
	Index int
	Topic string
	Error error
}
