package bootstrap

import (
	"github.com/turtacn/ChemMap/internal/config"
	"github.com/turtacn/ChemMap/internal/infrastructure/messaging/kafka"
)

// SecurityConfig extracts the SASL and TLS settings of k.
func SecurityConfig(k config.KafkaConfig) kafka.SecurityConfig {
	return kafka.SecurityConfig{
		SASLEnabled:   k.SASLEnabled,
		SASLMechanism: k.SASLMechanism,
		SASLUsername:  k.SASLUsername,
		SASLPassword:  k.SASLPassword,
		TLSEnabled:    k.TLSEnabled,
		TLSCertPath:   k.TLSCertPath,
		TLSInsecure:   k.TLSInsecure,
	}
}

// ProducerConfig builds the record publisher's producer settings.
func ProducerConfig(k config.KafkaConfig) kafka.ProducerConfig {
	return kafka.ProducerConfig{
		SecurityConfig:   SecurityConfig(k),
		Brokers:          k.Brokers,
		Acks:             k.Acks,
		MaxRetries:       k.MaxRetries,
		CompressionCodec: k.Compression,
	}
}

// ConsumerConfig builds the worker's consumer settings for the request topic.
func ConsumerConfig(k config.KafkaConfig) kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		SecurityConfig:  SecurityConfig(k),
		Brokers:         k.Brokers,
		GroupID:         k.GroupID,
		Topics:          []string{k.RequestTopic},
		AutoOffsetReset: k.AutoOffsetReset,
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      k.MaxRetries,
			RetryBackoff:    k.RetryBackoff,
			MaxRetryBackoff: k.MaxRetryBackoff,
			DeadLetterTopic: k.DeadLetterTopic,
		},
	}
}

// Topics returns kafka.DefaultTopics renamed to the configured topic names.
func Topics(k config.KafkaConfig) []kafka.TopicConfig {
	names := map[string]string{
		kafka.TopicMatchRequests:  k.RequestTopic,
		kafka.TopicMappingRecords: k.RecordTopic,
		kafka.TopicDeadLetter:     k.DeadLetterTopic,
	}
	topics := kafka.DefaultTopics()
	for i := range topics {
		if n := names[topics[i].Name]; n != "" {
			topics[i].Name = n
		}
	}
	return topics
}
