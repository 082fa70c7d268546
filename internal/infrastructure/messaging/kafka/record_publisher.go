package kafka

import (
	"context"
	"encoding/json"

	"github.com/turtacn/ChemMap/internal/domain/mapping"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/pkg/errors"
)

type batchPublisher interface {
	PublishBatch(ctx context.Context, msgs []*ProducerMessage) (*BatchPublishResult, error)
}

// RecordPublisher is the record sink that writes one message per envelope,
// keyed by the original name.
type RecordPublisher struct {
	producer batchPublisher
	topic    string
	logger   logging.Logger
}

// NewRecordPublisher publishes to topic, TopicMappingRecords when empty.
func NewRecordPublisher(p *Producer, topic string, log logging.Logger) *RecordPublisher {
	return newRecordPublisher(p, topic, log)
}

func newRecordPublisher(p batchPublisher, topic string, log logging.Logger) *RecordPublisher {
	if topic == "" {
		topic = TopicMappingRecords
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RecordPublisher{producer: p, topic: topic, logger: log.Named("record_publisher")}
}

// Name identifies the sink in logs and errors.
func (r *RecordPublisher) Name() string { return "kafka" }

// EnvelopeMessage encodes env for topic.
func EnvelopeMessage(topic string, env mapping.MappingEnvelope) (*ProducerMessage, error) {
	val, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	return &ProducerMessage{
		Topic: topic,
		Key:   []byte(env.Record.Original),
		Value: val,
		Headers: map[string]string{
			HeaderRunID:        env.RunID.String(),
			HeaderIndexVersion: env.IndexVersion,
			HeaderRowKey:       env.RowKey,
		},
	}, nil
}

// WriteRecords publishes envs in a single batch.
func (r *RecordPublisher) WriteRecords(ctx context.Context, envs []mapping.MappingEnvelope) error {
	if len(envs) == 0 {
		return nil
	}
	msgs := make([]*ProducerMessage, len(envs))
	for i, env := range envs {
		msg, err := EnvelopeMessage(r.topic, env)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	res, err := r.producer.PublishBatch(ctx, msgs)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		var cause error
		if len(res.Errors) > 0 {
			cause = res.Errors[0].Error
		}
		return ErrPublishFailed.
			WithDetailf("%d of %d records failed", res.Failed, len(envs)).
			WithCause(cause)
	}
	r.logger.Debug("records published",
		logging.String("topic", r.topic),
		logging.Int("records", res.Succeeded))
	return nil
}
