package kafka

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/ChemMap/pkg/errors"
)

type mockKafkaWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closeFunc func() error
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		return m.writeFunc(ctx, msgs...)
	}
	return nil
}

func (m *mockKafkaWriter) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func (m *mockKafkaWriter) Stats() kafka.WriterStats { return kafka.WriterStats{} }

func newTestProducerConfig() ProducerConfig {
	return ProducerConfig{Brokers: []string{"localhost:9092"}}
}

func newTestProducerMessage(topic, key, value string) *ProducerMessage {
	return &ProducerMessage{Topic: topic, Key: []byte(key), Value: []byte(value)}
}

func newTestProducer(w WriterInterface) *Producer {
	return newProducerWithWriter(w, newTestProducerConfig(), logging.NewNopLogger())
}

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(newTestProducerConfig()))

	cfg := newTestProducerConfig()
	cfg.Brokers = nil
	assert.True(t, apperrors.IsValidation(ValidateProducerConfig(cfg)))

	cfg = newTestProducerConfig()
	cfg.MaxRetries = -1
	assert.Error(t, ValidateProducerConfig(cfg))

	cfg = newTestProducerConfig()
	cfg.SASLEnabled = true
	cfg.SASLMechanism = MechanismPlain
	assert.Error(t, ValidateProducerConfig(cfg), "credentials missing")
}

func TestNewProducer_AppliesDefaults(t *testing.T) {
	p, err := NewProducer(newTestProducerConfig(), nil)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 3, p.config.MaxRetries)
	assert.Equal(t, 1024*1024, p.config.MaxMessageBytes)
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.Equal(t, 4, w.MaxAttempts)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
}

func TestRequiredAcksAndCompression(t *testing.T) {
	assert.Equal(t, kafka.RequireNone, requiredAcks("none"))
	assert.Equal(t, kafka.RequireAll, requiredAcks("all"))
	assert.Equal(t, kafka.RequireOne, requiredAcks(""))
	assert.Equal(t, kafka.Zstd, compression("zstd"))
	assert.Equal(t, kafka.Compression(0), compression("brotli"))
}

func TestPublish_Success(t *testing.T) {
	var captured []kafka.Message
	p := newTestProducer(&mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			captured = msgs
			return nil
		},
	})

	msg := newTestProducerMessage(TopicMappingRecords, "NaCl", `{"x":1}`)
	msg.Headers = map[string]string{HeaderRunID: "r1"}
	require.NoError(t, p.Publish(context.Background(), msg))

	require.Len(t, captured, 1)
	assert.Equal(t, TopicMappingRecords, captured[0].Topic)
	assert.Equal(t, "NaCl", string(captured[0].Key))
	assert.Equal(t, []kafka.Header{{Key: HeaderRunID, Value: []byte("r1")}}, captured[0].Headers)
	assert.False(t, captured[0].Time.IsZero())

	m := p.GetMetrics()
	assert.Equal(t, int64(1), m.MessagesSent.Load())
	assert.Equal(t, int64(7), m.BytesSent.Load())
}

func TestPublish_Validation(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	ctx := context.Background()

	assert.True(t, apperrors.IsValidation(p.Publish(ctx, newTestProducerMessage("", "k", "v"))))
	assert.True(t, apperrors.IsValidation(p.Publish(ctx, newTestProducerMessage("t", "k", ""))))

	big := newTestProducerMessage("t", "k", strings.Repeat("x", 1024*1024+1))
	err := p.Publish(ctx, big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message too large")
}

func TestPublish_Failure(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			return errors.New("leader not available")
		},
	})
	err := p.Publish(context.Background(), newTestProducerMessage("t", "k", "v"))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMessageQueue))
	assert.Equal(t, int64(1), p.metrics.MessagesFailed.Load())
}

func TestPublishBatch_PartialFailure(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			errs := make(kafka.WriteErrors, len(msgs))
			errs[1] = errors.New("fail")
			return errs
		},
	})
	res, err := p.PublishBatch(context.Background(), []*ProducerMessage{
		newTestProducerMessage("t", "1", "1"),
		newTestProducerMessage("t", "2", "2"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, "t", res.Errors[0].Topic)
}

func TestPublishBatch_TotalFailure(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			return context.DeadlineExceeded
		},
	})
	res, err := p.PublishBatch(context.Background(), []*ProducerMessage{
		newTestProducerMessage("t", "1", "1"),
		newTestProducerMessage("t", "2", "2"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, -1, res.Errors[0].Index)
}

func TestPublishBatch_RejectsInvalidMessage(t *testing.T) {
	called := false
	p := newTestProducer(&mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			called = true
			return nil
		},
	})
	_, err := p.PublishBatch(context.Background(), []*ProducerMessage{
		newTestProducerMessage("t", "1", "1"),
		newTestProducerMessage("", "2", "2"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message 1")
	assert.True(t, apperrors.IsValidation(err))
	assert.False(t, called)

	_, err = p.PublishBatch(context.Background(), nil)
	assert.True(t, apperrors.IsValidation(err))
}

func TestPublishAsync_ReportsErrors(t *testing.T) {
	var mu sync.Mutex
	var got error
	done := make(chan struct{})

	cfg := newTestProducerConfig()
	cfg.AsyncErrorHandler = func(err error, msg *ProducerMessage) {
		mu.Lock()
		got = err
		mu.Unlock()
		close(done)
	}
	p := newProducerWithWriter(&mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			return errors.New("broker down")
		},
	}, cfg, logging.NewNopLogger())

	p.PublishAsync(context.Background(), newTestProducerMessage("t", "k", "v"))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Error(t, got)
}

func TestProducerClose(t *testing.T) {
	closes := 0
	p := newTestProducer(&mockKafkaWriter{
		closeFunc: func() error {
			closes++
			return nil
		},
	})
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, closes)

	assert.Equal(t, ErrProducerClosed, p.Publish(context.Background(), newTestProducerMessage("t", "k", "v")))
	_, err := p.PublishBatch(context.Background(), nil)
	assert.Equal(t, ErrProducerClosed, err)
}
