// Package worker turns match requests consumed from Kafka into batch runs.
// Records reach downstream systems through the service's sinks, so the
// handler only decodes, runs and reports.
package worker

import (
	"context"
	"time"

	"github.com/turtacn/ChemMap/internal/application/mapping"
	"github.com/turtacn/ChemMap/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
)

// Results reported to the Observer.
const (
	ResultOK        = "ok"
	ResultCancelled = "cancelled"
	ResultFailed    = "failed"
)

// BatchMatcher runs a batch; *mapping.Service implements it.
type BatchMatcher interface {
	MatchBatch(ctx context.Context, rows []mapping.Row) (*mapping.BatchResult, error)
}

// Observer counts handled messages by result.
type Observer interface {
	ObserveWorkerMessage(result string)
}

// RequestHandler handles the match request topic.
type RequestHandler struct {
	svc    BatchMatcher
	obs    Observer
	logger logging.Logger
}

// NewRequestHandler creates a handler. obs may be nil.
func NewRequestHandler(svc BatchMatcher, obs Observer, logger logging.Logger) *RequestHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RequestHandler{svc: svc, obs: obs, logger: logger.Named("worker")}
}

// Handle is a kafka.MessageHandler. A malformed request fails without
// retry; a failed sink write is returned so the consumer retries and
// eventually dead-letters the message; a cancelled run returns the context
// error so the offset stays uncommitted.
func (h *RequestHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	start := time.Now()
	req, err := kafka.DecodeMatchRequest(msg)
	if err != nil {
		h.observe(ResultFailed)
		h.logger.Warn("rejected match request",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset),
			logging.Err(err))
		return err
	}

	rows := make([]mapping.Row, len(req.Rows))
	for i, r := range req.Rows {
		rows[i] = mapping.Row{Key: r.Key, Name: r.Name}
	}

	res, err := h.svc.MatchBatch(ctx, rows)
	switch {
	case err == nil:
		h.observe(ResultOK)
		h.logger.Info("match request processed",
			logging.String("run_id", res.RunID.String()),
			logging.String("index_version", res.IndexVersion),
			logging.Int("rows", res.Summary.Total),
			logging.Int("mapped", res.Summary.Mapped),
			logging.Int64("offset", msg.Offset),
			logging.Duration("took", time.Since(start)))
		return nil
	case res != nil && res.Cancelled:
		h.observe(ResultCancelled)
		return err
	default:
		h.observe(ResultFailed)
		h.logger.Error("match request failed",
			logging.Int64("offset", msg.Offset),
			logging.Int("rows", len(rows)),
			logging.Err(err))
		return err
	}
}

func (h *RequestHandler) observe(result string) {
	if h.obs != nil {
		h.obs.ObserveWorkerMessage(result)
	}
}
