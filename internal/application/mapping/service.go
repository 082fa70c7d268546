// Package mapping is the application layer around the match engine: it owns
// the index lifecycle, runs single and batch matches, consults the record
// cache and fans records out to the configured sinks.
package mapping

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	domain "github.com/turtacn/ChemMap/internal/domain/mapping"
	"github.com/turtacn/ChemMap/internal/domain/reference"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// RecordCache stores records per engine fingerprint (index version plus
// matching settings), so engines with different thresholds never share
// entries.
type RecordCache interface {
	Get(ctx context.Context, fingerprint, original string) (*domain.MappingRecord, error)
	Set(ctx context.Context, fingerprint string, rec domain.MappingRecord) error
}

// RecordSink receives the envelopes of a batch run: the Postgres mapping
// table, the Kafka topic, the Neo4j graph.
type RecordSink interface {
	Name() string
	WriteRecords(ctx context.Context, envs []domain.MappingEnvelope) error
}

// Metrics is the subset of the Prometheus collectors the service drives.
type Metrics interface {
	ObserveMatch(method domain.Method, tier domain.Tier, took time.Duration)
	ObserveBatchRows(status string, n int)
	ObserveCache(result string)
	SetIndexStats(st reference.Stats)
}

type nopMetrics struct{}

func (nopMetrics) ObserveMatch(domain.Method, domain.Tier, time.Duration) {}
func (nopMetrics) ObserveBatchRows(string, int)                           {}
func (nopMetrics) ObserveCache(string)                                    {}
func (nopMetrics) SetIndexStats(reference.Stats)                          {}

// ServiceConfig carries the matching section of the configuration.
type ServiceConfig struct {
	MinScore     int
	Workers      int
	SkipSolvents bool
}

// DefaultServiceConfig mirrors the engine defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{MinScore: domain.DefaultMinScore, SkipSolvents: true}
}

// Option configures a Service.
type Option func(*Service)

// WithEntitySource sets where Reload reads the vocabulary from.
func WithEntitySource(src reference.Source) Option {
	return func(s *Service) { s.entities = src }
}

// WithOverrideSource sets where Reload reads the curated overrides from.
func WithOverrideSource(src reference.OverrideSource) Option {
	return func(s *Service) { s.overrides = src }
}

// WithRecordCache enables the record cache.
func WithRecordCache(c RecordCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithSinks appends record sinks.
func WithSinks(sinks ...RecordSink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// WithMetrics sets the metrics hooks.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Service is safe for concurrent use. Reload swaps the engine atomically;
// matches already running finish on the engine they started with.
type Service struct {
	engine    atomic.Pointer[domain.Engine]
	entities  reference.Source
	overrides reference.OverrideSource
	cache     RecordCache
	sinks     []RecordSink
	metrics   Metrics
	runner    *BatchRunner
	cfg       ServiceConfig
	logger    logging.Logger
}

// NewService builds a service without an index; call Reload or Install
// before matching.
func NewService(cfg ServiceConfig, logger logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Service{
		cfg:     cfg,
		metrics: nopMetrics{},
		logger:  logger.Named("mapping"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runner = NewBatchRunner(cfg.Workers, s.logger)
	return s
}

// Reload reads the vocabulary and overrides from their sources, builds a new
// index and installs it. On any error the current engine stays in place.
func (s *Service) Reload(ctx context.Context) error {
	if s.entities == nil {
		return errors.New(errors.ErrCodeVocabularyLoad, "no vocabulary source configured")
	}
	start := time.Now()

	entities, err := s.entities.LoadEntities(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeVocabularyLoad, "load vocabulary")
	}

	var table *reference.OverrideTable
	if s.overrides != nil {
		entries, err := s.overrides.LoadOverrides(ctx)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeVocabularyLoad, "load overrides")
		}
		if table, err = reference.NewOverrideTable(entries); err != nil {
			return err
		}
	}

	idx, err := reference.NewIndex(entities, table, reference.WithIndexLogger(s.logger))
	if err != nil {
		return err
	}
	if err := s.Install(idx); err != nil {
		return err
	}
	s.logger.Info("vocabulary reloaded",
		logging.String("index_version", idx.Version()),
		logging.Duration("took", time.Since(start)))
	return nil
}

// Install binds a new engine to idx and makes it current.
func (s *Service) Install(idx *reference.Index) error {
	eng, err := domain.NewEngine(idx,
		domain.WithMinScore(s.cfg.MinScore),
		domain.WithSolventSkip(s.cfg.SkipSolvents),
		domain.WithLogger(s.logger))
	if err != nil {
		return err
	}
	prev := s.engine.Swap(eng)
	s.metrics.SetIndexStats(idx.Stats())
	if prev != nil && prev.Index().Version() != idx.Version() {
		s.logger.Info("index version changed",
			logging.String("from", prev.Index().Version()),
			logging.String("to", idx.Version()))
	}
	return nil
}

// Engine returns the current engine or MATCH_001.
func (s *Service) Engine() (*domain.Engine, error) {
	eng := s.engine.Load()
	if eng == nil {
		return nil, errors.New(errors.ErrCodeIndexNotLoaded, "reference index not loaded")
	}
	return eng, nil
}

// Ready reports whether an index is installed.
func (s *Service) Ready() bool { return s.engine.Load() != nil }

// Match resolves one name, consulting the record cache first.
func (s *Service) Match(ctx context.Context, raw string) (domain.MappingRecord, error) {
	eng, err := s.Engine()
	if err != nil {
		return domain.MappingRecord{}, err
	}
	return s.match(ctx, eng, raw), nil
}

func (s *Service) match(ctx context.Context, eng *domain.Engine, raw string) domain.MappingRecord {
	fp := eng.Fingerprint()
	if s.cache != nil {
		rec, err := s.cache.Get(ctx, fp, raw)
		switch {
		case err != nil:
			s.metrics.ObserveCache("error")
			s.logger.Warn("record cache read failed", logging.Err(err))
		case rec != nil:
			s.metrics.ObserveCache("hit")
			return *rec
		default:
			s.metrics.ObserveCache("miss")
		}
	}

	start := time.Now()
	rec := eng.Match(raw)
	s.metrics.ObserveMatch(rec.Method, rec.Tier, time.Since(start))

	if s.cache != nil {
		if err := s.cache.Set(ctx, fp, rec); err != nil {
			s.logger.Warn("record cache write failed", logging.Err(err))
		}
	}
	return rec
}

// BatchResult is the outcome of MatchBatch.
type BatchResult struct {
	RunID        uuid.UUID             `json:"run_id"`
	IndexVersion string                `json:"index_version"`
	Records      []RowRecord           `json:"records"`
	Summary      domain.Summary        `json:"summary"`
	Unmapped     []domain.UnmappedName `json:"unmapped"`
	Cancelled    bool                  `json:"cancelled"`
}

type boundMatcher struct {
	ctx context.Context
	s   *Service
	eng *domain.Engine
}

func (m boundMatcher) Match(raw string) domain.MappingRecord {
	return m.s.match(m.ctx, m.eng, raw)
}

// MatchBatch matches rows on the worker pool and publishes the envelopes to
// every sink. A cancelled batch still returns and publishes the records it
// produced, with Cancelled set and a MATCH_003 error.
func (s *Service) MatchBatch(ctx context.Context, rows []Row) (*BatchResult, error) {
	eng, err := s.Engine()
	if err != nil {
		return nil, err
	}
	res := &BatchResult{RunID: uuid.New(), IndexVersion: eng.Index().Version()}

	records, runErr := s.runner.Run(ctx, boundMatcher{ctx: ctx, s: s, eng: eng}, rows)
	res.Records = records
	res.Cancelled = runErr != nil

	plain := make([]domain.MappingRecord, len(records))
	for i, r := range records {
		plain[i] = r.Record
	}
	res.Summary = domain.Summarize(plain)
	res.Unmapped = domain.UnmappedReport(plain)

	s.metrics.ObserveBatchRows("matched", len(records))
	if skipped := len(rows) - len(records); skipped > 0 {
		s.metrics.ObserveBatchRows("cancelled", skipped)
	}

	// Sinks get a context that survives the batch cancellation so the
	// produced records are still delivered.
	if err := s.Publish(context.WithoutCancel(ctx), res); err != nil {
		return res, err
	}
	s.logger.Info("batch finished",
		logging.String("run_id", res.RunID.String()),
		logging.Int("rows", len(rows)),
		logging.Int("mapped", res.Summary.Mapped),
		logging.Bool("cancelled", res.Cancelled))
	return res, runErr
}

// Publish hands the envelopes of res to every sink. Every sink is tried; the
// failures are joined.
func (s *Service) Publish(ctx context.Context, res *BatchResult) error {
	if len(s.sinks) == 0 || len(res.Records) == 0 {
		return nil
	}
	envs := make([]domain.MappingEnvelope, len(res.Records))
	for i, r := range res.Records {
		envs[i] = domain.NewEnvelope(res.RunID, res.IndexVersion, r.Row.Key, r.Record)
	}

	var errs []error
	for _, sink := range s.sinks {
		if err := sink.WriteRecords(ctx, envs); err != nil {
			s.logger.Error("record sink failed",
				logging.String("sink", sink.Name()),
				logging.Int("records", len(envs)),
				logging.Err(err))
			errs = append(errs, errors.Wrapf(err, errors.CodeUnknown, "sink %s", sink.Name()))
		}
	}
	return stderrors.Join(errs...)
}

// Stats returns the statistics of the current index.
func (s *Service) Stats() (reference.Stats, error) {
	eng, err := s.Engine()
	if err != nil {
		return reference.Stats{}, err
	}
	return eng.Index().Stats(), nil
}

// Entity looks up a vocabulary entity by ID.
func (s *Service) Entity(id string) (reference.Entity, error) {
	eng, err := s.Engine()
	if err != nil {
		return reference.Entity{}, err
	}
	e, ok := eng.Index().Entity(id)
	if !ok {
		return reference.Entity{}, errors.New(errors.ErrCodeEntityNotFound, "reference entity not found").
			WithDetailf("id=%s", id)
	}
	return e, nil
}
