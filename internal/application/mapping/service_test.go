package mapping

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domain "github.com/turtacn/ChemMap/internal/domain/mapping"
	"github.com/turtacn/ChemMap/internal/domain/reference"
	"github.com/turtacn/ChemMap/internal/testutil"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// MockRecordCache is a mock implementation of RecordCache
type MockRecordCache struct {
	mock.Mock
}

func (m *MockRecordCache) Get(ctx context.Context, fingerprint, original string) (*domain.MappingRecord, error) {
	args := m.Called(ctx, fingerprint, original)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MappingRecord), args.Error(1)
}

func (m *MockRecordCache) Set(ctx context.Context, fingerprint string, rec domain.MappingRecord) error {
	args := m.Called(ctx, fingerprint, rec)
	return args.Error(0)
}

// MockRecordSink is a mock implementation of RecordSink
type MockRecordSink struct {
	mock.Mock
	name string
}

func (m *MockRecordSink) Name() string { return m.name }

func (m *MockRecordSink) WriteRecords(ctx context.Context, envs []domain.MappingEnvelope) error {
	args := m.Called(ctx, envs)
	return args.Error(0)
}

type recordingMetrics struct {
	mu      sync.Mutex
	matches map[domain.Method]int
	rows    map[string]int
	cache   map[string]int
	stats   reference.Stats
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		matches: map[domain.Method]int{},
		rows:    map[string]int{},
		cache:   map[string]int{},
	}
}

func (r *recordingMetrics) ObserveMatch(method domain.Method, _ domain.Tier, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[method]++
}

func (r *recordingMetrics) ObserveBatchRows(status string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[status] += n
}

func (r *recordingMetrics) ObserveCache(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[result]++
}

func (r *recordingMetrics) SetIndexStats(st reference.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = st
}

func newLoadedService(t *testing.T, opts ...Option) (*Service, *testutil.MockLogger) {
	t.Helper()
	logger := testutil.NewMockLogger()
	src := testutil.NewStaticSource()
	opts = append([]Option{WithEntitySource(src), WithOverrideSource(src)}, opts...)
	svc := NewService(DefaultServiceConfig(), logger, opts...)
	require.NoError(t, svc.Reload(context.Background()))
	return svc, logger
}

func TestService_NotLoaded(t *testing.T) {
	svc := NewService(DefaultServiceConfig(), nil)

	assert.False(t, svc.Ready())
	_, err := svc.Match(context.Background(), "NaCl")
	assert.True(t, errors.IsCode(err, errors.ErrCodeIndexNotLoaded))
	_, err = svc.MatchBatch(context.Background(), makeRows(1))
	assert.True(t, errors.IsCode(err, errors.ErrCodeIndexNotLoaded))
	_, err = svc.Stats()
	assert.True(t, errors.IsUnavailable(err))

	err = svc.Reload(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeVocabularyLoad))
}

func TestService_Reload(t *testing.T) {
	metrics := newRecordingMetrics()
	svc, logger := newLoadedService(t, WithMetrics(metrics))

	require.True(t, svc.Ready())
	assert.True(t, logger.HasMessage("info", "vocabulary reloaded"))

	st, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, len(testutil.Vocabulary()), st.Entities)
	assert.Equal(t, 2, st.Overrides)
	assert.Equal(t, 1, st.UnresolvedOverrides)
	assert.Equal(t, st, metrics.stats)

	rec, err := svc.Match(context.Background(), "NaCl")
	require.NoError(t, err)
	assert.Equal(t, domain.MethodExactFormula, rec.Method)
	assert.Equal(t, "CHEBI:26710", rec.MatchedID)
	assert.Equal(t, 1, metrics.matches[domain.MethodExactFormula])
}

func TestService_ReloadFailureKeepsCurrentIndex(t *testing.T) {
	logger := testutil.NewMockLogger()
	src := testutil.NewStaticSource()
	svc := NewService(DefaultServiceConfig(), logger, WithEntitySource(src), WithOverrideSource(src))
	require.NoError(t, svc.Reload(context.Background()))
	before, _ := svc.Stats()

	src.Err = fmt.Errorf("connection refused")
	err := svc.Reload(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeVocabularyLoad))

	src.Err = nil
	src.Entities = nil
	err = svc.Reload(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeVocabularyEmpty))

	after, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, 3, src.LoadCount)
}

func TestService_ReloadSwapsVersion(t *testing.T) {
	logger := testutil.NewMockLogger()
	src := testutil.NewStaticSource()
	svc := NewService(DefaultServiceConfig(), logger, WithEntitySource(src))
	require.NoError(t, svc.Reload(context.Background()))
	v1, _ := svc.Stats()

	rec, err := svc.Match(context.Background(), "trehalose")
	require.NoError(t, err)
	assert.Equal(t, domain.MethodUnmapped, rec.Method)

	src.Entities = append(src.Entities, reference.Entity{ID: "CHEBI:27082", Label: "trehalose"})
	require.NoError(t, svc.Reload(context.Background()))
	v2, _ := svc.Stats()

	assert.NotEqual(t, v1.Version, v2.Version)
	from, ok := logger.Field("index version changed", "from")
	require.True(t, ok)
	assert.Equal(t, v1.Version, from)

	rec, err = svc.Match(context.Background(), "trehalose")
	require.NoError(t, err)
	assert.Equal(t, "CHEBI:27082", rec.MatchedID)
}

func TestService_MatchUsesCache(t *testing.T) {
	cache := new(MockRecordCache)
	metrics := newRecordingMetrics()
	svc, _ := newLoadedService(t, WithRecordCache(cache), WithMetrics(metrics))
	eng, err := svc.Engine()
	require.NoError(t, err)
	fp := eng.Fingerprint()

	cache.On("Get", mock.Anything, fp, "NaCl").Return(nil, nil).Once()
	cache.On("Set", mock.Anything, fp, mock.MatchedBy(func(r domain.MappingRecord) bool {
		return r.Original == "NaCl" && r.MatchedID == "CHEBI:26710"
	})).Return(nil).Once()

	first, err := svc.Match(context.Background(), "NaCl")
	require.NoError(t, err)

	cached := first
	cache.On("Get", mock.Anything, fp, "NaCl").Return(&cached, nil).Once()

	second, err := svc.Match(context.Background(), "NaCl")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	cache.AssertExpectations(t)
	assert.Equal(t, 1, metrics.cache["miss"])
	assert.Equal(t, 1, metrics.cache["hit"])
	assert.Equal(t, 1, metrics.matches[domain.MethodExactFormula])
}

// memRecordCache is a map-backed RecordCache shared between services.
type memRecordCache struct {
	mu      sync.Mutex
	records map[string]domain.MappingRecord
}

func newMemRecordCache() *memRecordCache {
	return &memRecordCache{records: map[string]domain.MappingRecord{}}
}

func (c *memRecordCache) Get(_ context.Context, fingerprint, original string) (*domain.MappingRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[fingerprint+"\x00"+original]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (c *memRecordCache) Set(_ context.Context, fingerprint string, rec domain.MappingRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[fingerprint+"\x00"+rec.Original] = rec
	return nil
}

func TestService_SharedCacheRespectsMinScore(t *testing.T) {
	idx, err := reference.NewIndex([]reference.Entity{{ID: "C:1", Label: "abcdefghij"}}, nil)
	require.NoError(t, err)
	cache := newMemRecordCache()
	ctx := context.Background()

	lenient := NewService(ServiceConfig{MinScore: 70, SkipSolvents: true}, nil, WithRecordCache(cache))
	require.NoError(t, lenient.Install(idx))
	loose, err := lenient.Match(ctx, "abcdefgxyz")
	require.NoError(t, err)
	require.Equal(t, "C:1", loose.MatchedID)
	require.Equal(t, domain.MethodFuzzyRaw, loose.Method)
	require.Equal(t, 70, loose.Score)

	strict := NewService(ServiceConfig{MinScore: 90, SkipSolvents: true}, nil, WithRecordCache(cache))
	require.NoError(t, strict.Install(idx))
	rec, err := strict.Match(ctx, "abcdefgxyz")
	require.NoError(t, err)
	assert.Equal(t, domain.MethodUnmapped, rec.Method)
	assert.Empty(t, rec.MatchedID)

	again, err := lenient.Match(ctx, "abcdefgxyz")
	require.NoError(t, err)
	assert.Equal(t, loose, again)
	assert.Len(t, cache.records, 2)
}

func TestService_SharedCacheRespectsSolventSkip(t *testing.T) {
	idx, err := reference.NewIndex([]reference.Entity{{ID: "CHEBI:15377", Label: "water"}}, nil)
	require.NoError(t, err)
	cache := newMemRecordCache()
	ctx := context.Background()

	skipping := NewService(ServiceConfig{MinScore: 70, SkipSolvents: true}, nil, WithRecordCache(cache))
	require.NoError(t, skipping.Install(idx))
	skipped, err := skipping.Match(ctx, "water")
	require.NoError(t, err)
	require.Equal(t, domain.MethodUnmapped, skipped.Method)

	mapping := NewService(ServiceConfig{MinScore: 70}, nil, WithRecordCache(cache))
	require.NoError(t, mapping.Install(idx))
	rec, err := mapping.Match(ctx, "water")
	require.NoError(t, err)
	assert.Equal(t, "CHEBI:15377", rec.MatchedID)
}

func TestService_CacheErrorsDoNotFailMatch(t *testing.T) {
	cache := new(MockRecordCache)
	metrics := newRecordingMetrics()
	svc, logger := newLoadedService(t, WithRecordCache(cache), WithMetrics(metrics))

	cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, fmt.Errorf("redis down"))
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("redis down"))

	rec, err := svc.Match(context.Background(), "KH2PO4")
	require.NoError(t, err)
	assert.Equal(t, "CHEBI:63036", rec.MatchedID)
	assert.Equal(t, 1, metrics.cache["error"])
	assert.True(t, logger.HasMessage("warn", "record cache read failed"))
	assert.True(t, logger.HasMessage("warn", "record cache write failed"))
}

func TestService_MatchBatch(t *testing.T) {
	sink := &MockRecordSink{name: "memory"}
	metrics := newRecordingMetrics()
	svc, _ := newLoadedService(t, WithSinks(sink), WithMetrics(metrics))

	rows := []Row{
		{Key: "1", Name: "NaCl"},
		{Key: "2", Name: "MgCl2·6H2O"},
		{Key: "3", Name: "unobtainium"},
		{Key: "4", Name: "dH2O"},
		{Key: "5", Name: "unobtainium"},
	}

	var published []domain.MappingEnvelope
	sink.On("WriteRecords", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(1).([]domain.MappingEnvelope) }).
		Return(nil).Once()

	res, err := svc.MatchBatch(context.Background(), rows)
	require.NoError(t, err)
	sink.AssertExpectations(t)

	require.Len(t, res.Records, len(rows))
	assert.False(t, res.Cancelled)
	assert.Equal(t, "CHEBI:26710", res.Records[0].Record.MatchedID)
	assert.Equal(t, "CHEBI:86345", res.Records[1].Record.MatchedID)
	assert.Equal(t, domain.MethodUnmapped, res.Records[2].Record.Method)
	assert.Equal(t, []string{domain.NoteSolvent}, res.Records[3].Record.Notes)

	assert.Equal(t, 5, res.Summary.Total)
	assert.Equal(t, 2, res.Summary.Mapped)
	require.Len(t, res.Unmapped, 1)
	assert.Equal(t, "unobtainium", res.Unmapped[0].Name)
	assert.Equal(t, 2, res.Unmapped[0].Count)

	require.Len(t, published, len(rows))
	for i, env := range published {
		assert.Equal(t, res.RunID, env.RunID)
		assert.Equal(t, res.IndexVersion, env.IndexVersion)
		assert.Equal(t, rows[i].Key, env.RowKey)
	}
	assert.Equal(t, 5, metrics.rows["matched"])
}

func TestService_MatchBatchJoinsSinkErrors(t *testing.T) {
	ok := &MockRecordSink{name: "postgres"}
	bad := &MockRecordSink{name: "kafka"}
	worse := &MockRecordSink{name: "neo4j"}
	svc, logger := newLoadedService(t, WithSinks(bad, ok, worse))

	bad.On("WriteRecords", mock.Anything, mock.Anything).Return(fmt.Errorf("broker unavailable"))
	ok.On("WriteRecords", mock.Anything, mock.Anything).Return(nil)
	worse.On("WriteRecords", mock.Anything, mock.Anything).
		Return(errors.New(errors.ErrCodeGraph, "session expired"))

	res, err := svc.MatchBatch(context.Background(), []Row{{Key: "1", Name: "NaCl"}})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Len(t, res.Records, 1)

	assert.Contains(t, err.Error(), "sink kafka")
	assert.Contains(t, err.Error(), "sink neo4j")
	assert.True(t, errors.IsCode(err, errors.ErrCodeGraph))
	ok.AssertExpectations(t)

	var failures int
	for _, m := range logger.GetMessages() {
		if m.Message == "record sink failed" {
			failures++
		}
	}
	assert.Equal(t, 2, failures)
}

func TestService_MatchBatchCancelledStillPublishes(t *testing.T) {
	sink := &MockRecordSink{name: "memory"}
	svc, _ := newLoadedService(t, WithSinks(sink))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink.On("WriteRecords", mock.Anything, mock.Anything).Return(nil).Maybe()

	res, err := svc.MatchBatch(ctx, makeRows(10))
	assert.True(t, errors.IsCode(err, errors.ErrCodeBatchCancelled))
	require.NotNil(t, res)
	assert.True(t, res.Cancelled)
	assert.Empty(t, res.Records)
	sink.AssertNotCalled(t, "WriteRecords", mock.Anything, mock.Anything)
}

func TestService_Entity(t *testing.T) {
	svc, _ := newLoadedService(t)

	e, err := svc.Entity("CHEBI:17234")
	require.NoError(t, err)
	assert.Equal(t, "glucose", e.Label)

	_, err = svc.Entity("CHEBI:0")
	assert.True(t, errors.IsNotFound(err))
}
