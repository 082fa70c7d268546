package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmapping "github.com/turtacn/ChemMap/internal/application/mapping"
	"github.com/turtacn/ChemMap/internal/domain/mapping"
	"github.com/turtacn/ChemMap/internal/testutil"
)

func newTestMappingMetrics(t *testing.T) (*MappingMetrics, MetricsCollector) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: Namespace}, nil)
	require.NoError(t, err)
	return NewMappingMetrics(c), c
}

func TestMappingMetrics_ObserveMatch(t *testing.T) {
	m, c := newTestMappingMetrics(t)
	m.ObserveMatch(mapping.MethodExactFormula, mapping.TierVeryHigh, 200*time.Microsecond)
	m.ObserveMatch(mapping.MethodExactFormula, mapping.TierVeryHigh, 100*time.Microsecond)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `chemmap_matches_total{method="exact_formula",tier="very_high"} 2`)
	assert.Contains(t, out, `chemmap_match_duration_seconds_count{method="exact_formula"} 2`)
}

func TestMappingMetrics_BatchRows(t *testing.T) {
	m, c := newTestMappingMetrics(t)
	m.ObserveBatchRows("matched", 7)
	m.ObserveBatchRows("cancelled", 0)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `chemmap_batch_rows_total{status="matched"} 7`)
	assert.NotContains(t, out, `status="cancelled"`)
}

func TestMappingMetrics_IndexAndCache(t *testing.T) {
	m, c := newTestMappingMetrics(t)
	st := testutil.MustIndex().Stats()
	m.SetIndexStats(st)
	m.ObserveCache("hit")

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, "chemmap_index_entities 6")
	assert.Contains(t, out, "chemmap_index_terms ")
	assert.Contains(t, out, `chemmap_cache_requests_total{result="hit"} 1`)
}

func TestMappingMetrics_HTTPAndWorker(t *testing.T) {
	m, c := newTestMappingMetrics(t)
	m.ObserveHTTP("POST", "/api/v1/mappings/match", 200, 3*time.Millisecond)
	m.ObserveWorkerMessage("ok")

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `chemmap_http_requests_total{method="POST",path="/api/v1/mappings/match",status="200"} 1`)
	assert.Contains(t, out, `chemmap_http_request_duration_seconds_count{method="POST",path="/api/v1/mappings/match"} 1`)
	assert.Contains(t, out, `chemmap_worker_messages_total{result="ok"} 1`)
}

func TestMappingMetrics_DrivenByService(t *testing.T) {
	m, c := newTestMappingMetrics(t)
	svc := appmapping.NewService(appmapping.DefaultServiceConfig(), nil,
		appmapping.WithEntitySource(testutil.NewStaticSource()),
		appmapping.WithOverrideSource(testutil.NewStaticSource()),
		appmapping.WithMetrics(m))
	require.NoError(t, svc.Reload(context.Background()))

	_, err := svc.Match(context.Background(), "NaCl")
	require.NoError(t, err)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, "chemmap_index_entities 6")
	assert.Contains(t, out, `chemmap_matches_total{method="exact_formula",tier="very_high"} 1`)
}
