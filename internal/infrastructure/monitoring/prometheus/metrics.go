package prometheus

import (
	"strconv"
	"time"

	"github.com/turtacn/ChemMap/internal/domain/mapping"
	"github.com/turtacn/ChemMap/internal/domain/reference"
)

// Namespace prefixes every ChemMap metric.
const Namespace = "chemmap"

// Bucket layouts. A single match is a map lookup or a bounded fuzzy scan,
// so its buckets start well below a millisecond.
var (
	DefaultMatchDurationBuckets = []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1}
	DefaultHTTPDurationBuckets  = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
)

// MappingMetrics holds the application metrics.
type MappingMetrics struct {
	MatchesTotal        CounterVec
	MatchDuration       HistogramVec
	BatchRowsTotal      CounterVec
	IndexEntities       GaugeVec
	IndexTerms          GaugeVec
	CacheRequestsTotal  CounterVec
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	WorkerMessagesTotal CounterVec
}

// NewMappingMetrics registers the metrics on collector.
func NewMappingMetrics(collector MetricsCollector) *MappingMetrics {
	return &MappingMetrics{
		MatchesTotal:        collector.RegisterCounter("matches_total", "Names matched, by method and confidence tier", "method", "tier"),
		MatchDuration:       collector.RegisterHistogram("match_duration_seconds", "Time to match one name", DefaultMatchDurationBuckets, "method"),
		BatchRowsTotal:      collector.RegisterCounter("batch_rows_total", "Batch rows by outcome", "status"),
		IndexEntities:       collector.RegisterGauge("index_entities", "Entities in the installed reference index"),
		IndexTerms:          collector.RegisterGauge("index_terms", "Searchable terms in the installed reference index"),
		CacheRequestsTotal:  collector.RegisterCounter("cache_requests_total", "Record cache lookups by result", "result"),
		HTTPRequestsTotal:   collector.RegisterCounter("http_requests_total", "HTTP requests", "method", "path", "status"),
		HTTPRequestDuration: collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path"),
		WorkerMessagesTotal: collector.RegisterCounter("worker_messages_total", "Match requests consumed by the worker", "result"),
	}
}

// ObserveMatch counts one engine match.
func (m *MappingMetrics) ObserveMatch(method mapping.Method, tier mapping.Tier, took time.Duration) {
	m.MatchesTotal.WithLabelValues(method.String(), tier.String()).Inc()
	m.MatchDuration.WithLabelValues(method.String()).Observe(took.Seconds())
}

// ObserveBatchRows adds n rows with status.
func (m *MappingMetrics) ObserveBatchRows(status string, n int) {
	if n <= 0 {
		return
	}
	m.BatchRowsTotal.WithLabelValues(status).Add(float64(n))
}

// ObserveCache counts a cache lookup: hit, miss or error.
func (m *MappingMetrics) ObserveCache(result string) {
	m.CacheRequestsTotal.WithLabelValues(result).Inc()
}

// SetIndexStats publishes the size of the installed index.
func (m *MappingMetrics) SetIndexStats(st reference.Stats) {
	m.IndexEntities.WithLabelValues().Set(float64(st.Entities))
	m.IndexTerms.WithLabelValues().Set(float64(st.Terms))
}

// ObserveHTTP records one served request. path is the route template.
func (m *MappingMetrics) ObserveHTTP(method, path string, status int, took time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(took.Seconds())
}

// ObserveWorkerMessage counts a consumed request: ok, cancelled or failed.
func (m *MappingMetrics) ObserveWorkerMessage(result string) {
	m.WorkerMessagesTotal.WithLabelValues(result).Inc()
}
