package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemMap/internal/application/mapping"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ChemMap/internal/interfaces/http/handlers"
	"github.com/turtacn/ChemMap/internal/interfaces/http/middleware"
	"github.com/turtacn/ChemMap/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type httpObservation struct {
	path   string
	status int
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []httpObservation
}

func (r *recordingObserver) ObserveHTTP(_ string, path string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, httpObservation{path, status})
}

func newTestRouter(t *testing.T, mutate func(*RouterConfig)) (*gin.Engine, *mapping.Service) {
	t.Helper()
	svc := mapping.NewService(mapping.DefaultServiceConfig(), logging.NewNopLogger())
	require.NoError(t, svc.Install(testutil.MustIndex()))

	cfg := RouterConfig{
		MappingHandler:    handlers.NewMappingHandler(svc, 100),
		VocabularyHandler: handlers.NewVocabularyHandler(svc, nil),
		HealthHandler:     handlers.NewHealthHandler("test", handlers.IndexChecker{Ready: svc.Ready}),
		Logger:            logging.NewNopLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRouter(cfg), svc
}

func send(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Routes(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodPost, "/api/v1/mappings/match", `{"name":"NaCl"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/mappings/batch", `{"rows":[{"name":"NaCl"}]}`, http.StatusOK},
		{http.MethodGet, "/api/v1/vocabulary/stats", "", http.StatusOK},
		{http.MethodGet, "/api/v1/vocabulary/entities/CHEBI:26710", "", http.StatusOK},
		{http.MethodGet, "/api/v1/vocabulary/entities/nope", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := send(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
		})
	}
}

func TestRouter_NotReadyUntilInstalled(t *testing.T) {
	svc := mapping.NewService(mapping.DefaultServiceConfig(), logging.NewNopLogger())
	r := NewRouter(RouterConfig{
		MappingHandler: handlers.NewMappingHandler(svc, 0),
		HealthHandler:  handlers.NewHealthHandler("test", handlers.IndexChecker{Ready: svc.Ready}),
	})

	assert.Equal(t, http.StatusServiceUnavailable, send(r, http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, send(r, http.MethodPost, "/api/v1/mappings/match", `{"name":"NaCl"}`).Code)

	require.NoError(t, svc.Install(testutil.MustIndex()))
	assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusOK, send(r, http.MethodPost, "/api/v1/mappings/match", `{"name":"NaCl"}`).Code)
}

func TestRouter_Metrics(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: prometheus.Namespace}, logging.NewNopLogger())
	require.NoError(t, err)
	m := prometheus.NewMappingMetrics(collector)

	r, _ := newTestRouter(t, func(cfg *RouterConfig) {
		cfg.HTTPMetrics = m
		cfg.MetricsHandler = collector.Handler()
	})

	send(r, http.MethodGet, "/api/v1/vocabulary/entities/CHEBI:26710", "")
	w := send(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `chemmap_http_requests_total{method="GET",path="/api/v1/vocabulary/entities/:id",status="200"} 1`)
}

func TestRouter_MetricsObserverSeesTemplates(t *testing.T) {
	o := &recordingObserver{}
	r, _ := newTestRouter(t, func(cfg *RouterConfig) { cfg.HTTPMetrics = o })

	send(r, http.MethodPost, "/api/v1/mappings/match", `{"name":"NaCl"}`)
	require.Len(t, o.obs, 1)
	assert.Equal(t, httpObservation{"/api/v1/mappings/match", http.StatusOK}, o.obs[0])
}

func TestRouter_RateLimitOnlyOnMappings(t *testing.T) {
	limiter := middleware.NewTokenBucketLimiter(0.001, 1, 0)
	defer limiter.Stop()
	r, _ := newTestRouter(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = limiter
		cfg.RateLimit = middleware.DefaultRateLimitConfig()
	})

	assert.Equal(t, http.StatusOK, send(r, http.MethodPost, "/api/v1/mappings/match", `{"name":"NaCl"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(r, http.MethodPost, "/api/v1/mappings/match", `{"name":"NaCl"}`).Code)
	assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "/api/v1/vocabulary/stats", "").Code)
}

func TestRouter_BodyLimit(t *testing.T) {
	r, _ := newTestRouter(t, func(cfg *RouterConfig) { cfg.MaxBodySize = 64 })

	var rows []mapping.Row
	for i := 0; i < 20; i++ {
		rows = append(rows, mapping.Row{Name: "sodium chloride"})
	}
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]interface{}{"rows": rows}))

	w := send(r, http.MethodPost, "/api/v1/mappings/batch", buf.String())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_CORS(t *testing.T) {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = []string{"https://lab.example.com"}
	r, _ := newTestRouter(t, func(cfg *RouterConfig) { cfg.CORS = &cors })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/mappings/match", nil)
	req.Header.Set("Origin", "https://lab.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://lab.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
