package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func corsEngine(cfg CORSConfig) *gin.Engine {
	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/api/v1/vocabulary/stats", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.OPTIONS("/api/v1/vocabulary/stats", func(c *gin.Context) { c.Status(http.StatusMethodNotAllowed) })
	return r
}

func corsRequest(r *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1/vocabulary/stats", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORS_NoOriginPassesThrough(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	w := corsRequest(corsEngine(cfg), http.MethodGet, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_AllowedOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	w := corsRequest(corsEngine(cfg), http.MethodGet, "https://app.example.com")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), HeaderRequestID)
	assert.Contains(t, w.Header().Values("Vary"), "Origin")
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	w := corsRequest(corsEngine(cfg), http.MethodGet, "https://evil.example.org")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_OriginMatchIsCaseInsensitive(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://App.Example.com"}
	w := corsRequest(corsEngine(cfg), http.MethodGet, "https://app.example.COM")

	assert.Equal(t, "https://app.example.COM", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_WildcardAll(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"*"}
	w := corsRequest(corsEngine(cfg), http.MethodGet, "https://anything.test")

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_WildcardWithCredentialsEchoesOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"*"}
	cfg.AllowCredentials = true
	w := corsRequest(corsEngine(cfg), http.MethodGet, "https://anything.test")

	assert.Equal(t, "https://anything.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_SubdomainWildcard(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"*.example.com"}
	cfg.AllowWildcard = true
	r := corsEngine(cfg)

	assert.Equal(t, "https://lab.example.com",
		corsRequest(r, http.MethodGet, "https://lab.example.com").Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t,
		corsRequest(r, http.MethodGet, "https://example.org").Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_SubdomainPatternIgnoredWithoutWildcard(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"*.example.com"}
	w := corsRequest(corsEngine(cfg), http.MethodGet, "https://lab.example.com")

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	w := corsRequest(corsEngine(cfg), http.MethodOptions, "https://app.example.com")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_PreflightWithoutMaxAge(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	cfg.MaxAge = 0
	w := corsRequest(corsEngine(cfg), http.MethodOptions, "https://app.example.com")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_PreflightFromDisallowedOriginReachesRoute(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	w := corsRequest(corsEngine(cfg), http.MethodOptions, "https://evil.example.org")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()
	assert.Empty(t, cfg.AllowedOrigins)
	assert.False(t, cfg.AllowCredentials)
	assert.Contains(t, cfg.AllowedMethods, http.MethodPost)
	assert.Contains(t, cfg.ExposedHeaders, "X-RateLimit-Remaining")
}
