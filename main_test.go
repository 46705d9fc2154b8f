package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seo-audit/backend/auditor"
	"github.com/seo-audit/backend/stats"
)

func newAuditRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	storage, err := stats.NewStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { storage.Shutdown() })

	statistics, err := stats.NewStatistics(t.TempDir())
	require.NoError(t, err)

	a, err := auditor.New(auditor.Options{
		AuditCacheSize: 10,
		AuditCacheTTL:  time.Minute,
		LinkCacheSize:  10,
		LinkCacheTTL:   time.Minute,
		LinkProbeRPS:   100,
	}, storage, zap.NewNop())
	require.NoError(t, err)

	r := gin.New()
	registerRoutes(r, a, statistics, zap.NewNop())
	return r
}

func TestAuditHandlerRejectsBadBody(t *testing.T) {
	r := newAuditRouter(t)

	for _, body := range []string{"", "{}", `{"url":""}`, `{"url":"not a url"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/audit", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}
}

func TestAuditHandlerReturnsReport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>A page title of a reasonable size</title></head>
<body><h1>Heading</h1><p>some words</p></body></html>`)
	}))
	t.Cleanup(ts.Close)

	r := newAuditRouter(t)

	body := fmt.Sprintf(`{"url":%q}`, ts.URL)
	req := httptest.NewRequest(http.MethodPost, "/api/audit", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"scores"`)
	assert.Contains(t, w.Body.String(), `"recommendations"`)
}

func TestAuditHandlerUpstreamFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	r := newAuditRouter(t)

	body := fmt.Sprintf(`{"url":%q}`, url)
	req := httptest.NewRequest(http.MethodPost, "/api/audit", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	r := newAuditRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestStatisticsEndpoint(t *testing.T) {
	r := newAuditRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/statistics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Contains(t, snapshot, "uniqueVisitors24h")
	assert.Contains(t, snapshot, "totalRequests")
	assert.Contains(t, snapshot, "errorRate")
	assert.Contains(t, snapshot, "cache")
}
