package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/api/v1/solve", "/api/v1/solve"},
		{"/api/v1/site", "/api/v1/site"},
		{"/api/v1/targets", "/api/v1/targets"},
		{"/api/v1/stream/pointing", "/api/v1/stream/pointing"},

		// Parameterized target routes collapse to one label.
		{"/api/v1/targets/cn-tower", "/api/v1/targets/{name}"},
		{"/api/v1/targets/rocket.1", "/api/v1/targets/{name}"},
		{"/api/v1/targets/cn-tower/pointing", "/api/v1/targets/{name}/pointing"},

		// Unknown/bot paths collapse to "other".
		{"/", "other"},
		{"/api/v1/targets/", "other"},
		{"/api/v1/targets/x/y", "other"},
		{"/wp-admin", "other"},
		{"/.env", "other"},
		{"/api/v2/solve", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeRoute(tt.path))
		})
	}
}

// TestMetricsCardinality verifies that 100 distinct target names produce
// exactly one path label.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[normalizeRoute(fmt.Sprintf("/api/v1/targets/t%d/pointing", i))] = true
	}
	assert.Len(t, seen, 1)
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/v1/solve", "GET", "418"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/solve", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusTeapot, w.Code)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/v1/solve", "GET", "418"))
	assert.Equal(t, before+1, after)
}

func TestMiddlewarePreservesFlusher(t *testing.T) {
	var flushed bool
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		require.True(t, ok)
		f.Flush()
		flushed = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/stream/pointing", nil))
	assert.True(t, flushed)
}

func TestSolveCounters(t *testing.T) {
	before := testutil.ToFloat64(solvesTotal.WithLabelValues("ok"))
	IncSolves("ok")
	assert.Equal(t, before+1, testutil.ToFloat64(solvesTotal.WithLabelValues("ok")))

	SetTargets(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(targets))

	SetSiteConfigured(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(siteConfigured))
	SetSiteConfigured(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(siteConfigured))
}
