package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRoute(t *testing.T) {
	router := gin.New()
	router.Use(Metrics())
	router.GET("/api/documents/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/documents/:id", "200"))
	for _, path := range []string{"/api/documents/1", "/api/documents/2"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		router.ServeHTTP(w, req)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/nowhere", nil)
	router.ServeHTTP(w, req)

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/documents/:id", "200")) - before; got != 2 {
		t.Errorf("expected 2 requests on the route pattern, got %v", got)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")); got < 1 {
		t.Errorf("expected unmatched request counted, got %v", got)
	}
	if got := testutil.ToFloat64(httpRequestsInFlight); got != 0 {
		t.Errorf("expected nothing in flight, got %v", got)
	}
}
