package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New("ports")
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ports/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, p := range []string{"/ports/1", "/ports/2", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/ports/:id", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("unmatched", "GET", "404")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `memp_http_requests_total{method="GET",route="/ports/:id",service="ports",status="200"} 2`))
}

func TestProxyAndLedgerCounters(t *testing.T) {
	m := New("gateway")
	m.ObserveProxy("/api/ships", 502, 20*time.Millisecond)
	m.IncRetry("/api/ships")
	m.IncRetry("/api/ships")
	m.AddROBEntries("vessel", "BUNKER", 1)
	m.AddROBEntries("vessel", "BUNKER", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.proxyRequests.WithLabelValues("/api/ships", "502")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.proxyRetries.WithLabelValues("/api/ships")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.robEntries.WithLabelValues("vessel", "BUNKER")))

	var nilReg *Registry
	nilReg.AddROBEntries("vessel", "BUNKER", 3)
}
