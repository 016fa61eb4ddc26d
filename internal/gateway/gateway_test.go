package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/config"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/metrics"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
)

func testGatewayConfig(upstreams map[string]string) config.Gateway {
	return config.Gateway{
		Upstreams:      upstreams,
		DefaultTimeout: 2 * time.Second,
		ExcelTimeout:   5 * time.Second,
		RetryMax:       2,
		RetryBase:      time.Millisecond,
	}
}

func TestRouteTableMatch(t *testing.T) {
	table, err := NewRouteTable(testGatewayConfig(map[string]string{
		"ships":     "http://ships:7003",
		"team":      "http://team:7001",
		"excel":     "http://excel:7011",
		"bunkering": "http://bunker:7008",
	}), zap.NewNop())
	require.NoError(t, err)

	cases := []struct {
		path     string
		ok       bool
		prefix   string
		upstream string
	}{
		{"/api/ships", true, "/api/ships", "/"},
		{"/api/ships/12", true, "/api/ships", "/12"},
		{"/api/shipsX", false, "", ""},
		{"/api/team/members", true, "/api/team", "/api/team/members"},
		{"/api/team/uploads/member_images/a.png", true, "/api/team", "/uploads/member_images/a.png"},
		{"/api/bunkering/uploads/bunker_attachments/x.pdf", true, "/api/bunkering", "/uploads/bunker_attachments/x.pdf"},
		{"/office-addin/taskpane.html", true, "/office-addin", "/office-addin/taskpane.html"},
		{"/api/ports", false, "", ""},
		{"/health", false, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			r, ok := table.Match(tc.path)
			require.Equal(t, tc.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tc.prefix, r.Prefix)
			assert.Equal(t, tc.upstream, r.UpstreamPath(tc.path))
		})
	}
}

func TestRouteTableTimeouts(t *testing.T) {
	table, err := NewRouteTable(testGatewayConfig(map[string]string{"excel": "http://excel:7011", "ports": "http://ports:7005"}), zap.NewNop())
	require.NoError(t, err)

	r, _ := table.Match("/api/excel/report")
	assert.Equal(t, 5*time.Second, r.Timeout)
	r, _ = table.Match("/api/ports/1")
	assert.Equal(t, 2*time.Second, r.Timeout)
	r, _ = table.Match("/office-addin/x")
	assert.Equal(t, 30*time.Second, r.Timeout)
}

func TestRouteTableRejectsBadURL(t *testing.T) {
	_, err := NewRouteTable(testGatewayConfig(map[string]string{"ports": "ports:7005"}), zap.NewNop())
	assert.Error(t, err)
}

func newTestGateway(t *testing.T, upstreams map[string]string, mutate func(*config.Gateway)) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gcfg := testGatewayConfig(upstreams)
	if mutate != nil {
		mutate(&gcfg)
	}
	table, err := NewRouteTable(gcfg, zap.NewNop())
	require.NoError(t, err)
	m := metrics.New("gateway")
	proxy := NewProxy(table, gcfg, nil, m, zap.NewNop())
	cfg := config.Config{AppEnv: "test", Gateway: gcfg}
	cfg.Security.CORSOrigins = []string{"http://localhost:5173"}
	return NewRouter(cfg, proxy, m, zap.NewNop())
}

func TestProxyForwardsPathQueryAndBody(t *testing.T) {
	var got struct {
		path, query, body, ctype, fwdHost string
	}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got.path, got.query, got.body = r.URL.Path, r.URL.RawQuery, string(b)
		got.ctype, got.fwdHost = r.Header.Get("Content-Type"), r.Header.Get("X-Forwarded-Host")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer upstream.Close()

	h := newTestGateway(t, map[string]string{"voyages": upstream.URL}, nil)
	body := "--b\r\nContent-Disposition: form-data; name=\"data\"\r\n\r\n{}\r\n--b--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/api/voyages/create?ship=3", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	req.Header.Set("Origin", "http://localhost:5173")
	req.Host = "gw.example"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/create", got.path)
	assert.Equal(t, "ship=3", got.query)
	assert.Equal(t, body, got.body)
	assert.Equal(t, "multipart/form-data; boundary=b", got.ctype)
	assert.Equal(t, "gw.example", got.fwdHost)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Len(t, w.Header().Values("Access-Control-Allow-Origin"), 1)
}

func TestProxyNotFound(t *testing.T) {
	h := newTestGateway(t, map[string]string{}, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/unknown/x", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body resp.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Route not found", body.Message)
}

func TestProxyRetriesIdempotentRequests(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer upstream.Close()

	h := newTestGateway(t, map[string]string{"ports": upstream.URL}, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ports", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, calls.Load())
}

func TestProxyRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	h := newTestGateway(t, map[string]string{"ports": upstream.URL}, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ports", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.EqualValues(t, 3, calls.Load(), "one attempt plus two retries")
}

func TestProxyDoesNotRetryWrites(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	h := newTestGateway(t, map[string]string{"bunkering": upstream.URL}, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/bunkering", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.EqualValues(t, 1, calls.Load())
}

func TestProxyTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer upstream.Close()

	h := newTestGateway(t, map[string]string{"tanks": upstream.URL}, func(g *config.Gateway) {
		g.DefaultTimeout = 50 * time.Millisecond
		g.RetryMax = 0
	})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tanks", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestProxyUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	h := newTestGateway(t, map[string]string{"tanks": url}, func(g *config.Gateway) { g.RetryMax = 0 })
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tanks", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGatewayHealthAndPreflight(t *testing.T) {
	h := newTestGateway(t, map[string]string{}, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodOptions, "/api/ships", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
