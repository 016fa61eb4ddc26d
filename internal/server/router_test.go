package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	blobmem "github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob/memory"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/config"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/infra"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/metrics"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/security"
)

const testSecret = "router-test-secret"

func testConfig() config.Config {
	cfg := config.Config{AppEnv: "test"}
	cfg.Security.JWTSecret = testSecret
	cfg.Security.JWTAccessTTL = time.Hour
	cfg.Security.JWTRefreshTTL = 24 * time.Hour
	cfg.Security.OTPTTL = 10 * time.Minute
	cfg.Security.OTPLength = 6
	cfg.Security.OTPMaxAttempts = 5
	cfg.Security.CORSOrigins = []string{"http://localhost:3000"}
	cfg.Storage.MaxUploadSize = 1 << 20
	return cfg
}

// newTestRouter wires handlers without databases; tests only reach
// middleware and routing, never a store.
func newTestRouter(t *testing.T, service string) http.Handler {
	t.Helper()
	h, err := NewRouter(testConfig(), service, &infra.Infra{Blob: blobmem.New()}, metrics.New(service), zap.NewNop())
	require.NoError(t, err)
	return h
}

func bearer(t *testing.T, rights string) string {
	t.Helper()
	jwtm := security.NewJWTManager(testSecret, time.Hour, 24*time.Hour)
	tokens, _, err := jwtm.Issue(security.Principal{UserID: 3, Username: "ops", UserRights: rights})
	require.NoError(t, err)
	return "Bearer " + tokens.AccessToken
}

func serve(h http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewRouterRejectsUnknownService(t *testing.T) {
	_, err := NewRouter(testConfig(), "excel", &infra.Infra{Blob: blobmem.New()}, metrics.New("excel"), zap.NewNop())
	assert.ErrorContains(t, err, `unknown service "excel"`)
}

func TestMountPrefix(t *testing.T) {
	assert.Equal(t, "/", mountPrefix("ships", false))
	assert.Equal(t, "/api/team", mountPrefix("team", false))
	assert.Equal(t, "/api/ships", mountPrefix("ships", true))
}

func TestRouterSystemRoutes(t *testing.T) {
	h := newTestRouter(t, "ports")

	w := serve(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service":"ports"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(h, http.MethodGet, "/definitely/not/here", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Route not found")
}

func TestRouterRequiresToken(t *testing.T) {
	single := newTestRouter(t, "ports")
	assert.Equal(t, http.StatusUnauthorized, serve(single, http.MethodGet, "/names-only", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(single, http.MethodGet, "/names-only", "Bearer garbage").Code)

	team := newTestRouter(t, "team")
	assert.Equal(t, http.StatusUnauthorized, serve(team, http.MethodGet, "/api/team/5", "").Code)

	all := newTestRouter(t, ServiceAll)
	for _, p := range []string{"/api/ships/active", "/api/bunkering/lookup/fuel-types", "/api/reporting/dashboard/fleets", "/api/tanks/details/1"} {
		assert.Equal(t, http.StatusUnauthorized, serve(all, http.MethodGet, p, "").Code, p)
	}
}

func TestRouterUserAdminOnly(t *testing.T) {
	h := newTestRouter(t, "auth")

	w := serve(h, http.MethodGet, "/users", bearer(t, security.RightsVesselUser))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(h, http.MethodGet, "/users", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterPublicAuthRoutes(t *testing.T) {
	h := newTestRouter(t, ServiceAll)

	// reaches the handler: the empty body fails validation instead of auth
	w := serve(h, http.MethodPost, "/api/auth/login", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouterServesDocs(t *testing.T) {
	h := newTestRouter(t, "tanks")
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/docs", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/openapi.yaml", "").Code)
}
