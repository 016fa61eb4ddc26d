package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/attachments"
	blobmem "github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob/memory"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/lookups"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/security"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/mw"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
)

func init() { gin.SetMode(gin.TestMode) }

var (
	vesselUser = &security.Principal{UserID: 7, Username: "chief", UserRights: security.RightsVesselUser}
	adminUser  = &security.Principal{UserID: 1, Username: "admin", UserRights: security.RightsAdmin}
)

// newEngine mounts routes behind a fake auth step that sets p (nil: anonymous).
func newEngine(p *security.Principal, mount func(r gin.IRoutes)) *gin.Engine {
	r := gin.New()
	if p != nil {
		r.Use(func(c *gin.Context) {
			c.Set(mw.CtxPrincipal, *p)
			c.Next()
		})
	}
	mount(r)
	return r
}

func newUploads() (*attachments.Service, *blobmem.Store) {
	store := blobmem.New()
	return attachments.NewService(store, 1<<20, zap.NewNop()), store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type upload struct {
	field, name, content string
}

// doMultipart sends data as the "data" JSON field plus the given files.
func doMultipart(t *testing.T, h http.Handler, method, path string, data any, files ...upload) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mpw := multipart.NewWriter(&buf)
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		require.NoError(t, mpw.WriteField("data", string(raw)))
	}
	for _, f := range files {
		fw, err := mpw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, mpw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mpw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) resp.ErrorBody {
	t.Helper()
	var b resp.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	return b
}

// lookupsFunc serves every category from an in-memory list of codes.
type lookupsFunc func(category string) []string

func (f lookupsFunc) List(_ context.Context, category string) ([]lookups.Item, error) {
	var out []lookups.Item
	for _, code := range f(category) {
		out = append(out, lookups.Item{Code: code, Name: code})
	}
	return out, nil
}
