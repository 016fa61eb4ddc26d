package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/attachments"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob"
	blobmem "github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob/memory"
)

type fakeAttachments struct {
	AttachmentStore

	byKey map[string]attachments.Attachment
	byID  map[string]attachments.Attachment
}

func (f *fakeAttachments) GetByKey(_ context.Context, key string) (*attachments.Attachment, error) {
	a, ok := f.byKey[key]
	if !ok {
		return nil, attachments.ErrNotFound
	}
	return &a, nil
}

func (f *fakeAttachments) Get(_ context.Context, ownerType string, id int64) (*attachments.Attachment, error) {
	a, ok := f.byID[ownerType]
	if !ok || a.ID != id {
		return nil, attachments.ErrNotFound
	}
	return &a, nil
}

func putBlob(t *testing.T, store blob.Store, key, contentType, body string) {
	t.Helper()
	_, err := store.Put(context.Background(), key, strings.NewReader(body), blob.PutOptions{ContentType: contentType})
	require.NoError(t, err)
}

func TestFilesServe(t *testing.T) {
	store := blobmem.New()
	putBlob(t, store, "voyage_attachments/abc.pdf", "application/pdf", "%PDF-1.4")
	putBlob(t, store, "vessel_images/ship.png", "image/png", "png")
	meta := &fakeAttachments{byKey: map[string]attachments.Attachment{
		"voyage_attachments/abc.pdf": {OriginalName: "noon report.pdf"},
	}}
	files := NewFilesHandler(zap.NewNop(), store, meta, time.Minute)
	h := newEngine(nil, func(r gin.IRoutes) { r.GET("/uploads/*key", files.Serve) })

	w := doJSON(t, h, http.MethodGet, "/uploads/voyage_attachments/abc.pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4", w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="noon report.pdf"`, w.Header().Get("Content-Disposition"))

	w = doJSON(t, h, http.MethodGet, "/uploads/vessel_images/ship.png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "inline; filename=ship.png", w.Header().Get("Content-Disposition"))

	w = doJSON(t, h, http.MethodGet, "/uploads/vessel_images/missing.png", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, h, http.MethodGet, "/uploads/vessel_images/../../etc/passwd", nil)
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestFindAttachment(t *testing.T) {
	meta := &fakeAttachments{byID: map[string]attachments.Attachment{
		attachments.VoyageLeg.OwnerType: {ID: 5, OriginalName: "leg.pdf"},
	}}
	a, err := findAttachment(context.Background(), meta, 5, attachments.Voyage.OwnerType, attachments.VoyageLeg.OwnerType)
	require.NoError(t, err)
	assert.Equal(t, "leg.pdf", a.OriginalName)

	_, err = findAttachment(context.Background(), meta, 6, attachments.Voyage.OwnerType, attachments.VoyageLeg.OwnerType)
	assert.ErrorIs(t, err, attachments.ErrNotFound)
}

// signingStore signs every key the way an S3 bucket would.
type signingStore struct {
	*blobmem.Store
	ttl  time.Duration
	name string
}

func (s *signingStore) PresignGet(_ context.Context, key string, ttl time.Duration, filename string) (string, error) {
	s.ttl, s.name = ttl, filename
	return "https://bucket.example/" + key + "?X-Amz-Signature=abc", nil
}

func TestFilesServeRedirectsToSignedURL(t *testing.T) {
	store := &signingStore{Store: blobmem.New()}
	putBlob(t, store, "bunker_attachments/bdn.pdf", "application/pdf", "%PDF-1.4")
	meta := &fakeAttachments{byKey: map[string]attachments.Attachment{
		"bunker_attachments/bdn.pdf": {OriginalName: "BDN 42.pdf"},
	}}
	h := newEngine(nil, func(r gin.IRoutes) {
		r.GET("/uploads/*key", NewFilesHandler(zap.NewNop(), store, meta, 10*time.Minute).Serve)
	})

	w := doJSON(t, h, http.MethodGet, "/uploads/bunker_attachments/bdn.pdf", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://bucket.example/bunker_attachments/bdn.pdf?X-Amz-Signature=abc", w.Header().Get("Location"))
	assert.Equal(t, 10*time.Minute, store.ttl)
	assert.Equal(t, "BDN 42.pdf", store.name)

	w = doJSON(t, h, http.MethodGet, "/uploads/bunker_attachments/gone.pdf", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// a zero TTL keeps streaming through the service
	plain := newEngine(nil, func(r gin.IRoutes) {
		r.GET("/uploads/*key", NewFilesHandler(zap.NewNop(), store, meta, 0).Serve)
	})
	w = doJSON(t, plain, http.MethodGet, "/uploads/bunker_attachments/bdn.pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4", w.Body.String())
}
