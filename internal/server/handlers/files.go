package handlers

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/attachments"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
)

// AttachmentStore is implemented by attachments.Repo.
type AttachmentStore interface {
	ListByOwner(ctx context.Context, ownerType string, ownerID int64) ([]attachments.Attachment, error)
	Get(ctx context.Context, ownerType string, id int64) (*attachments.Attachment, error)
	GetByKey(ctx context.Context, key string) (*attachments.Attachment, error)
	Deactivate(ctx context.Context, ownerType string, id int64) error
}

// findAttachment looks the id up under each owner type in turn.
func findAttachment(ctx context.Context, store AttachmentStore, id int64, ownerTypes ...string) (*attachments.Attachment, error) {
	for _, ot := range ownerTypes {
		a, err := store.Get(ctx, ot, id)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, attachments.ErrNotFound) {
			return nil, err
		}
	}
	return nil, attachments.ErrNotFound
}

func listAttachments(c *gin.Context, logger *zap.Logger, store AttachmentStore, ownerType string) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := store.ListByOwner(ctx, ownerType, id)
	if err != nil {
		fail(c, logger, "list attachments", err)
		return
	}
	resp.OK(c, list)
}

// streamBlob copies a stored object to the response. disposition is
// "inline" or "attachment"; name falls back to the key's base name.
func streamBlob(c *gin.Context, logger *zap.Logger, store blob.Store, key, name, disposition string) {
	info, rc, err := store.Get(c.Request.Context(), key)
	if err != nil {
		fail(c, logger, "read blob", err)
		return
	}
	defer rc.Close()

	if name == "" {
		name = key[strings.LastIndex(key, "/")+1:]
	}
	ct := info.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	headers := map[string]string{
		"Content-Disposition":    mime.FormatMediaType(disposition, map[string]string{"filename": name}),
		"Cache-Control":          "private, max-age=300",
		"X-Content-Type-Options": "nosniff",
	}
	c.DataFromReader(http.StatusOK, info.Size, ct, rc, headers)
}

// FilesHandler serves GET /uploads/*key for every upload directory. With a
// positive presignTTL, stores that can sign URLs answer with a redirect
// instead of streaming through the service.
type FilesHandler struct {
	logger     *zap.Logger
	store      blob.Store
	meta       AttachmentStore
	presignTTL time.Duration
}

func NewFilesHandler(logger *zap.Logger, store blob.Store, meta AttachmentStore, presignTTL time.Duration) *FilesHandler {
	return &FilesHandler{logger: logger, store: store, meta: meta, presignTTL: presignTTL}
}

func (h *FilesHandler) Serve(c *gin.Context) {
	key, err := blob.CleanKey(strings.TrimPrefix(c.Param("key"), "/"))
	if err != nil {
		fail(c, h.logger, "serve upload", err)
		return
	}
	// images are not attachment rows, they keep the stored name
	var name string
	if a, err := h.meta.GetByKey(c.Request.Context(), key); err == nil {
		name = a.OriginalName
	} else if !errors.Is(err, attachments.ErrNotFound) {
		fail(c, h.logger, "serve upload", err)
		return
	}
	if h.presignTTL > 0 && h.redirect(c, key, name) {
		return
	}
	streamBlob(c, h.logger, h.store, key, name, "inline")
}

// redirect answers 302 to a signed URL. It reports false when the store
// cannot sign, leaving the caller to stream.
func (h *FilesHandler) redirect(c *gin.Context, key, name string) bool {
	ctx, cancel := reqCtx(c)
	defer cancel()
	url, err := h.store.PresignGet(ctx, key, h.presignTTL, name)
	if errors.Is(err, blob.ErrUnsupported) {
		return false
	}
	if err != nil {
		h.logger.Warn("presign failed, streaming instead", zap.String("key", key), zap.Error(err))
		return false
	}
	// signing does not look at the bucket
	if _, err := h.store.Head(ctx, key); err != nil {
		fail(c, h.logger, "serve upload", err)
		return true
	}
	c.Header("Cache-Control", "private, no-store")
	c.Redirect(http.StatusFound, url)
	return true
}
