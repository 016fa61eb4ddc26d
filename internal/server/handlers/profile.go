package handlers

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/attachments"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/mw"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/users"
)

// Uploader is implemented by attachments.Service.
type Uploader interface {
	Save(ctx context.Context, cat attachments.Category, files []*multipart.FileHeader, actor string) ([]attachments.Stored, error)
	Cleanup(ctx context.Context, keys []string)
	Blob() blob.Store
}

type UserStore interface {
	FindByID(ctx context.Context, id int64) (*users.User, error)
	List(ctx context.Context) ([]users.User, error)
	Create(ctx context.Context, p users.Patch) (int64, error)
	Update(ctx context.Context, id int64, p users.Patch) error
	Deactivate(ctx context.Context, id int64) error
	SetImage(ctx context.Context, id int64, key string) (*string, error)
	Rights(ctx context.Context) ([]string, error)
}

type ProfileHandler struct {
	logger  *zap.Logger
	users   UserStore
	uploads Uploader
}

func NewProfileHandler(logger *zap.Logger, users UserStore, uploads Uploader) *ProfileHandler {
	return &ProfileHandler{logger: logger, users: users, uploads: uploads}
}

// GET /me
func (h *ProfileHandler) Me(c *gin.Context) {
	p, _ := mw.PrincipalFrom(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.users.FindByID(ctx, p.UserID)
	if err != nil {
		fail(c, h.logger, "me", err)
		return
	}
	resp.OK(c, u)
}

// POST /users/upload-image stores the caller's avatar, or the one of
// userId when an admin passes it.
func (h *ProfileHandler) UploadImage(c *gin.Context) {
	p, _ := mw.PrincipalFrom(c)
	target := p.UserID
	if id := queryInt64(c, "userId"); id > 0 && id != p.UserID {
		if !p.IsAdmin() {
			resp.Error(c, http.StatusForbidden, "Forbidden", "only admins can change another user's image")
			return
		}
		target = id
	}
	fh := singleFile(c, "image")
	if fh == nil {
		resp.Error(c, http.StatusBadRequest, "No image uploaded", "")
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	stored, err := h.uploads.Save(ctx, attachments.UserImage, []*multipart.FileHeader{fh}, mw.Actor(c))
	if err != nil {
		fail(c, h.logger, "upload user image", err)
		return
	}
	old, err := h.users.SetImage(ctx, target, stored[0].Key)
	if err != nil {
		h.uploads.Cleanup(ctx, attachments.Keys(stored))
		fail(c, h.logger, "upload user image", err)
		return
	}
	dropBlob(ctx, h.uploads.Blob(), h.logger, old)
	resp.OK(c, gin.H{"message": "Image uploaded.", "imagePath": stored[0].Key})
}
