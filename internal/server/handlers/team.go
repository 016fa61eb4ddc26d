package handlers

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/attachments"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/mw"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/team"
)

type TeamStore interface {
	List(ctx context.Context, all bool) ([]team.Member, error)
	Get(ctx context.Context, id int64) (*team.Member, error)
	Create(ctx context.Context, p team.Patch, imageKey *string) (int64, error)
	Update(ctx context.Context, id int64, p team.Patch, imageKey *string) (*string, error)
	UpdateIntroduction(ctx context.Context, id int64, intro string) error
	SetActive(ctx context.Context, id int64, active bool) error
}

const memberImageField = "memberImage"

type TeamHandler struct {
	logger  *zap.Logger
	team    TeamStore
	uploads Uploader
}

func NewTeamHandler(logger *zap.Logger, t TeamStore, uploads Uploader) *TeamHandler {
	return &TeamHandler{logger: logger, team: t, uploads: uploads}
}

func (h *TeamHandler) Register(g gin.IRoutes) {
	g.GET("/", h.List)
	g.POST("/", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.PUT("/:id/deactivate", h.setActive(false))
	g.PUT("/:id/reactivate", h.setActive(true))
	g.PUT("/:id/introduction", h.Introduction)
	g.PUT("/:id/image", h.Image)
}

// GET /?all=true includes inactive members.
func (h *TeamHandler) List(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.team.List(ctx, c.Query("all") == "true")
	if err != nil {
		fail(c, h.logger, "list team", err)
		return
	}
	resp.OK(c, list)
}

func (h *TeamHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.team.Get(ctx, id)
	if err != nil {
		fail(c, h.logger, "get member", err)
		return
	}
	resp.OK(c, m)
}

func (h *TeamHandler) storeImage(ctx context.Context, c *gin.Context, files []*multipart.FileHeader) (*string, []string, error) {
	if len(files) == 0 {
		return nil, nil, nil
	}
	stored, err := h.uploads.Save(ctx, attachments.MemberImage, files[:1], mw.Actor(c))
	if err != nil {
		return nil, nil, err
	}
	return &stored[0].Key, attachments.Keys(stored), nil
}

func (h *TeamHandler) Create(c *gin.Context) {
	var p team.Patch
	files, err := bindMultipart(c, &p, memberImageField)
	if err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	key, keys, err := h.storeImage(ctx, c, files)
	if err != nil {
		fail(c, h.logger, "create member", err)
		return
	}
	id, err := h.team.Create(ctx, p, key)
	if err != nil {
		h.uploads.Cleanup(ctx, keys)
		fail(c, h.logger, "create member", err)
		return
	}
	resp.Created(c, "Team member added.", id)
}

func (h *TeamHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var p team.Patch
	files, err := bindMultipart(c, &p, memberImageField)
	if err != nil {
		badPayload(c, err)
		return
	}
	h.update(c, id, p, files)
}

// PUT /:id/image replaces only the picture.
func (h *TeamHandler) Image(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	fh := singleFile(c, memberImageField)
	if fh == nil {
		resp.Error(c, http.StatusBadRequest, "No image uploaded", "")
		return
	}
	h.update(c, id, team.Patch{}, []*multipart.FileHeader{fh})
}

func (h *TeamHandler) update(c *gin.Context, id int64, p team.Patch, files []*multipart.FileHeader) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	key, keys, err := h.storeImage(ctx, c, files)
	if err != nil {
		fail(c, h.logger, "update member", err)
		return
	}
	old, err := h.team.Update(ctx, id, p, key)
	if err != nil {
		h.uploads.Cleanup(ctx, keys)
		fail(c, h.logger, "update member", err)
		return
	}
	if key != nil {
		dropBlob(ctx, h.uploads.Blob(), h.logger, old)
	}
	resp.Message(c, "Team member updated.")
}

type introductionReq struct {
	Introduction string `json:"introduction"`
}

func (h *TeamHandler) Introduction(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req introductionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.team.UpdateIntroduction(ctx, id, req.Introduction); err != nil {
		fail(c, h.logger, "update introduction", err)
		return
	}
	resp.Message(c, "Introduction updated.")
}

func (h *TeamHandler) setActive(active bool) gin.HandlerFunc {
	msg := "Team member deactivated."
	if active {
		msg = "Team member reactivated."
	}
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		ctx, cancel := reqCtx(c)
		defer cancel()
		if err := h.team.SetActive(ctx, id, active); err != nil {
			fail(c, h.logger, "set member active", err)
			return
		}
		resp.Message(c, msg)
	}
}
