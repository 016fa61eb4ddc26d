package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/attachments"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/mw"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/voyages"
)

type VoyageStore interface {
	List(ctx context.Context) ([]voyages.Voyage, error)
	ListByShip(ctx context.Context, shipID int64) ([]voyages.Voyage, error)
	Get(ctx context.Context, id int64) (*voyages.Voyage, error)
	NextNumber(ctx context.Context, shipID int64) (string, error)
	Create(ctx context.Context, p voyages.Patch, files []attachments.Stored, actor string) (int64, string, error)
	Update(ctx context.Context, id int64, p voyages.Patch, files []attachments.Stored, actor string) error
	Deactivate(ctx context.Context, id int64, actor string) error

	Legs(ctx context.Context, voyageID int64) ([]voyages.Leg, error)
	LegsByShip(ctx context.Context, shipID int64) ([]voyages.Leg, error)
	GetLeg(ctx context.Context, id int64) (*voyages.Leg, error)
	CreateLeg(ctx context.Context, voyageID int64, p voyages.LegPatch, files []attachments.Stored, actor string) (int64, int32, error)
	UpdateLeg(ctx context.Context, id int64, p voyages.LegPatch) error
}

type VoyagesHandler struct {
	logger  *zap.Logger
	voyages VoyageStore
	uploads Uploader
	files   AttachmentStore
}

func NewVoyagesHandler(logger *zap.Logger, v VoyageStore, uploads Uploader, files AttachmentStore) *VoyagesHandler {
	return &VoyagesHandler{logger: logger, voyages: v, uploads: uploads, files: files}
}

func (h *VoyagesHandler) Register(g gin.IRoutes) {
	g.GET("/", h.List)
	g.GET("/details/:id", h.Get)
	g.GET("/ship/:shipId", h.ByShip)
	g.GET("/next-voyage-number/:shipId", h.NextNumber)
	g.POST("/", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Deactivate)

	g.GET("/:id/legs", h.Legs)
	g.POST("/:id/legs", h.CreateLeg)
	g.GET("/legs/:id", h.GetLeg)
	g.PUT("/legs/:id", h.UpdateLeg)
	g.GET("/voyage-legs/by-ship/:shipId", h.LegsByShip)

	g.GET("/:id/attachments", func(c *gin.Context) { listAttachments(c, h.logger, h.files, attachments.Voyage.OwnerType) })
	g.GET("/legs/:id/attachments", func(c *gin.Context) { listAttachments(c, h.logger, h.files, attachments.VoyageLeg.OwnerType) })
	g.DELETE("/attachments/:id", h.DeleteAttachment)
	g.GET("/attachments/:id/download", h.DownloadAttachment)
}

func (h *VoyagesHandler) List(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.voyages.List(ctx)
	if err != nil {
		fail(c, h.logger, "list voyages", err)
		return
	}
	resp.OK(c, list)
}

func (h *VoyagesHandler) ByShip(c *gin.Context) {
	shipID, ok := idParam(c, "shipId")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.voyages.ListByShip(ctx, shipID)
	if err != nil {
		fail(c, h.logger, "voyages by ship", err)
		return
	}
	resp.OK(c, list)
}

func (h *VoyagesHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	v, err := h.voyages.Get(ctx, id)
	if err != nil {
		fail(c, h.logger, "get voyage", err)
		return
	}
	resp.OK(c, v)
}

func (h *VoyagesHandler) NextNumber(c *gin.Context) {
	shipID, ok := idParam(c, "shipId")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.voyages.NextNumber(ctx, shipID)
	if err != nil {
		fail(c, h.logger, "next voyage number", err)
		return
	}
	resp.OK(c, gin.H{"nextVoyageNumber": n})
}

// POST / accepts JSON or multipart with "data" plus "attachments" files.
func (h *VoyagesHandler) Create(c *gin.Context) {
	var p voyages.Patch
	files, err := bindMultipart(c, &p, "attachments")
	if err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	stored, err := h.uploads.Save(ctx, attachments.Voyage, files, mw.Actor(c))
	if err != nil {
		fail(c, h.logger, "create voyage", err)
		return
	}
	id, number, err := h.voyages.Create(ctx, p, stored, mw.Actor(c))
	if err != nil {
		h.uploads.Cleanup(ctx, attachments.Keys(stored))
		fail(c, h.logger, "create voyage", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Voyage created.", "id": id, "voyageNumber": number})
}

func (h *VoyagesHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var p voyages.Patch
	files, err := bindMultipart(c, &p, "attachments")
	if err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	stored, err := h.uploads.Save(ctx, attachments.Voyage, files, mw.Actor(c))
	if err != nil {
		fail(c, h.logger, "update voyage", err)
		return
	}
	if err := h.voyages.Update(ctx, id, p, stored, mw.Actor(c)); err != nil {
		h.uploads.Cleanup(ctx, attachments.Keys(stored))
		fail(c, h.logger, "update voyage", err)
		return
	}
	resp.Message(c, "Voyage updated.")
}

func (h *VoyagesHandler) Deactivate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.voyages.Deactivate(ctx, id, mw.Actor(c)); err != nil {
		fail(c, h.logger, "deactivate voyage", err)
		return
	}
	resp.Message(c, "Voyage deactivated.")
}

func (h *VoyagesHandler) Legs(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.voyages.Legs(ctx, id)
	if err != nil {
		fail(c, h.logger, "list legs", err)
		return
	}
	resp.OK(c, list)
}

func (h *VoyagesHandler) LegsByShip(c *gin.Context) {
	shipID, ok := idParam(c, "shipId")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.voyages.LegsByShip(ctx, shipID)
	if err != nil {
		fail(c, h.logger, "legs by ship", err)
		return
	}
	resp.OK(c, list)
}

func (h *VoyagesHandler) GetLeg(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	l, err := h.voyages.GetLeg(ctx, id)
	if err != nil {
		fail(c, h.logger, "get leg", err)
		return
	}
	resp.OK(c, l)
}

func (h *VoyagesHandler) CreateLeg(c *gin.Context) {
	voyageID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var p voyages.LegPatch
	files, err := bindMultipart(c, &p, "attachments")
	if err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	stored, err := h.uploads.Save(ctx, attachments.VoyageLeg, files, mw.Actor(c))
	if err != nil {
		fail(c, h.logger, "create leg", err)
		return
	}
	id, legNo, err := h.voyages.CreateLeg(ctx, voyageID, p, stored, mw.Actor(c))
	if err != nil {
		h.uploads.Cleanup(ctx, attachments.Keys(stored))
		fail(c, h.logger, "create leg", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Voyage leg created.", "id": id, "legNumber": legNo})
}

func (h *VoyagesHandler) UpdateLeg(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var p voyages.LegPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.voyages.UpdateLeg(ctx, id, p); err != nil {
		fail(c, h.logger, "update leg", err)
		return
	}
	resp.Message(c, "Voyage leg updated.")
}

func (h *VoyagesHandler) DeleteAttachment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	a, err := findAttachment(ctx, h.files, id, attachments.Voyage.OwnerType, attachments.VoyageLeg.OwnerType)
	if err != nil {
		fail(c, h.logger, "delete attachment", err)
		return
	}
	if err := h.files.Deactivate(ctx, a.OwnerType, a.ID); err != nil {
		fail(c, h.logger, "delete attachment", err)
		return
	}
	resp.Message(c, "Attachment deleted.")
}

func (h *VoyagesHandler) DownloadAttachment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	a, err := findAttachment(c.Request.Context(), h.files, id, attachments.Voyage.OwnerType, attachments.VoyageLeg.OwnerType)
	if err != nil {
		fail(c, h.logger, "download attachment", err)
		return
	}
	streamBlob(c, h.logger, h.uploads.Blob(), a.Key, a.OriginalName, "attachment")
}
