package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/tanks"
)

type TankStore interface {
	List(ctx context.Context) ([]tanks.Tank, error)
	ByVessel(ctx context.Context, vesselID int64, category string) ([]tanks.Tank, error)
	Quantities(ctx context.Context, ids []int64) ([]tanks.Tank, error)
	Get(ctx context.Context, id int64) (*tanks.Tank, error)
	Create(ctx context.Context, p tanks.Patch) (int64, error)
	Update(ctx context.Context, id int64, p tanks.Patch) error
	Deactivate(ctx context.Context, id int64) error
}

type TanksHandler struct {
	logger  *zap.Logger
	tanks   TankStore
	lookups Lookups
}

func NewTanksHandler(logger *zap.Logger, t TankStore, lk Lookups) *TanksHandler {
	return &TanksHandler{logger: logger, tanks: t, lookups: lk}
}

func (h *TanksHandler) Register(g gin.IRoutes) {
	g.GET("/", h.List)
	g.GET("/by-vessel/:vesselId", h.ByVessel)
	g.GET("/details/:id", h.Get)
	g.GET("/metadata/content-types/:category", h.ContentTypes)
	g.POST("/", h.Create)
	g.POST("/current-quantities", h.Quantities)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id/deactivate", h.Deactivate)
}

func (h *TanksHandler) List(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.tanks.List(ctx)
	if err != nil {
		fail(c, h.logger, "list tanks", err)
		return
	}
	resp.OK(c, list)
}

// GET /by-vessel/:vesselId?category=FUEL
func (h *TanksHandler) ByVessel(c *gin.Context) {
	vesselID, ok := idParam(c, "vesselId")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.tanks.ByVessel(ctx, vesselID, c.Query("category"))
	if err != nil {
		fail(c, h.logger, "tanks by vessel", err)
		return
	}
	resp.OK(c, list)
}

func (h *TanksHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.tanks.Get(ctx, id)
	if err != nil {
		fail(c, h.logger, "get tank", err)
		return
	}
	resp.OK(c, t)
}

func (h *TanksHandler) ContentTypes(c *gin.Context) {
	category, err := tanks.LookupCategory(c.Param("category"))
	if err != nil {
		fail(c, h.logger, "tank content types", err)
		return
	}
	lookupList(h.logger, h.lookups, category)(c)
}

type quantitiesReq struct {
	TankIDs []int64 `json:"tankIds" binding:"required"`
}

func (h *TanksHandler) Quantities(c *gin.Context) {
	var req quantitiesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.tanks.Quantities(ctx, req.TankIDs)
	if err != nil {
		fail(c, h.logger, "tank quantities", err)
		return
	}
	resp.OK(c, list)
}

func (h *TanksHandler) Create(c *gin.Context) {
	var p tanks.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	id, err := h.tanks.Create(ctx, p)
	if err != nil {
		fail(c, h.logger, "create tank", err)
		return
	}
	resp.Created(c, "Tank created.", id)
}

func (h *TanksHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var p tanks.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.tanks.Update(ctx, id, p); err != nil {
		fail(c, h.logger, "update tank", err)
		return
	}
	resp.Message(c, "Tank updated.")
}

func (h *TanksHandler) Deactivate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.tanks.Deactivate(ctx, id); err != nil {
		fail(c, h.logger, "deactivate tank", err)
		return
	}
	resp.Message(c, "Tank deactivated.")
}
