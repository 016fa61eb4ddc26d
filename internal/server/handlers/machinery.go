package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/lookups"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/machinery"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/mw"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
)

type MachineryStore interface {
	ForShip(ctx context.Context, shipID int64, consumersOnly bool) ([]machinery.Machinery, error)
	Get(ctx context.Context, id int64) (*machinery.Machinery, error)
	Assign(ctx context.Context, shipID int64, items []machinery.AssignItem, actor string) ([]int64, error)
	Update(ctx context.Context, id int64, p machinery.Patch, actor string) error
	Deactivate(ctx context.Context, id int64, actor string) error
}

type MachineryHandler struct {
	logger    *zap.Logger
	machinery MachineryStore
	lookups   Lookups
}

func NewMachineryHandler(logger *zap.Logger, m MachineryStore, lk Lookups) *MachineryHandler {
	return &MachineryHandler{logger: logger, machinery: m, lookups: lk}
}

func (h *MachineryHandler) Register(g gin.IRoutes) {
	g.GET("/types", lookupList(h.logger, h.lookups, lookups.MachineryTypes))
	g.GET("/lookups/fuel-types", lookupList(h.logger, h.lookups, lookups.FuelTypes))
	g.GET("/ship/:shipId", h.forShip(false))
	g.GET("/consumers/:shipId", h.forShip(true))
	g.POST("/ship/:shipId", h.Assign)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Deactivate)
}

func (h *MachineryHandler) forShip(consumersOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		shipID, ok := idParam(c, "shipId")
		if !ok {
			return
		}
		ctx, cancel := reqCtx(c)
		defer cancel()
		list, err := h.machinery.ForShip(ctx, shipID, consumersOnly)
		if err != nil {
			fail(c, h.logger, "machinery for ship", err)
			return
		}
		resp.OK(c, list)
	}
}

func (h *MachineryHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.machinery.Get(ctx, id)
	if err != nil {
		fail(c, h.logger, "get machinery", err)
		return
	}
	resp.OK(c, m)
}

type assignReq struct {
	Items []machinery.AssignItem `json:"items" binding:"required,dive"`
}

// POST /ship/:shipId numbers instances per type after the existing ones.
func (h *MachineryHandler) Assign(c *gin.Context) {
	shipID, ok := idParam(c, "shipId")
	if !ok {
		return
	}
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	ids, err := h.machinery.Assign(ctx, shipID, req.Items, mw.Actor(c))
	if err != nil {
		fail(c, h.logger, "assign machinery", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Machinery assigned.", "ids": ids})
}

func (h *MachineryHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var p machinery.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.machinery.Update(ctx, id, p, mw.Actor(c)); err != nil {
		fail(c, h.logger, "update machinery", err)
		return
	}
	resp.Message(c, "Machinery updated.")
}

func (h *MachineryHandler) Deactivate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.machinery.Deactivate(ctx, id, mw.Actor(c)); err != nil {
		fail(c, h.logger, "deactivate machinery", err)
		return
	}
	resp.Message(c, "Machinery removed.")
}
