package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/ports"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/mw"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
)

type PortStore interface {
	List(ctx context.Context, search string) ([]ports.Port, error)
	Names(ctx context.Context) ([]ports.Name, error)
	Get(ctx context.Context, id int64) (*ports.Port, error)
	GetByCode(ctx context.Context, code string) (*ports.Port, error)
	Create(ctx context.Context, p ports.Patch, actor string) (int64, error)
	Update(ctx context.Context, id int64, p ports.Patch, actor string) error
	Deactivate(ctx context.Context, id int64, actor string) error
}

type PortsHandler struct {
	logger *zap.Logger
	ports  PortStore
}

func NewPortsHandler(logger *zap.Logger, ports PortStore) *PortsHandler {
	return &PortsHandler{logger: logger, ports: ports}
}

func (h *PortsHandler) Register(g gin.IRoutes) {
	g.GET("/", h.List)
	g.GET("/names-only", h.Names)
	g.GET("/by-code/:code", h.ByCode)
	g.GET("/:id", h.Get)
	g.POST("/", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Deactivate)
}

// GET /?search=
func (h *PortsHandler) List(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.ports.List(ctx, c.Query("search"))
	if err != nil {
		fail(c, h.logger, "list ports", err)
		return
	}
	resp.OK(c, list)
}

func (h *PortsHandler) Names(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.ports.Names(ctx)
	if err != nil {
		fail(c, h.logger, "port names", err)
		return
	}
	resp.OK(c, list)
}

func (h *PortsHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.ports.Get(ctx, id)
	if err != nil {
		fail(c, h.logger, "get port", err)
		return
	}
	resp.OK(c, p)
}

func (h *PortsHandler) ByCode(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.ports.GetByCode(ctx, c.Param("code"))
	if err != nil {
		fail(c, h.logger, "port by code", err)
		return
	}
	resp.OK(c, p)
}

func (h *PortsHandler) Create(c *gin.Context) {
	var p ports.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	id, err := h.ports.Create(ctx, p, mw.Actor(c))
	if err != nil {
		fail(c, h.logger, "create port", err)
		return
	}
	resp.Created(c, "Port created.", id)
}

func (h *PortsHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var p ports.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.ports.Update(ctx, id, p, mw.Actor(c)); err != nil {
		fail(c, h.logger, "update port", err)
		return
	}
	resp.Message(c, "Port updated.")
}

func (h *PortsHandler) Deactivate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.ports.Deactivate(ctx, id, mw.Actor(c)); err != nil {
		fail(c, h.logger, "deactivate port", err)
		return
	}
	resp.Message(c, "Port deactivated.")
}
