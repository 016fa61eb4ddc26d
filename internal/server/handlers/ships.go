package handlers

import (
	"context"
	"mime/multipart"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/attachments"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/lookups"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/mw"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/vessels"
)

type ShipStore interface {
	List(ctx context.Context, activeOnly bool) ([]vessels.Ship, error)
	Get(ctx context.Context, id int64) (*vessels.Ship, error)
	Create(ctx context.Context, p vessels.ShipPatch) (int64, error)
	Update(ctx context.Context, id int64, p vessels.ShipPatch) (*string, error)
	Deactivate(ctx context.Context, id int64) error

	ListFleets(ctx context.Context) ([]vessels.Fleet, error)
	GetFleet(ctx context.Context, id int64) (*vessels.Fleet, error)
	ShipsForMapping(ctx context.Context) ([]vessels.ShipName, error)
	CreateFleet(ctx context.Context, p vessels.FleetPatch) (int64, error)
	UpdateFleet(ctx context.Context, id int64, p vessels.FleetPatch) error
	DeactivateFleet(ctx context.Context, id int64) error
	MapVessels(ctx context.Context, fleetID int64, shipIDs []int64) error
}

type ShipsHandler struct {
	logger  *zap.Logger
	ships   ShipStore
	uploads Uploader
	lookups Lookups
}

func NewShipsHandler(logger *zap.Logger, ships ShipStore, uploads Uploader, lk Lookups) *ShipsHandler {
	return &ShipsHandler{logger: logger, ships: ships, uploads: uploads, lookups: lk}
}

func (h *ShipsHandler) Register(g gin.IRoutes) {
	g.GET("/", h.list(false))
	g.GET("/active", h.list(true))
	g.GET("/metadata/shiptypes", lookupList(h.logger, h.lookups, lookups.ShipTypes))
	g.GET("/metadata/iceclasses", lookupList(h.logger, h.lookups, lookups.IceClasses))

	g.GET("/fleets", h.ListFleets)
	g.GET("/fleets/ships-for-mapping", h.ShipsForMapping)
	g.GET("/fleets/:id", h.GetFleet)
	g.POST("/fleets", h.CreateFleet)
	g.PUT("/fleets/:id", h.UpdateFleet)
	g.DELETE("/fleets/:id", h.DeactivateFleet)
	g.POST("/fleets/:id/map-vessels", h.MapVessels)

	g.GET("/details/:id", h.Get)
	g.GET("/:id", h.Get)
	g.POST("/", h.Create)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id/inactive", h.Deactivate)
}

func (h *ShipsHandler) list(activeOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := reqCtx(c)
		defer cancel()
		list, err := h.ships.List(ctx, activeOnly)
		if err != nil {
			fail(c, h.logger, "list ships", err)
			return
		}
		resp.OK(c, list)
	}
}

func (h *ShipsHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.ships.Get(ctx, id)
	if err != nil {
		fail(c, h.logger, "get ship", err)
		return
	}
	resp.OK(c, s)
}

// saveImage stores an optional single image upload and returns its key.
func (h *ShipsHandler) saveImage(ctx context.Context, c *gin.Context, cat attachments.Category, files []*multipart.FileHeader) (*string, []string, error) {
	if len(files) == 0 {
		return nil, nil, nil
	}
	stored, err := h.uploads.Save(ctx, cat, files[:1], mw.Actor(c))
	if err != nil {
		return nil, nil, err
	}
	return &stored[0].Key, attachments.Keys(stored), nil
}

func (h *ShipsHandler) Create(c *gin.Context) {
	var p vessels.ShipPatch
	files, err := bindMultipart(c, &p, "image")
	if err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	key, keys, err := h.saveImage(ctx, c, attachments.VesselImage, files)
	if err != nil {
		fail(c, h.logger, "create ship", err)
		return
	}
	p.ImagePath = key
	id, err := h.ships.Create(ctx, p)
	if err != nil {
		h.uploads.Cleanup(ctx, keys)
		fail(c, h.logger, "create ship", err)
		return
	}
	resp.Created(c, "Ship created.", id)
}

func (h *ShipsHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var p vessels.ShipPatch
	files, err := bindMultipart(c, &p, "image")
	if err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	key, keys, err := h.saveImage(ctx, c, attachments.VesselImage, files)
	if err != nil {
		fail(c, h.logger, "update ship", err)
		return
	}
	p.ImagePath = key
	old, err := h.ships.Update(ctx, id, p)
	if err != nil {
		h.uploads.Cleanup(ctx, keys)
		fail(c, h.logger, "update ship", err)
		return
	}
	if key != nil {
		dropBlob(ctx, h.uploads.Blob(), h.logger, old)
	}
	resp.Message(c, "Ship updated.")
}

func (h *ShipsHandler) Deactivate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.ships.Deactivate(ctx, id); err != nil {
		fail(c, h.logger, "deactivate ship", err)
		return
	}
	resp.Message(c, "Ship marked inactive.")
}

func (h *ShipsHandler) ListFleets(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.ships.ListFleets(ctx)
	if err != nil {
		fail(c, h.logger, "list fleets", err)
		return
	}
	resp.OK(c, list)
}

func (h *ShipsHandler) GetFleet(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	f, err := h.ships.GetFleet(ctx, id)
	if err != nil {
		fail(c, h.logger, "get fleet", err)
		return
	}
	resp.OK(c, f)
}

func (h *ShipsHandler) ShipsForMapping(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.ships.ShipsForMapping(ctx)
	if err != nil {
		fail(c, h.logger, "ships for mapping", err)
		return
	}
	resp.OK(c, list)
}

func (h *ShipsHandler) CreateFleet(c *gin.Context) {
	var p vessels.FleetPatch
	files, err := bindMultipart(c, &p, "logo")
	if err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	key, keys, err := h.saveImage(ctx, c, attachments.FleetLogo, files)
	if err != nil {
		fail(c, h.logger, "create fleet", err)
		return
	}
	p.LogoPath = key
	id, err := h.ships.CreateFleet(ctx, p)
	if err != nil {
		h.uploads.Cleanup(ctx, keys)
		fail(c, h.logger, "create fleet", err)
		return
	}
	resp.Created(c, "Fleet created.", id)
}

func (h *ShipsHandler) UpdateFleet(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var p vessels.FleetPatch
	files, err := bindMultipart(c, &p, "logo")
	if err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	prev, err := h.ships.GetFleet(ctx, id)
	if err != nil {
		fail(c, h.logger, "update fleet", err)
		return
	}
	key, keys, err := h.saveImage(ctx, c, attachments.FleetLogo, files)
	if err != nil {
		fail(c, h.logger, "update fleet", err)
		return
	}
	p.LogoPath = key
	if err := h.ships.UpdateFleet(ctx, id, p); err != nil {
		h.uploads.Cleanup(ctx, keys)
		fail(c, h.logger, "update fleet", err)
		return
	}
	if key != nil {
		dropBlob(ctx, h.uploads.Blob(), h.logger, prev.LogoPath)
	}
	resp.Message(c, "Fleet updated.")
}

func (h *ShipsHandler) DeactivateFleet(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.ships.DeactivateFleet(ctx, id); err != nil {
		fail(c, h.logger, "deactivate fleet", err)
		return
	}
	resp.Message(c, "Fleet deactivated.")
}

type mapVesselsReq struct {
	ShipIDs []int64 `json:"shipIds"`
}

// POST /fleets/:id/map-vessels replaces the fleet's membership; an empty list unmaps all.
func (h *ShipsHandler) MapVessels(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req mapVesselsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.ships.MapVessels(ctx, id, req.ShipIDs); err != nil {
		fail(c, h.logger, "map vessels", err)
		return
	}
	resp.Message(c, "Vessels mapped.")
}
