package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/attachments"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/bunkers"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/lookups"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/metrics"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/ports"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/rob"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/mw"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/tanks"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/vessels"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/voyages"
)

type BunkerStore interface {
	List(ctx context.Context, f bunkers.Filter) ([]bunkers.Record, error)
	ByBDN(ctx context.Context, shipID int64, bdn string) ([]bunkers.Record, error)
	Get(ctx context.Context, id int64) (*bunkers.Record, error)
	BDNNumbers(ctx context.Context, shipID int64) ([]string, error)
	NextBDN(ctx context.Context, shipID int64) (string, error)
	Create(ctx context.Context, in bunkers.Input, files []attachments.Stored, actor string) (bunkers.Result, error)
	Update(ctx context.Context, id int64, in bunkers.Input, files []attachments.Stored, actor string) (bunkers.Result, error)
	Deactivate(ctx context.Context, id int64, actor string) error
}

// ROBReader is implemented by rob.Repo.
type ROBReader interface {
	LastROB(ctx context.Context, shipID int64, cat rob.Category, itemType string) (rob.Balance, error)
	PositiveItems(ctx context.Context, shipID int64, cat rob.Category) ([]rob.Balance, error)
	PositiveBDNs(ctx context.Context, shipID int64, cat rob.Category, itemType string) ([]rob.Balance, error)
	BDNBalance(ctx context.Context, shipID int64, bdn string) ([]rob.Balance, error)
	History(ctx context.Context, k rob.Key, limit int) ([]rob.HistoryRow, error)
}

// BunkerLookups are the dropdown sources of the bunkering form.
type BunkerLookups struct {
	Ships interface {
		List(ctx context.Context, activeOnly bool) ([]vessels.Ship, error)
	}
	Voyages interface {
		ListByShip(ctx context.Context, shipID int64) ([]voyages.Voyage, error)
		Legs(ctx context.Context, voyageID int64) ([]voyages.Leg, error)
	}
	Ports interface {
		Names(ctx context.Context) ([]ports.Name, error)
	}
	Tanks interface {
		ByVessel(ctx context.Context, vesselID int64, category string) ([]tanks.Tank, error)
	}
	Lists Lookups
}

type BunkeringHandler struct {
	logger  *zap.Logger
	bunkers BunkerStore
	rob     ROBReader
	uploads Uploader
	files   AttachmentStore
	lk      BunkerLookups
	metrics *metrics.Registry
}

func NewBunkeringHandler(logger *zap.Logger, b BunkerStore, r ROBReader, uploads Uploader, files AttachmentStore,
	lk BunkerLookups, m *metrics.Registry) *BunkeringHandler {
	return &BunkeringHandler{logger: logger, bunkers: b, rob: r, uploads: uploads, files: files, lk: lk, metrics: m}
}

func (h *BunkeringHandler) Register(g gin.IRoutes) {
	g.GET("/", h.List)
	g.GET("/vessel/:vesselId", h.ByVessel)
	g.GET("/details/:id", h.Get)
	g.POST("/", h.Create)
	g.PUT("/:id", h.Update)
	g.PUT("/deactivate/:id", h.Deactivate)
	g.GET("/:id/attachments", func(c *gin.Context) { listAttachments(c, h.logger, h.files, attachments.Bunker.OwnerType) })

	g.GET("/lookup/next-bdn-number/:shipId", h.NextBDN)
	g.GET("/lookup/ships/active", h.ActiveShips)
	g.GET("/lookup/voyages/:shipId", h.Voyages)
	g.GET("/lookup/voyage-legs/:voyageId", h.VoyageLegs)
	g.GET("/lookup/sea-ports", h.SeaPorts)
	g.GET("/lookup/fuel-types", lookupList(h.logger, h.lk.Lists, lookups.FuelTypes))
	g.GET("/lookup/lube-oil-types", lookupList(h.logger, h.lk.Lists, lookups.LubeOilTypes))
	g.GET("/lookup/vessel-tanks/:shipId", h.VesselTanks)
	g.GET("/lookup/last-rob", h.LastROB)
	g.GET("/lookup/rob-items", h.ROBItems)
	g.GET("/lookup/rob-history", h.ROBHistory)
	g.GET("/lookup/bdn-numbers", h.BDNNumbers)
	g.GET("/lookup/bdn-details/:bdnNumber", h.BDNDetails)
	g.GET("/lookup/bdn", h.PositiveBDNs)
	g.GET("/lookup/rob", h.BDNBalance)
}

// GET /?category=FUEL&includeInactive=true
func (h *BunkeringHandler) List(c *gin.Context) {
	h.list(c, 0)
}

func (h *BunkeringHandler) ByVessel(c *gin.Context) {
	shipID, ok := idParam(c, "vesselId")
	if !ok {
		return
	}
	h.list(c, shipID)
}

func (h *BunkeringHandler) list(c *gin.Context, shipID int64) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	f := bunkers.Filter{ShipID: shipID, Category: c.Query("category"), IncludeInactive: c.Query("includeInactive") == "true"}
	list, err := h.bunkers.List(ctx, f)
	if err != nil {
		fail(c, h.logger, "list bunkers", err)
		return
	}
	resp.OK(c, list)
}

func (h *BunkeringHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rec, err := h.bunkers.Get(ctx, id)
	if err != nil {
		fail(c, h.logger, "get bunker", err)
		return
	}
	resp.OK(c, rec)
}

// POST / is multipart: "data" JSON plus "attachments" (PDF only).
// Files go to the blob store first; a failed transaction removes them again.
func (h *BunkeringHandler) Create(c *gin.Context) {
	var in bunkers.Input
	files, err := bindMultipart(c, &in, "attachments")
	if err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	stored, err := h.uploads.Save(ctx, attachments.Bunker, files, mw.Actor(c))
	if err != nil {
		fail(c, h.logger, "create bunker", err)
		return
	}
	res, err := h.bunkers.Create(ctx, in, stored, mw.Actor(c))
	if err != nil {
		h.uploads.Cleanup(ctx, attachments.Keys(stored))
		fail(c, h.logger, "create bunker", err)
		return
	}
	countROB(h.metrics, res.Entries)
	c.JSON(http.StatusCreated, gin.H{"message": "Bunker record created.", "id": res.ID, "bdnNumber": res.BDNNumber})
}

func (h *BunkeringHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in bunkers.Input
	files, err := bindMultipart(c, &in, "attachments")
	if err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	stored, err := h.uploads.Save(ctx, attachments.Bunker, files, mw.Actor(c))
	if err != nil {
		fail(c, h.logger, "update bunker", err)
		return
	}
	res, err := h.bunkers.Update(ctx, id, in, stored, mw.Actor(c))
	if err != nil {
		h.uploads.Cleanup(ctx, attachments.Keys(stored))
		fail(c, h.logger, "update bunker", err)
		return
	}
	countROB(h.metrics, res.Entries)
	resp.OK(c, gin.H{"message": "Bunker record updated.", "id": res.ID, "bdnNumber": res.BDNNumber})
}

func (h *BunkeringHandler) Deactivate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.bunkers.Deactivate(ctx, id, mw.Actor(c)); err != nil {
		fail(c, h.logger, "deactivate bunker", err)
		return
	}
	resp.Message(c, "Bunker record deactivated.")
}

func (h *BunkeringHandler) NextBDN(c *gin.Context) {
	shipID, ok := idParam(c, "shipId")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.bunkers.NextBDN(ctx, shipID)
	if err != nil {
		fail(c, h.logger, "next bdn", err)
		return
	}
	resp.OK(c, gin.H{"bdnNumber": n})
}

func (h *BunkeringHandler) ActiveShips(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.lk.Ships.List(ctx, true)
	if err != nil {
		fail(c, h.logger, "active ships", err)
		return
	}
	resp.OK(c, list)
}

func (h *BunkeringHandler) Voyages(c *gin.Context) {
	shipID, ok := idParam(c, "shipId")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.lk.Voyages.ListByShip(ctx, shipID)
	if err != nil {
		fail(c, h.logger, "voyages lookup", err)
		return
	}
	resp.OK(c, list)
}

func (h *BunkeringHandler) VoyageLegs(c *gin.Context) {
	voyageID, ok := idParam(c, "voyageId")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.lk.Voyages.Legs(ctx, voyageID)
	if err != nil {
		fail(c, h.logger, "legs lookup", err)
		return
	}
	resp.OK(c, list)
}

func (h *BunkeringHandler) SeaPorts(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.lk.Ports.Names(ctx)
	if err != nil {
		fail(c, h.logger, "ports lookup", err)
		return
	}
	resp.OK(c, list)
}

// GET /lookup/vessel-tanks/:shipId?bunkerCategory=FUEL
func (h *BunkeringHandler) VesselTanks(c *gin.Context) {
	shipID, ok := idParam(c, "shipId")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.lk.Tanks.ByVessel(ctx, shipID, c.Query("bunkerCategory"))
	if err != nil {
		fail(c, h.logger, "tanks lookup", err)
		return
	}
	resp.OK(c, list)
}

// robQuery reads shipId and bunkerCategory, answering 400 when either is bad.
func robQuery(c *gin.Context, logger *zap.Logger) (int64, rob.Category, bool) {
	shipID := queryInt64(c, "shipId")
	if shipID <= 0 {
		resp.Error(c, http.StatusBadRequest, "shipId is required", "")
		return 0, "", false
	}
	cat, err := rob.ParseCategory(c.DefaultQuery("bunkerCategory", string(rob.CategoryFuel)))
	if err != nil {
		fail(c, logger, "rob lookup", err)
		return 0, "", false
	}
	return shipID, cat, true
}

// GET /lookup/last-rob?shipId=&bunkerCategory=&itemTypeKey=
func (h *BunkeringHandler) LastROB(c *gin.Context) {
	shipID, cat, ok := robQuery(c, h.logger)
	if !ok {
		return
	}
	item := c.Query("itemTypeKey")
	if item == "" {
		resp.Error(c, http.StatusBadRequest, "itemTypeKey is required", "")
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.rob.LastROB(ctx, shipID, cat, item)
	if err != nil {
		fail(c, h.logger, "last rob", err)
		return
	}
	resp.OK(c, b)
}

// GET /lookup/rob-items?shipId=&bunkerCategory= lists items still on board.
func (h *BunkeringHandler) ROBItems(c *gin.Context) {
	shipID, cat, ok := robQuery(c, h.logger)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.rob.PositiveItems(ctx, shipID, cat)
	if err != nil {
		fail(c, h.logger, "rob items", err)
		return
	}
	resp.OK(c, list)
}

// GET /lookup/rob-history?shipId=&bunkerCategory=&itemTypeKey=&bdnNumber=&limit=
func (h *BunkeringHandler) ROBHistory(c *gin.Context) {
	shipID, cat, ok := robQuery(c, h.logger)
	if !ok {
		return
	}
	k := rob.Key{ShipID: shipID, Category: cat, ItemType: c.Query("itemTypeKey"), BDNNumber: c.Query("bdnNumber")}
	if k.ItemType == "" {
		resp.Error(c, http.StatusBadRequest, "itemTypeKey is required", "")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	ctx, cancel := reqCtx(c)
	defer cancel()
	rows, err := h.rob.History(ctx, k, limit)
	if err != nil {
		fail(c, h.logger, "rob history", err)
		return
	}
	resp.OK(c, rows)
}

// GET /lookup/bdn-numbers?shipId=
func (h *BunkeringHandler) BDNNumbers(c *gin.Context) {
	shipID := queryInt64(c, "shipId")
	if shipID <= 0 {
		resp.Error(c, http.StatusBadRequest, "shipId is required", "")
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.bunkers.BDNNumbers(ctx, shipID)
	if err != nil {
		fail(c, h.logger, "bdn numbers", err)
		return
	}
	resp.OK(c, list)
}

// GET /lookup/bdn-details/:bdnNumber?shipId=
func (h *BunkeringHandler) BDNDetails(c *gin.Context) {
	shipID := queryInt64(c, "shipId")
	if shipID <= 0 {
		resp.Error(c, http.StatusBadRequest, "shipId is required", "")
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.bunkers.ByBDN(ctx, shipID, c.Param("bdnNumber"))
	if err != nil {
		fail(c, h.logger, "bdn details", err)
		return
	}
	if len(list) == 0 {
		fail(c, h.logger, "bdn details", bunkers.ErrNotFound)
		return
	}
	resp.OK(c, list)
}

// GET /lookup/bdn?shipId=&bunkerCategory=&fuelType= lists delivery notes with quantity left.
func (h *BunkeringHandler) PositiveBDNs(c *gin.Context) {
	shipID, cat, ok := robQuery(c, h.logger)
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.rob.PositiveBDNs(ctx, shipID, cat, c.Query("fuelType"))
	if err != nil {
		fail(c, h.logger, "positive bdns", err)
		return
	}
	resp.OK(c, list)
}

// GET /lookup/rob?shipId=&bdnNumber=
func (h *BunkeringHandler) BDNBalance(c *gin.Context) {
	shipID := queryInt64(c, "shipId")
	bdn := c.Query("bdnNumber")
	if shipID <= 0 || bdn == "" {
		resp.Error(c, http.StatusBadRequest, "shipId and bdnNumber are required", "")
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.rob.BDNBalance(ctx, shipID, bdn)
	if err != nil {
		fail(c, h.logger, "bdn balance", err)
		return
	}
	resp.OK(c, list)
}
