package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/lookups"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/metrics"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/reports"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/rob"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/mw"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/vessels"
)

type ReportStore interface {
	CreateInitial(ctx context.Context, in reports.Input, actor string) (int64, error)
	Get(ctx context.Context, id int64) (*reports.Report, error)
	ListByShip(ctx context.Context, f reports.Filter) (reports.Page, error)
	Latest(ctx context.Context, shipID int64) (*reports.Report, error)
	Preceding(ctx context.Context, id int64) (*reports.Report, error)
	Update(ctx context.Context, id int64, p reports.Patch) error
	UpdateVoyageDetails(ctx context.Context, id int64, v reports.VoyageDetails) error
	Delete(ctx context.Context, id int64) error
	Submit(ctx context.Context, id int64) ([]rob.Entry, error)
	LatestVesselReports(ctx context.Context, fleetID int64) ([]reports.VesselSnapshot, error)
}

type FleetLister interface {
	ListFleets(ctx context.Context) ([]vessels.Fleet, error)
}

type ReportsHandler struct {
	logger  *zap.Logger
	reports ReportStore
	fleets  FleetLister
	lookups Lookups
	metrics *metrics.Registry
}

func NewReportsHandler(logger *zap.Logger, r ReportStore, fleets FleetLister, lk Lookups, m *metrics.Registry) *ReportsHandler {
	return &ReportsHandler{logger: logger, reports: r, fleets: fleets, lookups: lk, metrics: m}
}

func (h *ReportsHandler) Register(g gin.IRoutes) {
	g.GET("/report-types", lookupList(h.logger, h.lookups, lookups.ReportTypes))
	g.POST("/ship/:shipId/reports/initial", h.CreateInitial)
	g.GET("/ship/:shipId/reports", h.ListByShip)
	g.GET("/ship/:shipId/reports/latest", h.Latest)
	g.GET("/reports/:id", h.Get)
	g.GET("/reports/preceding/:id", h.Preceding)
	g.PUT("/reports/:id", h.Update)
	g.PUT("/reports/:id/voyage-details", h.UpdateVoyageDetails)
	g.PUT("/reports/:id/submit", h.Submit)
	g.DELETE("/reports/:id", h.Delete)

	g.GET("/dashboard/latest-vessel-reports", h.LatestVesselReports)
	g.GET("/dashboard/fleets", h.Fleets)
}

// POST /ship/:shipId/reports/initial opens a draft; the path ship wins over the body.
func (h *ReportsHandler) CreateInitial(c *gin.Context) {
	shipID, ok := idParam(c, "shipId")
	if !ok {
		return
	}
	var in reports.Input
	in.ShipID = shipID
	if err := c.ShouldBindJSON(&in); err != nil {
		badPayload(c, err)
		return
	}
	in.ShipID = shipID
	ctx, cancel := reqCtx(c)
	defer cancel()
	id, err := h.reports.CreateInitial(ctx, in, mw.Actor(c))
	if err != nil {
		fail(c, h.logger, "create report", err)
		return
	}
	resp.Created(c, "Report draft created.", id)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GET /ship/:shipId/reports?reportType=&status=&voyageId=&from=&to=&page=&limit=
func (h *ReportsHandler) ListByShip(c *gin.Context) {
	shipID, ok := idParam(c, "shipId")
	if !ok {
		return
	}
	from, err := parseDate(c.Query("from"))
	if err != nil {
		resp.Error(c, http.StatusBadRequest, "invalid from date", err.Error())
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		resp.Error(c, http.StatusBadRequest, "invalid to date", err.Error())
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	f := reports.Filter{
		ShipID:     shipID,
		ReportType: c.Query("reportType"),
		Status:     c.Query("status"),
		VoyageID:   queryInt64(c, "voyageId"),
		From:       from,
		To:         to,
		Page:       page,
		Limit:      limit,
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.reports.ListByShip(ctx, f)
	if err != nil {
		fail(c, h.logger, "list reports", err)
		return
	}
	resp.OK(c, p)
}

func (h *ReportsHandler) Latest(c *gin.Context) {
	shipID, ok := idParam(c, "shipId")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.reports.Latest(ctx, shipID)
	if err != nil {
		fail(c, h.logger, "latest report", err)
		return
	}
	resp.OK(c, r)
}

func (h *ReportsHandler) Get(c *gin.Context) {
	h.one(c, "get report", h.reports.Get)
}

func (h *ReportsHandler) Preceding(c *gin.Context) {
	h.one(c, "preceding report", h.reports.Preceding)
}

func (h *ReportsHandler) one(c *gin.Context, op string, load func(context.Context, int64) (*reports.Report, error)) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := load(ctx, id)
	if err != nil {
		fail(c, h.logger, op, err)
		return
	}
	resp.OK(c, r)
}

func (h *ReportsHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var p reports.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.reports.Update(ctx, id, p); err != nil {
		fail(c, h.logger, "update report", err)
		return
	}
	resp.Message(c, "Report saved.")
}

func (h *ReportsHandler) UpdateVoyageDetails(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var v reports.VoyageDetails
	if err := c.ShouldBindJSON(&v); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.reports.UpdateVoyageDetails(ctx, id, v); err != nil {
		fail(c, h.logger, "update voyage details", err)
		return
	}
	resp.Message(c, "Voyage details updated.")
}

// PUT /reports/:id/submit posts consumption to the ROB ledgers. A second
// submit answers 409 and writes nothing.
func (h *ReportsHandler) Submit(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	entries, err := h.reports.Submit(ctx, id)
	if err != nil {
		fail(c, h.logger, "submit report", err)
		return
	}
	countROB(h.metrics, entries)
	h.logger.Info("report submitted", zap.Int64("report_id", id), zap.Int("rob_entries", len(entries)), zap.String("by", mw.Actor(c)))
	resp.Message(c, "Report submitted.")
}

func (h *ReportsHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.reports.Delete(ctx, id); err != nil {
		fail(c, h.logger, "delete report", err)
		return
	}
	resp.Message(c, "Report deleted.")
}

// GET /dashboard/latest-vessel-reports?fleetId=
func (h *ReportsHandler) LatestVesselReports(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.reports.LatestVesselReports(ctx, queryInt64(c, "fleetId"))
	if err != nil {
		fail(c, h.logger, "latest vessel reports", err)
		return
	}
	resp.OK(c, list)
}

func (h *ReportsHandler) Fleets(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.fleets.ListFleets(ctx)
	if err != nil {
		fail(c, h.logger, "dashboard fleets", err)
		return
	}
	resp.OK(c, list)
}
