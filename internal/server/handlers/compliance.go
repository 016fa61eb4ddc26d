package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/compliance"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
)

type ComplianceService interface {
	CII(ctx context.Context, shipID int64, year int) (compliance.CIIResult, error)
	Fleet(ctx context.Context, scheme compliance.Scheme, shipIDs []int64, from, to time.Time) ([]compliance.FleetRow, error)
}

// ComplianceHandler is mounted on the reporting service.
type ComplianceHandler struct {
	logger *zap.Logger
	svc    ComplianceService
}

func NewComplianceHandler(logger *zap.Logger, svc ComplianceService) *ComplianceHandler {
	return &ComplianceHandler{logger: logger, svc: svc}
}

func (h *ComplianceHandler) Register(g gin.IRoutes) {
	g.POST("/calculate/cii", h.CalculateCII)
	g.POST("/preview/:report", h.Preview)
	g.POST("/generate/:report", h.Generate)
}

// ciiReq either names a ship and year, computed from submitted reports,
// or carries the raw figures.
type ciiReq struct {
	ShipID int64 `json:"shipId"`
	compliance.CIIInput
}

func (h *ComplianceHandler) CalculateCII(c *gin.Context) {
	var req ciiReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	if req.Year == 0 {
		req.Year = time.Now().UTC().Year()
	}
	var (
		res compliance.CIIResult
		err error
	)
	if req.ShipID > 0 {
		ctx, cancel := reqCtx(c)
		defer cancel()
		res, err = h.svc.CII(ctx, req.ShipID, req.Year)
	} else {
		res, err = compliance.CalculateCII(req.CIIInput)
	}
	if err != nil {
		fail(c, h.logger, "calculate cii", err)
		return
	}
	resp.OK(c, res)
}

type periodReq struct {
	ShipIDs  []int64 `json:"shipIds" binding:"required,min=1"`
	FromDate string  `json:"fromDate" binding:"required"`
	ToDate   string  `json:"toDate" binding:"required"`
}

// reportKind splits "eumrv", "ukets" and friends into scheme and kind.
func reportKind(name string) (compliance.Scheme, string, error) {
	name = strings.ToLower(name)
	if len(name) != 5 {
		return "", "", fmt.Errorf("%w: unknown report %q", compliance.ErrInvalid, name)
	}
	kind := name[2:]
	if kind != "mrv" && kind != "ets" {
		return "", "", fmt.Errorf("%w: unknown report %q", compliance.ErrInvalid, name)
	}
	scheme, err := compliance.ParseScheme(name[:2])
	return scheme, kind, err
}

// run parses the request and computes the fleet rows. toDate is inclusive.
func (h *ComplianceHandler) run(c *gin.Context) (string, []compliance.FleetRow, bool) {
	scheme, kind, err := reportKind(c.Param("report"))
	if err != nil {
		fail(c, h.logger, "compliance report", err)
		return "", nil, false
	}
	var req periodReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return "", nil, false
	}
	from, err := time.Parse(time.DateOnly, req.FromDate)
	if err != nil {
		resp.Error(c, http.StatusBadRequest, "invalid fromDate", err.Error())
		return "", nil, false
	}
	to, err := time.Parse(time.DateOnly, req.ToDate)
	if err != nil {
		resp.Error(c, http.StatusBadRequest, "invalid toDate", err.Error())
		return "", nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	rows, err := h.svc.Fleet(ctx, scheme, req.ShipIDs, from, to.AddDate(0, 0, 1))
	if err != nil {
		fail(c, h.logger, "compliance report", err)
		return "", nil, false
	}
	if kind == "mrv" {
		for i := range rows {
			rows[i].ETS = nil
		}
	}
	name := fmt.Sprintf("%s%s_%s_%s", strings.ToLower(string(scheme)), kind, req.FromDate, req.ToDate)
	return name, rows, true
}

func (h *ComplianceHandler) Preview(c *gin.Context) {
	_, rows, ok := h.run(c)
	if !ok {
		return
	}
	resp.OK(c, rows)
}

func (h *ComplianceHandler) Generate(c *gin.Context) {
	name, rows, ok := h.run(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := compliance.WriteCSV(&buf, rows); err != nil {
		fail(c, h.logger, "compliance csv", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
