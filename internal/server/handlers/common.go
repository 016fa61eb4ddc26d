package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/attachments"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/bunkers"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/compliance"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/lookups"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/machinery"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/metrics"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/ports"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/reports"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/rob"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/mw"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/store"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/tanks"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/tasks"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/team"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/users"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/util"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/vessels"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/voyages"
)

const requestTimeout = 5 * time.Second

// reqCtx bounds handler work by the budget mw.Deadline chose for the
// request, requestTimeout when none was set.
func reqCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	d := c.GetDuration(mw.CtxTimeout)
	if d <= 0 {
		d = requestTimeout
	}
	return context.WithTimeout(c.Request.Context(), d)
}

// idParam parses a positive integer path parameter or answers 400.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		resp.Error(c, http.StatusBadRequest, "invalid "+name, c.Param(name))
		return 0, false
	}
	return id, true
}

func queryInt64(c *gin.Context, name string) int64 {
	v, _ := strconv.ParseInt(c.Query(name), 10, 64)
	return v
}

var errStatus = []struct {
	target error
	code   int
}{
	{vessels.ErrNotFound, http.StatusNotFound},
	{vessels.ErrFleetNotFound, http.StatusNotFound},
	{ports.ErrNotFound, http.StatusNotFound},
	{voyages.ErrNotFound, http.StatusNotFound},
	{voyages.ErrLegNotFound, http.StatusNotFound},
	{tanks.ErrNotFound, http.StatusNotFound},
	{machinery.ErrNotFound, http.StatusNotFound},
	{bunkers.ErrNotFound, http.StatusNotFound},
	{team.ErrNotFound, http.StatusNotFound},
	{tasks.ErrNotFound, http.StatusNotFound},
	{reports.ErrNotFound, http.StatusNotFound},
	{users.ErrNotFound, http.StatusNotFound},
	{attachments.ErrNotFound, http.StatusNotFound},
	{blob.ErrNotFound, http.StatusNotFound},
	{compliance.ErrShipNotFound, http.StatusNotFound},

	{rob.ErrInsufficientROB, http.StatusConflict},
	{reports.ErrNotDraft, http.StatusConflict},
	{bunkers.ErrInactive, http.StatusConflict},
	{vessels.ErrConflict, http.StatusConflict},
	{vessels.ErrFleetConflict, http.StatusConflict},
	{ports.ErrConflict, http.StatusConflict},
	{voyages.ErrConflict, http.StatusConflict},
	{tanks.ErrConflict, http.StatusConflict},
	{team.ErrConflict, http.StatusConflict},
	{users.ErrConflict, http.StatusConflict},

	{attachments.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{attachments.ErrUnsupportedType, http.StatusUnsupportedMediaType},

	{users.ErrInvalidCredentials, http.StatusUnauthorized},
	{users.ErrInvalidRefresh, http.StatusUnauthorized},
	{users.ErrInactive, http.StatusForbidden},
	{users.ErrTooManyAttempts, http.StatusTooManyRequests},
	{users.ErrInvalidOTP, http.StatusBadRequest},
	{store.ErrOTPCooldown, http.StatusTooManyRequests},
	{util.ErrWeakPassword, http.StatusBadRequest},

	{attachments.ErrFileRequired, http.StatusBadRequest},
	{blob.ErrInvalidKey, http.StatusBadRequest},
	{vessels.ErrInvalid, http.StatusBadRequest},
	{ports.ErrInvalid, http.StatusBadRequest},
	{voyages.ErrInvalid, http.StatusBadRequest},
	{tanks.ErrInvalid, http.StatusBadRequest},
	{machinery.ErrInvalid, http.StatusBadRequest},
	{bunkers.ErrInvalid, http.StatusBadRequest},
	{team.ErrInvalid, http.StatusBadRequest},
	{tasks.ErrInvalid, http.StatusBadRequest},
	{reports.ErrInvalid, http.StatusBadRequest},
	{users.ErrInvalid, http.StatusBadRequest},
	{rob.ErrInvalidOp, http.StatusBadRequest},
	{rob.ErrInvalidCategory, http.StatusBadRequest},
	{rob.ErrInvalidQuantity, http.StatusBadRequest},
	{compliance.ErrInvalid, http.StatusBadRequest},
	{compliance.ErrUnknownShipType, http.StatusBadRequest},
	{compliance.ErrUnknownFuel, http.StatusBadRequest},
	{lookups.ErrUnknownCategory, http.StatusBadRequest},
}

var statusMessage = map[int]string{
	http.StatusBadRequest:            "Validation failed",
	http.StatusUnauthorized:          "Unauthorized",
	http.StatusForbidden:             "Forbidden",
	http.StatusNotFound:              "Not found",
	http.StatusConflict:              "Conflict",
	http.StatusRequestEntityTooLarge: "File too large",
	http.StatusUnsupportedMediaType:  "Unsupported file type",
	http.StatusTooManyRequests:       "Too many requests",
}

// fail maps domain errors to a status and writes the {message, error} body.
// Unmapped errors are logged and answered with 500.
func fail(c *gin.Context, logger *zap.Logger, op string, err error) {
	for _, e := range errStatus {
		if errors.Is(err, e.target) {
			resp.Error(c, e.code, statusMessage[e.code], err.Error())
			return
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn(op+" timed out", zap.Error(err))
		resp.Error(c, http.StatusGatewayTimeout, "Request timed out", "")
		return
	}
	logger.Error(op+" failed", zap.Error(err), zap.String("path", c.FullPath()))
	resp.Error(c, http.StatusInternalServerError, "Internal server error", "")
}

// bindMultipart reads a create/update body sent either as JSON or as
// multipart/form-data with a "data" JSON field and files under fileField.
func bindMultipart(c *gin.Context, dst any, fileField string) ([]*multipart.FileHeader, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, c.ShouldBindJSON(dst)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	if raw := form.Value["data"]; len(raw) > 0 && strings.TrimSpace(raw[0]) != "" {
		if err := json.Unmarshal([]byte(raw[0]), dst); err != nil {
			return nil, err
		}
	}
	return form.File[fileField], nil
}

// singleFile returns the first upload under field, nil when absent.
func singleFile(c *gin.Context, field string) *multipart.FileHeader {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil
	}
	return fh
}

// countROB feeds ledger rows written by a committed transaction into metrics.
func countROB(m *metrics.Registry, entries []rob.Entry) {
	type k struct{ ledger, mode string }
	n := map[k]int{}
	for _, e := range entries {
		ledger := "vessel"
		if e.BDNNumber != "" {
			ledger = "bdn"
		}
		n[k{ledger, e.Mode}]++
	}
	for key, v := range n {
		m.AddROBEntries(key.ledger, key.mode, v)
	}
}

// dropBlob removes a replaced image; failures only leave an orphan behind.
func dropBlob(ctx context.Context, bs blob.Store, logger *zap.Logger, key *string) {
	if key == nil || *key == "" {
		return
	}
	if _, err := bs.Delete(context.WithoutCancel(ctx), *key); err != nil {
		logger.Warn("old image delete failed", zap.String("key", *key), zap.Error(err))
	}
}

func badPayload(c *gin.Context, err error) {
	resp.Error(c, http.StatusBadRequest, "invalid payload", err.Error())
}
