package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/compliance"
)

type fakeCompliance struct {
	scheme   compliance.Scheme
	from, to time.Time
	ids      []int64
	ciiShip  int64
	ciiYear  int
}

func (f *fakeCompliance) CII(_ context.Context, shipID int64, year int) (compliance.CIIResult, error) {
	if shipID == 404 {
		return compliance.CIIResult{}, compliance.ErrShipNotFound
	}
	f.ciiShip, f.ciiYear = shipID, year
	return compliance.CIIResult{Year: year, Rating: "C"}, nil
}

func (f *fakeCompliance) Fleet(_ context.Context, scheme compliance.Scheme, ids []int64, from, to time.Time) ([]compliance.FleetRow, error) {
	f.scheme, f.ids, f.from, f.to = scheme, ids, from, to
	rows := make([]compliance.FleetRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, compliance.FleetRow{
			ShipID:   id,
			ShipName: "MV Test",
			MRV:      &compliance.MRVSummary{Scheme: scheme, From: from, To: to, Legs: 2, CO2Tonnes: 100},
			ETS:      &compliance.ETSSummary{Scheme: scheme, InScopeCO2: 75, PhaseIn: 0.7, Allowances: 52.5},
		})
	}
	return rows, nil
}

func TestReportKind(t *testing.T) {
	cases := []struct {
		in     string
		scheme compliance.Scheme
		kind   string
		ok     bool
	}{
		{"eumrv", compliance.SchemeEU, "mrv", true},
		{"EUETS", compliance.SchemeEU, "ets", true},
		{"ukmrv", compliance.SchemeUK, "mrv", true},
		{"ukets", compliance.SchemeUK, "ets", true},
		{"usmrv", "", "", false},
		{"eucii", "", "", false},
		{"mrv", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			scheme, kind, err := reportKind(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, compliance.ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.scheme, scheme)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestCompliancePreview(t *testing.T) {
	svc := &fakeCompliance{}
	h := newEngine(vesselUser, NewComplianceHandler(zap.NewNop(), svc).Register)

	w := doJSON(t, h, http.MethodPost, "/preview/ukmrv", gin.H{"shipIds": []int64{7, 8}, "fromDate": "2025-01-01", "toDate": "2025-12-31"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, compliance.SchemeUK, svc.scheme)
	assert.Equal(t, []int64{7, 8}, svc.ids)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), svc.to, "toDate is inclusive")

	var rows []compliance.FleetRow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].ETS, "MRV reports carry no ETS figures")
	require.NotNil(t, rows[0].MRV)
	assert.Equal(t, 2, rows[0].MRV.Legs)
}

func TestComplianceGenerateCSV(t *testing.T) {
	svc := &fakeCompliance{}
	h := newEngine(vesselUser, NewComplianceHandler(zap.NewNop(), svc).Register)

	w := doJSON(t, h, http.MethodPost, "/generate/euets", gin.H{"shipIds": []int64{7}, "fromDate": "2025-01-01", "toDate": "2025-06-30"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="euets_2025-01-01_2025-06-30.csv"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))

	recs, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Ship", recs[0][0])
	assert.Equal(t, "MV Test", recs[1][0])
	assert.Equal(t, "EU", recs[1][1])
}

func TestComplianceValidation(t *testing.T) {
	h := newEngine(vesselUser, NewComplianceHandler(zap.NewNop(), &fakeCompliance{}).Register)

	w := doJSON(t, h, http.MethodPost, "/preview/xxmrv", gin.H{"shipIds": []int64{7}, "fromDate": "2025-01-01", "toDate": "2025-12-31"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPost, "/preview/eumrv", gin.H{"shipIds": []int64{}, "fromDate": "2025-01-01", "toDate": "2025-12-31"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPost, "/preview/eumrv", gin.H{"shipIds": []int64{7}, "fromDate": "01/01/2025", "toDate": "2025-12-31"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid fromDate", errorBody(t, w).Message)
}

func TestCalculateCIIEndpoint(t *testing.T) {
	svc := &fakeCompliance{}
	h := newEngine(vesselUser, NewComplianceHandler(zap.NewNop(), svc).Register)

	w := doJSON(t, h, http.MethodPost, "/calculate/cii", gin.H{"shipId": 7, "year": 2024})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 7, svc.ciiShip)
	assert.Equal(t, 2024, svc.ciiYear)

	w = doJSON(t, h, http.MethodPost, "/calculate/cii", gin.H{"shipId": 7})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Now().UTC().Year(), svc.ciiYear)

	w = doJSON(t, h, http.MethodPost, "/calculate/cii", gin.H{"shipId": 404, "year": 2024})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, h, http.MethodPost, "/calculate/cii", gin.H{
		"shipType": "BULK_CARRIER", "dwt": 80000, "distanceNm": 60000, "fuel": gin.H{"HFO": 10000}, "year": 2025,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var res compliance.CIIResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "E", res.Rating)
	assert.InDelta(t, 31140, res.CO2Tonnes, 1e-6)

	w = doJSON(t, h, http.MethodPost, "/calculate/cii", gin.H{"shipType": "SUBMARINE", "dwt": 1, "distanceNm": 1, "year": 2025})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
