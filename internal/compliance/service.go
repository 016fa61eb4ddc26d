package compliance

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ShipInfo is the ship data the calculators need.
type ShipInfo struct {
	ID       int64
	Name     string
	ShipType string
	DWT      float64
	GT       float64
}

// Source loads ships, submitted report legs and port scopes.
type Source interface {
	Ship(ctx context.Context, shipID int64) (ShipInfo, error)
	Legs(ctx context.Context, shipID int64, from, to time.Time) ([]Leg, error)
	Scope(ctx context.Context, scheme Scheme, codes []string) (PortScope, error)
}

type Service struct {
	src    Source
	logger *zap.Logger
	limit  int
}

// NewService runs at most limit ships concurrently in fleet summaries.
func NewService(src Source, logger *zap.Logger, limit int) *Service {
	if limit <= 0 {
		limit = 4
	}
	return &Service{src: src, logger: logger, limit: limit}
}

func checkPeriod(from, to time.Time) error {
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return fmt.Errorf("%w: period must have from < to", ErrInvalid)
	}
	return nil
}

func (s *Service) MRV(ctx context.Context, scheme Scheme, shipID int64, from, to time.Time) (MRVSummary, error) {
	if err := checkPeriod(from, to); err != nil {
		return MRVSummary{}, err
	}
	legs, err := s.src.Legs(ctx, shipID, from, to)
	if err != nil {
		return MRVSummary{}, err
	}
	scope, err := s.src.Scope(ctx, scheme, portCodes(legs))
	if err != nil {
		return MRVSummary{}, err
	}
	return Aggregate(scheme, from, to, legs, scope)
}

func (s *Service) ETS(ctx context.Context, scheme Scheme, shipID int64, from, to time.Time) (ETSSummary, error) {
	m, err := s.MRV(ctx, scheme, shipID, from, to)
	if err != nil {
		return ETSSummary{}, err
	}
	return ETS(m), nil
}

// CII rates the ship over the calendar year from its submitted reports.
func (s *Service) CII(ctx context.Context, shipID int64, year int) (CIIResult, error) {
	ship, err := s.src.Ship(ctx, shipID)
	if err != nil {
		return CIIResult{}, err
	}
	from := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	legs, err := s.src.Legs(ctx, shipID, from, from.AddDate(1, 0, 0))
	if err != nil {
		return CIIResult{}, err
	}
	dist, fuel := Totals(legs)
	return CalculateCII(CIIInput{ShipType: ship.ShipType, DWT: ship.DWT, GT: ship.GT, DistanceNM: dist, Fuel: fuel, Year: year})
}

// FleetRow is one ship's line in a fleet summary. A ship whose figures
// cannot be computed keeps its row with Error set.
type FleetRow struct {
	ShipID   int64       `json:"shipId"`
	ShipName string      `json:"shipName"`
	MRV      *MRVSummary `json:"mrv,omitempty"`
	ETS      *ETSSummary `json:"ets,omitempty"`
	CII      *CIIResult  `json:"cii,omitempty"`
	CIIError string      `json:"ciiError,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Fleet computes MRV, ETS and CII for each ship concurrently. The CII year
// is the year the period starts in. Only context cancellation and source
// failures abort the whole run.
func (s *Service) Fleet(ctx context.Context, scheme Scheme, shipIDs []int64, from, to time.Time) ([]FleetRow, error) {
	if err := checkPeriod(from, to); err != nil {
		return nil, err
	}
	rows := make([]FleetRow, len(shipIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, id := range shipIDs {
		g.Go(func() error {
			row, err := s.fleetRow(gctx, scheme, id, from, to)
			if err != nil {
				return fmt.Errorf("ship %d: %w", id, err)
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) fleetRow(ctx context.Context, scheme Scheme, shipID int64, from, to time.Time) (FleetRow, error) {
	ship, err := s.src.Ship(ctx, shipID)
	switch {
	case errors.Is(err, ErrShipNotFound):
		return FleetRow{ShipID: shipID, Error: err.Error()}, nil
	case err != nil:
		return FleetRow{}, err
	}
	row := FleetRow{ShipID: ship.ID, ShipName: ship.Name}
	m, err := s.MRV(ctx, scheme, shipID, from, to)
	switch {
	case errors.Is(err, ErrUnknownFuel), errors.Is(err, ErrInvalid):
		row.Error = err.Error()
		return row, nil
	case err != nil:
		return FleetRow{}, err
	}
	e := ETS(m)
	row.MRV, row.ETS = &m, &e

	cii, err := s.CII(ctx, shipID, from.Year())
	switch {
	case err == nil:
		row.CII = &cii
	case errors.Is(err, ErrUnknownShipType), errors.Is(err, ErrUnknownFuel), errors.Is(err, ErrInvalid):
		s.logger.Debug("cii unavailable", zap.Int64("ship_id", shipID), zap.Error(err))
		row.CIIError = err.Error()
	default:
		return FleetRow{}, err
	}
	return row, nil
}

var fleetHeader = []string{
	"Ship", "Scheme", "From", "To", "Legs In Scope", "Distance (nm)", "Hours", "CO2 (t)",
	"ETS In-Scope CO2 (t)", "Phase-In", "Allowances", "CII Attained", "CII Required", "CII Rating", "Error",
}

// WriteCSV renders a fleet summary for download.
func WriteCSV(w io.Writer, rows []FleetRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fleetHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := make([]string, len(fleetHeader))
		rec[0] = r.ShipName
		if rec[0] == "" {
			rec[0] = "#" + strconv.FormatInt(r.ShipID, 10)
		}
		if r.MRV != nil {
			rec[1] = string(r.MRV.Scheme)
			rec[2] = r.MRV.From.Format(time.DateOnly)
			rec[3] = r.MRV.To.Format(time.DateOnly)
			rec[4] = strconv.Itoa(r.MRV.Legs)
			rec[5] = num(r.MRV.DistanceNM)
			rec[6] = num(r.MRV.Hours)
			rec[7] = num(r.MRV.CO2Tonnes)
		}
		if r.ETS != nil {
			rec[8] = num(r.ETS.InScopeCO2)
			rec[9] = num(r.ETS.PhaseIn)
			rec[10] = num(r.ETS.Allowances)
		}
		if r.CII != nil {
			rec[11] = num(r.CII.Attained)
			rec[12] = num(r.CII.Required)
			rec[13] = r.CII.Rating
		}
		rec[14] = r.Error
		if rec[14] == "" {
			rec[14] = r.CIIError
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', 3, 64) }

func portCodes(legs []Leg) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range legs {
		for _, c := range []string{l.FromPort, l.ToPort, l.AtPort} {
			if c != "" && !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}
