package compliance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/ports"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/reports"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/vessels"
)

var ErrShipNotFound = errors.New("ship not found")

// PGSource reads compliance inputs from the reporting tables.
type PGSource struct {
	pg *pgxpool.Pool
}

func NewPGSource(pg *pgxpool.Pool) *PGSource { return &PGSource{pg: pg} }

func (s *PGSource) Ship(ctx context.Context, shipID int64) (ShipInfo, error) {
	ship, err := vessels.GetShip(ctx, s.pg, shipID)
	if errors.Is(err, vessels.ErrNotFound) {
		return ShipInfo{}, ErrShipNotFound
	}
	if err != nil {
		return ShipInfo{}, err
	}
	info := ShipInfo{ID: ship.ID, Name: ship.ShipName, ShipType: ship.VesselTypeKey}
	if ship.CapacityDWT != nil {
		info.DWT = *ship.CapacityDWT
	}
	if ship.CapacityGT != nil {
		info.GT = *ship.CapacityGT
	}
	return info, nil
}

// Legs returns the ship's submitted reports in [from, to) with their fuel per type.
func (s *PGSource) Legs(ctx context.Context, shipID int64, from, to time.Time) ([]Leg, error) {
	const q = `
SELECT r.id, r.report_datetime_utc, COALESCE(r.from_port_code, ''), COALESCE(r.to_port_code, ''),
  COALESCE(r.current_port_code, ''), COALESCE(r.distance_sailed_nm, 0)::float8, COALESCE(r.steaming_hours, 0)::float8,
  f.fuel_type_key, COALESCE(SUM(f.consumed_mt), 0)::float8
FROM reports r
LEFT JOIN report_fuel_consumption f ON f.report_id = r.id
WHERE r.ship_id = $1 AND r.status = $2 AND r.report_datetime_utc >= $3 AND r.report_datetime_utc < $4
GROUP BY r.id, f.fuel_type_key
ORDER BY r.report_datetime_utc, r.id`
	rows, err := s.pg.Query(ctx, q, shipID, reports.StatusSubmitted, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Leg
	for rows.Next() {
		var (
			l        Leg
			fuelType *string
			tonnes   float64
		)
		if err := rows.Scan(&l.ReportID, &l.ReportDate, &l.FromPort, &l.ToPort, &l.AtPort, &l.DistanceNM, &l.Hours,
			&fuelType, &tonnes); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ReportID != l.ReportID {
			l.Fuel = map[string]float64{}
			out = append(out, l)
		}
		if fuelType != nil {
			out[len(out)-1].Fuel[*fuelType] += tonnes
		}
	}
	return out, rows.Err()
}

// Scope resolves the EU or UK indicator of the given ports. Unknown ports are out of scope.
func (s *PGSource) Scope(ctx context.Context, scheme Scheme, codes []string) (PortScope, error) {
	byCode, err := ports.ByCodes(ctx, s.pg, codes)
	if err != nil {
		return nil, err
	}
	return func(code string) bool {
		p, ok := byCode[ports.NormalizeCode(code)]
		if !ok {
			return false
		}
		if scheme == SchemeUK {
			return p.UKInd
		}
		return p.EUInd
	}, nil
}
