package vessels

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/db"
)

type Repo struct {
	pg *pgxpool.Pool
}

func NewRepo(pg *pgxpool.Pool) *Repo { return &Repo{pg: pg} }

const shipCols = `id, imo_number, ship_name, short_name, vessel_type_key, capacity_dwt::float8, capacity_gt::float8,
  net_tonnage::float8, year_of_build, flag_state, port_of_registry, call_sign, mmsi, eedi::float8, eexi::float8,
  class_society, length_overall::float8, breadth::float8, depth::float8, displacement::float8, ice_class, image_key,
  is_active, created_at, updated_at`

func (r *Repo) List(ctx context.Context, activeOnly bool) ([]Ship, error) {
	q := `SELECT ` + shipCols + ` FROM ships`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY ship_name`
	rows, err := r.pg.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Ship{}
	for rows.Next() {
		s, err := scanShip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (*Ship, error) {
	return scanShip(r.pg.QueryRow(ctx, `SELECT `+shipCols+` FROM ships WHERE id = $1`, id))
}

// GetShip reads a ship through q so callers can use it inside a transaction.
func GetShip(ctx context.Context, q db.DBTX, id int64) (*Ship, error) {
	return scanShip(q.QueryRow(ctx, `SELECT `+shipCols+` FROM ships WHERE id = $1`, id))
}

func (r *Repo) Create(ctx context.Context, p ShipPatch) (int64, error) {
	if err := p.Validate(true); err != nil {
		return 0, err
	}
	const q = `
INSERT INTO ships (imo_number, ship_name, short_name, vessel_type_key, capacity_dwt, capacity_gt, net_tonnage,
  year_of_build, flag_state, port_of_registry, call_sign, mmsi, eedi, eexi, class_society, length_overall,
  breadth, depth, displacement, ice_class, image_key)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
RETURNING id`
	var id int64
	err := r.pg.QueryRow(ctx, q, p.IMONumber, p.ShipName, p.ShortName, p.VesselTypeKey, p.CapacityDWT, p.CapacityGT,
		p.NetTonnage, p.YearOfBuild, p.FlagState, p.PortOfRegistry, p.CallSign, p.MMSI, p.EEDI, p.EEXI, p.ClassSociety,
		p.LengthOverall, p.Breadth, p.Depth, p.Displacement, p.IceClass, p.ImagePath).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, ErrConflict
	}
	return id, err
}

// Update applies the non-nil fields and returns the previous image key so the caller can drop the old blob.
func (r *Repo) Update(ctx context.Context, id int64, p ShipPatch) (oldImage *string, err error) {
	if err := p.Validate(false); err != nil {
		return nil, err
	}
	const q = `
UPDATE ships s SET
  imo_number = COALESCE($2, s.imo_number),
  ship_name = COALESCE($3, s.ship_name),
  short_name = COALESCE($4, s.short_name),
  vessel_type_key = COALESCE($5, s.vessel_type_key),
  capacity_dwt = COALESCE($6, s.capacity_dwt),
  capacity_gt = COALESCE($7, s.capacity_gt),
  net_tonnage = COALESCE($8, s.net_tonnage),
  year_of_build = COALESCE($9, s.year_of_build),
  flag_state = COALESCE($10, s.flag_state),
  port_of_registry = COALESCE($11, s.port_of_registry),
  call_sign = COALESCE($12, s.call_sign),
  mmsi = COALESCE($13, s.mmsi),
  eedi = COALESCE($14, s.eedi),
  eexi = COALESCE($15, s.eexi),
  class_society = COALESCE($16, s.class_society),
  length_overall = COALESCE($17, s.length_overall),
  breadth = COALESCE($18, s.breadth),
  depth = COALESCE($19, s.depth),
  displacement = COALESCE($20, s.displacement),
  ice_class = COALESCE($21, s.ice_class),
  image_key = COALESCE($22, s.image_key),
  updated_at = now()
FROM ships old
WHERE s.id = $1 AND old.id = s.id
RETURNING old.image_key`
	err = r.pg.QueryRow(ctx, q, id, p.IMONumber, p.ShipName, p.ShortName, p.VesselTypeKey, p.CapacityDWT, p.CapacityGT,
		p.NetTonnage, p.YearOfBuild, p.FlagState, p.PortOfRegistry, p.CallSign, p.MMSI, p.EEDI, p.EEXI, p.ClassSociety,
		p.LengthOverall, p.Breadth, p.Depth, p.Displacement, p.IceClass, p.ImagePath).Scan(&oldImage)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrNotFound
	case db.IsUniqueViolation(err):
		return nil, ErrConflict
	}
	return oldImage, err
}

func (r *Repo) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pg.Exec(ctx, `UPDATE ships SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanShip(row pgx.Row) (*Ship, error) {
	var s Ship
	err := row.Scan(&s.ID, &s.IMONumber, &s.ShipName, &s.ShortName, &s.VesselTypeKey, &s.CapacityDWT, &s.CapacityGT,
		&s.NetTonnage, &s.YearOfBuild, &s.FlagState, &s.PortOfRegistry, &s.CallSign, &s.MMSI, &s.EEDI, &s.EEXI,
		&s.ClassSociety, &s.LengthOverall, &s.Breadth, &s.Depth, &s.Displacement, &s.IceClass, &s.ImagePath,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Fleets

func (r *Repo) ListFleets(ctx context.Context) ([]Fleet, error) {
	const q = `
SELECT f.id, f.fleet_name, f.description, f.logo_key, f.is_active, f.created_at, f.updated_at,
  (SELECT count(*) FROM fleet_ships fs JOIN ships s ON s.id = fs.ship_id WHERE fs.fleet_id = f.id AND s.is_active)
FROM fleets f
WHERE f.is_active
ORDER BY f.fleet_name`
	rows, err := r.pg.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Fleet{}
	for rows.Next() {
		var f Fleet
		if err := rows.Scan(&f.ID, &f.FleetName, &f.Description, &f.LogoPath, &f.IsActive, &f.CreatedAt, &f.UpdatedAt, &f.ShipCount); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetFleet returns the fleet with its mapped active ships.
func (r *Repo) GetFleet(ctx context.Context, id int64) (*Fleet, error) {
	const q = `SELECT id, fleet_name, description, logo_key, is_active, created_at, updated_at FROM fleets WHERE id = $1`
	var f Fleet
	err := r.pg.QueryRow(ctx, q, id).Scan(&f.ID, &f.FleetName, &f.Description, &f.LogoPath, &f.IsActive, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFleetNotFound
	}
	if err != nil {
		return nil, err
	}

	const qs = `
SELECT s.id, s.ship_name, s.short_name, s.imo_number, fs.fleet_id
FROM fleet_ships fs JOIN ships s ON s.id = fs.ship_id
WHERE fs.fleet_id = $1 AND s.is_active
ORDER BY s.ship_name`
	f.Ships, err = r.shipNames(ctx, qs, id)
	if err != nil {
		return nil, err
	}
	f.ShipCount = len(f.Ships)
	return &f, nil
}

// ShipsForMapping lists active ships with the fleet they currently belong to, if any.
func (r *Repo) ShipsForMapping(ctx context.Context) ([]ShipName, error) {
	const q = `
SELECT s.id, s.ship_name, s.short_name, s.imo_number, fs.fleet_id
FROM ships s LEFT JOIN fleet_ships fs ON fs.ship_id = s.id
WHERE s.is_active
ORDER BY s.ship_name`
	return r.shipNames(ctx, q)
}

func (r *Repo) shipNames(ctx context.Context, q string, args ...any) ([]ShipName, error) {
	rows, err := r.pg.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ShipName{}
	for rows.Next() {
		var s ShipName
		if err := rows.Scan(&s.ID, &s.ShipName, &s.ShortName, &s.IMONumber, &s.FleetID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) CreateFleet(ctx context.Context, p FleetPatch) (int64, error) {
	if p.FleetName == nil || *p.FleetName == "" {
		return 0, fmt.Errorf("%w: fleetName is required", ErrInvalid)
	}
	var id int64
	err := r.pg.QueryRow(ctx, `INSERT INTO fleets (fleet_name, description, logo_key) VALUES ($1, $2, $3) RETURNING id`,
		p.FleetName, p.Description, p.LogoPath).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, ErrFleetConflict
	}
	return id, err
}

func (r *Repo) UpdateFleet(ctx context.Context, id int64, p FleetPatch) error {
	const q = `
UPDATE fleets SET
  fleet_name = COALESCE($2, fleet_name),
  description = COALESCE($3, description),
  logo_key = COALESCE($4, logo_key),
  updated_at = now()
WHERE id = $1`
	tag, err := r.pg.Exec(ctx, q, id, p.FleetName, p.Description, p.LogoPath)
	if db.IsUniqueViolation(err) {
		return ErrFleetConflict
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFleetNotFound
	}
	return nil
}

func (r *Repo) DeactivateFleet(ctx context.Context, id int64) error {
	tag, err := r.pg.Exec(ctx, `UPDATE fleets SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFleetNotFound
	}
	return nil
}

// MapVessels replaces the fleet's ships. A ship belongs to at most one fleet, so
// mapped ships are first removed from any other fleet.
func (r *Repo) MapVessels(ctx context.Context, fleetID int64, shipIDs []int64) error {
	ids := dedupe(shipIDs)
	return db.InTx(ctx, r.pg, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM fleets WHERE id = $1 AND is_active)`, fleetID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrFleetNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM fleet_ships WHERE fleet_id = $1 OR ship_id = ANY($2)`, fleetID, ids); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		tag, err := tx.Exec(ctx, `
INSERT INTO fleet_ships (fleet_id, ship_id)
SELECT $1, s.id FROM ships s WHERE s.id = ANY($2) AND s.is_active`, fleetID, ids)
		if err != nil {
			return err
		}
		if int(tag.RowsAffected()) != len(ids) {
			return fmt.Errorf("%w: unknown or inactive ship in mapping", ErrNotFound)
		}
		return nil
	})
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
