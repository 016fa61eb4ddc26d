// Package tanks stores vessel tanks and their current contents.
package tanks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/db"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/lookups"
)

var (
	ErrNotFound = errors.New("tank not found")
	ErrConflict = errors.New("tank name already exists on this vessel")
	ErrInvalid  = errors.New("invalid tank")
)

const (
	ContentFuel        = "FUEL"
	ContentLubeOil     = "LUBE_OIL"
	ContentWater       = "WATER"
	ContentOilyResidue = "OILY_RESIDUE"
)

// LookupCategory maps a content category to the lookup list of its content types.
func LookupCategory(content string) (string, error) {
	switch strings.ToUpper(content) {
	case ContentFuel:
		return lookups.FuelTypes, nil
	case ContentLubeOil:
		return lookups.LubeOilTypes, nil
	case ContentWater:
		return lookups.WaterTypes, nil
	case ContentOilyResidue:
		return lookups.OilyResidueTypes, nil
	}
	return "", fmt.Errorf("%w: unknown content category %q", ErrInvalid, content)
}

type Tank struct {
	ID                  int64     `json:"id"`
	VesselID            int64     `json:"vesselId"`
	TankName            string    `json:"tankName"`
	ContentCategory     string    `json:"contentCategory"`
	ContentTypeKey      *string   `json:"contentTypeKey,omitempty"`
	CapacityM3          *float64  `json:"capacityM3,omitempty"`
	Location            *string   `json:"location,omitempty"`
	LengthM             *float64  `json:"lengthM,omitempty"`
	BreadthM            *float64  `json:"breadthM,omitempty"`
	DepthM              *float64  `json:"depthM,omitempty"`
	CurrentQuantityMT   float64   `json:"currentQuantityMt"`
	CurrentVolumeM3     float64   `json:"currentVolumeM3"`
	CurrentTemperatureC *float64  `json:"currentTemperatureC,omitempty"`
	CurrentDensity      *float64  `json:"currentDensityKgM3,omitempty"`
	IsActive            bool      `json:"isActive"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

type Patch struct {
	VesselID            *int64   `json:"vesselId"`
	TankName            *string  `json:"tankName"`
	ContentCategory     *string  `json:"contentCategory"`
	ContentTypeKey      *string  `json:"contentTypeKey"`
	CapacityM3          *float64 `json:"capacityM3"`
	Location            *string  `json:"location"`
	LengthM             *float64 `json:"lengthM"`
	BreadthM            *float64 `json:"breadthM"`
	DepthM              *float64 `json:"depthM"`
	CurrentQuantityMT   *float64 `json:"currentQuantityMt"`
	CurrentVolumeM3     *float64 `json:"currentVolumeM3"`
	CurrentTemperatureC *float64 `json:"currentTemperatureC"`
	CurrentDensity      *float64 `json:"currentDensityKgM3"`
}

func (p *Patch) Validate(create bool) error {
	if create && (p.VesselID == nil || p.TankName == nil || p.ContentCategory == nil) {
		return fmt.Errorf("%w: vesselId, tankName and contentCategory are required", ErrInvalid)
	}
	if p.TankName != nil && strings.TrimSpace(*p.TankName) == "" {
		return fmt.Errorf("%w: tank name is empty", ErrInvalid)
	}
	if p.ContentCategory != nil {
		c := strings.ToUpper(strings.TrimSpace(*p.ContentCategory))
		if _, err := LookupCategory(c); err != nil {
			return err
		}
		p.ContentCategory = &c
	}
	for _, v := range []*float64{p.CapacityM3, p.LengthM, p.BreadthM, p.DepthM, p.CurrentQuantityMT, p.CurrentVolumeM3} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: dimensions and quantities must be >= 0", ErrInvalid)
		}
	}
	if p.CapacityM3 != nil && p.CurrentVolumeM3 != nil && *p.CurrentVolumeM3 > *p.CapacityM3 {
		return fmt.Errorf("%w: current volume exceeds capacity", ErrInvalid)
	}
	return nil
}

type Repo struct {
	pg *pgxpool.Pool
}

func NewRepo(pg *pgxpool.Pool) *Repo { return &Repo{pg: pg} }

const tankCols = `id, vessel_id, tank_name, content_category, content_type_key, capacity_m3::float8, location,
  length_m::float8, breadth_m::float8, depth_m::float8, current_quantity_mt::float8, current_volume_m3::float8,
  current_temperature_c::float8, current_density_kgm3::float8, is_active, created_at, updated_at`

func (r *Repo) List(ctx context.Context) ([]Tank, error) {
	return r.list(ctx, `SELECT `+tankCols+` FROM vessel_tanks WHERE is_active ORDER BY vessel_id, tank_name`)
}

// ByVessel lists active tanks; category narrows to one content category when set.
func (r *Repo) ByVessel(ctx context.Context, vesselID int64, category string) ([]Tank, error) {
	return r.list(ctx, `SELECT `+tankCols+` FROM vessel_tanks
WHERE is_active AND vessel_id = $1 AND ($2::text = '' OR content_category = $2)
ORDER BY tank_name`, vesselID, strings.ToUpper(category))
}

// Quantities returns the current state of the requested tanks.
func (r *Repo) Quantities(ctx context.Context, ids []int64) ([]Tank, error) {
	if len(ids) == 0 {
		return []Tank{}, nil
	}
	return r.list(ctx, `SELECT `+tankCols+` FROM vessel_tanks WHERE id = ANY($1) ORDER BY id`, ids)
}

func (r *Repo) list(ctx context.Context, q string, args ...any) ([]Tank, error) {
	rows, err := r.pg.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Tank{}
	for rows.Next() {
		t, err := scanTank(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (*Tank, error) {
	return scanTank(r.pg.QueryRow(ctx, `SELECT `+tankCols+` FROM vessel_tanks WHERE id = $1`, id))
}

func (r *Repo) Create(ctx context.Context, p Patch) (int64, error) {
	if err := p.Validate(true); err != nil {
		return 0, err
	}
	const q = `
INSERT INTO vessel_tanks (vessel_id, tank_name, content_category, content_type_key, capacity_m3, location,
  length_m, breadth_m, depth_m, current_quantity_mt, current_volume_m3, current_temperature_c, current_density_kgm3)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, 0), COALESCE($11, 0), $12, $13)
RETURNING id`
	var id int64
	err := r.pg.QueryRow(ctx, q, p.VesselID, p.TankName, p.ContentCategory, p.ContentTypeKey, p.CapacityM3, p.Location,
		p.LengthM, p.BreadthM, p.DepthM, p.CurrentQuantityMT, p.CurrentVolumeM3, p.CurrentTemperatureC, p.CurrentDensity).Scan(&id)
	switch {
	case db.IsUniqueViolation(err):
		return 0, ErrConflict
	case db.IsForeignKeyViolation(err):
		return 0, fmt.Errorf("%w: unknown vessel", ErrInvalid)
	}
	return id, err
}

func (r *Repo) Update(ctx context.Context, id int64, p Patch) error {
	if err := p.Validate(false); err != nil {
		return err
	}
	const q = `
UPDATE vessel_tanks SET
  tank_name = COALESCE($2, tank_name),
  content_category = COALESCE($3, content_category),
  content_type_key = COALESCE($4, content_type_key),
  capacity_m3 = COALESCE($5, capacity_m3),
  location = COALESCE($6, location),
  length_m = COALESCE($7, length_m),
  breadth_m = COALESCE($8, breadth_m),
  depth_m = COALESCE($9, depth_m),
  current_quantity_mt = COALESCE($10, current_quantity_mt),
  current_volume_m3 = COALESCE($11, current_volume_m3),
  current_temperature_c = COALESCE($12, current_temperature_c),
  current_density_kgm3 = COALESCE($13, current_density_kgm3),
  updated_at = now()
WHERE id = $1`
	tag, err := r.pg.Exec(ctx, q, id, p.TankName, p.ContentCategory, p.ContentTypeKey, p.CapacityM3, p.Location,
		p.LengthM, p.BreadthM, p.DepthM, p.CurrentQuantityMT, p.CurrentVolumeM3, p.CurrentTemperatureC, p.CurrentDensity)
	if db.IsUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pg.Exec(ctx, `UPDATE vessel_tanks SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTank(row pgx.Row) (*Tank, error) {
	var t Tank
	err := row.Scan(&t.ID, &t.VesselID, &t.TankName, &t.ContentCategory, &t.ContentTypeKey, &t.CapacityM3, &t.Location,
		&t.LengthM, &t.BreadthM, &t.DepthM, &t.CurrentQuantityMT, &t.CurrentVolumeM3, &t.CurrentTemperatureC,
		&t.CurrentDensity, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}
