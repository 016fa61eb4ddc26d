// Package machinery assigns machinery (engines, boilers) to ships.
package machinery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/db"
)

var (
	ErrNotFound = errors.New("machinery not found")
	ErrInvalid  = errors.New("invalid machinery")
)

type Machinery struct {
	ID               int64     `json:"id"`
	ShipID           int64     `json:"shipId"`
	MachineryTypeKey string    `json:"machineryTypeKey"`
	CustomName       *string   `json:"customName,omitempty"`
	InstanceNumber   int32     `json:"instanceNumber"`
	DisplayName      string    `json:"displayName"`
	IsFuelConsumer   bool      `json:"isFuelConsumer"`
	PowerKW          *float64  `json:"powerKw,omitempty"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type AssignItem struct {
	MachineryTypeKey string   `json:"machineryTypeKey" binding:"required"`
	CustomName       *string  `json:"customName"`
	IsFuelConsumer   *bool    `json:"isFuelConsumer"`
	PowerKW          *float64 `json:"powerKw"`
}

type Patch struct {
	CustomName     *string  `json:"customName"`
	IsFuelConsumer *bool    `json:"isFuelConsumer"`
	PowerKW        *float64 `json:"powerKw"`
}

// allocate numbers items per type continuing from the highest existing instance.
func allocate(existing map[string]int32, items []AssignItem) ([]int32, error) {
	next := make(map[string]int32, len(existing))
	for k, v := range existing {
		next[k] = v
	}
	out := make([]int32, len(items))
	for i, it := range items {
		key := strings.TrimSpace(it.MachineryTypeKey)
		if key == "" {
			return nil, fmt.Errorf("%w: item %d has no machinery type", ErrInvalid, i)
		}
		if it.PowerKW != nil && *it.PowerKW < 0 {
			return nil, fmt.Errorf("%w: power must be >= 0", ErrInvalid)
		}
		next[key]++
		out[i] = next[key]
	}
	return out, nil
}

type Repo struct {
	pg *pgxpool.Pool
}

func NewRepo(pg *pgxpool.Pool) *Repo { return &Repo{pg: pg} }

const machCols = `m.id, m.ship_id, m.machinery_type_key, m.custom_name, m.instance_number,
  COALESCE(NULLIF(m.custom_name, ''), COALESCE(lv.name, m.machinery_type_key) || ' ' || m.instance_number),
  m.is_fuel_consumer, m.power_kw::float8, m.is_active, m.created_at, m.updated_at`

const machFrom = ` FROM ship_machinery m
LEFT JOIN lookup_values lv ON lv.category = 'machinery_type' AND lv.code = m.machinery_type_key`

func (r *Repo) ForShip(ctx context.Context, shipID int64, consumersOnly bool) ([]Machinery, error) {
	q := `SELECT ` + machCols + machFrom + ` WHERE m.ship_id = $1 AND m.is_active`
	if consumersOnly {
		q += ` AND m.is_fuel_consumer`
	}
	q += ` ORDER BY m.machinery_type_key, m.instance_number`
	rows, err := r.pg.Query(ctx, q, shipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Machinery{}
	for rows.Next() {
		m, err := scanMachinery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (*Machinery, error) {
	return scanMachinery(r.pg.QueryRow(ctx, `SELECT `+machCols+machFrom+` WHERE m.id = $1`, id))
}

// Assign adds machinery to a ship. Instance numbers continue per (ship, type)
// and are allocated under a per-ship lock.
func (r *Repo) Assign(ctx context.Context, shipID int64, items []AssignItem, actor string) ([]int64, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalid)
	}
	ids := make([]int64, 0, len(items))
	err := db.InTx(ctx, r.pg, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "machinery:"+strconv.FormatInt(shipID, 10)); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `SELECT machinery_type_key, MAX(instance_number) FROM ship_machinery WHERE ship_id = $1 GROUP BY machinery_type_key`, shipID)
		if err != nil {
			return err
		}
		existing := map[string]int32{}
		for rows.Next() {
			var (
				k string
				n int32
			)
			if err := rows.Scan(&k, &n); err != nil {
				rows.Close()
				return err
			}
			existing[k] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		numbers, err := allocate(existing, items)
		if err != nil {
			return err
		}
		const q = `
INSERT INTO ship_machinery (ship_id, machinery_type_key, custom_name, instance_number, is_fuel_consumer, power_kw, created_by, modified_by)
VALUES ($1, $2, $3, $4, COALESCE($5, TRUE), $6, $7, $7)
RETURNING id`
		for i, it := range items {
			var id int64
			if err := tx.QueryRow(ctx, q, shipID, strings.TrimSpace(it.MachineryTypeKey), it.CustomName, numbers[i],
				it.IsFuelConsumer, it.PowerKW, actor).Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if db.IsForeignKeyViolation(err) {
		return nil, fmt.Errorf("%w: unknown ship", ErrInvalid)
	}
	return ids, err
}

func (r *Repo) Update(ctx context.Context, id int64, p Patch, actor string) error {
	if p.PowerKW != nil && *p.PowerKW < 0 {
		return fmt.Errorf("%w: power must be >= 0", ErrInvalid)
	}
	const q = `
UPDATE ship_machinery SET
  custom_name = COALESCE($2, custom_name),
  is_fuel_consumer = COALESCE($3, is_fuel_consumer),
  power_kw = COALESCE($4, power_kw),
  modified_by = $5,
  updated_at = now()
WHERE id = $1 AND is_active`
	tag, err := r.pg.Exec(ctx, q, id, p.CustomName, p.IsFuelConsumer, p.PowerKW, actor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) Deactivate(ctx context.Context, id int64, actor string) error {
	tag, err := r.pg.Exec(ctx, `UPDATE ship_machinery SET is_active = FALSE, modified_by = $2, updated_at = now() WHERE id = $1 AND is_active`, id, actor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMachinery(row pgx.Row) (*Machinery, error) {
	var m Machinery
	err := row.Scan(&m.ID, &m.ShipID, &m.MachineryTypeKey, &m.CustomName, &m.InstanceNumber, &m.DisplayName,
		&m.IsFuelConsumer, &m.PowerKW, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}
