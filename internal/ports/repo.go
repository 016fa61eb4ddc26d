package ports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/db"
)

var (
	ErrNotFound = errors.New("port not found")
	ErrConflict = errors.New("port code already exists")
	ErrInvalid  = errors.New("invalid port")
)

type Port struct {
	ID          int64     `json:"id"`
	PortName    string    `json:"portName"`
	PortCode    string    `json:"portCode"`
	Country     *string   `json:"country,omitempty"`
	CountryCode *string   `json:"countryCode,omitempty"`
	UTCOffset   *string   `json:"utcOffset,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	EUInd       bool      `json:"euInd"`
	UKInd       bool      `json:"ukInd"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Patch holds optional fields; nil keeps the stored value.
type Patch struct {
	PortName    *string  `json:"portName"`
	PortCode    *string  `json:"portCode"`
	Country     *string  `json:"country"`
	CountryCode *string  `json:"countryCode"`
	UTCOffset   *string  `json:"utcOffset"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	EUInd       *bool    `json:"euInd"`
	UKInd       *bool    `json:"ukInd"`
}

// NormalizeCode upper-cases a UN/LOCODE style code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (p *Patch) normalize() error {
	if p.PortCode != nil {
		c := NormalizeCode(*p.PortCode)
		if c == "" {
			return fmt.Errorf("%w: port code is empty", ErrInvalid)
		}
		p.PortCode = &c
	}
	if p.PortName != nil && strings.TrimSpace(*p.PortName) == "" {
		return fmt.Errorf("%w: port name is empty", ErrInvalid)
	}
	if p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90) {
		return fmt.Errorf("%w: latitude out of range", ErrInvalid)
	}
	if p.Longitude != nil && (*p.Longitude < -180 || *p.Longitude > 180) {
		return fmt.Errorf("%w: longitude out of range", ErrInvalid)
	}
	return nil
}

type Repo struct {
	pg *pgxpool.Pool
}

func NewRepo(pg *pgxpool.Pool) *Repo { return &Repo{pg: pg} }

const portCols = `id, port_name, port_code, country, country_code, utc_offset, latitude, longitude, eu_ind, uk_ind, is_active, created_at, updated_at`

// List returns active ports; search matches name, code or country.
func (r *Repo) List(ctx context.Context, search string) ([]Port, error) {
	q := `SELECT ` + portCols + ` FROM sea_ports WHERE is_active`
	args := []any{}
	if s := strings.TrimSpace(search); s != "" {
		q += ` AND (port_name ILIKE $1 OR port_code ILIKE $1 OR country ILIKE $1)`
		args = append(args, "%"+s+"%")
	}
	q += ` ORDER BY port_name`
	rows, err := r.pg.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Port{}
	for rows.Next() {
		p, err := scanPort(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type Name struct {
	ID       int64  `json:"id"`
	PortName string `json:"portName"`
	PortCode string `json:"portCode"`
}

func (r *Repo) Names(ctx context.Context) ([]Name, error) {
	rows, err := r.pg.Query(ctx, `SELECT id, port_name, port_code FROM sea_ports WHERE is_active ORDER BY port_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Name{}
	for rows.Next() {
		var n Name
		if err := rows.Scan(&n.ID, &n.PortName, &n.PortCode); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (*Port, error) {
	return scanPort(r.pg.QueryRow(ctx, `SELECT `+portCols+` FROM sea_ports WHERE id = $1`, id))
}

func (r *Repo) GetByCode(ctx context.Context, code string) (*Port, error) {
	return scanPort(r.pg.QueryRow(ctx, `SELECT `+portCols+` FROM sea_ports WHERE port_code = $1`, NormalizeCode(code)))
}

// ByCodes returns the ports for the given codes keyed by code; unknown codes are absent.
func ByCodes(ctx context.Context, q db.DBTX, codes []string) (map[string]Port, error) {
	norm := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = NormalizeCode(c); c != "" {
			norm = append(norm, c)
		}
	}
	out := map[string]Port{}
	if len(norm) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `SELECT `+portCols+` FROM sea_ports WHERE port_code = ANY($1)`, norm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPort(rows)
		if err != nil {
			return nil, err
		}
		out[p.PortCode] = *p
	}
	return out, rows.Err()
}

func (r *Repo) ByCodes(ctx context.Context, codes []string) (map[string]Port, error) {
	return ByCodes(ctx, r.pg, codes)
}

func (r *Repo) Create(ctx context.Context, p Patch, actor string) (int64, error) {
	if p.PortName == nil || p.PortCode == nil {
		return 0, fmt.Errorf("%w: port name and code are required", ErrInvalid)
	}
	if err := p.normalize(); err != nil {
		return 0, err
	}
	const q = `
INSERT INTO sea_ports (port_name, port_code, country, country_code, utc_offset, latitude, longitude, eu_ind, uk_ind, created_by, modified_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, FALSE), COALESCE($9, FALSE), $10, $10)
RETURNING id`
	var id int64
	err := r.pg.QueryRow(ctx, q, strings.TrimSpace(*p.PortName), *p.PortCode, p.Country, p.CountryCode, p.UTCOffset,
		p.Latitude, p.Longitude, p.EUInd, p.UKInd, actor).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, ErrConflict
	}
	return id, err
}

func (r *Repo) Update(ctx context.Context, id int64, p Patch, actor string) error {
	if err := p.normalize(); err != nil {
		return err
	}
	const q = `
UPDATE sea_ports SET
  port_name = COALESCE($2, port_name),
  port_code = COALESCE($3, port_code),
  country = COALESCE($4, country),
  country_code = COALESCE($5, country_code),
  utc_offset = COALESCE($6, utc_offset),
  latitude = COALESCE($7, latitude),
  longitude = COALESCE($8, longitude),
  eu_ind = COALESCE($9, eu_ind),
  uk_ind = COALESCE($10, uk_ind),
  modified_by = $11,
  updated_at = now()
WHERE id = $1`
	tag, err := r.pg.Exec(ctx, q, id, p.PortName, p.PortCode, p.Country, p.CountryCode, p.UTCOffset,
		p.Latitude, p.Longitude, p.EUInd, p.UKInd, actor)
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

func (r *Repo) Deactivate(ctx context.Context, id int64, actor string) error {
	tag, err := r.pg.Exec(ctx, `UPDATE sea_ports SET is_active = FALSE, modified_by = $2, updated_at = now() WHERE id = $1`, id, actor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPort(row pgx.Row) (*Port, error) {
	var p Port
	err := row.Scan(&p.ID, &p.PortName, &p.PortCode, &p.Country, &p.CountryCode, &p.UTCOffset,
		&p.Latitude, &p.Longitude, &p.EUInd, &p.UKInd, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
