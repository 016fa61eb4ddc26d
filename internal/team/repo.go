// Package team stores the shore team directory.
package team

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
	ErrNotFound = errors.New("team member not found")
	ErrConflict = errors.New("a member with this email already exists")
	ErrInvalid  = errors.New("invalid team member")
)

type Member struct {
	ID           int64     `json:"id"`
	MemberName   string    `json:"memberName"`
	Role         *string   `json:"role,omitempty"`
	Email        string    `json:"email"`
	Rights       *string   `json:"rights,omitempty"`
	ImagePath    *string   `json:"imagePath,omitempty"`
	Introduction *string   `json:"introduction,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Patch struct {
	MemberName   *string `json:"memberName"`
	Role         *string `json:"role"`
	Email        *string `json:"email"`
	Rights       *string `json:"rights"`
	Introduction *string `json:"introduction"`
}

func (p *Patch) Validate(create bool) error {
	if create && (p.MemberName == nil || p.Email == nil) {
		return fmt.Errorf("%w: memberName and email are required", ErrInvalid)
	}
	if p.MemberName != nil {
		n := strings.TrimSpace(*p.MemberName)
		if n == "" {
			return fmt.Errorf("%w: member name is empty", ErrInvalid)
		}
		p.MemberName = &n
	}
	if p.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*p.Email))
		if !strings.Contains(e, "@") {
			return fmt.Errorf("%w: invalid email", ErrInvalid)
		}
		p.Email = &e
	}
	return nil
}

type Repo struct {
	pg *pgxpool.Pool
}

func NewRepo(pg *pgxpool.Pool) *Repo { return &Repo{pg: pg} }

const memberCols = `id, member_name, role, email, rights, image_key, introduction, is_active, created_at, updated_at`

// List returns active members first; inactive ones are included when all is set.
func (r *Repo) List(ctx context.Context, all bool) ([]Member, error) {
	rows, err := r.pg.Query(ctx, `SELECT `+memberCols+` FROM team_members
WHERE $1 OR is_active ORDER BY is_active DESC, member_name`, all)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (*Member, error) {
	return scanMember(r.pg.QueryRow(ctx, `SELECT `+memberCols+` FROM team_members WHERE id = $1`, id))
}

func (r *Repo) Create(ctx context.Context, p Patch, imageKey *string) (int64, error) {
	if err := p.Validate(true); err != nil {
		return 0, err
	}
	var id int64
	err := r.pg.QueryRow(ctx, `
INSERT INTO team_members (member_name, role, email, rights, image_key, introduction)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`, p.MemberName, p.Role, p.Email, p.Rights, imageKey, p.Introduction).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, ErrConflict
	}
	return id, err
}

// Update applies the patch and, when imageKey is set, replaces the image.
// The previous image key is returned so the caller can remove the blob.
func (r *Repo) Update(ctx context.Context, id int64, p Patch, imageKey *string) (*string, error) {
	if err := p.Validate(false); err != nil {
		return nil, err
	}
	const q = `
UPDATE team_members m SET
  member_name = COALESCE($2, m.member_name),
  role = COALESCE($3, m.role),
  email = COALESCE($4, m.email),
  rights = COALESCE($5, m.rights),
  introduction = COALESCE($6, m.introduction),
  image_key = COALESCE($7, m.image_key),
  updated_at = now()
FROM team_members old
WHERE m.id = $1 AND old.id = m.id
RETURNING old.image_key`
	var old *string
	err := r.pg.QueryRow(ctx, q, id, p.MemberName, p.Role, p.Email, p.Rights, p.Introduction, imageKey).Scan(&old)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrNotFound
	case db.IsUniqueViolation(err):
		return nil, ErrConflict
	case err != nil:
		return nil, err
	}
	if imageKey == nil {
		return nil, nil
	}
	return old, nil
}

func (r *Repo) UpdateIntroduction(ctx context.Context, id int64, intro string) error {
	return r.exec(ctx, `UPDATE team_members SET introduction = $2, updated_at = now() WHERE id = $1`, id, intro)
}

func (r *Repo) SetActive(ctx context.Context, id int64, active bool) error {
	return r.exec(ctx, `UPDATE team_members SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
}

func (r *Repo) exec(ctx context.Context, q string, args ...any) error {
	tag, err := r.pg.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.MemberName, &m.Role, &m.Email, &m.Rights, &m.ImagePath, &m.Introduction, &m.IsActive,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}
