// Package users stores application users and implements the login,
// two-factor and password flows.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/db"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/security"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/util"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrConflict = errors.New("username or email already exists")
	ErrInvalid  = errors.New("invalid user")
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    *string   `json:"firstName,omitempty"`
	LastName     *string   `json:"lastName,omitempty"`
	Designation  *string   `json:"designation,omitempty"`
	Fleet        *string   `json:"fleet,omitempty"`
	Vessels      *string   `json:"vessels,omitempty"`
	ImagePath    *string   `json:"imagePath,omitempty"`
	UserRights   string    `json:"userRights"`
	Require2FA   bool      `json:"require2FA"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u User) Principal() security.Principal {
	return security.Principal{UserID: u.ID, Username: u.Username, UserRights: u.UserRights}
}

// Patch is the admin create/update body. Password is only read on create.
type Patch struct {
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	Password    *string `json:"password"`
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	Designation *string `json:"designation"`
	Fleet       *string `json:"fleet"`
	Vessels     *string `json:"vessels"`
	UserRights  *string `json:"userRights"`
	Require2FA  *bool   `json:"require2FA"`
	IsActive    *bool   `json:"isActive"`
}

func (p *Patch) normalize(create bool) error {
	if create && (p.Username == nil || p.Email == nil || p.Password == nil) {
		return fmt.Errorf("%w: username, email and password are required", ErrInvalid)
	}
	if p.Username != nil {
		u := strings.TrimSpace(*p.Username)
		if u == "" || strings.ContainsAny(u, " @") {
			return fmt.Errorf("%w: username must be a single word without @", ErrInvalid)
		}
		p.Username = &u
	}
	if p.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*p.Email))
		if at := strings.Index(e, "@"); at < 1 || at == len(e)-1 {
			return fmt.Errorf("%w: invalid email", ErrInvalid)
		}
		p.Email = &e
	}
	if p.UserRights != nil && strings.TrimSpace(*p.UserRights) == "" {
		return fmt.Errorf("%w: user rights are empty", ErrInvalid)
	}
	return nil
}

type Repo struct {
	pg *pgxpool.Pool
}

func NewRepo(pg *pgxpool.Pool) *Repo { return &Repo{pg: pg} }

const userCols = `id, username, email, password_hash, first_name, last_name, designation, fleet, vessels, image_key,
  user_rights, require_2fa, is_active, created_at, updated_at`

// FindByIdentifier matches username or email, case-insensitively.
func (r *Repo) FindByIdentifier(ctx context.Context, ident string) (*User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE lower(username) = lower($1) OR lower(email) = lower($1) LIMIT 1`
	return scanUser(r.pg.QueryRow(ctx, q, strings.TrimSpace(ident)))
}

func (r *Repo) FindByEmail(ctx context.Context, email string) (*User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.pg.QueryRow(ctx, q, strings.TrimSpace(email)))
}

func (r *Repo) FindByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.pg.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *Repo) List(ctx context.Context) ([]User, error) {
	rows, err := r.pg.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY is_active DESC, username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Create validates the body, hashes the password and stores the user.
func (r *Repo) Create(ctx context.Context, p Patch) (int64, error) {
	if err := p.normalize(true); err != nil {
		return 0, err
	}
	if err := util.ValidatePassword(*p.Password); err != nil {
		return 0, errors.Join(ErrInvalid, err)
	}
	hash, err := util.HashPassword(*p.Password)
	if err != nil {
		return 0, err
	}
	rights := security.RightsVesselUser
	if p.UserRights != nil {
		rights = *p.UserRights
	}
	const q = `
INSERT INTO users (username, email, password_hash, first_name, last_name, designation, fleet, vessels, user_rights, require_2fa)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, FALSE))
RETURNING id`
	var id int64
	err = r.pg.QueryRow(ctx, q, p.Username, p.Email, hash, p.FirstName, p.LastName, p.Designation, p.Fleet,
		p.Vessels, rights, p.Require2FA).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, ErrConflict
	}
	return id, err
}

func (r *Repo) Update(ctx context.Context, id int64, p Patch) error {
	if err := p.normalize(false); err != nil {
		return err
	}
	const q = `
UPDATE users SET
  username = COALESCE($2, username),
  email = COALESCE($3, email),
  first_name = COALESCE($4, first_name),
  last_name = COALESCE($5, last_name),
  designation = COALESCE($6, designation),
  fleet = COALESCE($7, fleet),
  vessels = COALESCE($8, vessels),
  user_rights = COALESCE($9, user_rights),
  require_2fa = COALESCE($10, require_2fa),
  is_active = COALESCE($11, is_active),
  updated_at = now()
WHERE id = $1`
	tag, err := r.pg.Exec(ctx, q, id, p.Username, p.Email, p.FirstName, p.LastName, p.Designation, p.Fleet, p.Vessels,
		p.UserRights, p.Require2FA, p.IsActive)
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
	tag, err := r.pg.Exec(ctx, `UPDATE users SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) SetPassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.pg.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetImage stores the new image key and returns the previous one.
func (r *Repo) SetImage(ctx context.Context, id int64, key string) (*string, error) {
	const q = `
UPDATE users u SET image_key = $2, updated_at = now()
FROM users old
WHERE u.id = $1 AND old.id = u.id
RETURNING old.image_key`
	var old *string
	err := r.pg.QueryRow(ctx, q, id, key).Scan(&old)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return old, err
}

// Rights lists the distinct user_rights values in use plus the built-in ones.
func (r *Repo) Rights(ctx context.Context) ([]string, error) {
	const q = `
SELECT r FROM (
  SELECT DISTINCT user_rights AS r FROM users
  UNION SELECT $1 UNION SELECT $2
) x ORDER BY r`
	rows, err := r.pg.Query(ctx, q, security.RightsAdmin, security.RightsVesselUser)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Designation, &u.Fleet,
		&u.Vessels, &u.ImagePath, &u.UserRights, &u.Require2FA, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
