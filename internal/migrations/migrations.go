// Package migrations embeds the SQL schema and applies it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// Runner applies the embedded migrations to one database.
type Runner struct {
	m *migrate.Migrate
}

// NewRunner opens a migrator for a postgres:// (or pgx5://) DSN.
func NewRunner(dsn string) (*Runner, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, DriverURL(dsn))
	if err != nil {
		return nil, fmt.Errorf("migrate init: %w", err)
	}
	return &Runner{m: m}, nil
}

// Up applies all pending migrations; an up-to-date schema is not an error.
func (r *Runner) Up() error { return ignoreNoChange(r.m.Up()) }

func (r *Runner) Down() error { return ignoreNoChange(r.m.Down()) }

// Steps moves n migrations forward (n > 0) or back (n < 0).
func (r *Runner) Steps(n int) error { return ignoreNoChange(r.m.Steps(n)) }

func (r *Runner) Version() (version uint, dirty bool, err error) {
	v, d, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, d, err
}

func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}

// DriverURL rewrites postgres:// and postgresql:// DSNs to the pgx5:// scheme the driver registers.
func DriverURL(dsn string) string {
	for _, p := range []string{"postgres://", "postgresql://", "pgx://"} {
		if strings.HasPrefix(dsn, p) {
			return "pgx5://" + strings.TrimPrefix(dsn, p)
		}
	}
	return dsn
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
