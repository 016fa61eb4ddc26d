package voyages

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/attachments"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/db"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/util"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/vessels"
)

type Repo struct {
	pg *pgxpool.Pool
}

func NewRepo(pg *pgxpool.Pool) *Repo { return &Repo{pg: pg} }

const voyageCols = `v.id, v.ship_id, s.ship_name, v.voyage_number, v.departure_port_code, v.arrival_port_code,
  v.etd, v.atd, v.eta, v.ata, v.distance_planned_nm::float8, v.distance_sailed_nm::float8, v.cargo_description,
  v.cargo_weight_mt::float8, v.voyage_status, v.notes, v.last_leg_number, v.is_active, v.created_by, v.modified_by,
  v.created_at, v.updated_at`

const voyageFrom = ` FROM voyages v JOIN ships s ON s.id = v.ship_id`

func (r *Repo) List(ctx context.Context) ([]Voyage, error) {
	return r.list(ctx, `SELECT `+voyageCols+voyageFrom+` WHERE v.is_active ORDER BY v.etd DESC NULLS LAST, v.id DESC`)
}

func (r *Repo) ListByShip(ctx context.Context, shipID int64) ([]Voyage, error) {
	return r.list(ctx, `SELECT `+voyageCols+voyageFrom+` WHERE v.is_active AND v.ship_id = $1
ORDER BY v.etd DESC NULLS LAST, v.id DESC`, shipID)
}

func (r *Repo) list(ctx context.Context, q string, args ...any) ([]Voyage, error) {
	rows, err := r.pg.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Voyage{}
	for rows.Next() {
		v, err := scanVoyage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (*Voyage, error) {
	return scanVoyage(r.pg.QueryRow(ctx, `SELECT `+voyageCols+voyageFrom+` WHERE v.id = $1`, id))
}

// NextNumber previews the next voyage number for the ship.
func (r *Repo) NextNumber(ctx context.Context, shipID int64) (string, error) {
	return nextNumber(ctx, r.pg, shipID)
}

func nextNumber(ctx context.Context, q db.DBTX, shipID int64) (string, error) {
	ship, err := vessels.GetShip(ctx, q, shipID)
	if err != nil {
		return "", err
	}
	prefix := util.SequencePrefix(ship.ShortName, "V")
	var max int
	err = q.QueryRow(ctx, `
SELECT COALESCE(MAX(substring(voyage_number FROM '([0-9]+)$')::int), 0)
FROM voyages
WHERE ship_id = $1 AND voyage_number LIKE $2 || '%'`, shipID, prefix).Scan(&max)
	if err != nil {
		return "", err
	}
	return util.NextInSequence(prefix, max), nil
}

// Create inserts the voyage and its attachment rows in one transaction. An
// empty voyage number is allocated from the ship's sequence.
func (r *Repo) Create(ctx context.Context, p Patch, files []attachments.Stored, actor string) (int64, string, error) {
	if err := p.Validate(true); err != nil {
		return 0, "", err
	}
	var (
		id     int64
		number string
	)
	err := db.InTx(ctx, r.pg, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "voyage-no:"+strconv.FormatInt(*p.ShipID, 10)); err != nil {
			return err
		}
		if p.VoyageNumber == nil {
			n, err := nextNumber(ctx, tx, *p.ShipID)
			if err != nil {
				return err
			}
			p.VoyageNumber = &n
		}
		number = *p.VoyageNumber
		status := StatusPlanned
		if p.VoyageStatus != nil {
			status = *p.VoyageStatus
		}
		const q = `
INSERT INTO voyages (ship_id, voyage_number, departure_port_code, arrival_port_code, etd, atd, eta, ata,
  distance_planned_nm, distance_sailed_nm, cargo_description, cargo_weight_mt, voyage_status, notes, created_by, modified_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
RETURNING id`
		err := tx.QueryRow(ctx, q, p.ShipID, p.VoyageNumber, p.DeparturePortCode, p.ArrivalPortCode, p.ETD, p.ATD,
			p.ETA, p.ATA, p.DistancePlannedNM, p.DistanceSailedNM, p.CargoDescription, p.CargoWeightMT, status,
			p.Notes, actor).Scan(&id)
		if err != nil {
			return err
		}
		return attachments.Insert(ctx, tx, attachments.Voyage.OwnerType, id, files, actor)
	})
	switch {
	case db.IsUniqueViolation(err):
		return 0, "", ErrConflict
	case errors.Is(err, vessels.ErrNotFound), db.IsForeignKeyViolation(err):
		return 0, "", vessels.ErrNotFound
	}
	return id, number, err
}

func (r *Repo) Update(ctx context.Context, id int64, p Patch, files []attachments.Stored, actor string) error {
	if err := p.Validate(false); err != nil {
		return err
	}
	const q = `
UPDATE voyages SET
  voyage_number = COALESCE($2, voyage_number),
  departure_port_code = COALESCE($3, departure_port_code),
  arrival_port_code = COALESCE($4, arrival_port_code),
  etd = COALESCE($5, etd),
  atd = COALESCE($6, atd),
  eta = COALESCE($7, eta),
  ata = COALESCE($8, ata),
  distance_planned_nm = COALESCE($9, distance_planned_nm),
  distance_sailed_nm = COALESCE($10, distance_sailed_nm),
  cargo_description = COALESCE($11, cargo_description),
  cargo_weight_mt = COALESCE($12, cargo_weight_mt),
  voyage_status = COALESCE($13, voyage_status),
  notes = COALESCE($14, notes),
  modified_by = $15,
  updated_at = now()
WHERE id = $1`
	err := db.InTx(ctx, r.pg, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, id, p.VoyageNumber, p.DeparturePortCode, p.ArrivalPortCode, p.ETD, p.ATD, p.ETA,
			p.ATA, p.DistancePlannedNM, p.DistanceSailedNM, p.CargoDescription, p.CargoWeightMT, p.VoyageStatus, p.Notes, actor)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return attachments.Insert(ctx, tx, attachments.Voyage.OwnerType, id, files, actor)
	})
	if db.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *Repo) Deactivate(ctx context.Context, id int64, actor string) error {
	tag, err := r.pg.Exec(ctx, `UPDATE voyages SET is_active = FALSE, modified_by = $2, updated_at = now() WHERE id = $1`, id, actor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanVoyage(row pgx.Row) (*Voyage, error) {
	var v Voyage
	err := row.Scan(&v.ID, &v.ShipID, &v.ShipName, &v.VoyageNumber, &v.DeparturePortCode, &v.ArrivalPortCode,
		&v.ETD, &v.ATD, &v.ETA, &v.ATA, &v.DistancePlannedNM, &v.DistanceSailedNM, &v.CargoDescription,
		&v.CargoWeightMT, &v.VoyageStatus, &v.Notes, &v.LastLegNumber, &v.IsActive, &v.CreatedBy, &v.ModifiedBy,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Legs

const legCols = `id, voyage_id, ship_id, leg_number, leg_name, departure_port_code, arrival_port_code,
  etd, atd, eta, ata, distance_nm::float8, cargo_description, cargo_weight_mt::float8, is_active, created_at, updated_at`

func (r *Repo) Legs(ctx context.Context, voyageID int64) ([]Leg, error) {
	return r.legs(ctx, `SELECT `+legCols+` FROM voyage_legs WHERE voyage_id = $1 AND is_active ORDER BY leg_number`, voyageID)
}

func (r *Repo) LegsByShip(ctx context.Context, shipID int64) ([]Leg, error) {
	return r.legs(ctx, `SELECT `+legCols+` FROM voyage_legs WHERE ship_id = $1 AND is_active
ORDER BY voyage_id DESC, leg_number`, shipID)
}

func (r *Repo) GetLeg(ctx context.Context, id int64) (*Leg, error) {
	return scanLeg(r.pg.QueryRow(ctx, `SELECT `+legCols+` FROM voyage_legs WHERE id = $1`, id))
}

func (r *Repo) legs(ctx context.Context, q string, args ...any) ([]Leg, error) {
	rows, err := r.pg.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Leg{}
	for rows.Next() {
		l, err := scanLeg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// CreateLeg takes the leg number from the voyage's counter inside the transaction,
// so concurrent creates never share a number.
func (r *Repo) CreateLeg(ctx context.Context, voyageID int64, p LegPatch, files []attachments.Stored, actor string) (int64, int32, error) {
	if err := p.Validate(); err != nil {
		return 0, 0, err
	}
	var (
		id     int64
		number int32
	)
	err := db.InTx(ctx, r.pg, func(tx pgx.Tx) error {
		var shipID int64
		err := tx.QueryRow(ctx, `
UPDATE voyages SET last_leg_number = last_leg_number + 1, updated_at = now()
WHERE id = $1 AND is_active
RETURNING ship_id, last_leg_number`, voyageID).Scan(&shipID, &number)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		const q = `
INSERT INTO voyage_legs (voyage_id, ship_id, leg_number, leg_name, departure_port_code, arrival_port_code,
  etd, atd, eta, ata, distance_nm, cargo_description, cargo_weight_mt)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id`
		if err := tx.QueryRow(ctx, q, voyageID, shipID, number, defaultLegName(p), p.DeparturePortCode, p.ArrivalPortCode,
			p.ETD, p.ATD, p.ETA, p.ATA, p.DistanceNM, p.CargoDescription, p.CargoWeightMT).Scan(&id); err != nil {
			return err
		}
		return attachments.Insert(ctx, tx, attachments.VoyageLeg.OwnerType, id, files, actor)
	})
	return id, number, err
}

func (r *Repo) UpdateLeg(ctx context.Context, id int64, p LegPatch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	const q = `
UPDATE voyage_legs SET
  leg_name = COALESCE($2, leg_name),
  departure_port_code = COALESCE($3, departure_port_code),
  arrival_port_code = COALESCE($4, arrival_port_code),
  etd = COALESCE($5, etd),
  atd = COALESCE($6, atd),
  eta = COALESCE($7, eta),
  ata = COALESCE($8, ata),
  distance_nm = COALESCE($9, distance_nm),
  cargo_description = COALESCE($10, cargo_description),
  cargo_weight_mt = COALESCE($11, cargo_weight_mt),
  updated_at = now()
WHERE id = $1`
	tag, err := r.pg.Exec(ctx, q, id, p.LegName, p.DeparturePortCode, p.ArrivalPortCode, p.ETD, p.ATD, p.ETA, p.ATA,
		p.DistanceNM, p.CargoDescription, p.CargoWeightMT)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLegNotFound
	}
	return nil
}

func scanLeg(row pgx.Row) (*Leg, error) {
	var l Leg
	err := row.Scan(&l.ID, &l.VoyageID, &l.ShipID, &l.LegNumber, &l.LegName, &l.DeparturePortCode, &l.ArrivalPortCode,
		&l.ETD, &l.ATD, &l.ETA, &l.ATA, &l.DistanceNM, &l.CargoDescription, &l.CargoWeightMT, &l.IsActive,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLegNotFound
		}
		return nil, err
	}
	return &l, nil
}
