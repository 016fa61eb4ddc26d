package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/db"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/rob"
)

type Repo struct {
	pg *pgxpool.Pool
}

func NewRepo(pg *pgxpool.Pool) *Repo { return &Repo{pg: pg} }

const reportCols = `id, ship_id, voyage_id, voyage_leg_id, report_type_key, report_datetime_utc, report_datetime_local,
  time_zone_at_port, current_port_code, voyage_number, from_port_code, to_port_code, leg_number,
  distance_sailed_nm::float8, steaming_hours::float8, cargo_weight_mt::float8, latitude, longitude, remarks, status,
  submitted_at, created_by, created_at, updated_at`

// CreateInitial opens a draft, prefilled with the voyage context of the
// ship's latest report, and returns its id.
func (r *Repo) CreateInitial(ctx context.Context, in Input, actor string) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := db.InTx(ctx, r.pg, func(tx pgx.Tx) error {
		prev, err := latest(ctx, tx, in.ShipID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		in.prefill(prev)
		utc, err := ToUTC(in.ReportDateTimeLocal, in.TimeZoneAtPort)
		if err != nil {
			return err
		}
		local := wallClock(in.ReportDateTimeLocal)
		const q = `
INSERT INTO reports (ship_id, voyage_id, voyage_leg_id, report_type_key, report_datetime_utc, report_datetime_local,
  time_zone_at_port, current_port_code, voyage_number, from_port_code, to_port_code, leg_number, status, created_by)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14)
RETURNING id`
		return tx.QueryRow(ctx, q, in.ShipID, in.VoyageID, in.VoyageLegID, in.ReportTypeKey, utc, local,
			in.TimeZoneAtPort, in.CurrentPortCode, in.VoyageNumber, in.FromPortCode, in.ToPortCode, in.LegNumber,
			StatusDraft, actor).Scan(&id)
	})
	if db.IsForeignKeyViolation(err) {
		return 0, fmt.Errorf("%w: unknown ship, voyage or leg", ErrInvalid)
	}
	return id, err
}

func (r *Repo) Get(ctx context.Context, id int64) (*Report, error) {
	rep, err := scanReport(r.pg.QueryRow(ctx, `SELECT `+reportCols+` FROM reports WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := loadLines(ctx, r.pg, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func loadLines(ctx context.Context, q db.DBTX, rep *Report) error {
	rows, err := q.Query(ctx, `SELECT fuel_type_key, bdn_number, machinery_id, consumed_mt::float8
FROM report_fuel_consumption WHERE report_id = $1 ORDER BY id`, rep.ID)
	if err != nil {
		return err
	}
	rep.Fuel = []FuelLine{}
	for rows.Next() {
		var f FuelLine
		if err := rows.Scan(&f.FuelTypeKey, &f.BDNNumber, &f.MachineryID, &f.ConsumedMT); err != nil {
			rows.Close()
			return err
		}
		rep.Fuel = append(rep.Fuel, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `SELECT lube_oil_type_key, bdn_number, machinery_id, consumed_qty::float8
FROM report_lube_oil_consumption WHERE report_id = $1 ORDER BY id`, rep.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	rep.Lube = []LubeLine{}
	for rows.Next() {
		var l LubeLine
		if err := rows.Scan(&l.LubeOilTypeKey, &l.BDNNumber, &l.MachineryID, &l.ConsumedQty); err != nil {
			return err
		}
		rep.Lube = append(rep.Lube, l)
	}
	return rows.Err()
}

type Filter struct {
	ShipID     int64
	ReportType string
	Status     string
	VoyageID   int64
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
}

type Page struct {
	Total   int64    `json:"totalCount"`
	Reports []Report `json:"reports"`
}

// ListByShip pages a ship's reports, newest first, without their lines.
func (r *Repo) ListByShip(ctx context.Context, f Filter) (Page, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	const where = ` FROM reports
WHERE ship_id = $1
  AND ($2::text = '' OR report_type_key = $2)
  AND ($3::text = '' OR status = $3)
  AND ($4::bigint = 0 OR voyage_id = $4)
  AND ($5::timestamptz IS NULL OR report_datetime_utc >= $5)
  AND ($6::timestamptz IS NULL OR report_datetime_utc <= $6)`
	args := []any{f.ShipID, f.ReportType, f.Status, f.VoyageID, f.From, f.To}

	var page Page
	if err := r.pg.QueryRow(ctx, `SELECT count(*)`+where, args...).Scan(&page.Total); err != nil {
		return Page{}, err
	}
	rows, err := r.pg.Query(ctx, `SELECT `+reportCols+where+`
ORDER BY report_datetime_utc DESC, id DESC LIMIT $7 OFFSET $8`, append(args, f.Limit, (f.Page-1)*f.Limit)...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()
	page.Reports = []Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return Page{}, err
		}
		page.Reports = append(page.Reports, *rep)
	}
	return page, rows.Err()
}

func (r *Repo) Latest(ctx context.Context, shipID int64) (*Report, error) {
	return latest(ctx, r.pg, shipID)
}

func latest(ctx context.Context, q db.DBTX, shipID int64) (*Report, error) {
	return scanReport(q.QueryRow(ctx, `SELECT `+reportCols+` FROM reports
WHERE ship_id = $1 ORDER BY report_datetime_utc DESC, id DESC LIMIT 1`, shipID))
}

// Preceding returns the ship's report immediately before the given one.
func (r *Repo) Preceding(ctx context.Context, id int64) (*Report, error) {
	const q = `
SELECT ` + reportCols + ` FROM reports p
WHERE p.ship_id = (SELECT ship_id FROM reports WHERE id = $1)
  AND p.report_datetime_utc < (SELECT report_datetime_utc FROM reports WHERE id = $1)
ORDER BY p.report_datetime_utc DESC, p.id DESC LIMIT 1`
	return scanReport(r.pg.QueryRow(ctx, q, id))
}

// Update edits a draft. Line slices present in the patch replace the stored lines.
func (r *Repo) Update(ctx context.Context, id int64, p Patch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return db.InTx(ctx, r.pg, func(tx pgx.Tx) error {
		cur, err := draftForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		tz := cur.TimeZoneAtPort
		if p.TimeZoneAtPort != nil {
			tz = p.TimeZoneAtPort
		}
		var utc, local *time.Time
		if p.ReportDateTimeLocal != nil || p.TimeZoneAtPort != nil {
			l := cur.ReportDateTimeLocal
			if p.ReportDateTimeLocal != nil {
				l = p.ReportDateTimeLocal
			}
			if l != nil {
				u, err := ToUTC(*l, deref(tz))
				if err != nil {
					return err
				}
				w := wallClock(*l)
				utc, local = &u, &w
			}
		}
		const q = `
UPDATE reports SET
  report_type_key = COALESCE($2, report_type_key),
  report_datetime_utc = COALESCE($3, report_datetime_utc),
  report_datetime_local = COALESCE($4::timestamp, report_datetime_local),
  time_zone_at_port = COALESCE($5, time_zone_at_port),
  current_port_code = COALESCE($6, current_port_code),
  distance_sailed_nm = COALESCE($7, distance_sailed_nm),
  steaming_hours = COALESCE($8, steaming_hours),
  cargo_weight_mt = COALESCE($9, cargo_weight_mt),
  latitude = COALESCE($10, latitude),
  longitude = COALESCE($11, longitude),
  remarks = COALESCE($12, remarks),
  updated_at = now()
WHERE id = $1`
		if _, err := tx.Exec(ctx, q, id, p.ReportTypeKey, utc, local, p.TimeZoneAtPort, p.CurrentPortCode,
			p.DistanceSailedNM, p.SteamingHours, p.CargoWeightMT, p.Latitude, p.Longitude, p.Remarks); err != nil {
			return err
		}
		if p.Fuel != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM report_fuel_consumption WHERE report_id = $1`, id); err != nil {
				return err
			}
			for _, f := range p.Fuel {
				if _, err := tx.Exec(ctx, `INSERT INTO report_fuel_consumption (report_id, fuel_type_key, bdn_number, machinery_id, consumed_mt)
VALUES ($1, $2, $3, $4, $5)`, id, f.FuelTypeKey, f.BDNNumber, f.MachineryID, f.ConsumedMT); err != nil {
					return err
				}
			}
		}
		if p.Lube != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM report_lube_oil_consumption WHERE report_id = $1`, id); err != nil {
				return err
			}
			for _, l := range p.Lube {
				if _, err := tx.Exec(ctx, `INSERT INTO report_lube_oil_consumption (report_id, lube_oil_type_key, bdn_number, machinery_id, consumed_qty)
VALUES ($1, $2, $3, $4, $5)`, id, l.LubeOilTypeKey, l.BDNNumber, l.MachineryID, l.ConsumedQty); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// UpdateVoyageDetails re-links a report to a voyage or leg. It is allowed on
// submitted reports since it does not touch consumption.
func (r *Repo) UpdateVoyageDetails(ctx context.Context, id int64, v VoyageDetails) error {
	v.normalize()
	const q = `
UPDATE reports SET
  voyage_id = COALESCE($2, voyage_id),
  voyage_leg_id = COALESCE($3, voyage_leg_id),
  voyage_number = COALESCE($4, voyage_number),
  from_port_code = COALESCE($5, from_port_code),
  to_port_code = COALESCE($6, to_port_code),
  leg_number = COALESCE($7, leg_number),
  updated_at = now()
WHERE id = $1`
	tag, err := r.pg.Exec(ctx, q, id, v.VoyageID, v.VoyageLegID, v.VoyageNumber, v.FromPortCode, v.ToPortCode, v.LegNumber)
	if db.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: unknown voyage or leg", ErrInvalid)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a draft and its lines.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	return db.InTx(ctx, r.pg, func(tx pgx.Tx) error {
		if _, err := draftForUpdate(ctx, tx, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
		return err
	})
}

// Submit posts the draft's consumption to the vessel and BDN chains and
// marks it submitted, all in one transaction. Any chain that would go
// negative aborts the whole submission.
func (r *Repo) Submit(ctx context.Context, id int64) ([]rob.Entry, error) {
	var entries []rob.Entry
	err := db.InTx(ctx, r.pg, func(tx pgx.Tx) error {
		rep, err := draftForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := loadLines(ctx, tx, rep); err != nil {
			return err
		}
		w := rob.NewWriter(rob.NewPGStore(tx))
		if err := w.RecordConsumption(ctx, rep.ShipID, rep.ConsumptionLines(), rep.ReportDateTimeUTC, rep.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE reports SET status = $2, submitted_at = now(), updated_at = now() WHERE id = $1`,
			id, StatusSubmitted); err != nil {
			return err
		}
		entries = w.Entries()
		return nil
	})
	return entries, err
}

func draftForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*Report, error) {
	rep, err := scanReport(tx.QueryRow(ctx, `SELECT `+reportCols+` FROM reports WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if rep.Status != StatusDraft {
		return nil, ErrNotDraft
	}
	return rep, nil
}

// VesselSnapshot is one row of the fleet dashboard.
type VesselSnapshot struct {
	ShipID        int64     `json:"shipId"`
	ShipName      string    `json:"ship"`
	ReportID      int64     `json:"reportId"`
	ReportType    string    `json:"reportType"`
	ReportDateUTC time.Time `json:"reportDate"`
	Status        string    `json:"status"`
	VoyageNumber  *string   `json:"voyageNumber,omitempty"`
	FromPort      *string   `json:"fromPort,omitempty"`
	ToPort        *string   `json:"toPort,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	CargoStatus   string    `json:"cargoStatus"`
}

// LatestVesselReports returns the newest report of every active ship,
// optionally limited to one fleet.
func (r *Repo) LatestVesselReports(ctx context.Context, fleetID int64) ([]VesselSnapshot, error) {
	const q = `
SELECT DISTINCT ON (s.id)
  s.id, s.ship_name, r.id, r.report_type_key, r.report_datetime_utc, r.status, r.voyage_number,
  COALESCE(fp.port_name, r.from_port_code), COALESCE(tp.port_name, r.to_port_code), r.latitude, r.longitude,
  CASE WHEN COALESCE(r.cargo_weight_mt, 0) > 0 THEN 'Laden' ELSE 'Ballast' END
FROM ships s
JOIN reports r ON r.ship_id = s.id
LEFT JOIN sea_ports fp ON fp.port_code = r.from_port_code
LEFT JOIN sea_ports tp ON tp.port_code = r.to_port_code
WHERE s.is_active
  AND ($1::bigint = 0 OR EXISTS (SELECT 1 FROM fleet_ships fs WHERE fs.ship_id = s.id AND fs.fleet_id = $1))
ORDER BY s.id, r.report_datetime_utc DESC, r.id DESC`
	rows, err := r.pg.Query(ctx, q, fleetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []VesselSnapshot{}
	for rows.Next() {
		var v VesselSnapshot
		if err := rows.Scan(&v.ShipID, &v.ShipName, &v.ReportID, &v.ReportType, &v.ReportDateUTC, &v.Status,
			&v.VoyageNumber, &v.FromPort, &v.ToPort, &v.Latitude, &v.Longitude, &v.CargoStatus); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanReport(row pgx.Row) (*Report, error) {
	var r Report
	err := row.Scan(&r.ID, &r.ShipID, &r.VoyageID, &r.VoyageLegID, &r.ReportTypeKey, &r.ReportDateTimeUTC,
		&r.ReportDateTimeLocal, &r.TimeZoneAtPort, &r.CurrentPortCode, &r.VoyageNumber, &r.FromPortCode, &r.ToPortCode,
		&r.LegNumber, &r.DistanceSailedNM, &r.SteamingHours, &r.CargoWeightMT, &r.Latitude, &r.Longitude, &r.Remarks,
		&r.Status, &r.SubmittedAt, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}
