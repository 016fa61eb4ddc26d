package bunkers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/attachments"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/db"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/rob"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/util"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/vessels"
)

type Repo struct {
	pg *pgxpool.Pool
}

func NewRepo(pg *pgxpool.Pool) *Repo { return &Repo{pg: pg} }

const recordCols = `b.id, b.ship_id, s.ship_name, b.voyage_id, b.voyage_leg_id, b.bunker_port_code, b.bunker_date,
  b.bdn_number, b.bunker_category, b.fuel_type_key, b.lube_oil_type_key, b.bunkered_quantity::float8,
  b.density_at_15c::float8, b.sulphur_content_percent::float8, b.flash_point_c::float8, b.viscosity_at_50c_cst::float8,
  b.water_content_percent::float8, b.lcv::float8, b.temperature_c::float8, b.pressure_bar::float8, b.supplier_name,
  b.barge_name, b.marpol_sample_seal_number, b.bdn_declaration_received, b.initial_quantity_mt::float8,
  b.final_quantity_mt::float8, b.initial_volume_m3::float8, b.final_volume_m3::float8, b.bunkered_volume_m3::float8,
  b.operation_type, b.correction_sign, b.remarks, b.is_active, b.created_by, b.modified_by, b.created_at, b.updated_at`

const recordFrom = ` FROM bunker_records b JOIN ships s ON s.id = b.ship_id`

func (r *Repo) List(ctx context.Context, f Filter) ([]Record, error) {
	q := `SELECT ` + recordCols + recordFrom + `
WHERE ($1::bigint = 0 OR b.ship_id = $1) AND ($2::text = '' OR b.bunker_category = $2) AND ($3 OR b.is_active)
ORDER BY b.bunker_date DESC, b.id DESC`
	return r.list(ctx, q, f.ShipID, f.Category, f.IncludeInactive)
}

// ByBDN returns the records filed under one delivery note, oldest first.
func (r *Repo) ByBDN(ctx context.Context, shipID int64, bdn string) ([]Record, error) {
	q := `SELECT ` + recordCols + recordFrom + `
WHERE b.ship_id = $1 AND b.bdn_number = $2 AND b.is_active
ORDER BY b.bunker_date, b.id`
	return r.list(ctx, q, shipID, bdn)
}

func (r *Repo) list(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := r.pg.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (*Record, error) {
	return scanRecord(r.pg.QueryRow(ctx, `SELECT `+recordCols+recordFrom+` WHERE b.id = $1`, id))
}

// BDNNumbers lists the distinct delivery notes recorded for a ship, newest first.
func (r *Repo) BDNNumbers(ctx context.Context, shipID int64) ([]string, error) {
	rows, err := r.pg.Query(ctx, `
SELECT bdn_number FROM bunker_records
WHERE ship_id = $1 AND is_active
GROUP BY bdn_number
ORDER BY MAX(bunker_date) DESC`, shipID)
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

// NextBDN previews the next generated delivery note number for the ship.
func (r *Repo) NextBDN(ctx context.Context, shipID int64) (string, error) {
	return nextBDN(ctx, r.pg, shipID)
}

func nextBDN(ctx context.Context, q db.DBTX, shipID int64) (string, error) {
	ship, err := vessels.GetShip(ctx, q, shipID)
	if err != nil {
		return "", err
	}
	prefix := util.SequencePrefix(ship.ShortName, "BK")
	var max int
	err = q.QueryRow(ctx, `
SELECT COALESCE(MAX(substring(bdn_number FROM '([0-9]+)$')::int), 0)
FROM bunker_records
WHERE ship_id = $1 AND bdn_number LIKE $2 || '%'`, shipID, prefix).Scan(&max)
	if err != nil {
		return "", err
	}
	return util.NextInSequence(prefix, max), nil
}

// Result reports what a write did.
type Result struct {
	ID        int64
	BDNNumber string
	Entries   []rob.Entry
}

// Create inserts the record, chains it onto the vessel and BDN ledgers and
// stores attachment rows, all in one transaction. Blobs are the caller's to
// clean up when an error is returned.
func (r *Repo) Create(ctx context.Context, in Input, files []attachments.Stored, actor string) (Result, error) {
	rec := in.Apply(Record{})
	var res Result
	err := db.InTx(ctx, r.pg, func(tx pgx.Tx) error {
		if rec.BDNNumber == "" && rec.ShipID > 0 {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "bdn-no:"+strconv.FormatInt(rec.ShipID, 10)); err != nil {
				return err
			}
			if rec.OperationType.IsSupply() {
				n, err := nextBDN(ctx, tx, rec.ShipID)
				if err != nil {
					return err
				}
				rec.BDNNumber = n
			}
		}
		if err := Validate(rec); err != nil {
			return err
		}

		rec.InitialQuantityMT = 0
		rec.FinalQuantityMT = rec.BunkeredQuantity
		id, err := insertRecord(ctx, tx, rec, actor)
		if err != nil {
			return err
		}

		w := rob.NewWriter(rob.NewPGStore(tx))
		vessel := rob.Key{ShipID: rec.ShipID, Category: rec.Category(), ItemType: rec.ItemType()}
		if err := w.RecordBunker(ctx, vessel, rec.BDNNumber, rec.BunkeredQuantity, rec.OperationType, rec.sign(), rec.BunkerDate, id); err != nil {
			return err
		}
		if err := attachments.Insert(ctx, tx, attachments.Bunker.OwnerType, id, files, actor); err != nil {
			return err
		}
		res = Result{ID: id, BDNNumber: rec.BDNNumber, Entries: w.Entries()}
		return nil
	})
	if errors.Is(err, vessels.ErrNotFound) || db.IsForeignKeyViolation(err) {
		return Result{}, errors.Join(ErrInvalid, err)
	}
	return res, err
}

func insertRecord(ctx context.Context, tx pgx.Tx, rec Record, actor string) (int64, error) {
	const q = `
INSERT INTO bunker_records (ship_id, voyage_id, voyage_leg_id, bunker_port_code, bunker_date, bdn_number, bunker_category,
  fuel_type_key, lube_oil_type_key, bunkered_quantity, density_at_15c, sulphur_content_percent, flash_point_c,
  viscosity_at_50c_cst, water_content_percent, lcv, temperature_c, pressure_bar, supplier_name, barge_name,
  marpol_sample_seal_number, bdn_declaration_received, initial_quantity_mt, final_quantity_mt, initial_volume_m3,
  final_volume_m3, bunkered_volume_m3, operation_type, correction_sign, remarks, created_by, modified_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23,
  $24, $25, $26, $27, $28, $29, $30, $31, $31)
RETURNING id`
	var id int64
	err := tx.QueryRow(ctx, q, rec.ShipID, rec.VoyageID, rec.VoyageLegID, rec.BunkerPortCode, rec.BunkerDate, rec.BDNNumber,
		rec.BunkerCategory, rec.FuelTypeKey, rec.LubeOilTypeKey, rec.BunkeredQuantity, rec.DensityAt15C,
		rec.SulphurContentPercent, rec.FlashPointC, rec.ViscosityAt50CcSt, rec.WaterContentPercent, rec.LCV,
		rec.TemperatureC, rec.PressureBar, rec.SupplierName, rec.BargeName, rec.MarpolSampleSealNumber,
		rec.BDNDeclarationReceived, rec.InitialQuantityMT, rec.FinalQuantityMT, rec.InitialVolumeM3, rec.FinalVolumeM3,
		rec.BunkeredVolumeM3, rec.OperationType, rec.CorrectionSign, rec.Remarks, actor).Scan(&id)
	return id, err
}

// Update rewrites the record and appends one adjustment entry for every
// ledger chain whose contribution changed. Earlier ledger rows are never touched.
func (r *Repo) Update(ctx context.Context, id int64, in Input, files []attachments.Stored, actor string) (Result, error) {
	var res Result
	err := db.InTx(ctx, r.pg, func(tx pgx.Tx) error {
		old, err := scanRecord(tx.QueryRow(ctx, `SELECT `+recordCols+recordFrom+` WHERE b.id = $1 FOR UPDATE OF b`, id))
		if err != nil {
			return err
		}
		if !old.IsActive {
			return ErrInactive
		}
		next := in.Apply(*old)
		if err := Validate(next); err != nil {
			return err
		}
		next.FinalQuantityMT = next.BunkeredQuantity

		const q = `
UPDATE bunker_records SET
  ship_id = $2, voyage_id = $3, voyage_leg_id = $4, bunker_port_code = $5, bunker_date = $6, bdn_number = $7,
  bunker_category = $8, fuel_type_key = $9, lube_oil_type_key = $10, bunkered_quantity = $11, density_at_15c = $12,
  sulphur_content_percent = $13, flash_point_c = $14, viscosity_at_50c_cst = $15, water_content_percent = $16,
  lcv = $17, temperature_c = $18, pressure_bar = $19, supplier_name = $20, barge_name = $21,
  marpol_sample_seal_number = $22, bdn_declaration_received = $23, final_quantity_mt = $24, initial_volume_m3 = $25,
  final_volume_m3 = $26, bunkered_volume_m3 = $27, operation_type = $28, correction_sign = $29, remarks = $30,
  modified_by = $31, updated_at = now()
WHERE id = $1`
		if _, err := tx.Exec(ctx, q, id, next.ShipID, next.VoyageID, next.VoyageLegID, next.BunkerPortCode, next.BunkerDate,
			next.BDNNumber, next.BunkerCategory, next.FuelTypeKey, next.LubeOilTypeKey, next.BunkeredQuantity,
			next.DensityAt15C, next.SulphurContentPercent, next.FlashPointC, next.ViscosityAt50CcSt,
			next.WaterContentPercent, next.LCV, next.TemperatureC, next.PressureBar, next.SupplierName, next.BargeName,
			next.MarpolSampleSealNumber, next.BDNDeclarationReceived, next.FinalQuantityMT, next.InitialVolumeM3,
			next.FinalVolumeM3, next.BunkeredVolumeM3, next.OperationType, next.CorrectionSign, next.Remarks, actor); err != nil {
			return err
		}

		w := rob.NewWriter(rob.NewPGStore(tx))
		if err := w.RecordAdjustments(ctx, rob.Diff(old.Effect(), next.Effect()), time.Now().UTC(), id); err != nil {
			return err
		}
		if err := attachments.Insert(ctx, tx, attachments.Bunker.OwnerType, id, files, actor); err != nil {
			return err
		}
		res = Result{ID: id, BDNNumber: next.BDNNumber, Entries: w.Entries()}
		return nil
	})
	if db.IsForeignKeyViolation(err) {
		return Result{}, errors.Join(ErrInvalid, err)
	}
	return res, err
}

// Deactivate hides the record. The ledgers are left as they are.
func (r *Repo) Deactivate(ctx context.Context, id int64, actor string) error {
	tag, err := r.pg.Exec(ctx, `UPDATE bunker_records SET is_active = FALSE, modified_by = $2, updated_at = now() WHERE id = $1`, id, actor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var b Record
	err := row.Scan(&b.ID, &b.ShipID, &b.ShipName, &b.VoyageID, &b.VoyageLegID, &b.BunkerPortCode, &b.BunkerDate,
		&b.BDNNumber, &b.BunkerCategory, &b.FuelTypeKey, &b.LubeOilTypeKey, &b.BunkeredQuantity, &b.DensityAt15C,
		&b.SulphurContentPercent, &b.FlashPointC, &b.ViscosityAt50CcSt, &b.WaterContentPercent, &b.LCV,
		&b.TemperatureC, &b.PressureBar, &b.SupplierName, &b.BargeName, &b.MarpolSampleSealNumber,
		&b.BDNDeclarationReceived, &b.InitialQuantityMT, &b.FinalQuantityMT, &b.InitialVolumeM3, &b.FinalVolumeM3,
		&b.BunkeredVolumeM3, &b.OperationType, &b.CorrectionSign, &b.Remarks, &b.IsActive, &b.CreatedBy,
		&b.ModifiedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}
