package rob

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/db"
)

// PGStore implements Store over a pgx transaction.
type PGStore struct {
	q db.DBTX
}

func NewPGStore(q db.DBTX) *PGStore { return &PGStore{q: q} }

// Lock takes a transaction scoped advisory lock on the chain key.
func (s *PGStore) Lock(ctx context.Context, k Key) error {
	_, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "rob:"+k.String())
	return err
}

func (s *PGStore) Last(ctx context.Context, k Key) (float64, time.Time, error) {
	var (
		v   float64
		at  time.Time
		err error
	)
	if k.IsBatch() {
		const q = `
SELECT final_quantity::float8, entry_date FROM bdn_rob
WHERE ship_id = $1 AND item_category = $2 AND item_type_key = $3 AND bdn_number = $4
ORDER BY entry_date DESC, id DESC
LIMIT 1`
		err = s.q.QueryRow(ctx, q, k.ShipID, k.Category, k.ItemType, k.BDNNumber).Scan(&v, &at)
	} else {
		const q = `
SELECT final_quantity::float8, entry_date FROM vessel_rob
WHERE ship_id = $1 AND item_category = $2 AND item_type_key = $3
ORDER BY entry_date DESC, id DESC
LIMIT 1`
		err = s.q.QueryRow(ctx, q, k.ShipID, k.Category, k.ItemType).Scan(&v, &at)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, time.Time{}, nil
	}
	return v, at, err
}

func (s *PGStore) Insert(ctx context.Context, e Entry) error {
	if e.BDNNumber != "" {
		const q = `
INSERT INTO bdn_rob (ship_id, bdn_number, item_category, item_type_key, entry_date,
  bunkered_quantity, consumed_quantity, initial_quantity, final_quantity, entry_mode, bunker_record_id, report_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
		_, err := s.q.Exec(ctx, q, e.ShipID, e.BDNNumber, e.Category, e.ItemType, e.EntryDate,
			e.Bunkered, e.Consumed, e.Initial, e.Final, e.Mode, e.BunkerRecordID, e.ReportID)
		return err
	}
	const q = `
INSERT INTO vessel_rob (ship_id, item_category, item_type_key, entry_date,
  bunkered_quantity, consumed_quantity, initial_quantity, final_quantity, entry_mode, bunker_record_id, report_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.q.Exec(ctx, q, e.ShipID, e.Category, e.ItemType, e.EntryDate,
		e.Bunkered, e.Consumed, e.Initial, e.Final, e.Mode, e.BunkerRecordID, e.ReportID)
	return err
}

// Balance is the current ROB of one chain.
type Balance struct {
	ShipID    int64     `json:"shipId"`
	Category  Category  `json:"itemCategory"`
	ItemType  string    `json:"itemTypeKey"`
	BDNNumber string    `json:"bdnNumber,omitempty"`
	Quantity  float64   `json:"finalQuantity"`
	AsOf      time.Time `json:"entryDate"`
}

// HistoryRow is a stored ledger entry.
type HistoryRow struct {
	ID             int64     `json:"id"`
	EntryDate      time.Time `json:"entryDate"`
	Bunkered       float64   `json:"bunkeredQuantity"`
	Consumed       float64   `json:"consumedQuantity"`
	Initial        float64   `json:"initialQuantity"`
	Final          float64   `json:"finalQuantity"`
	Mode           string    `json:"entryMode"`
	BunkerRecordID *int64    `json:"bunkerRecordId,omitempty"`
	ReportID       *int64    `json:"reportId,omitempty"`
}

// Repo serves ledger reads outside write transactions.
type Repo struct {
	pg *pgxpool.Pool
}

func NewRepo(pg *pgxpool.Pool) *Repo { return &Repo{pg: pg} }

// LastROB returns the latest vessel balance for one item, 0 when the chain is empty.
func (r *Repo) LastROB(ctx context.Context, shipID int64, cat Category, itemType string) (Balance, error) {
	const q = `
SELECT final_quantity::float8, entry_date FROM vessel_rob
WHERE ship_id = $1 AND item_category = $2 AND item_type_key = $3
ORDER BY entry_date DESC, id DESC
LIMIT 1`
	b := Balance{ShipID: shipID, Category: cat, ItemType: itemType}
	err := r.pg.QueryRow(ctx, q, shipID, cat, itemType).Scan(&b.Quantity, &b.AsOf)
	if errors.Is(err, pgx.ErrNoRows) {
		return b, nil
	}
	return b, err
}

// PositiveItems lists item types of the category whose vessel balance is above zero.
func (r *Repo) PositiveItems(ctx context.Context, shipID int64, cat Category) ([]Balance, error) {
	const q = `
SELECT item_type_key, final_quantity::float8, entry_date FROM (
  SELECT DISTINCT ON (item_type_key) item_type_key, final_quantity, entry_date
  FROM vessel_rob
  WHERE ship_id = $1 AND item_category = $2
  ORDER BY item_type_key, entry_date DESC, id DESC
) latest
WHERE final_quantity > 0
ORDER BY item_type_key`
	rows, err := r.pg.Query(ctx, q, shipID, cat)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Balance{}
	for rows.Next() {
		b := Balance{ShipID: shipID, Category: cat}
		if err := rows.Scan(&b.ItemType, &b.Quantity, &b.AsOf); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// PositiveBDNs lists delivery notes of one item with remaining quantity, oldest delivery first.
// An empty itemType returns every item of the category.
func (r *Repo) PositiveBDNs(ctx context.Context, shipID int64, cat Category, itemType string) ([]Balance, error) {
	const q = `
SELECT item_type_key, bdn_number, final_quantity::float8, entry_date FROM (
  SELECT DISTINCT ON (item_type_key, bdn_number) item_type_key, bdn_number, final_quantity, entry_date
  FROM bdn_rob
  WHERE ship_id = $1 AND item_category = $2 AND ($3::text = '' OR item_type_key = $3)
  ORDER BY item_type_key, bdn_number, entry_date DESC, id DESC
) latest
WHERE final_quantity > 0
ORDER BY entry_date, bdn_number`
	rows, err := r.pg.Query(ctx, q, shipID, cat, itemType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Balance{}
	for rows.Next() {
		b := Balance{ShipID: shipID, Category: cat}
		if err := rows.Scan(&b.ItemType, &b.BDNNumber, &b.Quantity, &b.AsOf); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BDNBalance returns the current balance of every item delivered under one BDN.
func (r *Repo) BDNBalance(ctx context.Context, shipID int64, bdn string) ([]Balance, error) {
	const q = `
SELECT DISTINCT ON (item_category, item_type_key) item_category, item_type_key, final_quantity::float8, entry_date
FROM bdn_rob
WHERE ship_id = $1 AND bdn_number = $2
ORDER BY item_category, item_type_key, entry_date DESC, id DESC`
	rows, err := r.pg.Query(ctx, q, shipID, bdn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Balance{}
	for rows.Next() {
		b := Balance{ShipID: shipID, BDNNumber: bdn}
		if err := rows.Scan(&b.Category, &b.ItemType, &b.Quantity, &b.AsOf); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// History returns the newest entries of one chain first.
func (r *Repo) History(ctx context.Context, k Key, limit int) ([]HistoryRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var (
		rows pgx.Rows
		err  error
	)
	const cols = `id, entry_date, bunkered_quantity::float8, consumed_quantity::float8,
  initial_quantity::float8, final_quantity::float8, entry_mode, bunker_record_id, report_id`
	if k.IsBatch() {
		rows, err = r.pg.Query(ctx, `SELECT `+cols+` FROM bdn_rob
WHERE ship_id = $1 AND item_category = $2 AND item_type_key = $3 AND bdn_number = $4
ORDER BY entry_date DESC, id DESC LIMIT $5`, k.ShipID, k.Category, k.ItemType, k.BDNNumber, limit)
	} else {
		rows, err = r.pg.Query(ctx, `SELECT `+cols+` FROM vessel_rob
WHERE ship_id = $1 AND item_category = $2 AND item_type_key = $3
ORDER BY entry_date DESC, id DESC LIMIT $4`, k.ShipID, k.Category, k.ItemType, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []HistoryRow{}
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(&h.ID, &h.EntryDate, &h.Bunkered, &h.Consumed, &h.Initial, &h.Final,
			&h.Mode, &h.BunkerRecordID, &h.ReportID); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
