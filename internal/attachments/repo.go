package attachments

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/db"
)

var ErrNotFound = errors.New("attachment not found")

// Attachment is a metadata row pointing at a blob.
type Attachment struct {
	ID           int64     `json:"id"`
	OwnerType    string    `json:"ownerType"`
	OwnerID      int64     `json:"ownerId"`
	Key          string    `json:"filePath"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"fileType"`
	Size         int64     `json:"fileSize"`
	CreatedBy    *string   `json:"createdBy,omitempty"`
	CreatedAt    time.Time `json:"uploadedAt"`
}

type Repo struct {
	pg *pgxpool.Pool
}

func NewRepo(pg *pgxpool.Pool) *Repo { return &Repo{pg: pg} }

// Insert writes metadata rows using q, normally the caller's transaction.
func Insert(ctx context.Context, q db.DBTX, ownerType string, ownerID int64, files []Stored, actor string) error {
	const stmt = `
INSERT INTO attachments (owner_type, owner_id, blob_key, original_name, mime_type, size_bytes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, f := range files {
		if _, err := q.Exec(ctx, stmt, ownerType, ownerID, f.Key, f.OriginalName, f.MimeType, f.Size, actor); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) ListByOwner(ctx context.Context, ownerType string, ownerID int64) ([]Attachment, error) {
	const q = `
SELECT id, owner_type, owner_id, blob_key, original_name, mime_type, size_bytes, created_by, created_at
FROM attachments
WHERE owner_type = $1 AND owner_id = $2 AND is_active
ORDER BY created_at, id`
	rows, err := r.pg.Query(ctx, q, ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, ownerType string, id int64) (*Attachment, error) {
	const q = `
SELECT id, owner_type, owner_id, blob_key, original_name, mime_type, size_bytes, created_by, created_at
FROM attachments
WHERE id = $1 AND owner_type = $2 AND is_active`
	return scanAttachment(r.pg.QueryRow(ctx, q, id, ownerType))
}

// GetByKey resolves a stored file path, used by the /uploads/... routes.
func (r *Repo) GetByKey(ctx context.Context, key string) (*Attachment, error) {
	const q = `
SELECT id, owner_type, owner_id, blob_key, original_name, mime_type, size_bytes, created_by, created_at
FROM attachments
WHERE blob_key = $1 AND is_active`
	return scanAttachment(r.pg.QueryRow(ctx, q, key))
}

// Deactivate soft-deletes the row; the blob is kept for audit.
func (r *Repo) Deactivate(ctx context.Context, ownerType string, id int64) error {
	tag, err := r.pg.Exec(ctx, `UPDATE attachments SET is_active = FALSE WHERE id = $1 AND owner_type = $2 AND is_active`, id, ownerType)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAttachment(row pgx.Row) (*Attachment, error) {
	var a Attachment
	err := row.Scan(&a.ID, &a.OwnerType, &a.OwnerID, &a.Key, &a.OriginalName, &a.MimeType, &a.Size, &a.CreatedBy, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
