package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/attachments"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/db"
)

type Repo struct {
	pg *pgxpool.Pool
}

func NewRepo(pg *pgxpool.Pool) *Repo { return &Repo{pg: pg} }

const taskCols = `t.id, t.member_id, m.member_name, t.task, t.status_code, t.product_code, t.application,
  t.man_hours::float8, t.jira_ticket, t.task_date, t.start_date, t.end_date, t.completion_date, t.is_completed,
  t.created_at, t.updated_at`

const taskFrom = ` FROM tasks t JOIN team_members m ON m.id = t.member_id`

func (r *Repo) List(ctx context.Context) ([]Task, error) {
	return r.list(ctx, `SELECT `+taskCols+taskFrom+` ORDER BY t.task_date DESC, t.id DESC`)
}

func (r *Repo) ByMember(ctx context.Context, memberID int64) ([]Task, error) {
	return r.list(ctx, `SELECT `+taskCols+taskFrom+` WHERE t.member_id = $1 ORDER BY t.task_date DESC, t.id DESC`, memberID)
}

func (r *Repo) list(ctx context.Context, q string, args ...any) ([]Task, error) {
	rows, err := r.pg.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (*Task, error) {
	return scanTask(r.pg.QueryRow(ctx, `SELECT `+taskCols+taskFrom+` WHERE t.id = $1`, id))
}

// Create inserts the task and its attachment rows in one transaction.
func (r *Repo) Create(ctx context.Context, p Patch, files []attachments.Stored, actor string) (int64, error) {
	if err := p.Validate(true); err != nil {
		return 0, err
	}
	const q = `
INSERT INTO tasks (member_id, task, status_code, product_code, application, man_hours, jira_ticket,
  task_date, start_date, end_date, completion_date, is_completed)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, CURRENT_DATE), $9, $10, $11, $3 = $12)
RETURNING id`
	var id int64
	err := db.InTx(ctx, r.pg, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, q, p.MemberID, p.Task, p.StatusCode, p.ProductCode, p.Application, p.ManHours,
			p.JiraTicket, p.TaskDate, p.StartDate, p.EndDate, p.CompletionDate, StatusDone).Scan(&id)
		if err != nil {
			return err
		}
		return attachments.Insert(ctx, tx, attachments.Task.OwnerType, id, files, actor)
	})
	if db.IsForeignKeyViolation(err) {
		return 0, fmt.Errorf("%w: unknown member", ErrInvalid)
	}
	return id, err
}

func (r *Repo) Update(ctx context.Context, id int64, p Patch, files []attachments.Stored, actor string) error {
	if err := p.Validate(false); err != nil {
		return err
	}
	const q = `
UPDATE tasks SET
  member_id = COALESCE($2, member_id),
  task = COALESCE($3, task),
  status_code = COALESCE($4, status_code),
  product_code = COALESCE($5, product_code),
  application = COALESCE($6, application),
  man_hours = COALESCE($7, man_hours),
  jira_ticket = COALESCE($8, jira_ticket),
  task_date = COALESCE($9, task_date),
  start_date = COALESCE($10, start_date),
  end_date = COALESCE($11, end_date),
  completion_date = COALESCE($12, completion_date),
  is_completed = COALESCE($4, status_code) = $13,
  updated_at = now()
WHERE id = $1`
	err := db.InTx(ctx, r.pg, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, id, p.MemberID, p.Task, p.StatusCode, p.ProductCode, p.Application, p.ManHours,
			p.JiraTicket, p.TaskDate, p.StartDate, p.EndDate, p.CompletionDate, StatusDone)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return attachments.Insert(ctx, tx, attachments.Task.OwnerType, id, files, actor)
	})
	if db.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: unknown member", ErrInvalid)
	}
	return err
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.MemberID, &t.MemberName, &t.Task, &t.StatusCode, &t.ProductCode, &t.Application,
		&t.ManHours, &t.JiraTicket, &t.TaskDate, &t.StartDate, &t.EndDate, &t.CompletionDate, &t.IsCompleted,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}
