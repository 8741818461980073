package roster

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cserv-ai/cserv/internal/platform/db"
	"github.com/cserv-ai/cserv/internal/shared"
)

const (
	summaryColumns = `id, title, month, year, agent_count, target_wo, saved_at, saved_by, approved, approved_at, approved_by`
	// rosterLockKey serialises inserts with retention trimming.
	rosterLockKey int64 = 0x726f73746572
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn inside a ReadCommitted transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get loads a roster with its document.
func (r *Repository) Get(ctx context.Context, id int64) (Roster, error) {
	var out Roster
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT `+summaryColumns+`, document FROM rosters WHERE id = $1`, id).Scan(
		&out.ID, &out.Title, &out.Month, &out.Year, &out.AgentCount, &out.TargetWO,
		&out.SavedAt, &out.SavedBy, &out.Approved, &out.ApprovedAt, &out.ApprovedBy, &doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return Roster{}, shared.NotFound("roster", id)
	}
	if err != nil {
		return Roster{}, shared.Storage("get roster", err)
	}
	out.Document = doc
	return out, nil
}

// List returns summaries newest first.
func (r *Repository) List(ctx context.Context, approvedOnly bool) ([]Roster, error) {
	sql := `SELECT ` + summaryColumns + ` FROM rosters`
	if approvedOnly {
		sql += ` WHERE approved`
	}
	sql += ` ORDER BY id DESC`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, shared.Storage("list rosters", err)
	}
	defer rows.Close()
	var out []Roster
	for rows.Next() {
		var s Roster
		if err := rows.Scan(&s.ID, &s.Title, &s.Month, &s.Year, &s.AgentCount, &s.TargetWO,
			&s.SavedAt, &s.SavedBy, &s.Approved, &s.ApprovedAt, &s.ApprovedBy); err != nil {
			return nil, shared.Storage("scan roster", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("list rosters", err)
	}
	return out, nil
}

func (t *txRepo) Insert(ctx context.Context, r Roster) (int64, error) {
	if err := db.LockKey(ctx, t.tx, rosterLockKey); err != nil {
		return 0, err
	}
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO rosters (title, month, year, agent_count, target_wo, document, saved_at, saved_by, approved)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE) RETURNING id`,
		r.Title, r.Month, r.Year, r.AgentCount, r.TargetWO, []byte(r.Document), r.SavedAt, r.SavedBy).Scan(&id)
	return id, err
}

func (t *txRepo) Trim(ctx context.Context, keep int) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM rosters WHERE id <= (
	SELECT id FROM rosters ORDER BY id DESC OFFSET $1 LIMIT 1
)`, keep)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Roster, error) {
	var out Roster
	err := t.tx.QueryRow(ctx, `SELECT `+summaryColumns+` FROM rosters WHERE id = $1 FOR UPDATE`, id).Scan(
		&out.ID, &out.Title, &out.Month, &out.Year, &out.AgentCount, &out.TargetWO,
		&out.SavedAt, &out.SavedBy, &out.Approved, &out.ApprovedAt, &out.ApprovedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return Roster{}, shared.NotFound("roster", id)
	}
	return out, err
}

func (t *txRepo) MarkApproved(ctx context.Context, id int64, at time.Time, by string) error {
	_, err := t.tx.Exec(ctx, `UPDATE rosters SET approved = TRUE, approved_at = $2, approved_by = $3 WHERE id = $1`, id, at, by)
	return err
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM rosters WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("roster", id)
	}
	return nil
}
