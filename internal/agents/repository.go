package agents

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cserv-ai/cserv/internal/platform/db"
	"github.com/cserv-ai/cserv/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns agents ordered by position.
func (r *Repository) List(ctx context.Context) ([]Agent, error) {
	rows, err := r.pool.Query(ctx, `SELECT emp_code, name, level, department, location FROM agents ORDER BY position`)
	if err != nil {
		return nil, shared.Storage("list agents", err)
	}
	defer rows.Close()
	var out []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.EmpCode, &a.Name, &a.Level, &a.Department, &a.Location); err != nil {
			return nil, shared.Storage("scan agent", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("list agents", err)
	}
	return out, nil
}

// Replace deletes and re-inserts the directory in one transaction.
func (r *Repository) Replace(ctx context.Context, list []Agent) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM agents`); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for i, a := range list {
			batch.Queue(`INSERT INTO agents (emp_code, name, level, department, location, position) VALUES ($1, $2, $3, $4, $5, $6)`,
				a.EmpCode, a.Name, a.Level, a.Department, a.Location, i)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}
