package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cserv-ai/cserv/internal/platform/db"
	"github.com/cserv-ai/cserv/internal/shared"
)

const requestColumns = `id, agent_id, agent_name, leave_date, half_day, reason, status, leave_type, requested_at,
approved_at, approved_by, approve_remarks, rejected_at, rejected_by, reject_remarks,
cancelled_at, cancelled_by, cancel_remarks, updated_at`

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

// Get loads a request by id.
func (r *Repository) Get(ctx context.Context, id int64) (Request, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, shared.NotFound("leave request", id)
	}
	if err != nil {
		return Request{}, shared.Storage("get leave request", err)
	}
	return req, nil
}

// List returns matching requests newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	var (
		where []string
		args  []any
	)
	if filter.AgentID != 0 {
		args = append(args, filter.AgentID)
		where = append(where, fmt.Sprintf("agent_id = $%d", len(args)))
	}
	if filter.Month != "" {
		args = append(args, filter.Month)
		where = append(where, fmt.Sprintf("quota_month = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	sql := `SELECT ` + requestColumns + ` FROM leave_requests`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY id DESC`
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, shared.Storage("list leave requests", err)
	}
	out, err := collectRequests(rows)
	if err != nil {
		return nil, shared.Storage("list leave requests", err)
	}
	return out, nil
}

// CountByStatus aggregates a month by status.
func (r *Repository) CountByStatus(ctx context.Context, month string) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM leave_requests WHERE quota_month = $1 GROUP BY status`, month)
	if err != nil {
		return nil, shared.Storage("count leave requests", err)
	}
	defer rows.Close()
	out := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, shared.Storage("count leave requests", err)
		}
		out[Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("count leave requests", err)
	}
	return out, nil
}

// UsageByAgent returns quota consumption per agent for a month.
func (r *Repository) UsageByAgent(ctx context.Context, month string) ([]AgentUsage, error) {
	rows, err := r.pool.Query(ctx, `SELECT agent_id, MAX(agent_name), COUNT(*) FROM leave_requests
WHERE quota_month = $1 AND status <> $2 GROUP BY agent_id ORDER BY agent_id`, month, string(StatusCancelled))
	if err != nil {
		return nil, shared.Storage("leave usage", err)
	}
	defer rows.Close()
	var out []AgentUsage
	for rows.Next() {
		var u AgentUsage
		if err := rows.Scan(&u.AgentID, &u.AgentName, &u.Consumed); err != nil {
			return nil, shared.Storage("leave usage", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("leave usage", err)
	}
	return out, nil
}

// LockQuota serialises applications against one agent's bucket.
func (t *txRepo) LockQuota(ctx context.Context, agentID int64, month string) error {
	return db.LockKey(ctx, t.tx, shared.QuotaLockKey(agentID, month))
}

func (t *txRepo) ListForAgentMonth(ctx context.Context, agentID int64, month string) ([]Request, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+requestColumns+` FROM leave_requests
WHERE agent_id = $1 AND quota_month = $2 ORDER BY id`, agentID, month)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (t *txRepo) Insert(ctx context.Context, req Request) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO leave_requests
(agent_id, agent_name, leave_date, quota_month, half_day, reason, status, leave_type, requested_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		req.AgentID, req.AgentName, req.LeaveDate, req.Month(), string(req.HalfDay), req.Reason,
		string(req.Status), string(req.Type), req.RequestedAt, req.UpdatedAt).Scan(&id)
	return id, err
}

// GetForUpdate locks the row until commit. Cancelling frees a quota slot, so
// the bucket lock is taken too and cancel-then-apply sees one snapshot.
func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Request, error) {
	req, err := scanRequest(t.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, shared.NotFound("leave request", id)
	}
	if err != nil {
		return Request{}, err
	}
	if err := t.LockQuota(ctx, req.AgentID, req.Month()); err != nil {
		return Request{}, err
	}
	return req, nil
}

func (t *txRepo) Update(ctx context.Context, req Request) error {
	_, err := t.tx.Exec(ctx, `UPDATE leave_requests SET status = $2,
approved_at = $3, approved_by = $4, approve_remarks = $5,
rejected_at = $6, rejected_by = $7, reject_remarks = $8,
cancelled_at = $9, cancelled_by = $10, cancel_remarks = $11, updated_at = $12
WHERE id = $1`,
		req.ID, string(req.Status),
		req.ApprovedAt, req.ApprovedBy, req.ApproveRemarks,
		req.RejectedAt, req.RejectedBy, req.RejectRemarks,
		req.CancelledAt, req.CancelledBy, req.CancelRemarks, req.UpdatedAt)
	return err
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req                      Request
		halfDay, status, reqType string
	)
	err := row.Scan(&req.ID, &req.AgentID, &req.AgentName, &req.LeaveDate, &halfDay, &req.Reason, &status, &reqType, &req.RequestedAt,
		&req.ApprovedAt, &req.ApprovedBy, &req.ApproveRemarks,
		&req.RejectedAt, &req.RejectedBy, &req.RejectRemarks,
		&req.CancelledAt, &req.CancelledBy, &req.CancelRemarks, &req.UpdatedAt)
	if err != nil {
		return Request{}, err
	}
	req.HalfDay = HalfDay(halfDay)
	req.Status = Status(status)
	req.Type = Type(reqType)
	return req, nil
}
