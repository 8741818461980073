package notify

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cserv-ai/cserv/internal/platform/db"
	"github.com/cserv-ai/cserv/internal/shared"
)

const logLockKey int64 = 0x6e6f74696679 // "notify"

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// InsertBatch stores the batch and evicts everything older than the newest
// retention rows.
func (r *PGRepository) InsertBatch(ctx context.Context, batch []Notification, retention int) ([]Notification, error) {
	stored := make([]Notification, 0, len(batch))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := db.LockKey(ctx, tx, logLockKey); err != nil {
			return err
		}
		for _, n := range batch {
			err := tx.QueryRow(ctx, `INSERT INTO notifications (recipient_id, category, message, ref_type, ref_id, read, created_at)
VALUES ($1, $2, $3, $4, $5, FALSE, $6) RETURNING id`,
				n.RecipientID, string(n.Category), n.Message, string(n.Ref.Type), n.Ref.ID, n.CreatedAt).Scan(&n.ID)
			if err != nil {
				return err
			}
			stored = append(stored, n)
		}
		_, err := tx.Exec(ctx, `DELETE FROM notifications WHERE id <= (
	SELECT id FROM notifications ORDER BY id DESC OFFSET $1 LIMIT 1
)`, retention)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListForRecipient returns notifications newest first.
func (r *PGRepository) ListForRecipient(ctx context.Context, recipientID int64) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, recipient_id, category, message, ref_type, ref_id, read, created_at
FROM notifications WHERE recipient_id = $1 ORDER BY id DESC`, recipientID)
	if err != nil {
		return nil, shared.Storage("list notifications", err)
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		var category, refType string
		if err := rows.Scan(&n.ID, &n.RecipientID, &category, &n.Message, &refType, &n.Ref.ID, &n.Read, &n.CreatedAt); err != nil {
			return nil, shared.Storage("scan notification", err)
		}
		n.Category = Category(category)
		n.Ref.Type = RefType(refType)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("list notifications", err)
	}
	return out, nil
}

// MarkRead sets read=true on a notification owned by recipientID.
func (r *PGRepository) MarkRead(ctx context.Context, recipientID, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return shared.Storage("mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("notification", id)
	}
	return nil
}

// MarkAllRead sets read=true on every unread notification of recipientID.
func (r *PGRepository) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND read = FALSE`, recipientID)
	if err != nil {
		return 0, shared.Storage("mark notifications read", err)
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
