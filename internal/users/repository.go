package users

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cserv-ai/cserv/internal/platform/db"
	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
)

const userColumns = `id, username, name, email, role, permissions, password_hash, active, protected, created_at, updated_at`

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

// Get loads a user by id.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.NotFound("user", id)
	}
	if err != nil {
		return User{}, shared.Storage("get user", err)
	}
	return u, nil
}

// FindByUsername loads a user by login name.
func (r *Repository) FindByUsername(ctx context.Context, username string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.NotFound("user", username)
	}
	if err != nil {
		return User{}, shared.Storage("find user", err)
	}
	return u, nil
}

// List returns all users ordered by id.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

// ListByRoles returns users holding any of roles.
func (r *Repository) ListByRoles(ctx context.Context, roles []rbac.Role) ([]User, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return r.query(ctx, `SELECT `+userColumns+` FROM users WHERE role = ANY($1) ORDER BY id`, names)
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]User, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, shared.Storage("list users", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, shared.Storage("scan user", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("list users", err)
	}
	return out, nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.NotFound("user", id)
	}
	return u, err
}

func (t *txRepo) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(username) = lower($1))`, username).Scan(&taken)
	return taken, err
}

func (t *txRepo) Insert(ctx context.Context, u User) (int64, error) {
	perms, err := json.Marshal(u.Permissions)
	if err != nil {
		return 0, err
	}
	var id int64
	err = t.tx.QueryRow(ctx, `INSERT INTO users (username, name, email, role, permissions, password_hash, active, protected, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		u.Username, u.Name, u.Email, string(u.Role), perms, u.PasswordHash, u.Active, u.Protected, u.CreatedAt, u.UpdatedAt).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, shared.ErrConflict
	}
	return id, err
}

func (t *txRepo) Update(ctx context.Context, u User) error {
	perms, err := json.Marshal(u.Permissions)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `UPDATE users SET name = $2, email = $3, role = $4, permissions = $5, password_hash = $6, active = $7, updated_at = $8
WHERE id = $1`, u.ID, u.Name, u.Email, string(u.Role), perms, u.PasswordHash, u.Active, u.UpdatedAt)
	return err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u     User
		role  string
		perms []byte
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &role, &perms, &u.PasswordHash, &u.Active, &u.Protected, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.Role = rbac.Role(role)
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &u.Permissions); err != nil {
			return User{}, err
		}
	}
	return u, nil
}
