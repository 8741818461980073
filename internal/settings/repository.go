package settings

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cserv-ai/cserv/internal/shared"
)

// Repository provides PostgreSQL backed persistence of the single settings row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load reads the settings row, falling back to defaults when absent.
func (r *Repository) Load(ctx context.Context) (Settings, ModuleAccess, error) {
	var (
		st  Settings
		raw []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT app_name, org_name, modules FROM settings WHERE id = 1`).Scan(&st.AppName, &st.OrgName, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Defaults, ModuleAccess{}, nil
	}
	if err != nil {
		return Settings{}, nil, shared.Storage("load settings", err)
	}
	access := ModuleAccess{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &access); err != nil {
			return Settings{}, nil, shared.Storage("decode module access", err)
		}
	}
	return st, access, nil
}

// SaveSettings upserts the display settings.
func (r *Repository) SaveSettings(ctx context.Context, s Settings) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO settings (id, app_name, org_name) VALUES (1, $1, $2)
ON CONFLICT (id) DO UPDATE SET app_name = EXCLUDED.app_name, org_name = EXCLUDED.org_name`, s.AppName, s.OrgName)
	return shared.Storage("save settings", err)
}

// SaveAccess upserts the module switches.
func (r *Repository) SaveAccess(ctx context.Context, access ModuleAccess) error {
	raw, err := json.Marshal(access)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO settings (id, app_name, org_name, modules) VALUES (1, $1, $2, $3)
ON CONFLICT (id) DO UPDATE SET modules = EXCLUDED.modules`, Defaults.AppName, Defaults.OrgName, raw)
	return shared.Storage("save module access", err)
}
