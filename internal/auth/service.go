package auth

import (
	"context"
	"errors"
	"time"

	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/settings"
	"github.com/cserv-ai/cserv/internal/shared"
	"github.com/cserv-ai/cserv/internal/users"
)

// Accounts is the slice of the users service auth relies on.
type Accounts interface {
	FindByUsername(ctx context.Context, username string) (users.User, error)
	Register(ctx context.Context, in users.RegisterInput) (users.User, error)
}

// SettingsSource exposes tenant settings for the profile payload.
type SettingsSource interface {
	Settings(ctx context.Context) (settings.Settings, error)
	Access(ctx context.Context) (settings.ModuleAccess, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	accounts Accounts
	rbac     *rbac.Service
	settings SettingsSource
	clock    shared.Clock
}

// NewService constructs a new Service.
func NewService(repo Repository, accounts Accounts, authz *rbac.Service, src SettingsSource, clock shared.Clock) *Service {
	return &Service{repo: repo, accounts: accounts, rbac: authz, settings: src, clock: clock}
}

// Authenticate validates username/password credentials. Unknown, inactive and
// mismatched accounts all report ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (users.User, error) {
	u, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return users.User{}, shared.ErrInvalidCredentials
		}
		return users.User{}, err
	}
	if !u.Active {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := users.CheckPassword(u, password); err != nil {
		return users.User{}, err
	}
	return u, nil
}

// Register creates a self-service operator account.
func (s *Service) Register(ctx context.Context, in users.RegisterInput) (users.User, error) {
	return s.accounts.Register(ctx, in)
}

// RegisterSession records the session metadata.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, ttl time.Duration, ip, ua string) error {
	now := s.clock.Now()
	return s.repo.CreateSession(ctx, SessionRecord{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		IP:        ip,
		UserAgent: ua,
	})
}

// RemoveSession deletes a session record.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// Profile assembles the client bootstrap payload for the principal.
func (s *Service) Profile(ctx context.Context, p rbac.Principal) (Profile, error) {
	perms, err := s.rbac.EffectivePermissions(ctx, p.ID)
	if err != nil {
		return Profile{}, err
	}
	out := Profile{
		User: users.View{
			ID:          p.ID,
			Username:    p.Username,
			Name:        p.Name,
			Email:       p.Email,
			Role:        p.Role,
			Permissions: p.Permissions,
			Active:      p.Active,
			CreatedAt:   p.CreatedAt,
		},
		Permissions:  perms,
		Catalog:      rbac.Catalog(),
		Settings:     settings.Defaults,
		ModuleAccess: settings.ModuleAccess{},
	}
	if s.settings == nil {
		return out, nil
	}
	if out.Settings, err = s.settings.Settings(ctx); err != nil {
		return Profile{}, err
	}
	if out.ModuleAccess, err = s.settings.Access(ctx); err != nil {
		return Profile{}, err
	}
	return out, nil
}
