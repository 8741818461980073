package settings

import (
	"context"
	"log/slog"
	"maps"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
)

// RepositoryPort defines data access methods for settings.
type RepositoryPort interface {
	Load(ctx context.Context) (Settings, ModuleAccess, error)
	SaveSettings(ctx context.Context, s Settings) error
	SaveAccess(ctx context.Context, access ModuleAccess) error
}

// Service manages tenant settings and module switches.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	group  singleflight.Group
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

type snapshot struct {
	settings Settings
	access   ModuleAccess
}

// load collapses concurrent reads; every request consults the module map.
func (s *Service) load(ctx context.Context) (snapshot, error) {
	v, err, _ := s.group.Do("settings", func() (any, error) {
		st, access, err := s.repo.Load(ctx)
		if err != nil {
			return nil, err
		}
		return snapshot{settings: st, access: access}, nil
	})
	if err != nil {
		return snapshot{}, err
	}
	return v.(snapshot), nil
}

// Settings returns the display settings.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return Settings{}, err
	}
	return snap.settings, nil
}

// Access returns the module switches with every toggleable module present.
func (s *Service) Access(ctx context.Context) (ModuleAccess, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(ModuleAccess, len(toggleable))
	for m := range toggleable {
		enabled, ok := snap.access[m]
		out[m] = !ok || enabled
	}
	return out, nil
}

// ModuleEnabled implements rbac.ModuleGate.
func (s *Service) ModuleEnabled(ctx context.Context, module rbac.Module) (bool, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	enabled, ok := snap.access[module]
	return !ok || enabled, nil
}

// UpdateSettings merges p into the stored settings.
func (s *Service) UpdateSettings(ctx context.Context, actor rbac.Principal, p Patch) (Settings, error) {
	if err := rbac.Require(actor, rbac.ModuleSettings, rbac.ActionEdit); err != nil {
		return Settings{}, err
	}
	current, err := s.Settings(ctx)
	if err != nil {
		return Settings{}, err
	}
	if p.AppName != nil {
		current.AppName = strings.TrimSpace(*p.AppName)
	}
	if p.OrgName != nil {
		current.OrgName = strings.TrimSpace(*p.OrgName)
	}
	if current.AppName == "" || current.OrgName == "" {
		return Settings{}, shared.Validation("appName and orgName must not be empty")
	}
	if err := s.repo.SaveSettings(ctx, current); err != nil {
		return Settings{}, err
	}
	s.logger.Info("settings updated", slog.Int64("actor_id", actor.ID))
	return current, nil
}

// UpdateAccess replaces the module switches.
func (s *Service) UpdateAccess(ctx context.Context, actor rbac.Principal, access ModuleAccess) (ModuleAccess, error) {
	if err := rbac.Require(actor, rbac.ModuleSettings, rbac.ActionEdit); err != nil {
		return nil, err
	}
	for m := range access {
		if _, ok := toggleable[m]; !ok {
			return nil, shared.Validation("module %q cannot be switched", m)
		}
	}
	if err := s.repo.SaveAccess(ctx, maps.Clone(access)); err != nil {
		return nil, err
	}
	s.logger.Info("module access updated", slog.Any("access", access), slog.Int64("actor_id", actor.ID))
	return s.Access(ctx)
}
