package agents

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
)

// RepositoryPort defines data access methods for the agent directory.
type RepositoryPort interface {
	List(ctx context.Context) ([]Agent, error)
	// Replace swaps the whole directory atomically, keeping slice order.
	Replace(ctx context.Context, agents []Agent) error
}

// Service manages the agent directory.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns the directory in its stored order to holders of agents.view.
func (s *Service) List(ctx context.Context, actor rbac.Principal) ([]Agent, error) {
	if err := rbac.Require(actor, rbac.ModuleAgents, rbac.ActionView); err != nil {
		return nil, err
	}
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Agent{}
	}
	return list, nil
}

// Replace overwrites the directory. Employee codes must be unique.
func (s *Service) Replace(ctx context.Context, actor rbac.Principal, list []Agent) error {
	if err := rbac.Require(actor, rbac.ModuleAgents, rbac.ActionEdit); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(list))
	clean := make([]Agent, 0, len(list))
	for i, a := range list {
		a.EmpCode = strings.ToUpper(strings.TrimSpace(a.EmpCode))
		a.Name = strings.TrimSpace(a.Name)
		if a.EmpCode == "" || a.Name == "" {
			return shared.Validation("agent %d: emp and name required", i+1)
		}
		if _, dup := seen[a.EmpCode]; dup {
			return shared.Validation("duplicate employee code %s", a.EmpCode)
		}
		seen[a.EmpCode] = struct{}{}
		clean = append(clean, a)
	}
	if err := s.repo.Replace(ctx, clean); err != nil {
		return err
	}
	s.logger.Info("agent directory replaced", slog.Int("count", len(clean)), slog.Int64("actor_id", actor.ID))
	return nil
}
