package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cserv-ai/cserv/internal/notify"
	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	List(ctx context.Context) ([]User, error)
	ListByRoles(ctx context.Context, roles []rbac.Role) ([]User, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	Insert(ctx context.Context, u User) (int64, error)
	Update(ctx context.Context, u User) error
}

// Notifier receives registration events.
type Notifier interface {
	Dispatch(ctx context.Context, evt notify.Event) []notify.Notification
}

// ServiceConfig tunes the service.
type ServiceConfig struct {
	HashCost int
	Clock    shared.Clock
}

// Service handles principal administration.
type Service struct {
	repo     RepositoryPort
	notifier Notifier
	logger   *slog.Logger
	cfg      ServiceConfig
	titler   cases.Caser
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, notifier Notifier, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		titler:   cases.Title(language.Und, cases.NoLower),
	}
}

// FindPrincipal loads a principal by id.
func (s *Service) FindPrincipal(ctx context.Context, id int64) (rbac.Principal, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return rbac.Principal{}, err
	}
	return u.Principal(), nil
}

// ListPrincipals returns active principals holding any of roles.
func (s *Service) ListPrincipals(ctx context.Context, roles ...rbac.Role) ([]rbac.Principal, error) {
	list, err := s.repo.ListByRoles(ctx, roles)
	if err != nil {
		return nil, err
	}
	out := make([]rbac.Principal, 0, len(list))
	for _, u := range list {
		if u.Active {
			out = append(out, u.Principal())
		}
	}
	return out, nil
}

// FindByUsername returns the account for login.
func (s *Service) FindByUsername(ctx context.Context, username string) (User, error) {
	return s.repo.FindByUsername(ctx, strings.TrimSpace(username))
}

// List returns every account, including deactivated ones.
func (s *Service) List(ctx context.Context, actor rbac.Principal) ([]User, error) {
	if err := rbac.Require(actor, rbac.ModuleUsers, rbac.ActionView); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// Create adds an account on behalf of an administrator.
func (s *Service) Create(ctx context.Context, actor rbac.Principal, in CreateInput) (User, error) {
	if err := rbac.Require(actor, rbac.ModuleUsers, rbac.ActionEdit); err != nil {
		return User{}, err
	}
	if in.Role == "" {
		in.Role = rbac.RoleOperator
	}
	if !in.Role.Valid() {
		return User{}, shared.Validation("unknown role %q", in.Role)
	}
	if in.Role == rbac.RoleSuperAdmin && actor.Role != rbac.RoleSuperAdmin {
		return User{}, shared.Denied("only a superadmin may create a superadmin")
	}
	perms := rbac.DefaultPermissions(in.Role)
	if in.Permissions != nil {
		perms = *in.Permissions
	}
	return s.insert(ctx, in.Username, in.Password, in.Name, in.Email, in.Role, perms, actor.ID)
}

// Register creates an operator account with no capabilities and informs the
// administrators.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	u, err := s.insert(ctx, in.Username, in.Password, in.Name, in.Email, rbac.RoleOperator, rbac.PermissionSet{}, 0)
	if err != nil {
		return User{}, err
	}
	if s.notifier != nil {
		s.notifier.Dispatch(ctx, notify.Event{
			Category: notify.CategoryUserRegistered,
			ActorID:  u.ID,
			Ref:      notify.Ref{Type: notify.RefUser, ID: u.ID},
			Message:  fmt.Sprintf("%s (%s) registered and awaits access", u.Name, u.Username),
		})
	}
	return u, nil
}

// Update changes profile, credentials, role or permissions of an account.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, id int64, in UpdateInput) (User, error) {
	if err := rbac.Require(actor, rbac.ModuleUsers, rbac.ActionEdit); err != nil {
		return User{}, err
	}
	var hash string
	if in.Password != nil {
		if len(*in.Password) < MinPasswordLength {
			return User{}, shared.Validation("password must have at least %d characters", MinPasswordLength)
		}
		h, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.cfg.HashCost)
		if err != nil {
			return User{}, err
		}
		hash = string(h)
	}
	if in.Role != nil && !in.Role.Valid() {
		return User{}, shared.Validation("unknown role %q", *in.Role)
	}
	var updated User
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		u, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if u.Role == rbac.RoleSuperAdmin && actor.Role != rbac.RoleSuperAdmin {
			return shared.Denied("only a superadmin may modify a superadmin")
		}
		if in.Role != nil && *in.Role == rbac.RoleSuperAdmin && actor.Role != rbac.RoleSuperAdmin {
			return shared.Denied("only a superadmin may grant the superadmin role")
		}
		if in.Name != nil {
			name := s.normalizeName(*in.Name)
			if name == "" {
				return shared.Validation("name must not be empty")
			}
			u.Name = name
		}
		if in.Email != nil {
			u.Email = strings.TrimSpace(*in.Email)
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		if in.Role != nil {
			u.Role = *in.Role
		}
		if in.Permissions != nil {
			u.Permissions = *in.Permissions
		}
		if in.Active != nil {
			if !*in.Active {
				if err := guardDeactivation(actor, u); err != nil {
					return err
				}
			}
			u.Active = *in.Active
		}
		u.UpdatedAt = s.cfg.Clock.Now().UTC()
		if err := tx.Update(ctx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user updated", slog.Int64("user_id", id), slog.Int64("actor_id", actor.ID))
	return updated, nil
}

// Deactivate soft-deletes an account. Leave requests keep referencing it.
func (s *Service) Deactivate(ctx context.Context, actor rbac.Principal, id int64) error {
	inactive := false
	_, err := s.Update(ctx, actor, id, UpdateInput{Active: &inactive})
	return err
}

func guardDeactivation(actor rbac.Principal, u User) error {
	if u.Protected {
		return shared.Validation("cannot deactivate the default administrator")
	}
	if u.ID == actor.ID {
		return shared.Validation("cannot deactivate your own account")
	}
	return nil
}

func (s *Service) insert(ctx context.Context, username, password, name, email string, role rbac.Role, perms rbac.PermissionSet, actorID int64) (User, error) {
	username = strings.TrimSpace(username)
	name = s.normalizeName(name)
	if username == "" || password == "" || name == "" {
		return User{}, shared.Validation("username, password, name required")
	}
	if len(password) < MinPasswordLength {
		return User{}, shared.Validation("password must have at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.HashCost)
	if err != nil {
		return User{}, err
	}
	now := s.cfg.Clock.Now().UTC()
	u := User{
		Username:     username,
		Name:         name,
		Email:        strings.TrimSpace(email),
		Role:         role,
		Permissions:  perms,
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		taken, err := tx.UsernameTaken(ctx, username)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: username already exists", shared.ErrConflict)
		}
		id, err := tx.Insert(ctx, u)
		if err != nil {
			return err
		}
		u.ID = id
		return nil
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user created", slog.Int64("user_id", u.ID), slog.String("role", string(role)), slog.Int64("actor_id", actorID))
	return u, nil
}

func (s *Service) normalizeName(raw string) string {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return ""
	}
	return s.titler.String(name)
}

// CheckPassword compares a plaintext password against the stored hash.
func CheckPassword(u User, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return shared.ErrInvalidCredentials
		}
		return err
	}
	return nil
}
