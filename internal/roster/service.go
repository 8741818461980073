package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cserv-ai/cserv/internal/notify"
	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
)

const moduleName = "roster"

// RepositoryPort defines data access methods for rosters.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Roster, error)
	// List returns summaries newest first.
	List(ctx context.Context, approvedOnly bool) ([]Roster, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Insert(ctx context.Context, r Roster) (int64, error)
	// Trim deletes everything but the newest keep rosters.
	Trim(ctx context.Context, keep int) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (Roster, error)
	MarkApproved(ctx context.Context, id int64, at time.Time, by string) error
	Delete(ctx context.Context, id int64) error
}

// Notifier fans transitions out to recipients.
type Notifier interface {
	Dispatch(ctx context.Context, evt notify.Event) []notify.Notification
}

// ApprovalRecorder appends to the approval history.
type ApprovalRecorder interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// TransitionObserver counts successful transitions.
type TransitionObserver interface {
	ObserveTransition(entity, transition string)
}

// ServiceConfig carries retention and optional collaborators.
type ServiceConfig struct {
	Retention int
	Clock     shared.Clock
	Approvals ApprovalRecorder
	Observer  TransitionObserver
}

// Service governs roster storage and visibility.
type Service struct {
	repo     RepositoryPort
	notifier Notifier
	logger   *slog.Logger
	cfg      ServiceConfig
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, notifier Notifier, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, logger: logger, cfg: cfg}
}

// Save stores a new unapproved roster and evicts the oldest beyond retention.
func (s *Service) Save(ctx context.Context, actor rbac.Principal, in SaveInput) (Roster, error) {
	if err := rbac.Require(actor, rbac.ModuleRoster, rbac.ActionCreate); err != nil {
		return Roster{}, err
	}
	if in.Month < 1 || in.Month > 12 {
		return Roster{}, shared.Validation("month must be 1-12")
	}
	if in.Year < 2000 || in.Year > 2100 {
		return Roster{}, shared.Validation("year out of range")
	}
	if len(in.Document) == 0 || !json.Valid(in.Document) {
		return Roster{}, shared.Validation("document must be valid JSON")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = fmt.Sprintf("Roster %s %d", time.Month(in.Month), in.Year)
	}
	r := Roster{
		Title:      title,
		Month:      in.Month,
		Year:       in.Year,
		AgentCount: in.AgentCount,
		TargetWO:   in.TargetWO,
		Document:   in.Document,
		SavedAt:    s.cfg.Clock.Now().UTC(),
		SavedBy:    actor.DisplayName(),
	}
	var evicted int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, r)
		if err != nil {
			return err
		}
		r.ID = id
		evicted, err = tx.Trim(ctx, s.cfg.Retention)
		return err
	})
	if err != nil {
		return Roster{}, err
	}
	s.logger.Info("roster saved", slog.Int64("roster_id", r.ID), slog.Int64("evicted", evicted), slog.Int64("actor_id", actor.ID))
	return r, nil
}

// List returns roster summaries to holders of roster.view. Non-administrators
// only see approved ones.
func (s *Service) List(ctx context.Context, actor rbac.Principal) ([]Roster, error) {
	if err := rbac.Require(actor, rbac.ModuleRoster, rbac.ActionView); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, !rbac.IsAdministrative(actor))
}

// Get returns the full roster. Unapproved rosters are denied to
// non-administrators rather than reported missing.
func (s *Service) Get(ctx context.Context, actor rbac.Principal, id int64) (Roster, error) {
	if err := rbac.Require(actor, rbac.ModuleRoster, rbac.ActionView); err != nil {
		return Roster{}, err
	}
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return Roster{}, err
	}
	if !r.Approved && !rbac.IsAdministrative(actor) {
		return Roster{}, shared.Denied("roster %d is awaiting approval", id)
	}
	return r, nil
}

// Approve makes the roster visible to everyone and informs the operators.
// Approving twice fails with an invalid-state error and sends nothing.
func (s *Service) Approve(ctx context.Context, actor rbac.Principal, id int64) (Roster, error) {
	if err := rbac.Require(actor, rbac.ModuleRoster, rbac.ActionApprove); err != nil {
		return Roster{}, err
	}
	var approved Roster
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		r, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r.Approved {
			return shared.NewInvalidState("roster", "approve", "Approved")
		}
		at := s.cfg.Clock.Now().UTC()
		if err := tx.MarkApproved(ctx, id, at, actor.DisplayName()); err != nil {
			return err
		}
		r.Approved, r.ApprovedAt, r.ApprovedBy = true, &at, actor.DisplayName()
		approved = r
		return nil
	})
	if err != nil {
		return Roster{}, err
	}

	if s.cfg.Approvals != nil {
		err := s.cfg.Approvals.Record(ctx, shared.ApprovalLog{
			Module:  moduleName,
			RefID:   shared.ApprovalRef(moduleName, id),
			ActorID: actor.ID,
			Action:  shared.ApprovalApprove,
			At:      *approved.ApprovedAt,
		})
		if err != nil {
			s.logger.Warn("record roster approval", slog.Int64("roster_id", id), slog.Any("error", err))
		}
	}
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveTransition("roster", "approve")
	}
	s.logger.Info("roster approved", slog.Int64("roster_id", id), slog.Int64("actor_id", actor.ID))
	if s.notifier != nil {
		s.notifier.Dispatch(ctx, notify.Event{
			Category: notify.CategoryRosterApproved,
			ActorID:  actor.ID,
			Ref:      notify.Ref{Type: notify.RefRoster, ID: id},
			Message:  fmt.Sprintf("%s is now published", approved.Title),
		})
	}
	return approved, nil
}

// Delete removes a roster.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, id int64) error {
	if err := rbac.Require(actor, rbac.ModuleRoster, rbac.ActionDelete); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("roster deleted", slog.Int64("roster_id", id), slog.Int64("actor_id", actor.ID))
	return nil
}
