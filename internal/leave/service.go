package leave

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cserv-ai/cserv/internal/notify"
	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
)

const moduleName = "shortleave"

// RepositoryPort defines data access methods for leave requests.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Request, error)
	List(ctx context.Context, filter ListFilter) ([]Request, error)
	CountByStatus(ctx context.Context, month string) (map[Status]int, error)
	UsageByAgent(ctx context.Context, month string) ([]AgentUsage, error)
}

// TxRepository exposes transactional operations. Implementations serialise
// everything between LockQuota or GetForUpdate and commit.
type TxRepository interface {
	LockQuota(ctx context.Context, agentID int64, month string) error
	ListForAgentMonth(ctx context.Context, agentID int64, month string) ([]Request, error)
	Insert(ctx context.Context, req Request) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (Request, error)
	Update(ctx context.Context, req Request) error
}

// Notifier fans transitions out to recipients.
type Notifier interface {
	Dispatch(ctx context.Context, evt notify.Event) []notify.Notification
}

// ApprovalRecorder appends to and reads the approval history.
type ApprovalRecorder interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// AuditLogger appends to the audit trail.
type AuditLogger interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyStore rejects replayed apply requests.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// TransitionObserver counts successful transitions.
type TransitionObserver interface {
	ObserveTransition(entity, transition string)
}

// ServiceConfig carries tenant rules and optional collaborators.
type ServiceConfig struct {
	MonthlyLimit int
	Location     *time.Location
	Clock        shared.Clock

	Approvals   ApprovalRecorder
	Audit       AuditLogger
	Idempotency IdempotencyStore
	Observer    TransitionObserver
}

// Service orchestrates the short-leave workflow.
type Service struct {
	repo     RepositoryPort
	notifier Notifier
	logger   *slog.Logger
	cfg      ServiceConfig
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, notifier Notifier, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.MonthlyLimit <= 0 {
		cfg.MonthlyLimit = 3
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, logger: logger, cfg: cfg}
}

// Apply files a new Pending request for the actor.
func (s *Service) Apply(ctx context.Context, actor rbac.Principal, in ApplyInput) (Request, error) {
	if err := rbac.Require(actor, rbac.ModuleShortLeave, rbac.ActionApply); err != nil {
		return Request{}, err
	}
	if strings.TrimSpace(in.LeaveDate) == "" {
		return Request{}, shared.Validation("leaveDate required")
	}
	leaveDate, err := time.Parse(DateLayout, strings.TrimSpace(in.LeaveDate))
	if err != nil {
		return Request{}, shared.Validation("leaveDate must be YYYY-MM-DD")
	}
	halfDay, err := ParseHalfDay(in.HalfDay)
	if err != nil {
		return Request{}, err
	}
	requestedAt := in.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = s.cfg.Clock.Now()
	}
	requestedAt = requestedAt.UTC()

	req := Request{
		AgentID:     actor.ID,
		AgentName:   actor.DisplayName(),
		LeaveDate:   leaveDate,
		HalfDay:     halfDay,
		Reason:      strings.TrimSpace(in.Reason),
		Status:      StatusPending,
		Type:        ClassifyType(requestedAt, leaveDate, s.cfg.Location),
		RequestedAt: requestedAt,
		UpdatedAt:   requestedAt,
	}

	if in.IdempotencyKey != "" && s.cfg.Idempotency != nil {
		if err := s.cfg.Idempotency.CheckAndInsert(ctx, in.IdempotencyKey, moduleName); err != nil {
			return Request{}, err
		}
	}

	month := req.Month()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockQuota(ctx, actor.ID, month); err != nil {
			return err
		}
		existing, err := tx.ListForAgentMonth(ctx, actor.ID, month)
		if err != nil {
			return err
		}
		if err := CheckQuota(actor.ID, month, existing, s.cfg.MonthlyLimit); err != nil {
			return err
		}
		id, err := tx.Insert(ctx, req)
		if err != nil {
			return err
		}
		req.ID = id
		return nil
	})
	if err != nil {
		if in.IdempotencyKey != "" && s.cfg.Idempotency != nil {
			if delErr := s.cfg.Idempotency.Delete(ctx, in.IdempotencyKey, moduleName); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return Request{}, err
	}

	s.afterTransition(ctx, actor, req, TransitionApply, req.Reason)
	return req, nil
}

// Approve moves a Pending request to Approved.
func (s *Service) Approve(ctx context.Context, actor rbac.Principal, id int64, remarks string) (Request, error) {
	return s.transition(ctx, actor, id, TransitionApprove, remarks)
}

// Reject moves a Pending request to Rejected.
func (s *Service) Reject(ctx context.Context, actor rbac.Principal, id int64, remarks string) (Request, error) {
	return s.transition(ctx, actor, id, TransitionReject, remarks)
}

// Cancel withdraws a Pending request, or an Approved one for administrators.
func (s *Service) Cancel(ctx context.Context, actor rbac.Principal, id int64, remarks string) (Request, error) {
	return s.transition(ctx, actor, id, TransitionCancel, remarks)
}

func (s *Service) transition(ctx context.Context, actor rbac.Principal, id int64, tr Transition, remarks string) (Request, error) {
	// Capability-only transitions fail before touching storage.
	if action, ok := capabilities[tr]; ok {
		if err := rbac.Require(actor, rbac.ModuleShortLeave, action); err != nil {
			return Request{}, err
		}
	}
	remarks = strings.TrimSpace(remarks)
	var updated Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := Advance(tr, actor, current, remarks, s.cfg.Clock.Now().UTC())
		if err != nil {
			return err
		}
		if err := tx.Update(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.afterTransition(ctx, actor, updated, tr, remarks)
	return updated, nil
}

// afterTransition runs the side effects of a committed transition. None of
// them can fail the transition.
func (s *Service) afterTransition(ctx context.Context, actor rbac.Principal, req Request, tr Transition, note string) {
	at := req.UpdatedAt
	if s.cfg.Approvals != nil {
		err := s.cfg.Approvals.Record(ctx, shared.ApprovalLog{
			Module:  moduleName,
			RefID:   shared.ApprovalRef(moduleName, req.ID),
			ActorID: actor.ID,
			Action:  approvalAction(tr),
			Note:    note,
			At:      at,
		})
		if err != nil {
			s.logger.Warn("record leave approval", slog.Int64("leave_id", req.ID), slog.Any("error", err))
		}
	}
	if s.cfg.Audit != nil {
		err := s.cfg.Audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "leave." + string(tr),
			Entity:   "leave_request",
			EntityID: strconv.FormatInt(req.ID, 10),
			Meta:     map[string]any{"status": string(req.Status), "leave_date": req.LeaveDate.Format(DateLayout)},
			At:       at,
		})
		if err != nil {
			s.logger.Warn("audit leave transition", slog.Int64("leave_id", req.ID), slog.Any("error", err))
		}
	}
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveTransition("leave", string(tr))
	}
	s.logger.Info("leave transition",
		slog.Int64("leave_id", req.ID),
		slog.String("transition", string(tr)),
		slog.String("status", string(req.Status)),
		slog.Int64("actor_id", actor.ID))

	if s.notifier != nil {
		s.notifier.Dispatch(ctx, notify.Event{
			Category:  notificationCategory(tr),
			ActorID:   actor.ID,
			SubjectID: req.AgentID,
			Ref:       notify.Ref{Type: notify.RefLeave, ID: req.ID},
			Message:   notificationMessage(tr, actor, req),
		})
	}
}

func approvalAction(tr Transition) shared.ApprovalAction {
	switch tr {
	case TransitionApprove:
		return shared.ApprovalApprove
	case TransitionReject:
		return shared.ApprovalReject
	case TransitionCancel:
		return shared.ApprovalCancel
	default:
		return shared.ApprovalSubmit
	}
}

func notificationCategory(tr Transition) notify.Category {
	switch tr {
	case TransitionApprove:
		return notify.CategoryLeaveApproved
	case TransitionReject:
		return notify.CategoryLeaveRejected
	case TransitionCancel:
		return notify.CategoryLeaveCancelled
	default:
		return notify.CategoryLeaveCreated
	}
}

func notificationMessage(tr Transition, actor rbac.Principal, req Request) string {
	day := req.LeaveDate.Format(DateLayout)
	switch tr {
	case TransitionApply:
		return fmt.Sprintf("%s applied for short leave on %s (%s)", req.AgentName, day, req.HalfDay)
	case TransitionCancel:
		if actor.ID == req.AgentID {
			return fmt.Sprintf("%s cancelled the short leave on %s", req.AgentName, day)
		}
		return fmt.Sprintf("Your short leave on %s was cancelled by %s", day, actor.DisplayName())
	default:
		return fmt.Sprintf("Your short leave on %s was %s by %s", day, strings.ToLower(string(req.Status)), actor.DisplayName())
	}
}

// List returns every request for administrators and the actor's own
// otherwise, newest first.
func (s *Service) List(ctx context.Context, actor rbac.Principal, filter ListFilter) ([]Request, error) {
	if err := rbac.Require(actor, rbac.ModuleShortLeave, rbac.ActionView); err != nil {
		return nil, err
	}
	if !rbac.IsAdministrative(actor) {
		filter.AgentID = actor.ID
	}
	if filter.Month != "" {
		month, err := ParseMonth(filter.Month)
		if err != nil {
			return nil, err
		}
		filter.Month = month
	}
	return s.repo.List(ctx, filter)
}

// Get returns a request visible to its owner and administrators.
func (s *Service) Get(ctx context.Context, actor rbac.Principal, id int64) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.AgentID != actor.ID && !rbac.IsAdministrative(actor) {
		return Request{}, shared.Denied("leave request %d belongs to another agent", id)
	}
	return req, nil
}

// History returns the approval trail of a request visible to the actor,
// oldest first.
func (s *Service) History(ctx context.Context, actor rbac.Principal, id int64) ([]shared.ApprovalLog, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	if s.cfg.Approvals == nil {
		return []shared.ApprovalLog{}, nil
	}
	logs, err := s.cfg.Approvals.List(ctx, moduleName, shared.ApprovalRef(moduleName, id))
	if err != nil {
		return nil, shared.Storage("list leave approvals", err)
	}
	if logs == nil {
		logs = []shared.ApprovalLog{}
	}
	return logs, nil
}

// Quota reports the actor's consumption for month, defaulting to the current
// month in the tenant time zone.
func (s *Service) Quota(ctx context.Context, actor rbac.Principal, month string) (Quota, error) {
	month, err := s.resolveMonth(month)
	if err != nil {
		return Quota{}, err
	}
	existing, err := s.repo.List(ctx, ListFilter{AgentID: actor.ID, Month: month})
	if err != nil {
		return Quota{}, err
	}
	return QuotaFor(actor.ID, month, existing, s.cfg.MonthlyLimit), nil
}

// Dashboard aggregates one month for holders of shortleave.dashboard.
func (s *Service) Dashboard(ctx context.Context, actor rbac.Principal, month string) (Dashboard, error) {
	if err := rbac.Require(actor, rbac.ModuleShortLeave, rbac.ActionDashboard); err != nil {
		return Dashboard{}, err
	}
	month, err := s.resolveMonth(month)
	if err != nil {
		return Dashboard{}, err
	}
	out := Dashboard{Month: month, Limit: s.cfg.MonthlyLimit}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.repo.CountByStatus(gctx, month)
		if err != nil {
			return err
		}
		out.ByStatus = counts
		return nil
	})
	g.Go(func() error {
		usage, err := s.repo.UsageByAgent(gctx, month)
		if err != nil {
			return err
		}
		out.ByAgent = usage
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return out, nil
}

func (s *Service) resolveMonth(month string) (string, error) {
	if month == "" {
		return Month(s.cfg.Clock.Now().In(s.cfg.Location)), nil
	}
	return ParseMonth(month)
}
