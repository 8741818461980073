package notify

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
)

const deliveryTimeout = 10 * time.Second

// Dispatcher fans workflow transitions out to the principals that must be
// informed. Records are written synchronously; delivery to outside channels
// is best-effort and never reported to the caller.
type Dispatcher struct {
	repo       Repository
	directory  Directory
	deliverers []Deliverer
	logger     *slog.Logger
	observer   Observer
	retention  int
	clock      shared.Clock
	inflight   sync.WaitGroup
}

// DispatcherConfig collects Dispatcher dependencies.
type DispatcherConfig struct {
	Repository Repository
	Directory  Directory
	Deliverers []Deliverer
	Logger     *slog.Logger
	Observer   Observer
	Retention  int
	Clock      shared.Clock
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		repo:       cfg.Repository,
		directory:  cfg.Directory,
		deliverers: cfg.Deliverers,
		logger:     logger,
		observer:   cfg.Observer,
		retention:  retention,
		clock:      cfg.Clock,
	}
}

// Notify writes one record per distinct recipient and schedules delivery.
func (d *Dispatcher) Notify(ctx context.Context, recipients []int64, message string, category Category, ref Ref) ([]Notification, error) {
	ids := uniqueIDs(recipients)
	if len(ids) == 0 {
		return nil, nil
	}
	now := d.clock.Now().UTC()
	batch := make([]Notification, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, Notification{
			RecipientID: id,
			Category:    category,
			Message:     message,
			Ref:         ref,
			CreatedAt:   now,
		})
	}
	stored, err := d.repo.InsertBatch(ctx, batch, d.retention)
	if err != nil {
		d.observe(category, "failed")
		return nil, err
	}
	d.observe(category, "stored")
	d.scheduleDelivery(ctx, stored)
	return stored, nil
}

// Dispatch computes the recipient set for evt and notifies it. Failures are
// logged and swallowed so they never affect the transition that triggered
// them.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) []Notification {
	if d == nil {
		return nil
	}
	recipients, err := d.Recipients(ctx, evt)
	if err != nil {
		d.logger.Warn("notify: resolve recipients", slog.String("category", string(evt.Category)), slog.Any("error", err))
		d.observe(evt.Category, "failed")
		return nil
	}
	stored, err := d.Notify(ctx, recipients, evt.Message, evt.Category, evt.Ref)
	if err != nil {
		d.logger.Warn("notify: store notifications",
			slog.String("category", string(evt.Category)),
			slog.Int64("ref_id", evt.Ref.ID),
			slog.Any("error", err))
		return nil
	}
	return stored
}

// Recipients returns the principal ids that must be informed of evt.
func (d *Dispatcher) Recipients(ctx context.Context, evt Event) ([]int64, error) {
	switch evt.Category {
	case CategoryLeaveCreated, CategoryUserRegistered:
		return d.byRoles(ctx, 0, rbac.RoleAdmin, rbac.RoleSuperAdmin)
	case CategoryLeaveApproved, CategoryLeaveRejected:
		return []int64{evt.SubjectID}, nil
	case CategoryLeaveCancelled:
		if evt.ActorID != evt.SubjectID {
			return []int64{evt.SubjectID}, nil
		}
		return d.byRoles(ctx, evt.ActorID, rbac.RoleAdmin, rbac.RoleSuperAdmin)
	case CategoryRosterApproved:
		return d.byRoles(ctx, 0, rbac.RoleOperator)
	}
	return nil, errors.New("notify: unknown category " + string(evt.Category))
}

// Wait blocks until scheduled deliveries finish.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// byRoles lists active holders of roles, leaving out exclude when non-zero.
func (d *Dispatcher) byRoles(ctx context.Context, exclude int64, roles ...rbac.Role) ([]int64, error) {
	principals, err := d.directory.ListPrincipals(ctx, roles...)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(principals))
	for _, p := range principals {
		if !p.Active || p.ID == exclude {
			continue
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (d *Dispatcher) scheduleDelivery(ctx context.Context, stored []Notification) {
	if len(d.deliverers) == 0 || len(stored) == 0 {
		return
	}
	batch := append([]Notification(nil), stored...)
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		defer cancel()
		for _, n := range batch {
			recipient, err := d.directory.FindPrincipal(dctx, n.RecipientID)
			if err != nil {
				d.logger.Warn("notify: load recipient", slog.Int64("recipient_id", n.RecipientID), slog.Any("error", err))
				d.observe(n.Category, "undelivered")
				continue
			}
			for _, deliverer := range d.deliverers {
				if err := deliverer.Deliver(dctx, recipient, n); err != nil {
					d.logger.Warn("notify: deliver",
						slog.Int64("notification_id", n.ID),
						slog.Int64("recipient_id", n.RecipientID),
						slog.Any("error", err))
					d.observe(n.Category, "undelivered")
					continue
				}
				d.observe(n.Category, "delivered")
			}
		}
	}()
}

func (d *Dispatcher) observe(category Category, outcome string) {
	if d.observer != nil {
		d.observer.ObserveNotification(string(category), outcome)
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
