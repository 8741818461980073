package leave

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cserv-ai/cserv/internal/platform/httpx"
	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
)

// IdempotencyHeader lets clients retry an application safely.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes the short-leave workflow over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validate, rbac: mw}
}

// MountRoutes registers leave routes. Capability checks that depend on the
// record happen in the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireModule(rbac.ModuleShortLeave))
	r.Get("/", h.list)
	r.Post("/", h.apply)
	r.Get("/quota", h.quota)
	r.Get("/dashboard", h.dashboard)
	r.Get("/{id}", h.get)
	r.Get("/{id}/history", h.history)
	r.Post("/{id}/approve", h.transition(TransitionApprove))
	r.Post("/{id}/reject", h.transition(TransitionReject))
	r.Post("/{id}/cancel", h.transition(TransitionCancel))
}

type applyRequest struct {
	LeaveDate string `json:"leaveDate" validate:"required,datetime=2006-01-02"`
	HalfDay   string `json:"halfDay" validate:"required,oneof='1st Half' '2nd Half'"`
	Reason    string `json:"reason" validate:"max=500"`
}

type remarksRequest struct {
	Remarks string `json:"remarks" validate:"max=500"`
}

type requestView struct {
	ID             int64      `json:"id"`
	AgentID        int64      `json:"agentId"`
	AgentName      string     `json:"agentName"`
	LeaveDate      string     `json:"leaveDate"`
	HalfDay        HalfDay    `json:"halfDay"`
	Reason         string     `json:"reason"`
	Status         Status     `json:"status"`
	Type           Type       `json:"type"`
	RequestedAt    time.Time  `json:"requestedAt"`
	ApprovedAt     *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy     string     `json:"approvedBy,omitempty"`
	ApproveRemarks string     `json:"approveRemarks,omitempty"`
	RejectedAt     *time.Time `json:"rejectedAt,omitempty"`
	RejectedBy     string     `json:"rejectedBy,omitempty"`
	RejectRemarks  string     `json:"rejectRemarks,omitempty"`
	CancelledAt    *time.Time `json:"cancelledAt,omitempty"`
	CancelledBy    string     `json:"cancelledBy,omitempty"`
	CancelRemarks  string     `json:"cancelRemarks,omitempty"`
}

func toView(req Request) requestView {
	return requestView{
		ID:             req.ID,
		AgentID:        req.AgentID,
		AgentName:      req.AgentName,
		LeaveDate:      req.LeaveDate.Format(DateLayout),
		HalfDay:        req.HalfDay,
		Reason:         req.Reason,
		Status:         req.Status,
		Type:           req.Type,
		RequestedAt:    req.RequestedAt,
		ApprovedAt:     req.ApprovedAt,
		ApprovedBy:     req.ApprovedBy,
		ApproveRemarks: req.ApproveRemarks,
		RejectedAt:     req.RejectedAt,
		RejectedBy:     req.RejectedBy,
		RejectRemarks:  req.RejectRemarks,
		CancelledAt:    req.CancelledAt,
		CancelledBy:    req.CancelledBy,
		CancelRemarks:  req.CancelRemarks,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	list, err := h.service.List(r.Context(), actor, ListFilter{Month: q.Get("month"), Status: Status(q.Get("status"))})
	if err != nil {
		h.fail(w, "list leave requests", err)
		return
	}
	views := make([]requestView, len(list))
	for i, req := range list {
		views[i] = toView(req)
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	var body applyRequest
	if err := httpx.DecodeJSON(r, h.validate, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Apply(r.Context(), actor, ApplyInput{
		LeaveDate:      body.LeaveDate,
		HalfDay:        body.HalfDay,
		Reason:         body.Reason,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		h.fail(w, "apply leave", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"ok": true, "id": req.ID, "request": toView(req)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "get leave request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(req))
}

type historyView struct {
	ActorID int64     `json:"actorId"`
	Action  string    `json:"action"`
	Note    string    `json:"note,omitempty"`
	At      time.Time `json:"at"`
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	logs, err := h.service.History(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "leave history", err)
		return
	}
	views := make([]historyView, len(logs))
	for i, l := range logs {
		views[i] = historyView{ActorID: l.ActorID, Action: string(l.Action), Note: l.Note, At: l.At}
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) transition(tr Transition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := rbac.PrincipalFromContext(r.Context())
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		var body remarksRequest
		if r.ContentLength != 0 {
			if err := httpx.DecodeJSON(r, h.validate, &body); err != nil {
				httpx.RespondError(w, err)
				return
			}
		}
		var req Request
		switch tr {
		case TransitionApprove:
			req, err = h.service.Approve(r.Context(), actor, id, body.Remarks)
		case TransitionReject:
			req, err = h.service.Reject(r.Context(), actor, id, body.Remarks)
		default:
			req, err = h.service.Cancel(r.Context(), actor, id, body.Remarks)
		}
		if err != nil {
			h.fail(w, "leave "+string(tr), err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "request": toView(req)})
	}
}

func (h *Handler) quota(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	q, err := h.service.Quota(r.Context(), actor, r.URL.Query().Get("month"))
	if err != nil {
		h.fail(w, "leave quota", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	d, err := h.service.Dashboard(r.Context(), actor, r.URL.Query().Get("month"))
	if err != nil {
		h.fail(w, "leave dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrStorage) || !shared.IsDomainError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
