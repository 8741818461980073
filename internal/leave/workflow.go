package leave

import (
	"time"

	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
)

// edges lists every legal transition out of each state. Rejected and
// Cancelled have none.
var edges = map[Transition]map[Status]Status{
	TransitionApprove: {StatusPending: StatusApproved},
	TransitionReject:  {StatusPending: StatusRejected},
	TransitionCancel:  {StatusPending: StatusCancelled, StatusApproved: StatusCancelled},
}

// capabilities maps transitions that are purely capability gated.
var capabilities = map[Transition]rbac.Action{
	TransitionApprove: rbac.ActionApprove,
	TransitionReject:  rbac.ActionReject,
}

// Authorize checks who may invoke tr on req, before any state guard.
func Authorize(tr Transition, actor rbac.Principal, req Request) error {
	if action, ok := capabilities[tr]; ok {
		return rbac.Require(actor, rbac.ModuleShortLeave, action)
	}
	if tr != TransitionCancel {
		return shared.Validation("unknown transition %q", tr)
	}
	if rbac.IsAdministrative(actor) {
		return nil
	}
	if actor.ID != req.AgentID {
		return shared.Denied("only the requester or an administrator may cancel")
	}
	// Requesters withdraw through shortleave.cancel; administrators act by role.
	return rbac.Require(actor, rbac.ModuleShortLeave, rbac.ActionCancel)
}

// Next computes the state reached by tr, or the guard failure.
func Next(tr Transition, actor rbac.Principal, req Request) (Status, error) {
	if err := Authorize(tr, actor, req); err != nil {
		return "", err
	}
	next, ok := edges[tr][req.Status]
	if !ok {
		return "", shared.NewInvalidState("leave request", string(tr), string(req.Status))
	}
	// Requesters withdraw pending requests only; approved ones need an administrator.
	if tr == TransitionCancel && req.Status == StatusApproved && !rbac.IsAdministrative(actor) {
		return "", shared.Denied("approved leave can only be cancelled by an administrator")
	}
	return next, nil
}

// Advance applies tr to req, stamping the actor and time.
func Advance(tr Transition, actor rbac.Principal, req Request, remarks string, at time.Time) (Request, error) {
	next, err := Next(tr, actor, req)
	if err != nil {
		return Request{}, err
	}
	stamp := at
	by := actor.DisplayName()
	switch tr {
	case TransitionApprove:
		req.ApprovedAt, req.ApprovedBy, req.ApproveRemarks = &stamp, by, remarks
	case TransitionReject:
		req.RejectedAt, req.RejectedBy, req.RejectRemarks = &stamp, by, remarks
	case TransitionCancel:
		req.CancelledAt, req.CancelledBy, req.CancelRemarks = &stamp, by, remarks
	}
	req.Status = next
	req.UpdatedAt = at
	return req, nil
}

// ClassifyType labels a request filed on or after the leave day as
// unplanned. Days are compared in loc.
func ClassifyType(requestedAt, leaveDate time.Time, loc *time.Location) Type {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := requestedAt.In(loc).Date()
	filed := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ly, lm, ld := leaveDate.Date()
	day := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)
	if !filed.Before(day) {
		return TypeUnplanned
	}
	return TypePlanned
}
