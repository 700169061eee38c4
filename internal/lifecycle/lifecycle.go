// Package lifecycle validates and applies service request status transitions.
package lifecycle

import (
	"time"

	"servicehub/internal/domain"
)

var transitions = map[domain.RequestStatus][]domain.RequestStatus{
	domain.StatusPending:    {domain.StatusAccepted, domain.StatusCancelled},
	domain.StatusAccepted:   {domain.StatusInProgress, domain.StatusCancelled},
	domain.StatusInProgress: {domain.StatusCompleted, domain.StatusCancelled},
	domain.StatusCompleted:  {},
	domain.StatusCancelled:  {},
}

// Allowed returns the statuses reachable from the given one.
func Allowed(from domain.RequestStatus) []domain.RequestStatus {
	next := transitions[from]
	out := make([]domain.RequestStatus, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to domain.RequestStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s domain.RequestStatus) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// Authorize checks that the caller may act on the request at all:
// the requesting client, the provider owner, or an admin.
func Authorize(req domain.ServiceRequest, caller domain.Caller) error {
	if caller.IsAdmin() {
		return nil
	}
	if caller.ID != "" && (caller.ID == req.UserID || caller.ID == req.ProviderOwnerID) {
		return nil
	}
	return domain.PermissionError{Message: "you do not have permission to update this request"}
}

// Change is a requested status change.
type Change struct {
	Target domain.RequestStatus
	Caller domain.Caller
	Notes  string
	At     time.Time
}

// Apply returns the request moved to the target status, or a
// PermissionError / ValidationError. The input request is not modified.
func Apply(req domain.ServiceRequest, c Change) (domain.ServiceRequest, error) {
	if err := Authorize(req, c.Caller); err != nil {
		return req, err
	}
	clientOnly := !c.Caller.IsAdmin() && c.Caller.ID == req.UserID && c.Caller.ID != req.ProviderOwnerID
	if clientOnly && c.Target != domain.StatusCancelled {
		return req, domain.PermissionError{Message: "requesters may only cancel their own requests"}
	}
	if !CanTransition(req.Status, c.Target) {
		return req, domain.ValidationError{
			Field:     "status",
			Current:   string(req.Status),
			Attempted: string(c.Target),
		}
	}
	at := c.At.UTC()
	out := req
	out.Status = c.Target
	out.UpdatedAt = at
	if c.Notes != "" {
		out.Notes = c.Notes
	}
	switch c.Target {
	case domain.StatusAccepted:
		out.AcceptedAt = &at
	case domain.StatusCompleted:
		out.CompletedAt = &at
	}
	return out, nil
}
