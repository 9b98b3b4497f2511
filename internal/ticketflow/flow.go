// Package ticketflow holds the ticket status state machine and the approval
// gate. Functions here never touch the database; they return the column
// changes and the audit row the store should write together.
package ticketflow

import (
	"fmt"
	"strings"
	"time"

	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
)

var transitions = map[model.TicketStatus][]model.TicketStatus{
	model.TicketOpen:       {model.TicketInProgress},
	model.TicketInProgress: {model.TicketPending, model.TicketResolved},
	model.TicketPending:    {model.TicketResolved, model.TicketClosed},
	model.TicketResolved:   {model.TicketClosed},
}

// Allowed lists the statuses reachable from s in one step.
func Allowed(s model.TicketStatus) []model.TicketStatus {
	return append([]model.TicketStatus(nil), transitions[s]...)
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to model.TicketStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Change is the effect of one ticket operation.
type Change struct {
	Columns map[string]any
	History model.TicketHistory
}

// Apply copies the column changes onto t so callers can return the updated
// ticket without reloading it.
func (c Change) Apply(t *model.Ticket) {
	for k, v := range c.Columns {
		switch k {
		case "status":
			t.Status = v.(model.TicketStatus)
		case "approval_status":
			t.ApprovalStatus = v.(model.ApprovalStatus)
		case "resolution_note":
			t.ResolutionNote = v.(string)
		case "resolved_by":
			t.ResolvedBy = v.(*uint)
		case "resolved_at":
			t.ResolvedAt = v.(*time.Time)
		case "closed_by":
			t.ClosedBy = v.(*uint)
		case "closed_at":
			t.ClosedAt = v.(*time.Time)
		case "approved_by":
			t.ApprovedBy = v.(*uint)
		case "approved_at":
			t.ApprovedAt = v.(*time.Time)
		case "rejection_reason":
			t.RejectionReason = v.(string)
		case "assigned_to":
			t.AssignedTo = v.(*uint)
		case "updated_at":
			t.UpdatedAt = v.(time.Time)
		}
	}
}

// Transition moves t to target. A blank note when resolving is rejected
// before the edge is checked, so the caller sees the validation error even
// for an otherwise illegal move.
func Transition(t model.Ticket, target model.TicketStatus, note string, actorID uint, now time.Time) (Change, error) {
	note = strings.TrimSpace(note)
	if target == model.TicketResolved && note == "" {
		return Change{}, errs.Validation("a resolution note is required to resolve a ticket")
	}
	if t.ApprovalStatus == model.ApprovalRejected {
		return Change{}, errs.E(errs.ErrInvalidTransition, "ticket %s was rejected", t.Number)
	}
	if !CanTransition(t.Status, target) {
		return Change{}, errs.E(errs.ErrInvalidTransition, "cannot move ticket from %s to %s", t.Status, target)
	}

	by := actorID
	at := now
	cols := map[string]any{
		"status":     target,
		"updated_at": now,
	}
	switch target {
	case model.TicketResolved:
		cols["resolution_note"] = note
		cols["resolved_by"] = &by
		cols["resolved_at"] = &at
	case model.TicketClosed:
		cols["closed_by"] = &by
		cols["closed_at"] = &at
	}

	return Change{
		Columns: cols,
		History: model.TicketHistory{
			TicketID:    t.ID,
			ActionType:  model.TicketActionStatusChanged,
			FromValue:   string(t.Status),
			ToValue:     string(target),
			Note:        note,
			PerformedBy: actorID,
			CreatedAt:   now,
		},
	}, nil
}

// Approve clears a pending ticket for work.
func Approve(t model.Ticket, actorID uint, now time.Time) (Change, error) {
	if err := decidable(t); err != nil {
		return Change{}, err
	}
	by := actorID
	at := now
	return Change{
		Columns: map[string]any{
			"approval_status": model.ApprovalApproved,
			"approved_by":     &by,
			"approved_at":     &at,
			"updated_at":      now,
		},
		History: model.TicketHistory{
			TicketID:    t.ID,
			ActionType:  model.TicketActionApproved,
			FromValue:   string(t.ApprovalStatus),
			ToValue:     string(model.ApprovalApproved),
			PerformedBy: actorID,
			CreatedAt:   now,
		},
	}, nil
}

// Reject refuses a pending ticket. A reason is mandatory.
func Reject(t model.Ticket, reason string, actorID uint, now time.Time) (Change, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Change{}, errs.Validation("a rejection reason is required")
	}
	if err := decidable(t); err != nil {
		return Change{}, err
	}
	by := actorID
	at := now
	return Change{
		Columns: map[string]any{
			"approval_status":  model.ApprovalRejected,
			"rejection_reason": reason,
			"approved_by":      &by,
			"approved_at":      &at,
			"updated_at":       now,
		},
		History: model.TicketHistory{
			TicketID:    t.ID,
			ActionType:  model.TicketActionRejected,
			FromValue:   string(t.ApprovalStatus),
			ToValue:     string(model.ApprovalRejected),
			Note:        reason,
			PerformedBy: actorID,
			CreatedAt:   now,
		},
	}, nil
}

// Assign sets or clears the technician working on t. Closed tickets keep
// their last assignee.
func Assign(t model.Ticket, assignee *uint, actorID uint, now time.Time) (Change, error) {
	if t.Status == model.TicketClosed {
		return Change{}, errs.E(errs.ErrInvalidTransition, "ticket %s is closed", t.Number)
	}
	var next *uint
	if assignee != nil {
		v := *assignee
		next = &v
	}
	return Change{
		Columns: map[string]any{
			"assigned_to": next,
			"updated_at":  now,
		},
		History: model.TicketHistory{
			TicketID:    t.ID,
			ActionType:  model.TicketActionAssigned,
			FromValue:   userRef(t.AssignedTo),
			ToValue:     userRef(next),
			PerformedBy: actorID,
			CreatedAt:   now,
		},
	}, nil
}

func decidable(t model.Ticket) error {
	if t.ApprovalStatus != model.ApprovalPending {
		return errs.E(errs.ErrInvalidTransition, "ticket %s is already %s", t.Number, t.ApprovalStatus)
	}
	return nil
}

func userRef(id *uint) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%d", *id)
}
