package ticketflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
)

var now = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func ticket(status model.TicketStatus) model.Ticket {
	return model.Ticket{ID: 7, Number: "TKT-20240304-ABC123", Status: status, ApprovalStatus: model.ApprovalApproved}
}

func TestTransition_Edges(t *testing.T) {
	all := []model.TicketStatus{
		model.TicketOpen, model.TicketInProgress, model.TicketPending, model.TicketResolved, model.TicketClosed,
	}
	legal := map[[2]model.TicketStatus]bool{
		{model.TicketOpen, model.TicketInProgress}:     true,
		{model.TicketInProgress, model.TicketPending}:  true,
		{model.TicketInProgress, model.TicketResolved}: true,
		{model.TicketPending, model.TicketResolved}:    true,
		{model.TicketPending, model.TicketClosed}:      true,
		{model.TicketResolved, model.TicketClosed}:     true,
	}

	for _, from := range all {
		for _, to := range all {
			_, err := Transition(ticket(from), to, "fixed", 1, now)
			if legal[[2]model.TicketStatus{from, to}] {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.True(t, errors.Is(err, errs.ErrInvalidTransition), "%s -> %s: %v", from, to, err)
			}
		}
	}
}

func TestTransition_ResolveRequiresNote(t *testing.T) {
	for _, note := range []string{"", "   ", "\n\t"} {
		_, err := Transition(ticket(model.TicketInProgress), model.TicketResolved, note, 1, now)
		assert.True(t, errors.Is(err, errs.ErrValidation), "note %q", note)
	}

	// The note check wins over an illegal edge.
	_, err := Transition(ticket(model.TicketOpen), model.TicketResolved, "", 1, now)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestTransition_ResolveWritesResolution(t *testing.T) {
	tk := ticket(model.TicketInProgress)
	c, err := Transition(tk, model.TicketResolved, "  replaced the PSU ", 42, now)
	require.NoError(t, err)

	c.Apply(&tk)
	assert.Equal(t, model.TicketResolved, tk.Status)
	assert.Equal(t, "replaced the PSU", tk.ResolutionNote)
	require.NotNil(t, tk.ResolvedBy)
	assert.Equal(t, uint(42), *tk.ResolvedBy)
	require.NotNil(t, tk.ResolvedAt)
	assert.Equal(t, now, *tk.ResolvedAt)
	assert.Nil(t, tk.ClosedAt)

	assert.Equal(t, model.TicketActionStatusChanged, c.History.ActionType)
	assert.Equal(t, "in_progress", c.History.FromValue)
	assert.Equal(t, "resolved", c.History.ToValue)
	assert.Equal(t, "replaced the PSU", c.History.Note)
	assert.Equal(t, uint(7), c.History.TicketID)
}

func TestTransition_CloseKeepsResolution(t *testing.T) {
	resolvedAt := now.Add(-time.Hour)
	tk := ticket(model.TicketResolved)
	tk.ResolvedAt = &resolvedAt
	tk.ResolutionNote = "done"

	c, err := Transition(tk, model.TicketClosed, "", 3, now)
	require.NoError(t, err)
	c.Apply(&tk)

	assert.Equal(t, model.TicketClosed, tk.Status)
	assert.Equal(t, resolvedAt, *tk.ResolvedAt)
	assert.Equal(t, "done", tk.ResolutionNote)
	assert.Equal(t, now, *tk.ClosedAt)
	assert.Equal(t, uint(3), *tk.ClosedBy)
	_, touched := c.Columns["resolved_at"]
	assert.False(t, touched)
}

func TestTransition_RejectedTicketIsFrozen(t *testing.T) {
	tk := ticket(model.TicketOpen)
	tk.ApprovalStatus = model.ApprovalRejected
	_, err := Transition(tk, model.TicketInProgress, "", 1, now)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))
}

func TestAllowed(t *testing.T) {
	assert.Equal(t, []model.TicketStatus{model.TicketPending, model.TicketResolved}, Allowed(model.TicketInProgress))
	assert.Empty(t, Allowed(model.TicketClosed))
}

func TestApproveReject(t *testing.T) {
	tk := ticket(model.TicketOpen)
	tk.ApprovalStatus = model.ApprovalPending

	c, err := Approve(tk, 9, now)
	require.NoError(t, err)
	approved := tk
	c.Apply(&approved)
	assert.Equal(t, model.ApprovalApproved, approved.ApprovalStatus)
	assert.Equal(t, uint(9), *approved.ApprovedBy)
	assert.Equal(t, model.TicketActionApproved, c.History.ActionType)

	_, err = Approve(approved, 9, now)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))

	_, err = Reject(tk, " ", 9, now)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	c, err = Reject(tk, "not budgeted", 9, now)
	require.NoError(t, err)
	rejected := tk
	c.Apply(&rejected)
	assert.Equal(t, model.ApprovalRejected, rejected.ApprovalStatus)
	assert.Equal(t, "not budgeted", rejected.RejectionReason)
	assert.Equal(t, "not budgeted", c.History.Note)

	_, err = Reject(rejected, "again", 9, now)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))
}

func TestAssign(t *testing.T) {
	tk := ticket(model.TicketInProgress)
	tech := uint(12)

	c, err := Assign(tk, &tech, 1, now)
	require.NoError(t, err)
	c.Apply(&tk)
	assert.Equal(t, uint(12), *tk.AssignedTo)
	assert.Equal(t, "", c.History.FromValue)
	assert.Equal(t, "12", c.History.ToValue)

	c, err = Assign(tk, nil, 1, now)
	require.NoError(t, err)
	c.Apply(&tk)
	assert.Nil(t, tk.AssignedTo)
	assert.Equal(t, "12", c.History.FromValue)

	_, err = Assign(ticket(model.TicketClosed), &tech, 1, now)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))
}
