package store

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
	"assetdesk-backend/internal/ticketflow"
)

func TestNewTicketNumber(t *testing.T) {
	n := NewTicketNumber(time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^TKT-20240304-[0-9A-F]{6}$`), n)
	assert.NotEqual(t, n, NewTicketNumber(time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC)))
}

func TestCreateTicket(t *testing.T) {
	s := newTestStore(t)
	ann := seedUser(t, s, "ann", "Sales", model.RoleEmployee)
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	tk := &model.Ticket{Subject: "  Laptop will not boot ", RequesterID: ann.ID}
	require.NoError(t, s.CreateTicket(ctx, tk, now))
	assert.Equal(t, "Laptop will not boot", tk.Subject)
	assert.Equal(t, "Sales", tk.RequesterDepartment)
	assert.Equal(t, model.TicketOpen, tk.Status)
	assert.Equal(t, model.ApprovalPending, tk.ApprovalStatus)
	assert.Equal(t, model.PriorityMedium, tk.Priority)
	assert.Regexp(t, `^TKT-20240304-`, tk.Number)

	hist, err := s.TicketHistory(ctx, tk.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, model.TicketActionCreated, hist[0].ActionType)

	err = s.CreateTicket(ctx, &model.Ticket{Subject: " ", RequesterID: ann.ID}, now)
	assert.True(t, errors.Is(err, errs.ErrValidation))
	err = s.CreateTicket(ctx, &model.Ticket{Subject: "x", Priority: "asap", RequesterID: ann.ID}, now)
	assert.True(t, errors.Is(err, errs.ErrValidation))
	err = s.CreateTicket(ctx, &model.Ticket{Subject: "x", RequesterID: 999}, now)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	err = s.CreateTicket(ctx, &model.Ticket{Subject: "x", RequesterID: ann.ID, AssetID: uptr(999)}, now)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestMutateTicket_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ann := seedUser(t, s, "ann", "Sales", model.RoleEmployee)
	mgr := seedUser(t, s, "mgr", "Sales", model.RoleManager)
	tech := seedUser(t, s, "tech", "IT", model.RoleAdmin)
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	tk := &model.Ticket{Subject: "VPN broken", RequesterID: ann.ID, Priority: model.PriorityHigh}
	require.NoError(t, s.CreateTicket(ctx, tk, now))

	step := func(fn TicketMutation) (*model.Ticket, error) {
		now = now.Add(time.Minute)
		return s.MutateTicket(ctx, tk.ID, fn)
	}

	_, err := step(func(cur model.Ticket) (ticketflow.Change, error) { return ticketflow.Approve(cur, mgr.ID, now) })
	require.NoError(t, err)
	_, err = step(func(cur model.Ticket) (ticketflow.Change, error) { return ticketflow.Assign(cur, &tech.ID, mgr.ID, now) })
	require.NoError(t, err)
	got, err := step(func(cur model.Ticket) (ticketflow.Change, error) {
		return ticketflow.Transition(cur, model.TicketInProgress, "", tech.ID, now)
	})
	require.NoError(t, err)
	assert.Equal(t, model.TicketInProgress, got.Status)
	assert.Equal(t, tech.ID, *got.AssignedTo)

	// Resolving without a note fails and leaves the ticket untouched.
	_, err = step(func(cur model.Ticket) (ticketflow.Change, error) {
		return ticketflow.Transition(cur, model.TicketResolved, "  ", tech.ID, now)
	})
	assert.True(t, errors.Is(err, errs.ErrValidation))
	got, err = s.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketInProgress, got.Status)
	assert.Nil(t, got.ResolvedAt)

	got, err = step(func(cur model.Ticket) (ticketflow.Change, error) {
		return ticketflow.Transition(cur, model.TicketResolved, "reset token", tech.ID, now)
	})
	require.NoError(t, err)
	assert.Equal(t, "reset token", got.ResolutionNote)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, now.Equal(*got.ResolvedAt))

	got, err = step(func(cur model.Ticket) (ticketflow.Change, error) {
		return ticketflow.Transition(cur, model.TicketClosed, "", ann.ID, now)
	})
	require.NoError(t, err)
	assert.Equal(t, model.TicketClosed, got.Status)
	assert.NotNil(t, got.ResolvedAt)
	assert.Equal(t, ann.ID, *got.ClosedBy)

	_, err = step(func(cur model.Ticket) (ticketflow.Change, error) {
		return ticketflow.Transition(cur, model.TicketInProgress, "", tech.ID, now)
	})
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))

	hist, err := s.TicketHistory(ctx, tk.ID)
	require.NoError(t, err)
	var actions []model.TicketAction
	for _, h := range hist {
		actions = append(actions, h.ActionType)
	}
	assert.Equal(t, []model.TicketAction{
		model.TicketActionCreated,
		model.TicketActionApproved,
		model.TicketActionAssigned,
		model.TicketActionStatusChanged,
		model.TicketActionStatusChanged,
		model.TicketActionStatusChanged,
	}, actions)

	_, err = s.MutateTicket(ctx, 999, func(cur model.Ticket) (ticketflow.Change, error) { return ticketflow.Change{}, nil })
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestMutateTicket_AssignInactiveUser(t *testing.T) {
	s := newTestStore(t)
	ann := seedUser(t, s, "ann", "Sales", model.RoleEmployee)
	gone := seedUser(t, s, "gone", "IT", model.RoleAdmin)
	require.NoError(t, s.DeleteUser(ctx, gone.ID, time.Now()))
	tk := &model.Ticket{Subject: "x", RequesterID: ann.ID}
	require.NoError(t, s.CreateTicket(ctx, tk, time.Now()))

	_, err := s.MutateTicket(ctx, tk.ID, func(cur model.Ticket) (ticketflow.Change, error) {
		return ticketflow.Assign(cur, &gone.ID, ann.ID, time.Now())
	})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestListTickets_Scope(t *testing.T) {
	s := newTestStore(t)
	admin := seedUser(t, s, "admin", "IT", model.RoleAdmin)
	ann := seedUser(t, s, "ann", "Sales", model.RoleEmployee)
	zoe := seedUser(t, s, "zoe", "Finance", model.RoleEmployee)
	mgr := seedUser(t, s, "mgr", "Sales", model.RoleManager)
	root := seedUser(t, s, "root", "", model.RoleSuperAdmin)
	lap := seedAsset(t, s, "LAP-0042", "Sales", admin.ID)
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	mk := func(subject string, requester uint, asset *uint) *model.Ticket {
		tk := &model.Ticket{Subject: subject, RequesterID: requester, AssetID: asset, Type: "hardware"}
		require.NoError(t, s.CreateTicket(ctx, tk, now))
		now = now.Add(time.Minute)
		return tk
	}
	t1 := mk("Printer jam", ann.ID, nil)
	t2 := mk("Screen flicker", ann.ID, &lap.ID)
	t3 := mk("Expense tool down", zoe.ID, nil)
	// Fixed numbers keep digit searches from matching the generated ones.
	for i, tk := range []*model.Ticket{t1, t2, t3} {
		require.NoError(t, s.DB().Model(&model.Ticket{}).Where("id = ?", tk.ID).Update("number", "TKT-"+string(rune('A'+i))).Error)
	}

	_, err := s.MutateTicket(ctx, t2.ID, func(cur model.Ticket) (ticketflow.Change, error) { return ticketflow.Approve(cur, mgr.ID, now) })
	require.NoError(t, err)
	_, err = s.MutateTicket(ctx, t3.ID, func(cur model.Ticket) (ticketflow.Change, error) { return ticketflow.Assign(cur, &mgr.ID, root.ID, now) })
	require.NoError(t, err)

	ids := func(actor access.Actor, f access.TicketFilter) []uint {
		out, err := s.ListTickets(ctx, access.ScopeFilter(actor, f))
		require.NoError(t, err)
		var got []uint
		for _, tk := range out {
			// The SQL scope and the in-memory predicate must agree.
			assert.True(t, access.ScopeFilter(actor, f).Allows(tk), "ticket %d", tk.ID)
			got = append(got, tk.ID)
		}
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		return got
	}

	annA := access.Actor{ID: ann.ID, Role: model.RoleEmployee, Department: "Sales"}
	mgrA := access.Actor{ID: mgr.ID, Role: model.RoleManager, Department: "Sales"}
	admA := access.Actor{ID: admin.ID, Role: model.RoleAdmin, Department: "IT"}
	rootA := access.Actor{ID: root.ID, Role: model.RoleSuperAdmin}

	assert.Equal(t, []uint{t1.ID, t2.ID}, ids(annA, access.TicketFilter{}))
	assert.Equal(t, []uint{t1.ID, t2.ID, t3.ID}, ids(mgrA, access.TicketFilter{}))
	assert.Equal(t, []uint{t2.ID}, ids(admA, access.TicketFilter{}))
	assert.Equal(t, []uint{t1.ID, t2.ID, t3.ID}, ids(rootA, access.TicketFilter{}))

	assert.Equal(t, []uint{t2.ID}, ids(rootA, access.TicketFilter{Search: "lap-0042"}))
	assert.Equal(t, []uint{t3.ID}, ids(rootA, access.TicketFilter{Search: "LASTZOE"}))
	assert.Equal(t, []uint{t1.ID}, ids(rootA, access.TicketFilter{Search: "jam"}))
	assert.Equal(t, []uint{t3.ID}, ids(rootA, access.TicketFilter{Search: strconv.FormatUint(uint64(zoe.ID), 10)}))
	assert.Equal(t, []uint{t1.ID}, ids(annA, access.TicketFilter{Search: "printer", Type: "hardware", Status: model.TicketOpen}))
	assert.Empty(t, ids(annA, access.TicketFilter{Status: model.TicketClosed}))

	hist, err := s.ListTickets(ctx, access.HistoryScope(admA, access.TicketFilter{}))
	require.NoError(t, err)
	assert.Len(t, hist, 3)
}

func TestListTickets_SearchWildcardsAreLiteral(t *testing.T) {
	s := newTestStore(t)
	root := seedUser(t, s, "root", "", model.RoleSuperAdmin)
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	var all []model.Ticket
	for _, subject := range []string{"50% toner left", "5000 pages printed", "disk a_b full", "disk axb full"} {
		tk := &model.Ticket{Subject: subject, RequesterID: root.ID, Type: "hardware"}
		require.NoError(t, s.CreateTicket(ctx, tk, now))
		all = append(all, *tk)
	}
	rootA := access.Actor{ID: root.ID, Role: model.RoleSuperAdmin}

	for search, want := range map[string]string{"50%": "50% toner left", "a_b": "disk a_b full"} {
		scope := access.ScopeFilter(rootA, access.TicketFilter{Search: search})
		out, err := s.ListTickets(ctx, scope)
		require.NoError(t, err)
		require.Len(t, out, 1, search)
		assert.Equal(t, want, out[0].Subject)

		var allowed []string
		for _, tk := range all {
			if scope.Allows(tk) {
				allowed = append(allowed, tk.Subject)
			}
		}
		assert.Equal(t, []string{want}, allowed, search)
	}
}
