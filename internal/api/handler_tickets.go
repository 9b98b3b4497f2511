package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/model"
	"assetdesk-backend/internal/notification"
	"assetdesk-backend/internal/ticketflow"
)

type ticketResponse struct {
	model.Ticket
	AllowedTransitions []model.TicketStatus `json:"allowed_transitions"`
}

func newTicketResponse(t model.Ticket) ticketResponse {
	next := ticketflow.Allowed(t.Status)
	if next == nil || t.ApprovalStatus == model.ApprovalRejected {
		next = []model.TicketStatus{}
	}
	return ticketResponse{Ticket: t, AllowedTransitions: next}
}

type createTicketRequest struct {
	Subject     string               `json:"subject" binding:"required"`
	Description string               `json:"description"`
	Type        string               `json:"type"`
	Priority    model.TicketPriority `json:"priority"`
	AssetID     *uint                `json:"asset_id"`
}

// CreateTicket handles POST /api/tickets. The caller is the requester.
func (h *Handler) CreateTicket(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t := model.Ticket{
		Subject:     req.Subject,
		Description: req.Description,
		Type:        req.Type,
		Priority:    req.Priority,
		AssetID:     req.AssetID,
		RequesterID: actor(c).ID,
	}
	if err := h.store.CreateTicket(c.Request.Context(), &t, h.now()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTicketResponse(t))
}

func ticketFilter(c *gin.Context) access.TicketFilter {
	return access.TicketFilter{
		Status:   model.TicketStatus(c.Query("status")),
		Type:     c.Query("type"),
		Priority: model.TicketPriority(c.Query("priority")),
		Search:   c.Query("search"),
	}
}

func (h *Handler) listTickets(c *gin.Context, scope access.TicketScope) {
	tickets, err := h.store.ListTickets(c.Request.Context(), scope)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, newTicketResponse(t))
	}
	c.JSON(http.StatusOK, out)
}

// ListTickets handles GET /api/tickets.
func (h *Handler) ListTickets(c *gin.Context) {
	h.listTickets(c, access.ScopeFilter(actor(c), ticketFilter(c)))
}

// TicketHistoryView handles GET /api/tickets/history: the listing without
// the approval gate, for admins and unrestricted roles.
func (h *Handler) TicketHistoryView(c *gin.Context) {
	a := actor(c)
	if !access.CanViewHistory(a) {
		h.fail(c, forbidden("ticket history is limited to administrators"))
		return
	}
	h.listTickets(c, access.HistoryScope(a, ticketFilter(c)))
}

// GetTicket handles GET /api/tickets/:id.
func (h *Handler) GetTicket(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	t, err := h.store.GetTicket(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !access.CanOpen(actor(c), *t) {
		h.fail(c, forbidden("ticket %d is outside your scope", id))
		return
	}
	c.JSON(http.StatusOK, newTicketResponse(*t))
}

// mutate runs fn against the ticket in :id and writes the response. notify
// builds the jobs to queue once the change is committed.
func (h *Handler) mutate(c *gin.Context, fn func(a access.Actor, t model.Ticket) (ticketflow.Change, error), notify func(a access.Actor, t model.Ticket) []notification.Job) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	a := actor(c)
	t, err := h.store.MutateTicket(c.Request.Context(), id, func(cur model.Ticket) (ticketflow.Change, error) {
		return fn(a, cur)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := gin.H{"ticket": newTicketResponse(*t)}
	if notify != nil {
		if notice := h.dispatch(notify(a, *t)...); notice != "" {
			resp["notice"] = notice
		}
	}
	c.JSON(http.StatusOK, resp)
}

// notifyRequester tells the requester about a change made by someone else.
func notifyRequester(detail string) func(access.Actor, model.Ticket) []notification.Job {
	return func(a access.Actor, t model.Ticket) []notification.Job {
		if t.RequesterID == a.ID {
			return nil
		}
		return []notification.Job{{Kind: notification.KindTicketStatus, UserID: t.RequesterID, TicketID: t.ID, Detail: detail}}
	}
}

type changeStatusRequest struct {
	Status model.TicketStatus `json:"status" binding:"required"`
	Note   string             `json:"note"`
}

// ChangeTicketStatus handles PATCH /api/tickets/:id/status.
func (h *Handler) ChangeTicketStatus(c *gin.Context) {
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	now := h.now()
	h.mutate(c, func(a access.Actor, t model.Ticket) (ticketflow.Change, error) {
		if !access.CanWork(a, t, req.Status) {
			return ticketflow.Change{}, forbidden("you may not move ticket %s to %s", t.Number, req.Status)
		}
		return ticketflow.Transition(t, req.Status, req.Note, a.ID, now)
	}, notifyRequester(string(req.Status)))
}

// ApproveTicket handles POST /api/tickets/:id/approve.
func (h *Handler) ApproveTicket(c *gin.Context) {
	now := h.now()
	h.mutate(c, func(a access.Actor, t model.Ticket) (ticketflow.Change, error) {
		if !access.CanDecideApproval(a, t) {
			return ticketflow.Change{}, forbidden("you may not approve ticket %s", t.Number)
		}
		return ticketflow.Approve(t, a.ID, now)
	}, notifyRequester("approved"))
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectTicket handles POST /api/tickets/:id/reject.
func (h *Handler) RejectTicket(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	now := h.now()
	h.mutate(c, func(a access.Actor, t model.Ticket) (ticketflow.Change, error) {
		if !access.CanDecideApproval(a, t) {
			return ticketflow.Change{}, forbidden("you may not reject ticket %s", t.Number)
		}
		return ticketflow.Reject(t, req.Reason, a.ID, now)
	}, notifyRequester("rejected"))
}

type assignTicketRequest struct {
	AssignedTo *uint `json:"assigned_to"`
}

// AssignTicket handles POST /api/tickets/:id/assign. Employees cannot assign.
func (h *Handler) AssignTicket(c *gin.Context) {
	var req assignTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	now := h.now()
	h.mutate(c, func(a access.Actor, t model.Ticket) (ticketflow.Change, error) {
		if a.IsEmployee() || !access.CanOpen(a, t) {
			return ticketflow.Change{}, forbidden("you may not assign ticket %s", t.Number)
		}
		return ticketflow.Assign(t, req.AssignedTo, a.ID, now)
	}, func(a access.Actor, t model.Ticket) []notification.Job {
		if t.AssignedTo == nil || *t.AssignedTo == a.ID {
			return nil
		}
		return []notification.Job{{Kind: notification.KindTicketStatus, UserID: *t.AssignedTo, TicketID: t.ID, Detail: "assigned to you"}}
	})
}

// TicketHistory handles GET /api/tickets/:id/history.
func (h *Handler) TicketHistory(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	t, err := h.store.GetTicket(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !access.CanOpen(actor(c), *t) {
		h.fail(c, forbidden("ticket %d is outside your scope", id))
		return
	}
	rows, err := h.store.TicketHistory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
