package access

import (
	"strings"

	"gorm.io/gorm"

	"assetdesk-backend/internal/model"
	"assetdesk-backend/internal/parse"
)

// TicketFilter holds the optional list filters, all ANDed with the role rule.
type TicketFilter struct {
	Status   model.TicketStatus
	Type     string
	Priority model.TicketPriority
	Search   string
}

// Predicate reports whether a ticket passes a filter.
type Predicate func(model.Ticket) bool

// TicketScope is the visibility rule for one actor plus optional filters.
type TicketScope struct {
	actor          Actor
	filter         TicketFilter
	search         parse.SearchTerm
	ignoreApproval bool
}

// ScopeFilter builds the listing scope for actor.
func ScopeFilter(actor Actor, filter TicketFilter) TicketScope {
	return TicketScope{actor: actor, filter: filter, search: parse.Search(filter.Search)}
}

// HistoryScope is ScopeFilter without the admin approval gate. It backs the
// ticket history view, which only admins and unrestricted roles may open.
func HistoryScope(actor Actor, filter TicketFilter) TicketScope {
	s := ScopeFilter(actor, filter)
	s.ignoreApproval = true
	return s
}

// CanViewHistory reports whether actor may use HistoryScope.
func CanViewHistory(actor Actor) bool {
	return actor.IsAdmin() || actor.Unrestricted()
}

// Predicate returns the in-memory form of the scope.
func (s TicketScope) Predicate() Predicate {
	return s.Allows
}

// Allows reports whether t is inside the scope. Search over requester name and
// asset code only considers t.Requester and t.Asset when they are loaded.
func (s TicketScope) Allows(t model.Ticket) bool {
	if !s.allowsRole(t) {
		return false
	}
	if s.filter.Status != "" && t.Status != s.filter.Status {
		return false
	}
	if s.filter.Type != "" && t.Type != s.filter.Type {
		return false
	}
	if s.filter.Priority != "" && t.Priority != s.filter.Priority {
		return false
	}
	if s.search.Empty() {
		return true
	}
	return s.matchesSearch(t)
}

func (s TicketScope) allowsRole(t model.Ticket) bool {
	a := s.actor
	switch a.Role {
	case model.RoleEmployee:
		return t.RequesterID == a.ID
	case model.RoleManager:
		return t.RequesterDepartment == a.Department || (t.AssignedTo != nil && *t.AssignedTo == a.ID)
	case model.RoleAdmin:
		return s.ignoreApproval || t.ApprovalStatus == model.ApprovalApproved
	}
	return true
}

func (s TicketScope) matchesSearch(t model.Ticket) bool {
	if n, ok := s.search.Number(); ok && uint64(t.RequesterID) == n {
		return true
	}
	fields := []string{t.Subject, t.Description, t.Number}
	if t.Requester != nil {
		fields = append(fields, t.Requester.FirstName, t.Requester.LastName)
	}
	if t.Asset != nil {
		fields = append(fields, t.Asset.Code)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), s.search.Lower()) {
			return true
		}
	}
	return false
}

// Apply narrows a query on tickets to the scope. The query must be rooted at
// model.Ticket; Apply adds the joins it needs for search.
func (s TicketScope) Apply(q *gorm.DB) *gorm.DB {
	a := s.actor
	switch a.Role {
	case model.RoleEmployee:
		q = q.Where("tickets.requester_id = ?", a.ID)
	case model.RoleManager:
		q = q.Where("(tickets.requester_department = ? OR tickets.assigned_to = ?)", a.Department, a.ID)
	case model.RoleAdmin:
		if !s.ignoreApproval {
			q = q.Where("tickets.approval_status = ?", model.ApprovalApproved)
		}
	}

	if s.filter.Status != "" {
		q = q.Where("tickets.status = ?", s.filter.Status)
	}
	if s.filter.Type != "" {
		q = q.Where("tickets.type = ?", s.filter.Type)
	}
	if s.filter.Priority != "" {
		q = q.Where("tickets.priority = ?", s.filter.Priority)
	}

	if s.search.Empty() {
		return q
	}
	like := s.search.LikePattern()
	q = q.Joins("LEFT JOIN users requester ON requester.id = tickets.requester_id").
		Joins("LEFT JOIN assets ticket_asset ON ticket_asset.id = tickets.asset_id")
	cond := "(" + parse.LikeAny("tickets.subject", "tickets.description", "tickets.number",
		"requester.first_name", "requester.last_name", "ticket_asset.code")
	args := []any{like, like, like, like, like, like}
	if n, ok := s.search.Number(); ok {
		cond += " OR tickets.requester_id = ?"
		args = append(args, n)
	}
	return q.Where(cond+")", args...)
}

// CanOpen guards direct access to a single ticket. Employees may only open
// tickets they raised, whatever their department; every other role uses the
// listing rule.
func CanOpen(actor Actor, t model.Ticket) bool {
	if actor.IsEmployee() {
		return t.RequesterID == actor.ID
	}
	return ScopeFilter(actor, TicketFilter{}).Allows(t)
}

// CanWork reports whether actor may change a ticket's status or assignee.
// Employees may only close their own resolved tickets.
func CanWork(actor Actor, t model.Ticket, target model.TicketStatus) bool {
	if actor.IsEmployee() {
		return t.RequesterID == actor.ID && t.Status == model.TicketResolved && target == model.TicketClosed
	}
	return CanOpen(actor, t)
}

// CanDecideApproval reports whether actor may approve or reject t: managers of
// the requester's department and unrestricted roles.
func CanDecideApproval(actor Actor, t model.Ticket) bool {
	if actor.Unrestricted() {
		return true
	}
	return actor.IsManager() && actor.Department != "" && actor.Department == t.RequesterDepartment
}
