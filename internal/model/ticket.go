package model

import "time"

// TicketStatus is the workflow status of a support ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketPending    TicketStatus = "pending"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

// TicketPriority is the urgency of a ticket.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ApprovalStatus gates a ticket separately from its workflow status.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Ticket is a support request raised by a user.
type Ticket struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Number              string         `gorm:"uniqueIndex;size:32;not null" json:"number"`
	Subject             string         `gorm:"size:255;not null" json:"subject"`
	Description         string         `gorm:"type:text" json:"description"`
	Type                string         `gorm:"size:64;index" json:"type"`
	Priority            TicketPriority `gorm:"size:16;index;not null" json:"priority"`
	Status              TicketStatus   `gorm:"size:32;index;not null" json:"status"`
	ApprovalStatus      ApprovalStatus `gorm:"size:16;index;not null" json:"approval_status"`
	RequesterID         uint           `gorm:"index;not null" json:"requester_id"`
	RequesterDepartment string         `gorm:"size:128;index" json:"requester_department"`
	AssetID             *uint          `gorm:"index" json:"asset_id,omitempty"`
	AssignedTo          *uint          `gorm:"index" json:"assigned_to,omitempty"`
	ResolutionNote      string         `gorm:"type:text" json:"resolution_note,omitempty"`
	ResolvedBy          *uint          `json:"resolved_by,omitempty"`
	ResolvedAt          *time.Time     `json:"resolved_at,omitempty"`
	ClosedBy            *uint          `json:"closed_by,omitempty"`
	ClosedAt            *time.Time     `json:"closed_at,omitempty"`
	ApprovedBy          *uint          `json:"approved_by,omitempty"`
	ApprovedAt          *time.Time     `json:"approved_at,omitempty"`
	RejectionReason     string         `gorm:"type:text" json:"rejection_reason,omitempty"`
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`

	// Associations
	Requester *User  `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Asset     *Asset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

// TicketAction names what a ticket history row records.
type TicketAction string

const (
	TicketActionCreated       TicketAction = "created"
	TicketActionStatusChanged TicketAction = "status_changed"
	TicketActionApproved      TicketAction = "approved"
	TicketActionRejected      TicketAction = "rejected"
	TicketActionAssigned      TicketAction = "assigned"
)

// TicketHistory is an append-only audit row for a ticket.
type TicketHistory struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	TicketID    uint         `gorm:"index;not null" json:"ticket_id"`
	ActionType  TicketAction `gorm:"size:32;not null" json:"action_type"`
	FromValue   string       `gorm:"size:255" json:"from_value,omitempty"`
	ToValue     string       `gorm:"size:255" json:"to_value,omitempty"`
	Note        string       `gorm:"type:text" json:"note,omitempty"`
	PerformedBy uint         `gorm:"not null" json:"performed_by"`
	CreatedAt   time.Time    `gorm:"index" json:"created_at"`
}

// TableName overrides the pluralized default.
func (TicketHistory) TableName() string { return "ticket_history" }
