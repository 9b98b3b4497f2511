package notification

import (
	"fmt"

	"assetdesk-backend/internal/assignment"
	"assetdesk-backend/internal/model"
)

// Kind names the message template of a job.
type Kind string

const (
	KindAssignment       Kind = "assignment"
	KindUnassignment     Kind = "unassignment"
	KindMaintenanceDue   Kind = "maintenance_due"
	KindWarrantyExpiring Kind = "warranty_expiring"
	KindTicketStatus     Kind = "ticket_status"
)

// Job is one message for one user. The IDs that matter depend on Kind.
type Job struct {
	Kind       Kind
	UserID     uint
	AssetID    uint
	ScheduleID uint
	TicketID   uint
	// Detail is a short pre-rendered phrase such as "due in 3 day(s)".
	Detail string
}

// AssignmentJobs converts the notices of a reassignment into jobs.
func AssignmentJobs(notices []assignment.Notice) []Job {
	jobs := make([]Job, 0, len(notices))
	for _, n := range notices {
		kind := KindAssignment
		if n.Kind == assignment.NoticeUnassigned {
			kind = KindUnassignment
		}
		jobs = append(jobs, Job{Kind: kind, UserID: n.UserID, AssetID: n.AssetID})
	}
	return jobs
}

// Message is the rendered content sent over every channel.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// subject bundles what a job refers to, loaded by the worker.
type subject struct {
	asset    *model.Asset
	schedule *model.RecurringSchedule
	ticket   *model.Ticket
}

func assetLabel(a *model.Asset, id uint) string {
	if a == nil {
		return fmt.Sprintf("asset #%d", id)
	}
	if a.Name == "" {
		return a.Code
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.Code)
}

func render(job Job, to model.User, subj subject) Message {
	name := to.FirstName
	if name == "" {
		name = to.Username
	}
	switch job.Kind {
	case KindAssignment:
		return Message{
			Title: "Asset assigned to you",
			Body:  fmt.Sprintf("Hi %s, %s is now assigned to you.", name, assetLabel(subj.asset, job.AssetID)),
			URL:   fmt.Sprintf("/assets/%d", job.AssetID),
		}
	case KindUnassignment:
		return Message{
			Title: "Asset returned",
			Body:  fmt.Sprintf("Hi %s, %s is no longer assigned to you.", name, assetLabel(subj.asset, job.AssetID)),
			URL:   fmt.Sprintf("/assets/%d", job.AssetID),
		}
	case KindMaintenanceDue:
		what := fmt.Sprintf("schedule #%d", job.ScheduleID)
		assetID := job.AssetID
		if s := subj.schedule; s != nil {
			what = s.Name
			assetID = s.AssetID
			if s.Asset != nil {
				what = fmt.Sprintf("%s on %s", s.Name, assetLabel(s.Asset, s.AssetID))
			}
		}
		return Message{
			Title: "Maintenance due",
			Body:  fmt.Sprintf("Hi %s, %s is %s.", name, what, job.Detail),
			URL:   fmt.Sprintf("/assets/%d", assetID),
		}
	case KindWarrantyExpiring:
		return Message{
			Title: "Warranty expiring",
			Body:  fmt.Sprintf("Hi %s, the warranty of %s %s.", name, assetLabel(subj.asset, job.AssetID), job.Detail),
			URL:   fmt.Sprintf("/assets/%d", job.AssetID),
		}
	case KindTicketStatus:
		number := fmt.Sprintf("#%d", job.TicketID)
		if subj.ticket != nil {
			number = subj.ticket.Number
		}
		return Message{
			Title: "Ticket " + number + " updated",
			Body:  fmt.Sprintf("Hi %s, ticket %s is now %s.", name, number, job.Detail),
			URL:   fmt.Sprintf("/tickets/%d", job.TicketID),
		}
	}
	return Message{Title: "Notification", Body: job.Detail}
}
