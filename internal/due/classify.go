// Package due classifies warranty expiry and maintenance due dates relative
// to a reference day. All arithmetic is done on calendar days, so the time of
// day and the zone offset of the inputs never shift a result by one.
package due

import (
	"fmt"
	"time"
)

// DefaultWarnWindowDays is the look-ahead used for warranty expiry.
const DefaultWarnWindowDays = 30

// ExpiryKind buckets a warranty end date.
type ExpiryKind string

const (
	Unknown      ExpiryKind = "unknown"
	Expired      ExpiryKind = "expired"
	ExpiringSoon ExpiryKind = "expiring_soon"
	Active       ExpiryKind = "active"
)

// Expiry is the result of ClassifyExpiry. Days is the number of days since
// expiry for Expired and the days left for ExpiringSoon; zero otherwise.
type Expiry struct {
	Kind ExpiryKind `json:"kind"`
	Days int        `json:"days"`
}

func (e Expiry) String() string {
	switch e.Kind {
	case Expired:
		return fmt.Sprintf("expired %d day(s) ago", e.Days)
	case ExpiringSoon:
		return fmt.Sprintf("expires in %d day(s)", e.Days)
	}
	return string(e.Kind)
}

// DueKind buckets a maintenance due date.
type DueKind string

const (
	Overdue DueKind = "overdue"
	DueSoon DueKind = "due_soon"
	Normal  DueKind = "normal"
)

// Due is the result of ClassifyDue. Days is the days late for Overdue and the
// days left for DueSoon; zero for Normal.
type Due struct {
	Kind DueKind `json:"kind"`
	Days int     `json:"days"`
}

// Day truncates t to midnight UTC of its own calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the signed number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// AddDays moves t forward by n calendar days, keeping its location.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// ClassifyExpiry buckets target relative to reference. A nil target is
// Unknown. The window is inclusive: a target exactly windowDays away is still
// ExpiringSoon.
func ClassifyExpiry(reference time.Time, target *time.Time, windowDays int) Expiry {
	if target == nil {
		return Expiry{Kind: Unknown}
	}
	delta := DaysBetween(reference, *target)
	switch {
	case delta < 0:
		return Expiry{Kind: Expired, Days: -delta}
	case delta <= windowDays:
		return Expiry{Kind: ExpiringSoon, Days: delta}
	default:
		return Expiry{Kind: Active}
	}
}

// ClassifyDue buckets a maintenance due date relative to reference, using the
// schedule's own notify threshold.
func ClassifyDue(reference, dueDate time.Time, notifyDaysBefore int) Due {
	delta := DaysBetween(reference, dueDate)
	switch {
	case delta < 0:
		return Due{Kind: Overdue, Days: -delta}
	case delta <= notifyDaysBefore:
		return Due{Kind: DueSoon, Days: delta}
	default:
		return Due{Kind: Normal}
	}
}
