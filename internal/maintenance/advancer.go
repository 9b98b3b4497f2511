// Package maintenance advances recurring maintenance schedules.
package maintenance

import (
	"time"

	"gorm.io/datatypes"

	"assetdesk-backend/internal/due"
	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
)

// Completion describes who completed a scheduled maintenance and how.
type Completion struct {
	PerformedBy string
	Cost        *float64
	Notes       string
	ActorID     uint
}

// ScheduleUpdate is the change to apply to the schedule row.
type ScheduleUpdate struct {
	ScheduleID        uint
	NextDueDate       datatypes.Date
	LastCompletedDate datatypes.Date
}

// Columns renders the update as a gorm column map.
func (u ScheduleUpdate) Columns() map[string]any {
	return map[string]any{
		"next_due_date":       u.NextDueDate,
		"last_completed_date": u.LastCompletedDate,
	}
}

// NextDue returns the due date following the schedule's current one. It is
// anchored to the previous due date, not to today, so a late completion does
// not shift the cadence.
func NextDue(s model.RecurringSchedule) (time.Time, error) {
	if s.FrequencyDays <= 0 {
		return time.Time{}, errs.E(errs.ErrInvalidScheduleState, "schedule %d has frequency_days %d", s.ID, s.FrequencyDays)
	}
	return due.AddDays(time.Time(s.NextDueDate), s.FrequencyDays), nil
}

// Complete produces the maintenance record to insert and the schedule update
// for one completion. Nothing is persisted; the caller writes both in one
// transaction.
func Complete(s model.RecurringSchedule, c Completion, now time.Time) (model.MaintenanceRecord, ScheduleUpdate, error) {
	if !s.IsActive {
		return model.MaintenanceRecord{}, ScheduleUpdate{}, errs.E(errs.ErrInvalidScheduleState, "schedule %d is inactive", s.ID)
	}
	next, err := NextDue(s)
	if err != nil {
		return model.MaintenanceRecord{}, ScheduleUpdate{}, err
	}

	today := datatypes.Date(due.Day(now))
	nextDate := datatypes.Date(due.Day(next))
	scheduleID := s.ID

	record := model.MaintenanceRecord{
		AssetID:             s.AssetID,
		ScheduleID:          &scheduleID,
		Type:                s.MaintenanceType,
		Date:                today,
		PerformedBy:         c.PerformedBy,
		Cost:                c.Cost,
		Notes:               c.Notes,
		NextMaintenanceDate: &nextDate,
		CreatedBy:           c.ActorID,
	}
	update := ScheduleUpdate{
		ScheduleID:        s.ID,
		NextDueDate:       nextDate,
		LastCompletedDate: today,
	}
	return record, update, nil
}
