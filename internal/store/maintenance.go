package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/due"
	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/maintenance"
	"assetdesk-backend/internal/model"
)

// ScheduleFilter narrows a schedule listing. Due, when set, keeps only
// schedules that classify to that kind on Reference.
type ScheduleFilter struct {
	AssetID    uint
	ActiveOnly bool
	Due        due.DueKind
	Reference  time.Time
}

// LogMaintenance records an ad-hoc maintenance entry for an existing asset.
func (s *gormStore) LogMaintenance(ctx context.Context, rec *model.MaintenanceRecord) error {
	if strings.TrimSpace(rec.Type) == "" {
		return errs.Validation("maintenance type is required")
	}
	if rec.Cost != nil && *rec.Cost < 0 {
		return errs.Validation("cost cannot be negative")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&model.Asset{}, rec.AssetID).Error; err != nil {
			return notFound(err, "asset", rec.AssetID)
		}
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to log maintenance: %w", err)
		}
		return nil
	})
}

func (s *gormStore) ListMaintenance(ctx context.Context, assetID uint) ([]model.MaintenanceRecord, error) {
	if err := s.db.WithContext(ctx).Select("id").First(&model.Asset{}, assetID).Error; err != nil {
		return nil, notFound(err, "asset", assetID)
	}
	var recs []model.MaintenanceRecord
	err := s.db.WithContext(ctx).Where("asset_id = ?", assetID).Order("date DESC, id DESC").Find(&recs).Error
	return recs, err
}

// CreateSchedule inserts an active schedule. NextDueDate defaults to
// StartDate.
func (s *gormStore) CreateSchedule(ctx context.Context, sch *model.RecurringSchedule) error {
	if strings.TrimSpace(sch.Name) == "" {
		return errs.Validation("schedule name is required")
	}
	if strings.TrimSpace(sch.MaintenanceType) == "" {
		return errs.Validation("maintenance type is required")
	}
	if sch.FrequencyDays <= 0 {
		return errs.Validation("frequency_days must be positive")
	}
	if sch.NotifyDaysBefore < 0 {
		return errs.Validation("notify_days_before cannot be negative")
	}
	if time.Time(sch.StartDate).IsZero() {
		return errs.Validation("start_date is required")
	}
	if time.Time(sch.NextDueDate).IsZero() {
		sch.NextDueDate = sch.StartDate
	}
	sch.IsActive = true

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&model.Asset{}, sch.AssetID).Error; err != nil {
			return notFound(err, "asset", sch.AssetID)
		}
		if sch.AssignedTo != nil {
			if err := requireActiveUser(tx, *sch.AssignedTo); err != nil {
				return err
			}
		}
		return tx.Create(sch).Error
	})
}

func (s *gormStore) GetSchedule(ctx context.Context, id uint) (*model.RecurringSchedule, error) {
	var sch model.RecurringSchedule
	if err := s.db.WithContext(ctx).Preload("Asset").First(&sch, id).Error; err != nil {
		return nil, notFound(err, "schedule", id)
	}
	return &sch, nil
}

// ListSchedules returns schedules on assets actor may see, soonest due first.
func (s *gormStore) ListSchedules(ctx context.Context, actor access.Actor, f ScheduleFilter) ([]model.RecurringSchedule, error) {
	q := s.db.WithContext(ctx).Model(&model.RecurringSchedule{}).
		Joins("JOIN assets ON assets.id = recurring_schedules.asset_id")
	q = access.ApplyAssetScope(actor, q)
	if f.AssetID != 0 {
		q = q.Where("recurring_schedules.asset_id = ?", f.AssetID)
	}
	if f.ActiveOnly || f.Due != "" {
		q = q.Where("recurring_schedules.is_active = ?", true)
	}

	var out []model.RecurringSchedule
	if err := q.Preload("Asset").Order("recurring_schedules.next_due_date, recurring_schedules.id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	if f.Due == "" {
		return out, nil
	}
	kept := out[:0]
	for _, sch := range out {
		if due.ClassifyDue(f.Reference, time.Time(sch.NextDueDate), sch.NotifyDaysBefore).Kind == f.Due {
			kept = append(kept, sch)
		}
	}
	return kept, nil
}

func (s *gormStore) SetScheduleActive(ctx context.Context, id uint, active bool) (*model.RecurringSchedule, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&model.RecurringSchedule{}, id).Error; err != nil {
			return notFound(err, "schedule", id)
		}
		return tx.Model(&model.RecurringSchedule{}).Where("id = ?", id).Update("is_active", active).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetSchedule(ctx, id)
}

// CompleteSchedule writes the maintenance record and advances the schedule
// in one transaction. The schedule row is only advanced if it was not
// completed concurrently.
func (s *gormStore) CompleteSchedule(ctx context.Context, id uint, c maintenance.Completion, now time.Time) (*model.MaintenanceRecord, *model.RecurringSchedule, error) {
	if c.Cost != nil && *c.Cost < 0 {
		return nil, nil, errs.Validation("cost cannot be negative")
	}
	var rec model.MaintenanceRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sch model.RecurringSchedule
		if err := tx.First(&sch, id).Error; err != nil {
			return notFound(err, "schedule", id)
		}
		r, upd, err := maintenance.Complete(sch, c, now)
		if err != nil {
			return err
		}
		cols := upd.Columns()
		cols["updated_at"] = now
		if err := updateIfUnchanged(tx, &model.RecurringSchedule{}, id, sch.UpdatedAt, cols); err != nil {
			return err
		}
		if err := tx.Create(&r).Error; err != nil {
			return fmt.Errorf("failed to record maintenance: %w", err)
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sch, err := s.GetSchedule(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &rec, sch, nil
}
