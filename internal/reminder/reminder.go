// Package reminder periodically scans maintenance schedules and warranties
// and queues reminders for the ones that need attention.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"assetdesk-backend/config"
	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/due"
	"assetdesk-backend/internal/model"
	"assetdesk-backend/internal/notification"
	"assetdesk-backend/internal/parse"
	"assetdesk-backend/internal/store"
)

// Source is the data the scan reads.
type Source interface {
	ListSchedules(ctx context.Context, actor access.Actor, f store.ScheduleFilter) ([]model.RecurringSchedule, error)
	AssetsWithWarranty(ctx context.Context) ([]model.Asset, error)
}

// Summary reports what one scan did.
type Summary struct {
	Schedules  int `json:"schedules"`
	Warranties int `json:"warranties"`
	Dispatched int `json:"dispatched"`
	Suppressed int `json:"suppressed"`
	Dropped    int `json:"dropped"`
}

// system sees every schedule regardless of department.
var system = access.Actor{Role: model.RoleSuperAdmin}

// Service runs the scan on a timer.
type Service struct {
	cfg      config.ReminderConfig
	source   Source
	dispatch notification.Dispatcher
	seen     *cache.Cache
	log      zerolog.Logger
}

// NewService creates a reminder service. Reminders for the same subject are
// suppressed for cfg.Dedupe.
func NewService(cfg config.ReminderConfig, source Source, dispatch notification.Dispatcher, log zerolog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Dedupe <= 0 {
		cfg.Dedupe = 24 * time.Hour
	}
	return &Service{
		cfg:      cfg,
		source:   source,
		dispatch: dispatch,
		seen:     cache.New(cfg.Dedupe, 2*cfg.Dedupe),
		log:      log.With().Str("component", "reminder").Logger(),
	}
}

// Run scans once immediately and then every cfg.Interval until ctx ends.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info().Msg("reminder scan is disabled; not starting")
		return
	}
	s.log.Info().Dur("interval", s.cfg.Interval).Msg("starting reminder service")

	s.scanAndLog(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reminder service shutting down")
			return
		case <-timer.C:
			s.scanAndLog(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) scanAndLog(ctx context.Context) {
	sum, err := s.ScanOnce(ctx, time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("reminder scan failed")
		return
	}
	s.log.Info().
		Int("schedules", sum.Schedules).
		Int("warranties", sum.Warranties).
		Int("dispatched", sum.Dispatched).
		Int("suppressed", sum.Suppressed).
		Int("dropped", sum.Dropped).
		Msg("reminder scan finished")
}

// ScanOnce classifies every active schedule and every warranty against now
// in the configured time zone and queues reminders for overdue or due-soon
// schedules and expiring warranties.
func (s *Service) ScanOnce(ctx context.Context, now time.Time) (Summary, error) {
	var sum Summary
	ref := now.In(s.cfg.Location)

	schedules, err := s.source.ListSchedules(ctx, system, store.ScheduleFilter{ActiveOnly: true})
	if err != nil {
		return sum, fmt.Errorf("list schedules: %w", err)
	}
	for _, sch := range schedules {
		d := due.ClassifyDue(ref, time.Time(sch.NextDueDate), sch.NotifyDaysBefore)
		if d.Kind == due.Normal {
			continue
		}
		sum.Schedules++
		if sch.AssignedTo == nil {
			s.log.Debug().Uint("schedule_id", sch.ID).Msg("schedule has no assignee; skipping reminder")
			continue
		}
		key := fmt.Sprintf("schedule:%d:%s", sch.ID, time.Time(sch.NextDueDate).Format(parse.DateLayout))
		s.send(key, notification.Job{
			Kind:       notification.KindMaintenanceDue,
			UserID:     *sch.AssignedTo,
			AssetID:    sch.AssetID,
			ScheduleID: sch.ID,
			Detail:     dueDetail(d),
		}, &sum)
	}

	window := s.cfg.WarrantyWindow
	if window <= 0 {
		window = due.DefaultWarnWindowDays
	}
	assets, err := s.source.AssetsWithWarranty(ctx)
	if err != nil {
		return sum, fmt.Errorf("list warranties: %w", err)
	}
	for _, a := range assets {
		e := due.ClassifyExpiry(ref, parse.DateTime(a.WarrantyExpiry), window)
		if e.Kind != due.ExpiringSoon {
			continue
		}
		sum.Warranties++
		key := fmt.Sprintf("warranty:%d:%s", a.ID, time.Time(*a.WarrantyExpiry).Format(parse.DateLayout))
		s.send(key, notification.Job{
			Kind:    notification.KindWarrantyExpiring,
			UserID:  a.CreatedBy,
			AssetID: a.ID,
			Detail:  e.String(),
		}, &sum)
	}
	return sum, nil
}

func (s *Service) send(key string, job notification.Job, sum *Summary) {
	if _, found := s.seen.Get(key); found {
		sum.Suppressed++
		return
	}
	if !s.dispatch.Dispatch(job) {
		sum.Dropped++
		return
	}
	s.seen.SetDefault(key, struct{}{})
	sum.Dispatched++
}

func dueDetail(d due.Due) string {
	switch d.Kind {
	case due.Overdue:
		return fmt.Sprintf("overdue by %d day(s)", d.Days)
	case due.DueSoon:
		if d.Days == 0 {
			return "due today"
		}
		return fmt.Sprintf("due in %d day(s)", d.Days)
	}
	return "on schedule"
}
