package store

import (
	"context"
	"fmt"
	"time"

	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/due"
	"assetdesk-backend/internal/model"
	"assetdesk-backend/internal/parse"
)

// Dashboard is the summary shown on the landing page. Every count is limited
// to what the actor may see.
type Dashboard struct {
	AssetsByStatus   map[model.AssetStatus]int64  `json:"assets_by_status"`
	Warranty         map[due.ExpiryKind]int64     `json:"warranty"`
	SchedulesOverdue int64                        `json:"schedules_overdue"`
	SchedulesDueSoon int64                        `json:"schedules_due_soon"`
	TicketsByStatus  map[model.TicketStatus]int64 `json:"tickets_by_status"`
	PendingApprovals int64                        `json:"pending_approvals"`
}

type statusCount struct {
	Status string
	N      int64
}

func (s *gormStore) Dashboard(ctx context.Context, actor access.Actor, now time.Time, warrantyWindow int) (*Dashboard, error) {
	if warrantyWindow <= 0 {
		warrantyWindow = due.DefaultWarnWindowDays
	}
	d := &Dashboard{
		AssetsByStatus:  map[model.AssetStatus]int64{},
		Warranty:        map[due.ExpiryKind]int64{},
		TicketsByStatus: map[model.TicketStatus]int64{},
	}

	var assetCounts []statusCount
	err := access.ApplyAssetScope(actor, s.db.WithContext(ctx).Model(&model.Asset{})).
		Select("assets.status AS status, COUNT(*) AS n").
		Group("assets.status").
		Scan(&assetCounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count assets: %w", err)
	}
	for _, c := range assetCounts {
		d.AssetsByStatus[model.AssetStatus(c.Status)] = c.N
	}

	var warranties []model.Asset
	err = access.ApplyAssetScope(actor, s.db.WithContext(ctx).Model(&model.Asset{})).
		Select("assets.id", "assets.warranty_expiry").
		Where("assets.status <> ?", model.AssetRetired).
		Find(&warranties).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load warranties: %w", err)
	}
	for _, a := range warranties {
		d.Warranty[due.ClassifyExpiry(now, parse.DateTime(a.WarrantyExpiry), warrantyWindow).Kind]++
	}

	schedules, err := s.ListSchedules(ctx, actor, ScheduleFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	for _, sch := range schedules {
		switch due.ClassifyDue(now, time.Time(sch.NextDueDate), sch.NotifyDaysBefore).Kind {
		case due.Overdue:
			d.SchedulesOverdue++
		case due.DueSoon:
			d.SchedulesDueSoon++
		}
	}

	var ticketCounts []statusCount
	err = access.ScopeFilter(actor, access.TicketFilter{}).
		Apply(s.db.WithContext(ctx).Model(&model.Ticket{})).
		Select("tickets.status AS status, COUNT(*) AS n").
		Group("tickets.status").
		Scan(&ticketCounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	for _, c := range ticketCounts {
		d.TicketsByStatus[model.TicketStatus(c.Status)] = c.N
	}

	q := s.db.WithContext(ctx).Model(&model.Ticket{}).Where("tickets.approval_status = ?", model.ApprovalPending)
	switch {
	case actor.Unrestricted():
	case actor.IsManager():
		q = q.Where("tickets.requester_department = ?", actor.Department)
	default:
		q = nil
	}
	if q != nil {
		if err := q.Count(&d.PendingApprovals).Error; err != nil {
			return nil, fmt.Errorf("failed to count approvals: %w", err)
		}
	}
	return d, nil
}
