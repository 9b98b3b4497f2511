package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
)

const ticketNumberAttempts = 3

// NewTicketNumber returns a number of the form TKT-YYYYMMDD-XXXXXX.
func NewTicketNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("TKT-%s-%s", now.Format("20060102"), suffix)
}

// CreateTicket inserts t as a new open ticket awaiting approval and writes its
// creation history row. The requester's department is copied onto the ticket.
func (s *gormStore) CreateTicket(ctx context.Context, t *model.Ticket, now time.Time) error {
	t.Subject = strings.TrimSpace(t.Subject)
	if t.Subject == "" {
		return errs.Validation("subject is required")
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if !t.Priority.Valid() {
		return errs.Validation("unknown priority %q", t.Priority)
	}
	t.Status = model.TicketOpen
	t.ApprovalStatus = model.ApprovalPending
	t.CreatedAt = now
	t.UpdatedAt = now

	var err error
	for attempt := 0; attempt < ticketNumberAttempts; attempt++ {
		t.ID = 0
		t.Number = NewTicketNumber(now)
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var requester model.User
			if err := tx.First(&requester, t.RequesterID).Error; err != nil {
				return notFound(err, "user", t.RequesterID)
			}
			if requester.IsDeleted || !requester.IsActive {
				return errs.Validation("user %d is not active", t.RequesterID)
			}
			t.RequesterDepartment = requester.Department
			if t.AssetID != nil {
				if err := tx.Select("id").First(&model.Asset{}, *t.AssetID).Error; err != nil {
					return notFound(err, "asset", *t.AssetID)
				}
			}
			if err := tx.Omit("Requester", "Asset").Create(t).Error; err != nil {
				return err
			}
			h := model.TicketHistory{
				TicketID:    t.ID,
				ActionType:  model.TicketActionCreated,
				ToValue:     string(t.Status),
				PerformedBy: t.RequesterID,
				CreatedAt:   now,
			}
			return tx.Create(&h).Error
		})
		if !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("ticket number: %w", errs.ErrDuplicate)
		}
		return err
	}
	return nil
}

func (s *gormStore) GetTicket(ctx context.Context, id uint) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.db.WithContext(ctx).Preload("Requester").Preload("Asset").First(&t, id).Error; err != nil {
		return nil, notFound(err, "ticket", id)
	}
	return &t, nil
}

// ListTickets returns the tickets inside scope, newest first.
func (s *gormStore) ListTickets(ctx context.Context, scope access.TicketScope) ([]model.Ticket, error) {
	q := scope.Apply(s.db.WithContext(ctx).Model(&model.Ticket{}))
	var out []model.Ticket
	err := q.Select("tickets.*").
		Preload("Requester").
		Preload("Asset").
		Order("tickets.created_at DESC, tickets.id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return out, nil
}

// MutateTicket loads the ticket, asks fn for the change and writes the new
// columns with the history row. Nothing is written if fn fails or the ticket
// changed after it was read.
func (s *gormStore) MutateTicket(ctx context.Context, id uint, fn TicketMutation) (*model.Ticket, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Ticket
		if err := tx.Preload("Requester").Preload("Asset").First(&cur, id).Error; err != nil {
			return notFound(err, "ticket", id)
		}
		change, err := fn(cur)
		if err != nil {
			return err
		}
		if assignee, ok := change.Columns["assigned_to"].(*uint); ok && assignee != nil {
			if err := requireActiveUser(tx, *assignee); err != nil {
				return err
			}
		}
		if err := updateIfUnchanged(tx, &model.Ticket{}, id, cur.UpdatedAt, change.Columns); err != nil {
			return err
		}
		if err := tx.Create(&change.History).Error; err != nil {
			return fmt.Errorf("failed to record ticket history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTicket(ctx, id)
}

func (s *gormStore) TicketHistory(ctx context.Context, ticketID uint) ([]model.TicketHistory, error) {
	var rows []model.TicketHistory
	err := s.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Order("id").Find(&rows).Error
	return rows, err
}
