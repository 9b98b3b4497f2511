package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/assignment"
	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/maintenance"
	"assetdesk-backend/internal/model"
	"assetdesk-backend/internal/ticketflow"
)

// TicketMutation inspects a ticket loaded inside the write transaction and
// returns the change to apply. Returning an error aborts the write.
type TicketMutation func(t model.Ticket) (ticketflow.Change, error)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB
	Ping(ctx context.Context) error

	CreateAsset(ctx context.Context, a *model.Asset, now time.Time) error
	GetAsset(ctx context.Context, id uint) (*model.Asset, error)
	UpdateAsset(ctx context.Context, id uint, patch AssetPatch, actorID uint, now time.Time) (*model.Asset, error)
	ListAssets(ctx context.Context, actor access.Actor, f AssetFilter) ([]model.Asset, error)
	ReassignAsset(ctx context.Context, id uint, assignee *uint, actorID uint, now time.Time) (*model.Asset, []assignment.Notice, error)
	AssetHistory(ctx context.Context, assetID uint) ([]model.AssetHistory, error)
	AssetsWithWarranty(ctx context.Context) ([]model.Asset, error)

	LogMaintenance(ctx context.Context, rec *model.MaintenanceRecord) error
	ListMaintenance(ctx context.Context, assetID uint) ([]model.MaintenanceRecord, error)
	CreateSchedule(ctx context.Context, s *model.RecurringSchedule) error
	GetSchedule(ctx context.Context, id uint) (*model.RecurringSchedule, error)
	ListSchedules(ctx context.Context, actor access.Actor, f ScheduleFilter) ([]model.RecurringSchedule, error)
	SetScheduleActive(ctx context.Context, id uint, active bool) (*model.RecurringSchedule, error)
	CompleteSchedule(ctx context.Context, id uint, c maintenance.Completion, now time.Time) (*model.MaintenanceRecord, *model.RecurringSchedule, error)

	CreateTicket(ctx context.Context, t *model.Ticket, now time.Time) error
	GetTicket(ctx context.Context, id uint) (*model.Ticket, error)
	ListTickets(ctx context.Context, scope access.TicketScope) ([]model.Ticket, error)
	MutateTicket(ctx context.Context, id uint, fn TicketMutation) (*model.Ticket, error)
	TicketHistory(ctx context.Context, ticketID uint) ([]model.TicketHistory, error)

	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id uint) (*model.User, error)
	FindUserByLogin(ctx context.Context, login string) (*model.User, error)
	ListUsers(ctx context.Context, f UserFilter) ([]model.User, error)
	UpdateUser(ctx context.Context, id uint, patch UserPatch, now time.Time) (*model.User, error)
	DeleteUser(ctx context.Context, id uint, now time.Time) error
	RestoreUser(ctx context.Context, id uint, now time.Time) (*model.User, error)

	Dashboard(ctx context.Context, actor access.Actor, now time.Time, warrantyWindow int) (*Dashboard, error)

	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForUser(ctx context.Context, userID uint) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// notFound maps gorm's missing-row error to errs.ErrNotFound and leaves
// everything else alone.
func notFound(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound(entity, id)
	}
	return err
}

// isUniqueViolation recognizes unique index failures from postgres and
// sqlite, whether or not gorm translated them.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// updateIfUnchanged applies cols to the row only if updated_at still holds
// the value read earlier in the same transaction. A zero row count means
// someone else wrote first.
func updateIfUnchanged(tx *gorm.DB, m any, id uint, seen time.Time, cols map[string]any) error {
	res := tx.Model(m).Where("id = ? AND updated_at = ?", id, seen).Updates(cols)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return errs.ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.E(errs.ErrConflict, "record %d was modified concurrently", id)
	}
	return nil
}
