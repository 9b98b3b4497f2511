package model

import (
	"time"

	"gorm.io/datatypes"
)

// MaintenanceRecord is an immutable log entry of maintenance performed on an asset.
type MaintenanceRecord struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	AssetID             uint            `gorm:"index;not null" json:"asset_id"`
	ScheduleID          *uint           `gorm:"index" json:"schedule_id,omitempty"`
	Type                string          `gorm:"size:64;not null" json:"type"`
	Date                datatypes.Date  `gorm:"not null" json:"date"`
	PerformedBy         string          `gorm:"size:255" json:"performed_by"`
	Cost                *float64        `json:"cost,omitempty"`
	Notes               string          `gorm:"type:text" json:"notes"`
	NextMaintenanceDate *datatypes.Date `json:"next_maintenance_date,omitempty"`
	CreatedBy           uint            `gorm:"not null" json:"created_by"`
	CreatedAt           time.Time       `json:"created_at"`
}

// RecurringSchedule is a repeating maintenance obligation with a rolling due date.
type RecurringSchedule struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	AssetID           uint            `gorm:"index;not null" json:"asset_id"`
	Name              string          `gorm:"size:255;not null" json:"name"`
	MaintenanceType   string          `gorm:"size:64;not null" json:"maintenance_type"`
	FrequencyDays     int             `gorm:"not null" json:"frequency_days"`
	StartDate         datatypes.Date  `gorm:"not null" json:"start_date"`
	NextDueDate       datatypes.Date  `gorm:"index;not null" json:"next_due_date"`
	AssignedTo        *uint           `gorm:"index" json:"assigned_to,omitempty"`
	NotifyDaysBefore  int             `gorm:"not null" json:"notify_days_before"`
	IsActive          bool            `gorm:"index;not null" json:"is_active"`
	LastCompletedDate *datatypes.Date `json:"last_completed_date,omitempty"`
	CreatedBy         uint            `gorm:"not null" json:"created_by"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	// Associations
	Asset *Asset `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE" json:"asset,omitempty"`
}
