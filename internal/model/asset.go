package model

import (
	"time"

	"gorm.io/datatypes"
)

// AssetStatus is the lifecycle status of a physical asset.
type AssetStatus string

const (
	AssetAvailable   AssetStatus = "available"
	AssetInUse       AssetStatus = "in_use"
	AssetMaintenance AssetStatus = "maintenance"
	AssetRetired     AssetStatus = "retired"
)

// Valid reports whether s is one of the known statuses.
func (s AssetStatus) Valid() bool {
	switch s {
	case AssetAvailable, AssetInUse, AssetMaintenance, AssetRetired:
		return true
	}
	return false
}

// Asset is a tracked piece of IT equipment.
type Asset struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Code           string          `gorm:"uniqueIndex;size:64;not null" json:"code"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	Category       string          `gorm:"size:64;index" json:"category"`
	Brand          string          `gorm:"size:128" json:"brand"`
	Model          string          `gorm:"size:128" json:"model"`
	SerialNumber   string          `gorm:"size:128" json:"serial_number"`
	PurchaseDate   *datatypes.Date `json:"purchase_date,omitempty"`
	PurchaseCost   *float64        `json:"purchase_cost,omitempty"`
	Supplier       string          `gorm:"size:255" json:"supplier"`
	WarrantyExpiry *datatypes.Date `gorm:"index" json:"warranty_expiry,omitempty"`
	Location       string          `gorm:"size:255" json:"location"`
	Department     string          `gorm:"size:128;index" json:"department"`
	Status         AssetStatus     `gorm:"size:32;index;not null" json:"status"`
	AssignedTo     *uint           `gorm:"index" json:"assigned_to,omitempty"`
	Description    string          `gorm:"type:text" json:"description"`
	CreatedBy      uint            `gorm:"not null" json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	// Associations
	Assignee *User `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
}

// AssetAction names what an asset history row records.
type AssetAction string

const (
	AssetActionCreated    AssetAction = "created"
	AssetActionUpdated    AssetAction = "updated"
	AssetActionAssigned   AssetAction = "assigned"
	AssetActionUnassigned AssetAction = "unassigned"
)

// AssetHistory is an append-only audit row for an asset.
type AssetHistory struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	AssetID      uint        `gorm:"index;not null" json:"asset_id"`
	ActionType   AssetAction `gorm:"size:32;not null" json:"action_type"`
	AssignedFrom *uint       `json:"assigned_from,omitempty"`
	AssignedTo   *uint       `json:"assigned_to,omitempty"`
	FromValue    string      `gorm:"type:text" json:"from_value,omitempty"`
	ToValue      string      `gorm:"type:text" json:"to_value,omitempty"`
	PerformedBy  uint        `gorm:"not null" json:"performed_by"`
	CreatedAt    time.Time   `gorm:"index" json:"created_at"`
}

// TableName overrides the pluralized default.
func (AssetHistory) TableName() string { return "asset_history" }
