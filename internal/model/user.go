package model

import "time"

// Role is the authorization role carried by a user account.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// User is an account that can raise tickets and hold assets.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	FirstName    string     `gorm:"size:128;not null" json:"first_name"`
	LastName     string     `gorm:"size:128;not null" json:"last_name"`
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Username     string     `gorm:"uniqueIndex;size:128;not null" json:"username"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	Department   string     `gorm:"size:128;index" json:"department"`
	Role         Role       `gorm:"size:32;not null" json:"role"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	IsDeleted    bool       `gorm:"not null;index" json:"is_deleted"`
	IsVerified   bool       `gorm:"not null" json:"is_verified"`
	DeletedOn    *time.Time `json:"deleted_on,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
