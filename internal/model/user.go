package model

import (
	"time"

	"gorm.io/gorm"
)

// User roles within a company
const (
	RoleAdmin    = "admin"
	RoleOperario = "operario"
)

// User approval statuses. Operators join as pending and only gain access
// to the portal once an admin approves them.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// User represents the user model stored in the database
type User struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Email       string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Password    string         `json:"-" gorm:"type:varchar(255)"`
	Role        string         `json:"role" gorm:"type:varchar(20);not null;default:'operario'"`
	Status      string         `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	CompanyID   uint           `json:"company_id" gorm:"index;not null;comment:'Company this user belongs to'"`
	FirstName   string         `json:"first_name" gorm:"type:varchar(100)"`
	LastName    string         `json:"last_name" gorm:"type:varchar(100)"`
	PhoneNumber string         `json:"phone_number" gorm:"type:varchar(30)"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// DisplayName returns the name shown on work records
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}
