package model

import (
	"time"

	"gorm.io/gorm"
)

// Company represents a tenant: every product, variant, user and work
// record belongs to exactly one company.
type Company struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"type:varchar(100);not null"`
	JoinCode  string         `json:"join_code" gorm:"type:varchar(36);uniqueIndex;not null"` // operators register with this code
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
