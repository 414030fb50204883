package model

import (
	"time"
)

// WorkRecord is an immutable audit entry of one operator submission.
// Records are only ever inserted: there is no update or delete path, and
// deleting a product, variant or user leaves its records untouched. The
// denormalized product/variant fields keep the audit trail readable after
// the referenced entities are gone.
type WorkRecord struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CompanyID    uint      `json:"company_id" gorm:"index;not null"`
	OperarioID   uint      `json:"operario_id" gorm:"index;not null"`
	OperarioName string    `json:"operario_name" gorm:"type:varchar(200);not null"`
	ProductID    uint      `json:"product_id" gorm:"index;not null"`
	ProductName  string    `json:"product_name" gorm:"type:varchar(255);not null"`
	ProductRef   string    `json:"product_ref" gorm:"type:varchar(100);not null"`
	VariantID    uint      `json:"variant_id" gorm:"index;not null"`
	VariantColor string    `json:"variant_color" gorm:"type:varchar(100);not null"`
	ProcessName  string    `json:"process_name" gorm:"type:varchar(100);not null"`
	ProcessValue float64   `json:"process_value" gorm:"not null"`
	Size         string    `json:"size" gorm:"type:varchar(20);not null"`
	Quantity     int       `json:"quantity" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}

// Earnings returns the amount owed to the operator for this record
func (r *WorkRecord) Earnings() float64 {
	return r.ProcessValue * float64(r.Quantity)
}
