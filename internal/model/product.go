package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Process is one named manufacturing step of a product, with the amount
// paid to the operator per completed unit.
type Process struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ProcessList is the ordered list of processes, stored as jsonb
type ProcessList []Process

// Value implements driver.Valuer
func (p ProcessList) Value() (driver.Value, error) {
	if p == nil {
		p = ProcessList{}
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner
func (p *ProcessList) Scan(value interface{}) error {
	if value == nil {
		*p = ProcessList{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for ProcessList: %T", value)
	}

	return json.Unmarshal(data, p)
}

// TotalValue returns the sum of all per-unit process values. It may never
// exceed the product's production cost.
func (p ProcessList) TotalValue() float64 {
	var sum float64
	for _, proc := range p {
		sum += proc.Value
	}
	return sum
}

// Find returns the process with the given name, if present
func (p ProcessList) Find(name string) (Process, bool) {
	for _, proc := range p {
		if proc.Name == name {
			return proc, true
		}
	}
	return Process{}, false
}

// Product represents a garment definition
type Product struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	CompanyID      uint           `json:"company_id" gorm:"uniqueIndex:idx_company_ref;not null;comment:'Company this product belongs to'"`
	Name           string         `json:"name" gorm:"type:varchar(255);not null"`
	Ref            string         `json:"ref" gorm:"type:varchar(100);uniqueIndex:idx_company_ref;not null"`
	ProductionCost float64        `json:"production_cost" gorm:"not null"`
	Processes      ProcessList    `json:"processes" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}
