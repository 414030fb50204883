package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SizeDetail holds the quota bookkeeping for one size of a variant:
// the fixed total ordered at variant creation and the cumulative units
// completed per process.
type SizeDetail struct {
	Total              int            `json:"total"`
	ProcessesCompleted map[string]int `json:"processesCompleted"`
}

// UnmarshalJSON accepts both the current object shape and the legacy
// shape where a size was persisted as a bare number meaning "total with
// no process breakdown". The legacy shape is normalized on decode and
// never leaks past this boundary.
func (d *SizeDetail) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty size entry")
	}

	if trimmed[0] != '{' {
		// Legacy shape: bare number
		var total float64
		if err := json.Unmarshal(trimmed, &total); err != nil {
			return fmt.Errorf("invalid size entry: %w", err)
		}
		d.Total = int(total)
		d.ProcessesCompleted = map[string]int{}
		return nil
	}

	type sizeDetail SizeDetail
	var decoded sizeDetail
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return err
	}
	if decoded.ProcessesCompleted == nil {
		decoded.ProcessesCompleted = map[string]int{}
	}
	*d = SizeDetail(decoded)
	return nil
}

// Completed returns the units completed for the given process
func (d SizeDetail) Completed(process string) int {
	return d.ProcessesCompleted[process]
}

// Available returns the remaining quota for the given process, never negative
func (d SizeDetail) Available(process string) int {
	available := d.Total - d.Completed(process)
	if available < 0 {
		return 0
	}
	return available
}

// SizeMap maps a size label ("s", "m", "l", ...) to its quota detail.
// Stored as jsonb; decoding migrates legacy numeric entries.
type SizeMap map[string]SizeDetail

// Value implements driver.Valuer. Always writes the object shape, so any
// update persists the migrated form of a legacy entry.
func (m SizeMap) Value() (driver.Value, error) {
	if m == nil {
		m = SizeMap{}
	}
	for size, detail := range m {
		if detail.ProcessesCompleted == nil {
			detail.ProcessesCompleted = map[string]int{}
			m[size] = detail
		}
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *SizeMap) Scan(value interface{}) error {
	if value == nil {
		*m = SizeMap{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for SizeMap: %T", value)
	}

	return json.Unmarshal(data, m)
}

// TotalUnits returns the sum of all size totals
func (m SizeMap) TotalUnits() int {
	var sum int
	for _, detail := range m {
		sum += detail.Total
	}
	return sum
}

// ProductVariant is one production run ("batch") of a product in one color
type ProductVariant struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	ProductID         uint           `json:"product_id" gorm:"index;not null"`
	CompanyID         uint           `json:"company_id" gorm:"index;not null;comment:'Company this variant belongs to'"`
	Color             string         `json:"color" gorm:"type:varchar(100);not null"`
	Sizes             SizeMap        `json:"sizes" gorm:"type:jsonb"`
	StockInProduction int            `json:"stock_in_production" gorm:"not null;default:0"`
	StartDate         time.Time      `json:"start_date"`
	DueDate           *time.Time     `json:"due_date,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`
}
