// Package ledger is the authoritative bookkeeping of per-size, per-process
// completion quotas. It is the only place that mutates completion counters
// after a variant has been created: every accepted submission increments
// exactly one counter and appends exactly one immutable work record, in the
// same database transaction.
package ledger

import (
	"errors"
	"fmt"

	"linktex-backend/internal/model"
)

var (
	// ErrMissingCompany is returned when no company scope was provided
	ErrMissingCompany = errors.New("company id is required")

	// ErrBatchNotFound is returned when the selected variant no longer
	// exists, e.g. after a concurrent delete. Stale selections must not
	// be actionable.
	ErrBatchNotFound = errors.New("batch no longer available")

	// ErrProductNotFound is returned when the owning product cannot be resolved
	ErrProductNotFound = errors.New("product not found")

	// ErrUnknownProcess is returned when the submitted process is not part
	// of the owning product's process list
	ErrUnknownProcess = errors.New("process not defined for this product")

	// ErrUnknownSize is returned when the submitted size does not exist on
	// the variant or has no units ordered
	ErrUnknownSize = errors.New("size not available for this batch")

	// ErrInvalidQuantity is returned for non-positive quantities
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")

	// ErrIncompleteSubmission is returned when operator identity or
	// selection fields are missing
	ErrIncompleteSubmission = errors.New("operator, batch, process, size and quantity are required")
)

// QuotaExceededError is returned when a submission would push a counter
// past the fixed size total. It carries the remaining quota so callers can
// surface it.
type QuotaExceededError struct {
	Process   string
	Size      string
	Requested int
	Remaining int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quantity %d exceeds the %d units remaining for process %q in size %q",
		e.Requested, e.Remaining, e.Process, e.Size)
}

// Submission is one operator request to record completed work
type Submission struct {
	CompanyID    uint
	OperarioID   uint
	OperarioName string
	ProductID    uint
	VariantID    uint
	Process      string
	Size         string
	Quantity     int
}

// OpenBatch is a variant annotated with its owning product, with all size
// entries normalized to the detailed shape
type OpenBatch struct {
	Variant model.ProductVariant `json:"variant"`
	Product model.Product        `json:"product"`
}

// Available returns the remaining quota for the given size and process on
// this batch
func (b *OpenBatch) Available(size, process string) int {
	detail, ok := b.Variant.Sizes[size]
	if !ok {
		return 0
	}
	return detail.Available(process)
}

// Service coordinates quota validation and the atomic submission protocol
// on top of a Store.
type Service struct {
	store Store
}

// NewService creates a ledger service over the given store
func NewService(store Store) *Service {
	return &Service{store: store}
}

// OpenBatches lists every variant of the company that is open for work
// selection. Variants with no stock in production are excluded (but not
// deleted); sizes with a zero total stay in the map but are inert for
// selection. Legacy numeric size entries have already been normalized at
// the decode boundary, so listing twice with no intervening writes yields
// identical data.
func (s *Service) OpenBatches(companyID uint) ([]OpenBatch, error) {
	if companyID == 0 {
		return nil, ErrMissingCompany
	}

	products, err := s.store.ProductsByCompany(companyID)
	if err != nil {
		return nil, err
	}

	var batches []OpenBatch
	for _, product := range products {
		variants, err := s.store.VariantsByProduct(companyID, product.ID)
		if err != nil {
			return nil, err
		}
		for _, variant := range variants {
			if variant.StockInProduction <= 0 {
				continue
			}
			normalizeSizes(&variant)
			batches = append(batches, OpenBatch{Variant: variant, Product: product})
		}
	}

	return batches, nil
}

// Submit validates and applies one work submission. The read-modify-write
// of the completion counter runs against the freshest persisted state of
// the variant under an exclusive row lock, so two concurrent submissions
// whose combined quantity exceeds the quota cannot both succeed: the
// second revalidates against the first one's committed counts and is
// rejected. On success exactly one WorkRecord exists for the submission
// and the counter has advanced by exactly Quantity; on any error nothing
// was written.
func (s *Service) Submit(sub Submission) (*model.WorkRecord, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}

	product, err := s.store.Product(sub.CompanyID, sub.ProductID)
	if err != nil {
		return nil, err
	}

	process, ok := product.Processes.Find(sub.Process)
	if !ok {
		return nil, ErrUnknownProcess
	}

	return s.store.ApplySubmission(sub.CompanyID, sub.ProductID, sub.VariantID,
		func(variant *model.ProductVariant) (*model.WorkRecord, error) {
			normalizeSizes(variant)

			detail, ok := variant.Sizes[sub.Size]
			if !ok || detail.Total <= 0 {
				return nil, ErrUnknownSize
			}

			available := detail.Available(sub.Process)
			if sub.Quantity > available {
				return nil, &QuotaExceededError{
					Process:   sub.Process,
					Size:      sub.Size,
					Requested: sub.Quantity,
					Remaining: available,
				}
			}

			detail.ProcessesCompleted[sub.Process] += sub.Quantity
			variant.Sizes[sub.Size] = detail

			return &model.WorkRecord{
				CompanyID:    sub.CompanyID,
				OperarioID:   sub.OperarioID,
				OperarioName: sub.OperarioName,
				ProductID:    product.ID,
				ProductName:  product.Name,
				ProductRef:   product.Ref,
				VariantID:    variant.ID,
				VariantColor: variant.Color,
				ProcessName:  process.Name,
				ProcessValue: process.Value,
				Size:         sub.Size,
				Quantity:     sub.Quantity,
			}, nil
		})
}

func (sub Submission) validate() error {
	if sub.CompanyID == 0 {
		return ErrMissingCompany
	}
	if sub.OperarioID == 0 || sub.OperarioName == "" ||
		sub.ProductID == 0 || sub.VariantID == 0 ||
		sub.Process == "" || sub.Size == "" {
		return ErrIncompleteSubmission
	}
	if sub.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// normalizeSizes ensures every size entry carries a non-nil process map.
// Legacy numeric entries are already converted during jsonb decoding; this
// covers rows written before the processesCompleted field existed at all.
func normalizeSizes(variant *model.ProductVariant) {
	if variant.Sizes == nil {
		variant.Sizes = model.SizeMap{}
		return
	}
	for size, detail := range variant.Sizes {
		if detail.ProcessesCompleted == nil {
			detail.ProcessesCompleted = map[string]int{}
			variant.Sizes[size] = detail
		}
	}
}
