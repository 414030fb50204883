package ledger

import (
	"testing"
	"time"

	"linktex-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store. ApplySubmission mimics the database
// behavior: mutate runs against the stored state and its result is only
// kept when mutate succeeds.
type memStore struct {
	products []model.Product
	variants []model.ProductVariant
	records  []model.WorkRecord
}

func (s *memStore) Product(companyID, productID uint) (*model.Product, error) {
	for i := range s.products {
		if s.products[i].CompanyID == companyID && s.products[i].ID == productID {
			product := s.products[i]
			return &product, nil
		}
	}
	return nil, ErrProductNotFound
}

func (s *memStore) ProductsByCompany(companyID uint) ([]model.Product, error) {
	var out []model.Product
	for _, product := range s.products {
		if product.CompanyID == companyID {
			out = append(out, product)
		}
	}
	return out, nil
}

func (s *memStore) VariantsByProduct(companyID, productID uint) ([]model.ProductVariant, error) {
	var out []model.ProductVariant
	for _, variant := range s.variants {
		if variant.CompanyID == companyID && variant.ProductID == productID {
			out = append(out, variant)
		}
	}
	return out, nil
}

func (s *memStore) ApplySubmission(companyID, productID, variantID uint,
	mutate func(variant *model.ProductVariant) (*model.WorkRecord, error)) (*model.WorkRecord, error) {

	for i := range s.variants {
		v := &s.variants[i]
		if v.CompanyID != companyID || v.ProductID != productID || v.ID != variantID {
			continue
		}

		working := *v
		working.Sizes = cloneSizes(v.Sizes)

		rec, err := mutate(&working)
		if err != nil {
			return nil, err
		}

		*v = working
		rec.CreatedAt = time.Now()
		s.records = append(s.records, *rec)
		return rec, nil
	}
	return nil, ErrBatchNotFound
}

func cloneSizes(sizes model.SizeMap) model.SizeMap {
	out := model.SizeMap{}
	for size, detail := range sizes {
		completed := map[string]int{}
		for process, n := range detail.ProcessesCompleted {
			completed[process] = n
		}
		out[size] = model.SizeDetail{Total: detail.Total, ProcessesCompleted: completed}
	}
	return out
}

func newTestStore() *memStore {
	return &memStore{
		products: []model.Product{
			{
				ID:             1,
				CompanyID:      10,
				Name:           "Basic Tee",
				Ref:            "TEE-001",
				ProductionCost: 12.0,
				Processes: model.ProcessList{
					{Name: "Cutting", Value: 1.5},
					{Name: "Sewing", Value: 3.0},
				},
			},
		},
		variants: []model.ProductVariant{
			{
				ID:        1,
				ProductID: 1,
				CompanyID: 10,
				Color:     "navy",
				Sizes: model.SizeMap{
					"m": {Total: 100, ProcessesCompleted: map[string]int{}},
					"s": {Total: 40, ProcessesCompleted: map[string]int{}},
				},
				StockInProduction: 140,
			},
		},
	}
}

func submission(quantity int) Submission {
	return Submission{
		CompanyID:    10,
		OperarioID:   7,
		OperarioName: "Ana Ruiz",
		ProductID:    1,
		VariantID:    1,
		Process:      "Sewing",
		Size:         "m",
		Quantity:     quantity,
	}
}

func TestSubmitAcceptsWithinQuota(t *testing.T) {
	store := newTestStore()
	svc := NewService(store)

	record, err := svc.Submit(submission(40))
	require.NoError(t, err)

	assert.Equal(t, 40, record.Quantity)
	assert.Equal(t, "Sewing", record.ProcessName)
	assert.Equal(t, 3.0, record.ProcessValue)
	assert.Equal(t, "Basic Tee", record.ProductName)
	assert.Equal(t, "TEE-001", record.ProductRef)
	assert.Equal(t, "navy", record.VariantColor)
	assert.Equal(t, "Ana Ruiz", record.OperarioName)
	assert.Equal(t, 120.0, record.Earnings())

	// Counter advanced by exactly the quantity, other sizes untouched
	assert.Equal(t, 40, store.variants[0].Sizes["m"].Completed("Sewing"))
	assert.Equal(t, 60, store.variants[0].Sizes["m"].Available("Sewing"))
	assert.Equal(t, 0, store.variants[0].Sizes["s"].Completed("Sewing"))
	assert.Len(t, store.records, 1)
}

func TestSubmitRejectsBeyondQuota(t *testing.T) {
	store := newTestStore()
	svc := NewService(store)

	_, err := svc.Submit(submission(40))
	require.NoError(t, err)

	// 70 > 60 remaining: rejected, nothing written
	_, err = svc.Submit(submission(70))
	var quotaErr *QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 70, quotaErr.Requested)
	assert.Equal(t, 60, quotaErr.Remaining)
	assert.Equal(t, "Sewing", quotaErr.Process)
	assert.Equal(t, "m", quotaErr.Size)

	assert.Equal(t, 40, store.variants[0].Sizes["m"].Completed("Sewing"))
	assert.Len(t, store.records, 1)

	// Exactly the remaining quota is still fine
	_, err = svc.Submit(submission(60))
	require.NoError(t, err)
	assert.Equal(t, 0, store.variants[0].Sizes["m"].Available("Sewing"))
}

func TestSubmitRevalidatesAgainstCommittedState(t *testing.T) {
	// Two submissions race for the same quota. The store serializes them,
	// so the second one sees the first one's committed counts and only one
	// can win the last 100 units.
	store := newTestStore()
	svc := NewService(store)

	_, err := svc.Submit(submission(80))
	require.NoError(t, err)

	_, err = svc.Submit(submission(80))
	var quotaErr *QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 20, quotaErr.Remaining)
	assert.Len(t, store.records, 1)
}

func TestSubmitProcessesAreIndependent(t *testing.T) {
	store := newTestStore()
	svc := NewService(store)

	_, err := svc.Submit(submission(100))
	require.NoError(t, err)

	// Sewing is exhausted for size m but Cutting still has its full quota
	cutting := submission(100)
	cutting.Process = "Cutting"
	_, err = svc.Submit(cutting)
	require.NoError(t, err)

	detail := store.variants[0].Sizes["m"]
	assert.Equal(t, 100, detail.Completed("Sewing"))
	assert.Equal(t, 100, detail.Completed("Cutting"))
}

func TestSubmitValidation(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Submission)
		wantErr error
	}{
		{
			name:    "missing company",
			mutate:  func(s *Submission) { s.CompanyID = 0 },
			wantErr: ErrMissingCompany,
		},
		{
			name:    "missing operator",
			mutate:  func(s *Submission) { s.OperarioID = 0 },
			wantErr: ErrIncompleteSubmission,
		},
		{
			name:    "missing operator name",
			mutate:  func(s *Submission) { s.OperarioName = "" },
			wantErr: ErrIncompleteSubmission,
		},
		{
			name:    "missing process",
			mutate:  func(s *Submission) { s.Process = "" },
			wantErr: ErrIncompleteSubmission,
		},
		{
			name:    "zero quantity",
			mutate:  func(s *Submission) { s.Quantity = 0 },
			wantErr: ErrInvalidQuantity,
		},
		{
			name:    "negative quantity",
			mutate:  func(s *Submission) { s.Quantity = -5 },
			wantErr: ErrInvalidQuantity,
		},
		{
			name:    "unknown process",
			mutate:  func(s *Submission) { s.Process = "Ironing" },
			wantErr: ErrUnknownProcess,
		},
		{
			name:    "unknown size",
			mutate:  func(s *Submission) { s.Size = "xxl" },
			wantErr: ErrUnknownSize,
		},
		{
			name:    "unknown product",
			mutate:  func(s *Submission) { s.ProductID = 99 },
			wantErr: ErrProductNotFound,
		},
		{
			name:    "deleted variant",
			mutate:  func(s *Submission) { s.VariantID = 99 },
			wantErr: ErrBatchNotFound,
		},
		{
			name:    "wrong company",
			mutate:  func(s *Submission) { s.CompanyID = 11 },
			wantErr: ErrProductNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore()
			svc := NewService(store)

			sub := submission(10)
			tc.mutate(&sub)

			_, err := svc.Submit(sub)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, store.records, "rejected submission must write nothing")
			assert.Equal(t, 0, store.variants[0].Sizes["m"].Completed("Sewing"))
		})
	}
}

func TestSubmitMigratesLegacySizeOnFirstWrite(t *testing.T) {
	// A variant persisted before the per-process breakdown existed carries
	// a size with a nil process map. The first submission normalizes it
	// and counts against the preserved total.
	store := newTestStore()
	store.variants[0].Sizes["s"] = model.SizeDetail{Total: 50, ProcessesCompleted: nil}
	svc := NewService(store)

	sub := submission(10)
	sub.Size = "s"
	_, err := svc.Submit(sub)
	require.NoError(t, err)

	detail := store.variants[0].Sizes["s"]
	assert.Equal(t, 50, detail.Total)
	assert.Equal(t, map[string]int{"Sewing": 10}, detail.ProcessesCompleted)
}

func TestSubmitRejectsZeroTotalSize(t *testing.T) {
	store := newTestStore()
	store.variants[0].Sizes["xl"] = model.SizeDetail{Total: 0, ProcessesCompleted: map[string]int{}}
	svc := NewService(store)

	sub := submission(1)
	sub.Size = "xl"
	_, err := svc.Submit(sub)
	assert.ErrorIs(t, err, ErrUnknownSize)
}

func TestOpenBatches(t *testing.T) {
	store := newTestStore()
	store.variants = append(store.variants, model.ProductVariant{
		ID:                2,
		ProductID:         1,
		CompanyID:         10,
		Color:             "white",
		Sizes:             model.SizeMap{"m": {Total: 20}},
		StockInProduction: 0, // finished run, not selectable
	})
	svc := NewService(store)

	batches, err := svc.OpenBatches(10)
	require.NoError(t, err)
	require.Len(t, batches, 1)

	batch := batches[0]
	assert.Equal(t, uint(1), batch.Variant.ID)
	assert.Equal(t, "TEE-001", batch.Product.Ref)
	assert.Equal(t, 100, batch.Available("m", "Sewing"))
	assert.Equal(t, 0, batch.Available("xl", "Sewing"))
}

func TestOpenBatchesRequiresCompany(t *testing.T) {
	svc := NewService(newTestStore())

	_, err := svc.OpenBatches(0)
	assert.ErrorIs(t, err, ErrMissingCompany)
}

func TestOpenBatchesIsStableAcrossReads(t *testing.T) {
	store := newTestStore()
	store.variants[0].Sizes["s"] = model.SizeDetail{Total: 30, ProcessesCompleted: nil}
	svc := NewService(store)

	first, err := svc.OpenBatches(10)
	require.NoError(t, err)
	second, err := svc.OpenBatches(10)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotNil(t, second[0].Variant.Sizes["s"].ProcessesCompleted)
}
