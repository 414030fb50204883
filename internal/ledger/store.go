package ledger

import (
	"errors"

	"linktex-backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistence boundary of the ledger
type Store interface {
	// Product resolves a product within a company
	Product(companyID, productID uint) (*model.Product, error)

	// ProductsByCompany lists all products of a company
	ProductsByCompany(companyID uint) ([]model.Product, error)

	// VariantsByProduct lists all variants of a product
	VariantsByProduct(companyID, productID uint) ([]model.ProductVariant, error)

	// ApplySubmission loads the variant with an exclusive lock, invokes
	// mutate on the fresh row, then persists the mutated sizes and the
	// returned work record in the same transaction. If mutate returns an
	// error nothing is written.
	ApplySubmission(companyID, productID, variantID uint,
		mutate func(variant *model.ProductVariant) (*model.WorkRecord, error)) (*model.WorkRecord, error)
}

// gormStore implements Store on a gorm database handle
type gormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm handle as a ledger Store
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Product(companyID, productID uint) (*model.Product, error) {
	var product model.Product
	err := s.db.Where("company_id = ?", companyID).First(&product, productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *gormStore) ProductsByCompany(companyID uint) ([]model.Product, error) {
	var products []model.Product
	if err := s.db.Where("company_id = ?", companyID).Order("created_at").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (s *gormStore) VariantsByProduct(companyID, productID uint) ([]model.ProductVariant, error) {
	var variants []model.ProductVariant
	err := s.db.Where("company_id = ? AND product_id = ?", companyID, productID).
		Order("created_at").Find(&variants).Error
	if err != nil {
		return nil, err
	}
	return variants, nil
}

// ApplySubmission runs the read-modify-write under SELECT ... FOR UPDATE so
// concurrent submissions against the same variant serialize on the row
// lock and each revalidates against the previous writer's committed state.
// The counter update and the work record insert commit together.
func (s *gormStore) ApplySubmission(companyID, productID, variantID uint,
	mutate func(variant *model.ProductVariant) (*model.WorkRecord, error)) (*model.WorkRecord, error) {

	var record *model.WorkRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var variant model.ProductVariant
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("company_id = ? AND product_id = ?", companyID, productID).
			First(&variant, variantID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBatchNotFound
			}
			return err
		}

		rec, err := mutate(&variant)
		if err != nil {
			return err
		}

		// Persisting the whole sizes column also rewrites any size entry
		// that was migrated from the legacy numeric shape.
		if err := tx.Model(&variant).Update("sizes", variant.Sizes).Error; err != nil {
			return err
		}

		if err := tx.Create(rec).Error; err != nil {
			return err
		}

		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
