package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"linktex-backend/internal/model"
	"linktex-backend/pkg/database"
	"linktex-backend/pkg/logger"
	"linktex-backend/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// companyProductFromParam resolves the :id route param to a product of the
// caller's company
func companyProductFromParam(c echo.Context) (*model.Product, error) {
	companyID, _ := c.Get("company_id").(uint)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var product model.Product
	result := database.GetDB().Where("company_id = ?", companyID).First(&product, uint(id))
	if result.Error != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	return &product, nil
}

// ListProducts returns all products of the caller's company
func ListProducts(c echo.Context) error {
	log := logger.FromContext(c)
	companyID, _ := c.Get("company_id").(uint)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var products []model.Product
	if result := database.GetDB().Where("company_id = ?", companyID).Order("ref").Find(&products); result.Error != nil {
		log.Error("Failed to list products", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load products"})
	}

	return c.JSON(http.StatusOK, echo.Map{"products": products, "count": len(products)})
}

// GetProduct returns one product with its variants
func GetProduct(c echo.Context) error {
	log := logger.FromContext(c)

	product, err := companyProductFromParam(c)
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var variants []model.ProductVariant
	if result := database.GetDB().Where("product_id = ?", product.ID).Order("created_at").Find(&variants); result.Error != nil {
		log.Error("Failed to load variants", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load product"})
	}

	return c.JSON(http.StatusOK, echo.Map{"product": product, "variants": variants})
}

// CreateProduct creates a new product. The reference must be unique within
// the company.
func CreateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	companyID, _ := c.Get("company_id").(uint)

	var req struct {
		Name           string            `json:"name"`
		Ref            string            `json:"ref"`
		ProductionCost float64           `json:"production_cost"`
		Processes      model.ProcessList `json:"processes"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse product request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Name == "" || req.Ref == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and ref are required"})
	}
	if req.ProductionCost < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "production cost cannot be negative"})
	}
	if err := validateProcesses(req.Processes, req.ProductionCost); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	}

	db := database.GetDB()

	var existing model.Product
	if result := db.Where("company_id = ? AND ref = ?", companyID, req.Ref).First(&existing); result.Error == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "a product with this reference already exists"})
	} else if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		log.Error("Failed to check product reference", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create product"})
	}

	product := model.Product{
		CompanyID:      companyID,
		Name:           req.Name,
		Ref:            req.Ref,
		ProductionCost: req.ProductionCost,
		Processes:      req.Processes,
	}
	if product.Processes == nil {
		product.Processes = model.ProcessList{}
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := db.Create(&product); result.Error != nil {
		log.Error("Failed to create product", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create product"})
	}

	log.Info("Product created",
		zap.Uint("product_id", product.ID),
		zap.String("ref", product.Ref))
	return c.JSON(http.StatusCreated, product)
}

// UpdateProduct updates a product's name, reference and production cost
func UpdateProduct(c echo.Context) error {
	log := logger.FromContext(c)

	product, err := companyProductFromParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Name           *string  `json:"name"`
		Ref            *string  `json:"ref"`
		ProductionCost *float64 `json:"production_cost"`
	}

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name cannot be empty"})
		}
		updates["name"] = *req.Name
	}
	if req.Ref != nil && *req.Ref != product.Ref {
		if *req.Ref == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "ref cannot be empty"})
		}
		var existing model.Product
		if result := database.GetDB().Where("company_id = ? AND ref = ?", product.CompanyID, *req.Ref).First(&existing); result.Error == nil {
			return c.JSON(http.StatusConflict, echo.Map{"error": "a product with this reference already exists"})
		}
		updates["ref"] = *req.Ref
	}
	if req.ProductionCost != nil {
		if *req.ProductionCost < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "production cost cannot be negative"})
		}
		if product.Processes.TotalValue() > *req.ProductionCost {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "production cost cannot drop below the sum of process values"})
		}
		updates["production_cost"] = *req.ProductionCost
	}

	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := database.GetDB().Model(product).Updates(updates); result.Error != nil {
		log.Error("Failed to update product", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update product"})
	}

	return c.JSON(http.StatusOK, product)
}

// UpdateProcesses replaces the product's process list. Existing work
// records keep the process value they were paid at.
func UpdateProcesses(c echo.Context) error {
	log := logger.FromContext(c)

	product, err := companyProductFromParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Processes model.ProcessList `json:"processes"`
	}

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := validateProcesses(req.Processes, product.ProductionCost); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	}
	if req.Processes == nil {
		req.Processes = model.ProcessList{}
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := database.GetDB().Model(product).Update("processes", req.Processes); result.Error != nil {
		log.Error("Failed to update processes", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update processes"})
	}

	log.Info("Processes updated",
		zap.Uint("product_id", product.ID),
		zap.Int("process_count", len(req.Processes)))
	return c.JSON(http.StatusOK, product)
}

// DeleteProduct removes a product and all of its variants in one
// transaction. Work records reference the product by copied name and ref
// and are left untouched.
func DeleteProduct(c echo.Context) error {
	log := logger.FromContext(c)

	product, err := companyProductFromParam(c)
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	txErr := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if result := tx.Where("product_id = ?", product.ID).Delete(&model.ProductVariant{}); result.Error != nil {
			return result.Error
		}
		return tx.Delete(product).Error
	})
	if txErr != nil {
		log.Error("Failed to delete product", zap.Error(txErr))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete product"})
	}

	log.Info("Product deleted",
		zap.Uint("product_id", product.ID),
		zap.String("ref", product.Ref))
	return c.JSON(http.StatusOK, echo.Map{"message": "product deleted"})
}

// validateProcesses checks process names are non-empty and distinct and
// that the summed per-unit values fit inside the production cost.
func validateProcesses(processes model.ProcessList, productionCost float64) error {
	seen := map[string]bool{}
	for _, proc := range processes {
		if proc.Name == "" {
			return errors.New("every process needs a name")
		}
		if proc.Value < 0 {
			return errors.New("process values cannot be negative")
		}
		if seen[proc.Name] {
			return errors.New("process names must be unique")
		}
		seen[proc.Name] = true
	}
	if processes.TotalValue() > productionCost {
		return errors.New("the sum of process values cannot exceed the production cost")
	}
	return nil
}
