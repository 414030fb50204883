package handler

import (
	"net/http"
	"strconv"
	"time"

	"linktex-backend/internal/model"
	"linktex-backend/pkg/database"
	"linktex-backend/pkg/logger"
	"linktex-backend/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// companyVariantFromParam resolves the :id route param to a variant of the
// caller's company
func companyVariantFromParam(c echo.Context) (*model.ProductVariant, error) {
	companyID, _ := c.Get("company_id").(uint)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid variant id")
	}

	var variant model.ProductVariant
	result := database.GetDB().Where("company_id = ?", companyID).First(&variant, uint(id))
	if result.Error != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "variant not found")
	}
	return &variant, nil
}

// ListVariants returns all variants of one product
func ListVariants(c echo.Context) error {
	log := logger.FromContext(c)

	product, err := companyProductFromParam(c)
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var variants []model.ProductVariant
	if result := database.GetDB().Where("product_id = ?", product.ID).Order("created_at").Find(&variants); result.Error != nil {
		log.Error("Failed to list variants", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load variants"})
	}

	return c.JSON(http.StatusOK, echo.Map{"variants": variants, "count": len(variants)})
}

// CreateVariant opens a new production run of a product. The per-size
// totals are fixed here and never change afterwards; stock in production
// starts as their sum.
func CreateVariant(c echo.Context) error {
	log := logger.FromContext(c)

	product, err := companyProductFromParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Color     string         `json:"color"`
		Sizes     map[string]int `json:"sizes"`
		StartDate *time.Time     `json:"start_date"`
		DueDate   *time.Time     `json:"due_date"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse variant request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Color == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "color is required"})
	}
	if len(req.Sizes) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one size is required"})
	}

	sizes := model.SizeMap{}
	for size, total := range req.Sizes {
		if size == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "size labels cannot be empty"})
		}
		if total < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "size totals cannot be negative"})
		}
		sizes[size] = model.SizeDetail{Total: total, ProcessesCompleted: map[string]int{}}
	}

	startDate := time.Now()
	if req.StartDate != nil {
		startDate = *req.StartDate
	}

	variant := model.ProductVariant{
		ProductID:         product.ID,
		CompanyID:         product.CompanyID,
		Color:             req.Color,
		Sizes:             sizes,
		StockInProduction: sizes.TotalUnits(),
		StartDate:         startDate,
		DueDate:           req.DueDate,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&variant); result.Error != nil {
		log.Error("Failed to create variant", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create variant"})
	}

	log.Info("Variant created",
		zap.Uint("variant_id", variant.ID),
		zap.Uint("product_id", product.ID),
		zap.String("color", variant.Color),
		zap.Int("units", variant.StockInProduction))
	return c.JSON(http.StatusCreated, variant)
}

// UpdateVariant updates the batch metadata of a variant. Size totals and
// completion counters are off limits here: totals are fixed at creation
// and counters only move through work submissions.
func UpdateVariant(c echo.Context) error {
	log := logger.FromContext(c)

	variant, err := companyVariantFromParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Color             *string    `json:"color"`
		StockInProduction *int       `json:"stock_in_production"`
		StartDate         *time.Time `json:"start_date"`
		DueDate           *time.Time `json:"due_date"`
	}

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	updates := map[string]interface{}{}
	if req.Color != nil {
		if *req.Color == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "color cannot be empty"})
		}
		updates["color"] = *req.Color
	}
	if req.StockInProduction != nil {
		if *req.StockInProduction < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "stock cannot be negative"})
		}
		updates["stock_in_production"] = *req.StockInProduction
	}
	if req.StartDate != nil {
		updates["start_date"] = *req.StartDate
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}

	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := database.GetDB().Model(variant).Updates(updates); result.Error != nil {
		log.Error("Failed to update variant", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update variant"})
	}

	return c.JSON(http.StatusOK, variant)
}

// DeleteVariant closes a production run. In-flight submissions that
// selected this batch will fail their revalidation and record nothing.
// Completed work records stay.
func DeleteVariant(c echo.Context) error {
	log := logger.FromContext(c)

	variant, err := companyVariantFromParam(c)
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := database.GetDB().Delete(variant); result.Error != nil {
		log.Error("Failed to delete variant", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete variant"})
	}

	log.Info("Variant deleted",
		zap.Uint("variant_id", variant.ID),
		zap.Uint("product_id", variant.ProductID))
	return c.JSON(http.StatusOK, echo.Map{"message": "variant deleted"})
}
