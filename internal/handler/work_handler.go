package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"linktex-backend/internal/ledger"
	"linktex-backend/internal/model"
	"linktex-backend/pkg/database"
	"linktex-backend/pkg/logger"
	"linktex-backend/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func ledgerService() *ledger.Service {
	return ledger.NewService(ledger.NewGormStore(database.GetDB()))
}

// ListOpenBatches returns every batch of the company that is open for work
// selection, for the operator's cascading product/variant/process picker
func ListOpenBatches(c echo.Context) error {
	log := logger.FromContext(c)
	companyID, _ := c.Get("company_id").(uint)

	defer prometheus.TrackDBOperation("query")(time.Now())
	batches, err := ledgerService().OpenBatches(companyID)
	if err != nil {
		if errors.Is(err, ledger.ErrMissingCompany) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "company context required"})
		}
		log.Error("Failed to list open batches", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load open batches"})
	}

	prometheus.SetOpenBatches(companyID, len(batches))

	return c.JSON(http.StatusOK, echo.Map{"batches": batches, "count": len(batches)})
}

// SubmitWork records completed work against a batch. The quota check and
// the counter update run atomically against the freshest persisted state,
// so a submission that raced another one is revalidated and rejected
// instead of overshooting the size total.
func SubmitWork(c echo.Context) error {
	log := logger.FromContext(c)
	companyID, _ := c.Get("company_id").(uint)

	operario, err := currentUser(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint   `json:"product_id"`
		VariantID uint   `json:"variant_id"`
		Process   string `json:"process"`
		Size      string `json:"size"`
		Quantity  int    `json:"quantity"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse work submission", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	sub := ledger.Submission{
		CompanyID:    companyID,
		OperarioID:   operario.ID,
		OperarioName: operario.DisplayName(),
		ProductID:    req.ProductID,
		VariantID:    req.VariantID,
		Process:      req.Process,
		Size:         req.Size,
		Quantity:     req.Quantity,
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	record, err := ledgerService().Submit(sub)
	if err != nil {
		var quotaErr *ledger.QuotaExceededError
		switch {
		case errors.As(err, &quotaErr):
			prometheus.QuotaRejectionCounter.Inc()
			prometheus.RecordSubmission("rejected", 0)
			log.Warn("Submission exceeded quota",
				zap.Uint("operario_id", operario.ID),
				zap.Uint("variant_id", req.VariantID),
				zap.String("process", quotaErr.Process),
				zap.String("size", quotaErr.Size),
				zap.Int("requested", quotaErr.Requested),
				zap.Int("remaining", quotaErr.Remaining))
			return c.JSON(http.StatusConflict, echo.Map{
				"error":     quotaErr.Error(),
				"remaining": quotaErr.Remaining,
			})
		case errors.Is(err, ledger.ErrBatchNotFound), errors.Is(err, ledger.ErrProductNotFound):
			prometheus.RecordSubmission("rejected", 0)
			return c.JSON(http.StatusNotFound, echo.Map{"error": "the selected batch is no longer available"})
		case errors.Is(err, ledger.ErrUnknownProcess), errors.Is(err, ledger.ErrUnknownSize):
			prometheus.RecordSubmission("rejected", 0)
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
		case errors.Is(err, ledger.ErrInvalidQuantity), errors.Is(err, ledger.ErrIncompleteSubmission):
			prometheus.RecordSubmission("rejected", 0)
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		default:
			prometheus.RecordSubmission("error", 0)
			log.Error("Failed to apply work submission", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record work"})
		}
	}

	prometheus.RecordSubmission("accepted", record.Quantity)
	log.Info("Work recorded",
		zap.Uint("record_id", record.ID),
		zap.Uint("operario_id", record.OperarioID),
		zap.String("process", record.ProcessName),
		zap.String("size", record.Size),
		zap.Int("quantity", record.Quantity))
	return c.JSON(http.StatusCreated, record)
}

// workRecordQuery builds the company-scoped record query with the optional
// operario_id, product_id, from and to filters from the request
func workRecordQuery(c echo.Context, companyID uint) *gorm.DB {
	db := database.GetDB().Model(&model.WorkRecord{}).Where("company_id = ?", companyID)

	if v := c.QueryParam("operario_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			db = db.Where("operario_id = ?", uint(id))
		}
	}
	if v := c.QueryParam("product_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			db = db.Where("product_id = ?", uint(id))
		}
	}
	if v := c.QueryParam("from"); v != "" {
		if from, err := time.Parse("2006-01-02", v); err == nil {
			db = db.Where("created_at >= ?", from)
		}
	}
	if v := c.QueryParam("to"); v != "" {
		if to, err := time.Parse("2006-01-02", v); err == nil {
			// Inclusive end date
			db = db.Where("created_at < ?", to.AddDate(0, 0, 1))
		}
	}

	return db
}

// ListWorkRecords returns the company's work history with optional
// filters. Admin only; operators use ListMyWorkRecords.
func ListWorkRecords(c echo.Context) error {
	log := logger.FromContext(c)
	companyID, _ := c.Get("company_id").(uint)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var records []model.WorkRecord
	if result := workRecordQuery(c, companyID).Order("created_at desc").Find(&records); result.Error != nil {
		log.Error("Failed to list work records", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load work records"})
	}

	var totalUnits int
	var totalEarnings float64
	for i := range records {
		totalUnits += records[i].Quantity
		totalEarnings += records[i].Earnings()
	}

	return c.JSON(http.StatusOK, echo.Map{
		"records":        records,
		"count":          len(records),
		"total_units":    totalUnits,
		"total_earnings": totalEarnings,
	})
}

// ListMyWorkRecords returns the authenticated operator's own history
func ListMyWorkRecords(c echo.Context) error {
	log := logger.FromContext(c)
	companyID, _ := c.Get("company_id").(uint)
	userID, _ := c.Get("user_id").(uint)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var records []model.WorkRecord
	result := database.GetDB().
		Where("company_id = ? AND operario_id = ?", companyID, userID).
		Order("created_at desc").
		Find(&records)
	if result.Error != nil {
		log.Error("Failed to list own work records", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load work records"})
	}

	var totalUnits int
	var totalEarnings float64
	for i := range records {
		totalUnits += records[i].Quantity
		totalEarnings += records[i].Earnings()
	}

	return c.JSON(http.StatusOK, echo.Map{
		"records":        records,
		"count":          len(records),
		"total_units":    totalUnits,
		"total_earnings": totalEarnings,
	})
}

// ExportWorkRecords streams the filtered work history as an Excel
// workbook. Admin only.
func ExportWorkRecords(c echo.Context) error {
	log := logger.FromContext(c)
	companyID, _ := c.Get("company_id").(uint)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var records []model.WorkRecord
	if result := workRecordQuery(c, companyID).Order("created_at").Find(&records); result.Error != nil {
		log.Error("Failed to load work records for export", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to export work records"})
	}

	data, err := buildWorkRecordsWorkbook(records)
	if err != nil {
		log.Error("Failed to build export workbook", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to export work records"})
	}

	filename := fmt.Sprintf("work-records-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

var workbookHeaders = []string{
	"Date", "Operator", "Product", "Ref", "Color", "Process", "Size", "Quantity", "Unit Value", "Earnings",
}

func buildWorkRecordsWorkbook(records []model.WorkRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Work Records"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	for i, header := range workbookHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, err
		}
	}

	for row, record := range records {
		values := []interface{}{
			record.CreatedAt.Format("2006-01-02 15:04"),
			record.OperarioName,
			record.ProductName,
			record.ProductRef,
			record.VariantColor,
			record.ProcessName,
			record.Size,
			record.Quantity,
			record.ProcessValue,
			record.Earnings(),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", "J", 16); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
