package handler

import (
	"bytes"
	"testing"
	"time"

	"linktex-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBuildWorkRecordsWorkbook(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	records := []model.WorkRecord{
		{
			OperarioName: "Ana Ruiz",
			ProductName:  "Basic Tee",
			ProductRef:   "TEE-001",
			VariantColor: "navy",
			ProcessName:  "Sewing",
			ProcessValue: 3.0,
			Size:         "m",
			Quantity:     40,
			CreatedAt:    created,
		},
		{
			OperarioName: "Luis Mora",
			ProductName:  "Basic Tee",
			ProductRef:   "TEE-001",
			VariantColor: "white",
			ProcessName:  "Cutting",
			ProcessValue: 1.5,
			Size:         "s",
			Quantity:     10,
			CreatedAt:    created.Add(time.Hour),
		},
	}

	data, err := buildWorkRecordsWorkbook(records)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Work Records")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, workbookHeaders, rows[0])
	assert.Equal(t, "Ana Ruiz", rows[1][1])
	assert.Equal(t, "TEE-001", rows[1][3])
	assert.Equal(t, "Sewing", rows[1][5])
	assert.Equal(t, "40", rows[1][7])
	assert.Equal(t, "120", rows[1][9]) // 40 units at 3.0 each
	assert.Equal(t, "Luis Mora", rows[2][1])
	assert.Equal(t, "15", rows[2][9])
}

func TestBuildWorkRecordsWorkbookEmpty(t *testing.T) {
	data, err := buildWorkRecordsWorkbook(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Work Records")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, workbookHeaders, rows[0])
}
