package handler

import (
	"testing"

	"linktex-backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestValidateProcesses(t *testing.T) {
	testCases := []struct {
		name           string
		processes      model.ProcessList
		productionCost float64
		wantErr        string
	}{
		{
			name: "valid list within cost",
			processes: model.ProcessList{
				{Name: "Cutting", Value: 1.5},
				{Name: "Sewing", Value: 3.0},
			},
			productionCost: 12.0,
		},
		{
			name:           "empty list is valid",
			processes:      model.ProcessList{},
			productionCost: 0,
		},
		{
			name: "values summing exactly to cost",
			processes: model.ProcessList{
				{Name: "Cutting", Value: 5.0},
				{Name: "Sewing", Value: 7.0},
			},
			productionCost: 12.0,
		},
		{
			name: "values exceeding cost",
			processes: model.ProcessList{
				{Name: "Cutting", Value: 8.0},
				{Name: "Sewing", Value: 8.0},
			},
			productionCost: 12.0,
			wantErr:        "cannot exceed the production cost",
		},
		{
			name:           "unnamed process",
			processes:      model.ProcessList{{Name: "", Value: 1.0}},
			productionCost: 12.0,
			wantErr:        "needs a name",
		},
		{
			name: "duplicate names",
			processes: model.ProcessList{
				{Name: "Sewing", Value: 1.0},
				{Name: "Sewing", Value: 2.0},
			},
			productionCost: 12.0,
			wantErr:        "must be unique",
		},
		{
			name:           "negative value",
			processes:      model.ProcessList{{Name: "Cutting", Value: -1.0}},
			productionCost: 12.0,
			wantErr:        "cannot be negative",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateProcesses(tc.processes, tc.productionCost)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}
