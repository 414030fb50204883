package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessListTotalValue(t *testing.T) {
	processes := ProcessList{
		{Name: "Cutting", Value: 1.5},
		{Name: "Sewing", Value: 3.0},
		{Name: "Packing", Value: 0.5},
	}
	assert.Equal(t, 5.0, processes.TotalValue())
	assert.Equal(t, 0.0, ProcessList{}.TotalValue())
}

func TestProcessListFind(t *testing.T) {
	processes := ProcessList{
		{Name: "Cutting", Value: 1.5},
		{Name: "Sewing", Value: 3.0},
	}

	process, ok := processes.Find("Sewing")
	require.True(t, ok)
	assert.Equal(t, 3.0, process.Value)

	_, ok = processes.Find("Ironing")
	assert.False(t, ok)

	// Names are case sensitive
	_, ok = processes.Find("sewing")
	assert.False(t, ok)
}

func TestProcessListScan(t *testing.T) {
	var processes ProcessList
	err := processes.Scan([]byte(`[{"name": "Cutting", "value": 1.5}]`))
	require.NoError(t, err)
	require.Len(t, processes, 1)
	assert.Equal(t, "Cutting", processes[0].Name)

	require.NoError(t, processes.Scan(nil))
	assert.Empty(t, processes)

	assert.Error(t, processes.Scan(42))
}

func TestWorkRecordEarnings(t *testing.T) {
	record := WorkRecord{ProcessValue: 2.5, Quantity: 12}
	assert.Equal(t, 30.0, record.Earnings())
}
