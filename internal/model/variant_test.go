package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeMapScanLegacyNumbers(t *testing.T) {
	// Rows written before the per-process breakdown stored each size as a
	// bare count. Decoding converts them to the detailed shape with the
	// count preserved as the fixed total.
	var sizes SizeMap
	err := sizes.Scan([]byte(`{"s": 50, "m": 120, "l": 0}`))
	require.NoError(t, err)

	assert.Equal(t, SizeDetail{Total: 50, ProcessesCompleted: map[string]int{}}, sizes["s"])
	assert.Equal(t, SizeDetail{Total: 120, ProcessesCompleted: map[string]int{}}, sizes["m"])
	assert.Equal(t, SizeDetail{Total: 0, ProcessesCompleted: map[string]int{}}, sizes["l"])
}

func TestSizeMapScanObjectShape(t *testing.T) {
	var sizes SizeMap
	err := sizes.Scan([]byte(`{"m": {"total": 100, "processesCompleted": {"Sewing": 40}}}`))
	require.NoError(t, err)

	assert.Equal(t, 100, sizes["m"].Total)
	assert.Equal(t, 40, sizes["m"].Completed("Sewing"))
	assert.Equal(t, 60, sizes["m"].Available("Sewing"))
}

func TestSizeMapScanMixedShapes(t *testing.T) {
	// A partially migrated row can hold both shapes side by side
	var sizes SizeMap
	err := sizes.Scan([]byte(`{"s": 30, "m": {"total": 100, "processesCompleted": {"Cutting": 10}}}`))
	require.NoError(t, err)

	assert.Equal(t, 30, sizes["s"].Total)
	assert.Empty(t, sizes["s"].ProcessesCompleted)
	assert.Equal(t, 10, sizes["m"].Completed("Cutting"))
}

func TestSizeMapScanMissingProcessMap(t *testing.T) {
	var sizes SizeMap
	err := sizes.Scan([]byte(`{"m": {"total": 100}}`))
	require.NoError(t, err)

	require.NotNil(t, sizes["m"].ProcessesCompleted)
	assert.Equal(t, 100, sizes["m"].Available("Sewing"))
}

func TestSizeMapScanNilAndString(t *testing.T) {
	var sizes SizeMap
	require.NoError(t, sizes.Scan(nil))
	assert.Empty(t, sizes)

	require.NoError(t, sizes.Scan(`{"s": 10}`))
	assert.Equal(t, 10, sizes["s"].Total)

	assert.Error(t, sizes.Scan(42))
}

func TestSizeMapValueWritesMigratedShape(t *testing.T) {
	// Once a legacy row has been decoded, persisting it writes the object
	// shape: the migration sticks.
	var sizes SizeMap
	require.NoError(t, sizes.Scan([]byte(`{"s": 50}`)))

	value, err := sizes.Value()
	require.NoError(t, err)

	var persisted map[string]struct {
		Total              int            `json:"total"`
		ProcessesCompleted map[string]int `json:"processesCompleted"`
	}
	require.NoError(t, json.Unmarshal(value.([]byte), &persisted))
	assert.Equal(t, 50, persisted["s"].Total)
	assert.NotNil(t, persisted["s"].ProcessesCompleted)
}

func TestSizeMapValueNormalizesNilProcessMaps(t *testing.T) {
	sizes := SizeMap{"m": {Total: 20, ProcessesCompleted: nil}}

	value, err := sizes.Value()
	require.NoError(t, err)
	assert.Contains(t, string(value.([]byte)), `"processesCompleted":{}`)
}

func TestSizeDetailAvailableNeverNegative(t *testing.T) {
	detail := SizeDetail{Total: 10, ProcessesCompleted: map[string]int{"Sewing": 15}}
	assert.Equal(t, 0, detail.Available("Sewing"))
}

func TestSizeMapTotalUnits(t *testing.T) {
	sizes := SizeMap{
		"s": {Total: 40},
		"m": {Total: 100},
		"l": {Total: 0},
	}
	assert.Equal(t, 140, sizes.TotalUnits())
	assert.Equal(t, 0, SizeMap{}.TotalUnits())
}
