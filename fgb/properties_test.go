package fgb

import (
	"testing"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnType(t *testing.T) {
	tests := []struct {
		value any
		want  flattypes.ColumnType
	}{
		{true, flattypes.ColumnTypeBool},
		{42, flattypes.ColumnTypeLong},
		{int32(42), flattypes.ColumnTypeLong},
		{int64(1) << 40, flattypes.ColumnTypeLong},
		{3.14, flattypes.ColumnTypeDouble},
		{float32(1.5), flattypes.ColumnTypeDouble},
		{"hello", flattypes.ColumnTypeString},
	}
	for _, tt := range tests {
		got, err := columnType(tt.value)
		require.NoError(t, err, "%T", tt.value)
		assert.Equal(t, tt.want, got, "%T", tt.value)
	}

	_, err := columnType(map[string]any{})
	assert.ErrorIs(t, err, ErrPropertyType)
	_, err = columnType(uint64(1))
	assert.ErrorIs(t, err, ErrPropertyType)
}

func TestPromote(t *testing.T) {
	got, ok := promote(flattypes.ColumnTypeLong, flattypes.ColumnTypeDouble)
	assert.True(t, ok)
	assert.Equal(t, flattypes.ColumnTypeDouble, got)

	got, ok = promote(flattypes.ColumnTypeString, flattypes.ColumnTypeString)
	assert.True(t, ok)
	assert.Equal(t, flattypes.ColumnTypeString, got)

	_, ok = promote(flattypes.ColumnTypeBool, flattypes.ColumnTypeLong)
	assert.False(t, ok)
}

func TestInferColumns_SortedAndWidened(t *testing.T) {
	cols, err := inferColumns([]Feature{
		{Properties: map[string]any{"z": "last", "a": 1}},
		{Properties: map[string]any{"a": 2.5, "m": true, "skip": nil}},
	})
	require.NoError(t, err)
	assert.Equal(t, []column{
		{name: "a", typ: flattypes.ColumnTypeDouble},
		{name: "m", typ: flattypes.ColumnTypeBool},
		{name: "z", typ: flattypes.ColumnTypeString},
	}, cols)
}

func TestEncodeProperties_Layout(t *testing.T) {
	cols := []column{
		{name: "flag", typ: flattypes.ColumnTypeBool},
		{name: "name", typ: flattypes.ColumnTypeString},
	}
	got := encodeProperties(map[string]any{"name": "ab", "flag": true}, cols)
	want := []byte{
		0, 0, 1, // flag = true
		1, 0, 2, 0, 0, 0, 'a', 'b', // name = "ab"
	}
	assert.Equal(t, want, got)

	assert.Nil(t, encodeProperties(nil, cols))
}

func TestReadValue_Truncated(t *testing.T) {
	_, _, err := readValue([]byte{1, 2, 3}, flattypes.ColumnTypeLong)
	assert.ErrorIs(t, err, ErrInvalidData)

	_, _, err = readValue([]byte{5, 0, 0, 0, 'a'}, flattypes.ColumnTypeString)
	assert.ErrorIs(t, err, ErrInvalidData)

	v, n, err := readValue([]byte{2, 0, 0, 0, 'h', 'i', 9}, flattypes.ColumnTypeString)
	require.NoError(t, err)
	assert.Equal(t, "hi", v)
	assert.Equal(t, 6, n)
}
