package fgb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
)

// column is the schema entry for one property name.
type column struct {
	name string
	typ  flattypes.ColumnType
}

// inferColumns derives a schema from every feature's properties. Columns are
// sorted by name. Integers and floats in the same column widen to Double.
func inferColumns(features []Feature) ([]column, error) {
	types := make(map[string]flattypes.ColumnType)
	for i, f := range features {
		for name, v := range f.Properties {
			if v == nil {
				continue
			}
			t, err := columnType(v)
			if err != nil {
				return nil, fmt.Errorf("feature %d property %q: %w", i, name, err)
			}
			prev, seen := types[name]
			if !seen {
				types[name] = t
				continue
			}
			merged, ok := promote(prev, t)
			if !ok {
				return nil, fmt.Errorf("feature %d property %q: %w: %s and %s mixed",
					i, name, ErrPropertyType, flattypes.EnumNamesColumnType[prev], flattypes.EnumNamesColumnType[t])
			}
			types[name] = merged
		}
	}

	cols := make([]column, 0, len(types))
	for name, t := range types {
		cols = append(cols, column{name: name, typ: t})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].name < cols[j].name })
	return cols, nil
}

func columnType(v any) (flattypes.ColumnType, error) {
	switch v.(type) {
	case bool:
		return flattypes.ColumnTypeBool, nil
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return flattypes.ColumnTypeLong, nil
	case float32, float64:
		return flattypes.ColumnTypeDouble, nil
	case string:
		return flattypes.ColumnTypeString, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrPropertyType, v)
	}
}

func promote(a, b flattypes.ColumnType) (flattypes.ColumnType, bool) {
	if a == b {
		return a, true
	}
	numeric := func(t flattypes.ColumnType) bool {
		return t == flattypes.ColumnTypeLong || t == flattypes.ColumnTypeDouble
	}
	if numeric(a) && numeric(b) {
		return flattypes.ColumnTypeDouble, true
	}
	return 0, false
}

func writerColumns(cols []column, builder *flatbuffers.Builder) []*writer.Column {
	out := make([]*writer.Column, 0, len(cols))
	for _, c := range cols {
		wc := writer.NewColumn(builder)
		wc.SetName(c.name)
		wc.SetTitle(c.name)
		wc.SetType(c.typ)
		wc.SetNullable(true)
		out = append(out, wc)
	}
	return out
}

// encodeProperties writes each non-nil property as a little-endian uint16
// column index followed by its value. Strings are prefixed with a uint32 length.
func encodeProperties(props map[string]any, cols []column) []byte {
	if len(props) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for i, c := range cols {
		v, ok := props[c.name]
		if !ok || v == nil {
			continue
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint16(i))
		switch c.typ {
		case flattypes.ColumnTypeBool:
			if v.(bool) {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		case flattypes.ColumnTypeLong:
			n, _ := toInt64(v)
			_ = binary.Write(&buf, binary.LittleEndian, n)
		case flattypes.ColumnTypeDouble:
			f, _ := toFloat64(v)
			_ = binary.Write(&buf, binary.LittleEndian, math.Float64bits(f))
		case flattypes.ColumnTypeString:
			s := v.(string)
			_ = binary.Write(&buf, binary.LittleEndian, uint32(len(s)))
			buf.WriteString(s)
		}
	}
	return buf.Bytes()
}

// decodeProperties reverses encodeProperties using the header's columns.
func decodeProperties(data []byte, header *flattypes.Header) (map[string]any, error) {
	props := make(map[string]any)
	for off := 0; off < len(data); {
		if off+2 > len(data) {
			return nil, fmt.Errorf("%w: truncated property index", ErrInvalidData)
		}
		idx := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2

		var col flattypes.Column
		if idx >= header.ColumnsLength() || !header.Columns(&col, idx) {
			return nil, fmt.Errorf("%w: property column %d not in schema", ErrInvalidData, idx)
		}
		v, n, err := readValue(data[off:], col.Type())
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", col.Name(), err)
		}
		props[string(col.Name())] = v
		off += n
	}
	return props, nil
}

func readValue(data []byte, t flattypes.ColumnType) (any, int, error) {
	need := func(n int) error {
		if len(data) < n {
			return fmt.Errorf("%w: need %d bytes, have %d", ErrInvalidData, n, len(data))
		}
		return nil
	}
	switch t {
	case flattypes.ColumnTypeBool:
		if err := need(1); err != nil {
			return nil, 0, err
		}
		return data[0] != 0, 1, nil
	case flattypes.ColumnTypeLong:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		return int64(binary.LittleEndian.Uint64(data)), 8, nil
	case flattypes.ColumnTypeDouble:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), 8, nil
	case flattypes.ColumnTypeString:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		n := int(binary.LittleEndian.Uint32(data))
		if err := need(4 + n); err != nil {
			return nil, 0, err
		}
		return string(data[4 : 4+n]), 4 + n, nil
	default:
		return nil, 0, fmt.Errorf("%w: column type %s", ErrPropertyType, flattypes.EnumNamesColumnType[t])
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
