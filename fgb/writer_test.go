package fgb

import (
	"bytes"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	geosql "github.com/tingold/orb-geosql"
)

var magic = []byte{0x66, 0x67, 0x62, 0x03, 0x66, 0x67, 0x62, 0x00}

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

func TestWrite_Kinds(t *testing.T) {
	cases := map[string][]Feature{
		"points": {
			{Geometry: geosql.NewPoint(1, 2, 0)},
			{Geometry: geosql.NewPoint(3, 4, 0)},
		},
		"linestrings": {
			{Geometry: geosql.NewLineString(orb.LineString{{0, 0}, {1, 1}, {2, 2}}, 0)},
			{Geometry: geosql.NewLineString(orb.LineString{{5, 5}, {6, 6}}, 0)},
		},
		"polygons": {
			{Geometry: geosql.NewPolygon(square(0, 0, 10), 0)},
			{Geometry: geosql.NewPolygon(square(20, 20, 10), 0)},
		},
		"mixed": {
			{Geometry: geosql.NewPoint(1, 2, 0)},
			{Geometry: geosql.NewLineString(orb.LineString{{0, 0}, {1, 1}}, 0)},
		},
	}

	for name, features := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, features, nil))
			require.Greater(t, buf.Len(), len(magic))
			assert.Equal(t, magic, buf.Bytes()[:len(magic)])
		})
	}
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, nil, nil)
	assert.ErrorIs(t, err, ErrNoFeatures)
}

func TestWrite_UnsupportedKind(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []Feature{{Geometry: geosql.NewPoint(1, 1, 0)}, {}}, nil)
	assert.True(t, errors.Is(err, geosql.ErrUnsupportedKind), "got %v", err)
}

func TestWrite_PropertyTypeConflict(t *testing.T) {
	features := []Feature{
		{Geometry: geosql.NewPoint(1, 1, 0), Properties: map[string]any{"code": "a"}},
		{Geometry: geosql.NewPoint(2, 2, 0), Properties: map[string]any{"code": 7}},
	}
	var buf bytes.Buffer
	err := Write(&buf, features, nil)
	assert.ErrorIs(t, err, ErrPropertyType)
}

func TestWrite_UnsupportedPropertyValue(t *testing.T) {
	features := []Feature{
		{Geometry: geosql.NewPoint(1, 1, 0), Properties: map[string]any{"tags": []string{"a"}}},
	}
	var buf bytes.Buffer
	err := Write(&buf, features, nil)
	assert.ErrorIs(t, err, ErrPropertyType)
}
