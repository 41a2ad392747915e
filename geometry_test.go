package geosql

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromOrb(t *testing.T) {
	tests := []struct {
		name string
		in   orb.Geometry
		kind Kind
	}{
		{"point", orb.Point{1, 2}, KindPoint},
		{"line", orb.LineString{{0, 0}, {1, 1}}, KindLineString},
		{"ring", square(0, 0, 1), KindPolygon},
		{"polygon", orb.Polygon{square(0, 0, 1)}, KindPolygon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := FromOrb(tt.in, 3857)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, g.Kind())
			assert.Equal(t, 3857, g.SRID())
		})
	}

	for _, bad := range []orb.Geometry{
		nil,
		orb.MultiPoint{{1, 2}},
		orb.MultiPolygon{{square(0, 0, 1)}},
		orb.Collection{orb.Point{1, 2}},
		orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}},
	} {
		_, err := FromOrb(bad, 0)
		assert.ErrorIs(t, err, ErrUnsupportedKind)
	}
}

func TestGeometry_Immutable(t *testing.T) {
	ls := orb.LineString{{0, 0}, {1, 1}}
	g := NewLineString(ls, 0)
	ls[0] = orb.Point{9, 9}

	got, ok := g.LineString()
	require.True(t, ok)
	assert.Equal(t, orb.Point{0, 0}, got[0])

	got[1] = orb.Point{7, 7}
	again, _ := g.LineString()
	assert.Equal(t, orb.Point{1, 1}, again[1])
}

func TestGeometry_Accessors(t *testing.T) {
	g := NewPoint(1, 2, 0)
	_, ok := g.LineString()
	assert.False(t, ok)
	_, ok = g.Polygon()
	assert.False(t, ok)

	assert.Equal(t, 4326, g.WithSRID(4326).SRID())
	assert.Equal(t, 0, g.SRID())

	assert.Nil(t, Geometry{}.Orb())
	assert.True(t, Geometry{}.IsZero())
	assert.True(t, Geometry{}.Equal(Geometry{}))
	assert.False(t, g.Equal(g.WithSRID(4326)))
}

func TestGeometry_String(t *testing.T) {
	assert.Equal(t, "Point(1 2; srid=4326)", NewPoint(1, 2, 4326).String())
	assert.Equal(t, "LineString(2 points; srid=0)", NewLineString(orb.LineString{{0, 0}, {1, 1}}, 0).String())
	assert.Equal(t, "Polygon(1 rings; srid=0)", NewPolygon(orb.Polygon{square(0, 0, 1)}, 0).String())
	assert.Equal(t, "Geometry(empty)", Geometry{}.String())
	assert.Equal(t, "Kind(7)", Kind(7).String())
}

func TestNormalize(t *testing.T) {
	cw := orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}
	ccwHole := orb.Ring{{2, 2}, {4, 2}, {4, 4}, {2, 4}, {2, 2}}
	g := NewPolygon(orb.Polygon{cw, ccwHole}, 0)

	n := g.Normalize()
	p, _ := n.Polygon()
	assert.Equal(t, orb.CCW, p[0].Orientation())
	assert.Equal(t, orb.CW, p[1].Orientation())

	// the receiver keeps its winding
	orig, _ := g.Polygon()
	assert.Equal(t, orb.CW, orig[0].Orientation())

	pt := NewPoint(1, 2, 0)
	assert.True(t, pt.Equal(pt.Normalize()))
}

func TestValidate(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name string
		g    Geometry
		want error
	}{
		{"point", NewPoint(1, 2, 0), nil},
		{"nan point", NewPoint(nan, 2, 0), ErrNonFiniteCoordinate},
		{"inf point", NewPoint(1, math.Inf(1), 0), ErrNonFiniteCoordinate},
		{"line", NewLineString(orb.LineString{{0, 0}, {1, 1}}, 0), nil},
		{"short line", NewLineString(orb.LineString{{0, 0}}, 0), ErrInsufficientPoints},
		{"nan line", NewLineString(orb.LineString{{0, 0}, {nan, 1}}, 0), ErrNonFiniteCoordinate},
		{"polygon", NewPolygon(orb.Polygon{square(0, 0, 10)}, 0), nil},
		{"polygon with hole", NewPolygon(orb.Polygon{square(0, 0, 10), square(2, 2, 2)}, 0), nil},
		{"clockwise polygon", NewPolygon(orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}}, 0), nil},
		{"empty polygon", NewPolygon(orb.Polygon{}, 0), ErrInsufficientPoints},
		{"short ring", NewPolygon(orb.Polygon{{{0, 0}, {1, 0}, {0, 0}}}, 0), ErrInsufficientPoints},
		{"open ring", NewPolygon(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}, 0), ErrRingNotClosed},
		{"bow tie", NewPolygon(orb.Polygon{{{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0}}}, 0), ErrSelfIntersection},
		{"spike", NewPolygon(orb.Polygon{{{0, 0}, {4, 0}, {2, 0}, {2, 2}, {0, 0}}}, 0), ErrSelfIntersection},
		{"hole crosses shell", NewPolygon(orb.Polygon{square(0, 0, 10), square(8, 8, 4)}, 0), ErrSelfIntersection},
		{"hole outside", NewPolygon(orb.Polygon{square(0, 0, 10), square(20, 20, 2)}, 0), ErrHoleOutsideShell},
		{"hole touches shell vertex", NewPolygon(orb.Polygon{square(0, 0, 10), {{0, 0}, {2, 4}, {4, 4}, {0, 0}}}, 0), nil},
		{"hole touches shell edge", NewPolygon(orb.Polygon{square(0, 0, 10), {{5, 0}, {6, 2}, {4, 2}, {5, 0}}}, 0), nil},
		{"hole shares shell edge", NewPolygon(orb.Polygon{square(0, 0, 10), {{0, 0}, {5, 0}, {2, 2}, {0, 0}}}, 0), ErrSelfIntersection},
		{"hole touches shell twice", NewPolygon(orb.Polygon{square(0, 0, 10), {{0, 0}, {10, 10}, {5, 2}, {0, 0}}}, 0), ErrSelfIntersection},
		{"hole outside touching corner", NewPolygon(orb.Polygon{square(0, 0, 10), square(10, 10, 2)}, 0), ErrHoleOutsideShell},
		{"holes cross", NewPolygon(orb.Polygon{square(0, 0, 10), square(2, 2, 3), square(4, 4, 3)}, 0), ErrSelfIntersection},
		{"holes touch", NewPolygon(orb.Polygon{square(0, 0, 10), square(2, 2, 2), square(4, 4, 2)}, 0), nil},
		{"redundant vertex", NewPolygon(orb.Polygon{{{0, 0}, {2, 0}, {4, 0}, {4, 4}, {0, 0}}}, 0), nil},
		{"zero value", Geometry{}, ErrUnsupportedKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.g.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidate_ErrorContext(t *testing.T) {
	err := NewPolygon(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}, 0).Validate()

	var verr *GeometryValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindPolygon, verr.Kind)
	assert.Equal(t, "coordinates", verr.Field)
	assert.Equal(t, "geosql: invalid Polygon: ring 0 is not closed [field=coordinates]", err.Error())
}

func TestRingContact(t *testing.T) {
	shell := square(0, 0, 10)
	tests := []struct {
		name  string
		hole  orb.Ring
		touch *orb.Point
		ok    bool
	}{
		{"apart", square(2, 2, 2), nil, true},
		{"shared vertex", orb.Ring{{0, 0}, {2, 4}, {4, 4}, {0, 0}}, &orb.Point{0, 0}, true},
		{"vertex on edge", orb.Ring{{5, 0}, {6, 2}, {4, 2}, {5, 0}}, &orb.Point{5, 0}, true},
		{"proper crossing", square(8, 8, 4), nil, false},
		{"shared edge", orb.Ring{{0, 0}, {5, 0}, {2, 2}, {0, 0}}, nil, false},
		{"two contacts", orb.Ring{{0, 0}, {10, 10}, {5, 2}, {0, 0}}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			touch, ok := ringContact(shell, tt.hole)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.touch, touch)
			}
		})
	}
}
