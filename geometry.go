package geosql

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Kind identifies the shape held by a Geometry. The values match the WKB
// geometry type codes.
type Kind uint32

const (
	KindUnknown    Kind = 0
	KindPoint      Kind = 1
	KindLineString Kind = 2
	KindPolygon    Kind = 3
)

// String returns the GeoJSON type literal for the kind.
func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "Point"
	case KindLineString:
		return "LineString"
	case KindPolygon:
		return "Polygon"
	default:
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
}

// Geometry is an immutable Point, LineString or Polygon tagged with an SRID.
// The zero value has KindUnknown and is rejected by the codecs.
type Geometry struct {
	kind  Kind
	srid  int
	point orb.Point
	line  orb.LineString
	poly  orb.Polygon
}

// NewPoint returns a Point geometry.
func NewPoint(x, y float64, srid int) Geometry {
	return Geometry{kind: KindPoint, srid: srid, point: orb.Point{x, y}}
}

// NewLineString returns a LineString geometry holding a copy of ls.
func NewLineString(ls orb.LineString, srid int) Geometry {
	return Geometry{kind: KindLineString, srid: srid, line: ls.Clone()}
}

// NewPolygon returns a Polygon geometry holding a copy of p. The first ring is
// the exterior, the rest are holes.
func NewPolygon(p orb.Polygon, srid int) Geometry {
	return Geometry{kind: KindPolygon, srid: srid, poly: p.Clone()}
}

// FromOrb converts an orb geometry. orb.Ring is accepted as a single-ring
// polygon; every other type fails with ErrUnsupportedKind.
func FromOrb(g orb.Geometry, srid int) (Geometry, error) {
	switch v := g.(type) {
	case orb.Point:
		return NewPoint(v[0], v[1], srid), nil
	case orb.LineString:
		return NewLineString(v, srid), nil
	case orb.Ring:
		return NewPolygon(orb.Polygon{v}, srid), nil
	case orb.Polygon:
		return NewPolygon(v, srid), nil
	case nil:
		return Geometry{}, fmt.Errorf("%w: nil geometry", ErrUnsupportedKind)
	default:
		return Geometry{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, g.GeoJSONType())
	}
}

func (g Geometry) Kind() Kind { return g.kind }

// SRID returns the spatial reference identifier; 0 means unset.
func (g Geometry) SRID() int { return g.srid }

// WithSRID returns a copy of g carrying srid.
func (g Geometry) WithSRID(srid int) Geometry {
	g.srid = srid
	return g
}

// Point returns the coordinate of a Point geometry.
func (g Geometry) Point() (orb.Point, bool) {
	return g.point, g.kind == KindPoint
}

// LineString returns a copy of the coordinates of a LineString geometry.
func (g Geometry) LineString() (orb.LineString, bool) {
	if g.kind != KindLineString {
		return nil, false
	}
	return g.line.Clone(), true
}

// Polygon returns a copy of the rings of a Polygon geometry.
func (g Geometry) Polygon() (orb.Polygon, bool) {
	if g.kind != KindPolygon {
		return nil, false
	}
	return g.poly.Clone(), true
}

// Orb returns a copy of the geometry as an orb.Geometry, or nil for the zero value.
func (g Geometry) Orb() orb.Geometry {
	switch g.kind {
	case KindPoint:
		return g.point
	case KindLineString:
		return g.line.Clone()
	case KindPolygon:
		return g.poly.Clone()
	default:
		return nil
	}
}

// IsZero reports whether g is the zero Geometry.
func (g Geometry) IsZero() bool { return g.kind == KindUnknown }

// Equal reports whether both geometries have the same kind, SRID and coordinates.
func (g Geometry) Equal(o Geometry) bool {
	if g.kind != o.kind || g.srid != o.srid {
		return false
	}
	if g.kind == KindUnknown {
		return true
	}
	return orb.Equal(g.Orb(), o.Orb())
}

func (g Geometry) String() string {
	switch g.kind {
	case KindPoint:
		return fmt.Sprintf("Point(%v %v; srid=%d)", g.point[0], g.point[1], g.srid)
	case KindLineString:
		return fmt.Sprintf("LineString(%d points; srid=%d)", len(g.line), g.srid)
	case KindPolygon:
		return fmt.Sprintf("Polygon(%d rings; srid=%d)", len(g.poly), g.srid)
	default:
		return "Geometry(empty)"
	}
}

// Normalize returns a copy of g whose polygon rings are wound exterior
// counter-clockwise and interior clockwise. Other kinds are returned as is.
func (g Geometry) Normalize() Geometry {
	if g.kind != KindPolygon {
		return g
	}
	g.poly = normalizeWinding(g.poly.Clone())
	return g
}

// normalizeWinding reverses rings in place where the orientation is wrong.
func normalizeWinding(p orb.Polygon) orb.Polygon {
	for i, ring := range p {
		want := orb.CW
		if i == 0 {
			want = orb.CCW
		}
		if o := ring.Orientation(); o != 0 && o != want {
			ring.Reverse()
		}
	}
	return p
}

// closeRing returns r with its first coordinate appended when the ring is open.
func closeRing(r orb.Ring) orb.Ring {
	if len(r) == 0 || r.Closed() {
		return r
	}
	out := make(orb.Ring, len(r), len(r)+1)
	copy(out, r)
	return append(out, r[0])
}
