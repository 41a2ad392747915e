package geosql

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy/lineintersection"
	"github.com/twpayne/go-geom/xy/lineintersector"
)

// Minimum coordinate counts.
const (
	minLinePoints = 2
	minRingPoints = 4
)

// Validate checks the structural invariants of g: minimum point counts,
// finite coordinates, closed polygon rings, simple (non-self-intersecting)
// rings and holes lying inside the exterior. Ring winding is not checked;
// see Normalize.
func (g Geometry) Validate() error {
	switch g.kind {
	case KindPoint:
		if !finite(g.point) {
			return invalid(g.kind, "coordinates", "point is NaN or infinite", ErrNonFiniteCoordinate)
		}
		return nil
	case KindLineString:
		if len(g.line) < minLinePoints {
			return invalid(g.kind, "coordinates",
				fmt.Sprintf("must have at least %d points, got %d", minLinePoints, len(g.line)), ErrInsufficientPoints)
		}
		for i, p := range g.line {
			if !finite(p) {
				return invalid(g.kind, "coordinates", fmt.Sprintf("point %d is NaN or infinite", i), ErrNonFiniteCoordinate)
			}
		}
		return nil
	case KindPolygon:
		return validatePolygon(g.poly)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, g.kind)
	}
}

func validatePolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return invalid(KindPolygon, "coordinates", "polygon has no exterior ring", ErrInsufficientPoints)
	}
	for i, ring := range p {
		if len(ring) < minRingPoints {
			return invalid(KindPolygon, "coordinates",
				fmt.Sprintf("ring %d must have at least %d points, got %d", i, minRingPoints, len(ring)), ErrInsufficientPoints)
		}
		for j, pt := range ring {
			if !finite(pt) {
				return invalid(KindPolygon, "coordinates",
					fmt.Sprintf("ring %d point %d is NaN or infinite", i, j), ErrNonFiniteCoordinate)
			}
		}
		if !ring.Closed() {
			return invalid(KindPolygon, "coordinates", fmt.Sprintf("ring %d is not closed", i), ErrRingNotClosed)
		}
		if ringSelfIntersects(ring) {
			return invalid(KindPolygon, "coordinates", fmt.Sprintf("ring %d self-intersects", i), ErrSelfIntersection)
		}
	}

	shell := p[0]
	for i, hole := range p[1:] {
		touch, ok := ringContact(shell, hole)
		if !ok {
			return invalid(KindPolygon, "coordinates", fmt.Sprintf("ring %d crosses the exterior ring", i+1), ErrSelfIntersection)
		}
		if !planar.RingContains(shell, interiorVertex(hole, touch)) {
			return invalid(KindPolygon, "coordinates", fmt.Sprintf("ring %d lies outside the exterior ring", i+1), ErrHoleOutsideShell)
		}
		for j := 1; j <= i; j++ {
			if _, ok := ringContact(p[j], hole); !ok {
				return invalid(KindPolygon, "coordinates", fmt.Sprintf("ring %d crosses ring %d", i+1, j), ErrSelfIntersection)
			}
		}
	}
	return nil
}

func invalid(k Kind, field, reason string, err error) error {
	return &GeometryValidationError{Kind: k, Field: field, Reason: reason, Err: err}
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

var intersector = lineintersector.RobustLineIntersector{}

func coord(p orb.Point) geom.Coord { return geom.Coord{p[0], p[1]} }

// ringSelfIntersects reports whether any two non-adjacent edges of a closed
// ring touch, or two adjacent edges overlap.
func ringSelfIntersects(r orb.Ring) bool {
	n := len(r) - 1 // edge count of a closed ring
	if n < 3 {
		return true
	}
	for i := 0; i < n; i++ {
		a1, a2 := r[i], r[i+1]
		if a1 == a2 {
			continue
		}
		for j := i + 1; j < n; j++ {
			b1, b2 := r[j], r[j+1]
			if b1 == b2 {
				continue
			}
			res := lineintersector.LineIntersectsLine(intersector, coord(a1), coord(a2), coord(b1), coord(b2))
			if !res.HasIntersection() {
				continue
			}
			adjacent := j == i+1 || (i == 0 && j == n-1)
			if !adjacent || res.Type() == lineintersection.CollinearIntersection {
				return true
			}
		}
	}
	return false
}

// ringContact compares the edges of two rings. Rings may touch at a single
// point; ok is false when edges cross, overlap or meet at more than one point.
// The shared point, if any, is returned.
func ringContact(a, b orb.Ring) (touch *orb.Point, ok bool) {
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			a1, a2, b1, b2 := a[i], a[i+1], b[j], b[j+1]
			if a1 == a2 || b1 == b2 {
				continue
			}
			res := lineintersector.LineIntersectsLine(intersector, coord(a1), coord(a2), coord(b1), coord(b2))
			switch res.Type() {
			case lineintersection.NoIntersection:
				continue
			case lineintersection.CollinearIntersection:
				return nil, false
			}
			c := res.Intersection()[0]
			p := orb.Point{c.X(), c.Y()}
			if p != a1 && p != a2 && p != b1 && p != b2 {
				return nil, false
			}
			if touch != nil && *touch != p {
				return nil, false
			}
			touch = &p
		}
	}
	return touch, true
}

// interiorVertex returns the first vertex of r other than the touch point.
func interiorVertex(r orb.Ring, touch *orb.Point) orb.Point {
	for _, p := range r {
		if touch == nil || p != *touch {
			return p
		}
	}
	return r[0]
}
