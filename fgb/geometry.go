package fgb

import (
	"fmt"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
	geosql "github.com/tingold/orb-geosql"
)

func fgbGeometryType(k geosql.Kind) flattypes.GeometryType {
	switch k {
	case geosql.KindPoint:
		return flattypes.GeometryTypePoint
	case geosql.KindLineString:
		return flattypes.GeometryTypeLineString
	case geosql.KindPolygon:
		return flattypes.GeometryTypePolygon
	default:
		return flattypes.GeometryTypeUnknown
	}
}

// geometryToFGB builds the FlatGeobuf geometry table for g.
func geometryToFGB(g geosql.Geometry, builder *flatbuffers.Builder) (*writer.Geometry, error) {
	fg := writer.NewGeometry(builder)
	switch g.Kind() {
	case geosql.KindPoint:
		p, _ := g.Point()
		fg.SetType(flattypes.GeometryTypePoint)
		fg.SetXY([]float64{p[0], p[1]})
	case geosql.KindLineString:
		ls, _ := g.LineString()
		fg.SetType(flattypes.GeometryTypeLineString)
		fg.SetXY(pointsToXY(ls))
	case geosql.KindPolygon:
		poly, _ := g.Polygon()
		xy, ends := polygonToXYEnds(poly)
		fg.SetType(flattypes.GeometryTypePolygon)
		fg.SetXY(xy)
		fg.SetEnds(ends)
	default:
		return nil, fmt.Errorf("fgb: %w: %s", geosql.ErrUnsupportedKind, g.Kind())
	}
	return fg, nil
}

// geometryFromFGB converts a stored geometry back, tagging it with srid.
func geometryFromFGB(fg *flattypes.Geometry, srid int) (geosql.Geometry, error) {
	switch t := fg.Type(); t {
	case flattypes.GeometryTypePoint:
		if fg.XyLength() < 2 {
			return geosql.Geometry{}, fmt.Errorf("%w: point without coordinates", ErrInvalidData)
		}
		return geosql.NewPoint(fg.Xy(0), fg.Xy(1), srid), nil
	case flattypes.GeometryTypeLineString:
		return geosql.NewLineString(orb.LineString(xyPoints(fg, 0, fg.XyLength()/2)), srid), nil
	case flattypes.GeometryTypePolygon:
		poly, err := polygonFromXYEnds(fg)
		if err != nil {
			return geosql.Geometry{}, err
		}
		return geosql.NewPolygon(poly, srid), nil
	default:
		return geosql.Geometry{}, fmt.Errorf("fgb: %w: %s", geosql.ErrUnsupportedKind, flattypes.EnumNamesGeometryType[t])
	}
}

func pointsToXY(pts []orb.Point) []float64 {
	xy := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		xy = append(xy, p[0], p[1])
	}
	return xy
}

// polygonToXYEnds flattens the rings, closing any that are open, and
// returns the cumulative end offset of each ring in points.
func polygonToXYEnds(poly orb.Polygon) ([]float64, []uint32) {
	var xy []float64
	ends := make([]uint32, 0, len(poly))
	var n uint32
	for _, ring := range poly {
		if len(ring) > 0 && !ring.Closed() {
			ring = append(ring[:len(ring):len(ring)], ring[0])
		}
		xy = append(xy, pointsToXY(ring)...)
		n += uint32(len(ring))
		ends = append(ends, n)
	}
	return xy, ends
}

// xyPoints reads points [start, end) from the flat coordinate array.
func xyPoints(fg *flattypes.Geometry, start, end int) []orb.Point {
	pts := make([]orb.Point, 0, end-start)
	for i := start; i < end; i++ {
		pts = append(pts, orb.Point{fg.Xy(2 * i), fg.Xy(2*i + 1)})
	}
	return pts
}

func polygonFromXYEnds(fg *flattypes.Geometry) (orb.Polygon, error) {
	total := fg.XyLength() / 2
	if fg.EndsLength() == 0 {
		return orb.Polygon{orb.Ring(xyPoints(fg, 0, total))}, nil
	}

	poly := make(orb.Polygon, 0, fg.EndsLength())
	start := 0
	for i := 0; i < fg.EndsLength(); i++ {
		end := int(fg.Ends(i))
		if end < start || end > total {
			return nil, fmt.Errorf("%w: ring end %d out of range", ErrInvalidData, end)
		}
		poly = append(poly, orb.Ring(xyPoints(fg, start, end)))
		start = end
	}
	return poly, nil
}
