package geosql

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Valid coordinate ranges for GeoJSON input.
const (
	minLongitude = -180.0
	maxLongitude = 180.0
	minLatitude  = -90.0
	maxLatitude  = 90.0
)

// MarshalGeoJSON returns the GeoJSON geometry object for g, for example
// {"type":"Point","coordinates":[121.5,31.2]}. Polygon rings are written closed.
func MarshalGeoJSON(g Geometry) ([]byte, error) {
	var og orb.Geometry
	switch g.kind {
	case KindPoint:
		og = g.point
	case KindLineString:
		og = g.line
	case KindPolygon:
		og = Codec{}.closedRings(g.poly)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, g.kind)
	}
	return json.Marshal(geojson.NewGeometry(og))
}

// MarshalJSON implements json.Marshaler. The zero Geometry marshals as null.
func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.kind == KindUnknown {
		return []byte("null"), nil
	}
	return MarshalGeoJSON(g)
}

// UnmarshalJSON implements json.Unmarshaler using UnmarshalGeoJSON.
// null leaves g unchanged.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	v, err := UnmarshalGeoJSON(data)
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// UnmarshalGeoJSON decodes a Point, LineString or Polygon, dispatching on the
// document's "type" member.
func UnmarshalGeoJSON(data []byte) (Geometry, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return Geometry{}, err
	}
	typ, err := doc.typeName()
	if err != nil {
		return Geometry{}, err
	}
	switch typ {
	case KindPoint.String():
		return doc.point()
	case KindLineString.String():
		return doc.lineString()
	case KindPolygon.String():
		return doc.polygon()
	default:
		return Geometry{}, fmt.Errorf("%w: GeoJSON type %q", ErrUnsupportedKind, typ)
	}
}

// UnmarshalPoint decodes a GeoJSON Point.
func UnmarshalPoint(data []byte) (Geometry, error) {
	doc, err := parseExpected(data, KindPoint)
	if err != nil {
		return Geometry{}, err
	}
	return doc.point()
}

// UnmarshalLineString decodes a GeoJSON LineString.
func UnmarshalLineString(data []byte) (Geometry, error) {
	doc, err := parseExpected(data, KindLineString)
	if err != nil {
		return Geometry{}, err
	}
	return doc.lineString()
}

// UnmarshalPolygon decodes a GeoJSON Polygon, checking ring closure and
// validity, and normalizes the winding to exterior counter-clockwise and
// holes clockwise.
func UnmarshalPolygon(data []byte) (Geometry, error) {
	doc, err := parseExpected(data, KindPolygon)
	if err != nil {
		return Geometry{}, err
	}
	return doc.polygon()
}

type document map[string]json.RawMessage

func parseDocument(data []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed("geometry", "not a JSON object", err)
	}
	if doc == nil {
		return nil, malformed("geometry", "document is null", nil)
	}
	return doc, nil
}

func parseExpected(data []byte, k Kind) (document, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	typ, err := doc.typeName()
	if err != nil {
		return nil, err
	}
	if typ != k.String() {
		return nil, &TypeMismatchError{Expected: k.String(), Actual: typ}
	}
	return doc, nil
}

func (d document) typeName() (string, error) {
	raw, ok := d["type"]
	if !ok {
		return "", malformed("type", "missing 'type' field", nil)
	}
	var typ string
	if isNull(raw) {
		return "", malformed("type", "'type' is null", nil)
	}
	if err := json.Unmarshal(raw, &typ); err != nil {
		return "", malformed("type", "'type' is not a string", err)
	}
	return typ, nil
}

// coordinates returns the raw elements of the "coordinates" array.
func (d document) coordinates() ([]json.RawMessage, error) {
	raw, ok := d["coordinates"]
	if !ok {
		return nil, malformed("coordinates", "missing or invalid 'coordinates' field", nil)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil || elems == nil {
		return nil, malformed("coordinates", "missing or invalid 'coordinates' field", err)
	}
	return elems, nil
}

func (d document) point() (Geometry, error) {
	elems, err := d.coordinates()
	if err != nil {
		return Geometry{}, err
	}
	p, err := position(elems, 0)
	if err != nil {
		return Geometry{}, err
	}
	return NewPoint(p[0], p[1], 0), nil
}

func (d document) lineString() (Geometry, error) {
	elems, err := d.coordinates()
	if err != nil {
		return Geometry{}, err
	}
	pts, err := positions(elems)
	if err != nil {
		return Geometry{}, err
	}
	if len(pts) < minLinePoints {
		e := malformed("coordinates", fmt.Sprintf("a LineString must have at least %d points", minLinePoints), ErrInsufficientPoints)
		return Geometry{}, e
	}
	return Geometry{kind: KindLineString, line: orb.LineString(pts)}, nil
}

func (d document) polygon() (Geometry, error) {
	elems, err := d.coordinates()
	if err != nil {
		return Geometry{}, err
	}
	if len(elems) == 0 {
		return Geometry{}, malformed("coordinates", "a Polygon must have an exterior ring", ErrInsufficientPoints)
	}

	poly := make(orb.Polygon, 0, len(elems))
	for i, raw := range elems {
		var ringElems []json.RawMessage
		if err := json.Unmarshal(raw, &ringElems); err != nil || ringElems == nil {
			e := malformed("coordinates", fmt.Sprintf("ring %d is not an array", i), err)
			return Geometry{}, e
		}
		pts, err := positions(ringElems)
		if err != nil {
			return Geometry{}, err
		}
		if len(pts) < minRingPoints {
			e := malformed("coordinates",
				fmt.Sprintf("ring %d must have at least %d points, got %d", i, minRingPoints, len(pts)), ErrInsufficientPoints)
			return Geometry{}, e
		}
		ring := orb.Ring(pts)
		if !ring.Closed() {
			first, last := ring[0], ring[len(ring)-1]
			e := malformed("coordinates",
				fmt.Sprintf("ring %d first point (%v,%v) != last point (%v,%v)", i, first[0], first[1], last[0], last[1]), ErrRingNotClosed)
			return Geometry{}, e
		}
		poly = append(poly, ring)
	}

	if err := validatePolygon(poly); err != nil {
		return Geometry{}, err
	}
	return Geometry{kind: KindPolygon, poly: normalizeWinding(poly)}, nil
}

func positions(elems []json.RawMessage) ([]orb.Point, error) {
	pts := make([]orb.Point, 0, len(elems))
	for i, raw := range elems {
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil || pair == nil {
			return nil, invalidPair(i, err)
		}
		p, err := position(pair, i)
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, nil
}

// position decodes one [lon, lat, ...] entry and range-checks it.
func position(pair []json.RawMessage, index int) (orb.Point, error) {
	if len(pair) < 2 {
		return orb.Point{}, invalidPair(index, nil)
	}
	lon, err := number(pair[0])
	if err != nil {
		return orb.Point{}, invalidPair(index, err)
	}
	lat, err := number(pair[1])
	if err != nil {
		return orb.Point{}, invalidPair(index, err)
	}
	if lon < minLongitude || lon > maxLongitude {
		return orb.Point{}, longitudeError(lon)
	}
	if lat < minLatitude || lat > maxLatitude {
		return orb.Point{}, latitudeError(lat)
	}
	return orb.Point{lon, lat}, nil
}

// number decodes a JSON number; null is rejected rather than read as zero.
func number(raw json.RawMessage) (float64, error) {
	if isNull(raw) {
		return 0, errors.New("null is not a number")
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func invalidPair(index int, cause error) error {
	e := malformed("coordinates", "invalid coordinate pair", ErrInvalidCoordinatePair)
	e.Index = index
	if cause != nil {
		e.Reason += ": " + cause.Error()
	}
	return e
}
