package geosql

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkb"
)

// sridSize is the length of the SRID prefix that precedes the WKB body.
const sridSize = 4

// Codec converts geometries to and from SRID-prefixed, little-endian WKB:
//
//	[SRID int32][byte order uint8 = 1][type int32][body]
//
// The zero Codec substitutes DefaultSRID for unset SRIDs and encodes polygon
// holes. A Codec holds no mutable state and is safe for concurrent use.
type Codec struct {
	// DefaultSRID replaces SRID 0 on encode. Zero means DefaultSRID.
	DefaultSRID int

	// ExteriorOnly drops interior rings when encoding polygons, producing
	// the single-ring form written by earlier releases.
	ExteriorOnly bool
}

// DefaultCodec is the Codec used by the package-level helpers.
var DefaultCodec = Codec{DefaultSRID: DefaultSRID}

// EncodeHex encodes g with DefaultCodec.
func EncodeHex(g Geometry) (string, error) { return DefaultCodec.EncodeHex(g) }

// DecodeHex decodes hex text with DefaultCodec.
func DecodeHex(s string) (Geometry, error) { return DefaultCodec.DecodeHex(s) }

// EncodeBytes returns the SRID-prefixed WKB encoding of g.
func (c Codec) EncodeBytes(g Geometry) ([]byte, error) {
	var body orb.Geometry
	switch g.kind {
	case KindPoint:
		body = g.point
	case KindLineString:
		body = g.line
	case KindPolygon:
		body = c.closedRings(g.poly)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, g.kind)
	}

	data, err := wkb.Marshal(body, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("geosql: encode %s: %w", g.kind, err)
	}

	out := make([]byte, sridSize+len(data))
	binary.LittleEndian.PutUint32(out, uint32(int32(resolveSRID(g.srid, c.DefaultSRID))))
	copy(out[sridSize:], data)
	return out, nil
}

// EncodeHex returns the upper-case hexadecimal form of EncodeBytes.
func (c Codec) EncodeHex(g Geometry) (string, error) {
	data, err := c.EncodeBytes(g)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(data)), nil
}

// DecodeHex parses SRID-prefixed WKB hex text. Upper and lower case digits
// are both accepted.
func (c Codec) DecodeHex(s string) (Geometry, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return Geometry{}, newWKBParseError(s, err)
	}
	g, err := c.decode(data)
	if err != nil {
		return Geometry{}, newWKBParseError(s, err)
	}
	return g, nil
}

// DecodeBytes parses SRID-prefixed WKB.
func (c Codec) DecodeBytes(data []byte) (Geometry, error) {
	g, err := c.decode(data)
	if err != nil {
		return Geometry{}, newWKBParseError(strings.ToUpper(hex.EncodeToString(prefixBytes(data))), err)
	}
	return g, nil
}

func (c Codec) decode(data []byte) (Geometry, error) {
	if len(data) < sridSize {
		return Geometry{}, errors.New("buffer shorter than SRID prefix")
	}
	srid := int(int32(binary.LittleEndian.Uint32(data)))

	body, err := wkb.Unmarshal(data[sridSize:])
	if err != nil {
		return Geometry{}, unsupportedBody(err)
	}
	if err := consumed(body, len(data)-sridSize); err != nil {
		return Geometry{}, err
	}
	return fromWKBBody(body, srid)
}

// WKB type codes and the EWKB flag bits that may be set on them.
const (
	wkbPoint      = 1
	wkbPolygon    = 3
	ewkbSRIDFlag  = 0x20000000
	ewkbFlagsMask = 0xE0000000
)

// hasSRIDPrefix reports whether data is laid out as [SRID][01][type] with a
// Point, LineString or Polygon type code.
func hasSRIDPrefix(data []byte) bool {
	if len(data) < sridSize+5 || data[sridSize] != 1 {
		return false
	}
	t := binary.LittleEndian.Uint32(data[sridSize+1:])
	return t >= wkbPoint && t <= wkbPolygon
}

// isPlainWKB reports whether data starts with a byte order flag followed by
// a Point, LineString or Polygon type code, EWKB flags allowed.
func isPlainWKB(data []byte) bool {
	if len(data) < 5 || data[0] > 1 {
		return false
	}
	t := wkbType(data) &^ ewkbFlagsMask
	return t >= wkbPoint && t <= wkbPolygon
}

func wkbType(data []byte) uint32 {
	if data[0] == 0 {
		return binary.BigEndian.Uint32(data[1:])
	}
	return binary.LittleEndian.Uint32(data[1:])
}

// consumed returns an error when the WKB encoding of body is shorter than n
// bytes, i.e. the input carried bytes past the geometry.
func consumed(body orb.Geometry, n int) error {
	enc, err := wkb.Marshal(body)
	if err != nil {
		return err
	}
	if len(enc) != n {
		return fmt.Errorf("%d trailing bytes after WKB body", n-len(enc))
	}
	return nil
}

// unsupportedBody marks the WKB reader's unknown-type error as ErrUnsupportedKind.
func unsupportedBody(err error) error {
	if errors.Is(err, wkb.ErrUnsupportedGeometry) || errors.Is(err, ewkb.ErrUnsupportedGeometry) {
		return fmt.Errorf("%w: %v", ErrUnsupportedKind, err)
	}
	return err
}

// fromWKBBody maps the output of the general WKB reader onto a Geometry.
func fromWKBBody(body orb.Geometry, srid int) (Geometry, error) {
	switch b := body.(type) {
	case orb.LineString:
		if len(b) == 0 {
			return Geometry{}, errors.New("LineString has no points")
		}
		return FromOrb(body, srid)
	case orb.Polygon:
		if len(b) == 0 {
			return Geometry{}, errors.New("Polygon has no rings")
		}
		return FromOrb(body, srid)
	case orb.Point:
		return FromOrb(body, srid)
	default:
		return Geometry{}, fmt.Errorf("%w: WKB %s", ErrUnsupportedKind, body.GeoJSONType())
	}
}

// closedRings returns a polygon whose rings are all closed, honoring ExteriorOnly.
func (c Codec) closedRings(p orb.Polygon) orb.Polygon {
	n := len(p)
	if c.ExteriorOnly && n > 1 {
		n = 1
	}
	out := make(orb.Polygon, n)
	for i := 0; i < n; i++ {
		out[i] = closeRing(p[i])
	}
	return out
}

// prefixBytes returns enough of data to fill a WKBParseError hex prefix.
func prefixBytes(data []byte) []byte {
	if len(data) > maxHexPrefix/2+1 {
		return data[:maxHexPrefix/2+1]
	}
	return data
}
