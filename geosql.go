// Package geosql stores and retrieves 2-D vector shapes (Point, LineString,
// Polygon) through relational databases and exchanges them as GeoJSON.
//
// Geometries travel to the database as SRID-prefixed Well-Known-Binary and come
// back as hexadecimal text. A Dialect hides the two engine conventions that
// differ: how a write value is packaged for the driver and how a geometry
// column must be wrapped in a SELECT so that the driver returns hex text.
// A Rewriter applies that wrapping to the SQL of read queries.
package geosql

// DefaultSRID is the spatial reference used when a geometry carries SRID 0 (WGS 84).
const DefaultSRID = 4326

// resolveSRID substitutes def for the unset SRID 0.
func resolveSRID(srid, def int) int {
	if srid != 0 {
		return srid
	}
	if def == 0 {
		return DefaultSRID
	}
	return def
}
