package geosql

import (
	"database/sql"
	"database/sql/driver"
)

// Value returns a driver.Valuer that validates g, resolves its SRID and
// packages it for the dialect's engine. Use it as a query argument:
//
//	db.Exec("INSERT INTO zone (name, boundary) VALUES (?, ?)", name, d.Value(g))
func (d Dialect) Value(g Geometry) driver.Valuer {
	return valuer{d: d, g: g}
}

type valuer struct {
	d Dialect
	g Geometry
}

func (v valuer) Value() (driver.Value, error) {
	if err := v.g.Validate(); err != nil {
		v.d.log.Debug().Err(err).Str("kind", v.g.kind.String()).Msg("rejected geometry parameter")
		return nil, err
	}
	return v.d.ConvertForWrite(v.g)
}

// NullGeometry is a Geometry that may be NULL in the database.
type NullGeometry struct {
	Geometry Geometry
	Valid    bool
}

// Scanner returns an sql.Scanner that decodes a wrapped geometry column into
// g. NULL leaves g as the zero Geometry.
//
//	row.Scan(&name, d.Scanner(&g))
func (d Dialect) Scanner(g *Geometry) *GeometryScanner {
	return &GeometryScanner{d: d, g: g}
}

// NullScanner returns an sql.Scanner that decodes into n, setting Valid.
func (d Dialect) NullScanner(n *NullGeometry) *GeometryScanner {
	return &GeometryScanner{d: d, g: &n.Geometry, valid: &n.Valid}
}

// GeometryScanner implements sql.Scanner for a dialect.
type GeometryScanner struct {
	d     Dialect
	g     *Geometry
	valid *bool

	// Valid is false after scanning NULL.
	Valid bool
}

var _ sql.Scanner = (*GeometryScanner)(nil)

// Scan implements sql.Scanner.
func (s *GeometryScanner) Scan(src any) error {
	s.setValid(false)
	*s.g = Geometry{}
	if src == nil {
		return nil
	}
	g, err := s.d.ParseFromRead(src)
	if err != nil {
		return err
	}
	*s.g = g
	s.setValid(true)
	return nil
}

func (s *GeometryScanner) setValid(v bool) {
	s.Valid = v
	if s.valid != nil {
		*s.valid = v
	}
}
