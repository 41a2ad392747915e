// Package fgb exports and imports geosql geometries as FlatGeobuf, the
// binary feature format with an optional packed R-tree index.
package fgb

import (
	"errors"

	geosql "github.com/tingold/orb-geosql"
)

var (
	ErrNoFeatures   = errors.New("fgb: no features to write")
	ErrInvalidData  = errors.New("fgb: invalid data")
	ErrNoIndex      = errors.New("fgb: file has no spatial index")
	ErrPropertyType = errors.New("fgb: unsupported property type")
)

// CRS identifies the coordinate reference system of a file. Only EPSG codes
// are written.
type CRS struct {
	Code int
	Name string
}

// crsForSRID names the CRS for an SRID. Unknown codes are written without a name.
func crsForSRID(srid int) CRS {
	switch srid {
	case geosql.DefaultSRID:
		return CRS{Code: srid, Name: "WGS 84"}
	case 3857:
		return CRS{Code: srid, Name: "WGS 84 / Pseudo-Mercator"}
	default:
		return CRS{Code: srid}
	}
}

// Options configures Write.
type Options struct {
	Name         string // layer name
	Description  string
	IncludeIndex bool
	// DefaultSRID is used for the CRS when the first feature has SRID 0.
	// Zero means geosql.DefaultSRID.
	DefaultSRID int
}

// DefaultOptions returns options that include the spatial index.
func DefaultOptions() *Options {
	return &Options{IncludeIndex: true, DefaultSRID: geosql.DefaultSRID}
}

// Feature is a geometry with scalar properties. Property values are string,
// bool, integer or floating point; nil values are omitted.
type Feature struct {
	Geometry   geosql.Geometry
	Properties map[string]any
}

// ColumnInfo describes a property column.
type ColumnInfo struct {
	Name     string
	Type     string // "Bool", "Long", "Double" or "String"
	Nullable bool
}

// Header is the metadata stored at the start of a file.
type Header struct {
	Name          string
	Description   string
	GeometryType  string
	FeaturesCount uint64
	Envelope      [4]float64 // minX, minY, maxX, maxY
	CRS           *CRS
	HasIndex      bool
	Columns       []ColumnInfo
}
