package fgb

import (
	"fmt"
	"io"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	geosql "github.com/tingold/orb-geosql"
)

// Write encodes features as a FlatGeobuf file. The CRS is taken from the
// first feature's SRID, or opts.DefaultSRID when it is unset. Every geometry
// must be a Point, LineString or Polygon.
func Write(w io.Writer, features []Feature, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	if len(features) == 0 {
		return ErrNoFeatures
	}

	geomType := fgbGeometryType(features[0].Geometry.Kind())
	for i, f := range features {
		t := fgbGeometryType(f.Geometry.Kind())
		if t == flattypes.GeometryTypeUnknown {
			return fmt.Errorf("fgb: feature %d: %w: %s", i, geosql.ErrUnsupportedKind, f.Geometry.Kind())
		}
		if t != geomType {
			geomType = flattypes.GeometryTypeUnknown
		}
	}

	cols, err := inferColumns(features)
	if err != nil {
		return fmt.Errorf("fgb: %w", err)
	}

	builder := flatbuffers.NewBuilder(4096)
	header := writer.NewHeader(builder)
	header.SetGeometryType(geomType)
	header.SetFeaturesCount(uint64(len(features)))
	if opts.Name != "" {
		header.SetName(opts.Name)
	}
	if opts.Description != "" {
		header.SetDescription(opts.Description)
	}
	if len(cols) > 0 {
		header.SetColumns(writerColumns(cols, builder))
	}

	srid := features[0].Geometry.SRID()
	if srid == 0 {
		srid = opts.DefaultSRID
	}
	if srid == 0 {
		srid = geosql.DefaultSRID
	}
	if srid > 0 {
		c := crsForSRID(srid)
		crs := writer.NewCrs(builder)
		crs.SetOrg("EPSG")
		crs.SetCode(int32(c.Code))
		if c.Name != "" {
			crs.SetName(c.Name)
		}
		header.SetCrs(crs)
	}

	gen := &featureGenerator{features: features, columns: cols}
	if _, err := writer.NewWriter(header, opts.IncludeIndex, gen, nil).Write(w); err != nil {
		return err
	}
	return gen.err
}

// featureGenerator feeds features to the FlatGeobuf writer one at a time.
type featureGenerator struct {
	features []Feature
	columns  []column
	index    int
	err      error
}

func (g *featureGenerator) Generate() *writer.Feature {
	if g.err != nil || g.index >= len(g.features) {
		return nil
	}
	f := g.features[g.index]
	g.index++

	builder := flatbuffers.NewBuilder(1024)
	fg, err := geometryToFGB(f.Geometry, builder)
	if err != nil {
		g.err = err
		return nil
	}
	feature := writer.NewFeature(builder)
	feature.SetGeometry(fg)
	if props := encodeProperties(f.Properties, g.columns); len(props) > 0 {
		feature.SetProperties(props)
	}
	return feature
}
