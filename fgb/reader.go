package fgb

import (
	"fmt"

	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
)

// Reader provides read access to a FlatGeobuf file written with an index.
type Reader struct {
	fgb  *flatgeobuf.FlatGeoBuf
	srid int
}

// NewReader memory-maps the file at path.
func NewReader(path string) (*Reader, error) {
	f, err := flatgeobuf.New(path)
	if err != nil {
		return nil, err
	}
	return newReader(f), nil
}

// NewReaderFromData reads a file held in memory.
func NewReaderFromData(data []byte) (*Reader, error) {
	f, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, err
	}
	return newReader(f), nil
}

func newReader(f *flatgeobuf.FlatGeoBuf) *Reader {
	r := &Reader{fgb: f}
	var crs flattypes.Crs
	if h := f.Header(); h != nil && h.Crs(&crs) != nil {
		r.srid = int(crs.Code())
	}
	return r
}

// Read decodes every feature in data.
func Read(data []byte) ([]Feature, error) {
	r, err := NewReaderFromData(data)
	if err != nil {
		return nil, err
	}
	return r.ReadAll()
}

// Header returns the file metadata.
func (r *Reader) Header() *Header {
	h := r.fgb.Header()
	if h == nil {
		return nil
	}

	header := &Header{
		Name:          string(h.Name()),
		Description:   string(h.Description()),
		GeometryType:  flattypes.EnumNamesGeometryType[h.GeometryType()],
		FeaturesCount: h.FeaturesCount(),
		HasIndex:      h.IndexNodeSize() > 0,
	}
	if h.EnvelopeLength() >= 4 {
		header.Envelope = [4]float64{h.Envelope(0), h.Envelope(1), h.Envelope(2), h.Envelope(3)}
	}

	var crs flattypes.Crs
	if h.Crs(&crs) != nil {
		header.CRS = &CRS{Code: int(crs.Code()), Name: string(crs.Name())}
	}

	for i := 0; i < h.ColumnsLength(); i++ {
		var col flattypes.Column
		if h.Columns(&col, i) {
			header.Columns = append(header.Columns, ColumnInfo{
				Name:     string(col.Name()),
				Type:     flattypes.EnumNamesColumnType[col.Type()],
				Nullable: col.Nullable(),
			})
		}
	}
	return header
}

// ReadAll returns every feature in index order, which need not be the order
// they were written in. Iteration goes through the spatial index, so a file
// without one yields ErrNoIndex.
func (r *Reader) ReadAll() ([]Feature, error) {
	h := r.fgb.Header()
	if h.IndexNodeSize() == 0 {
		return nil, ErrNoIndex
	}
	if h.FeaturesCount() == 0 || h.EnvelopeLength() < 4 {
		return nil, nil
	}
	return r.search(h.Envelope(0), h.Envelope(1), h.Envelope(2), h.Envelope(3))
}

// Search returns the features whose bounding boxes intersect b.
func (r *Reader) Search(b orb.Bound) ([]Feature, error) {
	if r.fgb.Header().IndexNodeSize() == 0 {
		return nil, ErrNoIndex
	}
	return r.search(b.Min[0], b.Min[1], b.Max[0], b.Max[1])
}

func (r *Reader) search(minX, minY, maxX, maxY float64) ([]Feature, error) {
	found, err := r.fgb.Search(minX, minY, maxX, maxY)
	if err != nil {
		return nil, err
	}
	h := r.fgb.Header()
	out := make([]Feature, 0, len(found))
	for i, ff := range found {
		f, err := r.convert(ff, h)
		if err != nil {
			return nil, fmt.Errorf("fgb: feature %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *Reader) convert(ff *flattypes.Feature, h *flattypes.Header) (Feature, error) {
	var fg flattypes.Geometry
	if ff.Geometry(&fg) == nil {
		return Feature{}, fmt.Errorf("%w: feature without geometry", ErrInvalidData)
	}
	g, err := geometryFromFGB(&fg, r.srid)
	if err != nil {
		return Feature{}, err
	}

	f := Feature{Geometry: g}
	if n := ff.PropertiesLength(); n > 0 {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(ff.Properties(i))
		}
		if f.Properties, err = decodeProperties(data, h); err != nil {
			return Feature{}, err
		}
	}
	return f, nil
}

// Close releases the reader's reference to the file data.
func (r *Reader) Close() error {
	r.fgb = nil
	return nil
}
