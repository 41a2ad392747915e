package fgb

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	geosql "github.com/tingold/orb-geosql"
)

func write(t testing.TB, features []Feature, opts *Options) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, features, opts))
	return buf.Bytes()
}

func byName(features []Feature) []Feature {
	sort.Slice(features, func(i, j int) bool {
		return features[i].Properties["name"].(string) < features[j].Properties["name"].(string)
	})
	return features
}

func TestNewReaderFromData_Invalid(t *testing.T) {
	_, err := NewReaderFromData([]byte("not a flatgeobuf"))
	assert.Error(t, err)

	_, err = NewReaderFromData([]byte{})
	assert.Error(t, err)
}

func TestRoundTrip_Points(t *testing.T) {
	var in []Feature
	for i := 0; i < 10; i++ {
		in = append(in, Feature{
			Geometry: geosql.NewPoint(float64(i), float64(i*2), 0),
			Properties: map[string]any{
				"name":  string(rune('a' + i)),
				"index": i,
			},
		})
	}

	path := filepath.Join(t.TempDir(), "points.fgb")
	require.NoError(t, os.WriteFile(path, write(t, in, &Options{Name: "test_points", IncludeIndex: true}), 0o644))

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	h := r.Header()
	require.NotNil(t, h)
	assert.Equal(t, "test_points", h.Name)
	assert.Equal(t, "Point", h.GeometryType)
	assert.Equal(t, uint64(10), h.FeaturesCount)
	assert.True(t, h.HasIndex)

	out, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, out, 10)
	for i, f := range byName(out) {
		want := geosql.NewPoint(float64(i), float64(i*2), geosql.DefaultSRID)
		assert.True(t, want.Equal(f.Geometry), "feature %d: got %s", i, f.Geometry)
		assert.Equal(t, int64(i), f.Properties["index"])
	}
}

func TestRoundTrip_PolygonWithHole(t *testing.T) {
	poly := orb.Polygon{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{2, 2}, {2, 4}, {4, 4}, {4, 2}, {2, 2}},
	}
	data := write(t, []Feature{{Geometry: geosql.NewPolygon(poly, 3857)}}, nil)

	out, err := Read(data)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, geosql.KindPolygon, out[0].Geometry.Kind())
	assert.Equal(t, 3857, out[0].Geometry.SRID())

	got, _ := out[0].Geometry.Polygon()
	assert.Equal(t, poly, got)
}

func TestRoundTrip_OpenRingIsClosed(t *testing.T) {
	open := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}
	out, err := Read(write(t, []Feature{{Geometry: geosql.NewPolygon(open, 0)}}, nil))
	require.NoError(t, err)
	require.Len(t, out, 1)

	got, _ := out[0].Geometry.Polygon()
	require.Len(t, got[0], 5)
	assert.Equal(t, got[0][0], got[0][4])
}

func TestRoundTrip_Properties(t *testing.T) {
	in := []Feature{
		{Geometry: geosql.NewPoint(1, 1, 0), Properties: map[string]any{"name": "one", "active": true, "score": 1.5, "rank": 3}},
		{Geometry: geosql.NewPoint(2, 2, 0), Properties: map[string]any{"name": "two", "active": false, "score": 2, "rank": nil}},
	}
	out, err := Read(write(t, in, nil))
	require.NoError(t, err)
	require.Len(t, out, 2)
	out = byName(out)

	assert.Equal(t, map[string]any{"name": "one", "active": true, "score": 1.5, "rank": int64(3)}, out[0].Properties)
	// score widened to Double, nil rank omitted
	assert.Equal(t, map[string]any{"name": "two", "active": false, "score": 2.0}, out[1].Properties)
}

func TestHeader_Columns(t *testing.T) {
	in := []Feature{
		{Geometry: geosql.NewLineString(orb.LineString{{0, 0}, {1, 1}}, 0), Properties: map[string]any{"name": "a", "lanes": 2}},
	}
	r, err := NewReaderFromData(write(t, in, &Options{Name: "roads", Description: "road centerlines", IncludeIndex: true}))
	require.NoError(t, err)

	h := r.Header()
	assert.Equal(t, "road centerlines", h.Description)
	require.NotNil(t, h.CRS)
	assert.Equal(t, 4326, h.CRS.Code)
	assert.Equal(t, []ColumnInfo{
		{Name: "lanes", Type: "Long", Nullable: true},
		{Name: "name", Type: "String", Nullable: true},
	}, h.Columns)
}

func TestReadAll_NoIndex(t *testing.T) {
	data := write(t, []Feature{
		{Geometry: geosql.NewPoint(1, 1, 0)},
		{Geometry: geosql.NewPoint(2, 2, 0)},
	}, &Options{})
	r, err := NewReaderFromData(data)
	require.NoError(t, err)
	assert.False(t, r.Header().HasIndex)
	assert.Equal(t, uint64(2), r.Header().FeaturesCount)

	_, err = Read(data)
	assert.ErrorIs(t, err, ErrNoIndex)

	_, err = r.ReadAll()
	assert.ErrorIs(t, err, ErrNoIndex)
	_, err = r.Search(orb.Bound{Max: orb.Point{1, 1}})
	assert.ErrorIs(t, err, ErrNoIndex)
}

func TestSearch(t *testing.T) {
	var in []Feature
	for i := 0; i < 20; i++ {
		in = append(in, Feature{
			Geometry:   geosql.NewPolygon(square(float64(i*10), 0, 5), 0),
			Properties: map[string]any{"name": string(rune('a' + i))},
		})
	}
	r, err := NewReaderFromData(write(t, in, nil))
	require.NoError(t, err)

	out, err := r.Search(orb.Bound{Min: orb.Point{18, 1}, Max: orb.Point{32, 2}})
	require.NoError(t, err)
	require.Len(t, out, 2)
	out = byName(out)
	assert.Equal(t, "c", out[0].Properties["name"])
	assert.Equal(t, "d", out[1].Properties["name"])
}
