package geosql

import (
	"bytes"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

var zoneColumns = []string{"id", "name", "boundary"}

func TestRewrite_Golden(t *testing.T) {
	tests := []struct {
		name   string
		engine Engine
		sql    string
		geom   []string
		all    []string
	}{
		{"wildcard", EngineMySQL, "SELECT * FROM zone", []string{"boundary"}, []string{"boundary", "name"}},
		{"wildcard_alias", EngineMySQL, "SELECT z.* FROM zone z WHERE z.name = ?", []string{"boundary"}, zoneColumns},
		{"wildcard_bare_with_alias", EngineMySQL, "SELECT * FROM zone AS z ORDER BY z.name", []string{"boundary"}, zoneColumns},
		{"explicit_columns", EngineMySQL, "SELECT id, boundary, name FROM zone WHERE id = ?", []string{"boundary"}, nil},
		{"explicit_alias", EngineMySQL, "SELECT z.id, z.boundary AS b FROM zone z", []string{"boundary"}, nil},
		{"quoted_column", EngineMySQL, "SELECT `boundary` FROM zone", []string{"boundary"}, nil},
		{"camel_case_column", EngineMySQL, "SELECT boundaryGeo FROM zone", []string{"boundary_geo"}, nil},
		{"distinct", EngineMySQL, "SELECT DISTINCT name, boundary FROM zone", []string{"boundary"}, nil},
		{"subquery_in_from", EngineMySQL, "SELECT boundary FROM (SELECT * FROM zone) s", []string{"boundary"}, zoneColumns},
		{"already_wrapped", EngineMySQL, "SELECT HEX(boundary) AS boundary FROM zone", []string{"boundary"}, nil},
		{"postgres_columns", EnginePostgres, "SELECT id, boundary FROM zone LIMIT 10", []string{"boundary"}, nil},
		{"postgres_wildcard", EnginePostgres, "SELECT * FROM zone", []string{"boundary"}, zoneColumns},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRewriter(NewDialect(tt.engine))
			out := r.Rewrite(tt.sql, tt.geom, tt.all)
			g.Assert(t, tt.name, []byte(out))

			assert.Equal(t, out, r.Rewrite(out, tt.geom, tt.all), "rewriting is idempotent")
		})
	}
}

func TestRewrite_Unchanged(t *testing.T) {
	r := NewRewriter(NewDialect(EngineMySQL))
	geom := []string{"boundary"}

	tests := []struct {
		name string
		sql  string
		geom []string
		all  []string
	}{
		{"insert", "INSERT INTO zone (name, boundary) VALUES (?, ?)", geom, zoneColumns},
		{"update", "UPDATE zone SET boundary = ? WHERE id = ?", geom, zoneColumns},
		{"no geometry columns", "SELECT * FROM zone", nil, zoneColumns},
		{"wildcard without columns", "SELECT * FROM zone", geom, nil},
		{"other table wildcard", "SELECT r.* FROM zone z JOIN region r ON r.id = z.region_id", geom, zoneColumns},
		{"common table expression", "WITH z AS (SELECT * FROM zone) SELECT boundary FROM z", geom, zoneColumns},
		{"no from", "SELECT 1", geom, zoneColumns},
		{"union", "SELECT boundary FROM zone UNION SELECT boundary FROM region", geom, nil},
		{"union wildcard", "SELECT * FROM zone UNION ALL SELECT * FROM zone_archive", geom, zoneColumns},
		{"except", "SELECT id, boundary FROM zone EXCEPT SELECT id, boundary FROM retired", geom, nil},
		{"expression", "SELECT boundary IS NULL FROM zone", geom, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.sql, r.Rewrite(tt.sql, tt.geom, tt.all))
		})
	}
}

func TestRewrite_FailOpen(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	var logs bytes.Buffer
	d := NewDialect(EngineMySQL, WithMetrics(m), WithLogger(zerolog.New(&logs)))
	r := NewRewriter(d)

	for _, sql := range []string{
		"SELECT boundary, 'oops FROM zone",
		"SELECT COUNT(boundary FROM zone",
	} {
		assert.Equal(t, sql, r.Rewrite(sql, []string{"boundary"}, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.rewrites.WithLabelValues(outcomeFallback)))
	assert.Contains(t, logs.String(), "query rewrite failed, using original SQL")
	assert.Contains(t, logs.String(), `"sql_fingerprint":"`+fingerprint("SELECT boundary, 'oops FROM zone")+`"`)
	assert.NotContains(t, logs.String(), "oops")
}

func TestRewrite_Cache(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := NewRewriter(NewDialect(EngineMySQL, WithMetrics(m)))

	sql := "SELECT id, boundary FROM zone"
	first := r.Rewrite(sql, []string{"boundary"}, nil)
	second := r.Rewrite(sql, []string{"boundary"}, nil)
	assert.Equal(t, first, second)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rewrites.WithLabelValues(outcomeRewritten)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rewrites.WithLabelValues(outcomeCached)))

	// different columns are a different entry
	assert.Equal(t, sql, r.Rewrite(sql, []string{"shape"}, nil))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rewrites.WithLabelValues(outcomeUnchanged)))

	uncached := NewRewriter(NewDialect(EngineMySQL, WithMetrics(m)), WithStatementCacheSize(0))
	uncached.Rewrite(sql, []string{"boundary"}, nil)
	uncached.Rewrite(sql, []string{"boundary"}, nil)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.rewrites.WithLabelValues(outcomeRewritten)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rewrites.WithLabelValues(outcomeCached)))
}

func TestRewriteEntity(t *testing.T) {
	cache := &ColumnCache{}
	r := NewRewriter(NewDialect(EngineMySQL), WithColumnCache(cache))

	assert.Equal(t, "SELECT name, HEX(boundary) AS boundary FROM zone", r.RewriteEntity("SELECT * FROM zone", zone{}))
	assert.Equal(t, "SELECT z.name, HEX(z.boundary) AS boundary FROM zone z", r.RewriteEntity("SELECT * FROM zone z", &zone{}))

	// unusable entity falls back to the original statement
	assert.Equal(t, "SELECT * FROM zone", r.RewriteEntity("SELECT * FROM zone", nil))

	_, ok := cache.entries.Load(reflect.TypeOf(zone{}))
	assert.True(t, ok)
	assert.Equal(t, EngineMySQL, r.Dialect().Engine())
}

func TestRewrite_Concurrent(t *testing.T) {
	r := NewRewriter(NewDialect(EnginePostgres), WithStatementCacheSize(2))
	want := "SELECT id, name, encode(ST_AsBinary(boundary), 'hex') AS boundary FROM zone"
	queries := []string{"SELECT * FROM zone", "SELECT * FROM zone WHERE id = 1", "SELECT * FROM zone LIMIT 5"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sql := queries[(i+j)%len(queries)]
				out := r.Rewrite(sql, []string{"boundary"}, zoneColumns)
				if !strings.HasPrefix(out, want) {
					t.Errorf("got %q", out)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
