package geosql

import (
	"context"
	"database/sql"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
)

var engineHints = []struct {
	substr string
	engine Engine
}{
	{"mysql", EngineMySQL},
	{"mariadb", EngineMySQL},
	{"postgres", EnginePostgres},
	{"postgis", EnginePostgres},
	{"pgx", EnginePostgres},
	{"lib/pq", EnginePostgres},
}

// DetectEngine matches a product, driver or URL name against the known
// engines. ok is false when nothing matched.
func DetectEngine(name string) (engine Engine, ok bool) {
	lower := strings.ToLower(name)
	for _, h := range engineHints {
		if strings.Contains(lower, h.substr) {
			return h.engine, true
		}
	}
	return EngineMySQL, false
}

// DetectDialect inspects db to pick a Dialect: first the driver's package
// path, then the server's version() string. An inconclusive result falls back
// to MySQL and is logged as a warning.
func DetectDialect(ctx context.Context, db *sql.DB, opts ...DialectOption) Dialect {
	d := NewDialect(EngineMySQL, opts...)
	engine, source, ok := detectDB(ctx, db, d.log)
	if !ok {
		d.log.Warn().Msg("could not detect database engine, defaulting to mysql")
		return d
	}
	d.engine = engine
	d.log.Debug().Str("engine", engine.String()).Str("source", source).Msg("detected database engine")
	return d
}

func detectDB(ctx context.Context, db *sql.DB, log zerolog.Logger) (Engine, string, bool) {
	if db == nil {
		log.Warn().Msg("nil database handle")
		return EngineMySQL, "", false
	}

	if name := driverName(db); name != "" {
		if e, ok := DetectEngine(name); ok {
			return e, name, true
		}
	}

	var version string
	if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		log.Warn().Err(err).Msg("failed to query server version")
		return EngineMySQL, "", false
	}
	if e, ok := DetectEngine(version); ok {
		return e, version, true
	}
	return EngineMySQL, version, false
}

// driverName returns the package path and type name of the driver behind db.
func driverName(db *sql.DB) string {
	t := reflect.TypeOf(db.Driver())
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath() + "." + t.Name()
}
