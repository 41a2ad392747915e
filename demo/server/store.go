package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	geosql "github.com/tingold/orb-geosql"
)

// City is a row of the city table.
type City struct {
	ID         int64           `db:"id"`
	Name       string          `db:"name"`
	Country    string          `db:"country"`
	Population int64           `db:"population"`
	Capital    bool            `db:"capital"`
	Location   geosql.Geometry `db:"location"`
}

var sampleCities = []City{
	{Name: "Tokyo", Country: "Japan", Population: 13960000, Capital: true, Location: geosql.NewPoint(139.6917, 35.6895, 0)},
	{Name: "New York", Country: "United States", Population: 8336817, Location: geosql.NewPoint(-73.9857, 40.7484, 0)},
	{Name: "London", Country: "United Kingdom", Population: 8982000, Capital: true, Location: geosql.NewPoint(-0.1276, 51.5074, 0)},
	{Name: "Paris", Country: "France", Population: 2161000, Capital: true, Location: geosql.NewPoint(2.3522, 48.8566, 0)},
	{Name: "Beijing", Country: "China", Population: 21540000, Capital: true, Location: geosql.NewPoint(116.4074, 39.9042, 0)},
	{Name: "São Paulo", Country: "Brazil", Population: 12300000, Location: geosql.NewPoint(-46.6333, -23.5505, 0)},
	{Name: "Shanghai", Country: "China", Population: 24870000, Location: geosql.NewPoint(121.4737, 31.2304, 0)},
	{Name: "Cairo", Country: "Egypt", Population: 10230000, Capital: true, Location: geosql.NewPoint(31.2357, 30.0444, 0)},
	{Name: "Sydney", Country: "Australia", Population: 5312000, Location: geosql.NewPoint(151.2093, -33.8688, 0)},
	{Name: "Berlin", Country: "Germany", Population: 3669491, Capital: true, Location: geosql.NewPoint(13.4050, 52.5200, 0)},
}

const (
	sqliteSchema = `CREATE TABLE IF NOT EXISTS city (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	country TEXT NOT NULL,
	population INTEGER NOT NULL,
	capital BOOLEAN NOT NULL,
	location BLOB NOT NULL
)`
	postgresSchema = `CREATE TABLE IF NOT EXISTS city (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	country TEXT NOT NULL,
	population BIGINT NOT NULL,
	capital BOOLEAN NOT NULL,
	location geometry(Point, 4326) NOT NULL
)`
)

type store struct {
	db       *sql.DB
	dialect  geosql.Dialect
	rewriter *geosql.Rewriter
	rewrite  bool
	log      zerolog.Logger
}

func newStore(db *sql.DB, rw *geosql.Rewriter, rewrite bool, log zerolog.Logger) *store {
	return &store{db: db, dialect: rw.Dialect(), rewriter: rw, rewrite: rewrite, log: log}
}

func (s *store) postgres() bool { return s.dialect.Engine() == geosql.EnginePostgres }

// bind returns the n-th (1-based) placeholder for the engine.
func (s *store) bind(n int) string {
	if s.postgres() {
		return "$" + strconv.Itoa(n)
	}
	return s.dialect.InputPlaceholder()
}

func (s *store) migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.postgres() {
		schema = postgresSchema
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create city table: %w", err)
	}
	return nil
}

// seed inserts cities when the table is empty.
func (s *store) seed(ctx context.Context, cities []City) error {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM city").Scan(&n); err != nil {
		return fmt.Errorf("count cities: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, c := range cities {
		if _, err := s.insert(ctx, c); err != nil {
			return err
		}
	}
	s.log.Info().Int("count", len(cities)).Msg("seeded cities")
	return nil
}

// geometryParam returns the VALUES expression for the n-th parameter holding
// a packaged geometry. PostGIS cannot read the SRID-prefixed form directly,
// so the prefix is split off and passed as the SRID.
func (s *store) geometryParam(n int) string {
	if !s.postgres() {
		return s.dialect.InputPlaceholder()
	}
	b := fmt.Sprintf("decode(%s, 'hex')", s.bind(n))
	return fmt.Sprintf("ST_GeomFromWKB(substring(%[1]s from 5), get_byte(%[1]s, 0) | (get_byte(%[1]s, 1) << 8) | (get_byte(%[1]s, 2) << 16))", b)
}

func (s *store) insertQuery() string {
	return fmt.Sprintf("INSERT INTO city (name, country, population, capital, location) VALUES (%s, %s, %s, %s, %s)",
		s.bind(1), s.bind(2), s.bind(3), s.bind(4), s.geometryParam(5))
}

func (s *store) insert(ctx context.Context, c City) (int64, error) {
	q := s.insertQuery()
	args := []any{c.Name, c.Country, c.Population, c.Capital, s.dialect.Value(c.Location)}

	if s.postgres() {
		var id int64
		if err := s.db.QueryRowContext(ctx, q+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("insert city %q: %w", c.Name, err)
		}
		return id, nil
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("insert city %q: %w", c.Name, err)
	}
	return res.LastInsertId()
}

// listQuery selects every column of city. With rewriting enabled the
// wildcard is expanded by the rewriter; otherwise the geometry column is
// wrapped by hand.
func (s *store) listQuery() string {
	if s.rewrite {
		return s.rewriter.RewriteEntity("SELECT * FROM city ORDER BY name", City{})
	}
	return "SELECT id, name, country, population, capital, " +
		s.dialect.WrapColumnForSelect("location") + " FROM city ORDER BY name"
}

func (s *store) list(ctx context.Context) ([]City, error) {
	rows, err := s.db.QueryContext(ctx, s.listQuery())
	if err != nil {
		return nil, fmt.Errorf("query cities: %w", err)
	}
	defer rows.Close()

	var cities []City
	for rows.Next() {
		var c City
		if err := rows.Scan(&c.ID, &c.Name, &c.Country, &c.Population, &c.Capital, s.dialect.Scanner(&c.Location)); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}
