// Command server stores sample cities through geosql and serves them as
// GeoJSON and FlatGeobuf.
//
// The database is chosen by db.driver in the config: "sqlite3" (default) or
// "pgx" for PostgreSQL/PostGIS. GEOSQL_CONFIG names an optional YAML file.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	geosql "github.com/tingold/orb-geosql"
	"github.com/tingold/orb-geosql/internal/config"
	"github.com/tingold/orb-geosql/internal/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv(config.EnvPrefix + "CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	log := logger.Build(logger.Config{
		Level:     cfg.Log.Level,
		Console:   cfg.Log.Console,
		Component: "demo-server",
	}, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	db, err := sql.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.DB.Driver, err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", cfg.DB.Driver, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := geosql.NewMetrics(reg)

	dialect, err := openDialect(ctx, cfg, db, log, metrics)
	if err != nil {
		return err
	}
	rw := geosql.NewRewriter(dialect, geosql.WithStatementCacheSize(cfg.Rewrite.StatementCacheSize))

	st := newStore(db, rw, cfg.Rewrite.Enabled, log)
	if err := st.migrate(ctx); err != nil {
		return err
	}
	if err := st.seed(ctx, sampleCities); err != nil {
		return err
	}

	a := &api{store: st, metrics: metrics, log: log}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(a, reg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("engine", dialect.Engine().String()).Msg("http listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// openDialect honors an explicit dialect in the config and otherwise asks
// the database.
func openDialect(ctx context.Context, cfg config.Config, db *sql.DB, log zerolog.Logger, m *geosql.Metrics) (geosql.Dialect, error) {
	opts := []geosql.DialectOption{
		geosql.WithCodec(cfg.Codec()),
		geosql.WithLogger(log),
		geosql.WithMetrics(m),
	}
	if cfg.AutoDetect() {
		return geosql.DetectDialect(ctx, db, opts...), nil
	}
	engine, err := geosql.ParseEngine(cfg.Dialect)
	if err != nil {
		return geosql.Dialect{}, err
	}
	return geosql.NewDialect(engine, opts...), nil
}
