package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	geosql "github.com/tingold/orb-geosql"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GEOSQL_"

// RewriteCfg controls the query rewriter.
type RewriteCfg struct {
	Enabled            bool `yaml:"enabled"`
	StatementCacheSize int  `yaml:"statement_cache_size"`
}

// LogCfg selects the log level and output format.
type LogCfg struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// DBCfg names the database/sql driver and its data source.
type DBCfg struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Config is the configuration shared by the CLI and the demo server.
type Config struct {
	DefaultSRID int `yaml:"default_srid"`
	// Dialect is "auto" or an engine name accepted by geosql.ParseEngine.
	Dialect      string     `yaml:"dialect"`
	ExteriorOnly bool       `yaml:"exterior_only"`
	Rewrite      RewriteCfg `yaml:"rewrite"`
	Log          LogCfg     `yaml:"log"`
	DB           DBCfg      `yaml:"db"`
	Addr         string     `yaml:"addr"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		DefaultSRID: geosql.DefaultSRID,
		Dialect:     "auto",
		Rewrite: RewriteCfg{
			Enabled:            true,
			StatementCacheSize: geosql.DefaultStatementCacheSize,
		},
		Log:  LogCfg{Level: "info"},
		DB:   DBCfg{Driver: "sqlite3", DSN: "file:geosql.db?cache=shared"},
		Addr: ":8080",
	}
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is not empty) and GEOSQL_* environment variables, in that order.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DefaultSRID = getint("DEFAULT_SRID", c.DefaultSRID)
	c.Dialect = getenv("DIALECT", c.Dialect)
	c.ExteriorOnly = getbool("EXTERIOR_ONLY", c.ExteriorOnly)
	c.Rewrite.Enabled = getbool("REWRITE_ENABLED", c.Rewrite.Enabled)
	c.Rewrite.StatementCacheSize = getint("STATEMENT_CACHE_SIZE", c.Rewrite.StatementCacheSize)
	c.Log.Level = getenv("LOG_LEVEL", c.Log.Level)
	c.Log.Console = getbool("LOG_CONSOLE", c.Log.Console)
	c.DB.Driver = getenv("DB_DRIVER", c.DB.Driver)
	c.DB.DSN = getenv("DB_DSN", c.DB.DSN)
	c.Addr = getenv("ADDR", c.Addr)
}

// Validate rejects negative sizes and unknown dialect names.
func (c Config) Validate() error {
	if c.DefaultSRID < 0 {
		return fmt.Errorf("default_srid must not be negative, got %d", c.DefaultSRID)
	}
	if !c.AutoDetect() {
		if _, err := geosql.ParseEngine(c.Dialect); err != nil {
			return err
		}
	}
	if c.Rewrite.StatementCacheSize < 0 {
		return fmt.Errorf("rewrite.statement_cache_size must not be negative, got %d", c.Rewrite.StatementCacheSize)
	}
	return nil
}

// AutoDetect reports whether the dialect should be detected from the database.
func (c Config) AutoDetect() bool {
	d := strings.ToLower(strings.TrimSpace(c.Dialect))
	return d == "" || d == "auto"
}

// Codec returns the binary codec described by the configuration.
func (c Config) Codec() geosql.Codec {
	return geosql.Codec{DefaultSRID: c.DefaultSRID, ExteriorOnly: c.ExteriorOnly}
}

func getenv(k, def string) string {
	if v := os.Getenv(EnvPrefix + k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(EnvPrefix + k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(EnvPrefix + k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
