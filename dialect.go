package geosql

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/rs/zerolog"
)

// Engine identifies a supported database engine family.
type Engine int

const (
	// EngineMySQL binds raw WKB bytes on write and reads columns through HEX().
	EngineMySQL Engine = iota
	// EnginePostgres binds hex text on write and reads columns through
	// encode(ST_AsBinary(...), 'hex').
	EnginePostgres
)

func (e Engine) String() string {
	switch e {
	case EngineMySQL:
		return "mysql"
	case EnginePostgres:
		return "postgresql"
	default:
		return fmt.Sprintf("Engine(%d)", int(e))
	}
}

// ParseEngine maps a configuration value onto an Engine.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", "mariadb":
		return EngineMySQL, nil
	case "postgresql", "postgres", "postgis", "pg":
		return EnginePostgres, nil
	default:
		return EngineMySQL, fmt.Errorf("geosql: unknown dialect %q", s)
	}
}

// DialectOption configures a Dialect.
type DialectOption func(*Dialect)

// WithCodec sets the codec used to encode write values and decode read values.
func WithCodec(c Codec) DialectOption {
	return func(d *Dialect) { d.codec = c }
}

// WithDefaultSRID sets the SRID substituted for geometries without one.
func WithDefaultSRID(srid int) DialectOption {
	return func(d *Dialect) { d.codec.DefaultSRID = srid }
}

// WithLogger sets the logger used for conversion diagnostics.
func WithLogger(l zerolog.Logger) DialectOption {
	return func(d *Dialect) { d.log = l }
}

// WithMetrics records decode failures on m.
func WithMetrics(m *Metrics) DialectOption {
	return func(d *Dialect) { d.metrics = m }
}

// Dialect packages geometry values for one engine and wraps geometry columns
// so the engine returns them as hex text. A Dialect is immutable and safe for
// concurrent use.
type Dialect struct {
	engine  Engine
	codec   Codec
	log     zerolog.Logger
	metrics *Metrics
}

// NewDialect returns the Dialect for engine.
func NewDialect(engine Engine, opts ...DialectOption) Dialect {
	d := Dialect{
		engine: engine,
		codec:  DefaultCodec,
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(&d)
	}
	return d
}

// Engine returns the engine this dialect targets.
func (d Dialect) Engine() Engine { return d.engine }

// Codec returns the binary codec used by the dialect.
func (d Dialect) Codec() Codec { return d.codec }

// InputPlaceholder returns the SQL placeholder for a geometry parameter.
// Both engines accept the packaged value without a conversion function.
func (d Dialect) InputPlaceholder() string { return "?" }

// WrapExpr returns the SELECT expression that makes the engine return column
// as hex text, without an alias.
func (d Dialect) WrapExpr(column string) string {
	if d.engine == EnginePostgres {
		return "encode(ST_AsBinary(" + column + "), 'hex')"
	}
	return "HEX(" + column + ")"
}

// WrapColumnForSelect returns WrapExpr(column) aliased back to the bare column
// name, e.g. "HEX(z.boundary) AS boundary".
func (d Dialect) WrapColumnForSelect(column string) string {
	return d.WrapExpr(column) + " AS " + bareName(column)
}

// ConvertForWrite returns the driver parameter for g: WKB bytes for MySQL,
// hex text for PostgreSQL.
func (d Dialect) ConvertForWrite(g Geometry) (driver.Value, error) {
	data, err := d.codec.EncodeBytes(g)
	if err != nil {
		return nil, err
	}
	if d.engine == EnginePostgres {
		return strings.ToUpper(hex.EncodeToString(data)), nil
	}
	return data, nil
}

// ParseFromRead decodes a value read from a wrapped geometry column. Only text
// is accepted, as a string or as the []byte many drivers use for text columns.
func (d Dialect) ParseFromRead(v any) (Geometry, error) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return Geometry{}, &UnexpectedValueTypeError{Engine: d.engine, Value: v}
	}

	g, err := d.decode(s)
	if err != nil {
		d.metrics.wkbDecodeError(d.engine)
		d.log.Debug().Err(err).Str("engine", d.engine.String()).Msg("geometry decode failed")
		return Geometry{}, err
	}
	return g, nil
}

func (d Dialect) decode(s string) (Geometry, error) {
	if d.engine != EnginePostgres {
		return d.codec.DecodeHex(s)
	}

	// ST_AsBinary yields plain WKB, which starts with a byte order flag
	// instead of an SRID. Both layouts are tried when the header fits both.
	data, err := hex.DecodeString(s)
	if err != nil {
		return Geometry{}, newWKBParseError(s, err)
	}
	plain := isPlainWKB(data)
	if hasSRIDPrefix(data) || !plain {
		g, err := d.codec.decode(data)
		if err == nil {
			return g, nil
		}
		if !plain {
			return Geometry{}, newWKBParseError(s, err)
		}
	}
	g, err := d.decodePlain(data)
	if err != nil {
		return Geometry{}, newWKBParseError(s, err)
	}
	return g, nil
}

// decodePlain parses WKB or EWKB without the SRID prefix.
func (d Dialect) decodePlain(data []byte) (Geometry, error) {
	body, srid, err := ewkb.Unmarshal(data)
	if err != nil {
		return Geometry{}, unsupportedBody(err)
	}
	n := len(data)
	if wkbType(data)&ewkbSRIDFlag != 0 {
		n -= sridSize
	}
	if err := consumed(body, n); err != nil {
		return Geometry{}, err
	}
	return fromWKBBody(body, resolveSRID(srid, d.codec.DefaultSRID))
}

// bareName strips a table qualifier and identifier quoting from a column reference.
func bareName(column string) string {
	name := strings.TrimSpace(column)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.Trim(name, "`\"[]")
}
