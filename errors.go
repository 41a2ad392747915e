package geosql

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (directly or wrapped) by this package.
var (
	ErrUnsupportedKind       = errors.New("geosql: unsupported geometry kind")
	ErrRingNotClosed         = errors.New("geosql: ring is not closed")
	ErrInsufficientPoints    = errors.New("geosql: too few points")
	ErrInvalidCoordinatePair = errors.New("geosql: invalid coordinate pair")
	ErrNonFiniteCoordinate   = errors.New("geosql: coordinate is NaN or infinite")
	ErrSelfIntersection      = errors.New("geosql: geometry is not simple")
	ErrHoleOutsideShell      = errors.New("geosql: interior ring outside exterior ring")
)

// InvalidCoordinateError reports a longitude or latitude outside its valid range.
type InvalidCoordinateError struct {
	Axis  string // "longitude" or "latitude"
	Value float64
	Min   float64
	Max   float64
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("geosql: coordinate out of range: %s %v not in [%v, %v]", e.Axis, e.Value, e.Min, e.Max)
}

func longitudeError(v float64) error {
	return &InvalidCoordinateError{Axis: "longitude", Value: v, Min: -180, Max: 180}
}

func latitudeError(v float64) error {
	return &InvalidCoordinateError{Axis: "latitude", Value: v, Min: -90, Max: 90}
}

// MalformedGeoJSONError reports a structurally invalid GeoJSON document.
// Index is the offending coordinate position, or -1 when not applicable.
type MalformedGeoJSONError struct {
	Field  string
	Index  int
	Reason string
	Err    error
}

func (e *MalformedGeoJSONError) Error() string {
	msg := "geosql: malformed GeoJSON: " + e.Reason
	if e.Index >= 0 {
		msg += fmt.Sprintf(" at index %d", e.Index)
	}
	return msg + " [field=" + e.Field + "]"
}

func (e *MalformedGeoJSONError) Unwrap() error { return e.Err }

func malformed(field, reason string, err error) *MalformedGeoJSONError {
	return &MalformedGeoJSONError{Field: field, Index: -1, Reason: reason, Err: err}
}

// TypeMismatchError reports a GeoJSON "type" literal that does not match the
// geometry kind being decoded.
type TypeMismatchError struct {
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("geosql: invalid GeoJSON type: expected %s, got %s [field=type]", e.Expected, e.Actual)
}

// maxHexPrefix bounds the amount of input echoed back in a WKBParseError.
const maxHexPrefix = 40

// WKBParseError reports a malformed or truncated WKB payload.
type WKBParseError struct {
	HexPrefix string // at most the first 40 characters of the input
	Truncated bool   // whether HexPrefix is shorter than the input
	Err       error
}

func newWKBParseError(hexText string, err error) *WKBParseError {
	e := &WKBParseError{HexPrefix: hexText, Err: err}
	if len(hexText) > maxHexPrefix {
		e.HexPrefix = hexText[:maxHexPrefix]
		e.Truncated = true
	}
	return e
}

func (e *WKBParseError) Error() string {
	prefix := e.HexPrefix
	if e.Truncated {
		prefix += "..."
	}
	return fmt.Sprintf("geosql: failed to parse WKB %q: %v", prefix, e.Err)
}

func (e *WKBParseError) Unwrap() error { return e.Err }

// GeometryValidationError reports a parsed geometry that breaks a validity rule.
type GeometryValidationError struct {
	Kind   Kind
	Field  string
	Reason string
	Err    error
}

func (e *GeometryValidationError) Error() string {
	msg := fmt.Sprintf("geosql: invalid %s: %s", e.Kind, e.Reason)
	if e.Field != "" {
		msg += " [field=" + e.Field + "]"
	}
	return msg
}

func (e *GeometryValidationError) Unwrap() error { return e.Err }

// UnexpectedValueTypeError reports a database value the dialect cannot interpret.
type UnexpectedValueTypeError struct {
	Engine Engine
	Value  any
}

func (e *UnexpectedValueTypeError) Error() string {
	return fmt.Sprintf("geosql: unexpected database value type %T for %s", e.Value, e.Engine)
}
