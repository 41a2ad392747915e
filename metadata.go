package geosql

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
)

// Columns describes the persisted columns of an entity type.
type Columns struct {
	// All lists every persisted column in field order.
	All []string
	// Geometry lists the columns holding geometry values, in field order.
	Geometry []string
}

// IsGeometry reports whether the column name refers to, ignoring any table
// qualifier, is a geometry column. The snake_case form of name also matches.
func (c Columns) IsGeometry(name string) bool {
	return newColumnSet(c.Geometry).has(bareName(name))
}

var (
	geometryType     = reflect.TypeOf(Geometry{})
	nullGeometryType = reflect.TypeOf(NullGeometry{})
)

// ColumnCache maps entity types to their Columns. Lookups after the first for
// a type do not lock. The zero value is ready to use.
type ColumnCache struct {
	entries sync.Map // reflect.Type -> Columns
	mu      sync.Mutex
}

// Lookup returns the columns of entity, which must be a struct or a pointer
// to one.
func (c *ColumnCache) Lookup(entity any) (Columns, error) {
	if entity == nil {
		return Columns{}, errors.New("geosql: nil entity")
	}
	return c.LookupType(reflect.TypeOf(entity))
}

// LookupType returns the columns of t, building and caching them on first use.
func (c *ColumnCache) LookupType(t reflect.Type) (Columns, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return Columns{}, fmt.Errorf("geosql: entity type %v is not a struct", t)
	}
	if v, ok := c.entries.Load(t); ok {
		return v.(Columns), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.entries.Load(t); ok {
		return v.(Columns), nil
	}
	cols := buildColumns(t)
	c.entries.Store(t, cols)
	return cols, nil
}

// Register stores cols for t, replacing anything derived by reflection.
func (c *ColumnCache) Register(t reflect.Type, cols Columns) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	c.mu.Lock()
	c.entries.Store(t, cols)
	c.mu.Unlock()
}

// Clear drops every cached entry.
func (c *ColumnCache) Clear() {
	c.mu.Lock()
	c.entries.Range(func(k, _ any) bool {
		c.entries.Delete(k)
		return true
	})
	c.mu.Unlock()
}

func buildColumns(t reflect.Type) Columns {
	var cols Columns
	collectColumns(t, &cols)
	return cols
}

func collectColumns(t reflect.Type, cols *Columns) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("db")
		if tag == "-" {
			continue
		}

		ft := f.Type
		if f.Anonymous && tag == "" {
			for ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct && ft != geometryType && ft != nullGeometryType {
				collectColumns(ft, cols)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}

		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = snakeCase(f.Name)
		}
		cols.All = append(cols.All, name)
		if isGeometryField(f) {
			cols.Geometry = append(cols.Geometry, name)
		}
	}
}

func isGeometryField(f reflect.StructField) bool {
	if f.Tag.Get("geosql") == "geometry" {
		return true
	}
	t := f.Type
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t == geometryType || t == nullGeometryType
}

// snakeCase converts a Go or camelCase identifier to snake_case, keeping
// initialisms together: "ZoneID" becomes "zone_id", "HTTPServer" "http_server".
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
