package geosql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultStatementCacheSize is the number of rewritten statements a
// Rewriter remembers unless configured otherwise.
const DefaultStatementCacheSize = 512

// RewriterOption configures a Rewriter.
type RewriterOption func(*Rewriter)

// WithColumnCache sets the cache RewriteEntity reads entity columns from.
func WithColumnCache(c *ColumnCache) RewriterOption {
	return func(r *Rewriter) { r.columns = c }
}

// WithStatementCacheSize bounds the memoized statements. Zero or less
// disables memoization.
func WithStatementCacheSize(n int) RewriterOption {
	return func(r *Rewriter) { r.cacheSize = n }
}

// Rewriter edits the select list of read queries so geometry columns come
// back as hex text. It never fails: on any internal problem the statement is
// returned unchanged and a warning is logged. A Rewriter is safe for
// concurrent use.
type Rewriter struct {
	dialect   Dialect
	columns   *ColumnCache
	cacheSize int
	cache     *lru.Cache[string, string]
}

// NewRewriter returns a Rewriter for d. It logs and records metrics through
// the dialect's logger and metrics.
func NewRewriter(d Dialect, opts ...RewriterOption) *Rewriter {
	r := &Rewriter{
		dialect:   d,
		columns:   &ColumnCache{},
		cacheSize: DefaultStatementCacheSize,
	}
	for _, o := range opts {
		o(r)
	}
	if r.cacheSize > 0 {
		// only fails for a non-positive size
		r.cache, _ = lru.New[string, string](r.cacheSize)
	}
	return r
}

// Dialect returns the dialect used to wrap columns.
func (r *Rewriter) Dialect() Dialect { return r.dialect }

// RewriteEntity rewrites sql using the columns of entity's type.
func (r *Rewriter) RewriteEntity(sql string, entity any) string {
	cols, err := r.columns.Lookup(entity)
	if err != nil {
		r.fallback(sql, err)
		return sql
	}
	return r.Rewrite(sql, cols.Geometry, cols.All)
}

// Rewrite wraps the geometry columns selected by sql. allColumns is the
// ordered column list used to expand a wildcard select; without it a
// wildcard is left alone. Statements other than SELECT are returned as is.
func (r *Rewriter) Rewrite(sql string, geometryColumns, allColumns []string) string {
	if len(geometryColumns) == 0 || !isSelect(sql) {
		return sql
	}

	key := r.cacheKey(sql, geometryColumns, allColumns)
	if r.cache != nil {
		if out, ok := r.cache.Get(key); ok {
			r.dialect.metrics.rewrite(outcomeCached)
			return out
		}
	}

	out, err := r.rewrite(sql, geometryColumns, allColumns)
	if err != nil {
		r.fallback(sql, err)
		return sql
	}
	if out == sql {
		r.dialect.metrics.rewrite(outcomeUnchanged)
	} else {
		r.dialect.metrics.rewrite(outcomeRewritten)
		r.dialect.log.Debug().
			Str("engine", r.dialect.engine.String()).
			Str("original", sql).
			Str("rewritten", out).
			Msg("rewrote geometry columns")
	}
	if r.cache != nil {
		r.cache.Add(key, out)
	}
	return out
}

func (r *Rewriter) fallback(sql string, err error) {
	r.dialect.metrics.rewrite(outcomeFallback)
	r.dialect.log.Warn().
		Err(err).
		Str("sql_fingerprint", fingerprint(sql)).
		Msg("query rewrite failed, using original SQL")
}

func (r *Rewriter) rewrite(sql string, geometryColumns, allColumns []string) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("geosql: rewrite panic: %v", p)
		}
	}()

	clause, ok, err := parseSelect(sql)
	if err != nil || !ok {
		return sql, err
	}
	items, err := splitItems(sql, clause.list)
	if err != nil {
		return sql, err
	}
	table, alias := fromTarget(sql[clause.from:])
	geom := newColumnSet(geometryColumns)

	var b strings.Builder
	last, changed := 0, false
	for _, it := range items {
		repl, ok := r.rewriteItem(it.text(sql), geom, allColumns, table, alias)
		if !ok {
			continue
		}
		b.WriteString(sql[last:it.start])
		b.WriteString(repl)
		last, changed = it.end, true
	}
	if !changed {
		return sql, nil
	}
	b.WriteString(sql[last:])
	return b.String(), nil
}

func (r *Rewriter) rewriteItem(item string, geom columnSet, all []string, table, alias string) (string, bool) {
	if item == "*" || strings.HasSuffix(item, ".*") {
		return r.expandWildcard(item, geom, all, table, alias)
	}
	// functions, aggregates and columns already wrapped
	if strings.ContainsRune(item, '(') {
		return "", false
	}
	ref, as, ok := splitAlias(item)
	if !ok || !geom.has(bareName(ref)) {
		return "", false
	}
	if as == "" {
		as = bareName(ref)
	}
	return r.dialect.WrapExpr(ref) + " AS " + as, true
}

// expandWildcard replaces "*", or "q.*" where q names the FROM table, with
// the entity's column list.
func (r *Rewriter) expandWildcard(item string, geom columnSet, all []string, table, alias string) (string, bool) {
	if len(all) == 0 {
		return "", false
	}
	var prefix string
	if item == "*" {
		if alias != "" {
			prefix = alias + "."
		}
	} else {
		q := strings.TrimSuffix(item, ".*")
		name := bareName(q)
		if !strings.EqualFold(name, alias) && !strings.EqualFold(name, bareName(table)) {
			return "", false
		}
		prefix = q + "."
	}

	cols := make([]string, len(all))
	for i, c := range all {
		if geom.has(c) {
			cols[i] = r.dialect.WrapColumnForSelect(prefix + c)
		} else {
			cols[i] = prefix + c
		}
	}
	return strings.Join(cols, ", "), true
}

func (r *Rewriter) cacheKey(sql string, geometryColumns, allColumns []string) string {
	var b strings.Builder
	b.Grow(len(sql) + 64)
	b.WriteString(strconv.Itoa(int(r.dialect.engine)))
	b.WriteByte(0)
	b.WriteString(strings.Join(geometryColumns, ","))
	b.WriteByte(0)
	b.WriteString(strings.Join(allColumns, ","))
	b.WriteByte(0)
	b.WriteString(sql)
	return b.String()
}

// fingerprint identifies a statement in logs without echoing it.
func fingerprint(sql string) string {
	return strconv.FormatUint(xxhash.Sum64String(sql), 16)
}

// columnSet matches column names case-insensitively, also trying the
// snake_case form of the candidate.
type columnSet map[string]struct{}

func newColumnSet(names []string) columnSet {
	s := make(columnSet, len(names))
	for _, n := range names {
		s[strings.ToLower(bareName(n))] = struct{}{}
	}
	return s
}

func (s columnSet) has(name string) bool {
	if _, ok := s[strings.ToLower(name)]; ok {
		return true
	}
	_, ok := s[snakeCase(name)]
	return ok
}
