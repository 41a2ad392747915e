package geosql

import (
	"errors"
	"regexp"
	"strings"
)

var (
	errUnterminatedQuote = errors.New("geosql: unterminated quoted text in SQL")
	errUnbalancedParens  = errors.New("geosql: unbalanced parentheses in SQL")
)

var setOperators = []string{"UNION", "INTERSECT", "EXCEPT"}

// span is a half-open byte range of a SQL string.
type span struct{ start, end int }

func (s span) text(sql string) string { return sql[s.start:s.end] }

// selectClause locates the parts of a SELECT statement the rewriter edits.
type selectClause struct {
	list span // select list, whitespace trimmed
	from int  // offset of the top-level FROM keyword
}

func isSelect(sql string) bool {
	return keywordAt(sql, skipSpace(sql, 0), "SELECT")
}

// parseSelect finds the select list of sql. ok is false when sql is not a
// single SELECT with a top-level FROM.
func parseSelect(sql string) (c selectClause, ok bool, err error) {
	i := skipSpace(sql, 0)
	if !keywordAt(sql, i, "SELECT") {
		return c, false, nil
	}
	i = skipSpace(sql, i+len("SELECT"))
	for _, mod := range []string{"DISTINCT", "ALL"} {
		if keywordAt(sql, i, mod) {
			i = skipSpace(sql, i+len(mod))
			break
		}
	}

	from := -1
	err = scanTopLevel(sql, i, len(sql), func(j int) bool {
		if keywordAt(sql, j, "FROM") {
			from = j
			return false
		}
		return true
	})
	if err != nil || from < 0 {
		return c, false, err
	}

	// compound statements carry more than one select list
	compound := false
	err = scanTopLevel(sql, from, len(sql), func(j int) bool {
		for _, op := range setOperators {
			if keywordAt(sql, j, op) {
				compound = true
				return false
			}
		}
		return true
	})
	if err != nil || compound {
		return c, false, err
	}

	c.list = trimSpan(sql, span{i, from})
	c.from = from
	return c, c.list.start < c.list.end, nil
}

// splitItems splits a select list on its top-level commas.
func splitItems(sql string, list span) ([]span, error) {
	var items []span
	start := list.start
	err := scanTopLevel(sql, list.start, list.end, func(i int) bool {
		if sql[i] == ',' {
			items = append(items, trimSpan(sql, span{start, i}))
			start = i + 1
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return append(items, trimSpan(sql, span{start, list.end})), nil
}

// scanTopLevel calls visit for every byte in sql[from:to] that is outside
// quotes and parentheses, until visit returns false.
func scanTopLevel(sql string, from, to int, visit func(i int) bool) error {
	depth := 0
	for i := from; i < to; i++ {
		switch c := sql[i]; c {
		case '\'', '"', '`':
			end := closingQuote(sql, i, to)
			if end < 0 {
				return errUnterminatedQuote
			}
			i = end
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return errUnbalancedParens
			}
		default:
			if depth == 0 && !visit(i) {
				return nil
			}
		}
	}
	if depth != 0 {
		return errUnbalancedParens
	}
	return nil
}

// closingQuote returns the offset of the quote closing the one at open, or -1.
// A doubled quote character is an escaped quote.
func closingQuote(sql string, open, to int) int {
	q := sql[open]
	for i := open + 1; i < to; i++ {
		if sql[i] != q {
			continue
		}
		if i+1 < to && sql[i+1] == q {
			i++
			continue
		}
		return i
	}
	return -1
}

func keywordAt(sql string, i int, kw string) bool {
	j := i + len(kw)
	if i < 0 || j > len(sql) || !strings.EqualFold(sql[i:j], kw) {
		return false
	}
	if i > 0 && (isIdentByte(sql[i-1]) || sql[i-1] == '.') {
		return false
	}
	return j == len(sql) || !isIdentByte(sql[j])
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func skipSpace(sql string, i int) int {
	for i < len(sql) && isSpace(sql[i]) {
		i++
	}
	return i
}

func trimSpan(sql string, s span) span {
	for s.start < s.end && isSpace(sql[s.start]) {
		s.start++
	}
	for s.end > s.start && isSpace(sql[s.end-1]) {
		s.end--
	}
	return s
}

// splitAlias splits a select item of the form "ref", "ref alias" or
// "ref AS alias".
func splitAlias(item string) (ref, alias string, ok bool) {
	f := strings.Fields(item)
	switch {
	case len(f) == 1:
		return f[0], "", true
	case len(f) == 2 && !strings.EqualFold(f[1], "AS"):
		return f[0], f[1], true
	case len(f) == 3 && strings.EqualFold(f[1], "AS"):
		return f[0], f[2], true
	default:
		return "", "", false
	}
}

const sqlIdent = "(?:[A-Za-z0-9_$]+|`[^`]+`|\"[^\"]+\")"

var fromTargetRE = regexp.MustCompile(`(?is)^FROM\s+(` + sqlIdent + `(?:\.` + sqlIdent + `)*)(?:\s+(?:AS\s+)?([A-Za-z_][A-Za-z0-9_$]*))?`)

// sqlKeywords can follow a table name and must not be mistaken for an alias.
var sqlKeywords = map[string]bool{
	"AS": true, "WHERE": true, "ORDER": true, "GROUP": true, "HAVING": true,
	"LIMIT": true, "OFFSET": true, "FETCH": true, "FOR": true, "WINDOW": true,
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
	"CROSS": true, "NATURAL": true, "OUTER": true, "STRAIGHT_JOIN": true,
	"ON": true, "USING": true, "UNION": true, "INTERSECT": true, "EXCEPT": true,
	"LOCK": true, "PARTITION": true, "USE": true, "FORCE": true, "IGNORE": true,
	"TABLESAMPLE": true,
}

// fromTarget returns the first table named after FROM and its alias, if any.
func fromTarget(fromClause string) (table, alias string) {
	m := fromTargetRE.FindStringSubmatch(fromClause)
	if m == nil {
		return "", ""
	}
	table, alias = m[1], m[2]
	if sqlKeywords[strings.ToUpper(alias)] {
		alias = ""
	}
	return table, alias
}
