// Package sqlutil provides the identifier sanitiser (C2) and the single
// escaping primitives the rest of the builder uses to compose SQL by string
// interpolation: one function escapes identifiers, one escapes literals.
// Per the design notes, nothing else in this module concatenates user input
// into SQL without going through these.
package sqlutil

import "strings"

// Sanitise maps an arbitrary column/table name to a safe SQL identifier:
// lower-case, spaces become underscores, any byte that isn't ASCII
// [a-z0-9_] is dropped. It is a pure, deterministic function — not
// injective in general, so callers must treat post-sanitisation name
// clashes as a configuration error to surface to the user, not silently
// merge.
func Sanitise(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			// drop
		}
	}
	return b.String()
}

// QuoteIdent double-quotes a SQL identifier, escaping embedded quotes the
// Postgres way (doubling them), the same discipline sqldef's generator uses
// for its Postgres escapeSQLName.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteQualified quotes a schema-qualified identifier, e.g. QuoteQualified("rev_123", "fact_table").
func QuoteQualified(schema, name string) string {
	return QuoteIdent(schema) + "." + QuoteIdent(name)
}

// QuoteIdentList quotes and comma-joins a list of identifiers, e.g. for a
// SELECT column list or CREATE TABLE column definition list.
func QuoteIdentList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// QuoteLiteral escapes a SQL string literal, doubling embedded single quotes.
// It does not add the surrounding quotes' dialect-specific prefix (e.g.
// Postgres's E'' for backslash escapes) since no value this module emits
// relies on backslash escapes.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
