// Package notecodes implements the note-code builder (C8): fact rows carry
// a comma-separated list of note codes from a closed, fixed vocabulary;
// this package expands that list into human-readable, per-language
// descriptions joined onto each fact row.
package notecodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
)

const stage = "note_codes"

// Code is one entry in the closed note-code vocabulary.
type Code struct {
	Code        string
	Language    string
	Description string
}

// codes is the closed set of note codes this build understands. A note
// code not in this table is a BadNoteCodes failure, not a silent pass-through.
var codes = []Code{
	{"p", "en", "provisional"}, {"p", "cy", "dros dro"},
	{"r", "en", "revised"}, {"r", "cy", "diwygiedig"},
	{"e", "en", "estimated"}, {"e", "cy", "amcangyfrifedig"},
	{"c", "en", "confidential"}, {"c", "cy", "cyfrinachol"},
	{"x", "en", "not available"}, {"x", "cy", "ddim ar gael"},
	{"z", "en", "not applicable"}, {"z", "cy", "ddim yn gymwys"},
	{"u", "en", "unreliable"}, {"u", "cy", "anheyaddiadwy"},
	{"low", "en", "low reliability"}, {"low", "cy", "dibynadwyedd isel"},
	{"disc", "en", "discontinued"}, {"disc", "cy", "wedi dod i ben"},
	{"br", "en", "break in time series"}, {"br", "cy", "toriad yn y gyfres amser"},
	{"ns", "en", "not statistically significant"}, {"ns", "cy", "nid yw'n ystadegol arwyddocaol"},
	{"sup", "en", "suppressed"}, {"sup", "cy", "wedi'i atal"},
	{"new", "en", "new series"}, {"new", "cy", "cyfres newydd"},
	{"rec", "en", "recalculated"}, {"rec", "cy", "ailgyfrifwyd"},
	{"exp", "en", "experimental statistics"}, {"exp", "cy", "ystadegau arbrofol"},
	{"adj", "en", "seasonally adjusted"}, {"adj", "cy", "wedi'i addasu'n dymhorol"},
	{"f", "en", "forecast"}, {"f", "cy", "rhagolwg"},
}

// Table name the builder materialises the vocabulary into.
const Table = "note_codes"

// AllNotesColumn is the column name the joined per-row description list is
// projected under.
const AllNotesColumn = "all_notes"

// Builder joins a fact table's comma-separated note-code column against the
// closed vocabulary.
type Builder struct {
	engine *columnar.Engine
}

// New creates a Builder writing into engine.
func New(engine *columnar.Engine) *Builder {
	return &Builder{engine: engine}
}

// EnsureVocabulary materialises the closed note-code table once per build.
func (b *Builder) EnsureVocabulary(ctx context.Context) error {
	if err := b.engine.Exec(ctx, fmt.Sprintf(`CREATE OR REPLACE TABLE %s (code VARCHAR, language VARCHAR, description VARCHAR)`, Table)); err != nil {
		return apperrors.New(apperrors.NoNoteCodes, stage, err)
	}
	insert := fmt.Sprintf(`INSERT INTO %s VALUES (?, ?, ?)`, Table)
	for _, c := range codes {
		if err := b.engine.Exec(ctx, insert, c.Code, c.Language, c.Description); err != nil {
			return apperrors.New(apperrors.NoNoteCodes, stage, err)
		}
	}
	return nil
}

// ValidateCodes rejects any distinct note code present in factTable's
// noteCodesColumn that is not in the closed vocabulary.
func (b *Builder) ValidateCodes(ctx context.Context, factTable, noteCodesColumn string) error {
	query := fmt.Sprintf(`
		SELECT DISTINCT TRIM(code) FROM (
			SELECT UNNEST(STRING_SPLIT(%s, ',')) AS code FROM %s WHERE %s IS NOT NULL
		) WHERE TRIM(code) NOT IN (SELECT DISTINCT code FROM %s)`,
		quote(noteCodesColumn), factTable, quote(noteCodesColumn), Table,
	)
	rows, err := b.engine.Query(ctx, query)
	if err != nil {
		return apperrors.New(apperrors.BadNoteCodes, stage, err)
	}
	defer rows.Close()

	var bad []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return apperrors.New(apperrors.BadNoteCodes, stage, err)
		}
		if code != "" {
			bad = append(bad, code)
		}
	}
	if err := rows.Err(); err != nil {
		return apperrors.New(apperrors.BadNoteCodes, stage, err)
	}
	if len(bad) > 0 {
		return apperrors.Newf(apperrors.BadNoteCodes, stage, "unknown note code(s): %s", strings.Join(bad, ", "))
	}
	return nil
}

// AllNotesExpression returns the SQL expression that, for a given language,
// joins a row's comma-separated note codes into their descriptions, sorted
// and separated by ", ".
func AllNotesExpression(noteCodesColumn, language string) string {
	return fmt.Sprintf(`(
		SELECT STRING_AGG(nc.description, ', ' ORDER BY nc.description)
		FROM UNNEST(STRING_SPLIT(%s, ',')) AS code
		JOIN %s nc ON nc.code = TRIM(code) AND nc.language = %s
	)`, quote(noteCodesColumn), Table, literal(language))
}

func quote(name string) string  { return fmt.Sprintf("%q", name) }
func literal(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
