// Package datedim implements the date-dimension builder (C4): it derives a
// period lookup — one row per period per supported language — from the
// distinct raw values of a dataset's date-role fact column.
package datedim

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
	"github.com/ekaya-inc/cubebuilder/pkg/columnar"
	"github.com/ekaya-inc/cubebuilder/pkg/lookupdim"
	"github.com/ekaya-inc/cubebuilder/pkg/models"
)

const stage = "date_dimension"

// PeriodType classifies the granularity a raw date value parsed to.
type PeriodType string

const (
	PeriodYear    PeriodType = "year"
	PeriodQuarter PeriodType = "quarter"
	PeriodMonth   PeriodType = "month"
	PeriodDay     PeriodType = "day"
	// PeriodTotal is the annual-total row produced from a "quarter 5" raw
	// value when the extractor's TreatQuarter5AsTotal is set.
	PeriodTotal PeriodType = "total"
)

// welshMonths translates time.Month (1-indexed) to its Welsh name; Go's
// standard library has no locale-aware time formatting, so month/day
// descriptions in "cy" are built by hand rather than through time.Format.
var welshMonths = [...]string{
	"Ionawr", "Chwefror", "Mawrth", "Ebrill", "Mai", "Mehefin",
	"Gorffennaf", "Awst", "Medi", "Hydref", "Tachwedd", "Rhagfyr",
}

// Period is one row of the date dimension for one language.
type Period struct {
	Code        string
	Language    string
	Description string
	Hierarchy   string // parent period code, empty for the top of the hierarchy
	Type        PeriodType
	Start       time.Time
	End         time.Time
}

// Builder derives the date dimension from a fact column's distinct values.
type Builder struct {
	engine    *columnar.Engine
	languages []string
}

// New creates a Builder that will emit one row set per language in languages.
func New(engine *columnar.Engine, languages []string) *Builder {
	return &Builder{engine: engine, languages: languages}
}

// Build reads the distinct values of factColumn from the fact table,
// parses each against extractor, and returns the resulting periods (one
// set per supported language) along with the overall min/max covered date,
// used to stamp the dataset's start_date/end_date metadata.
func (b *Builder) Build(ctx context.Context, factTable, factColumn string, extractor *models.DateExtractor) ([]Period, time.Time, time.Time, error) {
	values, err := b.distinctValues(ctx, factTable, factColumn)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	if len(values) == 0 {
		return nil, time.Time{}, time.Time{}, apperrors.Newf(apperrors.FactColumnMissing, stage, "fact column %q has no values", factColumn)
	}

	var periods []Period
	var minDate, maxDate time.Time
	for _, raw := range values {
		parsed, ptype, err := parse(raw, extractor)
		if err != nil {
			return nil, time.Time{}, time.Time{}, apperrors.New(apperrors.FactColumnMissing, stage, err).WithField(factColumn)
		}
		start, end := bounds(parsed, ptype)
		if minDate.IsZero() || start.Before(minDate) {
			minDate = start
		}
		if maxDate.IsZero() || end.After(maxDate) {
			maxDate = end
		}

		for _, lang := range b.languages {
			periods = append(periods, Period{
				Code:        raw,
				Language:    lang,
				Description: describe(parsed, ptype, lang, extractor),
				Hierarchy:   hierarchyParent(raw, ptype),
				Type:        ptype,
				Start:       start,
				End:         end,
			})
		}
	}

	sort.Slice(periods, func(i, j int) bool {
		if periods[i].Language != periods[j].Language {
			return periods[i].Language < periods[j].Language
		}
		return periods[i].Start.Before(periods[j].Start)
	})
	return periods, minDate, maxDate, nil
}

// WriteTable materialises periods into table using the same canonical
// lookup column shape pkg/lookupdim builds, so the view builder can join a
// DatePeriod dimension's period table exactly like any other dimension
// lookup. A period's sort_order is its end-of-period Unix timestamp, giving
// the view builder's "date-period end" ordering requirement a single
// numeric column to sort on.
func (b *Builder) WriteTable(ctx context.Context, periods []Period, table string) error {
	query := fmt.Sprintf(`CREATE OR REPLACE TABLE %s (
		%s VARCHAR, %s VARCHAR, %s VARCHAR, %s VARCHAR, %s VARCHAR, %s VARCHAR
	)`, table, lookupdim.ColCode, lookupdim.ColLanguage, lookupdim.ColDescription,
		lookupdim.ColSortOrder, lookupdim.ColHierarchy, lookupdim.ColNotes)
	if err := b.engine.Exec(ctx, query); err != nil {
		return apperrors.New(apperrors.FactColumnMissing, stage, err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s VALUES (?, ?, ?, ?, ?, NULL)`, table)
	for _, p := range periods {
		var hierarchy any
		if p.Hierarchy != "" {
			hierarchy = p.Hierarchy
		}
		if err := b.engine.Exec(ctx, insert, p.Code, p.Language, p.Description, fmt.Sprintf("%d", p.End.Unix()), hierarchy); err != nil {
			return apperrors.New(apperrors.FactColumnMissing, stage, err)
		}
	}
	return nil
}

func (b *Builder) distinctValues(ctx context.Context, factTable, factColumn string) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT %q FROM %s WHERE %q IS NOT NULL ORDER BY %q`, factColumn, factTable, factColumn, factColumn)
	rows, err := b.engine.Query(ctx, query)
	if err != nil {
		return nil, apperrors.New(apperrors.FactColumnMissing, stage, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, apperrors.New(apperrors.FactColumnMissing, stage, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// parse interprets a raw fact value as a year, year-quarter, year-month or
// full date, based on its shape (the extractor's formats describe how to
// render the parsed value back out, not how to recognise it).
func parse(raw string, extractor *models.DateExtractor) (time.Time, PeriodType, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, PeriodDay, nil
	}
	if t, err := time.Parse("2006-01", raw); err == nil {
		return t, PeriodMonth, nil
	}
	if len(raw) == 6 && raw[4] == 'Q' {
		var year, quarter int
		if _, err := fmt.Sscanf(raw, "%4dQ%d", &year, &quarter); err == nil {
			if quarter >= 1 && quarter <= 4 {
				month := (quarter-1)*3 + 1
				return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), PeriodQuarter, nil
			}
			if quarter == 5 && extractor.TreatQuarter5AsTotal {
				return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), PeriodTotal, nil
			}
		}
	}
	if t, err := time.Parse("2006", raw); err == nil {
		if extractor.YearType == models.YearTypeFinancial || extractor.YearType == models.YearTypeMeeting {
			month := extractor.StartMonth
			if month == 0 {
				month = 4
			}
			day := extractor.StartDay
			if day == 0 {
				day = 1
			}
			return time.Date(t.Year(), time.Month(month), day, 0, 0, 0, 0, time.UTC), PeriodYear, nil
		}
		return t, PeriodYear, nil
	}
	return time.Time{}, "", fmt.Errorf("value %q does not match any supported date shape", raw)
}

func bounds(start time.Time, ptype PeriodType) (time.Time, time.Time) {
	switch ptype {
	case PeriodYear, PeriodTotal:
		return start, start.AddDate(1, 0, -1)
	case PeriodQuarter:
		return start, start.AddDate(0, 3, -1)
	case PeriodMonth:
		return start, start.AddDate(0, 1, -1)
	default:
		return start, start
	}
}

func hierarchyParent(raw string, ptype PeriodType) string {
	switch ptype {
	case PeriodQuarter:
		return raw[:4]
	case PeriodMonth:
		return raw[:4]
	case PeriodDay:
		return raw[:7]
	default:
		return ""
	}
}

// describe renders a period's display description in the given language.
// An extractor format field, when set, is a literal override applied the
// same way in every language (it describes *how* to render a value the
// caller already chose, not a per-language template); its absence falls
// back to this package's own "en"/"cy" wording.
func describe(start time.Time, ptype PeriodType, lang string, extractor *models.DateExtractor) string {
	switch ptype {
	case PeriodYear:
		return formatYear(start, extractor)
	case PeriodTotal:
		year := formatYear(start, extractor)
		if lang == "cy" {
			return fmt.Sprintf("Cyfanswm %s", year)
		}
		return fmt.Sprintf("Total %s", year)
	case PeriodQuarter:
		quarter := (int(start.Month())-1)/3 + 1
		if extractor.QuarterFormat != "" {
			return fmt.Sprintf(extractor.QuarterFormat, quarter, start.Year())
		}
		if lang == "cy" {
			return fmt.Sprintf("Chwarter %d %d", quarter, start.Year())
		}
		return fmt.Sprintf("Quarter %d %d", quarter, start.Year())
	case PeriodMonth:
		if extractor.MonthFormat != "" {
			return start.Format(extractor.MonthFormat)
		}
		if lang == "cy" {
			return fmt.Sprintf("%s %d", welshMonths[start.Month()-1], start.Year())
		}
		return start.Format("January 2006")
	default:
		if extractor.DateFormat != "" {
			return start.Format(extractor.DateFormat)
		}
		if lang == "cy" {
			return fmt.Sprintf("%d %s %d", start.Day(), welshMonths[start.Month()-1], start.Year())
		}
		return start.Format("2 January 2006")
	}
}

func formatYear(start time.Time, extractor *models.DateExtractor) string {
	if extractor.YearFormat != "" {
		return start.Format(extractor.YearFormat)
	}
	return fmt.Sprintf("%d", start.Year())
}
