package models

import (
	"encoding/json"
	"fmt"
)

// ExtractorKind tags the variant carried by an Extractor.
type ExtractorKind string

const (
	ExtractorDate          ExtractorKind = "date"
	ExtractorLookupTable   ExtractorKind = "lookup_table"
	ExtractorReferenceData ExtractorKind = "reference_data"
	ExtractorNumber        ExtractorKind = "number"
)

// YearType distinguishes calendar-year from fiscal/financial-year date
// dimensions.
type YearType string

const (
	YearTypeCalendar YearType = "calendar"
	YearTypeFinancial YearType = "financial"
	YearTypeMeeting   YearType = "meeting" // e.g. financial year starting on an arbitrary day/month
)

// DateExtractor configures the date-dimension builder (C4).
type DateExtractor struct {
	YearType             YearType `json:"year_type"`
	YearFormat           string   `json:"year_format,omitempty"`
	QuarterFormat        string   `json:"quarter_format,omitempty"`
	MonthFormat          string   `json:"month_format,omitempty"`
	DateFormat           string   `json:"date_format,omitempty"`
	TreatQuarter5AsTotal bool     `json:"treat_quarter5_as_total,omitempty"`
	StartDay             int      `json:"start_day,omitempty"`
	StartMonth           int      `json:"start_month,omitempty"`
}

// DescriptionColumn names the source column holding a lookup description in
// one language, used in wide-form lookup files.
type DescriptionColumn struct {
	Lang string `json:"lang"`
	Name string `json:"name"`
}

// LookupTableExtractor configures the lookup-dimension builder (C5).
type LookupTableExtractor struct {
	TableLanguage      string              `json:"table_language,omitempty"`
	IsWideForm         bool                `json:"is_wide_form"`
	DescriptionColumns []DescriptionColumn `json:"description_columns"`
	SortColumn         string              `json:"sort_column,omitempty"`
	HierarchyColumn    string              `json:"hierarchy_column,omitempty"`
	NotesColumns       []string            `json:"notes_columns,omitempty"`
	LanguageColumn     string              `json:"language_column,omitempty"`
}

// ReferenceDataExtractor configures the reference-data loader (C6).
type ReferenceDataExtractor struct {
	Categories []string `json:"categories"`
}

// NumberType distinguishes integer from decimal numeric dimensions.
type NumberType string

const (
	NumberInteger NumberType = "integer"
	NumberDecimal NumberType = "decimal"
)

// NumberExtractor configures a Numeric dimension.
type NumberExtractor struct {
	NumberType    NumberType `json:"number_type"`
	DecimalPlaces *int       `json:"decimal_places,omitempty"`
}

// Extractor is a tagged variant over {DateExtractor, LookupTableExtractor,
// ReferenceDataExtractor, NumberExtractor}, modelled as a sum type stored
// tagged in JSON. Unknown tags fail fast at decode and dispatch time.
type Extractor struct {
	Kind           ExtractorKind           `json:"kind"`
	Date           *DateExtractor          `json:"date,omitempty"`
	LookupTable    *LookupTableExtractor   `json:"lookup_table,omitempty"`
	ReferenceData  *ReferenceDataExtractor `json:"reference_data,omitempty"`
	Number         *NumberExtractor        `json:"number,omitempty"`
}

// Validate ensures the tagged variant actually carries the payload its Kind
// promises, failing fast on malformed/unknown extractors rather than
// dispatching on a nil pointer later.
func (e *Extractor) Validate() error {
	switch e.Kind {
	case ExtractorDate:
		if e.Date == nil {
			return fmt.Errorf("extractor kind %q missing date payload", e.Kind)
		}
	case ExtractorLookupTable:
		if e.LookupTable == nil {
			return fmt.Errorf("extractor kind %q missing lookup_table payload", e.Kind)
		}
	case ExtractorReferenceData:
		if e.ReferenceData == nil {
			return fmt.Errorf("extractor kind %q missing reference_data payload", e.Kind)
		}
	case ExtractorNumber:
		if e.Number == nil {
			return fmt.Errorf("extractor kind %q missing number payload", e.Kind)
		}
	default:
		return fmt.Errorf("unknown extractor kind %q", e.Kind)
	}
	return nil
}

// UnmarshalJSON enforces that the payload matching Kind is present,
// independent of field ordering in the source document.
func (e *Extractor) UnmarshalJSON(data []byte) error {
	type alias Extractor
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = Extractor(a)
	return e.Validate()
}
