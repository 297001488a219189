package models

import (
	"github.com/google/uuid"
)

// MeasureFormat is the closed set of value-formatting styles a measure row
// may request.
type MeasureFormat string

const (
	FormatDecimal    MeasureFormat = "decimal"
	FormatFloat      MeasureFormat = "float"
	FormatInteger    MeasureFormat = "integer"
	FormatLong       MeasureFormat = "long"
	FormatPercentage MeasureFormat = "percentage"
	FormatString     MeasureFormat = "string"
	FormatText       MeasureFormat = "text"
	FormatDate       MeasureFormat = "date"
	FormatDateTime   MeasureFormat = "datetime"
	FormatTime       MeasureFormat = "time"
)

// MeasureRow is one reference value in the measure lookup table.
type MeasureRow struct {
	Reference   string        `json:"reference"`
	Language    string        `json:"language"`
	Description string        `json:"description"`
	Notes       *string       `json:"notes,omitempty"`
	SortOrder   *int          `json:"sort_order,omitempty"`
	Format      MeasureFormat `json:"format"`
	Decimals    *int          `json:"decimals,omitempty"`
	MeasureType *string       `json:"measure_type,omitempty"`
	Hierarchy   *string       `json:"hierarchy,omitempty"`
}

// Measure describes the dataset's single data-value column: like a
// dimension, but backed by a measure table of formatting rows rather than a
// lookup table.
type Measure struct {
	ID              uuid.UUID    `json:"id"`
	DatasetID       uuid.UUID    `json:"dataset_id"`
	FactTableColumn string       `json:"fact_table_column"`
	MeasureTable    []MeasureRow `json:"measure_table"`
}
