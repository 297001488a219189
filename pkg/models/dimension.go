package models

import (
	"github.com/google/uuid"
)

// DimensionType classifies how a dimension's description/validation is
// derived.
type DimensionType string

const (
	DimensionRaw           DimensionType = "Raw"
	DimensionNumeric       DimensionType = "Numeric"
	DimensionText          DimensionType = "Text"
	DimensionSymbol        DimensionType = "Symbol"
	DimensionDate          DimensionType = "Date"
	DimensionDatePeriod    DimensionType = "DatePeriod"
	DimensionLookupTable   DimensionType = "LookupTable"
	DimensionReferenceData DimensionType = "ReferenceData"
)

// Dimension is one categorical (or temporal) axis of the fact table.
type Dimension struct {
	ID              uuid.UUID     `json:"id"`
	DatasetID       uuid.UUID     `json:"dataset_id"`
	FactTableColumn string        `json:"fact_table_column"`
	Type            DimensionType `json:"type"`
	Extractor       *Extractor    `json:"extractor,omitempty"`
	// LookupTable is the staged lookup file reference for LookupTable dimensions.
	LookupTable *uuid.UUID `json:"lookup_table,omitempty"`
	// JoinColumn optionally overrides join-column inference in the lookup
	// builder (C5).
	JoinColumn string `json:"join_column,omitempty"`
}

// SanitisedLookupName returns the canonical lookup table name for this
// dimension: `{sanitised(fact_column)}_lookup`.
func (d *Dimension) SanitisedLookupName(sanitise func(string) string) string {
	return sanitise(d.FactTableColumn) + "_lookup"
}
