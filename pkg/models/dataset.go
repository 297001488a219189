package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Dataset is the top-level entity a cube is built for: an ordered fact-table
// schema, at most one measure, any number of dimensions, and the revision
// history that the fact table is assembled from.
type Dataset struct {
	ID         uuid.UUID         `json:"id"`
	GroupID    uuid.UUID         `json:"group_id"`
	Columns    []FactTableColumn `json:"columns"`
	Measure    *Measure          `json:"measure,omitempty"`
	Dimensions []Dimension       `json:"dimensions"`
	Metadata   map[string]string `json:"metadata"` // per-language title/description etc, keyed "field.lang"
	CreatedAt  time.Time         `json:"created_at"`
}

// GrainColumns returns the ordered set of columns forming the fact table's
// composite primary key: every column whose role is Dimension, Time, or
// Measure, in FactTableColumn.Index order.
func (d *Dataset) GrainColumns() []FactTableColumn {
	cols := make([]FactTableColumn, 0, len(d.Columns))
	for _, c := range d.Columns {
		if c.Role == RoleDimension || c.Role == RoleTime || c.Role == RoleMeasure {
			cols = append(cols, c)
		}
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Index < cols[j].Index })
	return cols
}

// ColumnByRole returns the single column with the given role, if any. Only
// Measure, DataValues and NoteCodes are expected to be singletons; for
// Dimension/Time, which may have several columns, it returns the first.
func (d *Dataset) ColumnByRole(role FactTableColumnRole) (FactTableColumn, bool) {
	for _, c := range d.Columns {
		if c.Role == role {
			return c, true
		}
	}
	return FactTableColumn{}, false
}

// DimensionFor returns the Dimension configured for a given fact column name.
func (d *Dataset) DimensionFor(factColumn string) (Dimension, bool) {
	for _, dim := range d.Dimensions {
		if dim.FactTableColumn == factColumn {
			return dim, true
		}
	}
	return Dimension{}, false
}
