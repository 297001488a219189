package models

// FactTableColumnRole classifies a fact-table column's purpose in the grain
// and view projections.
type FactTableColumnRole string

const (
	RoleDimension  FactTableColumnRole = "Dimension"
	RoleTime       FactTableColumnRole = "Time"
	RoleMeasure    FactTableColumnRole = "Measure"
	RoleDataValues FactTableColumnRole = "DataValues"
	RoleNoteCodes  FactTableColumnRole = "NoteCodes"
	RoleUnknown    FactTableColumnRole = "Unknown"
)

// DataType is the physical column type used when creating staging and fact
// tables in the columnar engine / Postgres.
type DataType string

const (
	DataTypeText      DataType = "text"
	DataTypeBigInt    DataType = "bigint"
	DataTypeDouble    DataType = "double precision"
	DataTypeBoolean   DataType = "boolean"
	DataTypeDate      DataType = "date"
	DataTypeTimestamp DataType = "timestamp"
	DataTypeNumeric   DataType = "numeric"
)

// FactTableColumn describes one column of the dataset's fact table.
type FactTableColumn struct {
	Name     string              `json:"name"`
	DataType DataType            `json:"data_type"`
	Index    int                 `json:"index"`
	Role     FactTableColumnRole `json:"role"`
}
