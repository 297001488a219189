package models

import (
	"github.com/google/uuid"
)

// FileType is the accepted set of data-table/lookup-file formats.
type FileType string

const (
	FileTypeCSV        FileType = "csv"
	FileTypeCSVGzip     FileType = "csv.gz"
	FileTypeParquet     FileType = "parquet"
	FileTypeJSON        FileType = "json"
	FileTypeJSONGzip    FileType = "json.gz"
	FileTypeSpreadsheet FileType = "xlsx"
)

// Action tells the fact-table assembler how to merge a data table's rows
// into the cumulative fact table.
type Action string

const (
	ActionReplaceAll Action = "ReplaceAll"
	ActionAdd        Action = "Add"
	ActionRevise     Action = "Revise"
	ActionAddRevise  Action = "AddRevise"
)

// DataTable is the file attached to a revision.
type DataTable struct {
	ID uuid.UUID `json:"id"`
	// RevisionID is populated by the repository layer; kept here so the
	// assembler can work from a flat slice of DataTable without a parallel
	// []Revision.
	RevisionID uuid.UUID `json:"revision_id"`
	FileType   FileType  `json:"file_type"`
	Filename   string    `json:"filename"`
	Action     Action    `json:"action"`
	// ColumnDescriptions maps each source file column to the corresponding
	// FactTableColumn.Name it should be loaded into.
	ColumnDescriptions map[string]string `json:"column_descriptions"`
	UploadedAtUnix     int64             `json:"uploaded_at_unix"`
}
