package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/ekaya-inc/cubebuilder/pkg/apperrors"
)

// StreamParquet writes q's result set to w as a Parquet file. Every column
// a view projects is TEXT (pkg/pgstage promotes everything to TEXT), so
// the schema is built dynamically from the first batch's column names
// rather than a fixed Go struct, via parquet-go's JSON writer.
func (e *Exporter) StreamParquet(ctx context.Context, w io.Writer, q Query) error {
	query, args, err := e.buildQuery(ctx, q)
	if err != nil {
		return err
	}

	fw := writerfile.NewWriterFile(w)
	var pw *writer.JSONWriter

	err = e.streamRows(ctx, query, args, func(batch rowBatch) error {
		if pw == nil {
			pw, err = writer.NewJSONWriter(parquetSchema(batch.columns), fw, 1)
			if err != nil {
				return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("create parquet writer: %w", err))
			}
		}
		for _, row := range batch.rows {
			obj := make(map[string]string, len(batch.columns))
			for i, col := range batch.columns {
				obj[col] = row[i]
			}
			payload, err := json.Marshal(obj)
			if err != nil {
				return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("marshal parquet row: %w", err))
			}
			if err := pw.Write(string(payload)); err != nil {
				return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("write parquet row: %w", err))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if pw != nil {
		if err := pw.WriteStop(); err != nil {
			return apperrors.New(apperrors.UnknownErrorKind, stage, fmt.Errorf("finish parquet file: %w", err))
		}
	}
	return nil
}

// parquetSchema renders the JSON schema string parquet-go's JSONWriter
// needs, one optional BYTE_ARRAY (UTF8) field per view column.
func parquetSchema(columns []string) string {
	fields := make([]map[string]any, len(columns))
	for i, col := range columns {
		fields[i] = map[string]any{
			"Tag": fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", col),
		}
	}
	schema, _ := json.Marshal(map[string]any{
		"Tag":    "name=row, repetitiontype=REQUIRED",
		"Fields": fields,
	})
	return string(schema)
}
