package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/cubebuilder/pkg/models"
)

// DataTableRepository defines data access for uploaded data-table records.
type DataTableRepository interface {
	Create(ctx context.Context, dt *models.DataTable) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DataTable, error)
	// ListForHistory returns every data table uploaded to the dataset's
	// published revisions (index >= 1), in upload order, plus the draft's
	// own data table if it has one. The fact-table assembler folds this
	// slice left to right.
	ListForHistory(ctx context.Context, datasetID uuid.UUID) ([]*models.DataTable, error)
}

type dataTableRepository struct {
	pool *pgxpool.Pool
}

// NewDataTableRepository creates a data table repository backed by pool.
func NewDataTableRepository(pool *pgxpool.Pool) DataTableRepository {
	return &dataTableRepository{pool: pool}
}

func (r *dataTableRepository) Create(ctx context.Context, dt *models.DataTable) error {
	descriptions, err := json.Marshal(dt.ColumnDescriptions)
	if err != nil {
		return fmt.Errorf("marshal column_descriptions: %w", err)
	}
	if dt.ID == uuid.Nil {
		dt.ID = uuid.New()
	}

	var uploadedAt time.Time
	query := `
		INSERT INTO data_tables (id, revision_id, file_type, filename, action, column_descriptions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING uploaded_at`

	err = r.pool.QueryRow(ctx, query, dt.ID, dt.RevisionID, dt.FileType, dt.Filename, dt.Action, descriptions).Scan(&uploadedAt)
	if err != nil {
		return fmt.Errorf("create data table: %w", err)
	}
	dt.UploadedAtUnix = uploadedAt.Unix()
	return nil
}

func (r *dataTableRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DataTable, error) {
	row := r.pool.QueryRow(ctx, dataTableSelect+` WHERE dt.id = $1`, id)
	dt, err := scanDataTable(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("data table %s not found", id)
	}
	return dt, err
}

func (r *dataTableRepository) ListForHistory(ctx context.Context, datasetID uuid.UUID) ([]*models.DataTable, error) {
	query := dataTableSelect + `
		JOIN revisions rv ON rv.id = dt.revision_id
		WHERE rv.dataset_id = $1
		ORDER BY dt.uploaded_at ASC`

	rows, err := r.pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list data tables: %w", err)
	}
	defer rows.Close()

	var out []*models.DataTable
	for rows.Next() {
		dt, err := scanDataTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate data tables: %w", err)
	}
	return out, nil
}

const dataTableSelect = `
	SELECT dt.id, dt.revision_id, dt.file_type, dt.filename, dt.action, dt.column_descriptions, dt.uploaded_at
	FROM data_tables dt`

func scanDataTable(row rowScanner) (*models.DataTable, error) {
	dt := &models.DataTable{}
	var descriptions []byte
	var uploadedAt time.Time
	err := row.Scan(&dt.ID, &dt.RevisionID, &dt.FileType, &dt.Filename, &dt.Action, &descriptions, &uploadedAt)
	if err != nil {
		return nil, fmt.Errorf("scan data table: %w", err)
	}
	if err := json.Unmarshal(descriptions, &dt.ColumnDescriptions); err != nil {
		return nil, fmt.Errorf("unmarshal column_descriptions: %w", err)
	}
	dt.UploadedAtUnix = uploadedAt.Unix()
	return dt, nil
}

var _ DataTableRepository = (*dataTableRepository)(nil)
