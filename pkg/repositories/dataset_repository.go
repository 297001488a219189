package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/cubebuilder/pkg/models"
)

// DatasetRepository defines data access for dataset control-plane records.
// Columns, measure, dimensions and metadata are stored as JSONB and
// (de)serialised at the boundary, not interpreted by SQL.
type DatasetRepository interface {
	Create(ctx context.Context, ds *models.Dataset) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*models.Dataset, error)
	Update(ctx context.Context, ds *models.Dataset) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type datasetRepository struct {
	pool *pgxpool.Pool
}

// NewDatasetRepository creates a dataset repository backed by pool.
func NewDatasetRepository(pool *pgxpool.Pool) DatasetRepository {
	return &datasetRepository{pool: pool}
}

func (r *datasetRepository) Create(ctx context.Context, ds *models.Dataset) error {
	columns, err := json.Marshal(ds.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	measure, err := json.Marshal(ds.Measure)
	if err != nil {
		return fmt.Errorf("marshal measure: %w", err)
	}
	dimensions, err := json.Marshal(ds.Dimensions)
	if err != nil {
		return fmt.Errorf("marshal dimensions: %w", err)
	}
	metadata, err := json.Marshal(ds.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO datasets (id, group_id, columns, measure, dimensions, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}

	err = r.pool.QueryRow(ctx, query, ds.ID, ds.GroupID, columns, measure, dimensions, metadata).Scan(&ds.CreatedAt)
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	return nil
}

func (r *datasetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	query := `
		SELECT id, group_id, columns, measure, dimensions, metadata, created_at
		FROM datasets WHERE id = $1`

	ds := &models.Dataset{}
	var columns, measure, dimensions, metadata []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&ds.ID, &ds.GroupID, &columns, &measure, &dimensions, &metadata, &ds.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("dataset %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset: %w", err)
	}

	if err := unmarshalDataset(ds, columns, measure, dimensions, metadata); err != nil {
		return nil, err
	}
	return ds, nil
}

func (r *datasetRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*models.Dataset, error) {
	query := `
		SELECT id, group_id, columns, measure, dimensions, metadata, created_at
		FROM datasets WHERE group_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var out []*models.Dataset
	for rows.Next() {
		ds := &models.Dataset{}
		var columns, measure, dimensions, metadata []byte
		if err := rows.Scan(&ds.ID, &ds.GroupID, &columns, &measure, &dimensions, &metadata, &ds.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		if err := unmarshalDataset(ds, columns, measure, dimensions, metadata); err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}
	return out, nil
}

func (r *datasetRepository) Update(ctx context.Context, ds *models.Dataset) error {
	columns, err := json.Marshal(ds.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	measure, err := json.Marshal(ds.Measure)
	if err != nil {
		return fmt.Errorf("marshal measure: %w", err)
	}
	dimensions, err := json.Marshal(ds.Dimensions)
	if err != nil {
		return fmt.Errorf("marshal dimensions: %w", err)
	}
	metadata, err := json.Marshal(ds.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		UPDATE datasets
		SET columns = $2, measure = $3, dimensions = $4, metadata = $5
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, ds.ID, columns, measure, dimensions, metadata)
	if err != nil {
		return fmt.Errorf("update dataset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("dataset %s not found", ds.ID)
	}
	return nil
}

func (r *datasetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("dataset %s not found", id)
	}
	return nil
}

func unmarshalDataset(ds *models.Dataset, columns, measure, dimensions, metadata []byte) error {
	if err := json.Unmarshal(columns, &ds.Columns); err != nil {
		return fmt.Errorf("unmarshal columns: %w", err)
	}
	if len(measure) > 0 && string(measure) != "null" {
		ds.Measure = &models.Measure{}
		if err := json.Unmarshal(measure, ds.Measure); err != nil {
			return fmt.Errorf("unmarshal measure: %w", err)
		}
	}
	if err := json.Unmarshal(dimensions, &ds.Dimensions); err != nil {
		return fmt.Errorf("unmarshal dimensions: %w", err)
	}
	if err := json.Unmarshal(metadata, &ds.Metadata); err != nil {
		return fmt.Errorf("unmarshal metadata: %w", err)
	}
	return nil
}

var _ DatasetRepository = (*datasetRepository)(nil)
