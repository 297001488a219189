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

// RevisionRepository defines data access for revision records and their
// cube_state lifecycle.
type RevisionRepository interface {
	Create(ctx context.Context, rev *models.Revision) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Revision, error)
	ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Revision, error)
	GetDraft(ctx context.Context, datasetID uuid.UUID) (*models.Revision, error)
	UpdateCubeState(ctx context.Context, id uuid.UUID, state models.CubeState) error
	UpdateTasks(ctx context.Context, id uuid.UUID, tasks *models.RevisionTask) error
}

type revisionRepository struct {
	pool *pgxpool.Pool
}

// NewRevisionRepository creates a revision repository backed by pool.
func NewRevisionRepository(pool *pgxpool.Pool) RevisionRepository {
	return &revisionRepository{pool: pool}
}

func (r *revisionRepository) Create(ctx context.Context, rev *models.Revision) error {
	tasks, err := json.Marshal(rev.Tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	if rev.ID == uuid.Nil {
		rev.ID = uuid.New()
	}
	if rev.CubeState == "" {
		rev.CubeState = models.CubeAbsent
	}

	query := `
		INSERT INTO revisions (id, dataset_id, index, previous_revision, cube_state, uploaded_at, tasks)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err = r.pool.QueryRow(ctx, query,
		rev.ID, rev.DatasetID, rev.Index, rev.PreviousRevision, rev.CubeState, rev.UploadedAt, tasks,
	).Scan(&rev.CreatedAt)
	if err != nil {
		return fmt.Errorf("create revision: %w", err)
	}
	return nil
}

func (r *revisionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Revision, error) {
	rev, err := scanRevision(r.pool.QueryRow(ctx, revisionSelect+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("revision %s not found", id)
	}
	return rev, err
}

func (r *revisionRepository) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Revision, error) {
	rows, err := r.pool.Query(ctx, revisionSelect+" WHERE dataset_id = $1 ORDER BY index ASC, uploaded_at ASC", datasetID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var out []*models.Revision
	for rows.Next() {
		rev, err := scanRevisionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return out, nil
}

// GetDraft returns the dataset's single draft (index <= 0) revision, if any.
func (r *revisionRepository) GetDraft(ctx context.Context, datasetID uuid.UUID) (*models.Revision, error) {
	rev, err := scanRevision(r.pool.QueryRow(ctx, revisionSelect+" WHERE dataset_id = $1 AND index <= 0", datasetID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rev, err
}

func (r *revisionRepository) UpdateCubeState(ctx context.Context, id uuid.UUID, state models.CubeState) error {
	result, err := r.pool.Exec(ctx, `UPDATE revisions SET cube_state = $2 WHERE id = $1`, id, state)
	if err != nil {
		return fmt.Errorf("update cube_state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("revision %s not found", id)
	}
	return nil
}

func (r *revisionRepository) UpdateTasks(ctx context.Context, id uuid.UUID, tasks *models.RevisionTask) error {
	payload, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	result, err := r.pool.Exec(ctx, `UPDATE revisions SET tasks = $2 WHERE id = $1`, id, payload)
	if err != nil {
		return fmt.Errorf("update tasks: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("revision %s not found", id)
	}
	return nil
}

const revisionSelect = `
	SELECT id, dataset_id, index, created_at, approved_at, publish_at, unpublished_at,
	       previous_revision, cube_state, uploaded_at, tasks
	FROM revisions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(row pgx.Row) (*models.Revision, error) {
	return scanRevisionRow(row)
}

func scanRevisionRow(row rowScanner) (*models.Revision, error) {
	rev := &models.Revision{}
	var tasks []byte
	err := row.Scan(
		&rev.ID, &rev.DatasetID, &rev.Index, &rev.CreatedAt, &rev.ApprovedAt, &rev.PublishAt, &rev.UnpublishedAt,
		&rev.PreviousRevision, &rev.CubeState, &rev.UploadedAt, &tasks,
	)
	if err != nil {
		return nil, fmt.Errorf("scan revision: %w", err)
	}
	if len(tasks) > 0 && string(tasks) != "null" {
		rev.Tasks = &models.RevisionTask{}
		if err := json.Unmarshal(tasks, rev.Tasks); err != nil {
			return nil, fmt.Errorf("unmarshal tasks: %w", err)
		}
	}
	return rev, nil
}

var _ RevisionRepository = (*revisionRepository)(nil)
