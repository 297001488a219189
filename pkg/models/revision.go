package models

import (
	"time"

	"github.com/google/uuid"
)

// CubeState tracks the lifecycle of a revision's per-schema build.
type CubeState string

const (
	CubeAbsent                  CubeState = "absent"
	CubeBuilding                CubeState = "building"
	CubeAwaitingMaterialization CubeState = "awaiting_materialisation"
	CubeComplete                CubeState = "complete"
	CubeFailed                  CubeState = "failed"
)

// Revision is one immutable step in a dataset's history. Index 0 (or less)
// marks a draft; exactly one revision has Index == 1, the originating
// revision.
type Revision struct {
	ID                uuid.UUID  `json:"id"`
	DatasetID         uuid.UUID  `json:"dataset_id"`
	Index             int        `json:"index"` // 0 means draft
	CreatedAt         time.Time  `json:"created_at"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	PublishAt         *time.Time `json:"publish_at,omitempty"`
	UnpublishedAt     *time.Time `json:"unpublished_at,omitempty"`
	PreviousRevision  *uuid.UUID `json:"previous_revision,omitempty"`
	DataTable         *DataTable `json:"data_table,omitempty"`
	Tasks             *RevisionTask `json:"tasks,omitempty"`
	CubeState         CubeState  `json:"cube_state"`
	UploadedAt        time.Time  `json:"uploaded_at"`
}

// IsDraft reports whether this revision has not yet been published.
func (r *Revision) IsDraft() bool {
	return r.Index <= 0
}

// DimensionUpdateTask records that a dimension's lookup table did not cover
// every fact value observed during a build. The dimension is treated as Raw
// for the current cube; the caller must upload an updated lookup.
type DimensionUpdateTask struct {
	DimensionID        uuid.UUID `json:"dimension_id"`
	LookupTableUpdated bool      `json:"lookup_table_updated"`
}

// RevisionTask aggregates the dimension/measure updates a non-first-revision
// build surfaced for user re-confirmation.
type RevisionTask struct {
	Dimensions []DimensionUpdateTask `json:"dimensions"`
	Measure    *DimensionUpdateTask  `json:"measure,omitempty"`
}

// AddDimensionTask appends a dimension update task, replacing any existing
// entry for the same dimension.
func (t *RevisionTask) AddDimensionTask(task DimensionUpdateTask) {
	for i, existing := range t.Dimensions {
		if existing.DimensionID == task.DimensionID {
			t.Dimensions[i] = task
			return
		}
	}
	t.Dimensions = append(t.Dimensions, task)
}
