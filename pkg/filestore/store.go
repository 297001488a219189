// Package filestore abstracts persistence of uploaded data files and
// generated exports behind a content-addressed save/load/delete contract.
package filestore

import (
	"context"
	"io"
)

// Store persists raw file bytes keyed by dataset and filename. Implementations
// must be safe for concurrent use.
type Store interface {
	// Save writes the contents of r under the given key, replacing any
	// existing object at that key.
	Save(ctx context.Context, key Key, r io.Reader) error

	// Open returns a reader for the object at key. Callers must close it.
	Open(ctx context.Context, key Key) (io.ReadCloser, error)

	// Delete removes the object at key. It is not an error to delete a
	// key that does not exist.
	Delete(ctx context.Context, key Key) error

	// List returns the filenames stored under a dataset.
	List(ctx context.Context, datasetID string) ([]string, error)
}

// Key identifies a stored object.
type Key struct {
	DatasetID string
	Filename  string
}
