package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ekaya-inc/cubebuilder/pkg/sqlutil"
)

// LocalStore persists objects under a root directory on disk, one
// subdirectory per dataset. Filenames and dataset IDs are sanitised before
// touching the filesystem so a caller-supplied name can never escape the
// root.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at dir. dir is created if it
// does not already exist.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create root: %w", err)
	}
	return &LocalStore{root: dir}, nil
}

func (s *LocalStore) path(key Key) string {
	dataset := sqlutil.Sanitise(key.DatasetID)
	name := filepath.Base(key.Filename)
	return filepath.Join(s.root, dataset, name)
}

func (s *LocalStore) Save(ctx context.Context, key Key, r io.Reader) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("filestore: create dataset dir: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(p), filepath.Base(p)+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("filestore: close: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}

func (s *LocalStore) Open(ctx context.Context, key Key) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("filestore: open: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, key Key) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: delete: %w", err)
	}
	return nil
}

func (s *LocalStore) List(ctx context.Context, datasetID string) ([]string, error) {
	dir := filepath.Join(s.root, sqlutil.Sanitise(datasetID))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: list: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) == ".tmp" {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
