package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type FileStore struct { // implements DocumentStore
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Name() string {
	return "file:" + s.path
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpected, err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, classifyFSError(err)
	}
	return data, nil
}

// Save writes data to a temporary file in the same directory and renames it over the
// document, so readers see either the old or the new content in full.
func (s *FileStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return classifyFSError(err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return classifyFSError(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return classifyFSError(err)
	}
	if err := tmp.Close(); err != nil {
		return classifyFSError(err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return classifyFSError(err)
	}

	repoLogger.Debug().Str("path", s.path).Int("bytes", len(data)).Msg("Document written")
	return nil
}
