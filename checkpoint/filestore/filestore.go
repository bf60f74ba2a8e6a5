package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// FileStore keeps the execution context as a JSON object in a single file.
// Saves write a temporary file in the same directory and rename it over the target so a crash never leaves a torn checkpoint.
type FileStore struct {
	path string
	perm os.FileMode
}

type FileStoreOption func(s *FileStore)

func WithFileMode(perm os.FileMode) FileStoreOption {
	return func(s *FileStore) {
		s.perm = perm
	}
}

func New(path string, options ...FileStoreOption) *FileStore {
	s := &FileStore{
		path: path,
		perm: 0o644,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *FileStore) Load(ctx context.Context) (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Join(errors.New("failed to read checkpoint file"), err)
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Join(errors.New("failed to decode checkpoint file"), err)
	}
	return values, nil
}

func (s *FileStore) Save(ctx context.Context, values map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return errors.Join(errors.New("failed to encode checkpoint"), err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Join(errors.New("failed to create checkpoint directory"), err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return errors.Join(errors.New("failed to create temporary checkpoint file"), err)
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, s.perm)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.Join(errors.New("failed to write temporary checkpoint file"), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.Join(errors.New("failed to sync temporary checkpoint file"), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Join(errors.New("failed to close temporary checkpoint file"), err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Join(errors.New("failed to replace checkpoint file"), err)
	}

	// Best effort: persist the rename itself
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Join(errors.New("failed to remove checkpoint file"), err)
	}
	return nil
}
