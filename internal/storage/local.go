package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore mirrors object keys onto a directory tree under root. Writes
// are atomic per object; a reader never sees a half-written lesson file.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", key, err)
	}

	// Lesson keys are uuid-based and never reused, so a fixed staging
	// suffix per object is collision-free.
	staging := dst + ".partial"
	if err := os.WriteFile(staging, data, 0o644); err != nil {
		return fmt.Errorf("stage %s: %w", key, err)
	}
	if err := os.Rename(staging, dst); err != nil {
		os.Remove(staging)
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.root, filepath.FromSlash(key)))
}

func (s *LocalStore) URL(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (s *LocalStore) Type() string { return "local" }
