// Package artifact persists rendered images and the parameter log.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/seantiz/easel/internal/model"
)

// Store owns the artifact directory. Each 1-based artifact number maps to one
// file; writes to the same number overwrite it.
type Store struct {
	dir string
}

// NewStore creates the artifact directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the path of artifact n (1-based).
func (s *Store) Path(n int) string {
	return filepath.Join(s.dir, model.ArtifactName(n))
}

// Write stores data as artifact n. The bytes land in a temp file in the same
// directory and are renamed into place, so readers never see a partial file.
func (s *Store) Write(n int, data []byte) (string, error) {
	dst := s.Path(n)

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+model.ArtifactName(n)+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write artifact %d: %w", n, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close artifact %d: %w", n, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("chmod artifact %d: %w", n, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename artifact %d: %w", n, err)
	}
	return dst, nil
}

// Remove deletes artifact n. A missing file is not an error.
func (s *Store) Remove(n int) error {
	err := os.Remove(s.Path(n))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove artifact %d: %w", n, err)
	}
	return nil
}

// Exists reports whether artifact n is present.
func (s *Store) Exists(n int) bool {
	_, err := os.Stat(s.Path(n))
	return err == nil
}
