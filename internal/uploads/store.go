// Package uploads keeps agent documents on local disk.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/security"
)

// Store writes uploads under a single directory with collision-free names
type Store struct {
	dir      string
	maxBytes int64
}

// NewStore creates the upload directory if needed. maxBytes <= 0 disables the size limit.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the upload directory
func (s *Store) Dir() string {
	return s.dir
}

// Save copies r into a new file named after originalName and returns its path
func (s *Store) Save(originalName string, r io.Reader) (string, error) {
	path := filepath.Join(s.dir, security.StoredFileName(originalName))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrValidation, originalName, s.maxBytes)
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to store %s: %w", originalName, err)
	}
	return path, nil
}

// Remove deletes a stored file. Paths outside the upload directory are refused
// and missing files are not an error.
func (s *Store) Remove(path string) error {
	if !security.WithinDir(s.dir, path) {
		return fmt.Errorf("refusing to remove %s outside upload directory", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
	}
	return nil
}
