// Package evidence persists uploaded evidence files on local disk.
package evidence

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const defaultName = "evidence"

// Store writes evidence blobs under a single directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created lazily.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = filepath.Join("data", "uploads")
	}
	return &Store{dir: dir}
}

// Dir returns the upload directory.
func (s *Store) Dir() string { return s.dir }

// Save writes r to <dir>/<id>__<safe filename> and returns the path.
func (s *Store) Save(id, filename string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.dir, id+"__"+SafeName(filename))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create evidence file: %w", err)
	}
	if r != nil {
		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("write evidence file: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close evidence file: %w", err)
	}
	return path, nil
}

// Remove deletes a previously saved blob. A missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove evidence file: %w", err)
	}
	return nil
}

// SafeName flattens path separators so a client filename cannot escape the
// upload directory.
func SafeName(filename string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(filename))
	if name == "" || name == "." || name == ".." {
		return defaultName
	}
	return name
}
