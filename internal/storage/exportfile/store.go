// Package exportfile manages the export files that carry deposit payloads.
package exportfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/log"
)

// Store places export files in one directory.
type Store struct {
	dir string
	now func() time.Time
}

// New creates a Store rooted at dir. An empty dir means the system temp directory.
func New(dir string) *Store {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the directory export files are written to.
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the export file name for an object,
// crossref-YYYYMMDD-HHMMSS-<part>-<objectID>.xml. Characters other than ASCII letters,
// digits, '-' and '_' in part and objectID become '_', so the name never leaves the
// export directory.
func FileName(at time.Time, part, objectID string) string {
	return fmt.Sprintf("crossref-%s-%s-%s.xml", at.Format("20060102-150405"), safeName(part), safeName(objectID))
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// Acquire returns the path for a new export file. The file is not created.
func (s *Store) Acquire(part, objectID string) (string, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return "", &domain.StorageError{Op: "mkdir", Path: s.dir, Err: err}
	}
	return filepath.Join(s.dir, FileName(s.now(), part, objectID)), nil
}

// Write stores data at path.
func (s *Store) Write(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0600); err != nil {
		return &domain.StorageError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Remove deletes the file at path. A missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &domain.StorageError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

// WithFile writes data to a fresh export file, calls fn with its path and removes the
// file afterwards whether or not fn succeeded.
func (s *Store) WithFile(part, objectID string, data []byte, fn func(path string) error) (err error) {
	path, err := s.Acquire(part, objectID)
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := s.Remove(path); rmErr != nil {
			log.Warn(log.CatExport, "Failed to remove export file", "path", path, "error", rmErr)
			if err == nil {
				err = rmErr
			}
		}
	}()

	if err := s.Write(path, data); err != nil {
		return err
	}
	return fn(path)
}
