// Package artifacts implements the flat, filename-addressed store for
// uploaded distribution files.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store persists uploaded files under a single directory, addressed by
// filename with no per-project nesting.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on the
// first save, not here, so constructing a store is side-effect free.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// SaveResult describes a persisted artifact.
type SaveResult struct {
	Path   string // final on-disk location
	SHA256 string // hex digest of the bytes actually written
	Size   int64
}

// Save streams content into the store under filename. The bytes are
// written to a temporary file first and renamed into place, so a partial
// write never becomes visible under the final name. The sha256 of the
// written bytes is computed along the way for comparison against the
// uploader's declared digest.
func (s *Store) Save(filename string, content io.Reader) (SaveResult, error) {
	if err := checkFilename(filename); err != nil {
		return SaveResult{}, err
	}
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return SaveResult{}, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), content)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to write artifact: %w", err)
	}

	final := filepath.Join(s.dir, filename)
	if err := os.Rename(tmpPath, final); err != nil {
		return SaveResult{}, fmt.Errorf("failed to move artifact into place: %w", err)
	}

	return SaveResult{
		Path:   final,
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
		Size:   size,
	}, nil
}

// Open returns the stored file for filename. The error wraps
// fs.ErrNotExist when no such artifact exists.
func (s *Store) Open(filename string) (*os.File, error) {
	if err := checkFilename(filename); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.dir, filename)) //nolint:gosec // G304: filename restricted by checkFilename
}

// Exists reports whether an artifact is present under filename.
func (s *Store) Exists(filename string) bool {
	if err := checkFilename(filename); err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, filename))
	return err == nil
}

// checkFilename rejects anything that could escape the store directory.
// Names are validated upstream against the registry token pattern; this is
// the store's own invariant.
func checkFilename(filename string) error {
	if filename == "" || filename == "." || filename == ".." ||
		filename != filepath.Base(filename) {
		return fmt.Errorf("invalid artifact filename %q", filename)
	}
	return nil
}
