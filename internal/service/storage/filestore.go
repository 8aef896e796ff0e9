package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"imagetag/internal/config"
)

var (
	// ErrInvalidFilename is returned for names that could escape the store directory.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrTooLarge is returned when an upload exceeds the configured size limit.
	ErrTooLarge = errors.New("image too large")
)

// FileStore keeps uploaded and annotated images in one directory under generated names.
type FileStore struct {
	imagesDir string
}

// NewFileStore creates the image directory if needed.
func NewFileStore(config *config.Config) (*FileStore, error) {
	if err := os.MkdirAll(config.ImageDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &FileStore{imagesDir: config.ImageDirectory}, nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.imagesDir
}

// NewName returns a fresh unique filename with the given extension (".jpg", ".png", ...).
func NewName(ext string) string {
	return uuid.New().String() + strings.ToLower(ext)
}

// Save writes data under a new unique name with the given extension and returns that name.
func (s *FileStore) Save(data []byte, ext string) (string, error) {
	name := NewName(ext)
	if err := os.WriteFile(filepath.Join(s.imagesDir, name), data, 0644); err != nil {
		return "", fmt.Errorf("failed to save image %s: %w", name, err)
	}
	return name, nil
}

// SaveFrom copies r under a new unique name, reading at most limit bytes.
// Larger inputs are rejected and nothing is left behind.
func (s *FileStore) SaveFrom(r io.Reader, ext string, limit int64) (string, error) {
	name := NewName(ext)
	path := filepath.Join(s.imagesDir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create image %s: %w", name, err)
	}

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	closeErr := f.Close()
	if err == nil && n > limit {
		err = fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, limit)
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to save image %s: %w", name, err)
	}
	return name, nil
}

// Path resolves a stored filename to its location on disk.
func (s *FileStore) Path(name string) (string, error) {
	if !isValidFilename(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return filepath.Join(s.imagesDir, name), nil
}

// Read returns the contents of a stored file.
func (s *FileStore) Read(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", name, err)
	}
	return data, nil
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (s *FileStore) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image %s: %w", name, err)
	}
	return nil
}

// isValidFilename accepts plain names only: no separators, no traversal, no NUL bytes.
func isValidFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return !strings.HasPrefix(name, "..")
}
