package repositories

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// FileStore keeps uploaded record files on disk under dir/{collection}/{id}/{filename}.
type FileStore struct {
	dir     string
	baseURL string
	maxSize int64
}

// NewFileStore creates a store rooted at dir. baseURL prefixes generated file URLs,
// e.g. "http://127.0.0.1:3000/files". maxSize of 0 disables the size check.
func NewFileStore(dir, baseURL string, maxSize int64) *FileStore {
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), maxSize: maxSize}
}

// Dir is the storage root, served read-only by the HTTP server.
func (s *FileStore) Dir() string { return s.dir }

// Save writes f for a record and returns the stored filename. A random suffix keeps
// re-uploads of the same name from overwriting each other.
func (s *FileStore) Save(collection, id string, f models.File) (string, error) {
	name := storedName(f.Name)
	recordDir := filepath.Join(s.dir, collection, id)
	if err := os.MkdirAll(recordDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	dst, err := os.Create(filepath.Join(recordDir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	src := f.Reader
	if s.maxSize > 0 {
		src = io.LimitReader(f.Reader, s.maxSize+1)
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if s.maxSize > 0 && n > s.maxSize {
		os.Remove(dst.Name())
		return "", fmt.Errorf("%w: %s", shared.ErrFileTooLarge, f.Name)
	}
	return name, nil
}

// Remove deletes one stored file; a missing file is not an error.
func (s *FileStore) Remove(collection, id, name string) error {
	if name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, collection, id, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// URL maps a stored filename to its served URL.
func (s *FileStore) URL(collection, id, name string) string {
	if name == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s/%s", s.baseURL, collection, id, name)
}

func storedName(original string) string {
	base := filepath.Base(original)
	ext := strings.ToLower(filepath.Ext(base))
	stem := shared.SanitizeFilename(strings.TrimSuffix(base, filepath.Ext(base)))

	suffix := make([]byte, 5)
	if _, err := rand.Read(suffix); err != nil {
		return stem + ext
	}
	return stem + "_" + hex.EncodeToString(suffix) + ext
}
