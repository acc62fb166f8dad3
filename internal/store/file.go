package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pavelanni/flashexam/internal/model"
)

// FileStore keeps documents as files under a root directory. Document names
// are slash-separated paths relative to the root.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (f *FileStore) path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("document name %q escapes the store root", name)
	}
	return filepath.Join(f.root, clean), nil
}

// Read returns a document's content.
func (f *FileStore) Read(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := f.path(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", model.ErrDocumentNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", name, err)
	}
	return string(data), nil
}

// Write creates or replaces a document, creating parent directories.
func (f *FileStore) Write(ctx context.Context, name, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write document %s: %w", name, err)
	}
	return nil
}
