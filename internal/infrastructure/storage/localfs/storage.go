package localfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/notepeel/internal/core/domain"
)

// ImageStore writes note images below a base directory.
type ImageStore struct {
	basePath string
}

func New(basePath string) (*ImageStore, error) {
	if basePath == "" {
		basePath = "./notepeel-images"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &ImageStore{basePath: basePath}, nil
}

func (s *ImageStore) Save(_ context.Context, key string, data io.Reader) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.basePath, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move file into place: %w", err)
	}
	return path, nil
}

// SaveNoteImage stores the note's image as "note-<id><ext>", the extension
// following the declared MIME type.
func (s *ImageStore) SaveNoteImage(ctx context.Context, detail domain.NoteDetail) (string, error) {
	if len(detail.Image.Data) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "save note image", errors.New("note has no image"))
	}
	key := fmt.Sprintf("note-%d%s", detail.ID, extensionFor(detail.Image.MimeType, detail.Filename))
	return s.Save(ctx, key, bytes.NewReader(detail.Image.Data))
}

func (s *ImageStore) resolve(key string) (string, error) {
	clean := filepath.Base(filepath.Clean("/" + key))
	if clean == "/" || clean == "." || clean != key {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve image key", fmt.Errorf("invalid key %q", key))
	}
	return filepath.Join(s.basePath, clean), nil
}

func extensionFor(mimeType, filename string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	if ext := filepath.Ext(filename); ext != "" {
		return strings.ToLower(ext)
	}
	return ".img"
}
