// Package local stores uploads on the local filesystem. The directory is
// expected to be served under the configured base URL.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Config holds local asset storage settings.
type Config struct {
	Dir     string `env:"ASSET_DIR" envDefault:"./data/assets"`
	BaseURL string `env:"ASSET_BASE_URL" envDefault:"/assets"`
}

// Storage implements storage.Storage on disk.
type Storage struct {
	dir     string
	baseURL string
}

// New creates the asset directory if needed.
func New(cfg Config) (*Storage, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &Storage{dir: cfg.Dir, baseURL: strings.TrimRight(cfg.BaseURL, "/")}, nil
}

// Dir returns the root directory.
func (s *Storage) Dir() string {
	return s.dir
}

func (s *Storage) path(publicID string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(publicID))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid public id %q", publicID)
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	id := storage.NewPublicID(input.Folder, input.ContentType)
	dst, err := s.path(id)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	n, err := io.Copy(f, io.LimitReader(input.Data, storage.MaxFileSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if n > storage.MaxFileSize {
		return nil, apperrors.InvalidInput(fmt.Sprintf("image exceeds %d bytes", storage.MaxFileSize))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.Rename(f.Name(), dst); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	return &storage.UploadResult{ID: id, URL: s.baseURL + "/" + id}, nil
}

func (s *Storage) Delete(_ context.Context, publicID string) error {
	p, err := s.path(publicID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", publicID, err)
	}
	return nil
}
