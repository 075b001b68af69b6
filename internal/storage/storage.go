// Package storage stores uploaded images (product pictures and avatars).
package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Folders group uploads by what they belong to.
const (
	FolderProducts = "products"
	FolderAvatars  = "avatars"
)

// MaxFileSize is the largest accepted upload (10 MB).
const MaxFileSize int64 = 10 * 1024 * 1024

// AllowedContentTypes maps accepted image types to their file extension.
var AllowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Storage stores and removes files.
type Storage interface {
	// Upload stores a file and returns its public id and URL.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes a file by its public id. Deleting a missing file is not
	// an error.
	Delete(ctx context.Context, publicID string) error
}

// UploadInput describes a file to store.
type UploadInput struct {
	Folder      string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult identifies a stored file.
type UploadResult struct {
	ID  string
	URL string
}

// Validate rejects unsupported content types and oversized files.
func (in *UploadInput) Validate() error {
	if _, ok := AllowedContentTypes[in.ContentType]; !ok {
		return apperrors.InvalidInput(fmt.Sprintf("unsupported image type %q", in.ContentType))
	}
	if in.Size > MaxFileSize {
		return apperrors.InvalidInput(fmt.Sprintf("image exceeds %d bytes", MaxFileSize))
	}
	if in.Data == nil {
		return apperrors.InvalidInput("image data is required")
	}
	return nil
}

// NewPublicID returns a fresh id such as "products/3f2c...e1.png".
func NewPublicID(folder, contentType string) string {
	return path.Join(folder, uuid.NewString()+AllowedContentTypes[contentType])
}
