// Package memory keeps uploads in process memory. It backs tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/utafrali/storefront/internal/storage"
)

type file struct {
	contentType string
	data        []byte
}

// Storage implements storage.Storage with a map.
type Storage struct {
	mu      sync.RWMutex
	files   map[string]file
	baseURL string
}

// New creates an empty store whose URLs start with baseURL.
func New(baseURL string) *Storage {
	return &Storage{files: make(map[string]file), baseURL: baseURL}
}

func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	id := storage.NewPublicID(input.Folder, input.ContentType)
	s.mu.Lock()
	s.files[id] = file{contentType: input.ContentType, data: data}
	s.mu.Unlock()

	return &storage.UploadResult{ID: id, URL: s.baseURL + "/" + id}, nil
}

func (s *Storage) Delete(_ context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, publicID)
	return nil
}

// Has reports whether publicID is stored.
func (s *Storage) Has(publicID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[publicID]
	return ok
}

// Len returns the number of stored files.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
