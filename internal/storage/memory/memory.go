package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/storage"
)

type file struct {
	contentType string
	data        []byte
}

// Storage implements storage.Storage in process memory.
type Storage struct {
	mu      sync.RWMutex
	files   map[string]file
	baseURL string
}

// New creates a new in-memory storage instance.
func New(baseURL string) *Storage {
	return &Storage{files: make(map[string]file), baseURL: baseURL}
}

func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	s.mu.Lock()
	s.files[input.Key] = file{contentType: input.ContentType, data: data}
	s.mu.Unlock()

	return &storage.UploadResult{Key: input.Key, URL: s.baseURL + storage.PublicPrefix + input.Key}, nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.files, key)
	s.mu.Unlock()
	return nil
}

// Open returns the stored bytes of key.
func (s *Storage) Open(key string) (io.Reader, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[key]
	if !ok {
		return nil, "", false
	}
	return bytes.NewReader(f.data), f.contentType, true
}

// Len returns the number of stored files.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
