package filestorage

import (
	"context"
	"fmt"
	"sync"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

// MemoryStorage keeps blobs in process memory. It backs tests and local runs.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[domain.FileStorageReference][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[domain.FileStorageReference][]byte)}
}

func (s *MemoryStorage) Upload(_ context.Context, ref domain.FileStorageReference, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	s.blobs[ref] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Download(_ context.Context, ref domain.FileStorageReference) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, ref)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *MemoryStorage) Delete(_ context.Context, ref domain.FileStorageReference) error {
	s.mu.Lock()
	delete(s.blobs, ref)
	s.mu.Unlock()
	return nil
}

// Len reports how many blobs are stored.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
