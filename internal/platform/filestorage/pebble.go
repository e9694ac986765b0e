// Package filestorage keeps payload blobs addressed by file storage references.
package filestorage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

const pebbleKeyPrefix = "blob:"

// PebbleStorage keeps blobs in an embedded Pebble database.
type PebbleStorage struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a Pebble database at path.
func OpenPebble(path string) (*PebbleStorage, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &PebbleStorage{db: db}, nil
}

func pebbleKey(ref domain.FileStorageReference) []byte {
	return []byte(pebbleKeyPrefix + ref.String())
}

func (s *PebbleStorage) Upload(ctx context.Context, ref domain.FileStorageReference, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Set(pebbleKey(ref), data, pebble.Sync); err != nil {
		return fmt.Errorf("store %s: %w", ref, err)
	}
	return nil
}

func (s *PebbleStorage) Download(ctx context.Context, ref domain.FileStorageReference) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, closer, err := s.db.Get(pebbleKey(ref))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, ref)
		}
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}
	defer closer.Close()
	// v is only valid until closer is closed.
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *PebbleStorage) Delete(ctx context.Context, ref domain.FileStorageReference) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Delete(pebbleKey(ref), pebble.Sync); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}

func (s *PebbleStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
