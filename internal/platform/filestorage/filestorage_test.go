package filestorage

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

func exerciseStorage(t *testing.T, s domain.FileStorage) {
	t.Helper()
	ctx := context.Background()
	ref := domain.FileStorageReference("market-documents/b/1")
	payload := bytes.Repeat([]byte(`{"quantity":1}`), 50)

	_, err := s.Download(ctx, ref)
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	require.NoError(t, s.Upload(ctx, ref, payload))
	got, err := s.Download(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, s.Delete(ctx, ref))
	_, err = s.Download(ctx, ref)
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
	assert.NoError(t, s.Delete(ctx, ref), "deleting a missing blob is a no-op")
}

func TestPebbleStorage(t *testing.T) {
	s, err := OpenPebble(filepath.Join(t.TempDir(), "files"))
	require.NoError(t, err)
	defer s.Close()

	exerciseStorage(t, s)
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestCompressingStorage(t *testing.T) {
	inner := NewMemoryStorage()
	s := NewCompressingStorage(inner)
	exerciseStorage(t, s)

	ctx := context.Background()

	t.Run("compressible payload is stored as zstd", func(t *testing.T) {
		payload := bytes.Repeat([]byte("<Series><quantity>1</quantity></Series>"), 200)
		require.NoError(t, s.Upload(ctx, "a", payload))
		stored, err := inner.Download(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, tagZstd, stored[0])
		assert.Less(t, len(stored), len(payload))

		got, err := s.Download(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("random payload is stored raw", func(t *testing.T) {
		payload := make([]byte, 256)
		_, err := rand.Read(payload)
		require.NoError(t, err)
		require.NoError(t, s.Upload(ctx, "b", payload))
		stored, err := inner.Download(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, tagNone, stored[0])

		got, err := s.Download(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("unknown tag", func(t *testing.T) {
		require.NoError(t, inner.Upload(ctx, "c", []byte{9, 1, 2}))
		_, err := s.Download(ctx, "c")
		assert.Error(t, err)
	})
}

func TestPostgresStorage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s := NewPostgresStorage(mock)
	ctx := context.Background()
	ref := domain.FileStorageReference("outgoing-messages/m-1")

	t.Run("Upload", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO file_storage_objects`).
			WithArgs(ref.String(), []byte("data"), 4).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		require.NoError(t, s.Upload(ctx, ref, []byte("data")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Download", func(t *testing.T) {
		mock.ExpectQuery(`SELECT content FROM file_storage_objects WHERE reference = \$1`).
			WithArgs(ref.String()).
			WillReturnRows(mock.NewRows([]string{"content"}).AddRow([]byte("data")))
		got, err := s.Download(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, []byte("data"), got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DownloadNotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT content FROM file_storage_objects`).
			WithArgs(ref.String()).
			WillReturnError(pgx.ErrNoRows)
		_, err := s.Download(ctx, ref)
		assert.ErrorIs(t, err, domain.ErrFileNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeleteError", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM file_storage_objects WHERE reference = \$1`).
			WithArgs(ref.String()).
			WillReturnError(errors.New("connection reset"))
		assert.Error(t, s.Delete(ctx, ref))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
