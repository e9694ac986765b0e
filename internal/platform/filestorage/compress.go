package filestorage

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

// Stored blobs start with one of these tags.
const (
	tagNone byte = 0
	tagZstd byte = 2
)

// zstdEncoder and zstdDecoder are safe for concurrent EncodeAll/DecodeAll calls.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("filestorage: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("filestorage: zstd decoder initialization failed: " + err.Error())
	}
}

// CompressingStorage compresses blobs with zstd before handing them to the wrapped storage.
// Payloads that do not shrink are stored as is.
type CompressingStorage struct {
	next domain.FileStorage
}

func NewCompressingStorage(next domain.FileStorage) *CompressingStorage {
	return &CompressingStorage{next: next}
}

func (s *CompressingStorage) Upload(ctx context.Context, ref domain.FileStorageReference, data []byte) error {
	return s.next.Upload(ctx, ref, encode(data))
}

func (s *CompressingStorage) Download(ctx context.Context, ref domain.FileStorageReference) ([]byte, error) {
	stored, err := s.next.Download(ctx, ref)
	if err != nil {
		return nil, err
	}
	data, err := decode(stored)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	return data, nil
}

func (s *CompressingStorage) Delete(ctx context.Context, ref domain.FileStorageReference) error {
	return s.next.Delete(ctx, ref)
}

func encode(data []byte) []byte {
	compressed := zstdEncoder.EncodeAll(data, make([]byte, 1, len(data)/2+1))
	compressed[0] = tagZstd
	if len(compressed) < len(data)+1 {
		return compressed
	}
	out := make([]byte, 0, len(data)+1)
	out = append(out, tagNone)
	return append(out, data...)
}

func decode(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, fmt.Errorf("empty blob")
	}
	switch stored[0] {
	case tagNone:
		return stored[1:], nil
	case tagZstd:
		out, err := zstdDecoder.DecodeAll(stored[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression tag %d", stored[0])
	}
}
