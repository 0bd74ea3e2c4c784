package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zlib"

	"patchvault/internal/blobstore"
	"patchvault/internal/models"
	"patchvault/internal/store"
)

const (
	putAttempts   = 3
	getAttempts   = 3
	retryBaseWait = 100 * time.Millisecond
)

// BlobService is the deduplicated content store: one stored object per
// distinct checksum, content held zlib-compressed in the object backend.
type BlobService struct {
	store   *store.Store
	objects blobstore.ObjectStore
	logger  *slog.Logger
}

// NewBlobService constructs a BlobService.
func NewBlobService(st *store.Store, objects blobstore.ObjectStore, logger *slog.Logger) *BlobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BlobService{store: st, objects: objects, logger: logger.With("component", "blobs")}
}

// Checksum computes the content checksum used for deduplication.
func Checksum(content []byte) uint64 {
	return xxhash.Sum64(content)
}

func storageKey(checksum uint64) string {
	hex := fmt.Sprintf("%016x", checksum)
	return fmt.Sprintf("blobs/%s/%s/%s", hex[0:2], hex[2:4], hex)
}

// Put stores content and returns its reference. Identical content yields the
// same reference without a second physical write; concurrent callers racing
// on the same checksum converge on the unique-constrained catalog row.
func (s *BlobService) Put(ctx context.Context, content []byte) (models.BlobRef, error) {
	var zero models.BlobRef
	if s == nil || s.store == nil || s.objects == nil {
		return zero, fmt.Errorf("blob service is not configured")
	}

	checksum := Checksum(content)
	key := storageKey(checksum)

	existing, err := s.store.GetBlob(ctx, checksum)
	if err != nil {
		return zero, err
	}
	if existing != nil {
		return existing.Ref(), nil
	}

	compressed, err := compress(content)
	if err != nil {
		return zero, err
	}

	// Skip the upload when a racing ingester already wrote the object: same
	// key means same content.
	exists, err := s.objects.StatObject(ctx, key)
	if err != nil {
		return zero, err
	}
	if !exists {
		err := withRetry(ctx, putAttempts, func() error {
			return s.objects.PutObject(ctx, key, bytes.NewReader(compressed), int64(len(compressed)))
		})
		if err != nil {
			return zero, fmt.Errorf("put object %s: %w", key, err)
		}
	}

	blob, err := s.store.UpsertBlob(ctx, &models.Blob{
		Checksum:         checksum,
		UncompressedSize: int64(len(content)),
		StorageKey:       key,
	})
	if err != nil {
		return zero, err
	}
	return blob.Ref(), nil
}

// Get retrieves and verifies a blob's content. An integrity mismatch is
// retried with one re-fetch and then surfaced as ErrCorrupted; stale or
// alternate content is never substituted.
func (s *BlobService) Get(ctx context.Context, ref models.BlobRef) ([]byte, error) {
	if s == nil || s.store == nil || s.objects == nil {
		return nil, fmt.Errorf("blob service is not configured")
	}

	if ref.StorageKey == "" {
		blob, err := s.store.GetBlob(ctx, ref.Checksum)
		if err != nil {
			return nil, err
		}
		if blob == nil {
			return nil, fmt.Errorf("%w: blob %016x", ErrNotFound, ref.Checksum)
		}
		ref = blob.Ref()
	}

	content, err := s.fetch(ctx, ref)
	if err == nil || !errors.Is(err, ErrCorrupted) {
		return content, err
	}

	s.logger.Warn("integrity check failed, re-fetching once", "checksum", fmt.Sprintf("%016x", ref.Checksum))
	return s.fetch(ctx, ref)
}

func (s *BlobService) fetch(ctx context.Context, ref models.BlobRef) ([]byte, error) {
	var compressed []byte
	err := withRetry(ctx, getAttempts, func() error {
		rc, err := s.objects.GetObject(ctx, ref.StorageKey)
		if err != nil {
			return err
		}
		defer rc.Close()
		compressed, err = io.ReadAll(rc)
		return err
	})
	if errors.Is(err, blobstore.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: blob %016x", ErrNotFound, ref.Checksum)
	}
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", ref.StorageKey, err)
	}

	content, err := decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: blob %016x: %v", ErrCorrupted, ref.Checksum, err)
	}
	if got := Checksum(content); got != ref.Checksum {
		return nil, fmt.Errorf("%w: blob %016x re-hashed to %016x", ErrCorrupted, ref.Checksum, got)
	}
	return content, nil
}

func compress(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(content); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(compressed []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// withRetry runs fn with bounded backoff. Missing objects and context
// cancellation are not retried.
func withRetry(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := retryBaseWait << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, blobstore.ErrObjectNotFound) || ctx.Err() != nil {
			return err
		}
	}
	return err
}
