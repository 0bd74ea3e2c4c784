package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"patchvault/internal/models"
)

const blobColumns = "checksum, uncompressed_size, storage_key, created_at"

// UpsertBlob inserts a blob row if absent and returns the canonical row by
// checksum. The unique constraint on checksum makes concurrent ingestion of
// identical content race to a single winner; losers adopt the winner's row.
func (s *Store) UpsertBlob(ctx context.Context, blob *models.Blob) (*models.Blob, error) {
	if blob == nil {
		return nil, fmt.Errorf("blob is required")
	}
	blob.StorageKey = strings.TrimSpace(blob.StorageKey)
	if blob.StorageKey == "" {
		return nil, fmt.Errorf("storage_key is required")
	}
	if blob.UncompressedSize < 0 {
		return nil, fmt.Errorf("uncompressed_size must be >= 0")
	}
	if blob.CreatedAt.IsZero() {
		blob.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO blobs (`+blobColumns+`)
		VALUES (?, ?, ?, ?)
	`, int64(blob.Checksum), blob.UncompressedSize, blob.StorageKey, formatTime(blob.CreatedAt))
	if err != nil {
		return nil, err
	}

	canonical, err := s.GetBlob(ctx, blob.Checksum)
	if err != nil {
		return nil, err
	}
	if canonical == nil {
		return nil, fmt.Errorf("blob %016x vanished after upsert", blob.Checksum)
	}
	return canonical, nil
}

// GetBlob returns the blob row for a checksum, or nil when absent.
func (s *Store) GetBlob(ctx context.Context, checksum uint64) (*models.Blob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blobColumns+` FROM blobs WHERE checksum = ?`, int64(checksum))

	var blob models.Blob
	var rawChecksum int64
	var createdAt string
	err := row.Scan(&rawChecksum, &blob.UncompressedSize, &blob.StorageKey, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	blob.Checksum = uint64(rawChecksum)
	if blob.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &blob, nil
}
