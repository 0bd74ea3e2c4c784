package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"patchvault/internal/models"
)

// FileEntry is one catalog row joined with its blob, as consumed by the
// snapshot resolver.
type FileEntry struct {
	Path  string
	Patch int
	Date  time.Time
	Ref   models.BlobRef
	RowID int64
}

// RecordFile appends one file record. Re-recording an identical
// (distribution, path, checksum) tuple is a no-op.
func (s *Store) RecordFile(ctx context.Context, record models.FileRecord) error {
	if record.Distribution == "" {
		return fmt.Errorf("distribution is required")
	}
	if strings.TrimSpace(record.Path) == "" {
		return fmt.Errorf("path is required")
	}
	if record.Patch < 0 {
		return fmt.Errorf("patch must be >= 0")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO files (distribution, patch, path, date, blob_checksum)
		VALUES (?, ?, ?, ?, ?)
	`, string(record.Distribution), record.Patch, record.Path, formatTime(record.Date), int64(record.Checksum))
	return err
}

// History returns a path's version history for a distribution, ascending by
// patch. Empty when the path was never recorded.
func (s *Store) History(ctx context.Context, dist models.Distribution, path string) ([]models.PathVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT patch, blob_checksum FROM files
		WHERE distribution = ? AND path = ?
		ORDER BY patch ASC, id ASC
	`, string(dist), path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := []models.PathVersion{}
	for rows.Next() {
		var v models.PathVersion
		var checksum int64
		if err := rows.Scan(&v.Patch, &checksum); err != nil {
			return nil, err
		}
		v.Checksum = uint64(checksum)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// AllPaths returns every path ever recorded for a distribution.
func (s *Store) AllPaths(ctx context.Context, dist models.Distribution) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT path FROM files WHERE distribution = ? ORDER BY path ASC
	`, string(dist))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// FileEntries returns every record for a distribution joined with blob
// metadata, grouped by path and ascending by patch then insertion order.
// This is the single scan the resolver works from.
func (s *Store) FileEntries(ctx context.Context, dist models.Distribution) ([]FileEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.path, f.patch, f.date, f.id, b.checksum, b.uncompressed_size, b.storage_key
		FROM files f
		JOIN blobs b ON b.checksum = f.blob_checksum
		WHERE f.distribution = ?
		ORDER BY f.path ASC, f.patch ASC, f.id ASC
	`, string(dist))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []FileEntry{}
	for rows.Next() {
		var e FileEntry
		var date string
		var checksum int64
		if err := rows.Scan(&e.Path, &e.Patch, &date, &e.RowID, &checksum, &e.Ref.UncompressedSize, &e.Ref.StorageKey); err != nil {
			return nil, err
		}
		e.Ref.Checksum = uint64(checksum)
		if e.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
