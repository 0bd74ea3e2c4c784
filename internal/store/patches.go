package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"patchvault/internal/models"
)

// CompletePatch marks a patch as fully admitted for a distribution. The row
// is written only after every file of the patch has been recorded, so
// resolvers never observe a half-admitted patch.
func (s *Store) CompletePatch(ctx context.Context, info models.PatchInfo) error {
	if info.CompletedAt.IsZero() {
		info.CompletedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO patches (distribution, patch, date, file_count, completed_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(info.Distribution), info.Patch, formatTime(info.Date), info.FileCount, formatTime(info.CompletedAt))
	return err
}

// PatchCompleted reports whether a patch has been fully admitted.
func (s *Store) PatchCompleted(ctx context.Context, dist models.Distribution, patch int) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM patches WHERE distribution = ? AND patch = ? LIMIT 1
	`, string(dist), patch).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MaxCompletedPatch returns the distribution's completed high-water mark.
// The boolean is false when no patch has been admitted yet.
func (s *Store) MaxCompletedPatch(ctx context.Context, dist models.Distribution) (int, bool, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(patch) FROM patches WHERE distribution = ?
	`, string(dist)).Scan(&max)
	if err != nil {
		return 0, false, err
	}
	if !max.Valid {
		return 0, false, nil
	}
	return int(max.Int64), true, nil
}

// NormalizePatch returns the greatest completed patch at or below the
// requested patch. The boolean is false when none exists.
func (s *Store) NormalizePatch(ctx context.Context, dist models.Distribution, patch int) (int, bool, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(patch) FROM patches WHERE distribution = ? AND patch <= ?
	`, string(dist), patch).Scan(&max)
	if err != nil {
		return 0, false, err
	}
	if !max.Valid {
		return 0, false, nil
	}
	return int(max.Int64), true, nil
}

// ListPatches lists completed patches for a distribution, ascending.
func (s *Store) ListPatches(ctx context.Context, dist models.Distribution) ([]models.PatchInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT distribution, patch, date, file_count, completed_at
		FROM patches WHERE distribution = ? ORDER BY patch ASC
	`, string(dist))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	patches := []models.PatchInfo{}
	for rows.Next() {
		var info models.PatchInfo
		var dist, date, completedAt string
		if err := rows.Scan(&dist, &info.Patch, &date, &info.FileCount, &completedAt); err != nil {
			return nil, err
		}
		info.Distribution = models.Distribution(dist)
		if info.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		if info.CompletedAt, err = parseTime(completedAt); err != nil {
			return nil, err
		}
		patches = append(patches, info)
	}
	return patches, rows.Err()
}
