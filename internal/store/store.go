package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

// Store wraps the SQLite catalog holding blob and file metadata.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite catalog and applies pending migrations.
func Open(path string) (*Store, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Info summarizes catalog contents.
type Info struct {
	SchemaVersion int            `json:"schema_version"`
	BlobCount     int            `json:"blob_count"`
	FileCount     int            `json:"file_count"`
	PatchCounts   map[string]int `json:"patch_counts"`
}

// StoreInfo reports schema version plus row counts per table.
func (s *Store) StoreInfo(ctx context.Context) (Info, error) {
	var info Info

	version, err := currentVersion(s.db)
	if err != nil {
		return info, err
	}
	info.SchemaVersion = version

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blobs").Scan(&info.BlobCount); err != nil {
		return info, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&info.FileCount); err != nil {
		return info, err
	}

	info.PatchCounts = map[string]int{}
	rows, err := s.db.QueryContext(ctx, "SELECT distribution, COUNT(*) FROM patches GROUP BY distribution")
	if err != nil {
		return info, err
	}
	defer rows.Close()
	for rows.Next() {
		var dist string
		var count int
		if err := rows.Scan(&dist, &count); err != nil {
			return info, err
		}
		info.PatchCounts[dist] = count
	}
	return info, rows.Err()
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// Tune connection pool for local usage.
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return nil
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String(), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
