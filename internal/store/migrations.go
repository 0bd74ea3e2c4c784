package store

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version"`
	AvailableVersion int             `json:"available_version"`
	Pending          []MigrationInfo `json:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// migrations is the ordered list of all schema migrations.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: blobs, files, patches tables",
		SQL: `
CREATE TABLE IF NOT EXISTS blobs (
  checksum INTEGER PRIMARY KEY,
  uncompressed_size INTEGER NOT NULL,
  storage_key TEXT NOT NULL,
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  distribution TEXT NOT NULL,
  patch INTEGER NOT NULL,
  path TEXT NOT NULL,
  date TEXT NOT NULL,
  blob_checksum INTEGER NOT NULL,
  UNIQUE(distribution, path, blob_checksum),
  FOREIGN KEY (blob_checksum) REFERENCES blobs(checksum)
);

CREATE TABLE IF NOT EXISTS patches (
  distribution TEXT NOT NULL,
  patch INTEGER NOT NULL,
  date TEXT NOT NULL,
  file_count INTEGER NOT NULL,
  completed_at TEXT NOT NULL,
  PRIMARY KEY (distribution, patch)
);

CREATE INDEX IF NOT EXISTS idx_files_dist_patch ON files(distribution, patch);
`,
	},
	{
		Version:     2,
		Description: "covering index for snapshot resolution",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_files_dist_path_patch ON files(distribution, path, patch);
`,
	},
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`)
	return err
}

func currentVersion(db *sql.DB) (int, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return 0, err
	}
	var version sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

// runMigrations applies all pending migrations in order.
func runMigrations(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := currentVersion(db)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for _, m := range sorted {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// Migrations returns the store's migration status.
func (s *Store) Migrations() (*MigrationStatus, error) {
	return MigrationPlan(s.db)
}

// MigrationPlan returns the current migration status without applying anything.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return nil, err
	}

	current, err := currentVersion(db)
	if err != nil {
		return nil, err
	}

	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	available := 0
	if len(sorted) > 0 {
		available = sorted[len(sorted)-1].Version
	}

	var pending []MigrationInfo
	for _, m := range sorted {
		if m.Version > current {
			pending = append(pending, MigrationInfo{Version: m.Version, Description: m.Description})
		}
	}

	return &MigrationStatus{
		CurrentVersion:   current,
		AvailableVersion: available,
		Pending:          pending,
	}, nil
}
