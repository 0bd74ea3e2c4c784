package models

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// FileRecord states one logical path as introduced by one patch of one
// distribution. Records are historical facts: append-only, never updated.
type FileRecord struct {
	Distribution Distribution `json:"distribution"`
	Patch        int          `json:"patch"`
	Path         string       `json:"path"`
	Date         time.Time    `json:"date"`
	Checksum     uint64       `json:"checksum"`
}

// PathVersion is one entry of a path's history, ascending by patch.
type PathVersion struct {
	Patch    int    `json:"patch"`
	Checksum uint64 `json:"checksum"`
}

// ResolvedFile is one entry of a resolved snapshot: the latest version of a
// path at or before the query patch.
type ResolvedFile struct {
	Path        string    `json:"path"`
	Ref         BlobRef   `json:"ref"`
	SourcePatch int       `json:"source_patch"`
	Date        time.Time `json:"date"`
}

// PatchInfo describes one fully admitted patch.
type PatchInfo struct {
	Distribution Distribution `json:"distribution"`
	Patch        int          `json:"patch"`
	Date         time.Time    `json:"date"`
	FileCount    int          `json:"file_count"`
	CompletedAt  time.Time    `json:"completed_at"`
}

// NormalizeClientPath canonicalizes a logical client path: forward slashes,
// lower case, no leading slash, no traversal segments.
func NormalizeClientPath(raw string) (string, error) {
	cleaned := path.Clean(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/")))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("client path is required")
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid client path: %s", raw)
	}
	return cleaned, nil
}
