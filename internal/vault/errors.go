package vault

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means a reference, patch, or path has no resolvable content.
	ErrNotFound = errors.New("not found")

	// ErrCorrupted means retrieved content failed its checksum integrity check.
	ErrCorrupted = errors.New("content corrupted")

	// ErrNonMonotonicPatch means an ingestion arrived below the
	// distribution's completed high-water mark without the backfill flag.
	ErrNonMonotonicPatch = errors.New("non-monotonic patch")

	// ErrPatchAlreadyIngested means a patch was already fully admitted and
	// the caller did not request idempotent replay.
	ErrPatchAlreadyIngested = errors.New("patch already ingested")
)

// PartialBuildError aborts an archive build when one or more blob fetches
// failed after retries. No partial artifact is delivered.
type PartialBuildError struct {
	Paths []string
}

func (e *PartialBuildError) Error() string {
	if e == nil || len(e.Paths) == 0 {
		return "partial build failure"
	}
	const show = 5
	listed := e.Paths
	suffix := ""
	if len(listed) > show {
		suffix = fmt.Sprintf(" and %d more", len(listed)-show)
		listed = listed[:show]
	}
	return fmt.Sprintf("partial build failure: %d path(s) failed: %s%s",
		len(e.Paths), strings.Join(listed, ", "), suffix)
}
