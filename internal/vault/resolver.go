package vault

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"patchvault/internal/models"
	"patchvault/internal/store"
)

// Resolver answers "what does distribution D look like at patch P":
// for every known path, the single most recent version at or before P.
type Resolver struct {
	store  *store.Store
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(st *store.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: st, logger: logger.With("component", "resolver")}
}

// Resolve computes the latest-wins snapshot for (dist, patch). Paths whose
// first record is after patch are omitted. Cost is linear in the
// distribution's total record count.
func (r *Resolver) Resolve(ctx context.Context, dist models.Distribution, patch int) (map[string]models.ResolvedFile, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("resolver is not configured")
	}
	if _, err := models.ParseDistribution(string(dist)); err != nil {
		return nil, err
	}

	entries, err := r.store.FileEntries(ctx, dist)
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]models.ResolvedFile)
	for start := 0; start < len(entries); {
		end := start
		for end < len(entries) && entries[end].Path == entries[start].Path {
			end++
		}
		if resolved, ok := r.resolvePath(entries[start:end], patch); ok {
			snapshot[entries[start].Path] = resolved
		}
		start = end
	}
	return snapshot, nil
}

// resolvePath picks the entry with the greatest patch not exceeding the
// query patch from one path's history, which arrives ascending by patch
// then insertion order.
func (r *Resolver) resolvePath(history []store.FileEntry, patch int) (models.ResolvedFile, bool) {
	// First entry with Patch > patch; the winner sits just before it.
	idx := sort.Search(len(history), func(i int) bool {
		return history[i].Patch > patch
	})
	if idx == 0 {
		return models.ResolvedFile{}, false
	}

	winner := history[idx-1]
	// Duplicate patches for one path should not happen by construction of
	// the index; if the catalog ever admits them, the most recently
	// inserted record wins and the situation is surfaced as a warning.
	if idx >= 2 && history[idx-2].Patch == winner.Patch {
		r.logger.Warn("duplicate patch records for path",
			"path", winner.Path, "patch", winner.Patch)
	}

	return models.ResolvedFile{
		Path:        winner.Path,
		Ref:         winner.Ref,
		SourcePatch: winner.Patch,
		Date:        winner.Date,
	}, true
}

// SortedPaths returns a snapshot's paths in lexicographic order.
func SortedPaths(snapshot map[string]models.ResolvedFile) []string {
	paths := make([]string, 0, len(snapshot))
	for path := range snapshot {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// NormalizePatch maps a requested patch to the greatest completed patch at
// or below it. Distributions ship sparse patch numbers, so a request may
// land between two releases.
func (r *Resolver) NormalizePatch(ctx context.Context, dist models.Distribution, patch int) (int, error) {
	normalized, ok, err := r.store.NormalizePatch(ctx, dist, patch)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: no patch <= ps%04d for %s", ErrNotFound, patch, dist)
	}
	return normalized, nil
}
