package vault

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"patchvault/internal/models"
	"patchvault/internal/store"
)

const defaultIngestWorkers = 8

// IngestFile is one (path, content) pair of a patch manifest. The caller
// supplies only files new or changed relative to the prior patch.
type IngestFile struct {
	Path    string
	Content []byte
}

// IngestOptions tune one admission.
type IngestOptions struct {
	// Backfill admits a patch below the completed high-water mark.
	Backfill bool
	// Replay re-admits an already completed patch; identical content is a
	// no-op per path.
	Replay bool
}

// IngestResult summarizes one admission.
type IngestResult struct {
	Distribution models.Distribution `json:"distribution"`
	Patch        int                 `json:"patch"`
	Files        int                 `json:"files"`
	Bytes        int64               `json:"bytes"`
}

// Ingestor admits patch manifests into the blob store and file index.
type Ingestor struct {
	store   *store.Store
	blobs   *BlobService
	logger  *slog.Logger
	workers int
}

// NewIngestor constructs an Ingestor. workers bounds per-patch concurrency.
func NewIngestor(st *store.Store, blobs *BlobService, workers int, logger *slog.Logger) *Ingestor {
	if workers <= 0 {
		workers = defaultIngestWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{store: st, blobs: blobs, logger: logger.With("component", "ingest"), workers: workers}
}

// Ingest admits one patch's full manifest for a distribution. Files are
// processed concurrently; the patch is marked completed only after every
// path is recorded, so a failed admission is retried in full and is never
// visible to resolvers.
func (in *Ingestor) Ingest(ctx context.Context, dist models.Distribution, patch int, date time.Time, files []IngestFile, opts IngestOptions) (IngestResult, error) {
	var zero IngestResult
	if in == nil || in.store == nil || in.blobs == nil {
		return zero, fmt.Errorf("ingestor is not configured")
	}
	if _, err := models.ParseDistribution(string(dist)); err != nil {
		return zero, err
	}
	if patch < 0 {
		return zero, fmt.Errorf("patch must be >= 0")
	}
	if len(files) == 0 {
		return zero, fmt.Errorf("patch manifest is empty")
	}

	completed, err := in.store.PatchCompleted(ctx, dist, patch)
	if err != nil {
		return zero, err
	}
	if completed && !opts.Replay {
		return zero, fmt.Errorf("%w: %s ps%04d", ErrPatchAlreadyIngested, dist, patch)
	}

	if mark, ok, err := in.store.MaxCompletedPatch(ctx, dist); err != nil {
		return zero, err
	} else if ok && patch < mark && !completed && !opts.Backfill {
		return zero, fmt.Errorf("%w: %s ps%04d is below high-water mark ps%04d", ErrNonMonotonicPatch, dist, patch, mark)
	}

	// Admission runs to completion once begun; a patch is never left
	// half-visible because of caller cancellation.
	admitCtx := context.WithoutCancel(ctx)

	var bytes atomic.Int64
	g, gctx := errgroup.WithContext(admitCtx)
	g.SetLimit(in.workers)
	for _, file := range files {
		g.Go(func() error {
			path, err := models.NormalizeClientPath(file.Path)
			if err != nil {
				return err
			}
			ref, err := in.blobs.Put(gctx, file.Content)
			if err != nil {
				return fmt.Errorf("store %s: %w", path, err)
			}
			record := models.FileRecord{
				Distribution: dist,
				Patch:        patch,
				Path:         path,
				Date:         date,
				Checksum:     ref.Checksum,
			}
			if err := in.store.RecordFile(gctx, record); err != nil {
				return fmt.Errorf("record %s: %w", path, err)
			}
			bytes.Add(int64(len(file.Content)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return zero, err
	}

	info := models.PatchInfo{
		Distribution: dist,
		Patch:        patch,
		Date:         date,
		FileCount:    len(files),
	}
	if err := in.store.CompletePatch(admitCtx, info); err != nil {
		return zero, err
	}

	result := IngestResult{
		Distribution: dist,
		Patch:        patch,
		Files:        len(files),
		Bytes:        bytes.Load(),
	}
	in.logger.Info("patch admitted", "dist", dist, "patch", patch, "files", result.Files, "bytes", result.Bytes)
	return result, nil
}
