package vault

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"patchvault/internal/models"
)

const (
	defaultBuildWorkers = 8
	archiveEntryMode    = 0o644

	versionEntryName  = "version.ini"
	gsconfigEntryName = "gsconfig.cfg"
)

// Builder materializes a resolved snapshot into a gzipped tarball.
type Builder struct {
	resolver *Resolver
	blobs    *BlobService
	logger   *slog.Logger
	workers  int
}

// BuildOptions tune one archive build.
type BuildOptions struct {
	// Address, when set, adds a gsconfig.cfg entry pointing the client at a
	// game server address.
	Address string
}

// NewBuilder constructs a Builder. workers bounds concurrent blob fetches.
func NewBuilder(resolver *Resolver, blobs *BlobService, workers int, logger *slog.Logger) *Builder {
	if workers <= 0 {
		workers = defaultBuildWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{resolver: resolver, blobs: blobs, logger: logger.With("component", "builder"), workers: workers}
}

// ArchiveName returns the canonical name for a built client archive.
func ArchiveName(dist models.Distribution, patch int) string {
	return fmt.Sprintf("client-%s-ps%04d", dist, patch)
}

// ArchiveObjectKey returns the object-store key under which a built archive
// is cached.
func ArchiveObjectKey(dist models.Distribution, patch int) string {
	return fmt.Sprintf("builds/%s.tar.gz", ArchiveName(dist, patch))
}

// Build resolves (dist, patch), fetches every blob through a bounded worker
// pool, and streams a deterministic tar.gz to w: entries in lexicographic
// path order, fixed mode, and a fixed timestamp taken from the snapshot's
// most recent record. Nothing is written to w until every fetch succeeded,
// so a failed build never exposes a partial artifact.
func (b *Builder) Build(ctx context.Context, dist models.Distribution, patch int, w io.Writer, opts BuildOptions) error {
	if b == nil || b.resolver == nil || b.blobs == nil {
		return fmt.Errorf("builder is not configured")
	}

	snapshot, err := b.resolver.Resolve(ctx, dist, patch)
	if err != nil {
		return err
	}
	if len(snapshot) == 0 {
		return fmt.Errorf("%w: no files for %s ps%04d", ErrNotFound, dist, patch)
	}

	spool, err := os.MkdirTemp("", "patchvault-build-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(spool)

	if err := b.fetchSnapshot(ctx, snapshot, spool); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.writeArchive(ctx, snapshot, spool, patch, w, opts)
}

// BuildToFile builds into destPath via a temp file, renaming only on
// success. A failed or cancelled build leaves no file behind.
func (b *Builder) BuildToFile(ctx context.Context, dist models.Distribution, patch int, destPath string, opts BuildOptions) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".build-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := b.Build(ctx, dist, patch, tmp, opts); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, destPath)
}

// fetchSnapshot pulls every distinct blob once into the spool directory.
// All fetches are attempted before failing so the error names the complete
// set of unbuildable paths.
func (b *Builder) fetchSnapshot(ctx context.Context, snapshot map[string]models.ResolvedFile, spool string) error {
	refs := make(map[uint64]models.BlobRef)
	for _, resolved := range snapshot {
		refs[resolved.Ref.Checksum] = resolved.Ref
	}

	var mu sync.Mutex
	failed := make(map[uint64]error)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for checksum, ref := range refs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			content, err := b.blobs.Get(gctx, ref)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.logger.Warn("blob fetch failed", "checksum", fmt.Sprintf("%016x", checksum), "error", err)
				mu.Lock()
				failed[checksum] = err
				mu.Unlock()
				return nil
			}
			return os.WriteFile(filepath.Join(spool, fmt.Sprintf("%016x", checksum)), content, 0o644)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(failed) == 0 {
		return nil
	}
	var paths []string
	for path, resolved := range snapshot {
		if _, ok := failed[resolved.Ref.Checksum]; ok {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return &PartialBuildError{Paths: paths}
}

func (b *Builder) writeArchive(ctx context.Context, snapshot map[string]models.ResolvedFile, spool string, patch int, w io.Writer, opts BuildOptions) error {
	mtime := snapshotTimestamp(snapshot)

	gz, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(gz)

	for _, path := range SortedPaths(snapshot) {
		if err := ctx.Err(); err != nil {
			return err
		}
		resolved := snapshot[path]
		f, err := os.Open(filepath.Join(spool, fmt.Sprintf("%016x", resolved.Ref.Checksum)))
		if err != nil {
			return err
		}
		err = writeEntry(tw, path, resolved.Ref.UncompressedSize, mtime, f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("archive %s: %w", path, err)
		}
	}

	version := fmt.Sprintf("[Version]\nCurrentVersion=%d\n", patch)
	if err := writeEntryBytes(tw, versionEntryName, []byte(version), mtime); err != nil {
		return err
	}
	if opts.Address != "" {
		gsconfig := fmt.Sprintf("[LOGIN]\nSERVER_IP=%s\n", opts.Address)
		if err := writeEntryBytes(tw, gsconfigEntryName, []byte(gsconfig), mtime); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

func writeEntry(tw *tar.Writer, name string, size int64, mtime time.Time, r io.Reader) error {
	header := &tar.Header{
		Name:     name,
		Size:     size,
		Mode:     archiveEntryMode,
		ModTime:  mtime,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatGNU,
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := io.Copy(tw, r)
	return err
}

func writeEntryBytes(tw *tar.Writer, name string, content []byte, mtime time.Time) error {
	header := &tar.Header{
		Name:     name,
		Size:     int64(len(content)),
		Mode:     archiveEntryMode,
		ModTime:  mtime,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatGNU,
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

// snapshotTimestamp is the most recent record date in the snapshot, so
// repeated builds of one snapshot are byte-identical.
func snapshotTimestamp(snapshot map[string]models.ResolvedFile) time.Time {
	var max time.Time
	for _, resolved := range snapshot {
		if resolved.Date.After(max) {
			max = resolved.Date
		}
	}
	return max.UTC().Truncate(time.Second)
}
