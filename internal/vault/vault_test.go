package vault

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"patchvault/internal/blobstore"
	"patchvault/internal/models"
	"patchvault/internal/store"
)

// testVault wires a store, local object backend, and all services against
// temp directories.
type testVault struct {
	store    *store.Store
	objects  blobstore.ObjectStore
	objRoot  string
	blobs    *BlobService
	ingestor *Ingestor
	resolver *Resolver
	builder  *Builder
}

func newTestVault(t *testing.T) *testVault {
	t.Helper()
	return newTestVaultWith(t, nil)
}

// newTestVaultWith lets a test interpose its own object backend. wrap
// receives the real local backend and returns the one to use.
func newTestVaultWith(t *testing.T, wrap func(blobstore.ObjectStore) blobstore.ObjectStore) *testVault {
	t.Helper()

	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	objRoot := filepath.Join(dir, "objects")
	local, err := blobstore.NewLocalStore(objRoot)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	var objects blobstore.ObjectStore = local
	if wrap != nil {
		objects = wrap(local)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	blobs := NewBlobService(st, objects, logger)
	resolver := NewResolver(st, logger)
	return &testVault{
		store:    st,
		objects:  objects,
		objRoot:  objRoot,
		blobs:    blobs,
		ingestor: NewIngestor(st, blobs, 4, logger),
		resolver: resolver,
		builder:  NewBuilder(resolver, blobs, 4, logger),
	}
}

func (v *testVault) ingest(t *testing.T, dist models.Distribution, patch int, files ...IngestFile) IngestResult {
	t.Helper()
	result, err := v.ingestor.Ingest(context.Background(), dist, patch,
		time.Date(2008, 1, patch+1, 0, 0, 0, 0, time.UTC), files, IngestOptions{})
	if err != nil {
		t.Fatalf("ingest %s ps%04d: %v", dist, patch, err)
	}
	return result
}

// flakyStore fails GetObject for configured keys.
type flakyStore struct {
	blobstore.ObjectStore
	failKeys map[string]bool
}

func (f *flakyStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	if f.failKeys[key] {
		return nil, fmt.Errorf("injected backend failure for %s", key)
	}
	return f.ObjectStore.GetObject(ctx, key)
}
