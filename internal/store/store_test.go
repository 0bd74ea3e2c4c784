package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"patchvault/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testDate(day int) time.Time {
	return time.Date(2007, 12, day, 0, 0, 0, 0, time.UTC)
}

func TestOpenAppliesMigrations(t *testing.T) {
	s := newTestStore(t)

	plan, err := MigrationPlan(s.db)
	if err != nil {
		t.Fatalf("migration plan: %v", err)
	}
	if plan.CurrentVersion != plan.AvailableVersion {
		t.Fatalf("expected all migrations applied, current=%d available=%d", plan.CurrentVersion, plan.AvailableVersion)
	}
	if len(plan.Pending) != 0 {
		t.Fatalf("expected no pending migrations, got %d", len(plan.Pending))
	}
}

func TestUpsertBlobDedupes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertBlob(ctx, &models.Blob{Checksum: 0xabc, UncompressedSize: 10, StorageKey: "ab/cd/abcd"})
	if err != nil {
		t.Fatalf("upsert first: %v", err)
	}

	// Second upsert with a different key must return the canonical row.
	second, err := s.UpsertBlob(ctx, &models.Blob{Checksum: 0xabc, UncompressedSize: 10, StorageKey: "zz/zz/zzzz"})
	if err != nil {
		t.Fatalf("upsert second: %v", err)
	}
	if second.StorageKey != first.StorageKey {
		t.Fatalf("expected canonical storage key %q, got %q", first.StorageKey, second.StorageKey)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected canonical created_at %v, got %v", first.CreatedAt, second.CreatedAt)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM blobs").Scan(&count); err != nil {
		t.Fatalf("count blobs: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one blob row, got %d", count)
	}
}

func TestGetBlobMissing(t *testing.T) {
	s := newTestStore(t)

	blob, err := s.GetBlob(context.Background(), 0xdead)
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}
	if blob != nil {
		t.Fatalf("expected nil for unknown checksum, got %#v", blob)
	}
}

func TestRecordFileIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertBlob(ctx, &models.Blob{Checksum: 1, UncompressedSize: 4, StorageKey: "k1"}); err != nil {
		t.Fatalf("upsert blob: %v", err)
	}

	record := models.FileRecord{
		Distribution: models.DistributionUS,
		Patch:        3,
		Path:         "data/items.dat",
		Date:         testDate(18),
		Checksum:     1,
	}
	if err := s.RecordFile(ctx, record); err != nil {
		t.Fatalf("record file: %v", err)
	}
	if err := s.RecordFile(ctx, record); err != nil {
		t.Fatalf("re-record file: %v", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&count); err != nil {
		t.Fatalf("count files: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one file row, got %d", count)
	}
}

func TestHistoryAscendingByPatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, checksum := range []uint64{10, 20, 30} {
		if _, err := s.UpsertBlob(ctx, &models.Blob{Checksum: checksum, UncompressedSize: 1, StorageKey: "k"}); err != nil {
			t.Fatalf("upsert blob: %v", err)
		}
		record := models.FileRecord{
			Distribution: models.DistributionUS,
			Patch:        []int{5, 1, 9}[i],
			Path:         "data/items.dat",
			Date:         testDate(18),
			Checksum:     checksum,
		}
		if err := s.RecordFile(ctx, record); err != nil {
			t.Fatalf("record file: %v", err)
		}
	}

	history, err := s.History(ctx, models.DistributionUS, "data/items.dat")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(history))
	}
	wantPatches := []int{1, 5, 9}
	wantChecksums := []uint64{20, 10, 30}
	for i, v := range history {
		if v.Patch != wantPatches[i] || v.Checksum != wantChecksums[i] {
			t.Fatalf("history[%d] = %+v, want patch=%d checksum=%d", i, v, wantPatches[i], wantChecksums[i])
		}
	}

	empty, err := s.History(ctx, models.DistributionDE, "data/items.dat")
	if err != nil {
		t.Fatalf("history other dist: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty history for other distribution, got %d", len(empty))
	}
}

func TestAllPathsAndFileEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertBlob(ctx, &models.Blob{Checksum: 7, UncompressedSize: 2, StorageKey: "k7"}); err != nil {
		t.Fatalf("upsert blob: %v", err)
	}
	for _, path := range []string{"data/b.dat", "data/a.dat", "version.ini"} {
		record := models.FileRecord{
			Distribution: models.DistributionUS,
			Patch:        1,
			Path:         path,
			Date:         testDate(18),
			Checksum:     7,
		}
		if err := s.RecordFile(ctx, record); err != nil {
			t.Fatalf("record %s: %v", path, err)
		}
	}

	paths, err := s.AllPaths(ctx, models.DistributionUS)
	if err != nil {
		t.Fatalf("all paths: %v", err)
	}
	want := []string{"data/a.dat", "data/b.dat", "version.ini"}
	if len(paths) != len(want) {
		t.Fatalf("expected %d paths, got %d", len(want), len(paths))
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}

	entries, err := s.FileEntries(ctx, models.DistributionUS)
	if err != nil {
		t.Fatalf("file entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Path != want[i] {
			t.Fatalf("entries[%d].Path = %q, want %q", i, e.Path, want[i])
		}
		if e.Ref.Checksum != 7 || e.Ref.StorageKey != "k7" {
			t.Fatalf("entries[%d] missing blob join: %+v", i, e)
		}
	}
}

func TestPatchLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.MaxCompletedPatch(ctx, models.DistributionUS); err != nil || ok {
		t.Fatalf("expected no high-water mark, ok=%v err=%v", ok, err)
	}

	for _, patch := range []int{0, 5, 9} {
		info := models.PatchInfo{
			Distribution: models.DistributionUS,
			Patch:        patch,
			Date:         testDate(18),
			FileCount:    patch + 1,
		}
		if err := s.CompletePatch(ctx, info); err != nil {
			t.Fatalf("complete patch %d: %v", patch, err)
		}
	}

	completed, err := s.PatchCompleted(ctx, models.DistributionUS, 5)
	if err != nil || !completed {
		t.Fatalf("expected patch 5 completed, ok=%v err=%v", completed, err)
	}
	completed, err = s.PatchCompleted(ctx, models.DistributionUS, 3)
	if err != nil || completed {
		t.Fatalf("expected patch 3 not completed, ok=%v err=%v", completed, err)
	}

	max, ok, err := s.MaxCompletedPatch(ctx, models.DistributionUS)
	if err != nil || !ok || max != 9 {
		t.Fatalf("expected high-water mark 9, got %d ok=%v err=%v", max, ok, err)
	}

	cases := []struct {
		request int
		want    int
		ok      bool
	}{
		{9, 9, true},
		{7, 5, true},
		{5, 5, true},
		{4, 0, true},
		{0, 0, true},
		{100, 9, true},
	}
	for _, tc := range cases {
		got, ok, err := s.NormalizePatch(ctx, models.DistributionUS, tc.request)
		if err != nil {
			t.Fatalf("normalize %d: %v", tc.request, err)
		}
		if ok != tc.ok || got != tc.want {
			t.Fatalf("normalize %d = (%d, %v), want (%d, %v)", tc.request, got, ok, tc.want, tc.ok)
		}
	}

	if _, ok, err := s.NormalizePatch(ctx, models.DistributionDE, 9); err != nil || ok {
		t.Fatalf("expected no normalized patch for empty distribution, ok=%v err=%v", ok, err)
	}

	patches, err := s.ListPatches(ctx, models.DistributionUS)
	if err != nil {
		t.Fatalf("list patches: %v", err)
	}
	if len(patches) != 3 || patches[0].Patch != 0 || patches[2].Patch != 9 {
		t.Fatalf("unexpected patch list: %+v", patches)
	}
}

func TestStoreInfo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertBlob(ctx, &models.Blob{Checksum: 1, UncompressedSize: 1, StorageKey: "k"}); err != nil {
		t.Fatalf("upsert blob: %v", err)
	}
	record := models.FileRecord{Distribution: models.DistributionUS, Patch: 0, Path: "a", Date: testDate(18), Checksum: 1}
	if err := s.RecordFile(ctx, record); err != nil {
		t.Fatalf("record file: %v", err)
	}
	if err := s.CompletePatch(ctx, models.PatchInfo{Distribution: models.DistributionUS, Patch: 0, Date: testDate(18), FileCount: 1}); err != nil {
		t.Fatalf("complete patch: %v", err)
	}

	info, err := s.StoreInfo(ctx)
	if err != nil {
		t.Fatalf("store info: %v", err)
	}
	if info.BlobCount != 1 || info.FileCount != 1 {
		t.Fatalf("unexpected counts: %+v", info)
	}
	if info.PatchCounts["us"] != 1 {
		t.Fatalf("expected one us patch, got %+v", info.PatchCounts)
	}
	if info.SchemaVersion == 0 {
		t.Fatalf("expected nonzero schema version")
	}
}
