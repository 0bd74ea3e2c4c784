package vault

import (
	"context"
	"errors"
	"testing"

	"patchvault/internal/models"
)

func TestResolveLatestWins(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	contentA := []byte("items checksum A")
	contentB := []byte("items checksum B")

	v.ingest(t, models.DistributionUS, 1, IngestFile{Path: "data/items.dat", Content: contentA})
	v.ingest(t, models.DistributionUS, 5, IngestFile{Path: "data/items.dat", Content: contentB})

	cases := []struct {
		patch    int
		want     uint64
		expected bool
	}{
		{0, 0, false},
		{1, Checksum(contentA), true},
		{3, Checksum(contentA), true},
		{5, Checksum(contentB), true},
		{9, Checksum(contentB), true},
	}
	for _, tc := range cases {
		snapshot, err := v.resolver.Resolve(ctx, models.DistributionUS, tc.patch)
		if err != nil {
			t.Fatalf("resolve ps%04d: %v", tc.patch, err)
		}
		resolved, ok := snapshot["data/items.dat"]
		if ok != tc.expected {
			t.Fatalf("resolve ps%04d: present=%v, want %v", tc.patch, ok, tc.expected)
		}
		if !tc.expected {
			continue
		}
		if resolved.Ref.Checksum != tc.want {
			t.Fatalf("resolve ps%04d: checksum %016x, want %016x", tc.patch, resolved.Ref.Checksum, tc.want)
		}
	}
}

func TestResolveSourcePatchAndDate(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	v.ingest(t, models.DistributionUS, 2, IngestFile{Path: "data/a.dat", Content: []byte("a2")})
	v.ingest(t, models.DistributionUS, 7, IngestFile{Path: "data/b.dat", Content: []byte("b7")})

	snapshot, err := v.resolver.Resolve(ctx, models.DistributionUS, 9)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(snapshot))
	}
	if a := snapshot["data/a.dat"]; a.SourcePatch != 2 || a.Date.Day() != 3 {
		t.Fatalf("unexpected a.dat resolution: %+v", a)
	}
	if b := snapshot["data/b.dat"]; b.SourcePatch != 7 {
		t.Fatalf("unexpected b.dat resolution: %+v", b)
	}
}

func TestResolveScopedPerDistribution(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	v.ingest(t, models.DistributionUS, 1, IngestFile{Path: "data/config.dat", Content: []byte("us config")})
	v.ingest(t, models.DistributionDE, 1, IngestFile{Path: "data/config.dat", Content: []byte("de config")})

	us, err := v.resolver.Resolve(ctx, models.DistributionUS, 1)
	if err != nil {
		t.Fatalf("resolve us: %v", err)
	}
	de, err := v.resolver.Resolve(ctx, models.DistributionDE, 1)
	if err != nil {
		t.Fatalf("resolve de: %v", err)
	}
	if us["data/config.dat"].Ref.Checksum == de["data/config.dat"].Ref.Checksum {
		t.Fatalf("distribution resolution leaked across regions")
	}
}

func TestResolveEmptyDistribution(t *testing.T) {
	v := newTestVault(t)

	snapshot, err := v.resolver.Resolve(context.Background(), models.DistributionGA, 100)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(snapshot) != 0 {
		t.Fatalf("expected empty snapshot, got %d paths", len(snapshot))
	}
}

func TestNormalizePatch(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	v.ingest(t, models.DistributionUS, 0, IngestFile{Path: "a", Content: []byte("0")})
	v.ingest(t, models.DistributionUS, 5, IngestFile{Path: "a", Content: []byte("5")})

	got, err := v.resolver.NormalizePatch(ctx, models.DistributionUS, 7)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != 5 {
		t.Fatalf("normalize(7) = %d, want 5", got)
	}

	_, err = v.resolver.NormalizePatch(ctx, models.DistributionDE, 7)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty distribution, got %v", err)
	}
}

func TestSortedPaths(t *testing.T) {
	snapshot := map[string]models.ResolvedFile{
		"data/z.dat": {},
		"data/a.dat": {},
		"game.exe":   {},
	}
	paths := SortedPaths(snapshot)
	want := []string{"data/a.dat", "data/z.dat", "game.exe"}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths = %v, want %v", paths, want)
		}
	}
}
