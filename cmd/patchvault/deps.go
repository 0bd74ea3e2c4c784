package main

import (
	"context"
	"fmt"
	"log/slog"

	"patchvault/internal/blobstore"
	"patchvault/internal/config"
	"patchvault/internal/store"
	"patchvault/internal/vault"
)

// vaultDeps bundles the wired services CLI commands operate on.
type vaultDeps struct {
	store    *store.Store
	objects  blobstore.ObjectStore
	blobs    *vault.BlobService
	ingestor *vault.Ingestor
	resolver *vault.Resolver
	builder  *vault.Builder
}

// withVault opens the catalog and object backend from config, runs fn, and
// closes everything down afterwards.
func withVault(ctx context.Context, cfg *config.Config, fn func(*vaultDeps) error) error {
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("db path is required")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	objects, err := openObjects(ctx, cfg)
	if err != nil {
		return err
	}

	logger := slog.Default()
	blobs := vault.NewBlobService(st, objects, logger)
	resolver := vault.NewResolver(st, logger)
	deps := &vaultDeps{
		store:    st,
		objects:  objects,
		blobs:    blobs,
		ingestor: vault.NewIngestor(st, blobs, cfg.IngestWorkers, logger),
		resolver: resolver,
		builder:  vault.NewBuilder(resolver, blobs, cfg.BuildWorkers, logger),
	}
	return fn(deps)
}

func openObjects(ctx context.Context, cfg *config.Config) (blobstore.ObjectStore, error) {
	if cfg.UseS3() {
		return blobstore.NewS3Store(ctx, cfg.S3)
	}
	if cfg.BlobRoot == "" {
		return nil, fmt.Errorf("blob root or s3 backend is required")
	}
	return blobstore.NewLocalStore(cfg.BlobRoot)
}
