package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"patchvault/internal/config"
	"patchvault/internal/server"
	"patchvault/internal/store"
	"patchvault/internal/vault"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the patchvault API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening catalog", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			objects, err := openObjects(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			blobs := vault.NewBlobService(st, objects, logger)
			resolver := vault.NewResolver(st, logger)
			builder := vault.NewBuilder(resolver, blobs, cfg.BuildWorkers, logger)

			srv := server.New(addr, st, objects, resolver, builder, logger)
			return srv.ListenAndServe()
		},
	}
}
