package main

import (
	"github.com/spf13/cobra"

	"patchvault/internal/config"
	"patchvault/internal/models"
)

func newPatchesCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "patches <dist>",
		Short: "List admitted patches for a distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dist, err := models.ParseDistribution(args[0])
			if err != nil {
				return err
			}

			return withVault(cmd.Context(), cfg, func(deps *vaultDeps) error {
				patches, err := deps.store.ListPatches(cmd.Context(), dist)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(patches)
				}
				printf("%s: %d patches\n", dist, len(patches))
				for _, p := range patches {
					printf("  ps%04d  %s  %5d files\n", p.Patch, p.Date.Format("2006-01-02"), p.FileCount)
				}
				return nil
			})
		},
	}
}

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show catalog summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(cmd.Context(), cfg, func(deps *vaultDeps) error {
				info, err := deps.store.StoreInfo(cmd.Context())
				if err != nil {
					return err
				}
				migrations, err := deps.store.Migrations()
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(map[string]any{
						"store":      info,
						"migrations": migrations,
					})
				}
				printf("schema version: %d (latest %d)\n", info.SchemaVersion, migrations.AvailableVersion)
				printf("blobs:          %d\n", info.BlobCount)
				printf("file records:   %d\n", info.FileCount)
				for _, dist := range models.Distributions() {
					if count, ok := info.PatchCounts[string(dist)]; ok {
						printf("patches %s:     %d\n", dist, count)
					}
				}
				return nil
			})
		},
	}
}
