package main

import (
	"github.com/spf13/cobra"

	"patchvault/internal/config"
	"patchvault/internal/models"
)

func newHistoryCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "history <dist> <path>",
		Short: "Show every recorded version of a client path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dist, err := models.ParseDistribution(args[0])
			if err != nil {
				return err
			}
			path, err := models.NormalizeClientPath(args[1])
			if err != nil {
				return err
			}

			return withVault(cmd.Context(), cfg, func(deps *vaultDeps) error {
				versions, err := deps.store.History(cmd.Context(), dist, path)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(map[string]any{
						"distribution": dist,
						"path":         path,
						"versions":     versions,
					})
				}
				printf("%s %s: %d versions\n", dist, path, len(versions))
				for _, v := range versions {
					printf("  ps%04d  %016x\n", v.Patch, v.Checksum)
				}
				return nil
			})
		},
	}
}
