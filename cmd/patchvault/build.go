package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"patchvault/internal/config"
	"patchvault/internal/models"
	"patchvault/internal/vault"
)

func newBuildCmd(cfg *config.Config) *cobra.Command {
	var (
		output  string
		address string
	)

	cmd := &cobra.Command{
		Use:   "build <dist> <patch>",
		Short: "Build a client archive for a distribution at a patch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dist, err := models.ParseDistribution(args[0])
			if err != nil {
				return err
			}
			patch, err := strconv.Atoi(args[1])
			if err != nil || patch < 0 {
				return fmt.Errorf("invalid patch: %q", args[1])
			}

			return withVault(cmd.Context(), cfg, func(deps *vaultDeps) error {
				ctx := cmd.Context()
				normalized, err := deps.resolver.NormalizePatch(ctx, dist, patch)
				if err != nil {
					return err
				}
				dest := output
				if dest == "" {
					dest = vault.ArchiveName(dist, normalized) + ".tar.gz"
				}
				opts := vault.BuildOptions{Address: address}
				if err := deps.builder.BuildToFile(ctx, dist, normalized, dest, opts); err != nil {
					return err
				}
				printf("built %s ps%04d -> %s\n", dist, normalized, dest)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default client-<dist>-ps<patch>.tar.gz)")
	cmd.Flags().StringVar(&address, "address", "", "game server address to bake into gsconfig.cfg")
	return cmd
}
